package command

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

// TestHelperProcess is re-executed by the tests below as a child process.
func TestHelperProcess(t *testing.T) {
	if os.Getenv("GO_WANT_HELPER_PROCESS") != "1" {
		return
	}
	args := os.Args
	for len(args) > 0 && args[0] != "--" {
		args = args[1:]
	}
	if len(args) > 0 {
		args = args[1:]
	}
	if len(args) == 0 {
		os.Exit(0)
	}
	switch args[0] {
	case "echo":
		fmt.Fprint(os.Stdout, strings.Join(args[1:], "|"))
		os.Exit(0)
	case "env":
		fmt.Fprint(os.Stdout, os.Getenv(args[1]))
		os.Exit(0)
	case "exit":
		code, _ := strconv.Atoi(args[1])
		fmt.Fprint(os.Stderr, "failing on purpose")
		os.Exit(code)
	}
	os.Exit(2)
}

func helperSpec(args ...string) Spec {
	return Spec{
		Name: os.Args[0],
		Args: append([]string{"-test.run=TestHelperProcess", "--"}, args...),
		Env:  append(os.Environ(), "GO_WANT_HELPER_PROCESS=1"),
	}
}

// TestExecRunnerForwardsArgs ensures arguments reach the child untouched, including flag-like tokens.
func TestExecRunnerForwardsArgs(t *testing.T) {
	t.Parallel()

	var stdout bytes.Buffer
	runner := NewExecRunner(WithStdout(&stdout))
	err := runner.Run(context.Background(), helperSpec("echo", "gmaps", "--verbose", "two words"))
	require.NoError(t, err)
	require.Equal(t, "gmaps|--verbose|two words", stdout.String())
}

// TestExecRunnerUsesSpecEnv verifies Spec.Env replaces the inherited environment.
func TestExecRunnerUsesSpecEnv(t *testing.T) {
	t.Parallel()

	var stdout bytes.Buffer
	spec := helperSpec("env", "VIRTUAL_ENV")
	spec.Env = append(spec.Env, "VIRTUAL_ENV=/tmp/venv")
	spec.Stdout = &stdout

	require.NoError(t, NewExecRunner().Run(context.Background(), spec))
	require.Equal(t, "/tmp/venv", stdout.String())
}

// TestExecRunnerExitError checks non-zero exits surface as *ExitError with the child's status.
func TestExecRunnerExitError(t *testing.T) {
	t.Parallel()

	var stderr bytes.Buffer
	runner := NewExecRunner(WithStderr(&stderr))
	err := runner.Run(context.Background(), helperSpec("exit", "7"))

	var exitErr *ExitError
	require.ErrorAs(t, err, &exitErr)
	require.Equal(t, 7, exitErr.Code)
	require.Equal(t, 7, ExitCode(err))
	require.Equal(t, "failing on purpose", stderr.String())
}

// TestExecRunnerStartFailure verifies a missing executable is a plain error, not an ExitError.
func TestExecRunnerStartFailure(t *testing.T) {
	t.Parallel()

	err := NewExecRunner().Run(context.Background(), Spec{Name: "definitely-not-a-real-binary-4f1c"})
	require.Error(t, err)

	var exitErr *ExitError
	require.False(t, errors.As(err, &exitErr))
	require.Equal(t, 1, ExitCode(err))
}

// TestExecRunnerRequiresName rejects empty specs.
func TestExecRunnerRequiresName(t *testing.T) {
	t.Parallel()

	require.Error(t, NewExecRunner().Run(context.Background(), Spec{}))
}

func TestExitCode(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		err  error
		want int
	}{
		{name: "nil", err: nil, want: 0},
		{name: "plain", err: errors.New("boom"), want: 1},
		{name: "exit", err: &ExitError{Name: "pip", Code: 3}, want: 3},
		{name: "wrapped", err: fmt.Errorf("install: %w", &ExitError{Name: "pip", Code: 4}), want: 4},
		{name: "zero code", err: &ExitError{Name: "pip", Code: 0}, want: 1},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			require.Equal(t, tt.want, ExitCode(tt.err))
		})
	}
}

// TestRecorderCopiesArgs ensures later mutation of caller slices does not alter recorded calls.
func TestRecorderCopiesArgs(t *testing.T) {
	t.Parallel()

	rec := NewRecorder(func(spec Spec) error {
		if spec.Name == "fail" {
			return &ExitError{Name: spec.Name, Code: 9}
		}
		return nil
	})
	args := []string{"a", "b"}
	require.NoError(t, rec.Run(context.Background(), Spec{Name: "ok", Args: args}))
	args[0] = "mutated"
	require.Error(t, rec.Run(context.Background(), Spec{Name: "fail"}))

	calls := rec.Calls()
	require.Len(t, calls, 2)
	require.Equal(t, []string{"a", "b"}, calls[0].Args)
	require.Equal(t, 1, rec.CountMatching(func(s Spec) bool { return s.Name == "fail" }))
}

// TestExecRunnerLogsCommandLine checks each invocation is logged at debug level.
func TestExecRunnerLogsCommandLine(t *testing.T) {
	t.Parallel()

	core, logs := observer.New(zapcore.DebugLevel)
	var stdout bytes.Buffer
	spec := helperSpec("echo", "yelp")
	runner := NewExecRunner(WithStdout(&stdout), WithLogger(zap.New(core)))
	require.NoError(t, runner.Run(context.Background(), spec))

	entries := logs.FilterMessage("running command").All()
	require.Len(t, entries, 1)
	require.Equal(t, spec.String(), entries[0].ContextMap()["command"])
}

func TestSpecString(t *testing.T) {
	t.Parallel()

	require.Equal(t, "python3", Spec{Name: "python3"}.String())
	require.Equal(t, "python3 -m venv venv", Spec{Name: "python3", Args: []string{"-m", "venv", "venv"}}.String())
}
