package environment

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"runtime"
	"strings"
)

// Handle is proof that an environment is ready. It carries everything needed
// to run a program inside the environment without touching global state.
type Handle struct {
	dir     string
	binDir  string
	python  string
	env     []string
	created bool
}

// Dir is the environment root.
func (h *Handle) Dir() string {
	return h.dir
}

// BinDir holds the environment's executables.
func (h *Handle) BinDir() string {
	return h.binDir
}

// Python is the environment's interpreter.
func (h *Handle) Python() string {
	return h.python
}

// Env returns a copy of the activated process environment.
func (h *Handle) Env() []string {
	return append([]string(nil), h.env...)
}

// Created reports whether this run provisioned the environment.
func (h *Handle) Created() bool {
	return h.created
}

// Activate returns a Handle for the existing environment at dir, starting
// from baseEnv. It fails with ErrInterpreterMissing when dir holds no
// interpreter.
func Activate(dir string, baseEnv []string) (*Handle, error) {
	return newHandle(dir, baseEnv, runtime.GOOS)
}

func newHandle(dir string, baseEnv []string, goos string) (*Handle, error) {
	binDir := filepath.Join(dir, "bin")
	python := filepath.Join(binDir, "python")
	if goos == "windows" {
		binDir = filepath.Join(dir, "Scripts")
		python = filepath.Join(binDir, "python.exe")
	}
	info, err := os.Stat(python)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrInterpreterMissing, python)
		}
		return nil, fmt.Errorf("stat interpreter: %w", err)
	}
	if info.IsDir() {
		return nil, fmt.Errorf("%w: %s is a directory", ErrInterpreterMissing, python)
	}
	return &Handle{
		dir:    dir,
		binDir: binDir,
		python: python,
		env:    activatedEnv(baseEnv, dir, binDir, goos),
	}, nil
}

// activatedEnv mirrors what a venv activate script does: set VIRTUAL_ENV,
// put the bin directory first on PATH and drop PYTHONHOME.
func activatedEnv(base []string, dir, binDir, goos string) []string {
	pathKey := "PATH"
	var path string
	out := make([]string, 0, len(base)+2)
	for _, kv := range base {
		key, value, _ := strings.Cut(kv, "=")
		switch {
		case envKeyEqual(key, "PATH", goos):
			pathKey, path = key, value
		case envKeyEqual(key, "VIRTUAL_ENV", goos), envKeyEqual(key, "PYTHONHOME", goos):
		default:
			out = append(out, kv)
		}
	}
	if path != "" {
		path = binDir + string(os.PathListSeparator) + path
	} else {
		path = binDir
	}
	return append(out, "VIRTUAL_ENV="+dir, pathKey+"="+path)
}

func envKeyEqual(a, b, goos string) bool {
	if goos == "windows" {
		return strings.EqualFold(a, b)
	}
	return a == b
}
