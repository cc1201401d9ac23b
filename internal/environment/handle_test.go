package environment

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestActivatedEnv(t *testing.T) {
	t.Parallel()

	sep := string(os.PathListSeparator)
	base := []string{
		"HOME=/home/test",
		"PATH=/usr/local/bin" + sep + "/usr/bin",
		"PYTHONHOME=/opt/python",
		"VIRTUAL_ENV=/old/venv",
	}
	got := activatedEnv(base, "/srv/venv", "/srv/venv/bin", "linux")

	require.Contains(t, got, "HOME=/home/test")
	require.Contains(t, got, "VIRTUAL_ENV=/srv/venv")
	require.Contains(t, got, "PATH=/srv/venv/bin"+sep+"/usr/local/bin"+sep+"/usr/bin")
	require.NotContains(t, got, "PYTHONHOME=/opt/python")
	require.NotContains(t, got, "VIRTUAL_ENV=/old/venv")
	require.Len(t, got, 3)
}

func TestActivatedEnvWithoutPath(t *testing.T) {
	t.Parallel()

	got := activatedEnv(nil, "/srv/venv", "/srv/venv/bin", "linux")
	require.Equal(t, []string{"VIRTUAL_ENV=/srv/venv", "PATH=/srv/venv/bin"}, got)
}

func TestActivatedEnvWindowsKeyCase(t *testing.T) {
	t.Parallel()

	got := activatedEnv([]string{"Path=C:\\Windows"}, `C:\srv\venv`, `C:\srv\venv\Scripts`, "windows")
	require.Contains(t, got, "Path="+`C:\srv\venv\Scripts`+string(os.PathListSeparator)+`C:\Windows`)
}

func TestNewHandle(t *testing.T) {
	t.Parallel()

	dir := filepath.Join(t.TempDir(), "venv")
	_, err := newHandle(dir, nil, "linux")
	require.ErrorIs(t, err, ErrInterpreterMissing)

	require.NoError(t, os.MkdirAll(filepath.Join(dir, "bin"), 0o750))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "bin", "python"), []byte{}, 0o700)) //nolint:gosec // test fixture

	h, err := newHandle(dir, []string{"PATH=/usr/bin"}, "linux")
	require.NoError(t, err)
	require.Equal(t, filepath.Join(dir, "bin"), h.BinDir())
	require.Equal(t, filepath.Join(dir, "bin", "python"), h.Python())
	require.False(t, h.Created())

	env := h.Env()
	env[0] = "mutated"
	require.NotEqual(t, "mutated", h.Env()[0])
}
