package paths

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestXDGDirectories(t *testing.T) {
	t.Setenv("RENDERWATCH_HOME", "")
	t.Setenv("XDG_CONFIG_HOME", "/xdg/config")
	t.Setenv("XDG_STATE_HOME", "/xdg/state")
	t.Setenv("XDG_RUNTIME_DIR", "/run/user/1000")

	assert.Equal(t, "/xdg/config/renderwatch", ConfigDir())
	assert.Equal(t, "/xdg/config/renderwatch/renderwatch.yml", GlobalConfigFile())
	assert.Equal(t, "/xdg/state/renderwatch/renderwatch.log", LogFile())
	assert.Equal(t, "/run/user/1000/renderwatch.pid", PidFilePath())
}

func TestPortableHome(t *testing.T) {
	t.Setenv("RENDERWATCH_HOME", "/opt/rw")
	t.Setenv("XDG_CONFIG_HOME", "/xdg/config")

	assert.Equal(t, "/opt/rw/config/renderwatch", ConfigDir())
	assert.Equal(t, "/opt/rw/state/renderwatch", StateDir())
	assert.Equal(t, "/opt/rw/run/renderwatch.pid", PidFilePath())
}

func TestRuntimeDirFallsBackToTemp(t *testing.T) {
	t.Setenv("RENDERWATCH_HOME", "")
	t.Setenv("XDG_RUNTIME_DIR", "")
	assert.Equal(t, filepath.Join(os.TempDir(), "renderwatch.pid"), PidFilePath())
}

func TestExpand(t *testing.T) {
	home, err := os.UserHomeDir()
	require.NoError(t, err)
	t.Setenv("RW_INCOMING", "incoming")

	got, err := Expand("~/renders")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(home, "renders"), got)

	got, err = Expand("/srv/$RW_INCOMING")
	require.NoError(t, err)
	assert.Equal(t, "/srv/incoming", got)

	cwd, err := os.Getwd()
	require.NoError(t, err)
	got, err = Expand("queue")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(cwd, "queue"), got)
}
