package logger

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOptionsPath(t *testing.T) {
	assert.Equal(t, filepath.Join("logs", DefaultFile), Options{Dir: "logs"}.Path())
	assert.Equal(t, filepath.Join("logs", "server.log"), Options{Dir: "logs", File: "server.log"}.Path())
}

func TestInit_WritesToFile(t *testing.T) {
	t.Cleanup(Discard)
	dir := filepath.Join(t.TempDir(), "nested", "logs")

	closer, err := Init(Options{Dir: dir})
	require.NoError(t, err)

	Info.Println("store ready")
	Error.Println("ping failed")
	require.NoError(t, closer.Close())
	Discard()

	raw, err := os.ReadFile(filepath.Join(dir, DefaultFile))
	require.NoError(t, err)
	assert.Contains(t, string(raw), "INFO: ")
	assert.Contains(t, string(raw), "store ready")
	assert.Contains(t, string(raw), "ERROR: ")
	assert.Contains(t, string(raw), "ping failed")
}

func TestInit_Appends(t *testing.T) {
	t.Cleanup(Discard)
	opts := Options{Dir: t.TempDir(), File: "opsboard-test.log"}

	for _, msg := range []string{"first run", "second run"} {
		closer, err := Init(opts)
		require.NoError(t, err)
		Info.Println(msg)
		require.NoError(t, closer.Close())
	}
	Discard()

	raw, err := os.ReadFile(opts.Path())
	require.NoError(t, err)
	assert.Contains(t, string(raw), "first run")
	assert.Contains(t, string(raw), "second run")
}

func TestInit_RequiresDir(t *testing.T) {
	_, err := Init(Options{})
	assert.Error(t, err)
}
