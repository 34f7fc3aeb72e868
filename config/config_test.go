package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("DUOCHAT_CONFIG", "")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 3216, cfg.Port)
	assert.Equal(t, "duochat.db", cfg.DBPath)
	assert.Equal(t, 120, cfg.ReadTimeout)
	assert.Equal(t, 30, cfg.WriteTimeout)
	assert.Equal(t, "/tmp/duochat.sock", cfg.ControlSock)
}

func TestLoadFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "duochat.yml")
	content := "port: 4000\ndb_path: /var/lib/duochat/data.db\nread_timeout: 60\n"
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	t.Setenv("DUOCHAT_CONFIG", path)

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 4000, cfg.Port)
	assert.Equal(t, "/var/lib/duochat/data.db", cfg.DBPath)
	assert.Equal(t, 60, cfg.ReadTimeout)
	// untouched keys keep their defaults
	assert.Equal(t, 30, cfg.WriteTimeout)
}

func TestEnvOverridesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "duochat.yml")
	require.NoError(t, os.WriteFile(path, []byte("port: 4000\n"), 0o644))
	t.Setenv("DUOCHAT_CONFIG", path)
	t.Setenv("DUOCHAT_PORT", "5000")
	t.Setenv("DUOCHAT_DB_PATH", "/tmp/override.db")
	t.Setenv("DUOCHAT_CONTROL_SOCK", "/tmp/override.sock")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 5000, cfg.Port)
	assert.Equal(t, "/tmp/override.db", cfg.DBPath)
	assert.Equal(t, "/tmp/override.sock", cfg.ControlSock)
}

func TestInvalidEnvValueIgnored(t *testing.T) {
	t.Setenv("DUOCHAT_CONFIG", "")
	t.Setenv("DUOCHAT_PORT", "not a number")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 3216, cfg.Port)
}

func TestMissingConfigFile(t *testing.T) {
	t.Setenv("DUOCHAT_CONFIG", filepath.Join(t.TempDir(), "absent.yml"))

	_, err := Load()
	require.Error(t, err)
}
