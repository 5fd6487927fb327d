package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/illarion/dpsecret/internal/protection"
)

var allVars = []string{
	"SCOPE", "PROVIDER", "USER_KEY_BACKEND", "USER_KEY_STORE",
	"MACHINE_KEY_STORE", "TIMEOUT", "LOG_LEVEL", "LOG_FORMAT",
}

// clearEnv unsets every DPSECRET_ variable for the test and restores them afterwards
func clearEnv(t *testing.T) {
	t.Helper()
	for _, name := range allVars {
		t.Setenv(EnvPrefix+name, "")
		require.NoError(t, os.Unsetenv(EnvPrefix+name))
	}
}

func TestDefaults(t *testing.T) {
	clearEnv(t)

	cfg, err := Parse()
	require.NoError(t, err)

	assert.Equal(t, protection.CurrentUser, cfg.Scope)
	assert.Equal(t, "auto", cfg.Provider)
	assert.Equal(t, "keyring", cfg.UserKeyBackend)
	assert.Empty(t, cfg.UserKeyStore)
	assert.Empty(t, cfg.MachineKeyStore)
	assert.Equal(t, 30*time.Second, cfg.Timeout)
	assert.Equal(t, "warn", cfg.LogLevel)
	assert.Equal(t, "text", cfg.LogFormat)
}

func TestParseOverrides(t *testing.T) {
	clearEnv(t)
	t.Setenv("DPSECRET_SCOPE", "localmachine")
	t.Setenv("DPSECRET_PROVIDER", "LOCAL")
	t.Setenv("DPSECRET_USER_KEY_BACKEND", "file")
	t.Setenv("DPSECRET_USER_KEY_STORE", "/tmp/u.db")
	t.Setenv("DPSECRET_MACHINE_KEY_STORE", "/tmp/m.db")
	t.Setenv("DPSECRET_TIMEOUT", "5s")
	t.Setenv("DPSECRET_LOG_LEVEL", "Debug")
	t.Setenv("DPSECRET_LOG_FORMAT", "json")

	cfg, err := Parse()
	require.NoError(t, err)

	assert.Equal(t, protection.LocalMachine, cfg.Scope)
	assert.Equal(t, "local", cfg.Provider)
	assert.Equal(t, "file", cfg.UserKeyBackend)
	assert.Equal(t, 5*time.Second, cfg.Timeout)
	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, "json", cfg.LogFormat)

	opts := cfg.ProtectionOptions(nil)
	assert.Equal(t, "local", opts.Provider)
	assert.Equal(t, "file", opts.UserKeyBackend)
	assert.Equal(t, "/tmp/u.db", opts.UserKeyStore)
	assert.Equal(t, "/tmp/m.db", opts.MachineKeyStore)
}

func TestParseRejectsInvalidValues(t *testing.T) {
	tests := []struct {
		name  string
		value string
	}{
		{"SCOPE", "Everyone"},
		{"SCOPE", "2"},
		{"PROVIDER", "tpm"},
		{"USER_KEY_BACKEND", "vault"},
		{"TIMEOUT", "soon"},
		{"TIMEOUT", "0s"},
		{"LOG_LEVEL", "trace"},
		{"LOG_FORMAT", "xml"},
	}

	for _, tt := range tests {
		t.Run(tt.name+"="+tt.value, func(t *testing.T) {
			clearEnv(t)
			t.Setenv(EnvPrefix+tt.name, tt.value)

			_, err := Parse()
			require.Error(t, err)
			assert.Contains(t, err.Error(), "invalid configuration")
		})
	}
}

func TestValidateNamesVariable(t *testing.T) {
	cfg := Config{
		Scope:          protection.CurrentUser,
		Provider:       "auto",
		UserKeyBackend: "keyring",
		Timeout:        time.Second,
		LogLevel:       "loud",
		LogFormat:      "text",
	}
	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "DPSECRET_LOG_LEVEL")

	cfg.LogLevel = "info"
	cfg.Scope = protection.Scope(9)
	err = cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "DPSECRET_SCOPE")
}

func TestLoadDotEnv(t *testing.T) {
	clearEnv(t)
	dir := t.TempDir()
	t.Chdir(dir)

	content := "DPSECRET_LOG_FORMAT=json\nDPSECRET_TIMEOUT=2s\n"
	require.NoError(t, os.WriteFile(filepath.Join(dir, DotEnvFile), []byte(content), 0600))

	// Process environment wins over .env
	t.Setenv("DPSECRET_TIMEOUT", "7s")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "json", cfg.LogFormat)
	assert.Equal(t, 7*time.Second, cfg.Timeout)
}

func TestLoadWithoutDotEnv(t *testing.T) {
	clearEnv(t)
	t.Chdir(t.TempDir())

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "text", cfg.LogFormat)
}
