package cmd

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadEnvFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, ".env")
	require.NoError(t, os.WriteFile(path, []byte("MAILGATEWAY_TEST_VALUE=from-file\n"), 0o600))
	t.Setenv("MAILGATEWAY_TEST_VALUE", "")
	require.NoError(t, os.Unsetenv("MAILGATEWAY_TEST_VALUE"))

	require.NoError(t, loadEnvFile(path))
	assert.Equal(t, "from-file", os.Getenv("MAILGATEWAY_TEST_VALUE"))

	assert.NoError(t, loadEnvFile(filepath.Join(dir, "missing.env")))
	assert.NoError(t, loadEnvFile(""))
}

func TestCheckCredentialKey(t *testing.T) {
	key, err := checkCredentialKey("api-key")
	require.NoError(t, err)
	assert.Equal(t, "api-key", key)

	_, err = checkCredentialKey("jira-token")
	assert.ErrorContains(t, err, "unknown credential")
}

func TestConfigInitAndCommands(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	t.Setenv("EMAIL_FROM", "bot@example.com")

	out := &bytes.Buffer{}
	rootCmd.SetOut(out)
	rootCmd.SetArgs([]string{"--config", path, "--env-file", "", "config", "init"})
	require.NoError(t, rootCmd.Execute())
	assert.FileExists(t, path)

	rootCmd.SetArgs([]string{"--config", path, "--env-file", "", "config", "init"})
	assert.Error(t, rootCmd.Execute())

	out.Reset()
	rootCmd.SetArgs([]string{"--config", path, "--env-file", "", "commands"})
	require.NoError(t, rootCmd.Execute())
	assert.Equal(t, "/check_campus_ip\n/device_health\n/health\n/help\n", out.String())
}
