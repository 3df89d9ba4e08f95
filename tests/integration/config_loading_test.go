// Integration tests for configuration loading and path resolution
// precedence, exercised through the binary with flag, environment and config
// file combinations.
package integration

import (
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// runGlworbWith runs the binary with exactly the given args and env on top of
// a cleaned environment. No directories are injected.
func runGlworbWith(t *testing.T, env []string, args ...string) (stdout, stderr string, exitCode int) {
	t.Helper()
	if buildErr != nil {
		t.Fatalf("failed to build glworb: %v", buildErr)
	}
	cmd := exec.Command(glworbBin, args...)
	cmd.Env = append(cleanEnv(), env...)
	var outBuf, errBuf strings.Builder
	cmd.Stdout = &outBuf
	cmd.Stderr = &errBuf
	err := cmd.Run()
	if err != nil {
		if exitErr, ok := err.(*exec.ExitError); ok {
			exitCode = exitErr.ExitCode()
		} else {
			t.Fatalf("run glworb: %v", err)
		}
	}
	return outBuf.String(), errBuf.String(), exitCode
}

func writeConfigYAML(t *testing.T, configDir, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(configDir, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(configDir, "config.yaml"), []byte(content), 0o644))
}

func TestConfigLoading_DataDirPrecedence(t *testing.T) {
	tmp := t.TempDir()
	configDir := filepath.Join(tmp, "config")
	fromFile := filepath.Join(tmp, "from-file")
	fromFlag := filepath.Join(tmp, "from-flag")
	fromEnv := filepath.Join(tmp, "from-env")
	writeConfigYAML(t, configDir, "data_dir: "+fromFile+"\n")

	t.Run("config file when nothing overrides it", func(t *testing.T) {
		stdout, stderr, code := runGlworbWith(t, nil, "--config-dir", configDir, "init")
		require.Equal(t, 0, code, stderr)
		assert.Contains(t, stdout, "store ready in "+fromFile)
	})

	t.Run("environment beats config file", func(t *testing.T) {
		stdout, stderr, code := runGlworbWith(t,
			[]string{"GLWORB_DATA_DIR=" + fromEnv},
			"--config-dir", configDir, "init")
		require.Equal(t, 0, code, stderr)
		assert.Contains(t, stdout, "store ready in "+fromEnv)
	})

	t.Run("flag beats config file", func(t *testing.T) {
		stdout, stderr, code := runGlworbWith(t, nil,
			"--config-dir", configDir, "--data-dir", fromFlag, "init")
		require.Equal(t, 0, code, stderr)
		assert.Contains(t, stdout, "store ready in "+fromFlag)
		assert.FileExists(t, filepath.Join(fromFlag, "glworbs.db"))
	})
}

func TestConfigLoading_ConfigDirFromEnv(t *testing.T) {
	tmp := t.TempDir()
	configDir := filepath.Join(tmp, "env-config")
	dataDir := filepath.Join(tmp, "data")

	stdout, stderr, code := runGlworbWith(t,
		[]string{"GLWORB_CONFIG_DIR=" + configDir},
		"--data-dir", dataDir, "init")
	require.Equal(t, 0, code, stderr)
	assert.Contains(t, stdout, "wrote "+filepath.Join(configDir, "config.yaml"))

	data, err := os.ReadFile(filepath.Join(configDir, "config.yaml"))
	require.NoError(t, err)
	assert.Contains(t, string(data), "concat_border: 50")
}

func TestConfigLoading_InvalidValues(t *testing.T) {
	tmp := t.TempDir()
	configDir := filepath.Join(tmp, "config")
	dataDir := filepath.Join(tmp, "data")

	writeConfigYAML(t, configDir, "blob_compression: gzip\n")
	_, stderr, code := runGlworbWith(t, nil, "--config-dir", configDir, "--data-dir", dataDir, "scan")
	assert.Equal(t, 2, code)
	assert.Contains(t, stderr, "unknown blob compression")

	writeConfigYAML(t, configDir, "log_level: info\n")
	_, stderr, code = runGlworbWith(t, []string{"GLWORB_CONCAT_BORDER=-3"},
		"--config-dir", configDir, "--data-dir", dataDir, "scan")
	assert.Equal(t, 2, code)
	assert.Contains(t, stderr, "concat border")

	_, stderr, code = runGlworbWith(t, nil,
		"--config-dir", configDir, "--data-dir", dataDir, "--log-level", "loud", "scan")
	assert.Equal(t, 2, code)
	assert.Contains(t, stderr, "unknown log level")
}

func TestConfigLoading_EnvTTL(t *testing.T) {
	env := NewTestEnv(t)
	env.MustRunGlworb("set", "glworb:1", "name", "first")

	_, stderr, code := runGlworbWith(t, []string{"GLWORB_DEFAULT_TTL=-5"},
		"--config-dir", env.Config, "--data-dir", env.DataDir, "duplicate", "glworb:1")
	assert.Equal(t, 2, code, "a negative configured ttl is a config error")
	assert.Contains(t, stderr, "default ttl")
}
