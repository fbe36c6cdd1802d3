// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package main

import (
	"bytes"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/holomush/sessiongate/internal/config"
	"github.com/holomush/sessiongate/internal/logging"
)

// configEnv lists every environment variable config.Load reads.
var configEnv = []string{
	"AUTH_TYPE", "SESSION_NAME", "SESSION_DURATION", "AUTH_PATH_MATCHING",
	"AUTH_EXCLUDED_PATHS", "AUTH_HASHER", "DATABASE_URL", "API_HOST",
	"API_PORT", "METRICS_ADDR", "LOG_LEVEL", "LOG_FORMAT",
}

// isolateEnv points config discovery at an empty directory, clears the
// config environment, and restores the default logger afterwards. It
// returns a --env-file argument pair that names a missing file.
func isolateEnv(t *testing.T) []string {
	t.Helper()
	dir := t.TempDir()
	t.Setenv("XDG_CONFIG_HOME", dir)
	for _, name := range configEnv {
		t.Setenv(name, "")
		require.NoError(t, os.Unsetenv(name))
	}
	logger := slog.Default()
	t.Cleanup(func() { slog.SetDefault(logger) })
	return []string{"--env-file", filepath.Join(dir, "missing.env")}
}

// execute runs the root command with args and returns its output.
func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := NewRootCmd()
	var out, stderr bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&stderr)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func TestRootCmd_Subcommands(t *testing.T) {
	cmd := NewRootCmd()

	var names []string
	for _, sub := range cmd.Commands() {
		names = append(names, sub.Name())
	}
	assert.Subset(t, names, []string{"serve", "migrate", "status", "user"})
}

func TestRootCmd_PersistentConfigFlags(t *testing.T) {
	cmd := NewRootCmd()
	for _, name := range []string{"config", "env-file", "auth-type", "database-url", "port", "log-format"} {
		assert.NotNil(t, cmd.PersistentFlags().Lookup(name), name)
	}
}

func TestRootCmd_Help(t *testing.T) {
	out, err := execute(t, "--help")
	require.NoError(t, err)
	assert.Contains(t, out, "sessiongate")
	assert.Contains(t, out, "serve")
}

func TestLoadConfig_FromFlags(t *testing.T) {
	envFile := isolateEnv(t)

	var got string
	cmd := NewRootCmd()
	cmd.AddCommand(&cobra.Command{
		Use: "probe",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			got = cfg.Auth.Type
			return nil
		},
	})
	cmd.SetArgs(append([]string{"probe", "--auth-type", "basic_auth"}, envFile...))
	require.NoError(t, cmd.Execute())
	assert.Equal(t, "basic_auth", got)
}

func TestNewLogger(t *testing.T) {
	var buf bytes.Buffer
	logger, err := newLogger(loggingConfig("warn", "json"), &buf)
	require.NoError(t, err)

	logger.Info("hidden")
	logger.Warn("shown", "password", "hunter2")

	assert.NotContains(t, buf.String(), "hidden")
	assert.Contains(t, buf.String(), "shown")
	assert.Contains(t, buf.String(), `"service":"sessiongate"`)
	assert.NotContains(t, buf.String(), "hunter2")

	_, err = newLogger(loggingConfig("loud", "json"), &buf)
	assert.Error(t, err)
}

func loggingConfig(level, format string) config.LogConfig {
	return config.LogConfig{Level: level, Format: format, RedactFields: logging.PIIFields}
}
