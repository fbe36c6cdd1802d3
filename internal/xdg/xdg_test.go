// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package xdg

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/holomush/sessiongate/pkg/errutil"
)

func TestDirs(t *testing.T) {
	tests := []struct {
		name   string
		fn     func() (string, error)
		envVar string
		envVal string
		home   string
		want   string
	}{
		{"config env", ConfigDir, "XDG_CONFIG_HOME", "/custom/config", "/home/testuser", "/custom/config/sessiongate"},
		{"config default", ConfigDir, "XDG_CONFIG_HOME", "", "/home/testuser", "/home/testuser/.config/sessiongate"},
		{"data env", DataDir, "XDG_DATA_HOME", "/custom/data", "/home/testuser", "/custom/data/sessiongate"},
		{"data default", DataDir, "XDG_DATA_HOME", "", "/home/testuser", "/home/testuser/.local/share/sessiongate"},
		{"state env", StateDir, "XDG_STATE_HOME", "/custom/state", "/home/testuser", "/custom/state/sessiongate"},
		{"state default", StateDir, "XDG_STATE_HOME", "", "/home/testuser", "/home/testuser/.local/state/sessiongate"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv(tt.envVar, tt.envVal)
			t.Setenv("HOME", tt.home)

			got, err := tt.fn()
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestRuntimeDir(t *testing.T) {
	t.Setenv("XDG_RUNTIME_DIR", "/run/user/1000")
	got, err := RuntimeDir()
	require.NoError(t, err)
	assert.Equal(t, "/run/user/1000/sessiongate", got)

	t.Setenv("XDG_RUNTIME_DIR", "")
	t.Setenv("XDG_STATE_HOME", "/custom/state")
	got, err = RuntimeDir()
	require.NoError(t, err)
	assert.Equal(t, "/custom/state/sessiongate/run", got)
}

func TestConfigDir_NoHome(t *testing.T) {
	t.Setenv("XDG_CONFIG_HOME", "")
	t.Setenv("HOME", "")

	_, err := ConfigDir()
	errutil.AssertErrorCode(t, err, "XDG_NO_HOME")
}

func TestConfigFile(t *testing.T) {
	t.Setenv("XDG_CONFIG_HOME", "/custom/config")

	got, err := ConfigFile()
	require.NoError(t, err)
	assert.Equal(t, "/custom/config/sessiongate/config.yaml", got)
}

func TestEnsureDir(t *testing.T) {
	testPath := filepath.Join(t.TempDir(), "nested", "dir")

	require.NoError(t, EnsureDir(testPath))

	info, err := os.Stat(testPath)
	require.NoError(t, err)
	assert.True(t, info.IsDir())
	assert.Equal(t, os.FileMode(0o700), info.Mode().Perm())

	// Idempotent.
	require.NoError(t, EnsureDir(testPath))
}
