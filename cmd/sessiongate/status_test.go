// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package main

import (
	"context"
	"encoding/json"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/holomush/sessiongate/internal/control"
)

func TestFormatUptime(t *testing.T) {
	tests := []struct {
		seconds int64
		want    string
	}{
		{0, "0s"},
		{59, "59s"},
		{61, "1m 1s"},
		{3600, "1h 0m"},
		{7322, "2h 2m"},
	}
	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			assert.Equal(t, tt.want, formatUptime(tt.seconds))
		})
	}
}

func TestFormatStatusTable(t *testing.T) {
	running := formatStatusTable(ProcessStatus{
		Component: "sessiongate", Running: true, Health: "healthy", PID: 42, UptimeSeconds: 65,
		AuthType: "basic_auth",
	})
	assert.Contains(t, running, "PROCESS")
	assert.Contains(t, running, "running")
	assert.Contains(t, running, "1m 5s")
	assert.Contains(t, running, "basic_auth")

	stopped := formatStatusTable(ProcessStatus{Component: "sessiongate", Error: "socket not found"})
	assert.Contains(t, stopped, "stopped")
	assert.Contains(t, stopped, "socket not found")
}

func TestFormatStatusJSON(t *testing.T) {
	out, err := formatStatusJSON(ProcessStatus{Component: "sessiongate", Running: true, PID: 7})
	require.NoError(t, err)

	var got ProcessStatus
	require.NoError(t, json.Unmarshal([]byte(out), &got))
	assert.Equal(t, "sessiongate", got.Component)
	assert.Equal(t, 7, got.PID)
}

func TestQueryProcessStatus_NoSocket(t *testing.T) {
	t.Setenv("XDG_RUNTIME_DIR", t.TempDir())

	status := queryProcessStatus(context.Background(), serviceName)
	assert.False(t, status.Running)
	assert.Equal(t, "socket not found", status.Error)
}

func TestQueryProcessStatus_Running(t *testing.T) {
	dir, err := os.MkdirTemp("/tmp", "sg-")
	require.NoError(t, err)
	t.Cleanup(func() { _ = os.RemoveAll(dir) })
	t.Setenv("XDG_RUNTIME_DIR", dir)

	srv := control.NewServer(serviceName, nil, control.WithAuthType("session_auth"), control.WithVersion("test"))
	require.NoError(t, srv.Start())
	t.Cleanup(func() { _ = srv.Stop(context.Background()) })

	status := queryProcessStatus(context.Background(), serviceName)
	assert.True(t, status.Running)
	assert.Equal(t, "healthy", status.Health)
	assert.Equal(t, os.Getpid(), status.PID)
	assert.Equal(t, "session_auth", status.AuthType)
	assert.Equal(t, "test", status.Version)
	assert.Empty(t, status.Error)
}

func TestStatusCmd_JSON(t *testing.T) {
	t.Setenv("XDG_RUNTIME_DIR", t.TempDir())

	out, err := execute(t, "status", "--json")
	require.NoError(t, err)
	assert.Contains(t, out, `"error": "socket not found"`)
}
