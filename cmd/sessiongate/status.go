// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/samber/oops"
	"github.com/spf13/cobra"

	"github.com/holomush/sessiongate/internal/control"
)

// ProcessStatus is what status reports for the running server.
type ProcessStatus struct {
	Component     string `json:"component"`
	Running       bool   `json:"running"`
	Health        string `json:"health,omitempty"`
	PID           int    `json:"pid,omitempty"`
	UptimeSeconds int64  `json:"uptime_seconds,omitempty"`
	AuthType      string `json:"auth_type,omitempty"`
	Version       string `json:"version,omitempty"`
	Error         string `json:"error,omitempty"`
}

func newStatusCmd() *cobra.Command {
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show status of the running server",
		Long:  `Query the local control socket for the health, PID, uptime, and auth type of a running sessiongate.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			status := queryProcessStatus(cmd.Context(), serviceName)
			if jsonOutput {
				out, err := formatStatusJSON(status)
				if err != nil {
					return err
				}
				cmd.Println(out)
				return nil
			}
			cmd.Print(formatStatusTable(status))
			return nil
		},
	}

	cmd.Flags().BoolVar(&jsonOutput, "json", false, "output status as JSON")
	return cmd
}

// queryProcessStatus asks the control socket of component for its health
// and status. Failures are reported in the Error field.
func queryProcessStatus(ctx context.Context, component string) ProcessStatus {
	if ctx == nil {
		ctx = context.Background()
	}
	status := ProcessStatus{Component: component}

	socketPath, err := control.SocketPath(component)
	if err != nil {
		status.Error = err.Error()
		return status
	}
	if _, err := os.Stat(socketPath); os.IsNotExist(err) {
		status.Error = "socket not found"
		return status
	}

	client := unixHTTPClient(socketPath)

	var health control.HealthResponse
	if err := getJSON(ctx, client, "/health", &health); err != nil {
		status.Error = err.Error()
		return status
	}
	status.Running = true
	status.Health = health.Status

	var cs control.StatusResponse
	if err := getJSON(ctx, client, "/status", &cs); err != nil {
		return status
	}
	status.Running = cs.Running
	status.PID = cs.PID
	status.UptimeSeconds = cs.UptimeSeconds
	status.AuthType = cs.AuthType
	status.Version = cs.Version
	return status
}

func unixHTTPClient(socketPath string) *http.Client {
	return &http.Client{
		Transport: &http.Transport{
			DialContext: func(ctx context.Context, _, _ string) (net.Conn, error) {
				var d net.Dialer
				return d.DialContext(ctx, "unix", socketPath)
			},
		},
		Timeout: 2 * time.Second,
	}
}

func getJSON(ctx context.Context, client *http.Client, path string, v any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, "http://localhost"+path, nil)
	if err != nil {
		return oops.Code("STATUS_REQUEST_FAILED").With("path", path).Wrap(err)
	}
	resp, err := client.Do(req)
	if err != nil {
		return oops.Code("STATUS_CONNECT_FAILED").With("path", path).Wrapf(err, "failed to connect")
	}
	defer func() { _ = resp.Body.Close() }()
	if err := json.NewDecoder(resp.Body).Decode(v); err != nil {
		return oops.Code("STATUS_DECODE_FAILED").With("path", path).Wrapf(err, "failed to decode response")
	}
	return nil
}

func formatStatusTable(s ProcessStatus) string {
	var buf strings.Builder
	w := tabwriter.NewWriter(&buf, 0, 0, 2, ' ', 0)

	_, _ = fmt.Fprintln(w, "PROCESS\tSTATUS\tHEALTH\tPID\tUPTIME\tAUTH")
	if s.Running {
		authType := s.AuthType
		if authType == "" {
			authType = "none"
		}
		_, _ = fmt.Fprintf(w, "%s\trunning\t%s\t%d\t%s\t%s\n",
			s.Component, s.Health, s.PID, formatUptime(s.UptimeSeconds), authType)
	} else {
		reason := "not running"
		if s.Error != "" {
			reason = s.Error
		}
		_, _ = fmt.Fprintf(w, "%s\tstopped\t-\t-\t-\t%s\n", s.Component, reason)
	}

	_ = w.Flush()
	return buf.String()
}

func formatStatusJSON(s ProcessStatus) (string, error) {
	data, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return "", oops.Code("STATUS_ENCODE_FAILED").Wrap(err)
	}
	return string(data), nil
}

func formatUptime(seconds int64) string {
	if seconds < 60 {
		return fmt.Sprintf("%ds", seconds)
	}
	if seconds < 3600 {
		return fmt.Sprintf("%dm %ds", seconds/60, seconds%60)
	}
	return fmt.Sprintf("%dh %dm", seconds/3600, (seconds%3600)/60)
}
