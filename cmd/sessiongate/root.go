// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package main

import (
	"context"
	"io"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/holomush/sessiongate/internal/config"
	"github.com/holomush/sessiongate/internal/logging"
)

// serviceName labels logs and the control socket.
const serviceName = "sessiongate"

// NewRootCmd creates the root command for the sessiongate CLI.
func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "sessiongate",
		Short: "Session authentication gateway for a JSON API",
		Long: `sessiongate serves a small JSON API behind a configurable
authentication gate (basic auth, session cookies, expiring or
database-backed sessions) together with account registration,
login, and password reset.`,
		SilenceUsage: true,
	}

	config.RegisterFlags(cmd.PersistentFlags())

	cmd.AddCommand(NewServeCmd())
	cmd.AddCommand(NewMigrateCmd())
	cmd.AddCommand(newStatusCmd())
	cmd.AddCommand(NewUserCmd())

	return cmd
}

// loadConfig reads configuration using the flags cmd was invoked with.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	return config.Load(config.Options{Flags: cmd.Flags()})
}

// newLogger builds the process logger from the log section.
func newLogger(cfg config.LogConfig, w io.Writer) (*slog.Logger, error) {
	level, err := logging.ParseLevel(cfg.Level)
	if err != nil {
		return nil, err
	}
	return logging.Setup(serviceName, version, cfg.Format, w,
		logging.WithLevel(level),
		logging.WithRedactedFields(cfg.RedactFields...),
	), nil
}

// monitorServerErrors cancels ctx when a server reports a fatal error.
func monitorServerErrors(ctx context.Context, cancel context.CancelFunc, errCh <-chan error, serverName string, logger *slog.Logger) {
	select {
	case err, ok := <-errCh:
		if !ok {
			return
		}
		if err != nil {
			logger.Error("server error, triggering shutdown",
				"server", serverName,
				"error", err,
			)
			cancel()
		}
	case <-ctx.Done():
	}
}
