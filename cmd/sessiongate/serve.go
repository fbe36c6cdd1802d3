// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/samber/oops"
	"github.com/spf13/cobra"

	"github.com/holomush/sessiongate/internal/config"
	"github.com/holomush/sessiongate/internal/control"
	"github.com/holomush/sessiongate/internal/gate"
	"github.com/holomush/sessiongate/internal/observability"
	"github.com/holomush/sessiongate/internal/session"
	"github.com/holomush/sessiongate/internal/web"
)

const shutdownTimeout = 5 * time.Second

// serveOptions are the serve-only switches that are not part of Config.
type serveOptions struct {
	migrate   bool
	noControl bool
	// ready, when set, receives the API address once every server is up.
	ready func(addr string)
}

// NewServeCmd creates the serve subcommand.
func NewServeCmd() *cobra.Command {
	opts := &serveOptions{}

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the API server",
		Long: `Start the JSON API behind the configured authentication gate,
plus the metrics endpoint and the local control socket.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			return runServe(cmd.Context(), cmd, cfg, opts)
		},
	}

	cmd.Flags().BoolVar(&opts.migrate, "migrate", false, "apply pending database migrations before serving")
	cmd.Flags().BoolVar(&opts.noControl, "no-control", false, "do not open the control socket")

	return cmd
}

func runServe(ctx context.Context, cmd *cobra.Command, cfg *config.Config, opts *serveOptions) error {
	if ctx == nil {
		ctx = context.Background()
	}

	logger, err := newLogger(cfg.Log, cmd.ErrOrStderr())
	if err != nil {
		return err
	}
	slog.SetDefault(logger)

	logger.Info("starting sessiongate",
		"auth_type", cfg.Auth.Type,
		"addr", cfg.HTTP.Addr(),
		"path_matching", cfg.Auth.PathMatching,
	)

	if opts.migrate && cfg.Database.URL != "" {
		if err := migrateUp(cfg.Database.URL); err != nil {
			return err
		}
		logger.Info("database migrations applied")
	}

	be, err := openBackend(ctx, cfg.Database, logger)
	if err != nil {
		return err
	}
	defer be.Close()

	creds, err := newCredentialStore(cfg.Auth, be.users, logger)
	if err != nil {
		return err
	}

	gateCfg, err := cfg.Auth.GateConfig()
	if err != nil {
		return err
	}
	g, err := gate.New(gateCfg, gate.Deps{
		Users:    creds,
		Sessions: be.sessions,
		Logger:   logger,
	})
	if err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	var ready atomic.Bool
	var metrics *observability.Metrics
	var obsServer *observability.Server
	if cfg.Metrics.Addr != "" {
		obsServer = observability.NewServer(cfg.Metrics.Addr, ready.Load, observability.WithLogger(logger))
		obsErrCh, err := obsServer.Start()
		if err != nil {
			return err
		}
		go monitorServerErrors(ctx, cancel, obsErrCh, "observability", logger)
		metrics = obsServer.Metrics()
		logger.Info("observability server started", "addr", obsServer.Addr())
	}

	if g.Reaper != nil && cfg.Auth.SweepEvery() > 0 {
		sweeper, err := session.NewSweeper(g.Reaper, cfg.Auth.SweepEvery(), logger,
			session.WithReapCallback(func(n int64) {
				metrics.RecordSessionEvent(observability.SessionReaped, n)
			}))
		if err != nil {
			return err
		}
		go sweeper.Run(ctx)
	}

	api, err := web.NewAPI(g, creds, cfg.Auth.SessionName,
		web.WithMetrics(metrics),
		web.WithLogger(logger),
	)
	if err != nil {
		return err
	}

	apiServer := web.NewServer(cfg.HTTP.Addr(), api.Handler(), logger)
	apiErrCh, err := apiServer.Start()
	if err != nil {
		stopAll(logger, obsServer, nil, nil)
		return err
	}
	go monitorServerErrors(ctx, cancel, apiErrCh, "api", logger)

	var ctl *control.Server
	if !opts.noControl {
		ctl = control.NewServer(serviceName, control.ShutdownFunc(cancel),
			control.WithAuthType(cfg.Auth.Type),
			control.WithVersion(version),
			control.WithLogger(logger),
		)
		if err := ctl.Start(); err != nil {
			logger.Warn("control socket unavailable", "error", err)
			ctl = nil
		} else {
			logger.Info("control socket listening", "path", ctl.Path())
		}
	}

	ready.Store(true)
	cmd.Println("sessiongate listening on " + apiServer.Addr())
	if opts.ready != nil {
		opts.ready(apiServer.Addr())
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigChan)

	select {
	case sig := <-sigChan:
		logger.Info("received shutdown signal", "signal", sig.String())
	case <-ctx.Done():
		logger.Info("context cancelled, shutting down")
	}

	ready.Store(false)
	stopAll(logger, obsServer, apiServer, ctl)
	logger.Info("shutdown complete")
	return nil
}

// stopper is implemented by every server serve starts.
type stopper interface {
	Stop(ctx context.Context) error
}

// stopAll stops the API first so in-flight requests drain before the
// metrics and control endpoints go away.
func stopAll(logger *slog.Logger, obs *observability.Server, api *web.Server, ctl *control.Server) {
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if api != nil {
		stopServer(ctx, logger, "api", api)
	}
	if obs != nil {
		stopServer(ctx, logger, "observability", obs)
	}
	if ctl != nil {
		stopServer(ctx, logger, "control", ctl)
	}
}

func stopServer(ctx context.Context, logger *slog.Logger, name string, s stopper) {
	if err := s.Stop(ctx); err != nil {
		logger.Warn("error stopping server", "server", name, "error", err)
	}
}

func migrateUp(databaseURL string) (err error) {
	migrator, err := newMigrator(databaseURL)
	if err != nil {
		return err
	}
	defer func() {
		if closeErr := migrator.Close(); closeErr != nil && err == nil {
			err = closeErr
		}
	}()
	if err := migrator.Up(); err != nil {
		return oops.Code("MIGRATION_FAILED").With("operation", "apply migrations").Wrap(err)
	}
	return nil
}
