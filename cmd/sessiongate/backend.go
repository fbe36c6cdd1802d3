// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package main

import (
	"context"
	"log/slog"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/holomush/sessiongate/internal/auth"
	"github.com/holomush/sessiongate/internal/auth/memstore"
	"github.com/holomush/sessiongate/internal/auth/postgres"
	"github.com/holomush/sessiongate/internal/config"
	"github.com/holomush/sessiongate/internal/session"
	"github.com/holomush/sessiongate/internal/store"
)

// backend holds the user and session repositories selected by configuration.
// Without a database URL users live in memory and sessions is nil.
type backend struct {
	users    auth.UserRepository
	sessions session.Repository
	pool     *pgxpool.Pool
}

func openBackend(ctx context.Context, cfg config.DatabaseConfig, logger *slog.Logger) (*backend, error) {
	if cfg.URL == "" {
		logger.Warn("no database configured, users are kept in memory")
		return &backend{users: memstore.NewUserRepository()}, nil
	}

	pool, err := store.Connect(ctx, cfg.URL, store.ConnectOptions{Logger: logger})
	if err != nil {
		return nil, err
	}
	return &backend{
		users:    postgres.NewUserRepository(pool),
		sessions: postgres.NewSessionRepository(pool),
		pool:     pool,
	}, nil
}

// Close releases the database pool, if any.
func (b *backend) Close() {
	if b.pool != nil {
		b.pool.Close()
	}
}

// newCredentialStore builds the credential store with the configured hasher.
func newCredentialStore(cfg config.AuthConfig, users auth.UserRepository, logger *slog.Logger) (*auth.CredentialStore, error) {
	hasher, err := auth.NewHasher(cfg.Hasher, cfg.BcryptCost)
	if err != nil {
		return nil, err
	}
	return auth.NewCredentialStore(users, hasher, auth.WithLogger(logger))
}
