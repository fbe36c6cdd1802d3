// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package main

import (
	"context"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/holomush/sessiongate/internal/auth"
	"github.com/holomush/sessiongate/internal/config"
)

// openCredentials is replaced in tests. The returned func releases the
// backing store.
var openCredentials = func(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*auth.CredentialStore, func(), error) {
	if _, err := databaseURL(cfg); err != nil {
		return nil, nil, err
	}
	be, err := openBackend(ctx, cfg.Database, logger)
	if err != nil {
		return nil, nil, err
	}
	creds, err := newCredentialStore(cfg.Auth, be.users, logger)
	if err != nil {
		be.Close()
		return nil, nil, err
	}
	return creds, be.Close, nil
}

// NewUserCmd creates the user administration command group.
func NewUserCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "user",
		Short: "Administer user accounts in the database",
	}

	var email, password string
	create := &cobra.Command{
		Use:   "create",
		Short: "Register a user",
		RunE: withCredentials(func(cmd *cobra.Command, creds *auth.CredentialStore) error {
			user, err := creds.Register(cmd.Context(), email, password)
			if err != nil {
				return err
			}
			cmd.Printf("Created user %s (%s)\n", user.Email, user.ID)
			return nil
		}),
	}
	create.Flags().StringVar(&email, "email", "", "email address")
	create.Flags().StringVar(&password, "password", "", "initial password")
	_ = create.MarkFlagRequired("email")
	_ = create.MarkFlagRequired("password")
	cmd.AddCommand(create)

	var resetEmail string
	reset := &cobra.Command{
		Use:   "reset-token",
		Short: "Issue a password reset token",
		RunE: withCredentials(func(cmd *cobra.Command, creds *auth.CredentialStore) error {
			token, err := creds.GenerateResetToken(cmd.Context(), resetEmail)
			if err != nil {
				return err
			}
			cmd.Println(token)
			return nil
		}),
	}
	reset.Flags().StringVar(&resetEmail, "email", "", "email address")
	_ = reset.MarkFlagRequired("email")
	cmd.AddCommand(reset)

	var token, newPassword string
	setPassword := &cobra.Command{
		Use:   "set-password",
		Short: "Set a password using a reset token",
		RunE: withCredentials(func(cmd *cobra.Command, creds *auth.CredentialStore) error {
			if err := creds.UpdatePassword(cmd.Context(), token, newPassword); err != nil {
				return err
			}
			cmd.Println("Password updated")
			return nil
		}),
	}
	setPassword.Flags().StringVar(&token, "token", "", "reset token")
	setPassword.Flags().StringVar(&newPassword, "password", "", "new password")
	_ = setPassword.MarkFlagRequired("token")
	_ = setPassword.MarkFlagRequired("password")
	cmd.AddCommand(setPassword)

	cmd.AddCommand(&cobra.Command{
		Use:   "count",
		Short: "Print the number of registered users",
		RunE: withCredentials(func(cmd *cobra.Command, creds *auth.CredentialStore) error {
			n, err := creds.CountUsers(cmd.Context())
			if err != nil {
				return err
			}
			cmd.Println(n)
			return nil
		}),
	})

	return cmd
}

func withCredentials(run func(cmd *cobra.Command, creds *auth.CredentialStore) error) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, _ []string) error {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		logger, err := newLogger(cfg.Log, cmd.ErrOrStderr())
		if err != nil {
			return err
		}
		ctx := cmd.Context()
		if ctx == nil {
			ctx = context.Background()
			cmd.SetContext(ctx)
		}
		creds, closeFn, err := openCredentials(ctx, cfg, logger)
		if err != nil {
			return err
		}
		defer closeFn()
		return run(cmd, creds)
	}
}
