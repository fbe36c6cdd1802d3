// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

//go:build integration

package postgres_test

import (
	"context"
	"errors"
	"time"

	. "github.com/onsi/ginkgo/v2" //nolint:revive // ginkgo convention
	. "github.com/onsi/gomega"    //nolint:revive // gomega convention
	"golang.org/x/crypto/bcrypt"

	"github.com/holomush/sessiongate/internal/auth"
	"github.com/holomush/sessiongate/internal/auth/postgres"
	"github.com/holomush/sessiongate/internal/session"
)

var _ = Describe("Postgres repositories", func() {
	var (
		ctx   context.Context
		creds *auth.CredentialStore
	)

	BeforeEach(func() {
		ctx = context.Background()
		truncate(ctx)

		hasher, err := auth.NewBcryptHasher(bcrypt.MinCost)
		Expect(err).NotTo(HaveOccurred())
		creds, err = auth.NewCredentialStore(postgres.NewUserRepository(pool), hasher)
		Expect(err).NotTo(HaveOccurred())
	})

	Describe("credential store", func() {
		It("registers once per email", func() {
			bob, err := creds.Register(ctx, "Bob@X.com", "pw1")
			Expect(err).NotTo(HaveOccurred())
			Expect(bob.Email).To(Equal("bob@x.com"))

			_, err = creds.Register(ctx, "bob@x.com", "pw2")
			Expect(errors.Is(err, auth.ErrAlreadyExists)).To(BeTrue())

			n, err := creds.CountUsers(ctx)
			Expect(err).NotTo(HaveOccurred())
			Expect(n).To(Equal(int64(1)))

			ok, err := creds.VerifyLogin(ctx, "bob@x.com", "pw1")
			Expect(err).NotTo(HaveOccurred())
			Expect(ok).To(BeTrue())
		})

		It("spends a reset token once", func() {
			_, err := creds.Register(ctx, "bob@x.com", "pw1")
			Expect(err).NotTo(HaveOccurred())

			token, err := creds.GenerateResetToken(ctx, "bob@x.com")
			Expect(err).NotTo(HaveOccurred())

			Expect(creds.UpdatePassword(ctx, token, "pw2")).To(Succeed())
			err = creds.UpdatePassword(ctx, token, "pw3")
			Expect(errors.Is(err, auth.ErrInvalidToken)).To(BeTrue())

			ok, err := creds.VerifyLogin(ctx, "bob@x.com", "pw2")
			Expect(err).NotTo(HaveOccurred())
			Expect(ok).To(BeTrue())
		})
	})

	Describe("persistent sessions", func() {
		newAuthority := func(d time.Duration) *session.PersistentAuthority {
			memory := session.NewMemoryAuthority(session.WithUserValidator(creds))
			return session.NewPersistentAuthority(
				session.NewExpiringAuthority(memory, d),
				postgres.NewSessionRepository(pool))
		}

		It("resolves sessions created by another process", func() {
			bob, err := creds.Register(ctx, "bob@x.com", "pw1")
			Expect(err).NotTo(HaveOccurred())

			now := time.Now()
			id, err := newAuthority(time.Hour).Create(ctx, bob.ID.String(), now)
			Expect(err).NotTo(HaveOccurred())

			restarted := newAuthority(time.Hour)
			userID, err := restarted.Resolve(ctx, id, now.Add(time.Minute))
			Expect(err).NotTo(HaveOccurred())
			Expect(userID).To(Equal(bob.ID.String()))

			destroyed, err := restarted.Destroy(ctx, id)
			Expect(err).NotTo(HaveOccurred())
			Expect(destroyed).To(BeTrue())

			_, err = newAuthority(time.Hour).Resolve(ctx, id, now)
			Expect(auth.IsNoSession(err)).To(BeTrue())
		})

		It("reaps expired sessions", func() {
			bob, err := creds.Register(ctx, "bob@x.com", "pw1")
			Expect(err).NotTo(HaveOccurred())

			a := newAuthority(time.Minute)
			now := time.Now()
			_, err = a.Create(ctx, bob.ID.String(), now.Add(-time.Hour))
			Expect(err).NotTo(HaveOccurred())
			_, err = a.Create(ctx, bob.ID.String(), now)
			Expect(err).NotTo(HaveOccurred())

			n, err := a.Reap(ctx, now)
			Expect(err).NotTo(HaveOccurred())
			Expect(n).To(BeNumerically(">=", 1))

			var left int
			Expect(pool.QueryRow(ctx, `SELECT COUNT(*) FROM user_sessions`).Scan(&left)).To(Succeed())
			Expect(left).To(Equal(1))
		})
	})
})
