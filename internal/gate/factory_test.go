// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package gate_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/holomush/sessiongate/internal/auth/memstore"
	"github.com/holomush/sessiongate/internal/gate"
	"github.com/holomush/sessiongate/internal/pathmatch"
	"github.com/holomush/sessiongate/pkg/errutil"
)

func TestNew(t *testing.T) {
	store := newStore(t)
	deps := gate.Deps{Users: store, Sessions: memstore.NewSessionRepository()}

	tests := []struct {
		name         string
		cfg          gate.Config
		wantStrategy any
		wantSessions bool
		wantReaper   bool
	}{
		{name: "none", cfg: gate.Config{Type: gate.TypeNone}},
		{name: "auth", cfg: gate.Config{Type: gate.TypeAuth}, wantStrategy: &gate.NullAuth{}},
		{name: "basic", cfg: gate.Config{Type: gate.TypeBasic}, wantStrategy: &gate.BasicAuth{}},
		{name: "session", cfg: gate.Config{Type: gate.TypeSession}, wantStrategy: &gate.SessionAuth{}, wantSessions: true},
		{name: "session exp", cfg: gate.Config{Type: gate.TypeSessionExp, SessionDuration: time.Minute}, wantStrategy: &gate.SessionAuth{}, wantSessions: true, wantReaper: true},
		{name: "session exp without duration", cfg: gate.Config{Type: gate.TypeSessionExp}, wantStrategy: &gate.SessionAuth{}, wantSessions: true},
		{name: "session db", cfg: gate.Config{Type: gate.TypeSessionDB, SessionDuration: time.Minute}, wantStrategy: &gate.SessionAuth{}, wantSessions: true, wantReaper: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			g, err := gate.New(tt.cfg, deps)
			require.NoError(t, err)
			assert.Equal(t, tt.cfg.Type, g.Type)
			if tt.wantStrategy == nil {
				assert.Nil(t, g.Strategy)
			} else {
				assert.IsType(t, tt.wantStrategy, g.Strategy)
			}
			assert.Equal(t, tt.wantSessions, g.Sessions != nil)
			assert.Equal(t, tt.wantReaper, g.Reaper != nil)
		})
	}
}

func TestNew_Errors(t *testing.T) {
	store := newStore(t)

	_, err := gate.New(gate.Config{Type: "jwt"}, gate.Deps{Users: store})
	require.Error(t, err)
	errutil.AssertErrorCode(t, err, "GATE_UNKNOWN_TYPE")

	_, err = gate.New(gate.Config{Type: gate.TypeBasic}, gate.Deps{})
	require.Error(t, err)
	errutil.AssertErrorCode(t, err, "GATE_INVALID_CONFIG")

	_, err = gate.New(gate.Config{Type: gate.TypeSessionDB}, gate.Deps{Users: store})
	require.Error(t, err)
	errutil.AssertErrorCode(t, err, "GATE_INVALID_CONFIG")
}

func TestNew_AppliesConfig(t *testing.T) {
	ctx := context.Background()
	store := newStore(t)
	bob, err := store.Register(ctx, "bob@x.com", "pw1")
	require.NoError(t, err)

	now := time.Date(2026, 5, 1, 10, 0, 0, 0, time.UTC)
	g, err := gate.New(gate.Config{
		Type:            gate.TypeSessionExp,
		CookieName:      "sid",
		SessionDuration: time.Minute,
		PathMatching:    pathmatch.Permissive,
		ExcludedPaths:   []string{"/api/v1/status"},
	}, gate.Deps{Users: store, Now: fixedClock(now)})
	require.NoError(t, err)

	assert.Equal(t, "sid", g.Sessions.CookieName())
	assert.False(t, g.Strategy.RequireAuth("/api/v1/", g.Excluded), "permissive matcher excludes parents")

	id, err := g.Sessions.CreateSession(ctx, bob.ID.String())
	require.NoError(t, err)

	user, err := g.Check(ctx, fakeRequest{path: "/api/v1/users/me", cookies: map[string]string{"sid": id}})
	require.NoError(t, err)
	assert.Equal(t, bob.ID, user.ID)

	n, err := g.Reaper.Reap(ctx, now.Add(time.Hour))
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
}
