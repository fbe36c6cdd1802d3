// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package gate_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/holomush/sessiongate/internal/auth"
	"github.com/holomush/sessiongate/internal/auth/memstore"
	"github.com/holomush/sessiongate/internal/gate"
	"github.com/holomush/sessiongate/internal/session"
)

type brokenAuthority struct{}

func (brokenAuthority) Create(context.Context, string, time.Time) (string, error) {
	return "", errors.New("down")
}

func (brokenAuthority) Resolve(context.Context, string, time.Time) (string, error) {
	return "", errors.New("down")
}

func (brokenAuthority) Destroy(context.Context, string) (bool, error) {
	return false, errors.New("down")
}

func TestSessionAuth_Lifecycle(t *testing.T) {
	ctx := context.Background()
	store := newStore(t)
	bob, err := store.Register(ctx, "bob@x.com", "pw1")
	require.NoError(t, err)

	a, err := gate.NewSessionAuth(
		session.NewMemoryAuthority(session.WithUserValidator(store)),
		store,
		gate.WithCookieName("_my_session_id"),
	)
	require.NoError(t, err)
	assert.Equal(t, "_my_session_id", a.CookieName())

	ok, err := store.VerifyLogin(ctx, "bob@x.com", "pw1")
	require.NoError(t, err)
	require.True(t, ok)

	sid, err := a.CreateSession(ctx, bob.ID.String())
	require.NoError(t, err)

	req := fakeRequest{path: "/api/v1/users/me", cookies: map[string]string{"_my_session_id": sid}}

	user, err := a.CurrentUser(ctx, req)
	require.NoError(t, err)
	require.NotNil(t, user)
	assert.Equal(t, bob.ID, user.ID)

	user, err = gate.Check(ctx, a, req, excluded)
	require.NoError(t, err)
	assert.Equal(t, bob.ID, user.ID)

	removed, err := a.DestroySession(ctx, req)
	require.NoError(t, err)
	assert.True(t, removed)

	removed, err = a.DestroySession(ctx, req)
	require.NoError(t, err)
	assert.False(t, removed)

	user, err = a.CurrentUser(ctx, req)
	require.NoError(t, err)
	assert.Nil(t, user)

	_, err = gate.Check(ctx, a, req, excluded)
	assert.ErrorIs(t, err, gate.ErrForbidden)
}

func TestSessionAuth_CreateRejectsUnknownUser(t *testing.T) {
	ctx := context.Background()
	store := newStore(t)

	a, err := gate.NewSessionAuth(session.NewMemoryAuthority(session.WithUserValidator(store)), store)
	require.NoError(t, err)

	_, err = a.CreateSession(ctx, "01HZX0000000000000000000AB")
	assert.ErrorIs(t, err, auth.ErrInvalidUser)

	_, err = a.CreateSession(ctx, "")
	assert.ErrorIs(t, err, auth.ErrInvalidUser)
}

func TestSessionAuth_NoCookie(t *testing.T) {
	ctx := context.Background()
	store := newStore(t)
	a, err := gate.NewSessionAuth(session.NewMemoryAuthority(), store)
	require.NoError(t, err)

	for _, req := range []fakeRequest{
		{path: "/x"},
		{path: "/x", cookies: map[string]string{gate.DefaultCookieName: ""}},
		{path: "/x", cookies: map[string]string{gate.DefaultCookieName: "forged"}},
		{path: "/x", cookies: map[string]string{"other": "value"}},
	} {
		user, err := a.CurrentUser(ctx, req)
		require.NoError(t, err)
		assert.Nil(t, user)

		removed, err := a.DestroySession(ctx, req)
		require.NoError(t, err)
		assert.False(t, removed)
	}
}

func TestSessionAuth_OrphanedSession(t *testing.T) {
	ctx := context.Background()
	store := newStore(t)
	memory := session.NewMemoryAuthority()
	a, err := gate.NewSessionAuth(memory, store)
	require.NoError(t, err)

	sid, err := memory.Create(ctx, "01HZX0000000000000000000AB", time.Now())
	require.NoError(t, err)

	user, err := a.CurrentUser(ctx, fakeRequest{cookies: map[string]string{gate.DefaultCookieName: sid}})
	require.NoError(t, err)
	assert.Nil(t, user)
}

func TestSessionAuth_StorageFailure(t *testing.T) {
	ctx := context.Background()
	a, err := gate.NewSessionAuth(brokenAuthority{}, newStore(t))
	require.NoError(t, err)

	_, err = a.CurrentUser(ctx, fakeRequest{cookies: map[string]string{gate.DefaultCookieName: "sid"}})
	assert.Error(t, err)
}

func TestSessionExpAuth(t *testing.T) {
	ctx := context.Background()
	store := newStore(t)
	bob, err := store.Register(ctx, "bob@x.com", "pw1")
	require.NoError(t, err)

	now := time.Date(2026, 5, 1, 10, 0, 0, 0, time.UTC)
	clock := &now
	expiring := session.NewExpiringAuthority(session.NewMemoryAuthority(session.WithUserValidator(store)), time.Minute)
	a, err := gate.NewSessionExpAuth(expiring, store, gate.WithClock(func() time.Time { return *clock }))
	require.NoError(t, err)

	sid, err := a.CreateSession(ctx, bob.ID.String())
	require.NoError(t, err)
	req := fakeRequest{cookies: map[string]string{gate.DefaultCookieName: sid}}

	*clock = now.Add(time.Minute)
	user, err := a.CurrentUser(ctx, req)
	require.NoError(t, err)
	require.NotNil(t, user)

	*clock = now.Add(time.Minute + time.Second)
	user, err = a.CurrentUser(ctx, req)
	require.NoError(t, err)
	assert.Nil(t, user)

	_, err = gate.NewSessionExpAuth(nil, store)
	assert.Error(t, err)
}

func TestSessionDBAuth_SurvivesRestart(t *testing.T) {
	ctx := context.Background()
	store := newStore(t)
	bob, err := store.Register(ctx, "bob@x.com", "pw1")
	require.NoError(t, err)
	repo := memstore.NewSessionRepository()

	build := func() *gate.SessionAuth {
		expiring := session.NewExpiringAuthority(session.NewMemoryAuthority(session.WithUserValidator(store)), time.Hour)
		a, err := gate.NewSessionDBAuth(session.NewPersistentAuthority(expiring, repo), store)
		require.NoError(t, err)
		return a
	}

	sid, err := build().CreateSession(ctx, bob.ID.String())
	require.NoError(t, err)

	req := fakeRequest{cookies: map[string]string{gate.DefaultCookieName: sid}}
	restarted := build()
	user, err := restarted.CurrentUser(ctx, req)
	require.NoError(t, err)
	require.NotNil(t, user)
	assert.Equal(t, bob.ID, user.ID)

	removed, err := restarted.DestroySession(ctx, req)
	require.NoError(t, err)
	assert.True(t, removed)
	assert.Zero(t, repo.Len())

	_, err = gate.NewSessionDBAuth(nil, store)
	assert.Error(t, err)
}
