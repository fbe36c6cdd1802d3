// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package session

import (
	"context"
	"log/slog"
	"time"

	"github.com/samber/oops"
)

// Sweeper periodically reaps expired sessions so lazy expiration does not
// grow the session map without bound.
type Sweeper struct {
	reaper   Reaper
	interval time.Duration
	logger   *slog.Logger
	now      func() time.Time
	onReap   func(n int64)
}

// SweeperOption configures a Sweeper.
type SweeperOption func(*Sweeper)

// WithSweeperClock replaces time.Now.
func WithSweeperClock(now func() time.Time) SweeperOption {
	return func(s *Sweeper) {
		if now != nil {
			s.now = now
		}
	}
}

// WithReapCallback registers fn to be called with the count after every
// successful pass.
func WithReapCallback(fn func(n int64)) SweeperOption {
	return func(s *Sweeper) {
		s.onReap = fn
	}
}

// NewSweeper creates a Sweeper that reaps every interval.
func NewSweeper(reaper Reaper, interval time.Duration, logger *slog.Logger, opts ...SweeperOption) (*Sweeper, error) {
	if reaper == nil {
		return nil, oops.Code("SWEEPER_INVALID_CONFIG").Errorf("reaper is required")
	}
	if interval <= 0 {
		return nil, oops.Code("SWEEPER_INVALID_CONFIG").
			With("interval", interval.String()).
			Errorf("sweep interval must be positive")
	}
	if logger == nil {
		logger = slog.Default()
	}

	s := &Sweeper{
		reaper:   reaper,
		interval: interval,
		logger:   logger,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Run reaps on every tick until ctx is cancelled. Reap failures are logged
// and the next tick retries.
func (s *Sweeper) Run(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.sweep(ctx)
		}
	}
}

// Sweep runs a single reap pass.
func (s *Sweeper) Sweep(ctx context.Context) (int64, error) {
	n, err := s.reaper.Reap(ctx, s.now())
	if err != nil {
		return 0, err
	}
	if s.onReap != nil {
		s.onReap(n)
	}
	return n, nil
}

func (s *Sweeper) sweep(ctx context.Context) {
	n, err := s.Sweep(ctx)
	if err != nil {
		s.logger.WarnContext(ctx, "session sweep failed", "error", err)
		return
	}
	if n > 0 {
		s.logger.DebugContext(ctx, "expired sessions reaped", "count", n)
	}
}
