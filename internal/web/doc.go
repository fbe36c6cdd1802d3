// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

// Package web serves the sessiongate HTTP API.
//
// Routes under /api/v1/ pass through the configured auth gate. The account
// routes at the root (/users, /sessions, /profile, /reset_password) manage
// their own session cookie and are not gated.
package web
