// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package auth

import (
	"crypto/sha256"
	"encoding/hex"

	"github.com/google/uuid"
	"github.com/samber/oops"
)

// GenerateResetToken returns a random UUID token and its stored hash.
func GenerateResetToken() (token, hash string, err error) {
	id, err := uuid.NewRandom()
	if err != nil {
		return "", "", oops.Code("RESET_TOKEN_GENERATE_FAILED").Wrap(err)
	}

	token = id.String()
	return token, HashToken(token), nil
}

// HashToken computes the SHA256 hex digest of an opaque token. Reset tokens
// and persisted session IDs are stored in this form.
func HashToken(token string) string {
	h := sha256.Sum256([]byte(token))
	return hex.EncodeToString(h[:])
}

