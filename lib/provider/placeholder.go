// Copyright 2026 The Envhatch Authors
// SPDX-License-Identifier: Apache-2.0

package provider

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"io"

	"github.com/zeebo/blake3"

	"github.com/envhatch/envhatch/lib/codec"
	"github.com/envhatch/envhatch/lib/secret"
)

// TokenPrefix marks every placeholder token minted by TokenIssuer.
// The prefix makes stray tokens easy to spot in logs and lets the
// egress substituter skip header values that cannot contain one.
const TokenPrefix = "EHP_"

// TokenIssuer mints placeholder tokens for one session. A token is
// the keyed BLAKE3 hash of the secret's name under a random session
// key: opaque, stable for the session, and never derived from the
// secret's value.
type TokenIssuer struct {
	key [32]byte
}

// NewTokenIssuer creates an issuer with a fresh random session key.
func NewTokenIssuer() (*TokenIssuer, error) {
	var issuer TokenIssuer
	if _, err := rand.Read(issuer.key[:]); err != nil {
		return nil, fmt.Errorf("generating session key: %w", err)
	}
	return &issuer, nil
}

// Token returns the session token for name. The same issuer always
// returns the same token for the same name.
func (i *TokenIssuer) Token(name string) string {
	hasher, err := blake3.NewKeyed(i.key[:])
	if err != nil {
		panic("provider: BLAKE3 keyed hash initialization failed: " + err.Error())
	}
	hasher.Write([]byte(name))
	sum := hasher.Sum(nil)
	return TokenPrefix + hex.EncodeToString(sum[:20])
}

// Assign mints one token per listed secret, in the form
// SetPlaceholders consumes.
func (i *TokenIssuer) Assign(secrets []SecretInfo) map[string]string {
	assignments := make(map[string]string, len(secrets))
	for _, info := range secrets {
		assignments[info.Name] = i.Token(info.Name)
	}
	return assignments
}

// PlaceholderPayload is the CBOR document an orchestrator pipes to
// the mount daemon when it allocates tokens itself instead of letting
// the daemon mint them. It carries tokens only — no secret material.
type PlaceholderPayload struct {
	// Placeholders maps secret names to their session tokens.
	Placeholders map[string]string `cbor:"placeholders"`
}

// ReadPlaceholderPayload reads a CBOR-encoded PlaceholderPayload from
// reader (typically the daemon's stdin, read to completion) and
// returns the assignments.
func ReadPlaceholderPayload(reader io.Reader) (map[string]string, error) {
	raw, err := io.ReadAll(reader)
	if err != nil {
		return nil, fmt.Errorf("reading placeholder payload: %w", err)
	}
	return parsePlaceholderPayload(raw)
}

// parsePlaceholderPayload decodes raw and zeroes it in place, whether
// or not decoding succeeds. The payload carries tokens rather than
// values, but it arrives over a channel the orchestrator controls and
// is not kept around after parsing.
func parsePlaceholderPayload(raw []byte) (map[string]string, error) {
	if len(raw) == 0 {
		return nil, fmt.Errorf("placeholder payload is empty")
	}

	var payload PlaceholderPayload
	err := codec.Unmarshal(raw, &payload)
	secret.Zero(raw)
	if err != nil {
		return nil, fmt.Errorf("parsing placeholder payload: %w", err)
	}
	if len(payload.Placeholders) == 0 {
		return nil, fmt.Errorf("placeholder payload has no assignments")
	}
	return payload.Placeholders, nil
}
