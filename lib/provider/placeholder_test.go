// Copyright 2026 The Envhatch Authors
// SPDX-License-Identifier: Apache-2.0

package provider

import (
	"bytes"
	"strings"
	"testing"

	"github.com/envhatch/envhatch/lib/codec"
	"github.com/envhatch/envhatch/lib/declaration"
)

func TestTokenIssuer_StableAndOpaque(t *testing.T) {
	issuer, err := NewTokenIssuer()
	if err != nil {
		t.Fatalf("NewTokenIssuer: %v", err)
	}

	first := issuer.Token("API_KEY")
	second := issuer.Token("API_KEY")
	if first != second {
		t.Errorf("same issuer produced different tokens: %q vs %q", first, second)
	}
	if !strings.HasPrefix(first, TokenPrefix) {
		t.Errorf("token %q missing prefix %q", first, TokenPrefix)
	}
	if strings.Contains(first, "API_KEY") {
		t.Errorf("token %q leaks the secret name", first)
	}

	if other := issuer.Token("DB_PASSWORD"); other == first {
		t.Error("distinct names produced the same token")
	}
}

func TestTokenIssuer_SessionsDiffer(t *testing.T) {
	first, err := NewTokenIssuer()
	if err != nil {
		t.Fatalf("NewTokenIssuer: %v", err)
	}
	second, err := NewTokenIssuer()
	if err != nil {
		t.Fatalf("NewTokenIssuer: %v", err)
	}

	if first.Token("API_KEY") == second.Token("API_KEY") {
		t.Error("two sessions minted the same token for the same name")
	}
}

func TestTokenIssuer_Assign(t *testing.T) {
	issuer, err := NewTokenIssuer()
	if err != nil {
		t.Fatalf("NewTokenIssuer: %v", err)
	}

	assignments := issuer.Assign([]SecretInfo{
		{Name: "A", Destinations: declaration.Wildcard()},
		{Name: "B", Destinations: declaration.Wildcard()},
	})
	if len(assignments) != 2 {
		t.Fatalf("Assign produced %d assignments, want 2", len(assignments))
	}
	if assignments["A"] != issuer.Token("A") {
		t.Error("assignment disagrees with Token for the same name")
	}
}

func TestReadPlaceholderPayload(t *testing.T) {
	encoded, err := codec.Marshal(PlaceholderPayload{
		Placeholders: map[string]string{"API_KEY": "EHP_abc"},
	})
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}

	assignments, err := ReadPlaceholderPayload(bytes.NewReader(encoded))
	if err != nil {
		t.Fatalf("ReadPlaceholderPayload: %v", err)
	}
	if assignments["API_KEY"] != "EHP_abc" {
		t.Errorf("assignments = %v", assignments)
	}
}

func TestParsePlaceholderPayload_ZeroesInput(t *testing.T) {
	encoded, err := codec.Marshal(PlaceholderPayload{
		Placeholders: map[string]string{"API_KEY": "EHP_abc"},
	})
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}

	if _, err := parsePlaceholderPayload(encoded); err != nil {
		t.Fatalf("parsePlaceholderPayload: %v", err)
	}
	for index, b := range encoded {
		if b != 0 {
			t.Fatalf("payload byte %d not zeroed after parse", index)
		}
	}

	// The error path zeroes too.
	malformed := []byte{0xff, 0xff, 0xff}
	if _, err := parsePlaceholderPayload(malformed); err == nil {
		t.Error("expected error for malformed payload")
	}
	for index, b := range malformed {
		if b != 0 {
			t.Fatalf("malformed payload byte %d not zeroed", index)
		}
	}
}

func TestReadPlaceholderPayload_Errors(t *testing.T) {
	if _, err := ReadPlaceholderPayload(bytes.NewReader(nil)); err == nil {
		t.Error("expected error for empty payload")
	}
	if _, err := ReadPlaceholderPayload(strings.NewReader("not cbor at all")); err == nil {
		t.Error("expected error for malformed payload")
	}

	empty, err := codec.Marshal(PlaceholderPayload{})
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	if _, err := ReadPlaceholderPayload(bytes.NewReader(empty)); err == nil {
		t.Error("expected error for payload with no assignments")
	}
}
