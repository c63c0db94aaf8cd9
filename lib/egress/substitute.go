// Copyright 2026 The Envhatch Authors
// SPDX-License-Identifier: Apache-2.0

package egress

import (
	"io"
	"log/slog"
	"net/http"
	"strings"

	"github.com/envhatch/envhatch/lib/declaration"
	"github.com/envhatch/envhatch/lib/secret"
)

// SecretSource is the reverse surface the secrets provider exposes to
// the egress path. It is the sole translator between placeholder
// space and value space.
type SecretSource interface {
	// Tokens returns the session's placeholder tokens.
	Tokens() []string

	// TokenName maps a token back to its secret name.
	TokenName(token string) (string, bool)

	// GetSecretValue resolves the current real value for a secret
	// name. Empty when unknown or unresolvable.
	GetSecretValue(name string) string

	// DestinationsFor returns the destination allow-list currently
	// declared for a secret name.
	DestinationsFor(name string) (declaration.DestinationSet, bool)
}

// Substituter is an http.RoundTripper that rewrites placeholder
// tokens in outbound request headers to real secret values when the
// destination host is allowed.
type Substituter struct {
	source SecretSource
	next   http.RoundTripper
	logger *slog.Logger
}

// New creates a Substituter in front of next. A nil next uses
// http.DefaultTransport; a nil logger discards diagnostics.
func New(source SecretSource, next http.RoundTripper, logger *slog.Logger) *Substituter {
	if next == nil {
		next = http.DefaultTransport
	}
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Substituter{source: source, next: next, logger: logger}
}

var _ http.RoundTripper = (*Substituter)(nil)

// RoundTrip substitutes allowed placeholder tokens in the request's
// headers and forwards it. The incoming request is never mutated:
// rewriting happens on a clone, so the guest-side request object
// never holds a real value.
func (s *Substituter) RoundTrip(request *http.Request) (*http.Response, error) {
	host := request.URL.Hostname()
	tokens := s.source.Tokens()

	// Each secret is resolved at most once per request and staged in a
	// locked buffer for the in-flight window. The buffers are zeroed as
	// soon as the upstream has answered.
	staged := make(map[string]*secret.Buffer)
	defer func() {
		for _, buffer := range staged {
			if buffer != nil {
				buffer.Close()
			}
		}
	}()

	outbound := request
	for name, values := range request.Header {
		for index, value := range values {
			rewritten := s.rewrite(value, tokens, host, staged)
			if rewritten == value {
				continue
			}
			if outbound == request {
				outbound = request.Clone(request.Context())
			}
			outbound.Header[name][index] = rewritten
		}
	}

	return s.next.RoundTrip(outbound)
}

// rewrite applies every allowed token substitution to one header
// value. Tokens whose secret does not allow the destination host stay
// in place — the upstream sees the placeholder, not the value.
func (s *Substituter) rewrite(value string, tokens []string, host string, staged map[string]*secret.Buffer) string {
	for _, token := range tokens {
		if !strings.Contains(value, token) {
			continue
		}
		name, ok := s.source.TokenName(token)
		if !ok {
			continue
		}
		destinations, ok := s.source.DestinationsFor(name)
		if !ok || !destinations.Allows(host) {
			s.logger.Warn("placeholder used toward disallowed destination",
				"secret", name,
				"host", host,
			)
			continue
		}
		buffer, resolved := staged[name]
		if !resolved {
			buffer = s.stage(name)
			staged[name] = buffer
		}
		replacement := ""
		if buffer != nil {
			replacement = buffer.String()
		}
		value = strings.ReplaceAll(value, token, replacement)
		s.logger.Debug("substituted placeholder on egress",
			"secret", name,
			"host", host,
		)
	}
	return value
}

// stage resolves a secret's current value into a locked buffer. A nil
// buffer means the substitution inserts nothing: the secret is
// unresolvable (empty content) or the buffer could not be allocated.
func (s *Substituter) stage(name string) *secret.Buffer {
	value := s.source.GetSecretValue(name)
	if value == "" {
		return nil
	}
	buffer, err := secret.NewFromString(value)
	if err != nil {
		s.logger.Warn("failed to stage secret value in locked memory",
			"secret", name,
			"error", err,
		)
		return nil
	}
	return buffer
}
