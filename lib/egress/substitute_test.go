// Copyright 2026 The Envhatch Authors
// SPDX-License-Identifier: Apache-2.0

package egress

import (
	"net/http"
	"os"
	"path/filepath"
	"testing"

	"github.com/envhatch/envhatch/lib/provider"
	"github.com/envhatch/envhatch/lib/secret"
)

// captureTransport records the outbound request instead of sending it.
type captureTransport struct {
	request *http.Request
}

func (c *captureTransport) RoundTrip(request *http.Request) (*http.Response, error) {
	c.request = request
	return &http.Response{StatusCode: http.StatusOK, Request: request}, nil
}

// testSecrets builds a secrets provider with one assigned placeholder.
func testSecrets(t *testing.T, declarations string) *provider.Secrets {
	t.Helper()
	path := filepath.Join(t.TempDir(), "declarations")
	if err := os.WriteFile(path, []byte(declarations), 0o600); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	secrets, err := provider.NewSecrets(provider.SecretsOptions{
		DeclarationPath: path,
		Lookup:          func(string) (string, bool) { return "", false },
	})
	if err != nil {
		t.Fatalf("NewSecrets: %v", err)
	}
	return secrets
}

func roundTrip(t *testing.T, substituter *Substituter, url string, headers map[string]string) *http.Request {
	t.Helper()
	request, err := http.NewRequest(http.MethodGet, url, nil)
	if err != nil {
		t.Fatalf("NewRequest: %v", err)
	}
	for name, value := range headers {
		request.Header.Set(name, value)
	}
	if _, err := substituter.RoundTrip(request); err != nil {
		t.Fatalf("RoundTrip: %v", err)
	}
	return request
}

func TestSubstituter_AllowedDestination(t *testing.T) {
	secrets := testSecrets(t, "API_KEY@api.example.com=real-value\n")
	secrets.SetPlaceholders(map[string]string{"API_KEY": "EHP_tok"})

	capture := &captureTransport{}
	substituter := New(secrets, capture, nil)

	original := roundTrip(t, substituter, "https://api.example.com/v1", map[string]string{
		"Authorization": "Bearer EHP_tok",
	})

	if got := capture.request.Header.Get("Authorization"); got != "Bearer real-value" {
		t.Errorf("outbound Authorization = %q, want the real value", got)
	}
	// The guest-side request object is untouched.
	if got := original.Header.Get("Authorization"); got != "Bearer EHP_tok" {
		t.Errorf("original Authorization = %q, want the placeholder", got)
	}
}

func TestSubstituter_DisallowedDestinationKeepsToken(t *testing.T) {
	secrets := testSecrets(t, "API_KEY@api.example.com=real-value\n")
	secrets.SetPlaceholders(map[string]string{"API_KEY": "EHP_tok"})

	capture := &captureTransport{}
	substituter := New(secrets, capture, nil)

	roundTrip(t, substituter, "https://evil.example.com/v1", map[string]string{
		"Authorization": "Bearer EHP_tok",
	})

	if got := capture.request.Header.Get("Authorization"); got != "Bearer EHP_tok" {
		t.Errorf("outbound Authorization = %q, want the placeholder preserved", got)
	}
}

func TestSubstituter_WildcardDestination(t *testing.T) {
	secrets := testSecrets(t, "API_KEY=real-value\n")
	secrets.SetPlaceholders(map[string]string{"API_KEY": "EHP_tok"})

	capture := &captureTransport{}
	substituter := New(secrets, capture, nil)

	roundTrip(t, substituter, "https://anywhere.example.net/", map[string]string{
		"X-Api-Key": "EHP_tok",
	})

	if got := capture.request.Header.Get("X-Api-Key"); got != "real-value" {
		t.Errorf("outbound X-Api-Key = %q, want the real value", got)
	}
}

func TestSubstituter_MultipleTokensInOneValue(t *testing.T) {
	secrets := testSecrets(t, "USER=alice\nPASS=wonder\n")
	secrets.SetPlaceholders(map[string]string{"USER": "EHP_u", "PASS": "EHP_p"})

	capture := &captureTransport{}
	substituter := New(secrets, capture, nil)

	roundTrip(t, substituter, "https://api.example.com/", map[string]string{
		"X-Credentials": "EHP_u:EHP_p",
	})

	if got := capture.request.Header.Get("X-Credentials"); got != "alice:wonder" {
		t.Errorf("outbound X-Credentials = %q, want alice:wonder", got)
	}
}

func TestSubstituter_NoTokensForwardsSameRequest(t *testing.T) {
	secrets := testSecrets(t, "API_KEY=real-value\n")
	secrets.SetPlaceholders(map[string]string{"API_KEY": "EHP_tok"})

	capture := &captureTransport{}
	substituter := New(secrets, capture, nil)

	original := roundTrip(t, substituter, "https://api.example.com/", map[string]string{
		"Accept": "application/json",
	})

	// No rewriting needed, so no clone is made.
	if capture.request != original {
		t.Error("request was cloned although nothing was substituted")
	}
}

// countingSource wraps a SecretSource and counts value resolutions.
type countingSource struct {
	SecretSource
	resolutions int
}

func (c *countingSource) GetSecretValue(name string) string {
	c.resolutions++
	return c.SecretSource.GetSecretValue(name)
}

func TestSubstituter_StagesValueOncePerRequest(t *testing.T) {
	secrets := testSecrets(t, "API_KEY=real-value\n")
	secrets.SetPlaceholders(map[string]string{"API_KEY": "EHP_tok"})
	source := &countingSource{SecretSource: secrets}

	capture := &captureTransport{}
	substituter := New(source, capture, nil)

	roundTrip(t, substituter, "https://api.example.com/", map[string]string{
		"Authorization": "Bearer EHP_tok",
		"X-Api-Key":     "EHP_tok",
	})

	if got := capture.request.Header.Get("Authorization"); got != "Bearer real-value" {
		t.Errorf("outbound Authorization = %q, want the real value", got)
	}
	if got := capture.request.Header.Get("X-Api-Key"); got != "real-value" {
		t.Errorf("outbound X-Api-Key = %q, want the real value", got)
	}
	// The value is resolved into its staging buffer once and reused for
	// every header in the same request.
	if source.resolutions != 1 {
		t.Errorf("GetSecretValue called %d times, want 1", source.resolutions)
	}
}

func TestSubstituter_StagedBufferReleasedAfterRoundTrip(t *testing.T) {
	secrets := testSecrets(t, "API_KEY=real-value\n")
	secrets.SetPlaceholders(map[string]string{"API_KEY": "EHP_tok"})

	capture := &captureTransport{}
	substituter := New(secrets, capture, nil)

	request, err := http.NewRequest(http.MethodGet, "https://api.example.com/", nil)
	if err != nil {
		t.Fatalf("NewRequest: %v", err)
	}
	request.Header.Set("Authorization", "Bearer EHP_tok")

	staged := make(map[string]*secret.Buffer)
	rewritten := substituter.rewrite("Bearer EHP_tok", secrets.Tokens(), "api.example.com", staged)
	if rewritten != "Bearer real-value" {
		t.Fatalf("rewrite = %q, want the real value", rewritten)
	}
	buffer := staged["API_KEY"]
	if buffer == nil {
		t.Fatal("no buffer staged for API_KEY")
	}
	if got := buffer.String(); got != "real-value" {
		t.Errorf("staged buffer = %q, want real-value", got)
	}

	// A full round trip closes its own buffers on return; reads from a
	// closed buffer panic, so Close here proves rewrite left it open.
	if err := buffer.Close(); err != nil {
		t.Errorf("Close: %v", err)
	}

	if _, err := substituter.RoundTrip(request); err != nil {
		t.Fatalf("RoundTrip: %v", err)
	}
	if got := capture.request.Header.Get("Authorization"); got != "Bearer real-value" {
		t.Errorf("outbound Authorization = %q, want the real value", got)
	}
}

func TestSubstituter_UnresolvableValueSubstitutesEmpty(t *testing.T) {
	secrets := testSecrets(t, "API_KEY=$MISSING\n")
	secrets.SetPlaceholders(map[string]string{"API_KEY": "EHP_tok"})

	capture := &captureTransport{}
	substituter := New(secrets, capture, nil)

	roundTrip(t, substituter, "https://api.example.com/", map[string]string{
		"Authorization": "Bearer EHP_tok",
	})

	// GetSecretValue degrades to empty for unresolvable secrets; the
	// placeholder is still removed rather than leaked upstream.
	if got := capture.request.Header.Get("Authorization"); got != "Bearer " {
		t.Errorf("outbound Authorization = %q, want %q", got, "Bearer ")
	}
}
