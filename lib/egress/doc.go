// Copyright 2026 The Envhatch Authors
// SPDX-License-Identifier: Apache-2.0

// Package egress performs just-in-time placeholder substitution on
// outbound HTTP requests. It is the only component that ever puts a
// real secret value on the wire, and it does so exclusively toward
// hosts the secret's declaration allow-lists.
//
// [Substituter] wraps an http.RoundTripper. For each request it scans
// header values for the session's placeholder tokens; a token whose
// secret allows the request's destination host is replaced with the
// current real value, and a token whose secret does not is forwarded
// unmodified — the upstream sees the placeholder, which carries no
// information about the value. Requests are cloned before rewriting,
// so the guest-side request object never holds a real value, and the
// resolved values themselves are staged in locked secret buffers that
// are zeroed once the upstream has answered.
package egress
