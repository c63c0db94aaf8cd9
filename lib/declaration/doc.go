// Copyright 2026 The Envhatch Authors
// SPDX-License-Identifier: Apache-2.0

// Package declaration parses the line-oriented declaration file that
// describes which entries a provider exposes to a guest, and resolves
// parsed declarations against an ambient name→value lookup.
//
// The grammar is one declaration per line:
//
//	# comment
//	NAME                  propagate the ambient value verbatim
//	NAME=literal          static value
//	NAME=                 static empty string
//	NAME=$OTHER           reference, expanded at resolution time
//	NAME=${OTHER}         reference, brace form
//	NAME@host1,host2=...  restrict egress substitution to the listed hosts
//
// Identifiers match [A-Za-z_][A-Za-z0-9_]*. Blank lines and lines
// starting with # are skipped. Malformed lines are silently dropped —
// the file degrades by omission, never by error. A missing or
// unreadable file parses as an empty declaration list for the same
// reason: the worst outcome a consumer can observe is an empty
// directory.
//
// [Parse] and [Resolve] are pure functions. Callers that want live
// updates simply call them again; there is no cached state anywhere in
// this package.
//
// This package has no Envhatch-internal dependencies.
package declaration
