// Copyright 2026 The Envhatch Authors
// SPDX-License-Identifier: Apache-2.0

// Package provider implements the two declaration-backed providers
// that feed the guest-visible directory.
//
// [Environment] surfaces ordinary variables: each access performs a
// fresh parse of the declaration file and a fresh resolution against
// the ambient lookup, so edits to the file and changes to ambient
// values are visible on the next call without any invalidation
// signal. An exclusion set, negotiated once at VM attach time via
// [Environment.SetSecretNames], suppresses names that collide with
// the secrets provider.
//
// [Secrets] surfaces placeholder tokens instead of values. The
// orchestrator drives a three-phase protocol, in order:
//
//  1. [Secrets.ListSecrets] — declared names and destination
//     allow-lists, no values resolved.
//  2. [Secrets.SetPlaceholders] — installs the session's name↔token
//     association; until then the guest-visible directory is empty.
//  3. [Secrets.GetSecretValue] — resolves the current real value.
//     Called only by the egress substitution path, never by anything
//     the guest can reach.
//
// Tokens are minted by [TokenIssuer] from a random session key and
// the secret's name — never from values — and stay fixed for the
// session even as the underlying real value changes. The guest sees
// a secret as its token: whether the real value currently resolves
// is unobservable from inside.
//
// Both providers implement the guestfs Source contract (Names and
// Content) and are safe for concurrent use.
package provider
