// Copyright 2026 The Envhatch Authors
// SPDX-License-Identifier: Apache-2.0

// Package fuse serves a guestfs.Dir over a kernel FUSE mount so a
// sandboxed guest can consume the synthetic directory through plain
// filesystem calls.
//
// The mount is a single flat read-only directory. Lookup, Readdir,
// and Getattr consult the provider fresh on every kernel request, and
// no entry or attribute caching is enabled, so edits to the
// declaration file become visible to the guest on its next access
// with no invalidation channel. Open snapshots the content once per
// file handle; write-capable opens, truncation, creation, and unlink
// all fail with EROFS.
//
// Grounding: the node and handle structure follows the artifact FUSE
// mounts this package was derived from, trimmed to a flat namespace.
package fuse
