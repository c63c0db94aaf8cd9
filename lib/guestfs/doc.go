// Copyright 2026 The Envhatch Authors
// SPDX-License-Identifier: Apache-2.0

// Package guestfs implements the flat read-only directory surface a
// guest sees: a single root directory whose files are the entries a
// provider currently exposes.
//
// [Dir] wraps a [Source] (an environment or secrets provider) and
// answers list, stat, and open. Every call consults the Source fresh —
// there is no cache between calls, which is how edits to the
// declaration file and changes to ambient values become visible to
// the guest without an invalidation channel.
//
// The namespace is a lookup table, not a tree: no subdirectories
// exist, and any path with a nested separator is not found. Unknown
// names, excluded names, and names whose value does not currently
// resolve are all the same not-found condition; a guest cannot tell
// "hidden" from "absent". Any write-capable open flag, and any write
// on an open handle, fails with EROFS.
//
// A successful open returns a [Handle] holding a fixed byte snapshot
// of the content at open time. Handles are independent: concurrent
// opens of the same name each own their snapshot and cursor.
//
// The fuse subpackage serves a Dir over a real kernel mount.
package guestfs
