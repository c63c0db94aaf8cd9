// Copyright 2026 The Envhatch Authors
// SPDX-License-Identifier: Apache-2.0

// Package secret provides a memory-safe buffer for sensitive values on
// the host side of the placeholder boundary: resolved secret values
// held between resolution and egress substitution.
//
// [Buffer] allocates memory outside the Go heap via mmap(MAP_ANONYMOUS),
// locks it into physical RAM via mlock (preventing swap), and marks it
// excluded from core dumps via madvise(MADV_DONTDUMP). On Close, the
// memory is zeroed, unlocked, and unmapped. Because the memory lives
// outside the Go heap, the garbage collector cannot copy or relocate
// it, so a released value does not linger in reachable memory.
//
// Constructors:
//
//   - [New] -- allocates a zero-filled buffer of a given size
//   - [NewFromBytes] -- copies into protected memory, zeros the source
//   - [NewFromString] -- copies a string value (the immutable source
//     string cannot be zeroed; prefer NewFromBytes where possible)
//
// [Zero] clears a byte slice in place for callers that handle raw
// buffers before wrapping them. After Close, any access panics. Close
// is idempotent.
//
// Depends on golang.org/x/sys/unix. No Envhatch-internal dependencies.
package secret
