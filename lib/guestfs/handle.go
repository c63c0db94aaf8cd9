// Copyright 2026 The Envhatch Authors
// SPDX-License-Identifier: Apache-2.0

package guestfs

import (
	"io"
	"io/fs"
	"sync"
	"syscall"
)

// Handle is an open entry. Its content is a fixed snapshot taken at
// open time; concurrent handles on the same name are independent.
// Reads may use the internal cursor (Read), an explicit offset
// (ReadAt), or fetch everything at once (ReadAll). All mutation
// attempts fail with EROFS.
type Handle struct {
	name string

	mu      sync.Mutex
	content []byte
	cursor  int
	closed  bool
}

// Name returns the entry name the handle was opened for.
func (h *Handle) Name() string { return h.name }

// Size returns the snapshot length in bytes.
func (h *Handle) Size() int64 {
	h.mu.Lock()
	defer h.mu.Unlock()
	return int64(len(h.content))
}

// Read reads from the internal cursor, advancing it. Implements
// io.Reader.
func (h *Handle) Read(p []byte) (int, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.closed {
		return 0, &fs.PathError{Op: "read", Path: h.name, Err: fs.ErrClosed}
	}
	if h.cursor >= len(h.content) {
		return 0, io.EOF
	}
	n := copy(p, h.content[h.cursor:])
	h.cursor += n
	return n, nil
}

// ReadAt reads from an explicit offset without moving the cursor.
// Implements io.ReaderAt.
func (h *Handle) ReadAt(p []byte, offset int64) (int, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.closed {
		return 0, &fs.PathError{Op: "read", Path: h.name, Err: fs.ErrClosed}
	}
	if offset < 0 {
		return 0, &fs.PathError{Op: "read", Path: h.name, Err: fs.ErrInvalid}
	}
	if offset >= int64(len(h.content)) {
		return 0, io.EOF
	}
	n := copy(p, h.content[offset:])
	if n < len(p) {
		return n, io.EOF
	}
	return n, nil
}

// ReadAll returns a copy of the entire snapshot, regardless of the
// cursor position.
func (h *Handle) ReadAll() ([]byte, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.closed {
		return nil, &fs.PathError{Op: "read", Path: h.name, Err: fs.ErrClosed}
	}
	content := make([]byte, len(h.content))
	copy(content, h.content)
	return content, nil
}

// Write always fails: the filesystem is read-only.
func (h *Handle) Write(p []byte) (int, error) {
	return 0, &fs.PathError{Op: "write", Path: h.name, Err: syscall.EROFS}
}

// WriteAt always fails: the filesystem is read-only.
func (h *Handle) WriteAt(p []byte, offset int64) (int, error) {
	return 0, &fs.PathError{Op: "write", Path: h.name, Err: syscall.EROFS}
}

// Truncate always fails: the filesystem is read-only.
func (h *Handle) Truncate(size int64) error {
	return &fs.PathError{Op: "truncate", Path: h.name, Err: syscall.EROFS}
}

// Close releases the handle. Idempotent.
func (h *Handle) Close() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.closed = true
	return nil
}
