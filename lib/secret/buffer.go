// Copyright 2026 The Envhatch Authors
// SPDX-License-Identifier: Apache-2.0

package secret

import (
	"fmt"
	"sync"

	"golang.org/x/sys/unix"
)

// Buffer holds a sensitive value in memory that is locked against
// swapping, excluded from core dumps, and zeroed on close. The backing
// memory is allocated via mmap outside the Go heap.
//
// A Buffer must not be copied after creation. Call Close when the
// value is no longer needed; after Close, any access to the contents
// panics.
type Buffer struct {
	mu     sync.Mutex
	data   []byte
	length int
	closed bool
}

// New allocates a secret buffer of the given size. The buffer is
// backed by an anonymous mmap region that is locked into physical RAM
// (mlock), excluded from core dumps (MADV_DONTDUMP), and invisible to
// the garbage collector. The caller must Close the buffer when done.
func New(size int) (*Buffer, error) {
	if size <= 0 {
		return nil, fmt.Errorf("secret: buffer size must be positive, got %d", size)
	}

	data, err := unix.Mmap(-1, 0, size, unix.PROT_READ|unix.PROT_WRITE, unix.MAP_PRIVATE|unix.MAP_ANONYMOUS)
	if err != nil {
		return nil, fmt.Errorf("secret: mmap failed: %w", err)
	}

	if err := unix.Mlock(data); err != nil {
		unix.Munmap(data)
		return nil, fmt.Errorf("secret: mlock failed: %w", err)
	}

	if err := unix.Madvise(data, unix.MADV_DONTDUMP); err != nil {
		unix.Munlock(data)
		unix.Munmap(data)
		return nil, fmt.Errorf("secret: madvise(MADV_DONTDUMP) failed: %w", err)
	}

	return &Buffer{
		data:   data,
		length: size,
	}, nil
}

// NewFromBytes creates a secret buffer from existing data. The source
// bytes are copied into the protected region and then zeroed in place,
// so the caller's slice no longer holds the value.
func NewFromBytes(source []byte) (*Buffer, error) {
	if len(source) == 0 {
		return nil, fmt.Errorf("secret: cannot create buffer from empty source")
	}

	buffer, err := New(len(source))
	if err != nil {
		return nil, err
	}

	copy(buffer.data, source)
	Zero(source)

	return buffer, nil
}

// NewFromString creates a secret buffer from a string value. The
// source string is immutable and cannot be zeroed — the heap copy it
// occupies persists until collected. Use this only at boundaries that
// hand over string-typed values (declaration resolution produces
// strings).
func NewFromString(value string) (*Buffer, error) {
	if value == "" {
		return nil, fmt.Errorf("secret: cannot create buffer from empty string")
	}

	buffer, err := New(len(value))
	if err != nil {
		return nil, err
	}

	copy(buffer.data, value)
	return buffer, nil
}

// Bytes returns the value. The returned slice points directly into the
// mmap region — do not hold references to it beyond the lifetime of
// the Buffer. Panics if the buffer has been closed.
func (b *Buffer) Bytes() []byte {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		panic("secret: read from closed buffer")
	}

	return b.data[:b.length]
}

// String returns the value as a string. The returned string is backed
// by a heap-allocated copy (Go strings are immutable and must live on
// the heap), so use it only at API boundaries that require strings.
// Prefer Bytes where possible. Panics if the buffer has been closed.
func (b *Buffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		panic("secret: read from closed buffer")
	}

	return string(b.data[:b.length])
}

// Len returns the size of the value.
func (b *Buffer) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()

	return b.length
}

// Close zeros the contents, unlocks and unmaps the memory. After
// Close, access to Bytes or String panics. Close is idempotent.
func (b *Buffer) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return nil
	}
	b.closed = true

	Zero(b.data)

	// Unlock and unmap failures are reported but not fatal — the
	// memory is released when the process exits regardless.
	var firstError error
	if err := unix.Munlock(b.data); err != nil && firstError == nil {
		firstError = fmt.Errorf("secret: munlock failed: %w", err)
	}
	if err := unix.Munmap(b.data); err != nil && firstError == nil {
		firstError = fmt.Errorf("secret: munmap failed: %w", err)
	}

	b.data = nil
	return firstError
}

// Zero clears a byte slice in place. Use it on transient heap copies
// of sensitive data before releasing them.
func Zero(data []byte) {
	for index := range data {
		data[index] = 0
	}
}
