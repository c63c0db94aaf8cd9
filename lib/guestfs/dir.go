// Copyright 2026 The Envhatch Authors
// SPDX-License-Identifier: Apache-2.0

package guestfs

import (
	"io/fs"
	"os"
	"strings"
	"syscall"
	"time"

	"github.com/envhatch/envhatch/lib/clock"
)

// Source supplies the current directory contents. Both providers
// implement it. Implementations must treat every call as independent:
// Dir calls them fresh per operation and never caches the results.
type Source interface {
	// Names returns the currently visible entry names, each once, in
	// stable order for a given source state.
	Names() []string

	// Content returns the bytes open would serve for name, or false
	// when the name is not currently visible.
	Content(name string) ([]byte, bool)
}

// Dir is the guest-visible flat directory.
type Dir struct {
	source Source
	clock  clock.Clock
}

// New creates a Dir over source. A nil clk defaults to the real
// clock; tests inject a fake for deterministic timestamps.
func New(source Source, clk clock.Clock) *Dir {
	if clk == nil {
		clk = clock.Real()
	}
	return &Dir{source: source, clock: clk}
}

// writeFlags are the open flags a read-only filesystem rejects.
const writeFlags = os.O_WRONLY | os.O_RDWR | os.O_APPEND | os.O_CREATE | os.O_TRUNC

// List returns the names in the root directory. Only the root path is
// valid; every other path is not found.
func (d *Dir) List(path string) ([]string, error) {
	if !isRoot(path) {
		return nil, &fs.PathError{Op: "list", Path: path, Err: fs.ErrNotExist}
	}
	return d.source.Names(), nil
}

// Stat returns metadata for the root directory or a single entry. The
// reported size of an entry equals the byte length of the content an
// open at this moment would serve.
func (d *Dir) Stat(path string) (fs.FileInfo, error) {
	if isRoot(path) {
		return &fileInfo{name: "/", mode: fs.ModeDir | 0o555, modTime: d.clock.Now()}, nil
	}

	name, ok := childName(path)
	if !ok {
		return nil, &fs.PathError{Op: "stat", Path: path, Err: fs.ErrNotExist}
	}
	content, ok := d.source.Content(name)
	if !ok {
		return nil, &fs.PathError{Op: "stat", Path: path, Err: fs.ErrNotExist}
	}
	return &fileInfo{
		name:    name,
		size:    int64(len(content)),
		mode:    0o444,
		modTime: d.clock.Now(),
	}, nil
}

// Open opens an entry for reading. Any write-capable flag fails with
// EROFS before the name is even considered. The returned handle owns
// a snapshot of the content taken now; later source changes do not
// affect it.
func (d *Dir) Open(path string, flag int) (*Handle, error) {
	if flag&writeFlags != 0 {
		return nil, &fs.PathError{Op: "open", Path: path, Err: syscall.EROFS}
	}

	// The root is a directory, never openable as a file.
	name, ok := childName(path)
	if !ok {
		return nil, &fs.PathError{Op: "open", Path: path, Err: fs.ErrNotExist}
	}
	content, ok := d.source.Content(name)
	if !ok {
		return nil, &fs.PathError{Op: "open", Path: path, Err: fs.ErrNotExist}
	}

	snapshot := make([]byte, len(content))
	copy(snapshot, content)
	return &Handle{name: name, content: snapshot}, nil
}

// isRoot reports whether path names the root directory.
func isRoot(path string) bool {
	return path == "/" || path == ""
}

// childName extracts the entry name from a one-level child path.
// Returns false for the root and for any nested path.
func childName(path string) (string, bool) {
	name := strings.TrimPrefix(path, "/")
	if name == "" || strings.ContainsRune(name, '/') {
		return "", false
	}
	return name, true
}

// fileInfo implements fs.FileInfo for directory entries.
type fileInfo struct {
	name    string
	size    int64
	mode    fs.FileMode
	modTime time.Time
}

func (i *fileInfo) Name() string       { return i.name }
func (i *fileInfo) Size() int64        { return i.size }
func (i *fileInfo) Mode() fs.FileMode  { return i.mode }
func (i *fileInfo) ModTime() time.Time { return i.modTime }
func (i *fileInfo) IsDir() bool        { return i.mode.IsDir() }
func (i *fileInfo) Sys() any           { return nil }
