// Copyright 2026 The Envhatch Authors
// SPDX-License-Identifier: Apache-2.0

package fuse

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"syscall"

	gofuse "github.com/hanwen/go-fuse/v2/fs"
	"github.com/hanwen/go-fuse/v2/fuse"

	"github.com/envhatch/envhatch/lib/clock"
	"github.com/envhatch/envhatch/lib/guestfs"
)

// Options configures the FUSE mount.
type Options struct {
	// Mountpoint is the directory where the filesystem is mounted.
	// Created if it does not exist.
	Mountpoint string

	// Source provides the directory contents. Consulted fresh on
	// every kernel request.
	Source guestfs.Source

	// Clock provides file attribute timestamps. If nil, defaults to
	// clock.Real().
	Clock clock.Clock

	// FsName is the filesystem name shown in /proc/mounts. Defaults
	// to "envhatch".
	FsName string

	// AllowOther permits other users (including root) to access the
	// mount. Requires user_allow_other in /etc/fuse.conf. Set this
	// when the guest runtime accesses the mount as a different UID.
	AllowOther bool

	// Logger receives diagnostic messages. If nil, a no-op logger
	// is used.
	Logger *slog.Logger
}

// Mount mounts the synthetic directory at the configured mountpoint.
// The caller must call Unmount on the returned server when done.
func Mount(options Options) (*fuse.Server, error) {
	if options.Mountpoint == "" {
		return nil, fmt.Errorf("mountpoint is required")
	}
	if options.Source == nil {
		return nil, fmt.Errorf("source is required")
	}
	if options.Clock == nil {
		options.Clock = clock.Real()
	}
	if options.FsName == "" {
		options.FsName = "envhatch"
	}
	if options.Logger == nil {
		options.Logger = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
			Level: slog.LevelError,
		}))
	}

	if err := os.MkdirAll(options.Mountpoint, 0o755); err != nil {
		return nil, fmt.Errorf("creating mountpoint %s: %w", options.Mountpoint, err)
	}

	root := &rootNode{options: &options}

	// No entry, attribute, or negative caching: the directory must
	// reflect the current declaration file state on every access.
	server, err := gofuse.Mount(options.Mountpoint, root, &gofuse.Options{
		MountOptions: fuse.MountOptions{
			FsName:     options.FsName,
			Name:       "envhatch",
			AllowOther: options.AllowOther,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("mounting FUSE filesystem at %s: %w", options.Mountpoint, err)
	}

	options.Logger.Info("guest directory mounted", "mountpoint", options.Mountpoint)
	return server, nil
}

// rootNode is the single directory. Its children are the provider's
// current entries; there are no subdirectories.
type rootNode struct {
	gofuse.Inode
	options *Options
}

var _ gofuse.InodeEmbedder = (*rootNode)(nil)
var _ gofuse.NodeLookuper = (*rootNode)(nil)
var _ gofuse.NodeReaddirer = (*rootNode)(nil)
var _ gofuse.NodeGetattrer = (*rootNode)(nil)
var _ gofuse.NodeCreater = (*rootNode)(nil)
var _ gofuse.NodeUnlinker = (*rootNode)(nil)
var _ gofuse.NodeMkdirer = (*rootNode)(nil)

func (r *rootNode) Getattr(ctx context.Context, f gofuse.FileHandle, out *fuse.AttrOut) syscall.Errno {
	out.Mode = syscall.S_IFDIR | 0o555
	now := uint64(r.options.Clock.Now().Unix())
	out.Atime, out.Mtime, out.Ctime = now, now, now
	return 0
}

func (r *rootNode) Lookup(ctx context.Context, name string, out *fuse.EntryOut) (*gofuse.Inode, syscall.Errno) {
	content, ok := r.options.Source.Content(name)
	if !ok {
		return nil, syscall.ENOENT
	}

	node := &entryNode{options: r.options, name: name}
	child := r.NewInode(ctx, node, gofuse.StableAttr{Mode: syscall.S_IFREG})
	out.Mode = syscall.S_IFREG | 0o444
	out.Size = uint64(len(content))
	return child, 0
}

func (r *rootNode) Readdir(ctx context.Context) (gofuse.DirStream, syscall.Errno) {
	names := r.options.Source.Names()

	entries := make([]fuse.DirEntry, 0, len(names))
	for _, name := range names {
		entries = append(entries, fuse.DirEntry{
			Name: name,
			Mode: syscall.S_IFREG,
		})
	}
	return &sliceDirStream{entries: entries}, 0
}

// Create fails: the directory is read-only.
func (r *rootNode) Create(ctx context.Context, name string, flags uint32, mode uint32, out *fuse.EntryOut) (*gofuse.Inode, gofuse.FileHandle, uint32, syscall.Errno) {
	return nil, nil, 0, syscall.EROFS
}

// Unlink fails: the directory is read-only.
func (r *rootNode) Unlink(ctx context.Context, name string) syscall.Errno {
	return syscall.EROFS
}

// Mkdir fails: no subdirectories exist, and the surface is read-only.
func (r *rootNode) Mkdir(ctx context.Context, name string, mode uint32, out *fuse.EntryOut) (*gofuse.Inode, syscall.Errno) {
	return nil, syscall.EROFS
}

// entryNode is one guest-visible entry. It holds no content: Getattr
// re-resolves for current size, and Open takes the per-handle
// snapshot.
type entryNode struct {
	gofuse.Inode
	options *Options
	name    string
}

var _ gofuse.InodeEmbedder = (*entryNode)(nil)
var _ gofuse.NodeGetattrer = (*entryNode)(nil)
var _ gofuse.NodeSetattrer = (*entryNode)(nil)
var _ gofuse.NodeOpener = (*entryNode)(nil)
var _ gofuse.NodeReader = (*entryNode)(nil)

func (e *entryNode) Getattr(ctx context.Context, f gofuse.FileHandle, out *fuse.AttrOut) syscall.Errno {
	content, ok := e.options.Source.Content(e.name)
	if !ok {
		return syscall.ENOENT
	}
	out.Mode = syscall.S_IFREG | 0o444
	out.Size = uint64(len(content))
	now := uint64(e.options.Clock.Now().Unix())
	out.Atime, out.Mtime, out.Ctime = now, now, now
	return 0
}

// Setattr rejects truncation and every other attribute change.
func (e *entryNode) Setattr(ctx context.Context, f gofuse.FileHandle, in *fuse.SetAttrIn, out *fuse.AttrOut) syscall.Errno {
	return syscall.EROFS
}

func (e *entryNode) Open(ctx context.Context, flags uint32) (gofuse.FileHandle, uint32, syscall.Errno) {
	if flags&(syscall.O_WRONLY|syscall.O_RDWR|syscall.O_APPEND|syscall.O_TRUNC) != 0 {
		return nil, 0, syscall.EROFS
	}

	content, ok := e.options.Source.Content(e.name)
	if !ok {
		return nil, 0, syscall.ENOENT
	}

	snapshot := make([]byte, len(content))
	copy(snapshot, content)

	// Direct I/O keeps the kernel page cache out of the way: two
	// opens of the same entry may legitimately see different bytes.
	return &readHandle{content: snapshot}, fuse.FOPEN_DIRECT_IO, 0
}

func (e *entryNode) Read(ctx context.Context, f gofuse.FileHandle, dest []byte, off int64) (fuse.ReadResult, syscall.Errno) {
	handle, ok := f.(*readHandle)
	if !ok {
		return nil, syscall.EBADF
	}
	return handle.read(dest, off)
}

// readHandle is a per-open content snapshot.
type readHandle struct {
	content []byte
}

var _ gofuse.FileReader = (*readHandle)(nil)
var _ gofuse.FileWriter = (*readHandle)(nil)

func (h *readHandle) Read(ctx context.Context, dest []byte, off int64) (fuse.ReadResult, syscall.Errno) {
	return h.read(dest, off)
}

func (h *readHandle) read(dest []byte, off int64) (fuse.ReadResult, syscall.Errno) {
	if off < 0 || off >= int64(len(h.content)) {
		return fuse.ReadResultData(nil), 0
	}
	end := off + int64(len(dest))
	if end > int64(len(h.content)) {
		end = int64(len(h.content))
	}
	return fuse.ReadResultData(h.content[off:end]), 0
}

// Write fails: snapshots are immutable and the surface is read-only.
func (h *readHandle) Write(ctx context.Context, data []byte, off int64) (uint32, syscall.Errno) {
	return 0, syscall.EROFS
}

// sliceDirStream implements fs.DirStream from a slice of entries.
type sliceDirStream struct {
	entries []fuse.DirEntry
	index   int
}

func (s *sliceDirStream) HasNext() bool {
	return s.index < len(s.entries)
}

func (s *sliceDirStream) Next() (fuse.DirEntry, syscall.Errno) {
	if s.index >= len(s.entries) {
		return fuse.DirEntry{}, syscall.EINVAL
	}
	entry := s.entries[s.index]
	s.index++
	return entry, 0
}

func (s *sliceDirStream) Close() {}
