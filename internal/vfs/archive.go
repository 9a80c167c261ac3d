package vfs

import (
	"archive/zip"
	"context"
	"io"
	"io/fs"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/mholt/archives"

	"vfm/internal/vfserr"
)

// ArchiveProvider browses archive contents (zip, tar, 7z, ...) without
// extracting them. One read-only fs.FS is opened per archive root and kept
// for subsequent listings; only directory metadata is read to answer a
// listing.
type ArchiveProvider struct {
	mu    sync.Mutex
	roots map[string]*archiveRoot
}

type archiveRoot struct {
	fsys    fs.FS
	modTime time.Time
}

// NewArchiveProvider creates the archive backend.
func NewArchiveProvider() *ArchiveProvider {
	return &ArchiveProvider{roots: make(map[string]*archiveRoot)}
}

func (*ArchiveProvider) CanHandle(p Path) bool { return p.Scheme == SchemeArchive }

func (*ArchiveProvider) Capabilities() Capabilities {
	return Capabilities{FastList: true}
}

// root returns the cached fs.FS for an archive file, reopening it when the
// file on disk changed since it was first opened.
func (a *ArchiveProvider) root(ctx context.Context, archivePath string) (fs.FS, error) {
	info, err := os.Stat(archivePath)
	if err != nil {
		return nil, err
	}

	a.mu.Lock()
	defer a.mu.Unlock()
	if r, ok := a.roots[archivePath]; ok && r.modTime.Equal(info.ModTime()) {
		return r.fsys, nil
	}

	fsys, err := archives.FileSystem(ctx, archivePath, nil)
	if err != nil {
		return nil, err
	}
	a.roots[archivePath] = &archiveRoot{fsys: fsys, modTime: info.ModTime()}
	return fsys, nil
}

func internalOrDot(p Path) string {
	if p.InternalPath == "" {
		return "."
	}
	return p.InternalPath
}

// ListEntries lists the direct children of an internal archive directory.
// Intermediate directories implied by flat entry paths appear as directory
// entries, deduplicated by the archive file system.
func (a *ArchiveProvider) ListEntries(ctx context.Context, p Path) ([]Entry, error) {
	if err := ctx.Err(); err != nil {
		return nil, vfserr.Classify("list_entries", p.String(), err)
	}

	fsys, err := a.root(ctx, p.LocalPath)
	if err != nil {
		return nil, vfserr.Classify("list_entries", p.String(), err)
	}

	dirEntries, err := fs.ReadDir(fsys, internalOrDot(p))
	if err != nil {
		return nil, vfserr.Classify("list_entries", p.String(), err)
	}

	entries := make([]Entry, 0, len(dirEntries)+1)
	if parent, ok := p.Parent(); ok {
		entries = append(entries, ParentEntry(parent))
	}

	for _, de := range dirEntries {
		name := de.Name()
		entry := Entry{
			Name:           name,
			Path:           Archive(p.LocalPath, joinInternal(p.InternalPath, name)),
			Kind:           KindFile,
			CompressedSize: -1,
			Hidden:         strings.HasPrefix(name, "."),
		}
		if de.IsDir() {
			entry.Kind = KindDirectory
			entry.Permissions = "drwxr-xr-x"
		} else {
			entry.Permissions = "-rw-r--r--"
		}
		if info, ierr := de.Info(); ierr == nil {
			entry.Size = info.Size()
			entry.Modified = info.ModTime()
			if cs, ok := compressedSize(info); ok {
				entry.CompressedSize = cs
			}
		}
		entries = append(entries, entry)
	}

	SortEntries(entries)
	return entries, nil
}

func joinInternal(internal, name string) string {
	if internal == "" {
		return name
	}
	return internal + "/" + name
}

// compressedSize recovers the stored size for formats that expose their
// entry header through FileInfo.Sys (zip does).
func compressedSize(info fs.FileInfo) (int64, bool) {
	if h, ok := info.Sys().(*zip.FileHeader); ok {
		return int64(h.CompressedSize64), true
	}
	return 0, false
}

// ReadFile decompresses a single archive entry as a stream.
func (a *ArchiveProvider) ReadFile(ctx context.Context, p Path) (io.ReadCloser, error) {
	if err := ctx.Err(); err != nil {
		return nil, vfserr.Classify("read_file", p.String(), err)
	}
	fsys, err := a.root(ctx, p.LocalPath)
	if err != nil {
		return nil, vfserr.Classify("read_file", p.String(), err)
	}
	f, err := fsys.Open(internalOrDot(p))
	if err != nil {
		return nil, vfserr.Classify("read_file", p.String(), err)
	}
	return f, nil
}

// WriteFile always fails: archives are read-only here.
func (*ArchiveProvider) WriteFile(ctx context.Context, p Path, data io.Reader) error {
	return vfserr.Unsupported("write_file", p.String())
}

// Metadata stats a single archive entry.
func (a *ArchiveProvider) Metadata(ctx context.Context, p Path) (Entry, error) {
	if err := ctx.Err(); err != nil {
		return Entry{}, vfserr.Classify("metadata", p.String(), err)
	}
	fsys, err := a.root(ctx, p.LocalPath)
	if err != nil {
		return Entry{}, vfserr.Classify("metadata", p.String(), err)
	}
	info, err := fs.Stat(fsys, internalOrDot(p))
	if err != nil {
		return Entry{}, vfserr.Classify("metadata", p.String(), err)
	}
	entry := Entry{
		Name:           info.Name(),
		Path:           p,
		Kind:           KindFile,
		Size:           info.Size(),
		CompressedSize: -1,
		Modified:       info.ModTime(),
		Permissions:    "-rw-r--r--",
	}
	if info.IsDir() {
		entry.Kind = KindDirectory
		entry.Permissions = "drwxr-xr-x"
	}
	if cs, ok := compressedSize(info); ok {
		entry.CompressedSize = cs
	}
	return entry, nil
}

// Invalidate drops the cached handle for an archive file.
func (a *ArchiveProvider) Invalidate(archivePath string) {
	a.mu.Lock()
	delete(a.roots, archivePath)
	a.mu.Unlock()
}
