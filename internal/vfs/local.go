package vfs

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"strings"

	"vfm/internal/vfserr"
)

// LocalProvider serves paths on the host file system.
type LocalProvider struct{}

// NewLocalProvider creates the catch-all local backend.
func NewLocalProvider() *LocalProvider { return &LocalProvider{} }

func (*LocalProvider) CanHandle(p Path) bool { return p.Scheme == SchemeLocal }

func (*LocalProvider) Capabilities() Capabilities {
	return Capabilities{FastList: true, Watch: true, Write: true}
}

// ListEntries reads the directory, synthesizing a ".." entry unless the
// path is a filesystem root.
func (*LocalProvider) ListEntries(ctx context.Context, p Path) ([]Entry, error) {
	if err := ctx.Err(); err != nil {
		return nil, vfserr.Classify("list_entries", p.LocalPath, err)
	}

	dirEntries, err := os.ReadDir(p.LocalPath)
	if err != nil {
		return nil, vfserr.Classify("list_entries", p.LocalPath, err)
	}

	entries := make([]Entry, 0, len(dirEntries)+1)
	if parent, ok := p.Parent(); ok {
		entries = append(entries, ParentEntry(parent))
	}

	for _, de := range dirEntries {
		name := de.Name()
		entry := Entry{
			Name:           name,
			Path:           Local(filepath.Join(p.LocalPath, name)),
			Kind:           localEntryKind(de),
			CompressedSize: -1,
			Hidden:         strings.HasPrefix(name, "."),
		}
		if info, ierr := de.Info(); ierr == nil {
			entry.Size = info.Size()
			entry.Modified = info.ModTime()
			entry.Permissions = info.Mode().String()
		}
		entries = append(entries, entry)
	}

	SortEntries(entries)
	return entries, nil
}

func localEntryKind(de os.DirEntry) EntryKind {
	switch {
	case de.Type()&os.ModeSymlink != 0:
		return KindSymlink
	case de.IsDir():
		return KindDirectory
	default:
		return KindFile
	}
}

// ReadFile opens a local file for reading.
func (*LocalProvider) ReadFile(ctx context.Context, p Path) (io.ReadCloser, error) {
	if err := ctx.Err(); err != nil {
		return nil, vfserr.Classify("read_file", p.LocalPath, err)
	}
	f, err := os.Open(p.LocalPath)
	if err != nil {
		return nil, vfserr.Classify("read_file", p.LocalPath, err)
	}
	return f, nil
}

// WriteFile creates or replaces a local file with the stream contents.
func (*LocalProvider) WriteFile(ctx context.Context, p Path, data io.Reader) error {
	if err := ctx.Err(); err != nil {
		return vfserr.Classify("write_file", p.LocalPath, err)
	}
	f, err := os.Create(p.LocalPath)
	if err != nil {
		return vfserr.Classify("write_file", p.LocalPath, err)
	}
	if _, err := io.Copy(f, data); err != nil {
		f.Close()
		return vfserr.Classify("write_file", p.LocalPath, err)
	}
	return f.Close()
}

// Metadata stats a local path.
func (*LocalProvider) Metadata(ctx context.Context, p Path) (Entry, error) {
	if err := ctx.Err(); err != nil {
		return Entry{}, vfserr.Classify("metadata", p.LocalPath, err)
	}
	info, err := os.Lstat(p.LocalPath)
	if err != nil {
		return Entry{}, vfserr.Classify("metadata", p.LocalPath, err)
	}
	kind := KindFile
	switch {
	case info.Mode()&os.ModeSymlink != 0:
		kind = KindSymlink
	case info.IsDir():
		kind = KindDirectory
	}
	return Entry{
		Name:           info.Name(),
		Path:           p,
		Kind:           kind,
		Size:           info.Size(),
		CompressedSize: -1,
		Modified:       info.ModTime(),
		Permissions:    info.Mode().String(),
		Hidden:         strings.HasPrefix(info.Name(), "."),
	}, nil
}
