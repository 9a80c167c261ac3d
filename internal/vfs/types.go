package vfs

import (
	"fmt"
	"sort"
	"strings"
	"time"
)

// Scheme identifies the backend a Path addresses.
type Scheme string

const (
	SchemeLocal   Scheme = "local"
	SchemeArchive Scheme = "archive"
	SchemeSftp    Scheme = "sftp"
	SchemeFtp     Scheme = "ftp"
	SchemeSmb     Scheme = "smb"
)

// Path is a tagged location in the virtual file system. Only the fields
// belonging to the scheme are set; the struct is comparable so it can key
// caches directly.
type Path struct {
	Scheme Scheme

	// Local and Archive
	LocalPath string // local directory/file, or the archive file itself

	// Archive
	InternalPath string // path inside the archive, "" for the archive root

	// Sftp, Ftp and Smb
	Host       string
	Port       int
	User       string
	RemotePath string
	Share      string // smb only
}

// Local constructs a local path.
func Local(p string) Path {
	return Path{Scheme: SchemeLocal, LocalPath: p}
}

// Archive constructs a path inside an archive file.
func Archive(archivePath, internalPath string) Path {
	return Path{
		Scheme:       SchemeArchive,
		LocalPath:    archivePath,
		InternalPath: strings.Trim(internalPath, "/"),
	}
}

// Sftp constructs a remote SFTP path.
func Sftp(host string, port int, user, remotePath string) Path {
	if port == 0 {
		port = 22
	}
	if remotePath == "" {
		remotePath = "/"
	}
	return Path{Scheme: SchemeSftp, Host: host, Port: port, User: user, RemotePath: remotePath}
}

// Ftp constructs a remote FTP path.
func Ftp(host string, port int, user, remotePath string) Path {
	if port == 0 {
		port = 21
	}
	if remotePath == "" {
		remotePath = "/"
	}
	return Path{Scheme: SchemeFtp, Host: host, Port: port, User: user, RemotePath: remotePath}
}

// Smb constructs a remote SMB path relative to a share.
func Smb(host, share, remotePath string) Path {
	if remotePath == "" {
		remotePath = "/"
	}
	return Path{Scheme: SchemeSmb, Host: host, Port: 445, Share: share, RemotePath: remotePath}
}

// Key returns a stable string form usable as a cache or single-flight key.
func (p Path) Key() string {
	switch p.Scheme {
	case SchemeArchive:
		return fmt.Sprintf("archive:%s!%s", p.LocalPath, p.InternalPath)
	case SchemeSftp, SchemeFtp:
		return fmt.Sprintf("%s:%s@%s:%d%s", p.Scheme, p.User, p.Host, p.Port, p.RemotePath)
	case SchemeSmb:
		return fmt.Sprintf("smb:%s/%s%s", p.Host, p.Share, p.RemotePath)
	default:
		return "local:" + p.LocalPath
	}
}

// String returns a display form, e.g. sftp://user@host:22/srv or
// /data/a.zip!/docs.
func (p Path) String() string {
	switch p.Scheme {
	case SchemeArchive:
		if p.InternalPath == "" {
			return p.LocalPath + "!/"
		}
		return p.LocalPath + "!/" + p.InternalPath
	case SchemeSftp, SchemeFtp:
		return fmt.Sprintf("%s://%s@%s:%d%s", p.Scheme, p.User, p.Host, p.Port, p.RemotePath)
	case SchemeSmb:
		return "smb://" + p.Host + "/" + p.Share + p.RemotePath
	default:
		return p.LocalPath
	}
}

// Join appends a child name to the path.
func (p Path) Join(name string) Path {
	child := p
	switch p.Scheme {
	case SchemeArchive:
		if p.InternalPath == "" {
			child.InternalPath = name
		} else {
			child.InternalPath = p.InternalPath + "/" + name
		}
	case SchemeSftp, SchemeFtp, SchemeSmb:
		if strings.HasSuffix(p.RemotePath, "/") {
			child.RemotePath = p.RemotePath + name
		} else {
			child.RemotePath = p.RemotePath + "/" + name
		}
	default:
		if strings.HasSuffix(p.LocalPath, "/") {
			child.LocalPath = p.LocalPath + name
		} else {
			child.LocalPath = p.LocalPath + "/" + name
		}
	}
	return child
}

// Parent returns the enclosing directory and false when p is already a root.
// The parent of an archive root is the directory holding the archive file.
func (p Path) Parent() (Path, bool) {
	switch p.Scheme {
	case SchemeArchive:
		if p.InternalPath == "" {
			if dir, ok := splitParent(p.LocalPath); ok {
				return Local(dir), true
			}
			return Path{}, false
		}
		parent := p
		if idx := strings.LastIndex(p.InternalPath, "/"); idx >= 0 {
			parent.InternalPath = p.InternalPath[:idx]
		} else {
			parent.InternalPath = ""
		}
		return parent, true
	case SchemeSftp, SchemeFtp, SchemeSmb:
		if p.RemotePath == "/" || p.RemotePath == "" {
			return Path{}, false
		}
		parent := p
		if dir, ok := splitParent(p.RemotePath); ok {
			parent.RemotePath = dir
		} else {
			parent.RemotePath = "/"
		}
		if parent.RemotePath == "" {
			parent.RemotePath = "/"
		}
		return parent, true
	default:
		if dir, ok := splitParent(p.LocalPath); ok {
			return Local(dir), true
		}
		return Path{}, false
	}
}

func splitParent(p string) (string, bool) {
	trimmed := strings.TrimSuffix(p, "/")
	idx := strings.LastIndex(trimmed, "/")
	if idx < 0 || trimmed == "" {
		return "", false
	}
	if idx == 0 {
		if trimmed == "/" {
			return "", false
		}
		return "/", true
	}
	return trimmed[:idx], true
}

// Base returns the final path element.
func (p Path) Base() string {
	var s string
	switch p.Scheme {
	case SchemeArchive:
		if p.InternalPath == "" {
			s = p.LocalPath
		} else {
			s = p.InternalPath
		}
	case SchemeSftp, SchemeFtp, SchemeSmb:
		s = p.RemotePath
	default:
		s = p.LocalPath
	}
	s = strings.TrimSuffix(s, "/")
	if idx := strings.LastIndex(s, "/"); idx >= 0 {
		return s[idx+1:]
	}
	return s
}

// EntryKind represents the type of a directory entry.
type EntryKind int

const (
	KindFile EntryKind = iota
	KindDirectory
	KindSymlink
	KindParent // the synthesized ".." entry
)

// String returns a string representation of the entry kind.
func (k EntryKind) String() string {
	switch k {
	case KindDirectory:
		return "directory"
	case KindSymlink:
		return "symlink"
	case KindParent:
		return "parent"
	default:
		return "file"
	}
}

// Entry is one unified directory-entry record produced by a provider.
type Entry struct {
	Name           string
	Path           Path
	Kind           EntryKind
	Size           int64
	CompressedSize int64     // -1 unless the entry came from an archive
	Modified       time.Time // zero when the backend does not expose it
	Permissions    string
	Hidden         bool
}

// ParentEntry synthesizes the ".." record pointing at parent.
func ParentEntry(parent Path) Entry {
	return Entry{Name: "..", Path: parent, Kind: KindParent, CompressedSize: -1}
}

// IsDir reports whether the entry can be entered.
func (e Entry) IsDir() bool {
	return e.Kind == KindDirectory || e.Kind == KindParent
}

// SortEntries orders a listing for presentation: the parent marker first,
// then directories, then files, each group by name.
func SortEntries(entries []Entry) {
	rank := func(e Entry) int {
		switch e.Kind {
		case KindParent:
			return 0
		case KindDirectory:
			return 1
		default:
			return 2
		}
	}
	sort.SliceStable(entries, func(i, j int) bool {
		ri, rj := rank(entries[i]), rank(entries[j])
		if ri != rj {
			return ri < rj
		}
		return entries[i].Name < entries[j].Name
	})
}

// FormatSize formats a byte count in human-readable form.
func FormatSize(size int64) string {
	const unit = 1024
	if size < unit {
		return fmt.Sprintf("%d B", size)
	}
	div, exp := int64(unit), 0
	for n := size / unit; n >= unit; n /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %cB", float64(size)/float64(div), "KMGTPE"[exp])
}

// EstimateEntrySize approximates the resident memory of an entry, used for
// the cache memory bound.
func EstimateEntrySize(e Entry) int64 {
	const structOverhead = 160
	return structOverhead +
		int64(len(e.Name)) +
		int64(len(e.Path.LocalPath)) +
		int64(len(e.Path.InternalPath)) +
		int64(len(e.Path.Host)) +
		int64(len(e.Path.User)) +
		int64(len(e.Path.RemotePath)) +
		int64(len(e.Path.Share)) +
		int64(len(e.Permissions))
}
