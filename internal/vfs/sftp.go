package vfs

import (
	"context"
	"io"
	"os"
	"path"
	"strings"

	"github.com/pkg/sftp"

	"vfm/internal/sshconn"
	"vfm/internal/vfserr"
)

// SftpProvider serves sftp:// paths through the shared session pool. It
// never retries; a failed call surfaces as-is and retry is the caller's
// decision.
type SftpProvider struct {
	manager *sshconn.Manager
	creds   CredentialSource
}

// NewSftpProvider creates the SFTP backend on top of a session pool.
func NewSftpProvider(manager *sshconn.Manager, creds CredentialSource) *SftpProvider {
	return &SftpProvider{manager: manager, creds: creds}
}

func (*SftpProvider) CanHandle(p Path) bool { return p.Scheme == SchemeSftp }

func (*SftpProvider) Capabilities() Capabilities {
	return Capabilities{Write: true}
}

func (s *SftpProvider) session(ctx context.Context, p Path) (*sshconn.Session, error) {
	creds, err := s.creds.Lookup(p)
	if err != nil {
		return nil, vfserr.AuthenticationFailed("credentials", p.String(), err)
	}
	return s.manager.GetOrCreateSession(ctx, p.Host, p.Port, creds)
}

// ListEntries issues one remote directory read.
func (s *SftpProvider) ListEntries(ctx context.Context, p Path) ([]Entry, error) {
	if err := ctx.Err(); err != nil {
		return nil, vfserr.Classify("list_entries", p.String(), err)
	}
	sess, err := s.session(ctx, p)
	if err != nil {
		return nil, err
	}

	var infos []os.FileInfo
	err = sess.Do(func(c *sftp.Client) error {
		var derr error
		infos, derr = c.ReadDir(p.RemotePath)
		return derr
	})
	if err != nil {
		return nil, classifyRemote("list_entries", p.String(), err)
	}

	entries := make([]Entry, 0, len(infos)+1)
	if parent, ok := p.Parent(); ok {
		entries = append(entries, ParentEntry(parent))
	}
	for _, info := range infos {
		child := p
		child.RemotePath = path.Join(p.RemotePath, info.Name())
		entries = append(entries, remoteEntry(child, info))
	}
	SortEntries(entries)
	return entries, nil
}

func remoteEntry(p Path, info os.FileInfo) Entry {
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
	}
}

// ReadFile opens a remote file handle as a stream.
func (s *SftpProvider) ReadFile(ctx context.Context, p Path) (io.ReadCloser, error) {
	if err := ctx.Err(); err != nil {
		return nil, vfserr.Classify("read_file", p.String(), err)
	}
	sess, err := s.session(ctx, p)
	if err != nil {
		return nil, err
	}
	rc, err := sess.OpenFile(p.RemotePath)
	if err != nil {
		return nil, classifyRemote("read_file", p.String(), err)
	}
	return rc, nil
}

// WriteFile streams data into a remote file handle.
func (s *SftpProvider) WriteFile(ctx context.Context, p Path, data io.Reader) error {
	if err := ctx.Err(); err != nil {
		return vfserr.Classify("write_file", p.String(), err)
	}
	sess, err := s.session(ctx, p)
	if err != nil {
		return err
	}
	wc, err := sess.CreateFile(p.RemotePath)
	if err != nil {
		return classifyRemote("write_file", p.String(), err)
	}
	if _, err := io.Copy(wc, data); err != nil {
		wc.Close()
		return classifyRemote("write_file", p.String(), err)
	}
	if err := wc.Close(); err != nil {
		return classifyRemote("write_file", p.String(), err)
	}
	return nil
}

// Metadata stats a remote path.
func (s *SftpProvider) Metadata(ctx context.Context, p Path) (Entry, error) {
	if err := ctx.Err(); err != nil {
		return Entry{}, vfserr.Classify("metadata", p.String(), err)
	}
	sess, err := s.session(ctx, p)
	if err != nil {
		return Entry{}, err
	}

	var info os.FileInfo
	err = sess.Do(func(c *sftp.Client) error {
		var derr error
		info, derr = c.Stat(p.RemotePath)
		return derr
	})
	if err != nil {
		return Entry{}, classifyRemote("metadata", p.String(), err)
	}
	return remoteEntry(p, info), nil
}
