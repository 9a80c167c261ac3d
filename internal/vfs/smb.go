package vfs

import (
	"context"
	"io"
	"net"
	"path"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/hirochachacha/go-smb2"
	"go.uber.org/zap"

	"vfm/internal/vfserr"
)

// SmbProvider serves smb:// paths. One mounted share is kept alive per
// (user, host, share) and guarded by a mutex, the same discipline as the
// FTP control channel.
type SmbProvider struct {
	creds          CredentialSource
	connectTimeout time.Duration
	logger         *zap.Logger

	mu     sync.Mutex
	mounts map[string]*smbMount
}

type smbMount struct {
	mu    sync.Mutex
	conn  net.Conn
	sess  *smb2.Session
	share *smb2.Share
}

// NewSmbProvider creates the SMB backend.
func NewSmbProvider(creds CredentialSource, connectTimeout time.Duration, logger *zap.Logger) *SmbProvider {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SmbProvider{
		creds:          creds,
		connectTimeout: connectTimeout,
		logger:         logger,
		mounts:         make(map[string]*smbMount),
	}
}

func (*SmbProvider) CanHandle(p Path) bool { return p.Scheme == SchemeSmb }

func (*SmbProvider) Capabilities() Capabilities {
	return Capabilities{Write: true}
}

func (s *SmbProvider) mount(ctx context.Context, p Path) (*smbMount, error) {
	key := p.User + "@" + p.Host + "/" + p.Share
	s.mu.Lock()
	if m, ok := s.mounts[key]; ok {
		s.mu.Unlock()
		return m, nil
	}
	s.mu.Unlock()

	creds, err := s.creds.Lookup(p)
	if err != nil {
		return nil, vfserr.AuthenticationFailed("credentials", p.String(), err)
	}

	addr := net.JoinHostPort(p.Host, strconv.Itoa(p.Port))
	s.logger.Debug("dialing smb", zap.String("addr", addr), zap.String("share", p.Share))

	d := net.Dialer{Timeout: s.connectTimeout}
	conn, err := d.DialContext(ctx, "tcp", addr)
	if err != nil {
		return nil, vfserr.ConnectionFailed("connect", p.String(), err)
	}

	dialer := &smb2.Dialer{
		Initiator: &smb2.NTLMInitiator{
			User:     creds.Username,
			Password: creds.Password,
		},
	}
	sess, err := dialer.DialContext(ctx, conn)
	if err != nil {
		conn.Close()
		return nil, vfserr.AuthenticationFailed("negotiate", p.String(), err)
	}
	share, err := sess.Mount(p.Share)
	if err != nil {
		sess.Logoff()
		conn.Close()
		return nil, classifySmb("mount", p.String(), err)
	}

	m := &smbMount{conn: conn, sess: sess, share: share}
	s.mu.Lock()
	if existing, ok := s.mounts[key]; ok {
		s.mu.Unlock()
		share.Umount()
		sess.Logoff()
		conn.Close()
		return existing, nil
	}
	s.mounts[key] = m
	s.mu.Unlock()
	return m, nil
}

// smbRelPath normalizes a path relative to the share root; go-smb2 forbids
// leading separators and uses "." for the root itself.
func smbRelPath(remotePath string) string {
	p := strings.TrimLeft(remotePath, "/\\")
	if p == "" {
		return "."
	}
	return p
}

// ListEntries lists a directory on the mounted share.
func (s *SmbProvider) ListEntries(ctx context.Context, p Path) ([]Entry, error) {
	if err := ctx.Err(); err != nil {
		return nil, vfserr.Classify("list_entries", p.String(), err)
	}
	m, err := s.mount(ctx, p)
	if err != nil {
		return nil, err
	}

	m.mu.Lock()
	infos, err := m.share.ReadDir(smbRelPath(p.RemotePath))
	m.mu.Unlock()
	if err != nil {
		return nil, classifySmb("list_entries", p.String(), err)
	}

	entries := make([]Entry, 0, len(infos)+1)
	if parent, ok := p.Parent(); ok {
		entries = append(entries, ParentEntry(parent))
	}
	for _, info := range infos {
		if info.Name() == "." || info.Name() == ".." {
			continue
		}
		child := p
		child.RemotePath = path.Join(p.RemotePath, info.Name())
		entries = append(entries, remoteEntry(child, info))
	}
	SortEntries(entries)
	return entries, nil
}

// ReadFile opens a file on the share; the mount stays guarded until the
// stream is closed.
func (s *SmbProvider) ReadFile(ctx context.Context, p Path) (io.ReadCloser, error) {
	if err := ctx.Err(); err != nil {
		return nil, vfserr.Classify("read_file", p.String(), err)
	}
	m, err := s.mount(ctx, p)
	if err != nil {
		return nil, err
	}

	m.mu.Lock()
	f, err := m.share.Open(smbRelPath(p.RemotePath))
	if err != nil {
		m.mu.Unlock()
		return nil, classifySmb("read_file", p.String(), err)
	}
	return &smbStream{f: f, release: m.mu.Unlock}, nil
}

type smbStream struct {
	f       *smb2.File
	release func()
	once    sync.Once
}

func (s *smbStream) Read(p []byte) (int, error) { return s.f.Read(p) }

func (s *smbStream) Close() error {
	err := s.f.Close()
	s.once.Do(s.release)
	return err
}

// WriteFile streams data into a file on the share.
func (s *SmbProvider) WriteFile(ctx context.Context, p Path, data io.Reader) error {
	if err := ctx.Err(); err != nil {
		return vfserr.Classify("write_file", p.String(), err)
	}
	m, err := s.mount(ctx, p)
	if err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	f, err := m.share.Create(smbRelPath(p.RemotePath))
	if err != nil {
		return classifySmb("write_file", p.String(), err)
	}
	if _, err := io.Copy(f, data); err != nil {
		f.Close()
		return classifySmb("write_file", p.String(), err)
	}
	if err := f.Close(); err != nil {
		return classifySmb("write_file", p.String(), err)
	}
	return nil
}

// Metadata stats a path on the share.
func (s *SmbProvider) Metadata(ctx context.Context, p Path) (Entry, error) {
	if err := ctx.Err(); err != nil {
		return Entry{}, vfserr.Classify("metadata", p.String(), err)
	}
	m, err := s.mount(ctx, p)
	if err != nil {
		return Entry{}, err
	}

	m.mu.Lock()
	info, err := m.share.Stat(smbRelPath(p.RemotePath))
	m.mu.Unlock()
	if err != nil {
		return Entry{}, classifySmb("metadata", p.String(), err)
	}
	return remoteEntry(p, info), nil
}

func classifySmb(op, path string, err error) error {
	if err == nil {
		return nil
	}
	msg := strings.ToLower(err.Error())
	switch {
	case strings.Contains(msg, "logon failure") || strings.Contains(msg, "access denied status"):
		return vfserr.AuthenticationFailed(op, path, err)
	case strings.Contains(msg, "bad network name"):
		return vfserr.NotFound(op, path, err)
	}
	return classifyRemote(op, path, err)
}

// Close unmounts every pooled share and logs off.
func (s *SmbProvider) Close() {
	s.mu.Lock()
	mounts := s.mounts
	s.mounts = make(map[string]*smbMount)
	s.mu.Unlock()
	for _, m := range mounts {
		m.mu.Lock()
		m.share.Umount()
		m.sess.Logoff()
		m.conn.Close()
		m.mu.Unlock()
	}
}
