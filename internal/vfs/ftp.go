package vfs

import (
	"context"
	"errors"
	"io"
	"net"
	"net/textproto"
	"path"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/jlaffaye/ftp"
	"go.uber.org/zap"

	"vfm/internal/vfserr"
)

// FtpProvider serves ftp:// paths. Control connections are pooled per
// (user, port, host) like SSH sessions; the data channel of an in-flight
// transfer holds the connection guard until the stream is closed.
type FtpProvider struct {
	creds          CredentialSource
	connectTimeout time.Duration
	logger         *zap.Logger

	mu    sync.Mutex
	conns map[string]*ftpConn

	// dial is swapped out by tests.
	dial func(ctx context.Context, addr string) (*ftp.ServerConn, error)
}

type ftpConn struct {
	mu   sync.Mutex
	conn *ftp.ServerConn
}

// NewFtpProvider creates the FTP backend.
func NewFtpProvider(creds CredentialSource, connectTimeout time.Duration, logger *zap.Logger) *FtpProvider {
	if logger == nil {
		logger = zap.NewNop()
	}
	p := &FtpProvider{
		creds:          creds,
		connectTimeout: connectTimeout,
		logger:         logger,
		conns:          make(map[string]*ftpConn),
	}
	p.dial = func(ctx context.Context, addr string) (*ftp.ServerConn, error) {
		return ftp.Dial(addr, ftp.DialWithContext(ctx), ftp.DialWithTimeout(p.connectTimeout))
	}
	return p
}

func (*FtpProvider) CanHandle(p Path) bool { return p.Scheme == SchemeFtp }

func (*FtpProvider) Capabilities() Capabilities {
	return Capabilities{Write: true}
}

func ftpPoolKey(p Path) string { return p.User + ":" + p.Host }

func (f *FtpProvider) connection(ctx context.Context, p Path) (*ftpConn, error) {
	key := ftpPoolKey(p)
	f.mu.Lock()
	if c, ok := f.conns[key]; ok {
		f.mu.Unlock()
		return c, nil
	}
	f.mu.Unlock()

	creds, err := f.creds.Lookup(p)
	if err != nil {
		return nil, vfserr.AuthenticationFailed("credentials", p.String(), err)
	}
	user := creds.Username
	if user == "" {
		user = "anonymous"
	}

	addr := net.JoinHostPort(p.Host, strconv.Itoa(p.Port))
	f.logger.Debug("dialing ftp", zap.String("addr", addr), zap.String("user", user))
	conn, err := f.dial(ctx, addr)
	if err != nil {
		return nil, vfserr.ConnectionFailed("connect", p.String(), err)
	}
	if err := conn.Login(user, creds.Password); err != nil {
		conn.Quit()
		return nil, vfserr.AuthenticationFailed("login", p.String(), err)
	}

	c := &ftpConn{conn: conn}
	f.mu.Lock()
	if existing, ok := f.conns[key]; ok {
		// Lost the race; keep the first connection.
		f.mu.Unlock()
		conn.Quit()
		return existing, nil
	}
	f.conns[key] = c
	f.mu.Unlock()
	return c, nil
}

// ListEntries lists a remote directory via the control channel.
func (f *FtpProvider) ListEntries(ctx context.Context, p Path) ([]Entry, error) {
	if err := ctx.Err(); err != nil {
		return nil, vfserr.Classify("list_entries", p.String(), err)
	}
	c, err := f.connection(ctx, p)
	if err != nil {
		return nil, err
	}

	c.mu.Lock()
	listed, err := c.conn.List(p.RemotePath)
	c.mu.Unlock()
	if err != nil {
		f.evict(p, c, err)
		return nil, classifyFtp("list_entries", p.String(), err)
	}

	entries := make([]Entry, 0, len(listed)+1)
	if parent, ok := p.Parent(); ok {
		entries = append(entries, ParentEntry(parent))
	}
	for _, e := range listed {
		if e.Name == "." || e.Name == ".." {
			continue
		}
		child := p
		child.RemotePath = path.Join(p.RemotePath, e.Name)
		entries = append(entries, ftpEntry(child, e))
	}
	SortEntries(entries)
	return entries, nil
}

func ftpEntry(p Path, e *ftp.Entry) Entry {
	kind := KindFile
	permissions := "-rw-r--r--"
	switch e.Type {
	case ftp.EntryTypeFolder:
		kind = KindDirectory
		permissions = "drwxr-xr-x"
	case ftp.EntryTypeLink:
		kind = KindSymlink
		permissions = "lrwxrwxrwx"
	}
	return Entry{
		Name:           e.Name,
		Path:           p,
		Kind:           kind,
		Size:           int64(e.Size),
		CompressedSize: -1,
		Modified:       e.Time,
		Permissions:    permissions,
		Hidden:         strings.HasPrefix(e.Name, "."),
	}
}

// ReadFile retrieves a remote file as a stream; the control connection
// stays guarded until the stream is closed.
func (f *FtpProvider) ReadFile(ctx context.Context, p Path) (io.ReadCloser, error) {
	if err := ctx.Err(); err != nil {
		return nil, vfserr.Classify("read_file", p.String(), err)
	}
	c, err := f.connection(ctx, p)
	if err != nil {
		return nil, err
	}

	c.mu.Lock()
	resp, err := c.conn.Retr(p.RemotePath)
	if err != nil {
		c.mu.Unlock()
		f.evict(p, c, err)
		return nil, classifyFtp("read_file", p.String(), err)
	}
	return &ftpStream{resp: resp, release: c.mu.Unlock}, nil
}

type ftpStream struct {
	resp    *ftp.Response
	release func()
	once    sync.Once
}

func (s *ftpStream) Read(p []byte) (int, error) { return s.resp.Read(p) }

func (s *ftpStream) Close() error {
	err := s.resp.Close()
	s.once.Do(s.release)
	return err
}

// WriteFile stores a stream to a remote file.
func (f *FtpProvider) WriteFile(ctx context.Context, p Path, data io.Reader) error {
	if err := ctx.Err(); err != nil {
		return vfserr.Classify("write_file", p.String(), err)
	}
	c, err := f.connection(ctx, p)
	if err != nil {
		return err
	}

	c.mu.Lock()
	err = c.conn.Stor(p.RemotePath, data)
	c.mu.Unlock()
	if err != nil {
		f.evict(p, c, err)
		return classifyFtp("write_file", p.String(), err)
	}
	return nil
}

// Metadata stats a remote path (MLST when the server supports it).
func (f *FtpProvider) Metadata(ctx context.Context, p Path) (Entry, error) {
	if err := ctx.Err(); err != nil {
		return Entry{}, vfserr.Classify("metadata", p.String(), err)
	}
	c, err := f.connection(ctx, p)
	if err != nil {
		return Entry{}, err
	}

	c.mu.Lock()
	e, err := c.conn.GetEntry(p.RemotePath)
	c.mu.Unlock()
	if err != nil {
		f.evict(p, c, err)
		return Entry{}, classifyFtp("metadata", p.String(), err)
	}
	return ftpEntry(p, e), nil
}

// evict drops a pooled connection after a transport-level failure so the
// next call dials fresh. Server replies (550 and friends) keep the
// connection alive.
func (f *FtpProvider) evict(p Path, c *ftpConn, err error) {
	if isFtpProtocolError(err) {
		return
	}
	key := ftpPoolKey(p)
	f.mu.Lock()
	if f.conns[key] == c {
		delete(f.conns, key)
	}
	f.mu.Unlock()
	f.logger.Debug("dropping ftp connection", zap.String("key", key), zap.Error(err))
	if c.conn != nil {
		c.conn.Quit()
	}
}

// isFtpProtocolError reports whether err is a server reply rather than a
// failure of the control connection itself.
func isFtpProtocolError(err error) bool {
	var pe *textproto.Error
	return errors.As(err, &pe)
}

func classifyFtp(op, path string, err error) error {
	if err == nil {
		return nil
	}
	msg := strings.ToLower(err.Error())
	switch {
	case strings.Contains(msg, "no such file") || strings.Contains(msg, "not found"):
		return vfserr.NotFound(op, path, err)
	case strings.Contains(msg, "access denied") || strings.Contains(msg, "permission"):
		return vfserr.PermissionDenied(op, path, err)
	case strings.Contains(msg, "login") || strings.Contains(msg, "password"):
		return vfserr.AuthenticationFailed(op, path, err)
	}
	return vfserr.Classify(op, path, err)
}

// Close quits every pooled control connection.
func (f *FtpProvider) Close() {
	f.mu.Lock()
	conns := f.conns
	f.conns = make(map[string]*ftpConn)
	f.mu.Unlock()
	for _, c := range conns {
		c.mu.Lock()
		c.conn.Quit()
		c.mu.Unlock()
	}
}
