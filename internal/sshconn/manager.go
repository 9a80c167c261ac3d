// Package sshconn pools authenticated SSH/SFTP sessions per remote
// endpoint. At most one live session exists per (host, port, username);
// concurrent callers share it instead of re-authenticating.
package sshconn

import (
	"context"
	"fmt"
	"io"
	"net"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/pkg/sftp"
	"go.uber.org/zap"
	"golang.org/x/crypto/ssh"
	"golang.org/x/sync/singleflight"

	"vfm/internal/vfserr"
)

// Credentials authenticate a remote user: password, or private key with an
// optional passphrase. They are held in memory only.
type Credentials struct {
	Username       string
	Password       string
	PrivateKeyPath string
	Passphrase     string
}

// State tracks the session lifecycle.
type State int

const (
	StateDisconnected State = iota
	StateConnecting
	StateAuthenticated
	StateClosed
)

// Session is one authenticated remote channel. SFTP channels are not safely
// reentrant, so every exchange serializes through the session mutex;
// sessions to independent hosts proceed in parallel.
type Session struct {
	key string

	mu       sync.Mutex
	conn     transport
	sftp     *sftp.Client
	state    State
	lastUsed time.Time
}

// transport is the dialed SSH connection; narrowed to an interface so tests
// can pool without a live server.
type transport interface {
	NewSftpClient() (*sftp.Client, error)
	Close() error
}

type sshTransport struct {
	client *ssh.Client
}

func (t *sshTransport) NewSftpClient() (*sftp.Client, error) { return sftp.NewClient(t.client) }
func (t *sshTransport) Close() error                         { return t.client.Close() }

// Key returns the pool key ("user:port@host").
func (s *Session) Key() string { return s.key }

// State returns the current lifecycle state.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Do runs one exchange against the SFTP channel under the session guard.
func (s *Session) Do(fn func(*sftp.Client) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != StateAuthenticated {
		return vfserr.ConnectionFailed("session", s.key, fmt.Errorf("session is closed"))
	}
	s.lastUsed = time.Now()
	return fn(s.sftp)
}

// OpenFile opens a remote file and returns a reader that holds the session
// guard until closed.
func (s *Session) OpenFile(path string) (io.ReadCloser, error) {
	s.mu.Lock()
	if s.state != StateAuthenticated {
		s.mu.Unlock()
		return nil, vfserr.ConnectionFailed("open", s.key, fmt.Errorf("session is closed"))
	}
	s.lastUsed = time.Now()
	f, err := s.sftp.Open(path)
	if err != nil {
		s.mu.Unlock()
		return nil, err
	}
	return &guardedFile{f: f, release: s.mu.Unlock}, nil
}

// CreateFile opens a remote file for writing, holding the session guard
// until the writer is closed.
func (s *Session) CreateFile(path string) (io.WriteCloser, error) {
	s.mu.Lock()
	if s.state != StateAuthenticated {
		s.mu.Unlock()
		return nil, vfserr.ConnectionFailed("create", s.key, fmt.Errorf("session is closed"))
	}
	s.lastUsed = time.Now()
	f, err := s.sftp.Create(path)
	if err != nil {
		s.mu.Unlock()
		return nil, err
	}
	return &guardedFile{f: f, release: s.mu.Unlock}, nil
}

type guardedFile struct {
	f       *sftp.File
	release func()
	once    sync.Once
}

func (g *guardedFile) Read(p []byte) (int, error)  { return g.f.Read(p) }
func (g *guardedFile) Write(p []byte) (int, error) { return g.f.Write(p) }

func (g *guardedFile) Close() error {
	err := g.f.Close()
	g.once.Do(g.release)
	return err
}

func (s *Session) close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state == StateClosed {
		return
	}
	s.state = StateClosed
	if s.sftp != nil {
		s.sftp.Close()
	}
	if s.conn != nil {
		s.conn.Close()
	}
}

func (s *Session) idleSince(now time.Time) time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	return now.Sub(s.lastUsed)
}

// Manager owns the session pool. Construct one per application and pass it
// by reference into anything needing remote access; close it at shutdown.
type Manager struct {
	mu       sync.RWMutex
	sessions map[string]*Session

	group          singleflight.Group
	connectTimeout time.Duration
	idleTimeout    time.Duration
	logger         *zap.Logger

	// dial is swapped out by tests.
	dial func(ctx context.Context, addr string, cfg *ssh.ClientConfig) (transport, error)
}

// Option configures a Manager.
type Option func(*Manager)

// WithConnectTimeout overrides the dial timeout (default 30s).
func WithConnectTimeout(d time.Duration) Option {
	return func(m *Manager) { m.connectTimeout = d }
}

// WithIdleTimeout overrides the idle sweep timeout (default 10m, 0 disables).
func WithIdleTimeout(d time.Duration) Option {
	return func(m *Manager) { m.idleTimeout = d }
}

// WithLogger sets the manager logger.
func WithLogger(l *zap.Logger) Option {
	return func(m *Manager) { m.logger = l }
}

// NewManager creates an empty session pool.
func NewManager(opts ...Option) *Manager {
	m := &Manager{
		sessions:       make(map[string]*Session),
		connectTimeout: 30 * time.Second,
		idleTimeout:    10 * time.Minute,
		logger:         zap.NewNop(),
	}
	m.dial = m.dialSSH
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// SessionKey builds the pool key for an endpoint.
func SessionKey(host string, port int, username string) string {
	return fmt.Sprintf("%s:%d@%s", username, port, host)
}

// GetOrCreateSession returns the pooled session for the endpoint,
// authenticating once if none exists. Concurrent calls for the same key
// share a single handshake.
func (m *Manager) GetOrCreateSession(ctx context.Context, host string, port int, creds Credentials) (*Session, error) {
	key := SessionKey(host, port, creds.Username)

	m.CloseIdle(time.Now())

	if s := m.lookup(key); s != nil {
		return s, nil
	}

	v, err, _ := m.group.Do(key, func() (interface{}, error) {
		if s := m.lookup(key); s != nil {
			return s, nil
		}
		s, err := m.connect(ctx, key, host, port, creds)
		if err != nil {
			return nil, err
		}
		m.mu.Lock()
		m.sessions[key] = s
		m.mu.Unlock()
		return s, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*Session), nil
}

func (m *Manager) lookup(key string) *Session {
	m.mu.RLock()
	s := m.sessions[key]
	m.mu.RUnlock()
	if s == nil || s.State() != StateAuthenticated {
		return nil
	}
	s.mu.Lock()
	s.lastUsed = time.Now()
	s.mu.Unlock()
	return s
}

func (m *Manager) connect(ctx context.Context, key, host string, port int, creds Credentials) (*Session, error) {
	s := &Session{key: key, state: StateConnecting, lastUsed: time.Now()}

	cfg, err := m.clientConfig(creds)
	if err != nil {
		s.state = StateClosed
		return nil, err
	}

	addr := net.JoinHostPort(host, fmt.Sprintf("%d", port))
	m.logger.Debug("dialing ssh", zap.String("addr", addr), zap.String("user", creds.Username))

	conn, err := m.dial(ctx, addr, cfg)
	if err != nil {
		s.state = StateClosed
		if isAuthError(err) {
			return nil, vfserr.AuthenticationFailed("connect", key, err)
		}
		return nil, vfserr.ConnectionFailed("connect", key, err)
	}

	client, err := conn.NewSftpClient()
	if err != nil {
		conn.Close()
		s.state = StateClosed
		return nil, vfserr.ConnectionFailed("sftp_channel", key, err)
	}

	s.conn = conn
	s.sftp = client
	s.state = StateAuthenticated
	m.logger.Debug("ssh session established", zap.String("key", key))
	return s, nil
}

func (m *Manager) dialSSH(ctx context.Context, addr string, cfg *ssh.ClientConfig) (transport, error) {
	d := net.Dialer{Timeout: m.connectTimeout}
	netConn, err := d.DialContext(ctx, "tcp", addr)
	if err != nil {
		return nil, err
	}
	c, chans, reqs, err := ssh.NewClientConn(netConn, addr, cfg)
	if err != nil {
		netConn.Close()
		return nil, err
	}
	return &sshTransport{client: ssh.NewClient(c, chans, reqs)}, nil
}

func (m *Manager) clientConfig(creds Credentials) (*ssh.ClientConfig, error) {
	cfg := &ssh.ClientConfig{
		User:            creds.Username,
		HostKeyCallback: ssh.InsecureIgnoreHostKey(),
		Timeout:         m.connectTimeout,
	}

	if creds.PrivateKeyPath != "" {
		pem, err := os.ReadFile(creds.PrivateKeyPath)
		if err != nil {
			return nil, vfserr.AuthenticationFailed("load_key", creds.PrivateKeyPath, err)
		}
		var signer ssh.Signer
		if creds.Passphrase != "" {
			signer, err = ssh.ParsePrivateKeyWithPassphrase(pem, []byte(creds.Passphrase))
		} else {
			signer, err = ssh.ParsePrivateKey(pem)
		}
		if err != nil {
			return nil, vfserr.AuthenticationFailed("parse_key", creds.PrivateKeyPath, err)
		}
		cfg.Auth = append(cfg.Auth, ssh.PublicKeys(signer))
	}
	if creds.Password != "" {
		cfg.Auth = append(cfg.Auth, ssh.Password(creds.Password))
	}
	if len(cfg.Auth) == 0 {
		return nil, vfserr.AuthenticationFailed("connect", creds.Username, fmt.Errorf("no authentication method provided"))
	}
	return cfg, nil
}

func isAuthError(err error) bool {
	if err == nil {
		return false
	}
	e := strings.ToLower(err.Error())
	return strings.Contains(e, "unable to authenticate") ||
		strings.Contains(e, "permission denied") ||
		strings.Contains(e, "no supported methods remain")
}

// Disconnect closes and removes one endpoint's session.
func (m *Manager) Disconnect(host string, port int, username string) {
	key := SessionKey(host, port, username)
	m.mu.Lock()
	s := m.sessions[key]
	delete(m.sessions, key)
	m.mu.Unlock()
	if s != nil {
		s.close()
		m.logger.Debug("ssh session disconnected", zap.String("key", key))
	}
}

// CloseIdle closes sessions unused for longer than the idle timeout.
func (m *Manager) CloseIdle(now time.Time) {
	if m.idleTimeout <= 0 {
		return
	}
	var idle []*Session
	m.mu.Lock()
	for key, s := range m.sessions {
		if s.idleSince(now) > m.idleTimeout {
			idle = append(idle, s)
			delete(m.sessions, key)
		}
	}
	m.mu.Unlock()
	for _, s := range idle {
		m.logger.Debug("closing idle ssh session", zap.String("key", s.key))
		s.close()
	}
}

// CloseAll tears down every pooled session; called at application shutdown.
func (m *Manager) CloseAll() {
	m.mu.Lock()
	sessions := make([]*Session, 0, len(m.sessions))
	for _, s := range m.sessions {
		sessions = append(sessions, s)
	}
	m.sessions = make(map[string]*Session)
	m.mu.Unlock()
	for _, s := range sessions {
		s.close()
	}
}

// Len reports the number of pooled sessions.
func (m *Manager) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.sessions)
}
