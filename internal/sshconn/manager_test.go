package sshconn

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/pkg/sftp"
	"golang.org/x/crypto/ssh"

	"vfm/internal/vfserr"
)

type fakeTransport struct {
	closed atomic.Bool
}

func (f *fakeTransport) NewSftpClient() (*sftp.Client, error) { return nil, nil }
func (f *fakeTransport) Close() error {
	f.closed.Store(true)
	return nil
}

func newFakeManager(dials *atomic.Int32, delay time.Duration, opts ...Option) *Manager {
	m := NewManager(opts...)
	m.dial = func(ctx context.Context, addr string, cfg *ssh.ClientConfig) (transport, error) {
		dials.Add(1)
		if delay > 0 {
			time.Sleep(delay)
		}
		return &fakeTransport{}, nil
	}
	return m
}

func TestSessionKey(t *testing.T) {
	key := SessionKey("files.example.com", 2222, "deploy")
	if key != "deploy:2222@files.example.com" {
		t.Errorf("Expected key 'deploy:2222@files.example.com', got '%s'", key)
	}
}

func TestGetOrCreateSessionReusesSession(t *testing.T) {
	var dials atomic.Int32
	m := newFakeManager(&dials, 0)
	creds := Credentials{Username: "alice", Password: "secret"}

	s1, err := m.GetOrCreateSession(context.Background(), "host1", 22, creds)
	if err != nil {
		t.Fatalf("First GetOrCreateSession failed: %v", err)
	}
	s2, err := m.GetOrCreateSession(context.Background(), "host1", 22, creds)
	if err != nil {
		t.Fatalf("Second GetOrCreateSession failed: %v", err)
	}

	if s1 != s2 {
		t.Error("Expected the same session handle for identical endpoints")
	}
	if got := dials.Load(); got != 1 {
		t.Errorf("Expected exactly 1 dial, got %d", got)
	}
	if s1.State() != StateAuthenticated {
		t.Errorf("Expected authenticated state, got %v", s1.State())
	}
}

func TestGetOrCreateSessionDistinctEndpoints(t *testing.T) {
	var dials atomic.Int32
	m := newFakeManager(&dials, 0)
	creds := Credentials{Username: "alice", Password: "secret"}

	s1, _ := m.GetOrCreateSession(context.Background(), "host1", 22, creds)
	s2, _ := m.GetOrCreateSession(context.Background(), "host2", 22, creds)
	if s1 == s2 {
		t.Error("Expected distinct sessions for distinct hosts")
	}
	if got := dials.Load(); got != 2 {
		t.Errorf("Expected 2 dials, got %d", got)
	}
	if m.Len() != 2 {
		t.Errorf("Expected 2 pooled sessions, got %d", m.Len())
	}
}

func TestGetOrCreateSessionSingleFlight(t *testing.T) {
	var dials atomic.Int32
	m := newFakeManager(&dials, 50*time.Millisecond)
	creds := Credentials{Username: "alice", Password: "secret"}

	const n = 8
	var wg sync.WaitGroup
	sessions := make([]*Session, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			s, err := m.GetOrCreateSession(context.Background(), "host1", 22, creds)
			if err != nil {
				t.Errorf("GetOrCreateSession failed: %v", err)
				return
			}
			sessions[i] = s
		}(i)
	}
	wg.Wait()

	if got := dials.Load(); got != 1 {
		t.Errorf("Expected 1 dial for %d concurrent callers, got %d", n, got)
	}
	for i := 1; i < n; i++ {
		if sessions[i] != sessions[0] {
			t.Errorf("Caller %d received a different session handle", i)
		}
	}
}

func TestDisconnectRemovesSession(t *testing.T) {
	var dials atomic.Int32
	m := newFakeManager(&dials, 0)
	creds := Credentials{Username: "alice", Password: "secret"}

	s, _ := m.GetOrCreateSession(context.Background(), "host1", 22, creds)
	m.Disconnect("host1", 22, "alice")

	if s.State() != StateClosed {
		t.Errorf("Expected closed state after disconnect, got %v", s.State())
	}
	if m.Len() != 0 {
		t.Errorf("Expected empty pool after disconnect, got %d", m.Len())
	}

	// A new request re-authenticates.
	if _, err := m.GetOrCreateSession(context.Background(), "host1", 22, creds); err != nil {
		t.Fatalf("Reconnect failed: %v", err)
	}
	if got := dials.Load(); got != 2 {
		t.Errorf("Expected 2 dials after reconnect, got %d", got)
	}
}

func TestCloseIdleSweepsOldSessions(t *testing.T) {
	var dials atomic.Int32
	m := newFakeManager(&dials, 0, WithIdleTimeout(time.Minute))
	creds := Credentials{Username: "alice", Password: "secret"}

	s, _ := m.GetOrCreateSession(context.Background(), "host1", 22, creds)
	m.CloseIdle(time.Now().Add(2 * time.Minute))

	if m.Len() != 0 {
		t.Errorf("Expected idle session to be swept, pool has %d", m.Len())
	}
	if s.State() != StateClosed {
		t.Errorf("Expected swept session to be closed, got %v", s.State())
	}
}

func TestCloseAll(t *testing.T) {
	var dials atomic.Int32
	m := newFakeManager(&dials, 0)
	creds := Credentials{Username: "alice", Password: "secret"}

	s1, _ := m.GetOrCreateSession(context.Background(), "host1", 22, creds)
	s2, _ := m.GetOrCreateSession(context.Background(), "host2", 22, creds)
	m.CloseAll()

	if m.Len() != 0 {
		t.Errorf("Expected empty pool, got %d", m.Len())
	}
	if s1.State() != StateClosed || s2.State() != StateClosed {
		t.Error("Expected all sessions closed after CloseAll")
	}
}

func TestNoAuthMethodFails(t *testing.T) {
	var dials atomic.Int32
	m := newFakeManager(&dials, 0)

	_, err := m.GetOrCreateSession(context.Background(), "host1", 22, Credentials{Username: "alice"})
	if err == nil {
		t.Fatal("Expected error without any authentication method")
	}
	if !vfserr.IsKind(err, vfserr.KindAuthenticationFailed) {
		t.Errorf("Expected authentication failure, got %v", err)
	}
	if got := dials.Load(); got != 0 {
		t.Errorf("Expected no dial attempt, got %d", got)
	}
}

func TestIsAuthError(t *testing.T) {
	testCases := []struct {
		message  string
		expected bool
	}{
		{"ssh: unable to authenticate, attempted methods [none password]", true},
		{"ssh: handshake failed: remote host key mismatch", false},
		{"permission denied (publickey)", true},
		{"dial tcp: connection refused", false},
	}

	for _, tc := range testCases {
		got := isAuthError(errString(tc.message))
		if got != tc.expected {
			t.Errorf("isAuthError(%q) = %v, expected %v", tc.message, got, tc.expected)
		}
	}
}

type errString string

func (e errString) Error() string { return string(e) }
