// AngelaMos | 2026
// fakes_test.go

package auth

import (
	"context"
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/lestrrat-go/jwx/v3/jwk"
	"github.com/stretchr/testify/require"

	"github.com/carterperez-dev/pocketree/internal/config"
	"github.com/carterperez-dev/pocketree/internal/core"
)

var testNow = time.Date(2026, 3, 14, 9, 0, 0, 0, time.UTC)

const (
	accessTTL  = 15 * time.Minute
	refreshTTL = 7 * 24 * time.Hour
)

type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

type memSessions struct {
	mu   sync.Mutex
	rows map[string]Session
}

func newMemSessions() *memSessions {
	return &memSessions{rows: make(map[string]Session)}
}

func (m *memSessions) Create(_ context.Context, s *Session) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.rows[s.TokenHash] = *s
	return nil
}

func (m *memSessions) Rotate(_ context.Context, hash string, at time.Time) (*Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	s, ok := m.rows[hash]
	if !ok || s.RotatedAt != nil || s.RevokedAt != nil || !s.ExpiresAt.After(at) {
		return nil, fmt.Errorf("rotate session: %w", core.ErrNotFound)
	}
	s.RotatedAt = &at
	m.rows[hash] = s
	return &s, nil
}

func (m *memSessions) Lookup(_ context.Context, hash string) (*Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	s, ok := m.rows[hash]
	if !ok {
		return nil, fmt.Errorf("lookup session: %w", core.ErrNotFound)
	}
	return &s, nil
}

func (m *memSessions) Revoke(_ context.Context, hash, userID string, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if s, ok := m.rows[hash]; ok && s.UserID == userID && s.RevokedAt == nil {
		s.RevokedAt = &at
		m.rows[hash] = s
	}
	return nil
}

func (m *memSessions) RevokeUser(_ context.Context, userID string, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for hash, s := range m.rows {
		if s.UserID == userID && s.RevokedAt == nil {
			s.RevokedAt = &at
			m.rows[hash] = s
		}
	}
	return nil
}

func (m *memSessions) Purge(_ context.Context, before time.Time) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var n int64
	for hash, s := range m.rows {
		if s.ExpiresAt.Before(before) {
			delete(m.rows, hash)
			n++
		}
	}
	return n, nil
}

type memAccounts struct {
	mu       sync.Mutex
	clock    core.Clock
	byID     map[string]*Account
	logins   []string
	loginErr error
}

func newMemAccounts(clock core.Clock) *memAccounts {
	return &memAccounts{clock: clock, byID: make(map[string]*Account)}
}

func (m *memAccounts) AccountByEmail(_ context.Context, email string) (*Account, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, a := range m.byID {
		if a.Email == strings.ToLower(email) {
			cp := *a
			return &cp, nil
		}
	}
	return nil, fmt.Errorf("get user: %w", core.ErrNotFound)
}

func (m *memAccounts) AccountByID(_ context.Context, id string) (*Account, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	a, ok := m.byID[id]
	if !ok {
		return nil, fmt.Errorf("get user: %w", core.ErrNotFound)
	}
	cp := *a
	return &cp, nil
}

func (m *memAccounts) OpenAccount(_ context.Context, email, hash, username string) (*Account, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, a := range m.byID {
		if a.Email == strings.ToLower(email) {
			return nil, fmt.Errorf("create user: %w", core.ErrDuplicateKey)
		}
	}

	a := &Account{
		ID:           uuid.NewString(),
		Email:        strings.ToLower(email),
		Username:     username,
		PasswordHash: hash,
		Role:         "user",
		CreatedAt:    m.clock(),
	}
	m.byID[a.ID] = a
	cp := *a
	return &cp, nil
}

func (m *memAccounts) RecordLogin(_ context.Context, userID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.loginErr != nil {
		return m.loginErr
	}
	m.logins = append(m.logins, userID)
	return nil
}

func (m *memAccounts) SetPassword(_ context.Context, userID, hash string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.byID[userID].PasswordHash = hash
	return nil
}

func (m *memAccounts) BumpTokenVersion(_ context.Context, userID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.byID[userID].TokenVersion++
	return nil
}

func (m *memAccounts) remove(id string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.byID, id)
}

func (m *memAccounts) loginCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.logins)
}

type memDenylist struct {
	mu     sync.Mutex
	denied map[string]time.Duration
	err    error
}

func newMemDenylist() *memDenylist {
	return &memDenylist{denied: make(map[string]time.Duration)}
}

func (d *memDenylist) Deny(_ context.Context, id string, ttl time.Duration) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.err != nil {
		return d.err
	}
	d.denied[id] = ttl
	return nil
}

func (d *memDenylist) Denied(_ context.Context, id string) (bool, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.err != nil {
		return false, d.err
	}
	_, ok := d.denied[id]
	return ok, nil
}

func testJWTConfig() config.JWTConfig {
	return config.JWTConfig{
		Issuer:             "pocketree",
		Audience:           "pocketree-app",
		AccessTokenExpire:  accessTTL,
		RefreshTokenExpire: refreshTTL,
	}
}

func testKey(t *testing.T) jwk.Key {
	t.Helper()
	raw, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	require.NoError(t, err)
	key, err := jwk.Import(raw)
	require.NoError(t, err)
	return key
}

type fixture struct {
	svc      *Service
	signer   *Signer
	sessions *memSessions
	accounts *memAccounts
	denied   *memDenylist
	clock    *testClock
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	clk := &testClock{now: testNow}
	signer, err := newSigner(testKey(t), testJWTConfig(), clk.Now)
	require.NoError(t, err)

	f := &fixture{
		signer:   signer,
		sessions: newMemSessions(),
		accounts: newMemAccounts(clk.Now),
		denied:   newMemDenylist(),
		clock:    clk,
	}
	f.svc = NewService(f.sessions, signer, f.accounts, f.denied, ServiceConfig{
		RefreshTTL: refreshTTL,
		Clock:      clk.Now,
		Logger:     slog.New(slog.NewTextHandler(io.Discard, nil)),
	})
	return f
}

func (f *fixture) register(t *testing.T, email string) *Grant {
	t.Helper()
	g, err := f.svc.Register(context.Background(), RegisterRequest{
		Email:    email,
		Password: "correct horse",
		Username: strings.Split(email, "@")[0],
	})
	require.NoError(t, err)
	return g
}
