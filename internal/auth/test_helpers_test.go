package auth

import (
	"context"
	"database/sql"
	"log/slog"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/nerrad567/neogend-core/internal/infrastructure/database"
	_ "github.com/nerrad567/neogend-core/migrations"
)

const (
	testSecret   = "test-secret-key-that-is-at-least-32-chars"
	testPassword = "test-password"
)

// testEpoch is whole-second so token timestamps survive encoding.
var testEpoch = time.Date(2026, 10, 1, 12, 0, 0, 0, time.UTC)

var (
	testHashOnce sync.Once
	testHash     string
)

// testPasswordHash returns a hash of testPassword computed once per run.
func testPasswordHash(t testing.TB) string {
	t.Helper()
	testHashOnce.Do(func() {
		var err error
		if testHash, err = HashPassword(testPassword); err != nil {
			t.Fatalf("hashing password: %v", err)
		}
	})
	return testHash
}

// testLogger drops everything.
func testLogger() *slog.Logger {
	return slog.New(slog.DiscardHandler)
}

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: testEpoch}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

// testDB opens a migrated SQLite database in a temp directory.
func testDB(t *testing.T) *sql.DB {
	t.Helper()

	db, err := database.Open(database.Config{
		Driver:      database.DriverSQLite,
		Path:        filepath.Join(t.TempDir(), "auth-test.db"),
		WALMode:     true,
		BusyTimeout: 5,
	})
	if err != nil {
		t.Fatalf("opening test db: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	if err := db.Migrate(context.Background()); err != nil {
		t.Fatalf("migrating test db: %v", err)
	}
	return db.DB
}

// seedAccount creates a valid account holding rank with testPassword.
func seedAccount(t *testing.T, store AccountStore, nipol string, rank Rank) *Account {
	t.Helper()

	acct := &Account{
		Nipol:             nipol,
		Rank:              rank,
		InscriptionStatus: InscriptionValid,
		PasswordHash:      testPasswordHash(t),
	}
	if err := store.Create(context.Background(), acct); err != nil {
		t.Fatalf("creating account %s: %v", nipol, err)
	}
	return acct
}

// recordingSink keeps every event it receives.
type recordingSink struct {
	mu     sync.Mutex
	events []SessionEvent
	err    error
}

func (s *recordingSink) SessionRevoked(_ context.Context, ev SessionEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, ev)
	return s.err
}

func (s *recordingSink) Events() []SessionEvent {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]SessionEvent(nil), s.events...)
}

// authority bundles the components wired the way the server wires them.
type authority struct {
	clock    *fakeClock
	store    *SQLiteAccountStore
	codec    *Codec
	issuer   *Issuer
	ledger   *Ledger
	verifier *Verifier
	renewer  *Renewer
	authn    *Authenticator
	sink     *recordingSink
}

func newAuthority(t *testing.T) *authority {
	t.Helper()

	clock := newFakeClock()
	store := NewAccountStore(testDB(t))
	codec, err := NewCodec(testSecret, clock.Now)
	if err != nil {
		t.Fatalf("NewCodec() error = %v", err)
	}
	issuer, err := NewIssuer(codec, 30*time.Minute, 30*24*time.Hour)
	if err != nil {
		t.Fatalf("NewIssuer() error = %v", err)
	}
	sink := &recordingSink{}
	logger := testLogger()

	return &authority{
		clock:    clock,
		store:    store,
		codec:    codec,
		issuer:   issuer,
		ledger:   NewLedger(store, logger, sink),
		verifier: NewVerifier(codec, store, logger),
		renewer:  NewRenewer(codec, store, issuer, logger),
		authn:    NewAuthenticator(store, issuer, logger),
		sink:     sink,
	}
}
