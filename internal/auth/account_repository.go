package auth

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/mattn/go-sqlite3"
)

// AccountStore persists accounts. Implementations must apply BumpVersion
// and BumpAllVersions atomically: the increment and any accompanying change
// land in a single statement or not at all.
type AccountStore interface {
	Create(ctx context.Context, acct *Account) error
	GetByID(ctx context.Context, id int64) (*Account, error)
	GetByNipol(ctx context.Context, nipol string) (*Account, error)
	GetByIDAndNipol(ctx context.Context, id int64, nipol string) (*Account, error)
	List(ctx context.Context) ([]Account, error)
	Delete(ctx context.Context, id int64) error
	Count(ctx context.Context) (int, error)

	// BumpVersion increments the account's version, applies change in the
	// same statement, and returns the new version.
	BumpVersion(ctx context.Context, id int64, change *AccountChange) (int64, error)

	// BumpAllVersions increments every account's version and returns how
	// many accounts were affected.
	BumpAllVersions(ctx context.Context) (int64, error)
}

const accountColumns = `id, nipol, email, first_name, last_name, discord_id,
	rp_first_name, rp_last_name, rp_grade, rp_affectation, rp_service, rp_server,
	inscription_status, privilege, version, password_hash, temp_password,
	created_at, updated_at`

// SQLiteAccountStore implements AccountStore on SQLite.
type SQLiteAccountStore struct {
	db *sql.DB
}

// NewAccountStore creates a SQLite-backed account store.
func NewAccountStore(db *sql.DB) *SQLiteAccountStore {
	return &SQLiteAccountStore{db: db}
}

// Create inserts acct and sets its ID. Version always starts at 0.
func (s *SQLiteAccountStore) Create(ctx context.Context, acct *Account) error {
	if acct.InscriptionStatus == "" {
		acct.InscriptionStatus = InscriptionPending
	}
	now := time.Now().UTC().Truncate(time.Second)
	acct.CreatedAt, acct.UpdatedAt = now, now
	acct.Version = 0
	stamp := now.Format(time.RFC3339)

	res, err := s.db.ExecContext(ctx,
		`INSERT INTO accounts (nipol, email, first_name, last_name, discord_id,
			rp_first_name, rp_last_name, rp_grade, rp_affectation, rp_service, rp_server,
			inscription_status, privilege, version, password_hash, temp_password,
			created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, 0, ?, ?, ?, ?)`,
		acct.Nipol, nullString(acct.Email), nullString(acct.FirstName), nullString(acct.LastName),
		nullString(acct.DiscordID), nullString(acct.RPFirstName), nullString(acct.RPLastName),
		nullString(acct.RPGrade), nullString(acct.RPAffectation), nullString(acct.RPService),
		nullString(acct.RPServer), string(acct.InscriptionStatus), acct.Rank.String(),
		acct.PasswordHash, boolToInt(acct.TempPassword), stamp, stamp,
	)
	if err != nil {
		if isSQLiteUniqueViolation(err) {
			return ErrNipolExists
		}
		return fmt.Errorf("creating account: %w", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("reading account id: %w", err)
	}
	acct.ID = id
	return nil
}

// GetByID retrieves an account by its numeric id.
func (s *SQLiteAccountStore) GetByID(ctx context.Context, id int64) (*Account, error) {
	return scanAccount(s.db.QueryRowContext(ctx,
		"SELECT "+accountColumns+" FROM accounts WHERE id = ?", id))
}

// GetByNipol retrieves an account by nipol.
func (s *SQLiteAccountStore) GetByNipol(ctx context.Context, nipol string) (*Account, error) {
	return scanAccount(s.db.QueryRowContext(ctx,
		"SELECT "+accountColumns+" FROM accounts WHERE nipol = ?", nipol))
}

// GetByIDAndNipol retrieves an account only when both identifiers match
// the same row.
func (s *SQLiteAccountStore) GetByIDAndNipol(ctx context.Context, id int64, nipol string) (*Account, error) {
	return scanAccount(s.db.QueryRowContext(ctx,
		"SELECT "+accountColumns+" FROM accounts WHERE id = ? AND nipol = ?", id, nipol))
}

// List returns every account ordered by id.
func (s *SQLiteAccountStore) List(ctx context.Context) ([]Account, error) {
	rows, err := s.db.QueryContext(ctx, "SELECT "+accountColumns+" FROM accounts ORDER BY id ASC")
	if err != nil {
		return nil, fmt.Errorf("listing accounts: %w", err)
	}
	defer rows.Close()

	accounts := []Account{}
	for rows.Next() {
		a, err := scanAccount(rows)
		if err != nil {
			return nil, err
		}
		accounts = append(accounts, *a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating accounts: %w", err)
	}
	return accounts, nil
}

// Delete removes an account.
func (s *SQLiteAccountStore) Delete(ctx context.Context, id int64) error {
	res, err := s.db.ExecContext(ctx, "DELETE FROM accounts WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("deleting account: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 { //nolint:errcheck // always succeeds on SQLite
		return ErrAccountNotFound
	}
	return nil
}

// Count returns the number of accounts.
func (s *SQLiteAccountStore) Count(ctx context.Context) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM accounts").Scan(&n); err != nil {
		return 0, fmt.Errorf("counting accounts: %w", err)
	}
	return n, nil
}

// BumpVersion increments the version and applies change in one UPDATE.
func (s *SQLiteAccountStore) BumpVersion(ctx context.Context, id int64, change *AccountChange) (int64, error) {
	sets, args := changeAssignments(change, func(int) string { return "?" })
	args = append(args, time.Now().UTC().Format(time.RFC3339), id)

	query := "UPDATE accounts SET version = version + 1" + sets +
		", updated_at = ? WHERE id = ? RETURNING version"

	var version int64
	if err := s.db.QueryRowContext(ctx, query, args...).Scan(&version); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, ErrAccountNotFound
		}
		return 0, fmt.Errorf("bumping account version: %w", err)
	}
	return version, nil
}

// BumpAllVersions increments every account's version in one UPDATE.
func (s *SQLiteAccountStore) BumpAllVersions(ctx context.Context) (int64, error) {
	res, err := s.db.ExecContext(ctx,
		"UPDATE accounts SET version = version + 1, updated_at = ?",
		time.Now().UTC().Format(time.RFC3339))
	if err != nil {
		return 0, fmt.Errorf("bumping all account versions: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("reading affected accounts: %w", err)
	}
	return n, nil
}

// changeAssignments renders the SET fragments for change. placeholder
// receives the 1-based argument position.
func changeAssignments(change *AccountChange, placeholder func(int) string) (string, []any) {
	if change == nil {
		return "", nil
	}
	var b strings.Builder
	var args []any
	add := func(column string, v any) {
		args = append(args, v)
		fmt.Fprintf(&b, ", %s = %s", column, placeholder(len(args)))
	}
	if change.PasswordHash != nil {
		add("password_hash", *change.PasswordHash)
	}
	if change.TempPassword != nil {
		add("temp_password", *change.TempPassword)
	}
	if change.Rank != nil {
		add("privilege", change.Rank.String())
	}
	return b.String(), args
}

// scanner is satisfied by *sql.Row and *sql.Rows.
type scanner interface {
	Scan(dest ...any) error
}

// scanAccount reads one account row selected with accountColumns.
// Timestamps may arrive as RFC 3339 text (SQLite) or time.Time (PostgreSQL).
func scanAccount(row scanner) (*Account, error) {
	var a Account
	var email, firstName, lastName, discordID sql.NullString
	var rpFirst, rpLast, rpGrade, rpAffectation, rpService, rpServer sql.NullString
	var status, rank string
	var createdAt, updatedAt any

	err := row.Scan(&a.ID, &a.Nipol, &email, &firstName, &lastName, &discordID,
		&rpFirst, &rpLast, &rpGrade, &rpAffectation, &rpService, &rpServer,
		&status, &rank, &a.Version, &a.PasswordHash, &a.TempPassword,
		&createdAt, &updatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrAccountNotFound
		}
		return nil, fmt.Errorf("scanning account: %w", err)
	}

	if a.Rank, err = ParseRank(rank); err != nil {
		return nil, fmt.Errorf("account %d: %w", a.ID, err)
	}
	a.InscriptionStatus = InscriptionStatus(status)
	a.Profile = Profile{
		Email:         email.String,
		FirstName:     firstName.String,
		LastName:      lastName.String,
		DiscordID:     discordID.String,
		RPFirstName:   rpFirst.String,
		RPLastName:    rpLast.String,
		RPGrade:       rpGrade.String,
		RPAffectation: rpAffectation.String,
		RPService:     rpService.String,
		RPServer:      rpServer.String,
	}
	a.CreatedAt = toTime(createdAt)
	a.UpdatedAt = toTime(updatedAt)
	return &a, nil
}

func toTime(v any) time.Time {
	switch t := v.(type) {
	case time.Time:
		return t.UTC()
	case string:
		parsed, _ := time.Parse(time.RFC3339, t) //nolint:errcheck // format is controlled
		return parsed
	case []byte:
		parsed, _ := time.Parse(time.RFC3339, string(t)) //nolint:errcheck // format is controlled
		return parsed
	}
	return time.Time{}
}

func nullString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

// isSQLiteUniqueViolation reports whether err is a UNIQUE constraint failure.
func isSQLiteUniqueViolation(err error) bool {
	var sqliteErr sqlite3.Error
	if errors.As(err, &sqliteErr) {
		return sqliteErr.ExtendedCode == sqlite3.ErrConstraintUnique
	}
	return false
}
