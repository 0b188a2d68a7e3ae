package auth

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/jackc/pgx/v5/pgconn"

	"github.com/nerrad567/neogend-core/internal/infrastructure/database"
)

// pgUniqueViolation is the SQLSTATE for unique_violation.
const pgUniqueViolation = "23505"

// PostgresAccountStore implements AccountStore on PostgreSQL through the
// pgx stdlib driver. The version increment relies on the row lock taken by
// UPDATE, so concurrent bumps serialise.
type PostgresAccountStore struct {
	db database.DBTX
}

// NewPostgresAccountStore creates a PostgreSQL-backed account store.
func NewPostgresAccountStore(db database.DBTX) *PostgresAccountStore {
	return &PostgresAccountStore{db: db}
}

// Create inserts acct and sets its ID from RETURNING. Version always
// starts at 0.
func (s *PostgresAccountStore) Create(ctx context.Context, acct *Account) error {
	if acct.InscriptionStatus == "" {
		acct.InscriptionStatus = InscriptionPending
	}
	now := time.Now().UTC().Truncate(time.Second)

	query := `INSERT INTO accounts (nipol, email, first_name, last_name, discord_id,
			rp_first_name, rp_last_name, rp_grade, rp_affectation, rp_service, rp_server,
			inscription_status, privilege, version, password_hash, temp_password,
			created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, 0, $14, $15, $16, $16)
		 RETURNING id`

	err := s.db.QueryRowContext(ctx, query,
		acct.Nipol, nullString(acct.Email), nullString(acct.FirstName), nullString(acct.LastName),
		nullString(acct.DiscordID), nullString(acct.RPFirstName), nullString(acct.RPLastName),
		nullString(acct.RPGrade), nullString(acct.RPAffectation), nullString(acct.RPService),
		nullString(acct.RPServer), string(acct.InscriptionStatus), acct.Rank.String(),
		acct.PasswordHash, acct.TempPassword, now,
	).Scan(&acct.ID)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation {
			return ErrNipolExists
		}
		return fmt.Errorf("creating account: %w", err)
	}

	acct.Version = 0
	acct.CreatedAt, acct.UpdatedAt = now, now
	return nil
}

// GetByID retrieves an account by its numeric id.
func (s *PostgresAccountStore) GetByID(ctx context.Context, id int64) (*Account, error) {
	return s.get(ctx, "SELECT "+accountColumns+" FROM accounts WHERE id = $1", id)
}

// GetByNipol retrieves an account by nipol.
func (s *PostgresAccountStore) GetByNipol(ctx context.Context, nipol string) (*Account, error) {
	return s.get(ctx, "SELECT "+accountColumns+" FROM accounts WHERE nipol = $1", nipol)
}

// GetByIDAndNipol retrieves an account only when both identifiers match
// the same row.
func (s *PostgresAccountStore) GetByIDAndNipol(ctx context.Context, id int64, nipol string) (*Account, error) {
	return s.get(ctx, "SELECT "+accountColumns+" FROM accounts WHERE id = $1 AND nipol = $2", id, nipol)
}

func (s *PostgresAccountStore) get(ctx context.Context, query string, args ...any) (*Account, error) {
	a, err := scanAccount(s.db.QueryRowContext(ctx, query, args...))
	if err != nil && !errors.Is(err, ErrAccountNotFound) {
		return nil, fmt.Errorf("loading account: %w", err)
	}
	return a, err
}

// List returns every account ordered by id.
func (s *PostgresAccountStore) List(ctx context.Context) ([]Account, error) {
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
func (s *PostgresAccountStore) Delete(ctx context.Context, id int64) error {
	res, err := s.db.ExecContext(ctx, "DELETE FROM accounts WHERE id = $1", id)
	if err != nil {
		return fmt.Errorf("deleting account: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("reading deleted accounts: %w", err)
	}
	if n == 0 {
		return ErrAccountNotFound
	}
	return nil
}

// Count returns the number of accounts.
func (s *PostgresAccountStore) Count(ctx context.Context) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM accounts").Scan(&n); err != nil {
		return 0, fmt.Errorf("counting accounts: %w", err)
	}
	return n, nil
}

// BumpVersion increments the version and applies change in one UPDATE,
// returning the new version.
func (s *PostgresAccountStore) BumpVersion(ctx context.Context, id int64, change *AccountChange) (int64, error) {
	sets, args := changeAssignments(change, func(n int) string { return "$" + strconv.Itoa(n) })
	args = append(args, time.Now().UTC(), id)

	query := "UPDATE accounts SET version = version + 1" + sets +
		", updated_at = $" + strconv.Itoa(len(args)-1) +
		" WHERE id = $" + strconv.Itoa(len(args)) +
		" RETURNING version"

	var version int64
	if err := s.db.QueryRowContext(ctx, query, args...).Scan(&version); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, ErrAccountNotFound
		}
		return 0, fmt.Errorf("bumping account version: %w", err)
	}
	return version, nil
}

// BumpAllVersions increments every account's version in one UPDATE and
// returns the number of accounts touched.
func (s *PostgresAccountStore) BumpAllVersions(ctx context.Context) (int64, error) {
	res, err := s.db.ExecContext(ctx,
		"UPDATE accounts SET version = version + 1, updated_at = $1", time.Now().UTC())
	if err != nil {
		return 0, fmt.Errorf("bumping all account versions: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("reading affected accounts: %w", err)
	}
	return n, nil
}
