package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
)

// Authenticator checks a nipol and password and mints a token pair.
type Authenticator struct {
	store  AccountStore
	issuer *Issuer
	logger *slog.Logger

	dummyOnce sync.Once
	dummyHash string
}

// NewAuthenticator creates an Authenticator.
func NewAuthenticator(store AccountStore, issuer *Issuer, logger *slog.Logger) *Authenticator {
	return &Authenticator{store: store, issuer: issuer, logger: logger}
}

// Login verifies the credentials and issues tokens at the account's
// current version. Unknown nipols and wrong passwords produce the same
// error and take comparable time.
func (a *Authenticator) Login(ctx context.Context, nipol, password string) (*Account, TokenPair, error) {
	acct, err := a.store.GetByNipol(ctx, nipol)
	if err != nil {
		if !errors.Is(err, ErrAccountNotFound) {
			return nil, TokenPair{}, fmt.Errorf("loading account: %w", err)
		}
		_, _ = VerifyPassword(password, a.dummy()) //nolint:errcheck // timing only
		a.logger.Info("login failed", "nipol", nipol, "reason", "unknown_nipol")
		return nil, TokenPair{}, fmt.Errorf("%w: %w", ErrUnauthenticated, ErrInvalidCredentials)
	}

	ok, err := VerifyPassword(password, acct.PasswordHash)
	if err != nil {
		return nil, TokenPair{}, fmt.Errorf("verifying password of account %d: %w", acct.ID, err)
	}
	if !ok {
		a.logger.Info("login failed", "nipol", nipol, "account_id", acct.ID, "reason", "wrong_password")
		return nil, TokenPair{}, fmt.Errorf("%w: %w", ErrUnauthenticated, ErrInvalidCredentials)
	}

	if NeedsRehash(acct.PasswordHash) {
		a.logger.Info("account uses a legacy password hash", "account_id", acct.ID)
	}

	pair, err := a.issuer.Issue(acct)
	if err != nil {
		return nil, TokenPair{}, err
	}
	a.logger.Info("login succeeded", "nipol", nipol, "account_id", acct.ID, "version", acct.Version)
	return acct, pair, nil
}

// CheckPassword verifies password for an already resolved account.
func (a *Authenticator) CheckPassword(acct *Account, password string) error {
	ok, err := VerifyPassword(password, acct.PasswordHash)
	if err != nil {
		return fmt.Errorf("verifying password of account %d: %w", acct.ID, err)
	}
	if !ok {
		return fmt.Errorf("%w: %w", ErrForbidden, ErrInvalidCredentials)
	}
	return nil
}

func (a *Authenticator) dummy() string {
	a.dummyOnce.Do(func() {
		a.dummyHash, _ = HashPassword("neogend-timing-equaliser") //nolint:errcheck // empty hash still burns a decode
	})
	return a.dummyHash
}
