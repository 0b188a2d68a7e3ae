package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
)

// Verifier is the gate every protected call passes through. It has no side
// effects.
type Verifier struct {
	codec  *Codec
	store  AccountStore
	logger *slog.Logger
}

// NewVerifier creates a Verifier.
func NewVerifier(codec *Codec, store AccountStore, logger *slog.Logger) *Verifier {
	return &Verifier{codec: codec, store: store, logger: logger}
}

// Verify resolves an access token to its account. Credential failures wrap
// ErrUnauthenticated together with the specific reason; a storage failure
// is returned as is.
func (v *Verifier) Verify(ctx context.Context, token string) (*Account, error) {
	claims, err := v.codec.Decode(token)
	if err != nil {
		v.logger.Debug("access token rejected", "reason", "decode", "error", err)
		return nil, fmt.Errorf("%w: %w", ErrUnauthenticated, err)
	}

	acct, err := resolveSession(ctx, v.store, claims, KindAccess)
	if err != nil {
		logRejection(v.logger, "access token rejected", claims, acct, err)
		if !isRejection(err) {
			return nil, fmt.Errorf("verifying session: %w", err)
		}
		return nil, fmt.Errorf("%w: %w", ErrUnauthenticated, err)
	}
	return acct, nil
}

// isRejection separates credential problems from storage failures.
func isRejection(err error) bool {
	return errors.Is(err, ErrCredentialSuperseded) ||
		errors.Is(err, ErrAccountNotFound) ||
		errors.Is(err, ErrWrongTokenKind) ||
		errors.Is(err, ErrMissingVersion)
}

// resolveSession checks kind and version presence, looks the account up by
// id and nipol together, and compares versions. On a version mismatch the
// stored account is returned alongside ErrCredentialSuperseded so callers
// can log both versions.
func resolveSession(ctx context.Context, store AccountStore, claims *Claims, want TokenKind) (*Account, error) {
	if claims.Kind != want {
		return nil, fmt.Errorf("%w: got %s, want %s", ErrWrongTokenKind, claims.Kind, want)
	}
	if claims.Version == nil {
		return nil, ErrMissingVersion
	}

	acct, err := store.GetByIDAndNipol(ctx, claims.AccountID, claims.Nipol())
	if err != nil {
		return nil, err
	}
	if acct.Version != *claims.Version {
		return acct, ErrCredentialSuperseded
	}
	return acct, nil
}

// logRejection records why a credential failed. Superseded credentials are
// logged louder since they indicate a revoked session still in use.
func logRejection(logger *slog.Logger, msg string, claims *Claims, stored *Account, err error) {
	attrs := []any{"token", tokenRef(claims), "nipol", claims.Nipol()}

	switch {
	case errors.Is(err, ErrCredentialSuperseded):
		attrs = append(attrs, "reason", "superseded", "claim_version", *claims.Version)
		if stored != nil {
			attrs = append(attrs, "stored_version", stored.Version)
		}
		logger.Warn(msg, attrs...)
	case errors.Is(err, ErrAccountNotFound):
		logger.Info(msg, append(attrs, "reason", "account_not_found")...)
	case errors.Is(err, ErrWrongTokenKind), errors.Is(err, ErrMissingVersion):
		logger.Info(msg, append(attrs, "reason", "invalid_claims", "error", err)...)
	default:
		logger.Error(msg, append(attrs, "reason", "lookup_failed", "error", err)...)
	}
}
