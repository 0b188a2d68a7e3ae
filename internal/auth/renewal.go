package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
)

// Renewer exchanges a renewal token for a fresh access token.
//
// The renewal token itself is not rotated; it stays valid until it expires
// or the account's version moves.
type Renewer struct {
	codec  *Codec
	store  AccountStore
	issuer *Issuer
	logger *slog.Logger
}

// NewRenewer creates a Renewer.
func NewRenewer(codec *Codec, store AccountStore, issuer *Issuer, logger *slog.Logger) *Renewer {
	return &Renewer{codec: codec, store: store, issuer: issuer, logger: logger}
}

// Renew validates artifact and mints an access token carrying the account's
// current stored version. Failures wrap ErrUnauthenticated and one of
// ErrMissingArtifact, ErrInvalidToken, ErrCredentialSuperseded or
// ErrAccountNotFound.
func (r *Renewer) Renew(ctx context.Context, artifact string) (string, *Account, error) {
	if artifact == "" {
		return "", nil, fmt.Errorf("%w: %w", ErrUnauthenticated, ErrMissingArtifact)
	}

	claims, err := r.codec.Decode(artifact)
	if err != nil {
		r.logger.Debug("renewal token rejected", "reason", "decode", "error", err)
		return "", nil, fmt.Errorf("%w: %w: %w", ErrUnauthenticated, ErrInvalidToken, err)
	}

	acct, err := resolveSession(ctx, r.store, claims, KindRenewal)
	if err != nil {
		logRejection(r.logger, "renewal token rejected", claims, acct, err)
		switch {
		case errors.Is(err, ErrCredentialSuperseded), errors.Is(err, ErrAccountNotFound):
			return "", nil, fmt.Errorf("%w: %w", ErrUnauthenticated, err)
		case errors.Is(err, ErrWrongTokenKind), errors.Is(err, ErrMissingVersion):
			return "", nil, fmt.Errorf("%w: %w: %w", ErrUnauthenticated, ErrInvalidToken, err)
		default:
			return "", nil, fmt.Errorf("renewing session: %w", err)
		}
	}

	access, err := r.issuer.IssueAccess(acct)
	if err != nil {
		return "", nil, err
	}
	return access, acct, nil
}
