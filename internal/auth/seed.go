package auth

import (
	"context"
	"fmt"
	"log/slog"
)

// SeedOwner creates the initial owner account when the store is empty.
// The generated password is logged once and returned; the account is
// flagged so the holder must change it. Returns "" when seeding is skipped.
func SeedOwner(ctx context.Context, store AccountStore, nipol string, logger *slog.Logger) (string, error) {
	count, err := store.Count(ctx)
	if err != nil {
		return "", fmt.Errorf("checking account count: %w", err)
	}
	if count > 0 {
		logger.Info("accounts exist, skipping owner seed")
		return "", nil
	}
	if !IsValidNipol(nipol) {
		return "", fmt.Errorf("seed owner nipol %q is not valid", nipol)
	}

	password, err := GenerateTemporaryPassword()
	if err != nil {
		return "", err
	}
	hash, err := HashPassword(password)
	if err != nil {
		return "", fmt.Errorf("hashing seed password: %w", err)
	}

	owner := &Account{
		Nipol:             nipol,
		Rank:              RankOwner,
		InscriptionStatus: InscriptionValid,
		TempPassword:      true,
		PasswordHash:      hash,
	}
	if err := store.Create(ctx, owner); err != nil {
		return "", fmt.Errorf("creating seed owner: %w", err)
	}

	logger.Warn("seed owner account created",
		"nipol", nipol,
		"password", password,
		"action_required", "change this password immediately",
	)
	return password, nil
}
