package auth

import (
	"context"
	"errors"
	"testing"

	"golang.org/x/crypto/bcrypt"
)

func TestAuthenticator_Login(t *testing.T) {
	a := newAuthority(t)
	acct := seedAccount(t, a.store, "jdupont", RankPlayer)

	got, pair, err := a.authn.Login(context.Background(), "jdupont", testPassword)
	if err != nil {
		t.Fatalf("Login() error = %v", err)
	}
	if got.ID != acct.ID {
		t.Errorf("Login() account = %d, want %d", got.ID, acct.ID)
	}
	if pair.AccessToken == "" || pair.RenewalToken == "" {
		t.Fatal("Login() should return both tokens")
	}
	if _, err := a.verifier.Verify(context.Background(), pair.AccessToken); err != nil {
		t.Errorf("login access token rejected: %v", err)
	}
}

func TestAuthenticator_LoginFailuresLookAlike(t *testing.T) {
	a := newAuthority(t)
	seedAccount(t, a.store, "jdupont", RankPlayer)
	ctx := context.Background()

	_, _, unknownErr := a.authn.Login(ctx, "nobody", testPassword)
	_, _, wrongErr := a.authn.Login(ctx, "jdupont", "wrong-password")

	for name, err := range map[string]error{"unknown nipol": unknownErr, "wrong password": wrongErr} {
		if !errors.Is(err, ErrUnauthenticated) || !errors.Is(err, ErrInvalidCredentials) {
			t.Errorf("%s: error = %v, want invalid credentials", name, err)
		}
		if errors.Is(err, ErrAccountNotFound) {
			t.Errorf("%s: error leaks account existence", name)
		}
	}
	if unknownErr.Error() != wrongErr.Error() {
		t.Errorf("messages differ: %q vs %q", unknownErr, wrongErr)
	}
}

func TestAuthenticator_LegacyBcrypt(t *testing.T) {
	a := newAuthority(t)
	hash, err := bcrypt.GenerateFromPassword([]byte("imported-password"), bcrypt.MinCost)
	if err != nil {
		t.Fatalf("bcrypt: %v", err)
	}
	legacy := &Account{Nipol: "veteran", Rank: RankPlayer, InscriptionStatus: InscriptionValid, PasswordHash: string(hash)}
	if err := a.store.Create(context.Background(), legacy); err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	if _, _, err := a.authn.Login(context.Background(), "veteran", "imported-password"); err != nil {
		t.Errorf("Login() with bcrypt hash error = %v", err)
	}
}

func TestAuthenticator_CheckPassword(t *testing.T) {
	a := newAuthority(t)
	acct := seedAccount(t, a.store, "jdupont", RankPlayer)

	if err := a.authn.CheckPassword(acct, testPassword); err != nil {
		t.Errorf("CheckPassword(correct) error = %v", err)
	}
	err := a.authn.CheckPassword(acct, "nope")
	if !errors.Is(err, ErrForbidden) || !errors.Is(err, ErrInvalidCredentials) {
		t.Errorf("CheckPassword(wrong) error = %v, want forbidden", err)
	}
}
