package auth

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

func newTestCodec(t *testing.T, clock *fakeClock) *Codec {
	t.Helper()
	c, err := NewCodec(testSecret, clock.Now)
	if err != nil {
		t.Fatalf("NewCodec() error = %v", err)
	}
	return c
}

func testClaims(version int64, kind TokenKind) Claims {
	return Claims{
		RegisteredClaims: jwt.RegisteredClaims{Subject: "jdupont"},
		AccountID:        7,
		Version:          &version,
		Kind:             kind,
	}
}

func TestNewCodec_EmptySecret(t *testing.T) {
	if _, err := NewCodec("", nil); err == nil {
		t.Fatal("NewCodec(\"\") should fail")
	}
}

func TestCodec_EncodeDecode(t *testing.T) {
	clock := newFakeClock()
	c := newTestCodec(t, clock)

	token, err := c.Encode(testClaims(3, KindAccess), 30*time.Minute)
	if err != nil {
		t.Fatalf("Encode() error = %v", err)
	}

	got, err := c.Decode(token)
	if err != nil {
		t.Fatalf("Decode() error = %v", err)
	}
	if got.Nipol() != "jdupont" {
		t.Errorf("Nipol() = %q, want jdupont", got.Nipol())
	}
	if got.AccountID != 7 {
		t.Errorf("AccountID = %d, want 7", got.AccountID)
	}
	if got.Version == nil || *got.Version != 3 {
		t.Errorf("Version = %v, want 3", got.Version)
	}
	if got.Kind != KindAccess {
		t.Errorf("Kind = %q, want access", got.Kind)
	}
	if got.ID == "" {
		t.Error("token id should be generated")
	}
	if !got.ExpiresAt.Equal(testEpoch.Add(30 * time.Minute)) {
		t.Errorf("ExpiresAt = %v, want %v", got.ExpiresAt.Time, testEpoch.Add(30*time.Minute))
	}
}

func TestCodec_VersionZeroSurvives(t *testing.T) {
	c := newTestCodec(t, newFakeClock())

	token, err := c.Encode(testClaims(0, KindRenewal), time.Hour)
	if err != nil {
		t.Fatalf("Encode() error = %v", err)
	}
	got, err := c.Decode(token)
	if err != nil {
		t.Fatalf("Decode() error = %v", err)
	}
	if got.Version == nil {
		t.Fatal("version 0 should decode as a present version")
	}
	if *got.Version != 0 {
		t.Errorf("Version = %d, want 0", *got.Version)
	}
}

func TestCodec_MissingVersionDecodesNil(t *testing.T) {
	c := newTestCodec(t, newFakeClock())

	claims := testClaims(0, KindAccess)
	claims.Version = nil
	token, err := c.Encode(claims, time.Hour)
	if err != nil {
		t.Fatalf("Encode() error = %v", err)
	}

	got, err := c.Decode(token)
	if err != nil {
		t.Fatalf("Decode() error = %v", err)
	}
	if got.Version != nil {
		t.Errorf("Version = %d, want nil", *got.Version)
	}
}

func TestCodec_Expiry(t *testing.T) {
	tests := []struct {
		name    string
		advance time.Duration
		wantErr error
	}{
		{"fresh", 0, nil},
		{"one second before expiry", 30*time.Minute - time.Second, nil},
		{"at expiry", 30 * time.Minute, ErrTokenExpired},
		{"after expiry", 31 * time.Minute, ErrTokenExpired},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			clock := newFakeClock()
			c := newTestCodec(t, clock)

			token, err := c.Encode(testClaims(1, KindAccess), 30*time.Minute)
			if err != nil {
				t.Fatalf("Encode() error = %v", err)
			}
			clock.Advance(tt.advance)

			_, err = c.Decode(token)
			if tt.wantErr == nil {
				if err != nil {
					t.Fatalf("Decode() error = %v", err)
				}
				return
			}
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("Decode() error = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestCodec_WrongSecret(t *testing.T) {
	clock := newFakeClock()
	other, err := NewCodec("another-secret-key-that-is-long-enough", clock.Now)
	if err != nil {
		t.Fatalf("NewCodec() error = %v", err)
	}

	token, err := other.Encode(testClaims(1, KindAccess), time.Hour)
	if err != nil {
		t.Fatalf("Encode() error = %v", err)
	}

	_, err = newTestCodec(t, clock).Decode(token)
	if !errors.Is(err, ErrTokenSignature) {
		t.Errorf("Decode() error = %v, want ErrTokenSignature", err)
	}
}

func TestCodec_TamperedPayload(t *testing.T) {
	c := newTestCodec(t, newFakeClock())

	token, err := c.Encode(testClaims(1, KindAccess), time.Hour)
	if err != nil {
		t.Fatalf("Encode() error = %v", err)
	}
	forged, err := c.Encode(testClaims(9, KindAccess), time.Hour)
	if err != nil {
		t.Fatalf("Encode() error = %v", err)
	}

	// Payload of one token, signature of another.
	a := strings.Split(token, ".")
	b := strings.Split(forged, ".")
	spliced := a[0] + "." + b[1] + "." + a[2]

	if _, err := c.Decode(spliced); !errors.Is(err, ErrTokenSignature) {
		t.Errorf("Decode(spliced) error = %v, want ErrTokenSignature", err)
	}
}

func TestCodec_Malformed(t *testing.T) {
	clock := newFakeClock()
	c := newTestCodec(t, clock)

	noneToken, err := jwt.NewWithClaims(jwt.SigningMethodNone, testClaims(1, KindAccess)).
		SignedString(jwt.UnsafeAllowNoneSignatureType)
	if err != nil {
		t.Fatalf("signing none token: %v", err)
	}

	hs512, err := jwt.NewWithClaims(jwt.SigningMethodHS512, Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   "jdupont",
			ExpiresAt: jwt.NewNumericDate(testEpoch.Add(time.Hour)),
		},
		AccountID: 7,
		Kind:      KindAccess,
	}).SignedString([]byte(testSecret))
	if err != nil {
		t.Fatalf("signing HS512 token: %v", err)
	}

	tests := []struct {
		name  string
		token string
	}{
		{"empty", ""},
		{"garbage", "not-a-token"},
		{"two segments", "a.b"},
		{"alg none", noneToken},
		{"other hmac", hs512},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := c.Decode(tt.token)
			if err == nil {
				t.Fatal("Decode() should fail")
			}
			if !errors.Is(err, ErrTokenMalformed) && !errors.Is(err, ErrTokenSignature) {
				t.Errorf("Decode() error = %v, want malformed or signature", err)
			}
		})
	}
}

func TestCodec_RejectsIncompleteClaims(t *testing.T) {
	c := newTestCodec(t, newFakeClock())

	tests := []struct {
		name   string
		mutate func(*Claims)
	}{
		{"no subject", func(cl *Claims) { cl.Subject = "" }},
		{"no account id", func(cl *Claims) { cl.AccountID = 0 }},
		{"unknown kind", func(cl *Claims) { cl.Kind = "refresh" }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			claims := testClaims(1, KindAccess)
			tt.mutate(&claims)

			token, err := c.Encode(claims, time.Hour)
			if err != nil {
				t.Fatalf("Encode() error = %v", err)
			}
			if _, err := c.Decode(token); !errors.Is(err, ErrTokenMalformed) {
				t.Errorf("Decode() error = %v, want ErrTokenMalformed", err)
			}
		})
	}
}

func TestCodec_MissingExpiry(t *testing.T) {
	c := newTestCodec(t, newFakeClock())

	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, testClaims(1, KindAccess)).
		SignedString([]byte(testSecret))
	if err != nil {
		t.Fatalf("signing token: %v", err)
	}
	if _, err := c.Decode(token); err == nil {
		t.Error("token without exp should be rejected")
	}
}

func TestCodec_NonPositiveTTL(t *testing.T) {
	c := newTestCodec(t, newFakeClock())
	for _, ttl := range []time.Duration{0, -time.Second} {
		if _, err := c.Encode(testClaims(1, KindAccess), ttl); err == nil {
			t.Errorf("Encode(ttl=%s) should fail", ttl)
		}
	}
}
