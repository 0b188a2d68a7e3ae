package auth

import (
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// TokenKind separates short-lived access credentials from renewal
// credentials. Neither kind is accepted where the other is expected.
type TokenKind string

// Token kinds.
const (
	KindAccess  TokenKind = "access"
	KindRenewal TokenKind = "renewal"
)

// Clock supplies the current time. Tests substitute a fixed clock.
type Clock func() time.Time

// Claims is the signed payload of every credential.
//
// Subject holds the nipol. Version is a pointer so a token minted without a
// session version decodes as nil rather than as version 0.
type Claims struct {
	jwt.RegisteredClaims
	AccountID int64     `json:"aid"`
	Version   *int64    `json:"ver,omitempty"`
	Kind      TokenKind `json:"kind"`
}

// Nipol returns the account identifier the token was issued to.
func (c *Claims) Nipol() string {
	return c.Subject
}

// Codec signs and verifies credentials with a single HS256 key.
type Codec struct {
	secret []byte
	now    Clock
}

// NewCodec returns a Codec for secret. A nil clock uses time.Now.
func NewCodec(secret string, now Clock) (*Codec, error) {
	if secret == "" {
		return nil, errors.New("codec: signing secret is empty")
	}
	if now == nil {
		now = time.Now
	}
	return &Codec{secret: []byte(secret), now: now}, nil
}

// Encode signs claims with an expiry ttl from now. IssuedAt and ExpiresAt
// are overwritten; a token id is generated when absent.
func (c *Codec) Encode(claims Claims, ttl time.Duration) (string, error) {
	if ttl <= 0 {
		return "", fmt.Errorf("encoding token: ttl must be positive, got %s", ttl)
	}

	now := c.now()
	claims.IssuedAt = jwt.NewNumericDate(now)
	claims.ExpiresAt = jwt.NewNumericDate(now.Add(ttl))
	if claims.ID == "" {
		claims.ID = uuid.NewString()
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(c.secret)
	if err != nil {
		return "", fmt.Errorf("signing token: %w", err)
	}
	return signed, nil
}

// Decode verifies the signature and expiry of token and returns its claims.
// A token is expired once now reaches its expiry instant.
func (c *Codec) Decode(token string) (*Claims, error) {
	parsed, err := jwt.ParseWithClaims(token, &Claims{}, func(_ *jwt.Token) (any, error) {
		return c.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(c.now),
	)
	if err != nil {
		switch {
		case errors.Is(err, jwt.ErrTokenExpired):
			return nil, fmt.Errorf("%w: %w", ErrTokenExpired, err)
		case errors.Is(err, jwt.ErrTokenSignatureInvalid):
			return nil, fmt.Errorf("%w: %w", ErrTokenSignature, err)
		default:
			return nil, fmt.Errorf("%w: %w", ErrTokenMalformed, err)
		}
	}

	claims, ok := parsed.Claims.(*Claims)
	if !ok || !parsed.Valid {
		return nil, ErrTokenMalformed
	}
	if claims.Subject == "" {
		return nil, fmt.Errorf("%w: missing subject", ErrTokenMalformed)
	}
	if claims.AccountID <= 0 {
		return nil, fmt.Errorf("%w: missing account id", ErrTokenMalformed)
	}
	if claims.Kind != KindAccess && claims.Kind != KindRenewal {
		return nil, fmt.Errorf("%w: unknown kind %q", ErrTokenMalformed, claims.Kind)
	}
	return claims, nil
}

// claimsFor builds the claims identifying acct at its current version.
func claimsFor(acct *Account, kind TokenKind) Claims {
	version := acct.Version
	return Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject: acct.Nipol,
		},
		AccountID: acct.ID,
		Version:   &version,
		Kind:      kind,
	}
}

// tokenRef identifies a token in logs without exposing it.
func tokenRef(c *Claims) string {
	if c == nil {
		return ""
	}
	return c.ID + "/" + strconv.FormatInt(c.AccountID, 10)
}
