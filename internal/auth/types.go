package auth

import (
	"errors"
	"regexp"
	"time"
)

// nipolPattern is the accepted format for the external account identifier.
var nipolPattern = regexp.MustCompile(`^[a-zA-Z0-9._-]{1,64}$`)

// IsValidNipol reports whether s can be used as an account nipol.
func IsValidNipol(s string) bool {
	return nipolPattern.MatchString(s)
}

// InscriptionStatus tracks where an account is in the onboarding review.
type InscriptionStatus string

// Inscription states.
const (
	InscriptionPending InscriptionStatus = "pending"
	InscriptionValid   InscriptionStatus = "valid"
	InscriptionDenied  InscriptionStatus = "denied"
)

// Valid reports whether s is a known inscription status.
func (s InscriptionStatus) Valid() bool {
	switch s {
	case InscriptionPending, InscriptionValid, InscriptionDenied:
		return true
	}
	return false
}

// Profile holds the descriptive, non-security fields of an account.
// The rp_ fields describe the in-game identity.
type Profile struct {
	FirstName     string `json:"first_name,omitempty"`
	LastName      string `json:"last_name,omitempty"`
	Email         string `json:"email,omitempty"`
	DiscordID     string `json:"discord_id,omitempty"`
	RPFirstName   string `json:"rp_first_name,omitempty"`
	RPLastName    string `json:"rp_last_name,omitempty"`
	RPGrade       string `json:"rp_grade,omitempty"`
	RPAffectation string `json:"rp_affectation,omitempty"`
	RPService     string `json:"rp_service,omitempty"`
	RPServer      string `json:"rp_server,omitempty"`
}

// Account is a user of the records backend.
//
// ID and Nipol are immutable once assigned. Version only ever increases and
// is changed exclusively through the Ledger.
type Account struct {
	ID    int64  `json:"id"`
	Nipol string `json:"nipol"`
	Profile
	Rank              Rank              `json:"privilege"`
	InscriptionStatus InscriptionStatus `json:"inscription_status"`
	TempPassword      bool              `json:"temp_password"`
	Version           int64             `json:"-"`
	PasswordHash      string            `json:"-"`
	CreatedAt         time.Time         `json:"created_at"`
	UpdatedAt         time.Time         `json:"updated_at"`
}

// AccountChange is a state change applied together with a version bump.
// Nil fields are left untouched.
type AccountChange struct {
	PasswordHash *string
	TempPassword *bool
	Rank         *Rank
}

// Outcome classes. Every error returned by this package wraps at most one of
// these; the HTTP layer maps them to status codes.
var (
	ErrUnauthenticated = errors.New("unauthenticated")
	ErrForbidden       = errors.New("forbidden")
	ErrAccountNotFound = errors.New("account not found")
	ErrNipolExists     = errors.New("nipol or email already registered")
)

// Reasons carried alongside the outcome classes. They reach server logs,
// never clients.
var (
	ErrInvalidCredentials   = errors.New("invalid credentials")
	ErrTokenExpired         = errors.New("token has expired")
	ErrTokenSignature       = errors.New("token signature is invalid")
	ErrTokenMalformed       = errors.New("token is malformed")
	ErrWrongTokenKind       = errors.New("token kind not accepted here")
	ErrMissingVersion       = errors.New("token carries no session version")
	ErrCredentialSuperseded = errors.New("credential superseded")
	ErrMissingArtifact      = errors.New("renewal artifact missing")
	ErrInvalidToken         = errors.New("renewal token invalid")

	ErrProtectedAccount = errors.New("account is protected")
	ErrSelfAction       = errors.New("action cannot target own account")
	ErrInsufficientRank = errors.New("insufficient privilege rank")
	ErrInvalidRank      = errors.New("invalid privilege rank")
)
