package auth

import (
	"fmt"
	"time"
)

// Default credential lifetimes.
const (
	DefaultAccessTTL  = 30 * time.Minute
	DefaultRenewalTTL = 30 * 24 * time.Hour
)

// TokenPair is the result of a successful login.
//
// RenewalToken must only ever leave the server inside the renewal cookie.
type TokenPair struct {
	AccessToken  string
	RenewalToken string
	AccessTTL    time.Duration
	RenewalTTL   time.Duration
}

// Issuer mints credentials bound to an account's current version.
// Issuing never modifies the account.
type Issuer struct {
	codec      *Codec
	accessTTL  time.Duration
	renewalTTL time.Duration
}

// NewIssuer returns an Issuer. Zero TTLs take the defaults; the renewal
// lifetime must exceed the access lifetime.
func NewIssuer(codec *Codec, accessTTL, renewalTTL time.Duration) (*Issuer, error) {
	if accessTTL == 0 {
		accessTTL = DefaultAccessTTL
	}
	if renewalTTL == 0 {
		renewalTTL = DefaultRenewalTTL
	}
	if accessTTL < 0 || renewalTTL <= accessTTL {
		return nil, fmt.Errorf("issuer: renewal ttl %s must exceed access ttl %s", renewalTTL, accessTTL)
	}
	return &Issuer{codec: codec, accessTTL: accessTTL, renewalTTL: renewalTTL}, nil
}

// Issue mints an access and a renewal token for acct.
func (i *Issuer) Issue(acct *Account) (TokenPair, error) {
	access, err := i.IssueAccess(acct)
	if err != nil {
		return TokenPair{}, err
	}
	renewal, err := i.codec.Encode(claimsFor(acct, KindRenewal), i.renewalTTL)
	if err != nil {
		return TokenPair{}, fmt.Errorf("issuing renewal token: %w", err)
	}
	return TokenPair{
		AccessToken:  access,
		RenewalToken: renewal,
		AccessTTL:    i.accessTTL,
		RenewalTTL:   i.renewalTTL,
	}, nil
}

// IssueAccess mints only an access token for acct.
func (i *Issuer) IssueAccess(acct *Account) (string, error) {
	token, err := i.codec.Encode(claimsFor(acct, KindAccess), i.accessTTL)
	if err != nil {
		return "", fmt.Errorf("issuing access token: %w", err)
	}
	return token, nil
}

// AccessTTL returns the access token lifetime.
func (i *Issuer) AccessTTL() time.Duration { return i.accessTTL }

// RenewalTTL returns the renewal token lifetime.
func (i *Issuer) RenewalTTL() time.Duration { return i.renewalTTL }
