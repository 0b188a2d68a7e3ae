package auth

import (
	"testing"
	"time"
)

func TestNewIssuer_TTLs(t *testing.T) {
	codec := newTestCodec(t, newFakeClock())

	tests := []struct {
		name           string
		access         time.Duration
		renewal        time.Duration
		wantErr        bool
		wantAccessTTL  time.Duration
		wantRenewalTTL time.Duration
	}{
		{"defaults", 0, 0, false, DefaultAccessTTL, DefaultRenewalTTL},
		{"explicit", time.Minute, time.Hour, false, time.Minute, time.Hour},
		{"renewal equals access", time.Hour, time.Hour, true, 0, 0},
		{"renewal shorter", time.Hour, time.Minute, true, 0, 0},
		{"negative access", -time.Minute, time.Hour, true, 0, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			iss, err := NewIssuer(codec, tt.access, tt.renewal)
			if tt.wantErr {
				if err == nil {
					t.Fatal("NewIssuer() should fail")
				}
				return
			}
			if err != nil {
				t.Fatalf("NewIssuer() error = %v", err)
			}
			if iss.AccessTTL() != tt.wantAccessTTL {
				t.Errorf("AccessTTL() = %s, want %s", iss.AccessTTL(), tt.wantAccessTTL)
			}
			if iss.RenewalTTL() != tt.wantRenewalTTL {
				t.Errorf("RenewalTTL() = %s, want %s", iss.RenewalTTL(), tt.wantRenewalTTL)
			}
		})
	}
}

func TestIssuer_Issue(t *testing.T) {
	clock := newFakeClock()
	codec := newTestCodec(t, clock)
	iss, err := NewIssuer(codec, 30*time.Minute, 30*24*time.Hour)
	if err != nil {
		t.Fatalf("NewIssuer() error = %v", err)
	}

	acct := &Account{ID: 12, Nipol: "mlefevre", Rank: RankMod, Version: 4}
	pair, err := iss.Issue(acct)
	if err != nil {
		t.Fatalf("Issue() error = %v", err)
	}
	if pair.AccessTTL != 30*time.Minute || pair.RenewalTTL != 30*24*time.Hour {
		t.Errorf("pair TTLs = %s/%s", pair.AccessTTL, pair.RenewalTTL)
	}

	checks := []struct {
		token   string
		kind    TokenKind
		expires time.Time
	}{
		{pair.AccessToken, KindAccess, testEpoch.Add(30 * time.Minute)},
		{pair.RenewalToken, KindRenewal, testEpoch.Add(30 * 24 * time.Hour)},
	}
	for _, c := range checks {
		claims, err := codec.Decode(c.token)
		if err != nil {
			t.Fatalf("Decode(%s) error = %v", c.kind, err)
		}
		if claims.Kind != c.kind {
			t.Errorf("Kind = %q, want %q", claims.Kind, c.kind)
		}
		if claims.AccountID != 12 || claims.Nipol() != "mlefevre" {
			t.Errorf("%s identifies %d/%s, want 12/mlefevre", c.kind, claims.AccountID, claims.Nipol())
		}
		if claims.Version == nil || *claims.Version != 4 {
			t.Errorf("%s version = %v, want 4", c.kind, claims.Version)
		}
		if !claims.ExpiresAt.Equal(c.expires) {
			t.Errorf("%s expires %v, want %v", c.kind, claims.ExpiresAt.Time, c.expires)
		}
	}

	if acct.Version != 4 {
		t.Errorf("issuing changed account version to %d", acct.Version)
	}
}

func TestIssuer_UniqueTokenIDs(t *testing.T) {
	codec := newTestCodec(t, newFakeClock())
	iss, err := NewIssuer(codec, 0, 0)
	if err != nil {
		t.Fatalf("NewIssuer() error = %v", err)
	}
	acct := &Account{ID: 1, Nipol: "owner", Rank: RankOwner}

	a, err := iss.IssueAccess(acct)
	if err != nil {
		t.Fatalf("IssueAccess() error = %v", err)
	}
	b, err := iss.IssueAccess(acct)
	if err != nil {
		t.Fatalf("IssueAccess() error = %v", err)
	}
	if a == b {
		t.Error("two access tokens issued in the same second should differ")
	}
}
