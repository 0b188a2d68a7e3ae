package auth

import (
	"testing"
	"time"
)

// ─── Password hashing (Argon2id, intentionally slow) ────────────────

func BenchmarkHashPassword(b *testing.B) {
	for b.Loop() {
		HashPassword("correct-horse-battery-staple") //nolint:errcheck // benchmark
	}
}

func BenchmarkVerifyPassword(b *testing.B) {
	hash, err := HashPassword("correct-horse-battery-staple")
	if err != nil {
		b.Fatalf("HashPassword: %v", err)
	}
	for b.Loop() {
		VerifyPassword("correct-horse-battery-staple", hash) //nolint:errcheck // benchmark
	}
}

// ─── Credentials (per-request hot path) ─────────────────────────────

func benchIssuer(b *testing.B) (*Codec, *Issuer) {
	b.Helper()
	codec, err := NewCodec("benchmark-secret-key-32-bytes-xx", time.Now)
	if err != nil {
		b.Fatalf("NewCodec: %v", err)
	}
	iss, err := NewIssuer(codec, 0, 0)
	if err != nil {
		b.Fatalf("NewIssuer: %v", err)
	}
	return codec, iss
}

func BenchmarkIssue(b *testing.B) {
	_, iss := benchIssuer(b)
	acct := &Account{ID: 1, Nipol: "bench", Rank: RankAdmin, Version: 3}

	for b.Loop() {
		iss.Issue(acct) //nolint:errcheck // benchmark
	}
}

func BenchmarkDecode(b *testing.B) {
	codec, iss := benchIssuer(b)
	token, err := iss.IssueAccess(&Account{ID: 1, Nipol: "bench", Rank: RankAdmin})
	if err != nil {
		b.Fatalf("IssueAccess: %v", err)
	}
	for b.Loop() {
		codec.Decode(token) //nolint:errcheck // benchmark
	}
}

func BenchmarkCanAct(b *testing.B) {
	for b.Loop() {
		CanAct(RankAdmin, RankMod)
	}
}
