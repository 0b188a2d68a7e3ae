// Package auth is the session and privilege authority for Neogend Core.
//
// Credentials are HS256 tokens of two kinds. Access tokens are short-lived
// and travel as bearer values; renewal tokens are long-lived and travel only
// in an http-only cookie. Both embed the account's version at issue time.
//
// Revocation needs no deny list. The Ledger increments an account's version
// on every security event (password change or reset, privilege change,
// forced disconnect, discard-all-sessions) and the Verifier rejects any
// token whose embedded version differs from the stored one.
//
// Admin mutations pass the Guard: protected accounts are untouchable,
// nobody may delete, disconnect or re-rank themselves, and an actor may
// only act on ranks listed for it in the hierarchy table
// (owner > admin > mod > player).
package auth
