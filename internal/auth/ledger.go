package auth

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"
)

// RevocationReason records why a session generation ended.
type RevocationReason string

// Revocation reasons.
const (
	ReasonPasswordChange      RevocationReason = "password_change"
	ReasonPasswordReset       RevocationReason = "password_reset"
	ReasonLogout              RevocationReason = "logout"
	ReasonDiscardSessions     RevocationReason = "discard_sessions"
	ReasonPrivilegeChange     RevocationReason = "privilege_change"
	ReasonForcedDisconnect    RevocationReason = "forced_disconnect"
	ReasonForcedDisconnectAll RevocationReason = "forced_disconnect_all"
)

// SessionEvent describes one committed version bump.
//
// AccountID is zero for a global bump; Affected then holds how many
// accounts moved. ActorID is zero when the system acted on its own.
type SessionEvent struct {
	AccountID  int64            `json:"account_id,omitempty"`
	ActorID    int64            `json:"actor_id,omitempty"`
	Reason     RevocationReason `json:"reason"`
	NewVersion int64            `json:"new_version,omitempty"`
	Affected   int64            `json:"affected"`
	At         time.Time        `json:"at"`
}

// Global reports whether the event invalidated every account.
func (e SessionEvent) Global() bool {
	return e.AccountID == 0
}

// EventSink receives committed session events. Sinks run after the bump is
// durable; a failing sink never undoes it.
type EventSink interface {
	SessionRevoked(ctx context.Context, ev SessionEvent) error
}

// EventSinkFunc adapts a function to EventSink.
type EventSinkFunc func(ctx context.Context, ev SessionEvent) error

// SessionRevoked calls f.
func (f EventSinkFunc) SessionRevoked(ctx context.Context, ev SessionEvent) error {
	return f(ctx, ev)
}

// Ledger is the only writer of account versions.
//
// Every call is one generation: bumping twice moves the version by two.
type Ledger struct {
	store  AccountStore
	logger *slog.Logger
	now    Clock

	mu    sync.RWMutex
	sinks []EventSink
}

// NewLedger creates a Ledger over store.
func NewLedger(store AccountStore, logger *slog.Logger, sinks ...EventSink) *Ledger {
	return &Ledger{
		store:  store,
		logger: logger,
		now:    time.Now,
		sinks:  sinks,
	}
}

// AddSink registers another event sink.
func (l *Ledger) AddSink(s EventSink) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.sinks = append(l.sinks, s)
}

// Bump ends the current session generation of accountID.
func (l *Ledger) Bump(ctx context.Context, accountID int64, reason RevocationReason, actorID int64) (int64, error) {
	return l.bump(ctx, accountID, nil, reason, actorID)
}

// ChangePassword stores hash and bumps the version in one statement.
// temp marks the password as one the holder must replace.
func (l *Ledger) ChangePassword(ctx context.Context, accountID int64, hash string, temp bool, reason RevocationReason, actorID int64) (int64, error) {
	return l.bump(ctx, accountID, &AccountChange{PasswordHash: &hash, TempPassword: &temp}, reason, actorID)
}

// ChangeRank stores rank and bumps the version in one statement.
func (l *Ledger) ChangeRank(ctx context.Context, accountID int64, rank Rank, actorID int64) (int64, error) {
	if !rank.Valid() {
		return 0, fmt.Errorf("%w: %d", ErrInvalidRank, int(rank))
	}
	return l.bump(ctx, accountID, &AccountChange{Rank: &rank}, ReasonPrivilegeChange, actorID)
}

// BumpAll ends the current generation of every account.
func (l *Ledger) BumpAll(ctx context.Context, reason RevocationReason, actorID int64) (int64, error) {
	n, err := l.store.BumpAllVersions(ctx)
	if err != nil {
		return 0, fmt.Errorf("revoking all sessions: %w", err)
	}
	l.logger.Warn("all sessions revoked", "reason", reason, "actor_id", actorID, "affected", n)
	l.publish(ctx, SessionEvent{ActorID: actorID, Reason: reason, Affected: n, At: l.now().UTC()})
	return n, nil
}

func (l *Ledger) bump(ctx context.Context, accountID int64, change *AccountChange, reason RevocationReason, actorID int64) (int64, error) {
	version, err := l.store.BumpVersion(ctx, accountID, change)
	if err != nil {
		return 0, fmt.Errorf("revoking sessions of account %d: %w", accountID, err)
	}
	l.logger.Info("sessions revoked",
		"account_id", accountID,
		"actor_id", actorID,
		"reason", reason,
		"version", version,
	)
	l.publish(ctx, SessionEvent{
		AccountID:  accountID,
		ActorID:    actorID,
		Reason:     reason,
		NewVersion: version,
		Affected:   1,
		At:         l.now().UTC(),
	})
	return version, nil
}

func (l *Ledger) publish(ctx context.Context, ev SessionEvent) {
	l.mu.RLock()
	sinks := make([]EventSink, len(l.sinks))
	copy(sinks, l.sinks)
	l.mu.RUnlock()

	for _, s := range sinks {
		if err := s.SessionRevoked(ctx, ev); err != nil {
			l.logger.Warn("session event sink failed",
				"account_id", ev.AccountID,
				"reason", ev.Reason,
				"error", err,
			)
		}
	}
}
