package auth

import (
	"fmt"
	"strings"
)

// Action names a mutating operation one account performs on another.
type Action string

// Guarded actions.
const (
	ActionDelete          Action = "delete"
	ActionForceDisconnect Action = "force_disconnect"
	ActionChangeRank      Action = "change_rank"
	ActionResetPassword   Action = "reset_password"
)

// targetsSelfForbidden reports whether an actor is barred from applying a
// to its own account regardless of rank.
func (a Action) targetsSelfForbidden() bool {
	switch a {
	case ActionDelete, ActionForceDisconnect, ActionChangeRank:
		return true
	}
	return false
}

// Guard applies the privilege hierarchy to admin mutations.
//
// Checks run in a fixed order: protected-account exemption, self-targeting,
// then the rank table. Every rejection wraps ErrForbidden.
type Guard struct {
	protected map[string]struct{}
}

// NewGuard returns a Guard that exempts the given nipols from every
// mutating action.
func NewGuard(protected []string) *Guard {
	g := &Guard{protected: make(map[string]struct{}, len(protected))}
	for _, nipol := range protected {
		if n := strings.TrimSpace(nipol); n != "" {
			g.protected[n] = struct{}{}
		}
	}
	return g
}

// IsProtected reports whether nipol is on the protected list.
func (g *Guard) IsProtected(nipol string) bool {
	_, ok := g.protected[nipol]
	return ok
}

// Authorize decides whether actor may perform action on target.
func (g *Guard) Authorize(actor, target *Account, action Action) error {
	if g.IsProtected(target.Nipol) {
		return fmt.Errorf("%w: %w: %s", ErrForbidden, ErrProtectedAccount, target.Nipol)
	}
	if actor.ID == target.ID && action.targetsSelfForbidden() {
		return fmt.Errorf("%w: %w: %s", ErrForbidden, ErrSelfAction, action)
	}
	if !CanAct(actor.Rank, target.Rank) {
		return fmt.Errorf("%w: %w: %s cannot %s %s", ErrForbidden, ErrInsufficientRank, actor.Rank, action, target.Rank)
	}
	return nil
}

// AuthorizeOwnerOnly admits only actors whose rank is exactly owner.
func (g *Guard) AuthorizeOwnerOnly(actor *Account) error {
	if actor.Rank != RankOwner {
		return fmt.Errorf("%w: %w: owner rank required", ErrForbidden, ErrInsufficientRank)
	}
	return nil
}

// AuthorizeRankAssignment decides whether actor may move target to rank.
// The actor must be able to act on the target's current rank and on the
// new one; granting owner is owner-only.
func (g *Guard) AuthorizeRankAssignment(actor, target *Account, rank Rank) error {
	if !rank.Valid() {
		return fmt.Errorf("%w: %d", ErrInvalidRank, int(rank))
	}
	if err := g.Authorize(actor, target, ActionChangeRank); err != nil {
		return err
	}
	if rank == RankOwner {
		if err := g.AuthorizeOwnerOnly(actor); err != nil {
			return err
		}
	}
	if !CanAct(actor.Rank, rank) {
		return fmt.Errorf("%w: %w: %s cannot grant %s", ErrForbidden, ErrInsufficientRank, actor.Rank, rank)
	}
	return nil
}

// AuthorizeCreate decides whether actor may register a new account at rank.
func (g *Guard) AuthorizeCreate(actor *Account, rank Rank) error {
	if !rank.Valid() {
		return fmt.Errorf("%w: %d", ErrInvalidRank, int(rank))
	}
	if !CanAct(actor.Rank, rank) {
		return fmt.Errorf("%w: %w: %s cannot create %s", ErrForbidden, ErrInsufficientRank, actor.Rank, rank)
	}
	return nil
}
