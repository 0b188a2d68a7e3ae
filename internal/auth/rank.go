package auth

import (
	"fmt"
	"strings"
)

// Rank is a privilege tier. Ranks are totally ordered:
// player < mod < admin < owner.
type Rank int

// Rank values. The zero value is not a valid rank.
const (
	RankPlayer Rank = iota + 1
	RankMod
	RankAdmin
	RankOwner
)

var rankNames = map[Rank]string{
	RankPlayer: "player",
	RankMod:    "mod",
	RankAdmin:  "admin",
	RankOwner:  "owner",
}

// actionable maps each rank to the ranks it may act upon.
// This table is the single source of truth for the hierarchy.
var actionable = map[Rank][]Rank{
	RankOwner:  {RankOwner, RankAdmin, RankMod, RankPlayer},
	RankAdmin:  {RankMod, RankPlayer},
	RankMod:    {RankPlayer},
	RankPlayer: {},
}

// Ranks returns every valid rank, lowest first.
func Ranks() []Rank {
	return []Rank{RankPlayer, RankMod, RankAdmin, RankOwner}
}

// CanAct reports whether an actor holding actor may act upon an account
// holding target.
func CanAct(actor, target Rank) bool {
	for _, r := range actionable[actor] {
		if r == target {
			return true
		}
	}
	return false
}

// ParseRank converts a stored or submitted name into a Rank.
func ParseRank(s string) (Rank, error) {
	name := strings.ToLower(strings.TrimSpace(s))
	for r, n := range rankNames {
		if n == name {
			return r, nil
		}
	}
	return 0, fmt.Errorf("%w: %q", ErrInvalidRank, s)
}

// Valid reports whether r is one of the four ranks.
func (r Rank) Valid() bool {
	_, ok := rankNames[r]
	return ok
}

// AtLeast reports whether r is min or above.
func (r Rank) AtLeast(min Rank) bool {
	return r.Valid() && r >= min
}

func (r Rank) String() string {
	if n, ok := rankNames[r]; ok {
		return n
	}
	return fmt.Sprintf("Rank(%d)", int(r))
}

// MarshalText encodes the rank by name.
func (r Rank) MarshalText() ([]byte, error) {
	if !r.Valid() {
		return nil, fmt.Errorf("%w: %d", ErrInvalidRank, int(r))
	}
	return []byte(rankNames[r]), nil
}

// UnmarshalText decodes a rank name.
func (r *Rank) UnmarshalText(b []byte) error {
	parsed, err := ParseRank(string(b))
	if err != nil {
		return err
	}
	*r = parsed
	return nil
}
