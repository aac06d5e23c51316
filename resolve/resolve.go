// Package resolve implements the pure conflict-resolution algorithms run
// over a match's rosters and draft state: duplicate detection, role-balanced
// random fill, and the ranked ban/pick/trade exchange. It performs no I/O;
// the director invokes it under the owning match's lock.
package resolve

import (
	"errors"
	"math/rand"

	"arena-match-director/match"
)

var (
	ErrNotOnDeck       = errors.New("seat is not on deck")
	ErrCharacterUsed   = errors.New("character already used in team")
	ErrCharacterBanned = errors.New("character is banned")
	ErrNotAllowed      = errors.New("character not allowed")
	ErrNoTrade         = errors.New("no matching pending trade")
	ErrNoCommittedPick = errors.New("seat has no committed pick")
	ErrNotHeld         = errors.New("no seat holds the desired character")
	ErrNoCandidates    = errors.New("no legal characters remain")
)

// ForcedReason explains why a seat must switch characters.
type ForcedReason int

const (
	ForcedDuplicate ForcedReason = iota
	ForcedPendingFill
	ForcedNotAllowed
)

// Forced marks a seat that cannot keep its current character. StolenBySeat
// identifies the first seat in the duplicate group, for UI messaging; it is
// -1 when the reason is not a duplicate.
type Forced struct {
	SeatID       int
	Reason       ForcedReason
	StolenBySeat int
}

// FlagDuplicates scans one team and marks every seat that must switch:
// duplicates after the first holder, pending-fill placeholders, and
// characters not legal for human play.
func FlagDuplicates(team []*match.PlayerSlot, cat match.Catalog, allowDuplicates bool) []Forced {
	var forced []Forced
	firstHolder := make(map[match.Character]int)

	for _, s := range team {
		ch := s.Character
		if ch == match.CharacterPendingWillFill || ch == match.CharacterNone {
			forced = append(forced, Forced{SeatID: s.SeatID, Reason: ForcedPendingFill, StolenBySeat: -1})
			continue
		}
		if !cat.HumanPlayable(ch) {
			forced = append(forced, Forced{SeatID: s.SeatID, Reason: ForcedNotAllowed, StolenBySeat: -1})
			continue
		}
		if holder, seen := firstHolder[ch]; seen {
			if !allowDuplicates {
				forced = append(forced, Forced{SeatID: s.SeatID, Reason: ForcedDuplicate, StolenBySeat: holder})
			}
			continue
		}
		firstHolder[ch] = s.SeatID
	}
	return forced
}

// FairFill picks a random legal character for a forced seat, balancing team
// composition: an unused tank role first, then an unused support, otherwise
// an assassin. usedThisPass tracks fills handed out earlier in the same
// resolution pass so two forced seats never receive the same character.
func FairFill(team []*match.PlayerSlot, cat match.Catalog, rng *rand.Rand, usedThisPass map[match.Character]bool) (match.Character, error) {
	used := make(map[match.Character]bool, len(team))
	roleTaken := make(map[match.Role]bool)
	for _, s := range team {
		if !cat.HumanPlayable(s.Character) {
			continue
		}
		used[s.Character] = true
		if r, ok := cat.Role(s.Character); ok {
			roleTaken[r] = true
		}
	}

	role := match.RoleAssassin
	if !roleTaken[match.RoleTank] {
		role = match.RoleTank
	} else if !roleTaken[match.RoleSupport] {
		role = match.RoleSupport
	}

	if ch, ok := pickRandom(cat.ByRole(role), rng, used, usedThisPass); ok {
		return ch, nil
	}
	// Preferred role exhausted; fall back to anything legal.
	if ch, ok := pickRandom(cat.All(), rng, used, usedThisPass); ok {
		return ch, nil
	}
	return match.CharacterNone, ErrNoCandidates
}

func pickRandom(pool []match.Character, rng *rand.Rand, used, usedThisPass map[match.Character]bool) (match.Character, bool) {
	var candidates []match.Character
	for _, ch := range pool {
		if used[ch] || (usedThisPass != nil && usedThisPass[ch]) {
			continue
		}
		candidates = append(candidates, ch)
	}
	if len(candidates) == 0 {
		return match.CharacterNone, false
	}
	return candidates[rng.Intn(len(candidates))], true
}
