package resolve

import (
	"math/rand"

	"arena-match-director/match"
)

// Hover records a seat's current intention without committing it.
func Hover(ds *match.DraftState, seatID int, ch match.Character) error {
	deck := ds.Deck(seatID)
	if deck == nil {
		return ErrNotOnDeck
	}
	deck.Intended = ch
	return nil
}

// Ban commits a ban for the given side. A placeholder ban is substituted
// with a random legal character so opponents never see an unresolved marker.
func Ban(ds *match.DraftState, seatID int, side match.Team, ch match.Character,
	team []*match.PlayerSlot, cat match.Catalog, rng *rand.Rand) error {

	if ds.Deck(seatID) == nil {
		return ErrNotOnDeck
	}
	if ch.Placeholder() || ch == match.CharacterNone {
		filled, err := FairFill(team, cat, rng, bannedSet(ds))
		if err != nil {
			return err
		}
		ch = filled
	} else if !cat.Contains(ch) {
		return ErrNotAllowed
	}
	if ds.Banned(ch) {
		return ErrCharacterBanned
	}

	ds.Bans[side] = append(ds.Bans[side], ch)
	ds.OffDeck(seatID)
	return nil
}

// Pick commits a character for a seat. Validation: the seat must be on deck
// and the character unused within the team unless duplicates are allowed.
// Placeholder picks are fair-filled before commit.
func Pick(ds *match.DraftState, seatID int, ch match.Character,
	team []*match.PlayerSlot, cat match.Catalog, allowDuplicates bool, rng *rand.Rand) error {

	if ds.Deck(seatID) == nil {
		return ErrNotOnDeck
	}
	if ch.Placeholder() || ch == match.CharacterNone {
		filled, err := FairFill(team, cat, rng, pickedSet(ds, team))
		if err != nil {
			return err
		}
		ch = filled
	} else {
		if !cat.HumanPlayable(ch) {
			return ErrNotAllowed
		}
		if ds.Banned(ch) {
			return ErrCharacterBanned
		}
		if !allowDuplicates && teamUses(ds, team, ch, seatID) {
			return ErrCharacterUsed
		}
	}

	ds.Picks[seatID] = ch
	ds.OffDeck(seatID)
	return nil
}

// OfferTrade creates a pending trade asking the current holder of desired to
// swap. When the holder is a bot seat the trade is accepted immediately.
// It returns whether the trade was auto-accepted.
func OfferTrade(ds *match.DraftState, fromSeat int, desired match.Character,
	team []*match.PlayerSlot) (bool, error) {

	offered, committed := ds.Picks[fromSeat]
	if !committed {
		return false, ErrNoCommittedPick
	}

	holder := -1
	for seat, ch := range ds.Picks {
		if seat != fromSeat && ch == desired {
			holder = seat
			break
		}
	}
	if holder == -1 {
		return false, ErrNotHeld
	}

	t := match.Trade{FromSeat: fromSeat, ToSeat: holder, Offered: offered, Desired: desired}
	// A new offer from the same seat supersedes its previous one.
	removeTrades(ds, func(existing match.Trade) bool { return existing.FromSeat == fromSeat })
	ds.Trades = append(ds.Trades, t)

	if slot := slotBySeat(team, holder); slot != nil && (slot.IsBot || slot.ReplacedWithBot) {
		return true, AcceptTrade(ds, fromSeat, holder)
	}
	return false, nil
}

// AcceptTrade swaps the committed characters of exactly the two involved
// seats and removes every other pending trade touching either seat.
func AcceptTrade(ds *match.DraftState, fromSeat, toSeat int) error {
	if !tradeExists(ds, fromSeat, toSeat) {
		return ErrNoTrade
	}
	ds.Picks[fromSeat], ds.Picks[toSeat] = ds.Picks[toSeat], ds.Picks[fromSeat]
	removeTrades(ds, func(t match.Trade) bool { return t.Touches(fromSeat) || t.Touches(toSeat) })
	return nil
}

// RejectTrade removes only the matching pending trade.
func RejectTrade(ds *match.DraftState, fromSeat, toSeat int) error {
	if !tradeExists(ds, fromSeat, toSeat) {
		return ErrNoTrade
	}
	removeTrades(ds, func(t match.Trade) bool { return t.FromSeat == fromSeat && t.ToSeat == toSeat })
	return nil
}

// Resolve auto-commits every seat still on deck when a sub-phase expires:
// its hovered intention if legal, otherwise a random legal choice. In the
// trade phase the oldest pending trade per seat is accepted instead.
func Resolve(ds *match.DraftState, side func(seatID int) (match.Team, []*match.PlayerSlot),
	cat match.Catalog, allowDuplicates bool, rng *rand.Rand) int {

	if ds.Phase == match.PhaseTrade {
		n := 0
		for len(ds.Trades) > 0 {
			t := ds.Trades[0]
			if AcceptTrade(ds, t.FromSeat, t.ToSeat) == nil {
				n++
			}
		}
		ds.OnDeck = nil
		return n
	}

	n := 0
	for len(ds.OnDeck) > 0 {
		deck := ds.OnDeck[0]
		sideTeam, team := side(deck.SeatID)
		var err error
		if ds.Phase.Ban() {
			err = Ban(ds, deck.SeatID, sideTeam, deck.Intended, team, cat, rng)
			if err != nil {
				err = Ban(ds, deck.SeatID, sideTeam, match.CharacterNone, team, cat, rng)
			}
		} else {
			err = Pick(ds, deck.SeatID, deck.Intended, team, cat, allowDuplicates, rng)
			if err != nil {
				err = Pick(ds, deck.SeatID, match.CharacterNone, team, cat, allowDuplicates, rng)
			}
		}
		if err != nil {
			// Nothing legal remains for this seat; drop it from the queue
			// rather than stalling the whole draft.
			ds.OffDeck(deck.SeatID)
			continue
		}
		n++
	}
	return n
}

func tradeExists(ds *match.DraftState, fromSeat, toSeat int) bool {
	for _, t := range ds.Trades {
		if t.FromSeat == fromSeat && t.ToSeat == toSeat {
			return true
		}
	}
	return false
}

func removeTrades(ds *match.DraftState, drop func(match.Trade) bool) {
	kept := ds.Trades[:0]
	for _, t := range ds.Trades {
		if !drop(t) {
			kept = append(kept, t)
		}
	}
	ds.Trades = kept
}

func teamUses(ds *match.DraftState, team []*match.PlayerSlot, ch match.Character, exceptSeat int) bool {
	for _, s := range team {
		if s.SeatID != exceptSeat && s.Character == ch {
			return true
		}
	}
	for seat, picked := range ds.Picks {
		if seat != exceptSeat && picked == ch && slotBySeat(team, seat) != nil {
			return true
		}
	}
	return false
}

func slotBySeat(team []*match.PlayerSlot, seatID int) *match.PlayerSlot {
	for _, s := range team {
		if s.SeatID == seatID {
			return s
		}
	}
	return nil
}

func bannedSet(ds *match.DraftState) map[match.Character]bool {
	out := make(map[match.Character]bool)
	for _, side := range ds.Bans {
		for _, ch := range side {
			out[ch] = true
		}
	}
	return out
}

func pickedSet(ds *match.DraftState, team []*match.PlayerSlot) map[match.Character]bool {
	out := bannedSet(ds)
	for seat, ch := range ds.Picks {
		if slotBySeat(team, seat) != nil {
			out[ch] = true
		}
	}
	return out
}
