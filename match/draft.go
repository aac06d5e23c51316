package match

import "time"

// DraftPhase is one timed sub-phase of the ranked draft.
type DraftPhase int

const (
	PhaseNone DraftPhase = iota
	PhaseBan1
	PhaseBan2
	PhasePick1
	PhasePick2
	PhaseTrade
)

func (p DraftPhase) String() string {
	switch p {
	case PhaseBan1:
		return "Ban1"
	case PhaseBan2:
		return "Ban2"
	case PhasePick1:
		return "Pick1"
	case PhasePick2:
		return "Pick2"
	case PhaseTrade:
		return "Trade"
	}
	return "None"
}

// Ban reports whether the phase commits bans rather than picks.
func (p DraftPhase) Ban() bool { return p == PhaseBan1 || p == PhaseBan2 }

// OnDeck is a seat currently expected to act, with its hovered intention.
type OnDeck struct {
	SeatID   int
	Intended Character
}

// Trade is a pending exchange between two seats' committed picks.
type Trade struct {
	FromSeat int
	ToSeat   int
	Offered  Character
	Desired  Character
}

// Touches reports whether the trade involves the given seat on either side.
func (t Trade) Touches(seatID int) bool {
	return t.FromSeat == seatID || t.ToSeat == seatID
}

// DraftState exists only while a ranked draft sub-phase is active. It is
// guarded by the owning match's lock.
type DraftState struct {
	Phase    DraftPhase
	Deadline time.Time
	OnDeck   []OnDeck
	Bans     [2][]Character
	Picks    map[int]Character
	Trades   []Trade
}

func NewDraftState() *DraftState {
	return &DraftState{Picks: make(map[int]Character)}
}

// Deck finds the on-deck entry for a seat, or nil.
func (d *DraftState) Deck(seatID int) *OnDeck {
	for i := range d.OnDeck {
		if d.OnDeck[i].SeatID == seatID {
			return &d.OnDeck[i]
		}
	}
	return nil
}

// OffDeck removes a seat from the on-deck queue once it has committed.
func (d *DraftState) OffDeck(seatID int) {
	for i := range d.OnDeck {
		if d.OnDeck[i].SeatID == seatID {
			d.OnDeck = append(d.OnDeck[:i], d.OnDeck[i+1:]...)
			return
		}
	}
}

// AllCommitted reports whether every on-deck seat has acted.
func (d *DraftState) AllCommitted() bool { return len(d.OnDeck) == 0 }

// Banned reports whether the character is banned on either side.
func (d *DraftState) Banned(ch Character) bool {
	for _, side := range d.Bans {
		for _, b := range side {
			if b == ch {
				return true
			}
		}
	}
	return false
}

// TimeRemaining returns the time left in the current sub-phase.
func (d *DraftState) TimeRemaining(now time.Time) time.Duration {
	if d.Deadline.IsZero() || now.After(d.Deadline) {
		return 0
	}
	return d.Deadline.Sub(now)
}
