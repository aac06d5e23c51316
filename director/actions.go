package director

import (
	"fmt"

	"arena-match-director/match"
	"arena-match-director/resolve"
)

// actionSlot resolves the caller's match and seat, validating ownership.
func (d *Director) actionSlot(accountID int64) (*match.Match, *match.PlayerSlot, error) {
	m, ok := d.registry.ForPlayer(accountID)
	if !ok {
		return nil, nil, ErrMatchNotFound
	}
	slot := m.SlotByAccount(accountID)
	if slot == nil {
		return nil, nil, ErrNotInMatch
	}
	return m, slot, nil
}

// SetReady records a player's ready state during the pre-launch phases.
func (d *Director) SetReady(accountID int64, ready match.ReadyState) error {
	m, slot, err := d.actionSlot(accountID)
	if err != nil {
		return err
	}
	s := m.Status()
	if s < match.StatusFreelancerSelecting || s > match.StatusLoadoutSelecting {
		return ErrWrongPhase
	}
	m.Lock()
	slot.Ready = ready
	m.Unlock()
	return nil
}

// SelectCharacter updates a seat's chosen freelancer during freelancer
// selection. Duplicates are permitted here; resolution sorts them out.
func (d *Director) SelectCharacter(accountID int64, ch match.Character) error {
	m, slot, err := d.actionSlot(accountID)
	if err != nil {
		return err
	}
	if m.Status() != match.StatusFreelancerSelecting {
		return ErrWrongPhase
	}
	if ch != match.CharacterPendingWillFill && !d.catalog.HumanPlayable(ch) {
		return fmt.Errorf("%w: %s", resolve.ErrNotAllowed, ch)
	}
	m.Lock()
	slot.Character = ch
	m.Unlock()
	d.notifier.RosterUpdate(m)
	return nil
}

// SetLoadout stores a seat's loadout blob; legal until launch begins.
func (d *Director) SetLoadout(accountID int64, loadout string) error {
	m, slot, err := d.actionSlot(accountID)
	if err != nil {
		return err
	}
	if m.Status() >= match.StatusLaunching {
		return ErrWrongPhase
	}
	m.Lock()
	slot.Loadout = loadout
	m.Unlock()
	return nil
}

// draftAction runs fn against the live draft state under the match lock and
// broadcasts the updated draft on success. Notification happens after the
// lock is dropped so collaborator callbacks never run inside it.
func (d *Director) draftAction(accountID int64, fn func(m *match.Match, slot *match.PlayerSlot, ds *match.DraftState) error) error {
	m, slot, err := d.actionSlot(accountID)
	if err != nil {
		return err
	}
	m.Lock()
	// Draft is non-nil exactly while a sub-phase is active.
	ds := m.Draft
	if ds == nil {
		m.Unlock()
		return ErrWrongPhase
	}
	err = fn(m, slot, ds)
	m.Unlock()
	if err != nil {
		return err
	}
	d.notifier.DraftUpdate(m)
	return nil
}

// DraftHover records a seat's current intention in the active sub-phase.
func (d *Director) DraftHover(accountID int64, ch match.Character) error {
	return d.draftAction(accountID, func(m *match.Match, slot *match.PlayerSlot, ds *match.DraftState) error {
		return resolve.Hover(ds, slot.SeatID, ch)
	})
}

// DraftBan commits a ban for the caller's side.
func (d *Director) DraftBan(accountID int64, ch match.Character) error {
	return d.draftAction(accountID, func(m *match.Match, slot *match.PlayerSlot, ds *match.DraftState) error {
		if !ds.Phase.Ban() {
			return ErrWrongPhase
		}
		d.rngMu.Lock()
		defer d.rngMu.Unlock()
		return resolve.Ban(ds, slot.SeatID, slot.Team, ch, m.Teams[slot.Team], d.catalog, d.rng)
	})
}

// DraftPick commits the caller's pick in the active pick round.
func (d *Director) DraftPick(accountID int64, ch match.Character) error {
	return d.draftAction(accountID, func(m *match.Match, slot *match.PlayerSlot, ds *match.DraftState) error {
		if ds.Phase != match.PhasePick1 && ds.Phase != match.PhasePick2 {
			return ErrWrongPhase
		}
		d.rngMu.Lock()
		defer d.rngMu.Unlock()
		return resolve.Pick(ds, slot.SeatID, ch, m.Teams[slot.Team], d.catalog, m.AllowDuplicates, d.rng)
	})
}

// DraftTradeOffer asks the holder of desired to swap with the caller.
func (d *Director) DraftTradeOffer(accountID int64, desired match.Character) error {
	return d.draftAction(accountID, func(m *match.Match, slot *match.PlayerSlot, ds *match.DraftState) error {
		if ds.Phase != match.PhaseTrade {
			return ErrWrongPhase
		}
		_, err := resolve.OfferTrade(ds, slot.SeatID, desired, m.Teams[slot.Team])
		return err
	})
}

// DraftTradeAccept accepts the pending trade offered to the caller by
// fromSeat.
func (d *Director) DraftTradeAccept(accountID int64, fromSeat int) error {
	return d.draftAction(accountID, func(m *match.Match, slot *match.PlayerSlot, ds *match.DraftState) error {
		if ds.Phase != match.PhaseTrade {
			return ErrWrongPhase
		}
		return resolve.AcceptTrade(ds, fromSeat, slot.SeatID)
	})
}

// DraftTradeReject declines the pending trade offered to the caller by
// fromSeat.
func (d *Director) DraftTradeReject(accountID int64, fromSeat int) error {
	return d.draftAction(accountID, func(m *match.Match, slot *match.PlayerSlot, ds *match.DraftState) error {
		if ds.Phase != match.PhaseTrade {
			return ErrWrongPhase
		}
		return resolve.RejectTrade(ds, fromSeat, slot.SeatID)
	})
}
