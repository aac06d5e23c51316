package director

import (
	"sort"
	"time"

	"arena-match-director/match"
	"arena-match-director/metrics"
	"arena-match-director/resolve"

	"github.com/rs/zerolog/log"
)

// runDraft sequences the ranked ban/pick/trade sub-phases. Each sub-phase
// has its own timeout; seats that run out of time are auto-resolved rather
// than blocking the match, and a sub-phase ends the instant every on-deck
// seat has committed.
func (r *runner) runDraft() {
	r.m.Advance(match.StatusDrafting)

	r.m.Lock()
	ds := match.NewDraftState()
	r.m.Draft = ds
	r.m.Unlock()

	phases := []struct {
		phase   match.DraftPhase
		timeout time.Duration
	}{
		{match.PhaseBan1, r.d.cfg.BanTimeout},
		{match.PhaseBan2, r.d.cfg.BanTimeout},
		{match.PhasePick1, r.d.cfg.PickTimeout},
		{match.PhasePick2, r.d.cfg.PickTimeout},
		{match.PhaseTrade, r.d.cfg.TradeTimeout},
	}

	for _, p := range phases {
		if r.done.Load() {
			return
		}
		r.m.Lock()
		ds.Phase = p.phase
		ds.Deadline = time.Now().Add(p.timeout)
		ds.OnDeck = r.onDeckFor(p.phase)
		r.m.Unlock()
		r.d.notifier.DraftUpdate(r.m)

		if p.phase == match.PhaseTrade {
			// Trades are free-form; the phase runs its full timer.
			sleepCtx(r.ctx, p.timeout)
		} else {
			waitCond(r.ctx, p.timeout, barrierPollInterval, func() bool {
				r.m.Lock()
				defer r.m.Unlock()
				return ds.AllCommitted()
			})
		}

		r.m.Lock()
		n := r.resolveExpired(ds)
		r.m.Unlock()
		if n > 0 {
			metrics.DraftAutoResolves.Add(float64(n))
			log.Debug().Str("processId", r.m.ProcessID).Str("phase", p.phase.String()).Int("autoResolved", n).Msg("director: sub-phase auto-resolved")
		}
		r.d.notifier.DraftUpdate(r.m)
	}

	// Commit the draft outcome onto the roster. The ban set outlives the
	// draft state: seats that were never on deck may still hold a banned
	// character, and the loadout-phase reassignment needs to catch them.
	r.m.Lock()
	for seat, ch := range ds.Picks {
		if slot := r.m.SlotBySeat(seat); slot != nil {
			slot.Character = ch
		}
	}
	banned := make(map[match.Character]bool)
	for _, side := range ds.Bans {
		for _, ch := range side {
			banned[ch] = true
		}
	}
	r.banned = banned
	r.m.Draft = nil
	r.m.Unlock()
	r.d.notifier.RosterUpdate(r.m)
}

// onDeckFor computes which seats act in a sub-phase. Bans rotate through
// each team's human seats; picks split the forced seats over the two pick
// rounds. Caller holds the match lock.
func (r *runner) onDeckFor(phase match.DraftPhase) []match.OnDeck {
	switch phase {
	case match.PhaseBan1, match.PhaseBan2:
		round := 0
		if phase == match.PhaseBan2 {
			round = 1
		}
		var deck []match.OnDeck
		for _, team := range r.m.Teams {
			humans := humanSeats(team)
			if len(humans) == 0 {
				continue
			}
			deck = append(deck, match.OnDeck{SeatID: humans[round%len(humans)]})
		}
		return deck

	case match.PhasePick1, match.PhasePick2:
		var forcedSeats []int
		for _, team := range r.m.Teams {
			for _, f := range resolve.FlagDuplicates(team, r.d.catalog, r.m.AllowDuplicates) {
				if r.m.Draft != nil {
					if _, picked := r.m.Draft.Picks[f.SeatID]; picked {
						continue
					}
				}
				forcedSeats = append(forcedSeats, f.SeatID)
			}
		}
		sort.Ints(forcedSeats)
		if phase == match.PhasePick1 {
			// First half picks now; whoever is left goes in round two.
			forcedSeats = forcedSeats[:(len(forcedSeats)+1)/2]
		}
		deck := make([]match.OnDeck, 0, len(forcedSeats))
		for _, seat := range forcedSeats {
			deck = append(deck, match.OnDeck{SeatID: seat})
		}
		return deck
	}
	return nil
}

// resolveExpired auto-commits whatever is still outstanding at sub-phase
// end. Caller holds the match lock.
func (r *runner) resolveExpired(ds *match.DraftState) int {
	r.d.rngMu.Lock()
	defer r.d.rngMu.Unlock()
	return resolve.Resolve(ds, r.sideOf, r.d.catalog, r.m.AllowDuplicates, r.d.rng)
}

// sideOf maps a seat id to its team and teammates. Caller holds the match
// lock.
func (r *runner) sideOf(seatID int) (match.Team, []*match.PlayerSlot) {
	for ti, team := range r.m.Teams {
		if slotBySeat(team, seatID) != nil {
			return match.Team(ti), team
		}
	}
	return match.TeamA, r.m.Teams[match.TeamA]
}

func humanSeats(team []*match.PlayerSlot) []int {
	var out []int
	for _, s := range team {
		if s.Human() {
			out = append(out, s.SeatID)
		}
	}
	sort.Ints(out)
	return out
}
