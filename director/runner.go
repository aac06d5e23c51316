package director

import (
	"context"
	"sync/atomic"
	"time"

	"arena-match-director/bridge"
	"arena-match-director/match"
	"arena-match-director/metrics"
	"arena-match-director/pool"
	"arena-match-director/resolve"

	"github.com/rs/zerolog/log"
)

const (
	barrierPollInterval = time.Second
	launchTimeout       = 15 * time.Second
)

// runner is the per-match orchestration task. It owns the match it was
// created with; all other state is reached through the director's shared
// services.
type runner struct {
	d *Director
	m *match.Match
	w *pool.Worker

	ctx      context.Context
	cancelFn context.CancelFunc

	// done latches once finalize or cancel has run, making teardown
	// idempotent.
	done      atomic.Bool
	startedAt time.Time

	// banned survives the draft state so the loadout-phase reassignment
	// can still see what was banned. Only the runner goroutine touches it.
	banned map[match.Character]bool
}

func newRunner(d *Director, m *match.Match, w *pool.Worker) *runner {
	ctx, cancel := context.WithCancel(context.Background())
	return &runner{d: d, m: m, w: w, ctx: ctx, cancelFn: cancel, startedAt: time.Now()}
}

// run drives the match through its phases. Transitions are forward-only;
// any unrecoverable condition routes through cancel.
func (r *runner) run() {
	defer r.d.dropRunner(r.m.ProcessID)

	r.d.notifier.RosterUpdate(r.m)

	forced := r.flagForced(true)
	if len(forced) > 0 && r.m.RankedDraft {
		r.runDraft()
		if r.done.Load() {
			return
		}
	}

	// Barrier: all seats ready, polled once per second up to the phase
	// timeout; whichever occurs first ends the wait.
	waitCond(r.ctx, r.d.cfg.SelectTimeout, barrierPollInterval, r.allSeatsReady)
	if r.done.Load() {
		return
	}

	r.m.Advance(match.StatusLoadoutSelecting)
	r.forceReassign()
	r.d.notifier.RosterUpdate(r.m)

	sleepCtx(r.ctx, r.d.cfg.LoadoutDuration)
	if r.done.Load() {
		return
	}
	if dodger, ok := r.findDisconnected(); ok {
		r.d.penalties.RecordDodge(dodger.AccountID)
		r.cancel(Reason{Code: ReasonPlayerDodged, Dodger: dodger.Handle})
		return
	}
	if connDead(r.w.Conn()) {
		r.cancel(Reason{Code: ReasonWorkerLost})
		return
	}

	if !r.launch() {
		return
	}
	r.monitor()
}

type forcedNotice struct {
	accountID int64
	character match.Character
	stolenBy  string
}

// flagForced runs duplicate/fill detection over both teams, notifying every
// forced human seat who its character was stolen by.
func (r *runner) flagForced(notify bool) []resolve.Forced {
	r.m.Lock()
	var all []resolve.Forced
	var notices []forcedNotice
	for _, team := range r.m.Teams {
		forced := resolve.FlagDuplicates(team, r.d.catalog, r.m.AllowDuplicates)
		all = append(all, forced...)
		if !notify {
			continue
		}
		for _, f := range forced {
			slot := slotBySeat(team, f.SeatID)
			if slot == nil || !slot.Human() {
				continue
			}
			notices = append(notices, forcedNotice{
				accountID: slot.AccountID,
				character: match.CharacterNone,
				stolenBy:  stolenByHandle(team, f),
			})
		}
	}
	r.m.Unlock()

	for _, n := range notices {
		r.d.notifier.ForcedChange(n.accountID, n.character, n.stolenBy)
	}
	return all
}

func stolenByHandle(team []*match.PlayerSlot, f resolve.Forced) string {
	if f.StolenBySeat < 0 {
		return ""
	}
	if holder := slotBySeat(team, f.StolenBySeat); holder != nil {
		return holder.Handle
	}
	return ""
}

// forceReassign fair-fills every seat whose committed character is still
// unavailable when loadout selection begins: duplicates, placeholders, and
// characters the draft banned.
func (r *runner) forceReassign() {
	r.m.Lock()
	var notices []forcedNotice
	for _, team := range r.m.Teams {
		forced := resolve.FlagDuplicates(team, r.d.catalog, r.m.AllowDuplicates)
		flagged := make(map[int]bool, len(forced))
		for _, f := range forced {
			flagged[f.SeatID] = true
		}
		for _, s := range team {
			if r.banned[s.Character] && !flagged[s.SeatID] {
				forced = append(forced, resolve.Forced{SeatID: s.SeatID, Reason: resolve.ForcedNotAllowed, StolenBySeat: -1})
			}
		}
		usedThisPass := make(map[match.Character]bool, len(r.banned))
		for ch := range r.banned {
			usedThisPass[ch] = true
		}
		for _, f := range forced {
			slot := slotBySeat(team, f.SeatID)
			if slot == nil {
				continue
			}
			ch, err := r.d.fairFill(team, usedThisPass)
			if err != nil {
				log.Error().Err(err).Str("processId", r.m.ProcessID).Int("seat", f.SeatID).Msg("director: no legal character left for forced seat")
				continue
			}
			usedThisPass[ch] = true
			stolenBy := stolenByHandle(team, f)
			slot.Character = ch
			if slot.Human() {
				notices = append(notices, forcedNotice{accountID: slot.AccountID, character: ch, stolenBy: stolenBy})
			}
		}
	}
	r.m.Unlock()

	for _, n := range notices {
		r.d.notifier.ForcedChange(n.accountID, n.character, n.stolenBy)
	}
}

func (r *runner) allSeatsReady() bool {
	r.m.Lock()
	defer r.m.Unlock()
	for _, s := range r.m.Slots() {
		if s.Human() && s.Ready == match.ReadyStateUnknown {
			return false
		}
	}
	return true
}

// findDisconnected returns the first human seat whose player dropped.
func (r *runner) findDisconnected() (*match.PlayerSlot, bool) {
	r.m.Lock()
	defer r.m.Unlock()
	for _, s := range r.m.Slots() {
		if s.Human() && !r.d.sessions.Connected(s.AccountID) {
			return s, true
		}
	}
	return nil, false
}

// launch instructs the worker to start the match. On worker unavailability
// the match is cancelled and clients revert to character select instead of
// launching.
func (r *runner) launch() bool {
	r.m.Advance(match.StatusLaunching)
	r.d.notifier.RosterUpdate(r.m)

	c := r.w.Conn()
	if c == nil || connDead(c) {
		r.cancel(Reason{Code: ReasonWorkerLost})
		return false
	}

	info := bridge.SetMatchInfoPayload{ProcessID: r.m.ProcessID, GameType: r.m.GameType, SubType: r.m.SubType}
	if err := c.Send(bridge.MsgSetMatchInfo, info); err != nil {
		r.cancel(Reason{Code: ReasonWorkerLost})
		return false
	}
	if err := c.Send(bridge.MsgSetRoster, r.rosterPayload()); err != nil {
		r.cancel(Reason{Code: ReasonWorkerLost})
		return false
	}

	ctx, cancel := context.WithTimeout(r.ctx, launchTimeout)
	defer cancel()
	resp, err := c.Request(ctx, bridge.MsgStart, bridge.StartPayload{ProcessID: r.m.ProcessID})
	if err != nil || !resp.Success {
		log.Warn().Err(err).Str("processId", r.m.ProcessID).Str("workerError", resp.Error).Msg("director: start rejected")
		r.cancel(Reason{Code: ReasonLaunchFailed})
		return false
	}

	r.m.Lock()
	for _, s := range r.m.Slots() {
		if s.Ready == match.ReadyStateUnknown {
			s.Ready = match.ReadyStateReady
		}
	}
	r.m.Unlock()

	r.m.Advance(match.StatusLaunched)
	r.d.notifier.RosterUpdate(r.m)
	return true
}

func (r *runner) rosterPayload() bridge.SetRosterPayload {
	r.m.Lock()
	defer r.m.Unlock()
	p := bridge.SetRosterPayload{ProcessID: r.m.ProcessID}
	for _, s := range r.m.Slots() {
		p.Roster = append(p.Roster, bridge.RosterLine{
			AccountID: s.AccountID,
			Handle:    s.Handle,
			Team:      int(s.Team),
			SeatID:    s.SeatID,
			Character: string(s.Character),
			Loadout:   s.Loadout,
			IsBot:     s.IsBot || s.ReplacedWithBot,
		})
	}
	return p
}

// monitor applies worker pushes in arrival order until the match ends or
// the worker is lost for longer than the grace period.
func (r *runner) monitor() {
	events := r.w.Conn().Events()
	for {
		select {
		case <-r.ctx.Done():
			return
		case ev, ok := <-events:
			if !ok {
				next, reattached := r.workerLost()
				if !reattached {
					return
				}
				events = next
				continue
			}
			switch p := ev.Payload.(type) {
			case *bridge.StatusChangePayload:
				s := match.Status(p.Status)
				if !s.Valid() {
					log.Warn().Str("processId", r.m.ProcessID).Int("status", p.Status).Msg("director: ignoring out-of-range status push")
					continue
				}
				if r.m.Advance(s) {
					log.Info().Str("processId", r.m.ProcessID).Str("status", s.String()).Msg("director: match status advanced")
					r.d.notifier.RosterUpdate(r.m)
				} else {
					// Stale push; a later status already applied.
					log.Warn().Str("processId", r.m.ProcessID).Str("status", s.String()).Msg("director: ignoring out-of-order status push")
				}
			case *bridge.MetricsPayload:
				r.m.SetMetrics(match.MetricsSnapshot{
					Turn:       p.Turn,
					TeamAScore: p.TeamAScore,
					TeamBScore: p.TeamBScore,
					ReceivedAt: time.Now(),
				})
			case *bridge.PlayerLeavingPayload:
				r.handlePlayerLeaving(p)
			case *bridge.SummaryPayload:
				r.finalize(r.summaryFrom(p))
				return
			default:
				log.Warn().Str("processId", r.m.ProcessID).Str("type", ev.Type.String()).Msg("director: unexpected push")
			}
		}
	}
}

// workerLost handles the control connection dying. Before launch the match
// is cancelled outright; after launch a grace timer runs, and if the worker
// re-attached in time monitoring resumes on the new connection.
func (r *runner) workerLost() (<-chan bridge.Event, bool) {
	if r.m.Status() < match.StatusLaunched {
		r.cancel(Reason{Code: ReasonWorkerLost})
		return nil, false
	}

	log.Warn().Str("processId", r.m.ProcessID).Dur("grace", r.d.cfg.ReconnectGrace).Msg("director: worker lost, starting grace timer")
	ok := waitCond(r.ctx, r.d.cfg.ReconnectGrace, barrierPollInterval, func() bool {
		w, found := r.d.pool.Lookup(r.m.ProcessID)
		return found && w.Conn() != nil && !connDead(w.Conn())
	})
	if !ok {
		log.Warn().Str("processId", r.m.ProcessID).Msg("director: grace period expired, ending match with no result")
		r.finalize(r.noResultSummary())
		return nil, false
	}

	w, _ := r.d.pool.Lookup(r.m.ProcessID)
	r.w = w
	log.Info().Str("processId", r.m.ProcessID).Msg("director: worker re-attached, resuming monitoring")
	return w.Conn().Events(), true
}

// handlePlayerLeaving replaces the departing seat with a bot and schedules
// penalty accounting; the match itself continues.
func (r *runner) handlePlayerLeaving(p *bridge.PlayerLeavingPayload) {
	r.m.Lock()
	slot := r.m.SlotByAccount(p.AccountID)
	if slot != nil && p.Permanent {
		slot.ReplacedWithBot = true
	}
	r.m.Unlock()
	if slot == nil {
		return
	}
	log.Info().Str("processId", r.m.ProcessID).Int64("accountId", p.AccountID).Bool("permanent", p.Permanent).Msg("director: player leaving")
	if p.Permanent {
		r.d.penalties.RecordDodge(p.AccountID)
	}
	r.d.notifier.RosterUpdate(r.m)
}

func (r *runner) summaryFrom(p *bridge.SummaryPayload) *match.Summary {
	sum := &match.Summary{
		ProcessID:  r.m.ProcessID,
		Winner:     match.Team(p.Winner),
		FinishedAt: time.Now(),
	}
	for _, line := range p.Players {
		sum.Players = append(sum.Players, match.PlayerResult{
			AccountID: line.AccountID,
			Team:      match.Team(line.Team),
			Character: match.Character(line.Character),
			Kills:     line.Kills,
			Deaths:    line.Deaths,
			Assists:   line.Assists,
		})
	}
	return sum
}

func (r *runner) noResultSummary() *match.Summary {
	return &match.Summary{ProcessID: r.m.ProcessID, NoResult: true, FinishedAt: time.Now()}
}

// finalize persists the summary, notifies clients and tears everything
// down. Calling it twice, or after cancel, is a no-op.
func (r *runner) finalize(sum *match.Summary) {
	if !r.done.CompareAndSwap(false, true) {
		return
	}
	r.m.SetSummary(sum)
	r.m.Advance(match.StatusStopped)

	if r.d.store != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		if err := r.d.store.SaveSummary(ctx, sum); err != nil {
			log.Error().Err(err).Str("processId", r.m.ProcessID).Msg("director: failed to persist summary")
		}
		cancel()
	}

	acc := r.d.accolades.Compute(sum)
	r.d.notifier.Results(r.m, acc)

	// Leave the results on screen before tearing the session down.
	sleepDetached(r.d.cfg.PostGameDelay)

	r.d.registry.Remove(r.m.ProcessID)
	r.d.pool.Release(r.m.ProcessID)
	r.cancelFn()

	outcome := "completed"
	if sum.NoResult {
		outcome = "no_result"
	}
	metrics.MatchesFinished.WithLabelValues(outcome).Inc()
	metrics.MatchDuration.Observe(time.Since(r.startedAt).Seconds())
	log.Info().Str("processId", r.m.ProcessID).Str("outcome", outcome).Dur("duration", time.Since(r.startedAt)).Msg("director: match finalized")
}

// cancel aborts a match that cannot proceed, telling every remaining client
// to leave with a localized reason. Idempotent like finalize.
func (r *runner) cancel(reason Reason) {
	if !r.done.CompareAndSwap(false, true) {
		return
	}
	r.m.MarkCancelled()

	// Seat flags mutate under the match lock; collect the ids there and
	// notify after it is dropped.
	r.m.Lock()
	ids := r.m.HumanAccountIDs()
	r.m.Unlock()
	for _, id := range ids {
		r.d.notifier.Leave(id, reason)
	}

	r.d.registry.Remove(r.m.ProcessID)
	r.d.pool.Release(r.m.ProcessID)
	r.cancelFn()

	metrics.MatchesFinished.WithLabelValues("cancelled").Inc()
	log.Info().Str("processId", r.m.ProcessID).Str("reason", reason.Code).Str("dodger", reason.Dodger).Msg("director: match cancelled")
}

func slotBySeat(team []*match.PlayerSlot, seatID int) *match.PlayerSlot {
	for _, s := range team {
		if s.SeatID == seatID {
			return s
		}
	}
	return nil
}

func connDead(c *bridge.Conn) bool {
	if c == nil {
		return true
	}
	select {
	case <-c.Done():
		return true
	default:
		return false
	}
}
