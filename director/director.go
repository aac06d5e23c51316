// Package director drives each match through its lifecycle: roster
// assembly, freelancer resolution, the optional ranked draft, loadout
// selection, launch on a reserved worker, live monitoring and teardown.
package director

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"strings"
	"sync"
	"time"

	"arena-match-director/bridge"
	"arena-match-director/match"
	"arena-match-director/pool"
	"arena-match-director/queues"
	"arena-match-director/resolve"

	"github.com/rs/zerolog/log"
)

var (
	ErrMatchNotFound      = errors.New("no active match for that id")
	ErrPlayerNotConnected = errors.New("a named player is not connected")
	ErrWrongPhase         = errors.New("action not valid in current phase")
	ErrNotInMatch         = errors.New("player is not in this match")
)

// Reason tells leaving clients why a match ended early. Code is a stable
// key the client localizes; Dodger carries the handle of the player who
// caused the teardown when known.
type Reason struct {
	Code   string
	Dodger string
}

const (
	ReasonPlayerDodged = "player_dodged"
	ReasonWorkerLost   = "worker_lost"
	ReasonLaunchFailed = "launch_failed"
	ReasonCancelled    = "cancelled"
)

// Notifier is the outbound player-session collaborator.
type Notifier interface {
	MatchAssigned(accountID int64, processID string)
	RosterUpdate(m *match.Match)
	ForcedChange(accountID int64, newCharacter match.Character, stolenBy string)
	DraftUpdate(m *match.Match)
	Results(m *match.Match, accolades map[int64][]string)
	Leave(accountID int64, reason Reason)
}

// Sessions answers whether a player is currently connected.
type Sessions interface {
	Connected(accountID int64) bool
}

// Penalties records queue-penalty accounting for players who abandon a
// match. Scoring itself is external.
type Penalties interface {
	RecordDodge(accountID int64)
}

// Accolades computes derived end-of-match awards. Delegated entirely.
type Accolades interface {
	Compute(sum *match.Summary) map[int64][]string
}

// SummaryStore persists final summaries and serves them back after the
// match has left the registry.
type SummaryStore interface {
	SaveSummary(ctx context.Context, sum *match.Summary) error
	GetSummary(ctx context.Context, processID string) (*match.Summary, bool, error)
}

// Config holds the phase timings and sub-type policy knobs.
type Config struct {
	TeamSize        int
	SelectTimeout   time.Duration
	BanTimeout      time.Duration
	PickTimeout     time.Duration
	TradeTimeout    time.Duration
	LoadoutDuration time.Duration
	PostGameDelay   time.Duration
	ReconnectGrace  time.Duration

	DuplicateSubTypes []string
	RankedSubTypes    []string
	CustomGameTypes   []string
}

// Deps are the owned services and external collaborators the director runs
// against. Registry, Pool and Notifier are required; the rest default to
// no-ops so tests can supply only what they exercise.
type Deps struct {
	Registry  *match.Registry
	Pool      *pool.Pool
	Store     SummaryStore
	Catalog   match.Catalog
	Notifier  Notifier
	Sessions  Sessions
	Penalties Penalties
	Accolades Accolades
	Rng       *rand.Rand
}

// Director orchestrates every active match. One goroutine per match; shared
// state lives in the registry and pool behind their own locks.
type Director struct {
	cfg       Config
	registry  *match.Registry
	pool      *pool.Pool
	store     SummaryStore
	catalog   match.Catalog
	notifier  Notifier
	sessions  Sessions
	penalties Penalties
	accolades Accolades

	rngMu sync.Mutex
	rng   *rand.Rand

	runnersMu sync.Mutex
	runners   map[string]*runner
}

func New(cfg Config, deps Deps) *Director {
	if cfg.TeamSize <= 0 {
		cfg.TeamSize = 4
	}
	if len(cfg.CustomGameTypes) == 0 {
		cfg.CustomGameTypes = []string{"Custom"}
	}
	rng := deps.Rng
	if rng == nil {
		rng = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	sessions := deps.Sessions
	if sessions == nil {
		sessions = alwaysConnected{}
	}
	penalties := deps.Penalties
	if penalties == nil {
		penalties = noPenalties{}
	}
	accolades := deps.Accolades
	if accolades == nil {
		accolades = noAccolades{}
	}
	return &Director{
		cfg:       cfg,
		registry:  deps.Registry,
		pool:      deps.Pool,
		store:     deps.Store,
		catalog:   deps.Catalog,
		notifier:  deps.Notifier,
		sessions:  sessions,
		penalties: penalties,
		accolades: accolades,
		rng:       rng,
		runners:   make(map[string]*runner),
	}
}

type alwaysConnected struct{}

func (alwaysConnected) Connected(int64) bool { return true }

type noPenalties struct{}

func (noPenalties) RecordDodge(int64) {}

type noAccolades struct{}

func (noAccolades) Compute(*match.Summary) map[int64][]string { return nil }

// CreateMatch reserves a worker, assembles the two rosters (with bot fill)
// and starts the orchestration task. It returns the match id, which is the
// reserved worker's process id. On any failure every already-notified
// client is rolled back and nothing stays registered.
func (d *Director) CreateMatch(ctx context.Context, req *queues.MatchRequest) (string, error) {
	if req.GameType == "" {
		return "", fmt.Errorf("game type is required")
	}
	for _, e := range append(append([]queues.RosterEntry{}, req.TeamA...), req.TeamB...) {
		if !d.sessions.Connected(e.AccountID) {
			return "", fmt.Errorf("%w: %s", ErrPlayerNotConnected, e.Handle)
		}
	}

	custom := containsFold(d.cfg.CustomGameTypes, req.GameType)
	w, err := d.pool.Reserve(custom)
	if err != nil {
		return "", err
	}
	processID := w.ProcessID

	m := match.New(processID, req.GameType, req.SubType)
	m.AllowDuplicates = containsFold(d.cfg.DuplicateSubTypes, req.SubType)
	m.RankedDraft = containsFold(d.cfg.RankedSubTypes, req.SubType)
	m.Teams[match.TeamA] = d.buildTeam(match.TeamA, req.TeamA, 0)
	m.Teams[match.TeamB] = d.buildTeam(match.TeamB, req.TeamB, d.cfg.TeamSize)

	if err := d.registry.Add(m); err != nil {
		d.pool.Release(processID)
		return "", err
	}
	// Players may act the moment they hear about the match, so the phase
	// must be open before the first assignment notification goes out.
	m.Advance(match.StatusFreelancerSelecting)

	var notified []int64
	for _, id := range m.HumanAccountIDs() {
		if !d.sessions.Connected(id) {
			// A player dropped between validation and notification;
			// roll everyone already told back out.
			handle := ""
			if s := m.SlotByAccount(id); s != nil {
				handle = s.Handle
			}
			for _, n := range notified {
				d.notifier.Leave(n, Reason{Code: ReasonPlayerDodged, Dodger: handle})
			}
			d.registry.Remove(processID)
			d.pool.Release(processID)
			return "", fmt.Errorf("%w: %s", ErrPlayerNotConnected, handle)
		}
		d.notifier.MatchAssigned(id, processID)
		notified = append(notified, id)
	}

	r := newRunner(d, m, w)
	d.runnersMu.Lock()
	d.runners[processID] = r
	d.runnersMu.Unlock()
	go r.run()

	log.Info().
		Str("processId", processID).
		Str("gameType", req.GameType).
		Str("subType", req.SubType).
		Int("players", len(notified)).
		Msg("director: match created")
	return processID, nil
}

// buildTeam turns the requested roster into seats, topping the team up with
// role-balancing bots.
func (d *Director) buildTeam(team match.Team, entries []queues.RosterEntry, seatBase int) []*match.PlayerSlot {
	slots := make([]*match.PlayerSlot, 0, d.cfg.TeamSize)
	seat := seatBase
	for _, e := range entries {
		if len(slots) == d.cfg.TeamSize {
			break
		}
		ch := match.Character(e.Character)
		if !d.catalog.HumanPlayable(ch) {
			ch = match.CharacterPendingWillFill
		}
		slots = append(slots, &match.PlayerSlot{
			AccountID: e.AccountID,
			Handle:    e.Handle,
			Team:      team,
			SeatID:    seat,
			Character: ch,
		})
		seat++
	}

	usedThisPass := make(map[match.Character]bool)
	for len(slots) < d.cfg.TeamSize {
		ch, err := d.fairFill(slots, usedThisPass)
		if err != nil {
			ch = match.CharacterPendingWillFill
		}
		usedThisPass[ch] = true
		slots = append(slots, &match.PlayerSlot{
			Handle:    fmt.Sprintf("Bot %d", seat+1),
			Team:      team,
			SeatID:    seat,
			Character: ch,
			IsBot:     true,
			Ready:     match.ReadyStateReady,
		})
		seat++
	}
	return slots
}

// fairFill guards the shared generator; resolve itself is pure.
func (d *Director) fairFill(team []*match.PlayerSlot, usedThisPass map[match.Character]bool) (match.Character, error) {
	d.rngMu.Lock()
	defer d.rngMu.Unlock()
	return resolve.FairFill(team, d.catalog, d.rng, usedThisPass)
}

// CancelMatch tears an active match down on behalf of an external caller.
func (d *Director) CancelMatch(processID string) error {
	r, ok := d.runner(processID)
	if !ok {
		return ErrMatchNotFound
	}
	r.cancel(Reason{Code: ReasonCancelled})
	return nil
}

// GetMatchForPlayer returns the active match a player belongs to.
func (d *Director) GetMatchForPlayer(accountID int64) (*match.Match, bool) {
	return d.registry.ForPlayer(accountID)
}

// FinishedSummary serves the persisted result of a match that already left
// the registry.
func (d *Director) FinishedSummary(ctx context.Context, processID string) (*match.Summary, bool, error) {
	if d.store == nil {
		return nil, false, nil
	}
	return d.store.GetSummary(ctx, processID)
}

// WorkerAttached is invoked by the gateway when a worker re-attaches to a
// still-registered match; the runner's grace poll picks the new connection
// up from the pool.
func (d *Director) WorkerAttached(c *bridge.Conn) {
	if _, ok := d.registry.ByProcess(c.ProcessID()); ok {
		log.Info().Str("processId", c.ProcessID()).Msg("director: worker re-attached to live match")
	}
}

func (d *Director) runner(processID string) (*runner, bool) {
	d.runnersMu.Lock()
	defer d.runnersMu.Unlock()
	r, ok := d.runners[processID]
	return r, ok
}

func (d *Director) dropRunner(processID string) {
	d.runnersMu.Lock()
	defer d.runnersMu.Unlock()
	delete(d.runners, processID)
}

func containsFold(list []string, s string) bool {
	for _, v := range list {
		if strings.EqualFold(v, s) {
			return true
		}
	}
	return false
}
