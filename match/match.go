package match

import (
	"sync"
	"time"
)

// Status tracks a match through its lifecycle. Transitions are forward-only;
// a cancelled match jumps straight to StatusStopped.
type Status int

const (
	StatusAssembling Status = iota
	StatusFreelancerSelecting
	StatusDrafting
	StatusLoadoutSelecting
	StatusLaunching
	StatusLaunched
	StatusStarted
	StatusStopped
)

func (s Status) String() string {
	switch s {
	case StatusAssembling:
		return "Assembling"
	case StatusFreelancerSelecting:
		return "FreelancerSelecting"
	case StatusDrafting:
		return "Drafting"
	case StatusLoadoutSelecting:
		return "LoadoutSelecting"
	case StatusLaunching:
		return "Launching"
	case StatusLaunched:
		return "Launched"
	case StatusStarted:
		return "Started"
	case StatusStopped:
		return "Stopped"
	}
	return "Unknown"
}

// Terminal reports whether no further transitions are possible.
func (s Status) Terminal() bool { return s == StatusStopped }

// Valid reports whether s is inside the known lifecycle range. Worker
// pushes carry raw integers and must be range-checked before applying.
func (s Status) Valid() bool { return s >= StatusAssembling && s <= StatusStopped }

type Team int

const (
	TeamA Team = 0
	TeamB Team = 1
)

func (t Team) String() string {
	if t == TeamA {
		return "TeamA"
	}
	return "TeamB"
}

// Opponent returns the other side.
func (t Team) Opponent() Team { return 1 - t }

type ReadyState int

const (
	ReadyStateUnknown ReadyState = iota
	ReadyStateReady
	ReadyStateAccepted
)

// PlayerSlot is one roster seat. Slots are owned by exactly one match and
// mutated only under that match's lock.
type PlayerSlot struct {
	AccountID       int64
	Handle          string
	Team            Team
	SeatID          int
	Character       Character
	Loadout         string
	Ready           ReadyState
	IsBot           bool
	ControlledBy    int64
	ReplacedWithBot bool
}

// Human reports whether a live player currently drives this seat.
func (p *PlayerSlot) Human() bool {
	return !p.IsBot && !p.ReplacedWithBot && p.ControlledBy == 0
}

// MetricsSnapshot is the latest live state pushed by the hosting worker.
type MetricsSnapshot struct {
	Turn       int
	TeamAScore int
	TeamBScore int
	ReceivedAt time.Time
}

// PlayerResult is one seat's line in the end-of-match summary.
type PlayerResult struct {
	AccountID int64     `json:"accountId"`
	Team      Team      `json:"team"`
	Character Character `json:"character"`
	Kills     int       `json:"kills"`
	Deaths    int       `json:"deaths"`
	Assists   int       `json:"assists"`
}

// Summary is the final outcome of a match. NoResult marks matches that
// ended without the worker reporting anything.
type Summary struct {
	ProcessID  string         `json:"processId"`
	Winner     Team           `json:"winner"`
	NoResult   bool           `json:"noResult"`
	FinishedAt time.Time      `json:"finishedAt"`
	Players    []PlayerResult `json:"players"`
}

// Match is one game session from assembly to teardown. The embedded mutex
// guards all mutable fields; callers hold it across related reads and
// writes but never across I/O.
type Match struct {
	mu sync.Mutex

	ProcessID string
	GameType  string
	SubType   string
	CreatedAt time.Time

	AllowDuplicates bool
	RankedDraft     bool

	status    Status
	cancelled bool

	Teams   [2][]*PlayerSlot
	Draft   *DraftState
	Metrics MetricsSnapshot
	Summary *Summary
}

func New(processID, gameType, subType string) *Match {
	return &Match{
		ProcessID: processID,
		GameType:  gameType,
		SubType:   subType,
		CreatedAt: time.Now(),
		status:    StatusAssembling,
	}
}

func (m *Match) Lock()   { m.mu.Lock() }
func (m *Match) Unlock() { m.mu.Unlock() }

// Status returns the current lifecycle state.
func (m *Match) Status() Status {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.status
}

// Advance moves the match forward to s. A stale or backward transition is
// rejected so an out-of-order worker push cannot overwrite newer state.
func (m *Match) Advance(s Status) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if s <= m.status {
		return false
	}
	m.status = s
	return true
}

// MarkCancelled flags the match as torn down before completion and moves it
// to the terminal state.
func (m *Match) MarkCancelled() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.cancelled = true
	m.status = StatusStopped
}

func (m *Match) Cancelled() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.cancelled
}

// Slots returns every seat across both teams, team A first.
func (m *Match) Slots() []*PlayerSlot {
	out := make([]*PlayerSlot, 0, len(m.Teams[0])+len(m.Teams[1]))
	out = append(out, m.Teams[0]...)
	return append(out, m.Teams[1]...)
}

// SlotByAccount finds the seat a player occupies or controls.
func (m *Match) SlotByAccount(accountID int64) *PlayerSlot {
	for _, s := range m.Slots() {
		if s.AccountID == accountID || (s.ControlledBy != 0 && s.ControlledBy == accountID) {
			return s
		}
	}
	return nil
}

// SlotBySeat finds the seat with the given id.
func (m *Match) SlotBySeat(seatID int) *PlayerSlot {
	for _, s := range m.Slots() {
		if s.SeatID == seatID {
			return s
		}
	}
	return nil
}

// HumanAccountIDs lists the account ids of live players still in the match.
func (m *Match) HumanAccountIDs() []int64 {
	var out []int64
	for _, s := range m.Slots() {
		if s.Human() && s.AccountID != 0 {
			out = append(out, s.AccountID)
		}
	}
	return out
}

// SetMetrics records the latest worker metrics push.
func (m *Match) SetMetrics(ms MetricsSnapshot) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Metrics = ms
}

// SetSummary records the final outcome.
func (m *Match) SetSummary(s *Summary) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Summary = s
}
