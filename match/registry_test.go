package match

import (
	"errors"
	"testing"
)

func teamOf(ids ...int64) []*PlayerSlot {
	out := make([]*PlayerSlot, 0, len(ids))
	for i, id := range ids {
		out = append(out, &PlayerSlot{AccountID: id, SeatID: i})
	}
	return out
}

func TestRegistry_Add(t *testing.T) {
	first := New("proc-1", "PvP", "Default")
	first.Teams[0] = teamOf(1, 2)
	first.Teams[1] = teamOf(3, 4)

	tests := []struct {
		name    string
		build   func() *Match
		wantErr error
	}{
		{
			name: "ok",
			build: func() *Match {
				m := New("proc-2", "PvP", "Default")
				m.Teams[0] = teamOf(10)
				return m
			},
		},
		{
			name: "duplicate process id",
			build: func() *Match {
				m := New("proc-1", "PvP", "Default")
				m.Teams[0] = teamOf(20)
				return m
			},
			wantErr: ErrProcessInMatch,
		},
		{
			name: "player already in a match",
			build: func() *Match {
				m := New("proc-3", "PvP", "Default")
				m.Teams[0] = teamOf(99, 2)
				return m
			},
			wantErr: ErrPlayerInMatch,
		},
		{
			name: "bots do not collide",
			build: func() *Match {
				m := New("proc-4", "PvP", "Default")
				m.Teams[0] = []*PlayerSlot{{IsBot: true}, {IsBot: true}}
				m.Teams[1] = []*PlayerSlot{{IsBot: true}, {IsBot: true}}
				return m
			},
		},
	}

	r := NewRegistry()
	if err := r.Add(first); err != nil {
		t.Fatalf("seed Add() err=%#v", err)
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := r.Add(tt.build())
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("Add() err=%#v want=%#v", err, tt.wantErr)
			}
		})
	}
}

func TestRegistry_FailedAddLeavesNoEntries(t *testing.T) {
	r := NewRegistry()
	seed := New("proc-1", "PvP", "Default")
	seed.Teams[0] = teamOf(1)
	if err := r.Add(seed); err != nil {
		t.Fatalf("seed Add() err=%#v", err)
	}

	rejected := New("proc-2", "PvP", "Default")
	rejected.Teams[0] = teamOf(5, 1)
	if err := r.Add(rejected); !errors.Is(err, ErrPlayerInMatch) {
		t.Fatalf("Add() err=%#v want ErrPlayerInMatch", err)
	}

	// The rejected match must not have claimed any player or process.
	if _, ok := r.ForPlayer(5); ok {
		t.Errorf("player 5 registered by a rejected add")
	}
	if _, ok := r.ByProcess("proc-2"); ok {
		t.Errorf("proc-2 registered by a rejected add")
	}
}

func TestRegistry_Lookups(t *testing.T) {
	r := NewRegistry()
	m := New("proc-1", "PvP", "Default")
	m.Teams[0] = teamOf(1, 2)
	m.Teams[1] = []*PlayerSlot{{IsBot: true}}
	if err := r.Add(m); err != nil {
		t.Fatalf("Add() err=%#v", err)
	}

	if got, ok := r.ByProcess("proc-1"); !ok || got != m {
		t.Errorf("ByProcess() got=%#v ok=%v", got, ok)
	}
	if got, ok := r.ForPlayer(2); !ok || got != m {
		t.Errorf("ForPlayer() got=%#v ok=%v", got, ok)
	}
	if _, ok := r.ForPlayer(999); ok {
		t.Errorf("ForPlayer(999) should miss")
	}
	if r.Len() != 1 {
		t.Errorf("Len() got=%d want=1", r.Len())
	}

	snap := r.Snapshot()
	if snap["proc-1"] != StatusAssembling {
		t.Errorf("Snapshot() got=%#v", snap)
	}
}

func TestRegistry_RemoveIdempotent(t *testing.T) {
	r := NewRegistry()
	m := New("proc-1", "PvP", "Default")
	m.Teams[0] = teamOf(1)
	if err := r.Add(m); err != nil {
		t.Fatalf("Add() err=%#v", err)
	}

	r.Remove("proc-1")
	r.Remove("proc-1")

	if r.Len() != 0 {
		t.Errorf("Len() after remove got=%d want=0", r.Len())
	}
	if _, ok := r.ForPlayer(1); ok {
		t.Errorf("player entry survived removal")
	}

	// The freed players and process can be reused.
	again := New("proc-1", "PvP", "Default")
	again.Teams[0] = teamOf(1)
	if err := r.Add(again); err != nil {
		t.Errorf("re-Add() err=%#v", err)
	}
}

func TestMatch_Advance(t *testing.T) {
	m := New("proc-1", "PvP", "Default")

	if !m.Advance(StatusFreelancerSelecting) {
		t.Fatalf("forward transition rejected")
	}
	if m.Advance(StatusFreelancerSelecting) {
		t.Errorf("same-state transition accepted")
	}
	if m.Advance(StatusAssembling) {
		t.Errorf("backward transition accepted")
	}
	if !m.Advance(StatusLaunched) {
		t.Errorf("skip-ahead transition rejected")
	}
	if m.Status() != StatusLaunched {
		t.Errorf("Status() got=%v", m.Status())
	}
}

func TestStatus_Valid(t *testing.T) {
	for s := StatusAssembling; s <= StatusStopped; s++ {
		if !s.Valid() {
			t.Errorf("Valid() false for %v", s)
		}
	}
	for _, s := range []Status{-1, StatusStopped + 1, 100} {
		if s.Valid() {
			t.Errorf("Valid() true for out-of-range %d", int(s))
		}
	}
}

func TestMatch_MarkCancelled(t *testing.T) {
	m := New("proc-1", "PvP", "Default")
	m.MarkCancelled()
	if !m.Cancelled() || m.Status() != StatusStopped {
		t.Errorf("cancelled=%v status=%v", m.Cancelled(), m.Status())
	}
	if m.Advance(StatusStarted) {
		t.Errorf("transition accepted after terminal state")
	}
	if !m.Status().Terminal() {
		t.Errorf("Terminal() false for StatusStopped")
	}
}

func TestPlayerSlot_Human(t *testing.T) {
	tests := []struct {
		name string
		slot PlayerSlot
		want bool
	}{
		{"live player", PlayerSlot{AccountID: 1}, true},
		{"bot", PlayerSlot{IsBot: true}, false},
		{"replaced with bot", PlayerSlot{AccountID: 1, ReplacedWithBot: true}, false},
		{"controlled by another player", PlayerSlot{AccountID: 1, ControlledBy: 2}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.slot.Human(); got != tt.want {
				t.Errorf("Human() got=%v want=%v", got, tt.want)
			}
		})
	}
}
