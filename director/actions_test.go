package director

import (
	"context"
	"testing"

	"arena-match-director/match"
	"arena-match-director/queues"
	"arena-match-director/resolve"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// parkedMatch creates a match that sits at the ready barrier so player
// actions can be exercised against a stable phase.
func parkedMatch(t *testing.T, e *env) *match.Match {
	t.Helper()
	attachWorker(t, e, "w1", true)
	pid, err := e.d.CreateMatch(context.Background(),
		matchRequest("Default",
			[]queues.RosterEntry{entry(101, "Ana", "Ranger")},
			[]queues.RosterEntry{entry(201, "Bo", "Oracle")}))
	require.NoError(t, err)
	m, ok := e.reg.ByProcess(pid)
	require.True(t, ok)
	t.Cleanup(func() { _ = e.d.CancelMatch(pid) })
	return m
}

func TestSetReady(t *testing.T) {
	e := newEnv(t, parkedConfig())
	m := parkedMatch(t, e)

	require.NoError(t, e.d.SetReady(101, match.ReadyStateReady))
	m.Lock()
	assert.Equal(t, match.ReadyStateReady, m.SlotByAccount(101).Ready)
	m.Unlock()

	assert.ErrorIs(t, e.d.SetReady(999, match.ReadyStateReady), ErrMatchNotFound)
}

func TestSelectCharacter(t *testing.T) {
	e := newEnv(t, parkedConfig())
	m := parkedMatch(t, e)

	require.NoError(t, e.d.SelectCharacter(101, "Viper"))
	m.Lock()
	assert.Equal(t, match.Character("Viper"), m.SlotByAccount(101).Character)
	m.Unlock()

	// Asking for an automatic fill is always legal.
	require.NoError(t, e.d.SelectCharacter(101, match.CharacterPendingWillFill))

	assert.ErrorIs(t, e.d.SelectCharacter(101, "Nobody"), resolve.ErrNotAllowed)
	assert.ErrorIs(t, e.d.SelectCharacter(101, match.CharacterTestFreelancer), resolve.ErrNotAllowed)

	m.Advance(match.StatusLaunching)
	assert.ErrorIs(t, e.d.SelectCharacter(101, "Viper"), ErrWrongPhase)
}

func TestSetLoadout(t *testing.T) {
	e := newEnv(t, parkedConfig())
	m := parkedMatch(t, e)

	require.NoError(t, e.d.SetLoadout(101, `{"mods":[1,2,3]}`))
	m.Lock()
	assert.NotEmpty(t, m.SlotByAccount(101).Loadout)
	m.Unlock()

	// Loadout changes close at launch.
	m.Advance(match.StatusLaunching)
	assert.ErrorIs(t, e.d.SetLoadout(101, "{}"), ErrWrongPhase)
}

func TestDraftActions_RequireActiveDraft(t *testing.T) {
	e := newEnv(t, parkedConfig())
	parkedMatch(t, e)

	assert.ErrorIs(t, e.d.DraftHover(101, "Viper"), ErrWrongPhase)
	assert.ErrorIs(t, e.d.DraftBan(101, "Viper"), ErrWrongPhase)
	assert.ErrorIs(t, e.d.DraftPick(101, "Viper"), ErrWrongPhase)
	assert.ErrorIs(t, e.d.DraftTradeOffer(101, "Viper"), ErrWrongPhase)
}

func injectDraft(m *match.Match, phase match.DraftPhase, deck ...int) *match.DraftState {
	m.Lock()
	defer m.Unlock()
	ds := match.NewDraftState()
	ds.Phase = phase
	for _, s := range deck {
		ds.OnDeck = append(ds.OnDeck, match.OnDeck{SeatID: s})
	}
	m.Draft = ds
	return ds
}

func TestDraftActions_PickPhase(t *testing.T) {
	e := newEnv(t, parkedConfig())
	m := parkedMatch(t, e)
	ds := injectDraft(m, match.PhasePick1, 0)

	// Bans are not accepted during a pick round.
	assert.ErrorIs(t, e.d.DraftBan(101, "Viper"), ErrWrongPhase)

	require.NoError(t, e.d.DraftHover(101, "Viper"))
	m.Lock()
	assert.Equal(t, match.Character("Viper"), ds.Deck(0).Intended)
	m.Unlock()

	require.NoError(t, e.d.DraftPick(101, "Viper"))
	m.Lock()
	assert.Equal(t, match.Character("Viper"), ds.Picks[0])
	assert.True(t, ds.AllCommitted())
	m.Unlock()

	// Seat 2 (Bo) is not on deck this round.
	assert.ErrorIs(t, e.d.DraftPick(201, "Shade"), resolve.ErrNotOnDeck)
}

func TestDraftActions_BanPhase(t *testing.T) {
	e := newEnv(t, parkedConfig())
	m := parkedMatch(t, e)
	ds := injectDraft(m, match.PhaseBan1, 0)

	assert.ErrorIs(t, e.d.DraftPick(101, "Viper"), ErrWrongPhase)

	require.NoError(t, e.d.DraftBan(101, "Viper"))
	m.Lock()
	assert.Equal(t, []match.Character{"Viper"}, ds.Bans[match.TeamA])
	m.Unlock()
}

func TestDraftActions_TradeWithBotAutoAccepts(t *testing.T) {
	e := newEnv(t, parkedConfig())
	m := parkedMatch(t, e)
	ds := injectDraft(m, match.PhaseTrade)

	// Seat 0 is Ana, seat 1 the fill bot on her team.
	m.Lock()
	ds.Picks[0] = "Ranger"
	ds.Picks[1] = "Bulwark"
	m.Unlock()

	require.NoError(t, e.d.DraftTradeOffer(101, "Bulwark"))
	m.Lock()
	assert.Equal(t, match.Character("Bulwark"), ds.Picks[0])
	assert.Equal(t, match.Character("Ranger"), ds.Picks[1])
	assert.Empty(t, ds.Trades)
	m.Unlock()
}
