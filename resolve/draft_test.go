package resolve

import (
	"testing"

	"arena-match-director/match"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func draftWithDeck(seats ...int) *match.DraftState {
	ds := match.NewDraftState()
	for _, s := range seats {
		ds.OnDeck = append(ds.OnDeck, match.OnDeck{SeatID: s})
	}
	return ds
}

func TestHover(t *testing.T) {
	ds := draftWithDeck(0)
	require.NoError(t, Hover(ds, 0, "Viper"))
	assert.Equal(t, match.Character("Viper"), ds.Deck(0).Intended)
	assert.ErrorIs(t, Hover(ds, 3, "Viper"), ErrNotOnDeck)
}

func TestBan(t *testing.T) {
	cat := match.DefaultCatalog()
	team := []*match.PlayerSlot{seat(0, "Ranger")}

	t.Run("commits and leaves deck", func(t *testing.T) {
		ds := draftWithDeck(0)
		require.NoError(t, Ban(ds, 0, match.TeamA, "Viper", team, cat, testRng()))
		assert.Equal(t, []match.Character{"Viper"}, ds.Bans[match.TeamA])
		assert.True(t, ds.AllCommitted())
	})

	t.Run("placeholder is substituted", func(t *testing.T) {
		ds := draftWithDeck(0)
		require.NoError(t, Ban(ds, 0, match.TeamA, match.CharacterPendingWillFill, team, cat, testRng()))
		require.Len(t, ds.Bans[match.TeamA], 1)
		assert.True(t, cat.Contains(ds.Bans[match.TeamA][0]))
	})

	t.Run("already banned", func(t *testing.T) {
		ds := draftWithDeck(0, 4)
		require.NoError(t, Ban(ds, 0, match.TeamA, "Viper", team, cat, testRng()))
		assert.ErrorIs(t, Ban(ds, 4, match.TeamB, "Viper", team, cat, testRng()), ErrCharacterBanned)
	})

	t.Run("unknown character", func(t *testing.T) {
		ds := draftWithDeck(0)
		assert.ErrorIs(t, Ban(ds, 0, match.TeamA, "Nobody", team, cat, testRng()), ErrNotAllowed)
	})

	t.Run("off deck", func(t *testing.T) {
		ds := match.NewDraftState()
		assert.ErrorIs(t, Ban(ds, 0, match.TeamA, "Viper", team, cat, testRng()), ErrNotOnDeck)
	})
}

func TestPick(t *testing.T) {
	cat := match.DefaultCatalog()
	team := []*match.PlayerSlot{seat(0, match.CharacterNone), seat(1, "Oracle")}

	t.Run("commits", func(t *testing.T) {
		ds := draftWithDeck(0)
		require.NoError(t, Pick(ds, 0, "Viper", team, cat, false, testRng()))
		assert.Equal(t, match.Character("Viper"), ds.Picks[0])
		assert.True(t, ds.AllCommitted())
	})

	t.Run("team duplicate rejected", func(t *testing.T) {
		ds := draftWithDeck(0)
		assert.ErrorIs(t, Pick(ds, 0, "Oracle", team, cat, false, testRng()), ErrCharacterUsed)
	})

	t.Run("duplicate allowed in sub-type", func(t *testing.T) {
		ds := draftWithDeck(0)
		require.NoError(t, Pick(ds, 0, "Oracle", team, cat, true, testRng()))
	})

	t.Run("banned rejected", func(t *testing.T) {
		ds := draftWithDeck(0)
		ds.Bans[match.TeamB] = []match.Character{"Viper"}
		assert.ErrorIs(t, Pick(ds, 0, "Viper", team, cat, false, testRng()), ErrCharacterBanned)
	})

	t.Run("duplicate of an earlier pick rejected", func(t *testing.T) {
		ds := draftWithDeck(0, 2)
		team := []*match.PlayerSlot{seat(0, match.CharacterNone), seat(2, match.CharacterNone)}
		require.NoError(t, Pick(ds, 0, "Viper", team, cat, false, testRng()))
		assert.ErrorIs(t, Pick(ds, 2, "Viper", team, cat, false, testRng()), ErrCharacterUsed)
	})

	t.Run("placeholder fair-filled", func(t *testing.T) {
		ds := draftWithDeck(0)
		require.NoError(t, Pick(ds, 0, match.CharacterPendingWillFill, team, cat, false, testRng()))
		assert.True(t, cat.HumanPlayable(ds.Picks[0]))
	})
}

func TestTrade_Lifecycle(t *testing.T) {
	team := []*match.PlayerSlot{seat(0, match.CharacterNone), seat(1, match.CharacterNone), seat(2, match.CharacterNone)}

	setup := func() *match.DraftState {
		ds := match.NewDraftState()
		ds.Picks[0] = "Ranger"
		ds.Picks[1] = "Oracle"
		ds.Picks[2] = "Bulwark"
		return ds
	}

	t.Run("offer then accept swaps exactly two seats", func(t *testing.T) {
		ds := setup()
		auto, err := OfferTrade(ds, 0, "Oracle", team)
		require.NoError(t, err)
		assert.False(t, auto)

		require.NoError(t, AcceptTrade(ds, 0, 1))
		assert.Equal(t, match.Character("Oracle"), ds.Picks[0])
		assert.Equal(t, match.Character("Ranger"), ds.Picks[1])
		assert.Equal(t, match.Character("Bulwark"), ds.Picks[2])
		assert.Empty(t, ds.Trades)
	})

	t.Run("accept purges other trades touching either seat", func(t *testing.T) {
		ds := setup()
		_, err := OfferTrade(ds, 0, "Oracle", team)
		require.NoError(t, err)
		_, err = OfferTrade(ds, 2, "Oracle", team)
		require.NoError(t, err)
		require.Len(t, ds.Trades, 2)

		require.NoError(t, AcceptTrade(ds, 0, 1))
		assert.Empty(t, ds.Trades)
		// The purged trade cannot be accepted afterwards.
		assert.ErrorIs(t, AcceptTrade(ds, 2, 1), ErrNoTrade)
	})

	t.Run("new offer supersedes previous from same seat", func(t *testing.T) {
		ds := setup()
		_, err := OfferTrade(ds, 0, "Oracle", team)
		require.NoError(t, err)
		_, err = OfferTrade(ds, 0, "Bulwark", team)
		require.NoError(t, err)
		require.Len(t, ds.Trades, 1)
		assert.Equal(t, 2, ds.Trades[0].ToSeat)
	})

	t.Run("reject removes only that trade", func(t *testing.T) {
		ds := setup()
		_, err := OfferTrade(ds, 0, "Oracle", team)
		require.NoError(t, err)
		_, err = OfferTrade(ds, 2, "Oracle", team)
		require.NoError(t, err)

		require.NoError(t, RejectTrade(ds, 0, 1))
		require.Len(t, ds.Trades, 1)
		assert.Equal(t, 2, ds.Trades[0].FromSeat)
	})

	t.Run("bot holder auto-accepts", func(t *testing.T) {
		ds := setup()
		botTeam := []*match.PlayerSlot{seat(0, match.CharacterNone), botSeat(1, match.CharacterNone), seat(2, match.CharacterNone)}
		auto, err := OfferTrade(ds, 0, "Oracle", botTeam)
		require.NoError(t, err)
		assert.True(t, auto)
		assert.Equal(t, match.Character("Oracle"), ds.Picks[0])
		assert.Equal(t, match.Character("Ranger"), ds.Picks[1])
	})

	t.Run("errors", func(t *testing.T) {
		ds := setup()
		_, err := OfferTrade(ds, 7, "Oracle", team)
		assert.ErrorIs(t, err, ErrNoCommittedPick)
		_, err = OfferTrade(ds, 0, "Havoc", team)
		assert.ErrorIs(t, err, ErrNotHeld)
		assert.ErrorIs(t, RejectTrade(ds, 0, 1), ErrNoTrade)
	})
}

func TestResolve_CommitsExpiredSeats(t *testing.T) {
	cat := match.DefaultCatalog()
	teamA := []*match.PlayerSlot{seat(0, match.CharacterNone), seat(1, match.CharacterNone)}
	teamB := []*match.PlayerSlot{seat(4, match.CharacterNone)}
	side := func(seatID int) (match.Team, []*match.PlayerSlot) {
		if seatID < 4 {
			return match.TeamA, teamA
		}
		return match.TeamB, teamB
	}

	t.Run("picks use hovered intention when legal", func(t *testing.T) {
		ds := draftWithDeck(0, 1, 4)
		ds.Phase = match.PhasePick1
		ds.OnDeck[0].Intended = "Viper"

		n := Resolve(ds, side, cat, false, testRng())
		assert.Equal(t, 3, n)
		assert.Equal(t, match.Character("Viper"), ds.Picks[0])
		assert.True(t, ds.AllCommitted())
		for _, s := range []int{1, 4} {
			assert.True(t, cat.HumanPlayable(ds.Picks[s]), "seat %d got %q", s, ds.Picks[s])
		}
	})

	t.Run("illegal intention falls back to random", func(t *testing.T) {
		ds := draftWithDeck(0, 1)
		ds.Phase = match.PhasePick1
		ds.OnDeck[0].Intended = "Viper"
		ds.OnDeck[1].Intended = "Viper"

		n := Resolve(ds, side, cat, false, testRng())
		assert.Equal(t, 2, n)
		assert.NotEqual(t, ds.Picks[0], ds.Picks[1])
	})

	t.Run("bans committed for the right side", func(t *testing.T) {
		ds := draftWithDeck(0, 4)
		ds.Phase = match.PhaseBan1
		ds.OnDeck[0].Intended = "Viper"

		n := Resolve(ds, side, cat, false, testRng())
		assert.Equal(t, 2, n)
		assert.Equal(t, []match.Character{"Viper"}, ds.Bans[match.TeamA])
		require.Len(t, ds.Bans[match.TeamB], 1)
		assert.NotEqual(t, match.Character("Viper"), ds.Bans[match.TeamB][0])
	})

	t.Run("trade phase accepts pending trades", func(t *testing.T) {
		ds := match.NewDraftState()
		ds.Phase = match.PhaseTrade
		ds.Picks[0] = "Ranger"
		ds.Picks[1] = "Oracle"
		ds.Trades = []match.Trade{{FromSeat: 0, ToSeat: 1, Offered: "Ranger", Desired: "Oracle"}}

		n := Resolve(ds, side, cat, false, testRng())
		assert.Equal(t, 1, n)
		assert.Equal(t, match.Character("Oracle"), ds.Picks[0])
		assert.Empty(t, ds.Trades)
	})
}
