package pool

import (
	"errors"
	"math/rand"
	"net"
	"testing"

	"arena-match-director/bridge"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func liveConn(t *testing.T, processID string) *bridge.Conn {
	t.Helper()
	ours, theirs := net.Pipe()
	c := bridge.NewConn(ours, processID, "10.0.0.1", 7777)
	t.Cleanup(func() {
		c.Close()
		_ = theirs.Close()
	})
	return c
}

func newTestPool(reserved int) *Pool {
	return New(reserved, rand.New(rand.NewSource(1)))
}

func TestPool_ReserveExclusive(t *testing.T) {
	p := newTestPool(0)
	for _, id := range []string{"w1", "w2", "w3"} {
		p.Attach(liveConn(t, id))
	}
	require.Equal(t, 3, p.Connected())
	require.Equal(t, 3, p.Available())

	seen := map[string]bool{}
	for i := 0; i < 3; i++ {
		w, err := p.Reserve(false)
		require.NoError(t, err)
		assert.False(t, seen[w.ProcessID], "worker %s reserved twice", w.ProcessID)
		seen[w.ProcessID] = true
	}

	_, err := p.Reserve(false)
	assert.ErrorIs(t, err, ErrNoCapacity)
	assert.Equal(t, 0, p.Available())
}

func TestPool_ReservedCustomSlots(t *testing.T) {
	p := newTestPool(2)
	p.Attach(liveConn(t, "w1"))
	p.Attach(liveConn(t, "w2"))

	// Two available, two policy-reserved: custom requests find nothing.
	_, err := p.Reserve(true)
	assert.ErrorIs(t, err, ErrNoCapacity)

	// Automated traffic is unaffected.
	w, err := p.Reserve(false)
	require.NoError(t, err)

	// One worker left, still within the reserved window.
	_, err = p.Reserve(true)
	assert.ErrorIs(t, err, ErrNoCapacity)

	// A third worker puts one past the window.
	p.Attach(liveConn(t, "w3"))
	cw, err := p.Reserve(true)
	require.NoError(t, err)
	assert.NotEqual(t, w.ProcessID, cw.ProcessID)
}

func TestPool_ReleaseIdempotent(t *testing.T) {
	p := newTestPool(0)
	p.Attach(liveConn(t, "w1"))

	w, err := p.Reserve(false)
	require.NoError(t, err)

	p.Release(w.ProcessID)
	p.Release(w.ProcessID)
	p.Release("unknown")

	assert.Equal(t, 1, p.Available())
	again, err := p.Reserve(false)
	require.NoError(t, err)
	assert.Equal(t, w.ProcessID, again.ProcessID)
}

func TestPool_ReleaseDropsDeadWorker(t *testing.T) {
	p := newTestPool(0)
	c := liveConn(t, "w1")
	p.Attach(c)

	w, err := p.Reserve(false)
	require.NoError(t, err)

	c.Close()
	p.Detach("w1", c)
	// Reserved workers survive a disconnect until released.
	_, ok := p.Lookup("w1")
	require.True(t, ok)

	p.Release(w.ProcessID)
	_, ok = p.Lookup("w1")
	assert.False(t, ok)
	assert.Equal(t, 0, p.Connected())
}

func TestPool_DetachUnreservedForgets(t *testing.T) {
	p := newTestPool(0)
	c := liveConn(t, "w1")
	p.Attach(c)

	p.Detach("w1", c)
	assert.Equal(t, 0, p.Connected())
}

func TestPool_ReattachSwapsConn(t *testing.T) {
	p := newTestPool(0)
	first := liveConn(t, "w1")
	p.Attach(first)

	w, err := p.Reserve(false)
	require.NoError(t, err)

	// Connection lost mid-match.
	first.Close()
	p.Detach("w1", first)

	// Same process id reconnects within the grace window.
	second := liveConn(t, "w1")
	reattached := p.Attach(second)
	assert.True(t, reattached)
	assert.Same(t, second, w.Conn())

	// Still reserved: not handed out to someone else.
	_, err = p.Reserve(false)
	assert.ErrorIs(t, err, ErrNoCapacity)
}

func TestPool_StaleDetachIgnored(t *testing.T) {
	p := newTestPool(0)
	first := liveConn(t, "w1")
	p.Attach(first)
	second := liveConn(t, "w1")
	p.Attach(second)

	// The old connection's teardown arrives after the re-attach.
	p.Detach("w1", first)

	w, ok := p.Lookup("w1")
	require.True(t, ok)
	assert.Same(t, second, w.Conn())
	assert.Equal(t, 1, p.Available())
}

func TestPool_Deregister(t *testing.T) {
	p := newTestPool(0)
	p.Attach(liveConn(t, "w1"))
	if _, err := p.Reserve(false); err != nil {
		t.Fatalf("Reserve() err=%#v", err)
	}

	p.Deregister("w1")
	assert.Equal(t, 0, p.Connected())
	_, err := p.Reserve(false)
	assert.True(t, errors.Is(err, ErrNoCapacity))
}
