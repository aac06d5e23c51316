// Package pool tracks connected game-hosting workers and hands out
// exclusive reservations for matches.
package pool

import (
	"errors"
	"math/rand"
	"sync"
	"sync/atomic"
	"time"

	"arena-match-director/bridge"
	"arena-match-director/metrics"

	"github.com/rs/zerolog/log"
)

// ErrNoCapacity is returned when no worker qualifies for a reservation.
// Reserve never blocks; callers queue or back off on their side.
var ErrNoCapacity = errors.New("no worker available")

// Worker is one registered game-hosting process. The reservation
// back-reference is weak: the worker does not own its match. The connection
// pointer is swapped atomically when a worker re-attaches.
type Worker struct {
	ProcessID string

	conn atomic.Pointer[bridge.Conn]

	// guarded by the pool mutex
	available bool
	reserved  bool
}

// Conn returns the current live connection for this worker.
func (w *Worker) Conn() *bridge.Conn { return w.conn.Load() }

// Pool is the worker registry and allocator. All bookkeeping is guarded by
// one mutex held only for the duration of each lookup or mutation, never
// across I/O.
type Pool struct {
	mu                  sync.Mutex
	workers             map[string]*Worker
	rng                 *rand.Rand
	reservedCustomSlots int
}

// New builds a pool. reservedCustomSlots workers are kept out of reach of
// custom-game reservations so automated traffic is never starved. The rng
// is the pool's single seedable source for scan-order shuffling; nil gets a
// time-seeded one.
func New(reservedCustomSlots int, rng *rand.Rand) *Pool {
	if rng == nil {
		rng = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	return &Pool{
		workers:             make(map[string]*Worker),
		rng:                 rng,
		reservedCustomSlots: reservedCustomSlots,
	}
}

// Attach registers an inbound worker connection. A worker reconnecting with
// a process id that is still reserved re-attaches to its reservation
// instead of registering fresh; the stale connection is dropped.
func (p *Pool) Attach(c *bridge.Conn) (reattached bool) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if existing, ok := p.workers[c.ProcessID()]; ok {
		old := existing.conn.Swap(c)
		if old != nil && old != c {
			old.Close()
		}
		if existing.reserved {
			p.updateGauges()
			return true
		}
		existing.available = true
		p.updateGauges()
		return false
	}

	w := &Worker{ProcessID: c.ProcessID(), available: true}
	w.conn.Store(c)
	p.workers[c.ProcessID()] = w
	p.updateGauges()
	return false
}

// Detach handles a dying worker connection. A reserved worker stays
// registered so a reconnect within the grace period can re-attach; dropping
// it for good is the orchestrator's call. The conn argument guards against
// a stale disconnect racing a fresh re-attach.
func (p *Pool) Detach(processID string, c *bridge.Conn) {
	p.mu.Lock()
	defer p.mu.Unlock()

	w, ok := p.workers[processID]
	if !ok || (c != nil && w.Conn() != c) {
		return
	}
	if w.reserved {
		w.available = false
		p.updateGauges()
		return
	}
	delete(p.workers, processID)
	p.updateGauges()
}

// Deregister drops a worker outright, reservation or not.
func (p *Pool) Deregister(processID string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	delete(p.workers, processID)
	p.updateGauges()
}

// Reserve hands out an exclusive worker; the match it will host is keyed by
// the worker's own process id. Available workers are scanned in randomized
// order to avoid hot-spotting the first-registered one. A custom-game
// request skips the first reservedCustomSlots available workers; when no
// worker lies beyond that window the request fails even though workers
// exist.
func (p *Pool) Reserve(custom bool) (*Worker, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	avail := make([]*Worker, 0, len(p.workers))
	for _, w := range p.workers {
		if w.available {
			avail = append(avail, w)
		}
	}
	p.rng.Shuffle(len(avail), func(i, j int) { avail[i], avail[j] = avail[j], avail[i] })

	skip := 0
	if custom {
		skip = p.reservedCustomSlots
	}
	for i, w := range avail {
		if i < skip {
			continue
		}
		w.available = false
		w.reserved = true
		p.updateGauges()
		log.Debug().Str("processId", w.ProcessID).Bool("custom", custom).Msg("pool: worker reserved")
		return w, nil
	}
	return nil, ErrNoCapacity
}

// Release tears down a reservation, returning the worker to the available
// set or forgetting it if its connection is already gone. Releasing an
// unknown process id is a no-op so teardown can run more than once.
func (p *Pool) Release(processID string) {
	p.mu.Lock()
	defer p.mu.Unlock()

	w, ok := p.workers[processID]
	if !ok {
		return
	}
	w.reserved = false
	c := w.Conn()
	if c == nil || connDead(c) {
		delete(p.workers, processID)
		p.updateGauges()
		return
	}
	w.available = true
	p.updateGauges()
	log.Debug().Str("processId", processID).Msg("pool: worker released")
}

// Lookup returns the worker registered under a process id.
func (p *Pool) Lookup(processID string) (*Worker, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	w, ok := p.workers[processID]
	return w, ok
}

// Connected returns the number of registered workers.
func (p *Pool) Connected() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.workers)
}

// Available returns the number of unreserved workers.
func (p *Pool) Available() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.countAvailable()
}

func (p *Pool) countAvailable() int {
	n := 0
	for _, w := range p.workers {
		if w.available {
			n++
		}
	}
	return n
}

func (p *Pool) updateGauges() {
	metrics.WorkersConnected.Set(float64(len(p.workers)))
	metrics.WorkersAvailable.Set(float64(p.countAvailable()))
}

func connDead(c *bridge.Conn) bool {
	select {
	case <-c.Done():
		return true
	default:
		return false
	}
}
