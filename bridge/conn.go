package bridge

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"sync"

	"github.com/rs/zerolog/log"
)

// ErrConnClosed is returned by Send/Request once the connection is gone.
var ErrConnClosed = errors.New("bridge connection closed")

const eventBuffer = 64

// Event is one unsolicited push from a worker (callback id zero).
type Event struct {
	Type    MsgType
	Payload any
}

// Conn is the exclusive control channel to one worker process. Writes are
// serialized; the read loop correlates responses by callback id and feeds
// pushes to the event channel. The event channel is closed when the
// connection dies, which is how subscribers observe worker loss.
type Conn struct {
	netConn   net.Conn
	processID string
	address   string
	port      int

	writeMu sync.Mutex

	mu           sync.Mutex
	nextCallback uint32
	pending      map[uint32]chan ResponsePayload
	closed       bool

	events chan Event
	done   chan struct{}

	closeOnce sync.Once
}

func newConn(nc net.Conn, processID, address string, port int) *Conn {
	return &Conn{
		netConn:   nc,
		processID: processID,
		address:   address,
		port:      port,
		pending:   make(map[uint32]chan ResponsePayload),
		events:    make(chan Event, eventBuffer),
		done:      make(chan struct{}),
	}
}

// NewConn wraps an established, already-handshaken network connection and
// starts its read loop.
func NewConn(nc net.Conn, processID, address string, port int) *Conn {
	c := newConn(nc, processID, address, port)
	go c.readLoop()
	return c
}

func (c *Conn) ProcessID() string { return c.processID }
func (c *Conn) Address() string   { return c.address }
func (c *Conn) Port() int         { return c.port }

// Events is the stream of unsolicited pushes. It is closed on disconnect.
func (c *Conn) Events() <-chan Event { return c.events }

// Done is closed when the connection has been torn down.
func (c *Conn) Done() <-chan struct{} { return c.done }

// Send writes a fire-and-forget message (callback id zero).
func (c *Conn) Send(t MsgType, payload any) error {
	return c.write(t, 0, payload)
}

// Request writes a message with a fresh callback id and waits for the
// worker's correlated response, the context deadline, or connection loss.
func (c *Conn) Request(ctx context.Context, t MsgType, payload any) (ResponsePayload, error) {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return ResponsePayload{}, ErrConnClosed
	}
	c.nextCallback++
	cb := c.nextCallback
	ch := make(chan ResponsePayload, 1)
	c.pending[cb] = ch
	c.mu.Unlock()

	defer func() {
		c.mu.Lock()
		delete(c.pending, cb)
		c.mu.Unlock()
	}()

	if err := c.write(t, cb, payload); err != nil {
		return ResponsePayload{}, err
	}

	select {
	case resp := <-ch:
		return resp, nil
	case <-ctx.Done():
		return ResponsePayload{}, ctx.Err()
	case <-c.done:
		return ResponsePayload{}, ErrConnClosed
	}
}

func (c *Conn) write(t MsgType, callback uint32, payload any) error {
	c.mu.Lock()
	closed := c.closed
	c.mu.Unlock()
	if closed {
		return ErrConnClosed
	}
	var body []byte
	if payload != nil {
		b, err := json.Marshal(payload)
		if err != nil {
			return fmt.Errorf("marshal %s payload: %w", t, err)
		}
		body = b
	}
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	if err := WriteFrame(c.netConn, Frame{Type: t, Callback: callback, Payload: body}); err != nil {
		return err
	}
	return nil
}

// Close tears the connection down, fails outstanding requests and closes
// the event stream. Safe to call more than once.
func (c *Conn) Close() {
	c.closeOnce.Do(func() {
		c.mu.Lock()
		c.closed = true
		close(c.events)
		c.mu.Unlock()
		_ = c.netConn.Close()
		close(c.done)
	})
}

// readLoop decodes inbound frames until the connection fails. A protocol
// violation (unknown type index, oversized or short frame) is fatal for
// this connection only.
func (c *Conn) readLoop() {
	defer c.Close()
	for {
		f, err := ReadFrame(c.netConn)
		if err != nil {
			if errors.Is(err, ErrUnknownType) || errors.Is(err, ErrFrameTooLarge) || errors.Is(err, ErrShortFrame) {
				log.Error().Err(err).Str("processId", c.processID).Msg("bridge: protocol violation, dropping connection")
			} else {
				log.Debug().Err(err).Str("processId", c.processID).Msg("bridge: connection read ended")
			}
			return
		}

		payload, err := decodePayload(f.Type, f.Payload)
		if err != nil {
			log.Error().Err(err).Str("processId", c.processID).Str("type", f.Type.String()).Msg("bridge: malformed payload, dropping connection")
			return
		}

		if f.Callback != 0 {
			resp, ok := payload.(*ResponsePayload)
			if !ok {
				log.Error().Str("processId", c.processID).Str("type", f.Type.String()).Uint32("callback", f.Callback).Msg("bridge: non-response frame with callback id, dropping connection")
				return
			}
			c.mu.Lock()
			ch, waiting := c.pending[f.Callback]
			c.mu.Unlock()
			if !waiting {
				log.Warn().Str("processId", c.processID).Uint32("callback", f.Callback).Msg("bridge: response for unknown callback id")
				continue
			}
			ch <- *resp
			continue
		}

		// The closed check and the send share the mutex with Close so a
		// push can never race the channel being closed.
		c.mu.Lock()
		if c.closed {
			c.mu.Unlock()
			return
		}
		select {
		case c.events <- Event{Type: f.Type, Payload: payload}:
			c.mu.Unlock()
		default:
			c.mu.Unlock()
			// Slow consumer; dropping the push is safer than blocking the
			// read loop for every other frame on this connection.
			log.Warn().Str("processId", c.processID).Str("type", f.Type.String()).Msg("bridge: event buffer full, dropping push")
		}
	}
}
