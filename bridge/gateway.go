package bridge

import (
	"context"
	"net"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

const handshakeTimeout = 10 * time.Second

// Registrar is notified as worker connections come and go. Attach reports
// whether the worker re-attached to an existing registration.
type Registrar interface {
	Attach(c *Conn) (reattached bool)
	Detach(processID string, c *Conn)
}

// Gateway accepts worker connections, runs the handshake and hands each
// resulting Conn to the registrar.
type Gateway struct {
	registrar Registrar
	ln        net.Listener
	ready     atomic.Bool
}

func NewGateway(registrar Registrar) *Gateway {
	return &Gateway{registrar: registrar}
}

// Ready reports whether the gateway is listening.
func (g *Gateway) Ready() bool { return g.ready.Load() }

// Listen binds the bridge address. Split from Serve so readiness is known
// before the accept loop starts.
func (g *Gateway) Listen(addr string) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}
	g.ln = ln
	g.ready.Store(true)
	log.Info().Str("addr", ln.Addr().String()).Msg("bridge: listening for workers")
	return nil
}

// Serve runs the accept loop until the context is cancelled.
func (g *Gateway) Serve(ctx context.Context) error {
	go func() {
		<-ctx.Done()
		g.ready.Store(false)
		_ = g.ln.Close()
	}()

	for {
		nc, err := g.ln.Accept()
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return err
		}
		go g.handle(nc)
	}
}

// handle runs the address/port handshake for one inbound connection. The
// first frame must be a Handshake; anything else drops the connection.
func (g *Gateway) handle(nc net.Conn) {
	_ = nc.SetReadDeadline(time.Now().Add(handshakeTimeout))
	f, err := ReadFrame(nc)
	if err != nil {
		log.Warn().Err(err).Str("remote", nc.RemoteAddr().String()).Msg("bridge: handshake read failed")
		_ = nc.Close()
		return
	}
	if f.Type != MsgHandshake {
		log.Warn().Str("remote", nc.RemoteAddr().String()).Str("type", f.Type.String()).Msg("bridge: first frame was not a handshake")
		_ = nc.Close()
		return
	}
	payload, err := decodePayload(f.Type, f.Payload)
	if err != nil {
		log.Warn().Err(err).Str("remote", nc.RemoteAddr().String()).Msg("bridge: malformed handshake")
		_ = nc.Close()
		return
	}
	hs := payload.(*HandshakePayload)
	_ = nc.SetReadDeadline(time.Time{})

	processID := hs.ProcessID
	if processID == "" {
		processID = uuid.NewString()
	}

	c := newConn(nc, processID, hs.Address, hs.Port)
	if err := c.Send(MsgHandshakeAck, HandshakeAckPayload{ProcessID: processID}); err != nil {
		log.Warn().Err(err).Str("processId", processID).Msg("bridge: handshake ack failed")
		c.Close()
		return
	}

	reattached := g.registrar.Attach(c)
	log.Info().
		Str("processId", processID).
		Str("remote", nc.RemoteAddr().String()).
		Str("gameAddr", hs.Address).
		Int("gamePort", hs.Port).
		Bool("reattached", reattached).
		Msg("bridge: worker connected")

	c.readLoop()
	g.registrar.Detach(processID, c)
	log.Info().Str("processId", processID).Msg("bridge: worker disconnected")
}
