package bridge

import (
	"context"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func pipeConn(t *testing.T) (*Conn, net.Conn) {
	t.Helper()
	ours, theirs := net.Pipe()
	c := newConn(ours, "worker-1", "10.0.0.5", 7777)
	go c.readLoop()
	t.Cleanup(func() {
		c.Close()
		_ = theirs.Close()
	})
	return c, theirs
}

func TestConn_Send(t *testing.T) {
	c, worker := pipeConn(t)

	errCh := make(chan error, 1)
	go func() {
		errCh <- c.Send(MsgStop, StopPayload{ProcessID: "worker-1"})
	}()

	f, err := ReadFrame(worker)
	require.NoError(t, err)
	assert.Equal(t, MsgStop, f.Type)
	assert.Equal(t, uint32(0), f.Callback)
	assert.JSONEq(t, `{"processId":"worker-1"}`, string(f.Payload))
	require.NoError(t, <-errCh)
}

func TestConn_Request_Response(t *testing.T) {
	c, worker := pipeConn(t)

	// Worker side: echo a success response for whatever callback arrives.
	go func() {
		f, err := ReadFrame(worker)
		if err != nil {
			return
		}
		_ = WriteFrame(worker, Frame{Type: MsgResponse, Callback: f.Callback, Payload: []byte(`{"success":true}`)})
	}()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	resp, err := c.Request(ctx, MsgStart, StartPayload{ProcessID: "worker-1"})
	require.NoError(t, err)
	assert.True(t, resp.Success)
}

func TestConn_Request_ContextTimeout(t *testing.T) {
	c, worker := pipeConn(t)

	// Drain the request but never answer.
	go func() { _, _ = ReadFrame(worker) }()

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	_, err := c.Request(ctx, MsgStart, nil)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestConn_Request_ConnLoss(t *testing.T) {
	c, worker := pipeConn(t)

	go func() {
		_, _ = ReadFrame(worker)
		_ = worker.Close()
	}()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	_, err := c.Request(ctx, MsgStart, nil)
	assert.ErrorIs(t, err, ErrConnClosed)
}

func TestConn_PushEvents(t *testing.T) {
	c, worker := pipeConn(t)

	go func() {
		_ = WriteFrame(worker, Frame{Type: MsgStatusChange, Callback: 0, Payload: []byte(`{"status":3}`)})
	}()

	select {
	case ev := <-c.Events():
		assert.Equal(t, MsgStatusChange, ev.Type)
		sc, ok := ev.Payload.(*StatusChangePayload)
		require.True(t, ok)
		assert.Equal(t, 3, sc.Status)
	case <-time.After(2 * time.Second):
		t.Fatal("no event received")
	}
}

func TestConn_EventsClosedOnDisconnect(t *testing.T) {
	c, worker := pipeConn(t)
	_ = worker.Close()

	select {
	case _, open := <-c.Events():
		assert.False(t, open, "event channel should be closed after disconnect")
	case <-time.After(2 * time.Second):
		t.Fatal("event channel not closed")
	}

	// Subsequent requests fail fast.
	_, err := c.Request(context.Background(), MsgStart, nil)
	assert.ErrorIs(t, err, ErrConnClosed)
}

func TestConn_ProtocolViolationFatal(t *testing.T) {
	c, worker := pipeConn(t)

	// A frame carrying a callback id must be a response.
	go func() {
		_ = WriteFrame(worker, Frame{Type: MsgStatusChange, Callback: 9, Payload: []byte(`{"status":1}`)})
	}()

	select {
	case <-c.Done():
	case <-time.After(2 * time.Second):
		t.Fatal("connection not dropped after protocol violation")
	}
}

func TestConn_CloseIdempotent(t *testing.T) {
	c, _ := pipeConn(t)
	c.Close()
	c.Close()
	assert.ErrorIs(t, c.Send(MsgStop, nil), ErrConnClosed)
}
