package bridge

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
)

// Wire layout: a 4-byte big-endian length prefix (delimitation only, not
// part of the shared contract) followed by the fixed header
// [2-byte message-type index][4-byte callback id] and the payload bytes.
const (
	headerSize   = 6
	maxFrameSize = 1 << 20
)

var (
	ErrUnknownType   = errors.New("message type index out of table bounds")
	ErrFrameTooLarge = errors.New("frame exceeds size limit")
	ErrShortFrame    = errors.New("frame shorter than header")
)

// Frame is one decoded control message. Callback zero marks an unsolicited
// push; any other value correlates a response to an outstanding request.
type Frame struct {
	Type     MsgType
	Callback uint32
	Payload  []byte
}

// WriteFrame encodes and writes a single frame.
func WriteFrame(w io.Writer, f Frame) error {
	total := headerSize + len(f.Payload)
	if total > maxFrameSize {
		return ErrFrameTooLarge
	}
	buf := make([]byte, 4+headerSize+len(f.Payload))
	binary.BigEndian.PutUint32(buf[0:4], uint32(total))
	binary.BigEndian.PutUint16(buf[4:6], uint16(f.Type))
	binary.BigEndian.PutUint32(buf[6:10], f.Callback)
	copy(buf[10:], f.Payload)
	if _, err := w.Write(buf); err != nil {
		return fmt.Errorf("write frame: %w", err)
	}
	return nil
}

// ReadFrame reads and decodes a single frame. A type index outside the
// message table is returned as ErrUnknownType; callers must treat it as
// fatal for the connection.
func ReadFrame(r io.Reader) (Frame, error) {
	var lenBuf [4]byte
	if _, err := io.ReadFull(r, lenBuf[:]); err != nil {
		return Frame{}, err
	}
	total := binary.BigEndian.Uint32(lenBuf[:])
	if total > maxFrameSize {
		return Frame{}, ErrFrameTooLarge
	}
	if total < headerSize {
		return Frame{}, ErrShortFrame
	}

	body := make([]byte, total)
	if _, err := io.ReadFull(r, body); err != nil {
		return Frame{}, fmt.Errorf("read frame body: %w", err)
	}

	f := Frame{
		Type:     MsgType(binary.BigEndian.Uint16(body[0:2])),
		Callback: binary.BigEndian.Uint32(body[2:6]),
		Payload:  body[6:],
	}
	if !f.Type.Valid() {
		return Frame{}, fmt.Errorf("%w: %d", ErrUnknownType, uint16(f.Type))
	}
	return f, nil
}
