// Package bridge implements the control channel between the director and
// its game-hosting worker processes: a binary frame carrying a typed
// message, with callback-id correlation for request/response pairs and a
// per-connection stream of unsolicited pushes.
package bridge

import (
	"encoding/json"
	"fmt"
)

// MsgType indexes the fixed, positionally-ordered message table shared with
// the worker binary. An index outside the table is a fatal protocol error
// for that connection.
type MsgType uint16

const (
	MsgHandshake MsgType = iota
	MsgHandshakeAck
	MsgSetMatchInfo
	MsgSetRoster
	MsgStart
	MsgStop
	MsgResponse
	MsgStatusChange
	MsgMetrics
	MsgPlayerLeaving
	MsgSummary

	msgTypeCount
)

func (t MsgType) Valid() bool { return t < msgTypeCount }

func (t MsgType) String() string {
	switch t {
	case MsgHandshake:
		return "Handshake"
	case MsgHandshakeAck:
		return "HandshakeAck"
	case MsgSetMatchInfo:
		return "SetMatchInfo"
	case MsgSetRoster:
		return "SetRoster"
	case MsgStart:
		return "Start"
	case MsgStop:
		return "Stop"
	case MsgResponse:
		return "Response"
	case MsgStatusChange:
		return "StatusChange"
	case MsgMetrics:
		return "Metrics"
	case MsgPlayerLeaving:
		return "PlayerLeaving"
	case MsgSummary:
		return "Summary"
	}
	return fmt.Sprintf("MsgType(%d)", uint16(t))
}

// HandshakePayload is the first frame a worker sends after connecting. An
// empty ProcessID asks the director to assign one.
type HandshakePayload struct {
	ProcessID string `json:"processId,omitempty"`
	Address   string `json:"address"`
	Port      int    `json:"port"`
}

// HandshakeAckPayload confirms registration and echoes the process id.
type HandshakeAckPayload struct {
	ProcessID string `json:"processId"`
}

// SetMatchInfoPayload configures the worker for an upcoming match.
type SetMatchInfoPayload struct {
	ProcessID string `json:"processId"`
	GameType  string `json:"gameType"`
	SubType   string `json:"subType"`
}

// RosterLine is one seat as sent to the worker.
type RosterLine struct {
	AccountID int64  `json:"accountId"`
	Handle    string `json:"handle"`
	Team      int    `json:"team"`
	SeatID    int    `json:"seatId"`
	Character string `json:"character"`
	Loadout   string `json:"loadout,omitempty"`
	IsBot     bool   `json:"isBot,omitempty"`
}

// SetRosterPayload replaces the worker's view of both teams.
type SetRosterPayload struct {
	ProcessID string       `json:"processId"`
	Roster    []RosterLine `json:"roster"`
}

type StartPayload struct {
	ProcessID string `json:"processId"`
}

type StopPayload struct {
	ProcessID string `json:"processId"`
}

// ResponsePayload answers a request frame, correlated by callback id.
type ResponsePayload struct {
	Success bool   `json:"success"`
	Error   string `json:"error,omitempty"`
}

// StatusChangePayload is an unsolicited push advancing the match lifecycle.
type StatusChangePayload struct {
	Status int `json:"status"`
}

// MetricsPayload is a periodic live-state push.
type MetricsPayload struct {
	Turn       int `json:"turn"`
	TeamAScore int `json:"teamAScore"`
	TeamBScore int `json:"teamBScore"`
}

// PlayerLeavingPayload announces a participant dropping from the live game.
type PlayerLeavingPayload struct {
	AccountID int64 `json:"accountId"`
	Permanent bool  `json:"permanent"`
}

// SummaryLine is one seat's final stats.
type SummaryLine struct {
	AccountID int64  `json:"accountId"`
	Team      int    `json:"team"`
	Character string `json:"character"`
	Kills     int    `json:"kills"`
	Deaths    int    `json:"deaths"`
	Assists   int    `json:"assists"`
}

// SummaryPayload is the end-of-match report.
type SummaryPayload struct {
	Winner  int           `json:"winner"`
	Players []SummaryLine `json:"players"`
}

// decodePayload maps each table entry to its payload type. The mapping is
// explicit and static so an unexpected index can only fail as a typed
// protocol error, never as a reflection surprise.
func decodePayload(t MsgType, data []byte) (any, error) {
	var dst any
	switch t {
	case MsgHandshake:
		dst = &HandshakePayload{}
	case MsgHandshakeAck:
		dst = &HandshakeAckPayload{}
	case MsgSetMatchInfo:
		dst = &SetMatchInfoPayload{}
	case MsgSetRoster:
		dst = &SetRosterPayload{}
	case MsgStart:
		dst = &StartPayload{}
	case MsgStop:
		dst = &StopPayload{}
	case MsgResponse:
		dst = &ResponsePayload{}
	case MsgStatusChange:
		dst = &StatusChangePayload{}
	case MsgMetrics:
		dst = &MetricsPayload{}
	case MsgPlayerLeaving:
		dst = &PlayerLeavingPayload{}
	case MsgSummary:
		dst = &SummaryPayload{}
	default:
		return nil, fmt.Errorf("%w: %d", ErrUnknownType, t)
	}
	if len(data) > 0 {
		if err := json.Unmarshal(data, dst); err != nil {
			return nil, fmt.Errorf("decode %s payload: %w", t, err)
		}
	}
	return dst, nil
}
