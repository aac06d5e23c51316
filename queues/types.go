package queues

import "context"

// RosterEntry is one player as named by the matchmaking collaborator.
// Character may be empty or unknown; assembly substitutes a pending fill.
type RosterEntry struct {
	AccountID int64  `json:"accountId"`
	Handle    string `json:"handle"`
	Character string `json:"character,omitempty"`
}

// MatchRequest asks for a match between two already-composed rosters.
type MatchRequest struct {
	TicketID string        `json:"ticketId"`
	GameType string        `json:"gameType"`
	SubType  string        `json:"subType,omitempty"`
	TeamA    []RosterEntry `json:"teamA"`
	TeamB    []RosterEntry `json:"teamB"`
}

type MatchStatus string

const (
	StatusSuccess MatchStatus = "Success"
	StatusFailure MatchStatus = "Failure"
)

// MatchResult reports the outcome of a creation attempt back to the
// requesting collaborator.
type MatchResult struct {
	EnvelopeVersion string      `json:"envelopeVersion"`
	Type            string      `json:"type"`
	TicketID        string      `json:"ticketId"`
	Status          MatchStatus `json:"status"`
	MatchID         *string     `json:"matchId,omitempty"`
	ErrorMessage    *string     `json:"errorMessage,omitempty"`
}

type Subscriber interface {
	Start(ctx context.Context, handler func(context.Context, *MatchRequest) error) error
}

type Publisher interface {
	PublishResult(ctx context.Context, res *MatchResult) error
}
