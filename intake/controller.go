// Package intake wires queue consumption to match creation.
package intake

import (
	"context"
	"time"

	"arena-match-director/metrics"
	"arena-match-director/queues"

	"github.com/rs/zerolog/log"
)

// Creator is the match-creation entry point the controller drives.
type Creator interface {
	CreateMatch(ctx context.Context, req *queues.MatchRequest) (string, error)
}

// Controller handles inbound match requests and publishes the outcome.
type Controller struct {
	publisher queues.Publisher
	creator   Creator
}

func NewController(p queues.Publisher, c Creator) *Controller {
	return &Controller{publisher: p, creator: c}
}

// publishFailure builds and publishes a failure MatchResult with metrics.
func (c *Controller) publishFailure(ctx context.Context, req *queues.MatchRequest, start time.Time, message string) error {
	status := queues.StatusFailure
	duration := time.Since(start)
	metrics.CreateDuration.Observe(duration.Seconds())
	metrics.CreatesTotal.WithLabelValues("failure").Inc()
	res := &queues.MatchResult{
		EnvelopeVersion: "1.0",
		Type:            "match-result",
		TicketID:        req.TicketID,
		Status:          status,
		MatchID:         nil,
		ErrorMessage:    &message,
	}
	if err := c.publisher.PublishResult(ctx, res); err != nil {
		log.Error().Err(err).Str("ticketId", req.TicketID).Msg("intake: failed to publish failure result")
		return err
	}
	return nil
}

func (c *Controller) Handle(ctx context.Context, req *queues.MatchRequest) error {
	start := time.Now()
	log.Info().Str("ticketId", req.TicketID).Str("gameType", req.GameType).Str("subType", req.SubType).Msg("intake: handling match request")

	matchID, err := c.creator.CreateMatch(ctx, req)
	if err != nil {
		log.Warn().Err(err).Str("ticketId", req.TicketID).Msg("intake: match creation failed")
		return c.publishFailure(ctx, req, start, err.Error())
	}

	duration := time.Since(start)
	metrics.CreateDuration.Observe(duration.Seconds())
	metrics.CreatesTotal.WithLabelValues("success").Inc()

	res := &queues.MatchResult{
		EnvelopeVersion: "1.0",
		Type:            "match-result",
		TicketID:        req.TicketID,
		Status:          queues.StatusSuccess,
		MatchID:         &matchID,
	}
	if err := c.publisher.PublishResult(ctx, res); err != nil {
		log.Error().Err(err).Str("ticketId", req.TicketID).Dur("duration", duration).Msg("intake: failed to publish result")
		return err
	}
	log.Info().Str("ticketId", req.TicketID).Str("matchId", matchID).Dur("duration", duration).Msg("intake: match request succeeded")
	return nil
}
