package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"arena-match-director/bridge"
	"arena-match-director/config"
	"arena-match-director/director"
	"arena-match-director/health"
	"arena-match-director/intake"
	"arena-match-director/match"
	"arena-match-director/metrics"
	"arena-match-director/pool"
	"arena-match-director/queues"
	qpubsub "arena-match-director/queues/pubsub"
	"arena-match-director/store"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

var version = "source"

func setLogger(level string) {
	zerolog.TimeFieldFormat = time.RFC3339Nano
	if os.Getenv("DEBUG") != "" {
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
		return
	}
	lvl, err := zerolog.ParseLevel(level)
	if err != nil {
		lvl = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(lvl)
}

// registrar feeds gateway attach/detach events into the pool and tells the
// director when a worker for a live match comes back.
type registrar struct {
	pool *pool.Pool
	dir  *director.Director
}

func (r *registrar) Attach(c *bridge.Conn) bool {
	reattached := r.pool.Attach(c)
	if reattached {
		r.dir.WorkerAttached(c)
	}
	return reattached
}

func (r *registrar) Detach(processID string, c *bridge.Conn) {
	r.pool.Detach(processID, c)
}

// logNotifier stands in for the player-session transport; lobby delivery is
// handled by a separate service consuming the match-result topic.
type logNotifier struct{}

func (logNotifier) MatchAssigned(accountID int64, processID string) {
	log.Info().Int64("accountId", accountID).Str("processId", processID).Msg("notify: match assigned")
}

func (logNotifier) RosterUpdate(m *match.Match) {
	log.Debug().Str("processId", m.ProcessID).Msg("notify: roster update")
}

func (logNotifier) ForcedChange(accountID int64, newCharacter match.Character, stolenBy string) {
	log.Info().Int64("accountId", accountID).Str("character", string(newCharacter)).Str("stolenBy", stolenBy).Msg("notify: forced character change")
}

func (logNotifier) DraftUpdate(m *match.Match) {
	log.Debug().Str("processId", m.ProcessID).Msg("notify: draft update")
}

func (logNotifier) Results(m *match.Match, accolades map[int64][]string) {
	log.Info().Str("processId", m.ProcessID).Int("accolades", len(accolades)).Msg("notify: match results")
}

func (logNotifier) Leave(accountID int64, reason director.Reason) {
	log.Info().Int64("accountId", accountID).Str("reason", reason.Code).Msg("notify: leave match")
}

func main() {
	cfg := config.Load()
	setLogger(cfg.LogLevel)
	log.Info().Msgf("Starting arena-match-director version: %s", version)
	log.Info().Interface("config", cfg.Redacted()).Msg("config loaded")

	// Preflight required configuration
	if cfg.GoogleProjectID == "" {
		log.Fatal().Msg("missing Google project id; set GOOGLE_APPLICATION_CREDENTIALS or GOOGLE_PROJECT_ID or DIRECTOR_PUBSUB_PROJECT_ID")
	}
	if cfg.Subscription == "" {
		log.Fatal().Msg("missing Pub/Sub subscription; set MATCH_REQUEST_SUBSCRIPTION")
	}
	if cfg.ResultTopic == "" {
		log.Fatal().Msg("missing Pub/Sub topic; set MATCH_RESULT_TOPIC")
	}

	// Context and shutdown handling
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	db, err := store.Open(cfg.DBPath)
	if err != nil {
		log.Fatal().Err(err).Str("path", cfg.DBPath).Msg("failed to open summary store")
	}
	defer db.Close()

	registry := match.NewRegistry()
	workers := pool.New(cfg.ReservedCustomSlots, nil)

	dir := director.New(director.Config{
		TeamSize:          cfg.TeamSize,
		SelectTimeout:     cfg.SelectTimeout,
		BanTimeout:        cfg.BanTimeout,
		PickTimeout:       cfg.PickTimeout,
		TradeTimeout:      cfg.TradeTimeout,
		LoadoutDuration:   cfg.LoadoutDuration,
		PostGameDelay:     cfg.PostGameDelay,
		ReconnectGrace:    cfg.ReconnectGrace,
		DuplicateSubTypes: cfg.DuplicateSubTypes,
		RankedSubTypes:    cfg.RankedSubTypes,
		CustomGameTypes:   cfg.CustomGameTypes,
	}, director.Deps{
		Registry: registry,
		Pool:     workers,
		Store:    db,
		Catalog:  match.DefaultCatalog(),
		Notifier: logNotifier{},
	})

	gateway := bridge.NewGateway(&registrar{pool: workers, dir: dir})
	if err := gateway.Listen(cfg.BridgeAddr); err != nil {
		log.Fatal().Err(err).Str("addr", cfg.BridgeAddr).Msg("failed to listen for workers")
	}
	go func() {
		log.Info().Str("addr", cfg.BridgeAddr).Msg("starting worker bridge listener")
		if err := gateway.Serve(ctx); err != nil {
			log.Error().Err(err).Msg("bridge listener stopped")
		}
	}()

	// Metrics and health HTTP server
	mux := http.NewServeMux()
	metrics.Register(mux)
	health.Register(mux, gateway.Ready)

	srv := &http.Server{
		Addr:              cfg.HTTPAddr(),
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		log.Info().Str("addr", cfg.HTTPAddr()).Msg("starting metrics/health server")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("http server error")
		}
	}()

	if cfg.CredentialsFile != "" {
		log.Info().Str("credsFile", cfg.CredentialsFile).Msg("using explicit Google credentials file")
	} else {
		log.Info().Msg("using default Google credentials (in-cluster or ambient)")
	}
	publisher := qpubsub.NewPublisher(cfg.GoogleProjectID, cfg.ResultTopic, cfg.CredentialsFile)
	controller := intake.NewController(publisher, dir)
	subscriber := qpubsub.NewSubscriber(cfg.GoogleProjectID, cfg.Subscription, cfg.CredentialsFile)

	// Start subscriber loop
	go func() {
		log.Info().Str("subscription", cfg.Subscription).Msg("starting subscriber loop")
		if err := subscriber.Start(ctx, func(ctx context.Context, req *queues.MatchRequest) error {
			return controller.Handle(ctx, req)
		}); err != nil {
			// Non-recoverable: if we can't receive from Pub/Sub, terminate the process
			log.Fatal().Err(err).Msg("subscriber exited with fatal error; shutting down")
		}
	}()

	// Block until shutdown
	<-ctx.Done()
	log.Info().Msg("shutdown signal received")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("http server graceful shutdown failed")
	}
	log.Info().Msg("shutdown complete")
}
