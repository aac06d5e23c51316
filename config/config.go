package config

import (
	"encoding/json"
	"net"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/rs/zerolog/log"
)

type Config struct {
	BridgeAddr  string `env:"DIRECTOR_BRIDGE_ADDR" envDefault:":6050"`
	MetricsPort int    `env:"DIRECTOR_METRICS_PORT" envDefault:"8080"`
	DBPath      string `env:"DIRECTOR_DB_PATH" envDefault:"director.db"`
	LogLevel    string `env:"DIRECTOR_LOG_LEVEL" envDefault:"info"`

	Subscription    string `env:"MATCH_REQUEST_SUBSCRIPTION"`
	ResultTopic     string `env:"MATCH_RESULT_TOPIC"`
	GoogleProjectID string `env:"DIRECTOR_PUBSUB_PROJECT_ID"`
	CredentialsFile string `env:"GOOGLE_APPLICATION_CREDENTIALS"`

	TeamSize            int           `env:"TEAM_SIZE" envDefault:"4"`
	SelectTimeout       time.Duration `env:"SELECT_TIMEOUT" envDefault:"30s"`
	BanTimeout          time.Duration `env:"BAN_TIMEOUT" envDefault:"25s"`
	PickTimeout         time.Duration `env:"PICK_TIMEOUT" envDefault:"25s"`
	TradeTimeout        time.Duration `env:"TRADE_TIMEOUT" envDefault:"15s"`
	LoadoutDuration     time.Duration `env:"LOADOUT_DURATION" envDefault:"20s"`
	PostGameDelay       time.Duration `env:"POST_GAME_DELAY" envDefault:"15s"`
	ReconnectGrace      time.Duration `env:"WORKER_RECONNECT_GRACE" envDefault:"60s"`
	ReservedCustomSlots int           `env:"RESERVED_CUSTOM_SLOTS" envDefault:"0"`
	DuplicateSubTypes   []string      `env:"DUPLICATE_SUBTYPES" envSeparator:","`
	RankedSubTypes      []string      `env:"RANKED_SUBTYPES" envDefault:"Ranked" envSeparator:","`
	CustomGameTypes     []string      `env:"CUSTOM_GAME_TYPES" envDefault:"Custom" envSeparator:","`
}

func Load() *Config {
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		log.Fatal().Err(err).Msg("failed to parse environment")
	}

	if cfg.GoogleProjectID == "" {
		cfg.GoogleProjectID = resolveGoogleProjectID(cfg.CredentialsFile)
	}
	if cfg.GoogleProjectID == "" {
		log.Warn().Msg("Google project ID not resolved; set GOOGLE_APPLICATION_CREDENTIALS or DIRECTOR_PUBSUB_PROJECT_ID")
	}
	if cfg.Subscription == "" {
		log.Warn().Msg("Pub/Sub subscription not set; set MATCH_REQUEST_SUBSCRIPTION")
	}
	if cfg.ResultTopic == "" {
		log.Warn().Msg("Pub/Sub topic not set; set MATCH_RESULT_TOPIC")
	}
	return cfg
}

func (c *Config) HTTPAddr() string {
	return net.JoinHostPort("0.0.0.0", strconv.Itoa(c.MetricsPort))
}

// Redacted returns a view safe for logging
func (c *Config) Redacted() map[string]any {
	return map[string]any{
		"bridgeAddr":          c.BridgeAddr,
		"metricsPort":         c.MetricsPort,
		"dbPath":              c.DBPath,
		"projectID":           c.GoogleProjectID,
		"requestSubscription": c.Subscription,
		"resultTopic":         c.ResultTopic,
		"teamSize":            c.TeamSize,
		"reservedCustomSlots": c.ReservedCustomSlots,
		"duplicateSubTypes":   c.DuplicateSubTypes,
		"rankedSubTypes":      c.RankedSubTypes,
		"customGameTypes":     c.CustomGameTypes,
		"logLevel":            c.LogLevel,
		"credentialsProvided": c.CredentialsFile != "",
	}
}

func projectIDFromCredentials(path string) (string, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}
	var x struct {
		ProjectID string `json:"project_id"`
	}
	if err := json.Unmarshal(b, &x); err != nil {
		return "", err
	}
	return strings.TrimSpace(x.ProjectID), nil
}

func resolveGoogleProjectID(credsFile string) string {
	if p := strings.TrimSpace(credsFile); p != "" {
		if pid, err := projectIDFromCredentials(p); err == nil && pid != "" {
			log.Info().Str("credsFile", p).Msg("using project_id from credentials file")
			return pid
		}
		log.Warn().Str("credsFile", p).Msg("project_id not found in credentials file or unreadable")
	}
	if v := strings.TrimSpace(os.Getenv("GOOGLE_PROJECT_ID")); v != "" {
		log.Info().Str("projectID", v).Msg("using GOOGLE_PROJECT_ID from environment")
		return v
	}
	if v := firstNonEmpty(os.Getenv("GOOGLE_CLOUD_PROJECT"), os.Getenv("GCLOUD_PROJECT"), os.Getenv("GCP_PROJECT")); v != "" {
		log.Info().Str("projectID", v).Msg("using Google project from common environment variables")
		return v
	}
	return ""
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if s := strings.TrimSpace(v); s != "" {
			return s
		}
	}
	return ""
}
