// Package settings holds the application configuration.
package settings

import (
	"errors"
	"fmt"
	"os"
	"slices"
	"time"

	"github.com/vintoniuk/anadeabot/pkg/convgraph/config"
	"github.com/vintoniuk/anadeabot/pkg/convgraph/llm"
)

// Checkpoint backends.
const (
	BackendMemory   = "memory"
	BackendSQLite   = "sqlite"
	BackendPostgres = "postgres"
	BackendRedis    = "redis"
)

var backends = []string{BackendMemory, BackendSQLite, BackendPostgres, BackendRedis}

// Settings is the typed application configuration.
type Settings struct {
	OpenAI     OpenAI            `mapstructure:"openai"`
	Postgres   Postgres          `mapstructure:"postgres"`
	Redis      Redis             `mapstructure:"redis"`
	Checkpoint Checkpoint        `mapstructure:"checkpoint"`
	Agent      Agent             `mapstructure:"agent"`
	HTTP       HTTP              `mapstructure:"http"`
	Telemetry  Telemetry         `mapstructure:"telemetry"`
	Log        Log               `mapstructure:"log"`
	Prompts    map[string]string `mapstructure:"prompts"`
}

// OpenAI configures the model provider.
type OpenAI struct {
	APIKey         string  `mapstructure:"api_key"`
	BaseURL        string  `mapstructure:"base_url"`
	Model          string  `mapstructure:"model"`
	EmbeddingModel string  `mapstructure:"embedding_model"`
	Dimensions     int     `mapstructure:"dimensions"`
	Temperature    float64 `mapstructure:"temperature"`
	// RateLimit is requests per second; zero disables limiting.
	RateLimit float64       `mapstructure:"rate_limit"`
	Burst     int           `mapstructure:"burst"`
	Timeout   time.Duration `mapstructure:"timeout"`
}

// Postgres configures the business database and the FAQ index.
type Postgres struct {
	DSN string `mapstructure:"dsn"`
}

// Redis configures the Redis client used for checkpoints and locks.
type Redis struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

// Checkpoint selects where conversation state lives.
type Checkpoint struct {
	Backend string `mapstructure:"backend"`
	// Path is the database file for the sqlite backend.
	Path string        `mapstructure:"path"`
	TTL  time.Duration `mapstructure:"ttl"`
	// LockTTL bounds how long a Redis turn lock is held.
	LockTTL time.Duration `mapstructure:"lock_ttl"`
}

// Agent tunes the conversation graph.
type Agent struct {
	StepBudget    int  `mapstructure:"step_budget"`
	FAQLimit      int  `mapstructure:"faq_limit"`
	DedupMessages bool `mapstructure:"dedup_messages"`
}

// HTTP configures the transport.
type HTTP struct {
	Addr            string        `mapstructure:"addr"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
	TurnTimeout     time.Duration `mapstructure:"turn_timeout"`
}

// Telemetry configures the OTLP exporters.
type Telemetry struct {
	Enabled     bool          `mapstructure:"enabled"`
	Endpoint    string        `mapstructure:"endpoint"`
	Insecure    bool          `mapstructure:"insecure"`
	ServiceName string        `mapstructure:"service_name"`
	Interval    time.Duration `mapstructure:"interval"`
}

// Log configures the slog handler.
type Log struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// Default returns the settings used when nothing is configured.
func Default() Settings {
	return Settings{
		OpenAI: OpenAI{
			Model:          llm.DefaultModel,
			EmbeddingModel: llm.DefaultEmbeddingModel,
			Dimensions:     llm.DefaultDimensions,
			Burst:          1,
			Timeout:        60 * time.Second,
		},
		Redis: Redis{Addr: "localhost:6379"},
		Checkpoint: Checkpoint{
			Backend: BackendMemory,
			Path:    "anadeabot.db",
			LockTTL: 2 * time.Minute,
		},
		Agent: Agent{
			StepBudget: 25,
			FAQLimit:   3,
		},
		HTTP: HTTP{
			Addr:            ":8080",
			ShutdownTimeout: 10 * time.Second,
			TurnTimeout:     90 * time.Second,
		},
		Telemetry: Telemetry{
			Endpoint:    "localhost:4317",
			Insecure:    true,
			ServiceName: "anadeabot",
			Interval:    15 * time.Second,
		},
		Log: Log{Level: "info", Format: "text"},
	}
}

// Load reads settings from path over the defaults. An empty path yields
// the defaults. OPENAI_API_KEY fills an unset API key.
func Load(path string) (Settings, error) {
	s := Default()
	if path != "" {
		cfg, err := config.FromFile(path)
		if err != nil {
			return Settings{}, err
		}
		if err := FromConfig(cfg, &s); err != nil {
			return Settings{}, err
		}
	}
	if s.OpenAI.APIKey == "" {
		s.OpenAI.APIKey = os.Getenv("OPENAI_API_KEY")
	}
	if err := s.Validate(); err != nil {
		return Settings{}, err
	}
	return s, nil
}

// FromConfig decodes cfg over s.
func FromConfig(cfg config.Config, s *Settings) error {
	if err := cfg.Decode(s); err != nil {
		return fmt.Errorf("settings: %w", err)
	}
	return nil
}

// Validate checks cross-field constraints.
func (s Settings) Validate() error {
	var errs []error
	if !slices.Contains(backends, s.Checkpoint.Backend) {
		errs = append(errs, fmt.Errorf("checkpoint.backend: unknown backend %q", s.Checkpoint.Backend))
	}
	if s.Checkpoint.Backend == BackendPostgres && s.Postgres.DSN == "" {
		errs = append(errs, errors.New("postgres.dsn: required by the postgres checkpoint backend"))
	}
	if s.Agent.StepBudget < 1 {
		errs = append(errs, fmt.Errorf("agent.step_budget: must be positive, got %d", s.Agent.StepBudget))
	}
	if s.Agent.FAQLimit < 0 {
		errs = append(errs, fmt.Errorf("agent.faq_limit: must not be negative, got %d", s.Agent.FAQLimit))
	}
	if s.Log.Format != "text" && s.Log.Format != "json" {
		errs = append(errs, fmt.Errorf("log.format: want text or json, got %q", s.Log.Format))
	}
	if err := errors.Join(errs...); err != nil {
		return fmt.Errorf("invalid settings: %w", err)
	}
	return nil
}
