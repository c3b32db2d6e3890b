package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/redis/go-redis/v9"
	_ "modernc.org/sqlite" // registers checkpoint.SQLiteDriver

	"github.com/vintoniuk/anadeabot/internal/agent"
	"github.com/vintoniuk/anadeabot/internal/bot"
	"github.com/vintoniuk/anadeabot/internal/faq"
	"github.com/vintoniuk/anadeabot/internal/server"
	"github.com/vintoniuk/anadeabot/internal/settings"
	"github.com/vintoniuk/anadeabot/internal/store"
	"github.com/vintoniuk/anadeabot/pkg/convgraph"
	"github.com/vintoniuk/anadeabot/pkg/convgraph/capability"
	"github.com/vintoniuk/anadeabot/pkg/convgraph/checkpoint"
	"github.com/vintoniuk/anadeabot/pkg/convgraph/llm"
)

// app holds the wired dependencies of a running bot.
type app struct {
	settings    settings.Settings
	logger      *slog.Logger
	prompts     agent.Prompts
	openai      *llm.OpenAI
	checkpoints checkpoint.Store
	locker      checkpoint.Locker
	redis       *redis.Client
	repo        *store.Repository
	faq         *faq.Store
	graph       *agent.Graph
	bot         *bot.Bot
	checks      map[string]server.Check
	closers     []func() error
}

// newApp connects every backend the settings name. observe enables OTel
// metrics and spans on each turn.
func newApp(ctx context.Context, s settings.Settings, logger *slog.Logger, observe bool) (_ *app, err error) {
	a := &app{settings: s, logger: logger, checks: make(map[string]server.Check)}
	defer func() {
		if err != nil {
			_ = a.Close()
		}
	}()

	if a.prompts, err = agent.DefaultPrompts().Override(s.Prompts); err != nil {
		return nil, err
	}
	a.openai = newOpenAI(s.OpenAI)

	if err := a.openCheckpoints(ctx); err != nil {
		return nil, err
	}
	if s.Postgres.DSN != "" {
		if err := a.openPostgres(ctx); err != nil {
			return nil, err
		}
	} else {
		logger.Warn("postgres.dsn not set: users, orders and the FAQ are disabled")
	}

	caps := a.capabilities()
	graphOpts := []agent.Option{
		agent.WithPrompts(a.prompts),
		agent.WithFAQLimit(s.Agent.FAQLimit),
		agent.WithDedupMessages(s.Agent.DedupMessages),
		agent.WithCapabilities(caps),
		agent.WithLogger(logger),
	}
	if a.repo != nil {
		graphOpts = append(graphOpts, agent.WithEntities(a.repo))
	}
	if a.graph, err = agent.New(a.checkpoints, graphOpts...); err != nil {
		return nil, err
	}

	botOpts := []bot.Option{
		bot.WithLocker(a.locker),
		bot.WithPrompts(a.prompts),
		bot.WithLogger(logger),
		bot.WithRunOptions(
			convgraph.WithStepBudget(s.Agent.StepBudget),
			convgraph.WithLogger(logger),
			convgraph.WithMetrics(observe),
			convgraph.WithTracing(observe),
		),
	}
	if a.repo != nil {
		botOpts = append(botOpts, bot.WithUsers(a.repo))
	}
	a.bot = bot.New(a.graph, botOpts...)
	return a, nil
}

func newOpenAI(cfg settings.OpenAI) *llm.OpenAI {
	opts := []llm.OpenAIOption{
		llm.WithAPIKey(cfg.APIKey),
		llm.WithModel(cfg.Model),
		llm.WithEmbeddingModel(cfg.EmbeddingModel),
		llm.WithDimensions(cfg.Dimensions),
		llm.WithTemperature(cfg.Temperature),
		llm.WithRateLimit(cfg.RateLimit, cfg.Burst),
		llm.WithHTTPClient(&http.Client{Timeout: cfg.Timeout}),
	}
	if cfg.BaseURL != "" {
		opts = append(opts, llm.WithBaseURL(cfg.BaseURL))
	}
	return llm.NewOpenAI(opts...)
}

// capabilities builds the model-backed capability set.
func (a *app) capabilities() capability.Set {
	llmOpts := []capability.LLMOption{
		capability.WithLLMModel(a.settings.OpenAI.Model),
		capability.WithLLMTemperature(a.settings.OpenAI.Temperature),
		capability.WithLLMLogger(a.logger),
	}
	caps := capability.Set{
		Classifier: capability.NewLLMClassifier(a.openai, llmOpts...),
		Generator:  capability.NewLLMGenerator(a.openai, llmOpts...),
	}
	if a.faq != nil {
		caps.Retriever = a.faq
	}
	return caps
}

func (a *app) openCheckpoints(ctx context.Context) error {
	s := a.settings
	a.locker = checkpoint.NewLocalLocker()

	switch s.Checkpoint.Backend {
	case settings.BackendMemory:
		a.checkpoints = checkpoint.NewMemoryStore()
	case settings.BackendSQLite:
		st, err := checkpoint.NewSQLiteStore(s.Checkpoint.Path)
		if err != nil {
			return err
		}
		a.checkpoints = st
	case settings.BackendPostgres:
		st, err := checkpoint.OpenPostgres(ctx, s.Postgres.DSN)
		if err != nil {
			return err
		}
		a.checkpoints = st
	case settings.BackendRedis:
		client := redis.NewClient(&redis.Options{
			Addr:     s.Redis.Addr,
			Password: s.Redis.Password,
			DB:       s.Redis.DB,
		})
		if err := client.Ping(ctx).Err(); err != nil {
			client.Close()
			return fmt.Errorf("connect redis: %w", err)
		}
		a.redis = client
		a.checkpoints = checkpoint.NewRedisStore(client, checkpoint.WithRedisTTL(s.Checkpoint.TTL))
		a.locker = checkpoint.NewRedisLocker(client, s.Checkpoint.LockTTL)
		a.checks["redis"] = func(ctx context.Context) error { return client.Ping(ctx).Err() }
		a.closers = append(a.closers, client.Close)
	default:
		return fmt.Errorf("unknown checkpoint backend %q", s.Checkpoint.Backend)
	}
	a.closers = append(a.closers, a.checkpoints.Close)
	a.logger.Info("checkpoint store ready", "backend", s.Checkpoint.Backend)
	return nil
}

func (a *app) openPostgres(ctx context.Context) error {
	db, err := store.OpenPostgres(a.settings.Postgres.DSN)
	if err != nil {
		return err
	}
	sqlDB, err := db.DB()
	if err != nil {
		return fmt.Errorf("database handle: %w", err)
	}
	a.closers = append(a.closers, sqlDB.Close)
	a.checks["postgres"] = sqlDB.PingContext

	a.repo = store.NewRepository(db,
		store.WithCheckpoints(a.checkpoints),
		store.WithLogger(a.logger),
	)

	a.faq, err = faq.Open(ctx, a.settings.Postgres.DSN, a.openai,
		faq.WithDimensions(a.settings.OpenAI.Dimensions))
	if err != nil {
		return err
	}
	a.closers = append(a.closers, a.faq.Close)
	return nil
}

// Close releases connections in reverse order of opening.
func (a *app) Close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		errs = append(errs, a.closers[i]())
	}
	a.closers = nil
	return errors.Join(errs...)
}
