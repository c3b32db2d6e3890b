package capability

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"strings"

	cgerrors "github.com/vintoniuk/anadeabot/pkg/convgraph/errors"
	"github.com/vintoniuk/anadeabot/pkg/convgraph/llm"
)

// LLMOption configures the LLM-backed capabilities.
type LLMOption func(*llmConfig)

type llmConfig struct {
	model       string
	temperature *float64
	maxTokens   int
	retry       cgerrors.RetryConfig
	logger      *slog.Logger
}

func newLLMConfig(opts []LLMOption) llmConfig {
	cfg := llmConfig{
		retry:  cgerrors.NewRetryConfig(cgerrors.WithRetryableFunc(cgerrors.RetryMalformed)),
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(&cfg)
	}
	return cfg
}

// WithLLMModel overrides the client's default model.
func WithLLMModel(model string) LLMOption {
	return func(c *llmConfig) { c.model = model }
}

// WithLLMTemperature sets the sampling temperature.
func WithLLMTemperature(t float64) LLMOption {
	return func(c *llmConfig) { c.temperature = &t }
}

// WithLLMMaxTokens caps the completion length.
func WithLLMMaxTokens(n int) LLMOption {
	return func(c *llmConfig) { c.maxTokens = n }
}

// WithLLMRetry sets the retry policy. Malformed answers are retried
// unless cfg.RetryableFunc says otherwise.
func WithLLMRetry(cfg cgerrors.RetryConfig) LLMOption {
	return func(c *llmConfig) {
		if cfg.RetryableFunc == nil {
			cfg.RetryableFunc = cgerrors.RetryMalformed
		}
		c.retry = cfg
	}
}

// WithLLMLogger sets the logger used for retry diagnostics.
func WithLLMLogger(logger *slog.Logger) LLMOption {
	return func(c *llmConfig) {
		if logger != nil {
			c.logger = logger
		}
	}
}

func (c llmConfig) request(history []llm.Message) llm.CompletionRequest {
	return llm.CompletionRequest{
		Messages:    history,
		Model:       c.model,
		MaxTokens:   c.maxTokens,
		Temperature: c.temperature,
	}
}

func (c llmConfig) retryConfig(op string) cgerrors.RetryConfig {
	cfg := c.retry
	logger := c.logger
	cfg.OnRetry = func(attempt int, err error) {
		logger.Warn("retrying capability call",
			slog.String("capability", op),
			slog.Int("attempt", attempt),
			slog.String("error", err.Error()),
		)
	}
	return cfg
}

// LLMClassifier implements Classifier with structured chat completions.
type LLMClassifier struct {
	client llm.Client
	cfg    llmConfig
}

// NewLLMClassifier creates a classifier backed by client.
func NewLLMClassifier(client llm.Client, opts ...LLMOption) *LLMClassifier {
	return &LLMClassifier{client: client, cfg: newLLMConfig(opts)}
}

// Classify implements Classifier.
func (c *LLMClassifier) Classify(ctx context.Context, history []llm.Message, schema Schema) (Record, error) {
	req := c.cfg.request(history)
	req.ResponseSchema = &llm.ResponseSchema{
		Name:        schema.Name,
		Description: schema.Description,
		Schema:      schema.JSONSchema(),
		Strict:      true,
	}

	result := cgerrors.WithRetryContext(ctx, c.cfg.retryConfig(NameClassifier), func(ctx context.Context) (Record, error) {
		resp, err := c.client.Complete(ctx, req)
		if err != nil {
			return nil, err
		}
		return parseRecord(resp.Content, schema)
	})
	if result.Err != nil {
		return nil, result.Err
	}
	return result.Value, nil
}

func parseRecord(content string, schema Schema) (Record, error) {
	content = strings.TrimSpace(content)
	// Some models wrap JSON in a fenced block even in JSON mode.
	content = strings.TrimPrefix(content, "```json")
	content = strings.TrimPrefix(content, "```")
	content = strings.TrimSuffix(content, "```")

	var rec Record
	if err := json.Unmarshal([]byte(content), &rec); err != nil {
		return nil, &cgerrors.JSONParseError{Input: content, Message: err.Error()}
	}
	return schema.Validate(rec)
}

// LLMGenerator implements Generator with chat completions.
type LLMGenerator struct {
	client llm.Client
	cfg    llmConfig
}

// NewLLMGenerator creates a generator backed by client.
func NewLLMGenerator(client llm.Client, opts ...LLMOption) *LLMGenerator {
	return &LLMGenerator{client: client, cfg: newLLMConfig(opts)}
}

var errEmptyAnswer = errors.New("empty answer")

// Generate implements Generator.
func (g *LLMGenerator) Generate(ctx context.Context, history []llm.Message, tools []llm.Tool) (llm.Message, error) {
	req := g.cfg.request(history)
	req.Tools = tools

	result := cgerrors.WithRetryContext(ctx, g.cfg.retryConfig(NameGenerator), func(ctx context.Context) (llm.Message, error) {
		resp, err := g.client.Complete(ctx, req)
		if err != nil {
			return llm.Message{}, err
		}
		msg := resp.Message()
		if strings.TrimSpace(msg.Content) == "" && !msg.HasToolCalls() {
			return llm.Message{}, cgerrors.Malformed(errEmptyAnswer, NameGenerator)
		}
		return msg, nil
	})
	if result.Err != nil {
		return llm.Message{}, result.Err
	}
	return result.Value, nil
}
