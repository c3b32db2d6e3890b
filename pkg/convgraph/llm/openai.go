package llm

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"github.com/openai/openai-go/shared"
	"golang.org/x/time/rate"

	cgerrors "github.com/vintoniuk/anadeabot/pkg/convgraph/errors"
)

// Default models used when none is configured.
const (
	DefaultModel          = "gpt-3.5-turbo"
	DefaultEmbeddingModel = "text-embedding-3-large"
	DefaultDimensions     = 256
)

// OpenAI implements Client and Embedder on top of the OpenAI API.
type OpenAI struct {
	client         openai.Client
	model          string
	embeddingModel string
	dimensions     int
	temperature    *float64
	limiter        *rate.Limiter

	apiKey     string
	baseURL    string
	httpClient *http.Client
}

// OpenAIOption configures OpenAI.
type OpenAIOption func(*OpenAI)

// WithAPIKey sets the API key.
func WithAPIKey(key string) OpenAIOption {
	return func(c *OpenAI) { c.apiKey = key }
}

// WithBaseURL points the client at a compatible endpoint.
func WithBaseURL(url string) OpenAIOption {
	return func(c *OpenAI) { c.baseURL = url }
}

// WithHTTPClient overrides the HTTP client.
func WithHTTPClient(hc *http.Client) OpenAIOption {
	return func(c *OpenAI) { c.httpClient = hc }
}

// WithModel sets the default chat model.
func WithModel(model string) OpenAIOption {
	return func(c *OpenAI) { c.model = model }
}

// WithEmbeddingModel sets the embedding model.
func WithEmbeddingModel(model string) OpenAIOption {
	return func(c *OpenAI) { c.embeddingModel = model }
}

// WithDimensions sets the embedding dimensionality.
func WithDimensions(n int) OpenAIOption {
	return func(c *OpenAI) {
		if n > 0 {
			c.dimensions = n
		}
	}
}

// WithTemperature sets the default sampling temperature.
func WithTemperature(t float64) OpenAIOption {
	return func(c *OpenAI) { c.temperature = &t }
}

// WithRateLimit caps outgoing requests per second. Zero disables the limit.
func WithRateLimit(perSecond float64, burst int) OpenAIOption {
	return func(c *OpenAI) {
		if perSecond <= 0 {
			c.limiter = nil
			return
		}
		if burst < 1 {
			burst = 1
		}
		c.limiter = rate.NewLimiter(rate.Limit(perSecond), burst)
	}
}

// NewOpenAI creates an OpenAI client.
func NewOpenAI(opts ...OpenAIOption) *OpenAI {
	c := &OpenAI{
		model:          DefaultModel,
		embeddingModel: DefaultEmbeddingModel,
		dimensions:     DefaultDimensions,
	}
	for _, opt := range opts {
		opt(c)
	}

	var reqOpts []option.RequestOption
	if c.apiKey != "" {
		reqOpts = append(reqOpts, option.WithAPIKey(c.apiKey))
	}
	if c.baseURL != "" {
		reqOpts = append(reqOpts, option.WithBaseURL(c.baseURL))
	}
	if c.httpClient != nil {
		reqOpts = append(reqOpts, option.WithHTTPClient(c.httpClient))
	}
	// Retries are owned by the capability layer.
	reqOpts = append(reqOpts, option.WithMaxRetries(0))

	c.client = openai.NewClient(reqOpts...)
	return c
}

// Model returns the default chat model.
func (c *OpenAI) Model() string {
	return c.model
}

// Complete implements Client.
func (c *OpenAI) Complete(ctx context.Context, req CompletionRequest) (*CompletionResponse, error) {
	if err := c.wait(ctx); err != nil {
		return nil, err
	}

	model := req.Model
	if model == "" {
		model = c.model
	}

	params := openai.ChatCompletionNewParams{
		Model:    shared.ChatModel(model),
		Messages: convertMessages(req.SystemPrompt, req.Messages),
	}
	if len(req.Tools) > 0 {
		tools, err := convertTools(req.Tools)
		if err != nil {
			return nil, err
		}
		params.Tools = tools
	}
	if req.ResponseSchema != nil {
		params.ResponseFormat = openai.ChatCompletionNewParamsResponseFormatUnion{
			OfJSONSchema: &shared.ResponseFormatJSONSchemaParam{
				JSONSchema: shared.ResponseFormatJSONSchemaJSONSchemaParam{
					Name:        req.ResponseSchema.Name,
					Schema:      req.ResponseSchema.Schema,
					Strict:      openai.Bool(req.ResponseSchema.Strict),
					Description: openai.String(req.ResponseSchema.Description),
				},
			},
		}
	}
	if req.MaxTokens > 0 {
		params.MaxCompletionTokens = openai.Int(int64(req.MaxTokens))
	}
	if t := req.Temperature; t != nil {
		params.Temperature = openai.Float(*t)
	} else if c.temperature != nil {
		params.Temperature = openai.Float(*c.temperature)
	}

	start := time.Now()
	completion, err := c.client.Chat.Completions.New(ctx, params)
	if err != nil {
		return nil, classifyError(err, "chat completion")
	}
	if len(completion.Choices) == 0 {
		return nil, cgerrors.Transient(errors.New("no choices in completion"), "chat completion")
	}

	choice := completion.Choices[0]
	resp := &CompletionResponse{
		Content:      choice.Message.Content,
		Model:        completion.Model,
		FinishReason: choice.FinishReason,
		Duration:     time.Since(start),
		Usage: TokenUsage{
			InputTokens:  int(completion.Usage.PromptTokens),
			OutputTokens: int(completion.Usage.CompletionTokens),
			TotalTokens:  int(completion.Usage.TotalTokens),
		},
	}
	for i, tc := range choice.Message.ToolCalls {
		id := tc.ID
		if id == "" {
			id = fmt.Sprintf("call_%d", i)
		}
		resp.ToolCalls = append(resp.ToolCalls, ToolCall{
			ID:        id,
			Name:      tc.Function.Name,
			Arguments: json.RawMessage(tc.Function.Arguments),
		})
	}
	return resp, nil
}

// Embed implements Embedder.
func (c *OpenAI) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}
	if err := c.wait(ctx); err != nil {
		return nil, err
	}

	resp, err := c.client.Embeddings.New(ctx, openai.EmbeddingNewParams{
		Input:      openai.EmbeddingNewParamsInputUnion{OfArrayOfStrings: texts},
		Model:      openai.EmbeddingModel(c.embeddingModel),
		Dimensions: openai.Int(int64(c.dimensions)),
	})
	if err != nil {
		return nil, classifyError(err, "embedding")
	}
	if len(resp.Data) != len(texts) {
		return nil, fmt.Errorf("embedding: got %d vectors for %d inputs", len(resp.Data), len(texts))
	}

	out := make([][]float32, len(texts))
	for _, d := range resp.Data {
		idx := int(d.Index)
		if idx < 0 || idx >= len(out) {
			return nil, fmt.Errorf("embedding: index %d out of range", idx)
		}
		vec := make([]float32, len(d.Embedding))
		for i, v := range d.Embedding {
			vec[i] = float32(v)
		}
		out[idx] = vec
	}
	return out, nil
}

func (c *OpenAI) wait(ctx context.Context) error {
	if c.limiter == nil {
		return nil
	}
	if err := c.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("rate limit wait: %w", err)
	}
	return nil
}

// classifyError maps API failures onto categorised errors so retry policies
// can tell transient failures from permanent ones.
func classifyError(err error, op string) error {
	var apiErr *openai.Error
	if errors.As(err, &apiErr) {
		return &cgerrors.CategorizedError{
			Err: &cgerrors.HTTPError{
				StatusCode: apiErr.StatusCode,
				Message:    apiErr.Message,
				Endpoint:   op,
			},
			Category: cgerrors.Categorize(&cgerrors.HTTPError{StatusCode: apiErr.StatusCode}),
			Context:  op,
		}
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return cgerrors.Transient(&cgerrors.TimeoutError{Operation: op}, op)
	}
	return fmt.Errorf("%s: %w", op, err)
}

func convertMessages(systemPrompt string, msgs []Message) []openai.ChatCompletionMessageParamUnion {
	out := make([]openai.ChatCompletionMessageParamUnion, 0, len(msgs)+1)
	if systemPrompt != "" {
		out = append(out, systemParam(systemPrompt))
	}
	for _, m := range msgs {
		switch m.Role {
		case RoleSystem:
			out = append(out, systemParam(m.Content))
		case RoleAssistant:
			assistant := &openai.ChatCompletionAssistantMessageParam{
				ToolCalls: convertToolCalls(m.ToolCalls),
			}
			if m.Content != "" {
				assistant.Content = openai.ChatCompletionAssistantMessageParamContentUnion{
					OfString: openai.String(m.Content),
				}
			}
			out = append(out, openai.ChatCompletionMessageParamUnion{OfAssistant: assistant})
		case RoleTool:
			out = append(out, openai.ChatCompletionMessageParamUnion{
				OfTool: &openai.ChatCompletionToolMessageParam{
					Content: openai.ChatCompletionToolMessageParamContentUnion{
						OfString: openai.String(m.Content),
					},
					ToolCallID: m.ToolCallID,
				},
			})
		default:
			out = append(out, openai.ChatCompletionMessageParamUnion{
				OfUser: &openai.ChatCompletionUserMessageParam{
					Content: openai.ChatCompletionUserMessageParamContentUnion{
						OfString: openai.String(m.Content),
					},
				},
			})
		}
	}
	return out
}

func systemParam(content string) openai.ChatCompletionMessageParamUnion {
	return openai.ChatCompletionMessageParamUnion{
		OfSystem: &openai.ChatCompletionSystemMessageParam{
			Content: openai.ChatCompletionSystemMessageParamContentUnion{
				OfString: openai.String(content),
			},
		},
	}
}

func convertToolCalls(calls []ToolCall) []openai.ChatCompletionMessageToolCallParam {
	if len(calls) == 0 {
		return nil
	}
	out := make([]openai.ChatCompletionMessageToolCallParam, 0, len(calls))
	for _, tc := range calls {
		args := string(tc.Arguments)
		if args == "" {
			args = "{}"
		}
		out = append(out, openai.ChatCompletionMessageToolCallParam{
			ID: tc.ID,
			Function: openai.ChatCompletionMessageToolCallFunctionParam{
				Name:      tc.Name,
				Arguments: args,
			},
		})
	}
	return out
}

func convertTools(tools []Tool) ([]openai.ChatCompletionToolParam, error) {
	out := make([]openai.ChatCompletionToolParam, 0, len(tools))
	for _, t := range tools {
		var params shared.FunctionParameters
		if len(t.Parameters) > 0 {
			if err := json.Unmarshal(t.Parameters, &params); err != nil {
				return nil, fmt.Errorf("tool %s parameters: %w", t.Name, err)
			}
		}
		out = append(out, openai.ChatCompletionToolParam{
			Function: openai.FunctionDefinitionParam{
				Name:        t.Name,
				Description: openai.String(t.Description),
				Parameters:  params,
			},
		})
	}
	return out, nil
}
