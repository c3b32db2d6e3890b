package llm

import (
	"context"
	"hash/fnv"
	"math"
	"strings"
	"sync"
)

// MockClient is a scripted Client for tests.
//
// Responses are returned in order and cycle once exhausted. Scripted
// responses (WithScript) take precedence over plain text responses.
type MockClient struct {
	mu        sync.Mutex
	responses []string
	script    []CompletionResponse
	idx       int
	err       error
	fn        func(context.Context, CompletionRequest) (*CompletionResponse, error)

	// Calls records every request in arrival order.
	Calls []CompletionRequest
}

// NewMockClient creates a mock that always answers with content.
func NewMockClient(content string) *MockClient {
	return &MockClient{responses: []string{content}}
}

// WithResponses replaces the text responses.
func (m *MockClient) WithResponses(responses ...string) *MockClient {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.responses = responses
	return m
}

// WithScript queues full responses, including tool calls.
func (m *MockClient) WithScript(responses ...CompletionResponse) *MockClient {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.script = responses
	return m
}

// WithError makes every call fail with err.
func (m *MockClient) WithError(err error) *MockClient {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.err = err
	return m
}

// WithCompleteFunc delegates every call to fn.
func (m *MockClient) WithCompleteFunc(fn func(context.Context, CompletionRequest) (*CompletionResponse, error)) *MockClient {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.fn = fn
	return m
}

// Complete implements Client.
func (m *MockClient) Complete(ctx context.Context, req CompletionRequest) (*CompletionResponse, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	m.mu.Lock()
	m.Calls = append(m.Calls, req)
	fn := m.fn
	if m.err != nil {
		err := m.err
		m.mu.Unlock()
		return nil, err
	}
	if fn != nil {
		m.mu.Unlock()
		return fn(ctx, req)
	}

	var resp CompletionResponse
	switch {
	case len(m.script) > 0:
		resp = m.script[m.idx%len(m.script)]
	case len(m.responses) > 0:
		resp = CompletionResponse{Content: m.responses[m.idx%len(m.responses)]}
	}
	m.idx++
	m.mu.Unlock()

	if resp.FinishReason == "" {
		resp.FinishReason = "stop"
		if len(resp.ToolCalls) > 0 {
			resp.FinishReason = "tool_calls"
		}
	}
	if resp.Model == "" {
		resp.Model = "mock"
	}
	in, out := estimateTokens(req), countTokens(resp.Content)
	resp.Usage = TokenUsage{InputTokens: in, OutputTokens: out, TotalTokens: in + out}
	return &resp, nil
}

// CallCount returns the number of calls made.
func (m *MockClient) CallCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.Calls)
}

// LastCall returns the most recent request, or nil.
func (m *MockClient) LastCall() *CompletionRequest {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.Calls) == 0 {
		return nil
	}
	last := m.Calls[len(m.Calls)-1]
	return &last
}

// Reset clears recorded calls and rewinds the responses.
func (m *MockClient) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Calls = nil
	m.idx = 0
}

func estimateTokens(req CompletionRequest) int {
	n := countTokens(req.SystemPrompt)
	for _, msg := range req.Messages {
		n += countTokens(msg.Content)
	}
	return n
}

// countTokens approximates a tokenizer with one token per word plus one
// for the message framing.
func countTokens(s string) int {
	return len(strings.Fields(s)) + 1
}

// HashEmbedder is a deterministic Embedder for tests. Each word is hashed
// into one of Dimensions buckets and the result is L2 normalised, so texts
// sharing words have a high cosine similarity.
type HashEmbedder struct {
	Dimensions int
}

// Embed implements Embedder.
func (h HashEmbedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	dims := h.Dimensions
	if dims <= 0 {
		dims = 64
	}
	out := make([][]float32, len(texts))
	for i, text := range texts {
		vec := make([]float32, dims)
		for _, word := range strings.Fields(strings.ToLower(text)) {
			word = strings.Trim(word, ".,!?;:\"'()")
			if word == "" {
				continue
			}
			f := fnv.New32a()
			_, _ = f.Write([]byte(word))
			vec[f.Sum32()%uint32(dims)]++
		}
		var norm float64
		for _, v := range vec {
			norm += float64(v * v)
		}
		if norm > 0 {
			scale := float32(1 / math.Sqrt(norm))
			for j := range vec {
				vec[j] *= scale
			}
		}
		out[i] = vec
	}
	return out, nil
}
