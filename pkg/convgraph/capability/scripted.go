package capability

import (
	"context"
	"errors"
	"sort"
	"strings"
	"sync"

	"github.com/vintoniuk/anadeabot/pkg/convgraph/llm"
)

// ErrScriptExhausted is returned by scripted capabilities with no answers left.
var ErrScriptExhausted = errors.New("script exhausted")

// ScriptedClassifier answers from per-schema queues. An empty queue yields
// an empty record, which every schema with only optional fields accepts.
type ScriptedClassifier struct {
	mu     sync.Mutex
	queues map[string][]Record
	errs   map[string]error

	// Calls records the schema names in call order.
	Calls []string
}

// NewScriptedClassifier creates an empty scripted classifier.
func NewScriptedClassifier() *ScriptedClassifier {
	return &ScriptedClassifier{
		queues: make(map[string][]Record),
		errs:   make(map[string]error),
	}
}

// Push queues answers for the named schema.
func (s *ScriptedClassifier) Push(schema string, records ...Record) *ScriptedClassifier {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.queues[schema] = append(s.queues[schema], records...)
	return s
}

// Fail makes the next call for schema return err.
func (s *ScriptedClassifier) Fail(schema string, err error) *ScriptedClassifier {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.errs[schema] = err
	return s
}

// Classify implements Classifier.
func (s *ScriptedClassifier) Classify(ctx context.Context, _ []llm.Message, schema Schema) (Record, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Calls = append(s.Calls, schema.Name)

	if err, ok := s.errs[schema.Name]; ok {
		delete(s.errs, schema.Name)
		return nil, err
	}
	q := s.queues[schema.Name]
	if len(q) == 0 {
		return Record{}, nil
	}
	s.queues[schema.Name] = q[1:]
	return q[0], nil
}

// ScriptedGenerator answers with queued messages in order.
type ScriptedGenerator struct {
	mu      sync.Mutex
	answers []llm.Message
	err     error

	// Histories records the history length seen by each call.
	Histories []int
	// Tools records how many tools were offered on each call.
	Tools []int
}

// NewScriptedGenerator queues the given answers.
func NewScriptedGenerator(answers ...llm.Message) *ScriptedGenerator {
	return &ScriptedGenerator{answers: answers}
}

// Say queues plain assistant replies.
func (g *ScriptedGenerator) Say(texts ...string) *ScriptedGenerator {
	g.mu.Lock()
	defer g.mu.Unlock()
	for _, t := range texts {
		g.answers = append(g.answers, llm.Assistant(t))
	}
	return g
}

// Call queues a reply requesting the named tools.
func (g *ScriptedGenerator) Call(calls ...llm.ToolCall) *ScriptedGenerator {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.answers = append(g.answers, llm.Message{Role: llm.RoleAssistant, ToolCalls: calls})
	return g
}

// Fail makes the next call return err.
func (g *ScriptedGenerator) Fail(err error) *ScriptedGenerator {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.err = err
	return g
}

// Remaining reports how many answers are still queued.
func (g *ScriptedGenerator) Remaining() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.answers)
}

// Generate implements Generator.
func (g *ScriptedGenerator) Generate(ctx context.Context, history []llm.Message, tools []llm.Tool) (llm.Message, error) {
	if err := ctx.Err(); err != nil {
		return llm.Message{}, err
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	g.Histories = append(g.Histories, len(history))
	g.Tools = append(g.Tools, len(tools))

	if g.err != nil {
		err := g.err
		g.err = nil
		return llm.Message{}, err
	}
	if len(g.answers) == 0 {
		return llm.Message{}, ErrScriptExhausted
	}
	msg := g.answers[0]
	g.answers = g.answers[1:]
	return msg, nil
}

// StaticRetriever ranks a fixed document set by word overlap with the query.
type StaticRetriever struct {
	Docs []Document
}

// Retrieve implements Retriever.
func (r StaticRetriever) Retrieve(ctx context.Context, query string, k int) ([]Document, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	words := strings.Fields(strings.ToLower(query))
	scored := make([]Document, 0, len(r.Docs))
	for _, d := range r.Docs {
		content := strings.ToLower(d.Content)
		hits := 0
		for _, w := range words {
			if strings.Contains(content, w) {
				hits++
			}
		}
		if hits == 0 {
			continue
		}
		d.Score = float64(hits) / float64(len(words))
		scored = append(scored, d)
	}
	sort.SliceStable(scored, func(i, j int) bool { return scored[i].Score > scored[j].Score })
	if k > 0 && len(scored) > k {
		scored = scored[:k]
	}
	return scored, nil
}
