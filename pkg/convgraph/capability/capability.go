// Package capability defines the external collaborators nodes may call:
// structured classification, message generation and document retrieval.
//
// Nodes receive a Set through their execution context. Every failure a
// capability reports is wrapped in *Error so callers can tell it apart
// from engine failures.
package capability

import (
	"context"
	"errors"
	"fmt"

	"github.com/vintoniuk/anadeabot/pkg/convgraph/llm"
)

// Sentinel errors.
var (
	// ErrCapability matches every *Error via errors.Is.
	ErrCapability = errors.New("capability failure")

	// ErrUnavailable is reported when a node calls a capability that was
	// never configured.
	ErrUnavailable = errors.New("capability not configured")
)

// Classifier maps a message history onto a structured record that
// conforms to schema.
type Classifier interface {
	Classify(ctx context.Context, history []llm.Message, schema Schema) (Record, error)
}

// Generator produces the next assistant message. The result may request
// tool calls when tools are offered.
type Generator interface {
	Generate(ctx context.Context, history []llm.Message, tools []llm.Tool) (llm.Message, error)
}

// Retriever returns the documents most relevant to query.
type Retriever interface {
	Retrieve(ctx context.Context, query string, k int) ([]Document, error)
}

// Document is a retrieved piece of reference text.
type Document struct {
	ID       string            `json:"id"`
	Content  string            `json:"content"`
	Metadata map[string]string `json:"metadata,omitempty"`
	// Score is the similarity to the query. Higher is closer.
	Score float64 `json:"score"`
}

// ClassifierFunc adapts a function to Classifier.
type ClassifierFunc func(ctx context.Context, history []llm.Message, schema Schema) (Record, error)

// Classify implements Classifier.
func (f ClassifierFunc) Classify(ctx context.Context, history []llm.Message, schema Schema) (Record, error) {
	return f(ctx, history, schema)
}

// GeneratorFunc adapts a function to Generator.
type GeneratorFunc func(ctx context.Context, history []llm.Message, tools []llm.Tool) (llm.Message, error)

// Generate implements Generator.
func (f GeneratorFunc) Generate(ctx context.Context, history []llm.Message, tools []llm.Tool) (llm.Message, error) {
	return f(ctx, history, tools)
}

// RetrieverFunc adapts a function to Retriever.
type RetrieverFunc func(ctx context.Context, query string, k int) ([]Document, error)

// Retrieve implements Retriever.
func (f RetrieverFunc) Retrieve(ctx context.Context, query string, k int) ([]Document, error) {
	return f(ctx, query, k)
}

// Error reports a failed capability call.
type Error struct {
	Capability string
	Err        error
}

// Error implements the error interface.
func (e *Error) Error() string {
	return fmt.Sprintf("capability %s: %v", e.Capability, e.Err)
}

// Unwrap returns the underlying error.
func (e *Error) Unwrap() error {
	return e.Err
}

// Is makes errors.Is(err, ErrCapability) true for every *Error.
func (e *Error) Is(target error) bool {
	return target == ErrCapability
}

// Capability names used in errors and metrics.
const (
	NameClassifier = "classifier"
	NameGenerator  = "generator"
	NameRetriever  = "retriever"
)

// Set bundles the capabilities available to a run. Nil members are
// reported as ErrUnavailable when called.
type Set struct {
	Classifier Classifier
	Generator  Generator
	Retriever  Retriever
}

// Merge returns s with every non-nil member of o taking precedence.
func (s Set) Merge(o Set) Set {
	if o.Classifier != nil {
		s.Classifier = o.Classifier
	}
	if o.Generator != nil {
		s.Generator = o.Generator
	}
	if o.Retriever != nil {
		s.Retriever = o.Retriever
	}
	return s
}

// Classify calls the configured classifier and validates its output.
func (s Set) Classify(ctx context.Context, history []llm.Message, schema Schema) (Record, error) {
	if s.Classifier == nil {
		return nil, &Error{Capability: NameClassifier, Err: ErrUnavailable}
	}
	rec, err := s.Classifier.Classify(ctx, history, schema)
	if err != nil {
		return nil, wrap(NameClassifier, err)
	}
	rec, err = schema.Validate(rec)
	if err != nil {
		return nil, &Error{Capability: NameClassifier, Err: err}
	}
	return rec, nil
}

// Generate calls the configured generator.
func (s Set) Generate(ctx context.Context, history []llm.Message, tools []llm.Tool) (llm.Message, error) {
	if s.Generator == nil {
		return llm.Message{}, &Error{Capability: NameGenerator, Err: ErrUnavailable}
	}
	msg, err := s.Generator.Generate(ctx, history, tools)
	if err != nil {
		return llm.Message{}, wrap(NameGenerator, err)
	}
	if msg.Role == "" {
		msg.Role = llm.RoleAssistant
	}
	return msg, nil
}

// Retrieve calls the configured retriever.
func (s Set) Retrieve(ctx context.Context, query string, k int) ([]Document, error) {
	if s.Retriever == nil {
		return nil, &Error{Capability: NameRetriever, Err: ErrUnavailable}
	}
	docs, err := s.Retriever.Retrieve(ctx, query, k)
	if err != nil {
		return nil, wrap(NameRetriever, err)
	}
	return docs, nil
}

func wrap(name string, err error) error {
	var capErr *Error
	if errors.As(err, &capErr) {
		return err
	}
	return &Error{Capability: name, Err: err}
}
