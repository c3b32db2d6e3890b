package faq

import (
	"context"
	"fmt"
	"math"
	"sort"
	"strconv"
	"sync"

	"github.com/vintoniuk/anadeabot/pkg/convgraph/capability"
	"github.com/vintoniuk/anadeabot/pkg/convgraph/llm"
)

// MemoryStore is an in-process Index ranked by cosine similarity.
type MemoryStore struct {
	embedder llm.Embedder

	mu      sync.RWMutex
	entries []Entry
	vectors [][]float32
}

// NewMemoryStore creates an empty MemoryStore.
func NewMemoryStore(embedder llm.Embedder) *MemoryStore {
	return &MemoryStore{embedder: embedder}
}

// Add implements Index.
func (m *MemoryStore) Add(ctx context.Context, entries []Entry) error {
	if len(entries) == 0 {
		return nil
	}
	vectors, err := m.embedder.Embed(ctx, questions(entries))
	if err != nil {
		return fmt.Errorf("embed: %w", err)
	}
	if len(vectors) != len(entries) {
		return fmt.Errorf("embed: got %d vectors for %d texts", len(vectors), len(entries))
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries = append(m.entries, entries...)
	m.vectors = append(m.vectors, vectors...)
	return nil
}

// Retrieve implements capability.Retriever.
func (m *MemoryStore) Retrieve(ctx context.Context, query string, k int) ([]capability.Document, error) {
	if k <= 0 {
		return nil, nil
	}
	vectors, err := m.embedder.Embed(ctx, []string{query})
	if err != nil {
		return nil, fmt.Errorf("embed: %w", err)
	}
	if len(vectors) != 1 {
		return nil, fmt.Errorf("embed: got %d vectors for 1 text", len(vectors))
	}

	m.mu.RLock()
	docs := make([]capability.Document, 0, len(m.entries))
	for i, e := range m.entries {
		docs = append(docs, document(strconv.Itoa(i), e, cosine(vectors[0], m.vectors[i])))
	}
	m.mu.RUnlock()

	sort.SliceStable(docs, func(i, j int) bool { return docs[i].Score > docs[j].Score })
	if len(docs) > k {
		docs = docs[:k]
	}
	return docs, nil
}

// Len returns the number of entries.
func (m *MemoryStore) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.entries)
}

func cosine(a, b []float32) float64 {
	if len(a) != len(b) {
		return 0
	}
	var dot, na, nb float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		na += float64(a[i]) * float64(a[i])
		nb += float64(b[i]) * float64(b[i])
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}
