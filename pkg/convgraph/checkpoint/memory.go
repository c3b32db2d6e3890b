package checkpoint

import (
	"context"
	"sort"
	"sync"
)

// MemoryStore is an in-memory checkpoint store for testing and evaluation.
// Data is lost when the process exits.
type MemoryStore struct {
	mu     sync.RWMutex
	data   map[string]storedCheckpoint
	closed bool
}

type storedCheckpoint struct {
	data []byte
	info Info
}

// NewMemoryStore creates a new in-memory checkpoint store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		data: make(map[string]storedCheckpoint),
	}
}

// Load implements Store.
func (m *MemoryStore) Load(_ context.Context, conversationID string) (*Checkpoint, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.closed {
		return nil, ErrStoreClosed
	}

	stored, ok := m.data[conversationID]
	if !ok {
		return nil, ErrNotFound
	}
	return Unmarshal(stored.data)
}

// Save implements Store.
func (m *MemoryStore) Save(_ context.Context, cp *Checkpoint) error {
	if err := cp.Validate(); err != nil {
		return err
	}
	data, err := cp.Marshal()
	if err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return ErrStoreClosed
	}

	current, ok := m.data[cp.ConversationID]
	if (!ok && cp.Turn != 1) || (ok && current.info.Turn != cp.Turn-1) {
		return conflict(cp.ConversationID, cp.Turn)
	}

	m.data[cp.ConversationID] = storedCheckpoint{
		data: data,
		info: Info{
			ConversationID: cp.ConversationID,
			Turn:           cp.Turn,
			Timestamp:      cp.Timestamp,
			Size:           int64(len(data)),
		},
	}
	return nil
}

// Delete implements Store.
func (m *MemoryStore) Delete(_ context.Context, conversationID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return ErrStoreClosed
	}

	delete(m.data, conversationID)
	return nil
}

// List implements Store.
func (m *MemoryStore) List(_ context.Context) ([]Info, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.closed {
		return nil, ErrStoreClosed
	}

	infos := make([]Info, 0, len(m.data))
	for _, stored := range m.data {
		infos = append(infos, stored.info)
	}
	sort.Slice(infos, func(i, j int) bool {
		return infos[i].ConversationID < infos[j].ConversationID
	})
	return infos, nil
}

// Close implements Store.
func (m *MemoryStore) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.closed = true
	m.data = nil
	return nil
}

// Len returns the number of stored conversations.
func (m *MemoryStore) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.data)
}
