// Package checkpoint persists conversation state between turns.
//
// A checkpoint holds the full state of one conversation after its latest
// completed turn. Stores are linearizable per conversation id and use
// optimistic concurrency on the turn number: saving turn n succeeds only
// when the stored turn is n-1, or when nothing is stored and n is 1.
package checkpoint

import (
	"context"
	"errors"
	"fmt"
	"time"

	cgerrors "github.com/vintoniuk/anadeabot/pkg/convgraph/errors"
)

// Store persists conversation checkpoints.
// Implementations must be safe for concurrent use.
type Store interface {
	// Load retrieves the latest checkpoint for a conversation.
	// Returns ErrNotFound if the conversation has never been saved.
	Load(ctx context.Context, conversationID string) (*Checkpoint, error)

	// Save stores cp as the latest checkpoint of its conversation.
	// Returns ErrConflict if the stored turn is not cp.Turn-1.
	Save(ctx context.Context, cp *Checkpoint) error

	// Delete removes a conversation's checkpoint.
	// Returns nil if none exists.
	Delete(ctx context.Context, conversationID string) error

	// List returns metadata for every stored conversation, ordered by id.
	List(ctx context.Context) ([]Info, error)

	// Close releases any resources (connections, files).
	Close() error
}

// Info provides metadata without decoding state.
type Info struct {
	ConversationID string
	Turn           int
	Timestamp      time.Time
	Size           int64
}

// Sentinel errors for checkpoint operations.
var (
	// ErrNotFound indicates a conversation has no checkpoint.
	ErrNotFound = errors.New("checkpoint not found")

	// ErrStoreClosed indicates the store has been closed.
	ErrStoreClosed = errors.New("checkpoint store closed")

	// ErrConflict indicates another writer saved the conversation first.
	ErrConflict = errors.New("checkpoint turn conflict")

	// ErrInvalidCheckpoint indicates a checkpoint that cannot be stored.
	ErrInvalidCheckpoint = errors.New("invalid checkpoint")
)

// conflict reports a failed compare-and-set on the turn number.
func conflict(conversationID string, turn int) error {
	return cgerrors.Conflict(
		fmt.Errorf("%w: %s is not at turn %d", ErrConflict, conversationID, turn-1),
		"save checkpoint",
	)
}
