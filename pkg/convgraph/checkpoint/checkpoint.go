package checkpoint

import (
	"encoding/json"
	"fmt"
	"time"
)

// Version is the current checkpoint format version.
// Increment when making breaking changes to checkpoint structure.
const Version = 1

// Checkpoint is the persisted snapshot of a conversation.
type Checkpoint struct {
	Version        int       `json:"version"`
	ConversationID string    `json:"conversation_id"`
	Turn           int       `json:"turn"`
	Timestamp      time.Time `json:"timestamp"`

	// State is the JSON encoding of the conversation state.
	State json.RawMessage `json:"state"`
}

// New creates a checkpoint for a completed turn.
// State must already be JSON-serialized.
func New(conversationID string, turn int, state []byte) *Checkpoint {
	return &Checkpoint{
		Version:        Version,
		ConversationID: conversationID,
		Turn:           turn,
		Timestamp:      time.Now().UTC(),
		State:          state,
	}
}

// Validate checks the checkpoint can be stored.
func (c *Checkpoint) Validate() error {
	switch {
	case c == nil:
		return fmt.Errorf("%w: nil", ErrInvalidCheckpoint)
	case c.ConversationID == "":
		return fmt.Errorf("%w: empty conversation id", ErrInvalidCheckpoint)
	case c.Turn < 1:
		return fmt.Errorf("%w: turn %d", ErrInvalidCheckpoint, c.Turn)
	case !json.Valid(c.State):
		return fmt.Errorf("%w: state is not valid JSON", ErrInvalidCheckpoint)
	}
	return nil
}

// Marshal serializes a checkpoint to JSON.
func (c *Checkpoint) Marshal() ([]byte, error) {
	return json.Marshal(c)
}

// Unmarshal deserializes a checkpoint from JSON.
func Unmarshal(data []byte) (*Checkpoint, error) {
	var c Checkpoint
	if err := json.Unmarshal(data, &c); err != nil {
		return nil, fmt.Errorf("decode checkpoint: %w", err)
	}
	if c.Version > Version {
		return nil, fmt.Errorf("checkpoint version %d is newer than supported %d", c.Version, Version)
	}
	return &c, nil
}
