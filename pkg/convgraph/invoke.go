package convgraph

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/vintoniuk/anadeabot/pkg/convgraph/checkpoint"
	"github.com/vintoniuk/anadeabot/pkg/convgraph/observability"
)

// Invoke advances a conversation by one turn.
//
//  1. Load the conversation's checkpoint; an absent one means the zero
//     state at turn 0.
//  2. Validate the caller's partial update as coming from START and merge it.
//  3. Run the graph.
//  4. Save the final state as turn+1.
//
// Nothing is saved when any step fails, so the previous checkpoint stays
// valid and the turn can be retried. A graph compiled with a nil store
// starts every call from the zero state and saves nothing.
//
// Example:
//
//	state, err := compiled.Invoke(ctx, "chat-42",
//	    conversation.Update{Messages: []llm.Message{llm.User("hi")}},
//	    convgraph.WithCapabilities(caps))
func (cg *CompiledGraph[S, U]) Invoke(ctx context.Context, conversationID string, partial U, opts ...RunOption) (S, error) {
	var zero S
	if ctx == nil {
		return zero, ErrNilContext
	}
	if conversationID == "" {
		return zero, ErrNoConversationID
	}

	cfg := defaultRunConfig()
	for _, opt := range opts {
		opt(&cfg)
	}

	state, turn, err := cg.load(ctx, conversationID, &cfg)
	if err != nil {
		return zero, err
	}

	if _, err := cg.schema.Fields(partial); err != nil {
		return state, &MalformedUpdateError{NodeID: START, Err: err}
	}
	state = cg.schema.Merge(state, partial)

	result, err := cg.runTurn(ctx, state, turnInfo{conversationID: conversationID, number: turn + 1}, &cfg)
	if err != nil {
		return result, err
	}

	if err := cg.save(ctx, conversationID, turn+1, result, &cfg); err != nil {
		return result, err
	}
	return result, nil
}

// State returns the stored state of a conversation and the turn it was
// saved at. An absent conversation yields the zero state and turn 0.
func (cg *CompiledGraph[S, U]) State(ctx context.Context, conversationID string) (S, int, error) {
	cfg := defaultRunConfig()
	return cg.load(ctx, conversationID, &cfg)
}

// Forget deletes a conversation's checkpoint. The next Invoke starts over
// at turn 1.
func (cg *CompiledGraph[S, U]) Forget(ctx context.Context, conversationID string) error {
	if cg.store == nil {
		return nil
	}
	if err := cg.store.Delete(ctx, conversationID); err != nil {
		return &PersistenceError{ConversationID: conversationID, Op: "delete", Err: err}
	}
	return nil
}

func (cg *CompiledGraph[S, U]) load(ctx context.Context, conversationID string, cfg *runConfig) (S, int, error) {
	var state S
	if cg.store == nil {
		return state, 0, nil
	}

	cp, err := cg.store.Load(ctx, conversationID)
	if errors.Is(err, checkpoint.ErrNotFound) {
		return state, 0, nil
	}
	if err != nil {
		cfg.metrics.RecordCheckpoint(ctx, "load", 0, err)
		observability.LogCheckpointError(cfg.logger, "load", err)
		return state, 0, &PersistenceError{ConversationID: conversationID, Op: "load", Err: err}
	}
	if err := json.Unmarshal(cp.State, &state); err != nil {
		observability.LogCheckpointError(cfg.logger, "decode", err)
		return state, 0, &PersistenceError{ConversationID: conversationID, Op: "decode", Err: err}
	}
	cfg.metrics.RecordCheckpoint(ctx, "load", int64(len(cp.State)), nil)
	return state, cp.Turn, nil
}

func (cg *CompiledGraph[S, U]) save(ctx context.Context, conversationID string, turn int, state S, cfg *runConfig) error {
	if cg.store == nil {
		return nil
	}

	data, err := json.Marshal(state)
	if err != nil {
		observability.LogCheckpointError(cfg.logger, "encode", err)
		return &PersistenceError{ConversationID: conversationID, Op: "encode", Err: err}
	}

	err = cg.store.Save(ctx, checkpoint.New(conversationID, turn, data))
	cfg.metrics.RecordCheckpoint(ctx, "save", int64(len(data)), err)
	if err != nil {
		observability.LogCheckpointError(cfg.logger, "save", err)
		return &PersistenceError{ConversationID: conversationID, Op: "save", Err: err}
	}
	observability.LogCheckpoint(cfg.logger, turn, len(data))
	return nil
}
