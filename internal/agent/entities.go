package agent

import (
	"context"

	"github.com/vintoniuk/anadeabot/internal/conversation"
	"github.com/vintoniuk/anadeabot/pkg/convgraph"
)

// Entities records the business side effects of a conversation. Both
// operations are idempotent by key, so a retried turn does not duplicate
// an order or a request.
type Entities interface {
	PlaceOrder(ctx context.Context, externalID, key string, design conversation.Design) error
	SubmitRequest(ctx context.Context, externalID, key, details string) error
}

// idempotencyKey identifies the user message that triggered a side effect.
// A retried turn carries the same message and reuses the key. The turn
// number is not used: it restarts when a checkpoint is lost while the
// entity rows remain. Messages without an id fall back to the run id,
// which never repeats.
func idempotencyKey(ctx convgraph.Context, s conversation.State) string {
	if msg, ok := s.LastUserMessage(); ok && msg.ID != "" {
		return ctx.ConversationID() + ":" + msg.ID
	}
	return ctx.ConversationID() + ":" + ctx.RunID()
}
