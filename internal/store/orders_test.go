package store

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vintoniuk/anadeabot/internal/agent"
	"github.com/vintoniuk/anadeabot/internal/conversation"
	"github.com/vintoniuk/anadeabot/pkg/convgraph"
	"github.com/vintoniuk/anadeabot/pkg/convgraph/capability"
	"github.com/vintoniuk/anadeabot/pkg/convgraph/checkpoint"
	"github.com/vintoniuk/anadeabot/pkg/convgraph/llm"
)

// confirmOrder runs one confirming turn on a graph with a fresh checkpoint
// store, so every call starts again at turn 1.
func confirmOrder(t *testing.T, repo *Repository, d conversation.Design, msg llm.Message) {
	t.Helper()
	g, err := agent.New(checkpoint.NewMemoryStore(), agent.WithEntities(repo))
	require.NoError(t, err)

	cls := capability.NewScriptedClassifier().
		Push(agent.SchemaDesign, capability.Record{
			"color": d.Color, "size": d.Size, "style": d.Style, "gender": d.Gender, "printing": d.Printing,
		}).
		Push(agent.SchemaIntent, capability.Record{"decision": true}).
		Push(agent.SchemaConfirmation, capability.Record{"value": true})
	gen := capability.NewScriptedGenerator().Say("Thanks for your order!")

	s, err := g.Invoke(context.Background(), "chat-1", conversation.Say(msg),
		convgraph.WithCapabilities(capability.Set{Classifier: cls, Generator: gen}))
	require.NoError(t, err)
	require.True(t, s.Confirmed)
}

// TestOrders_SurviveLostCheckpoint verifies orders confirmed after the
// checkpoint is lost are stored although the user row stayed.
func TestOrders_SurviveLostCheckpoint(t *testing.T) {
	repo := newTestRepository(t)
	ctx := context.Background()
	_, err := repo.EnsureUser(ctx, "chat-1")
	require.NoError(t, err)

	black := fullDesign
	black.Color = "black"
	red := fullDesign
	red.Color = "red"

	identified := func(text string) llm.Message {
		m := llm.User(text)
		m.ID = uuid.NewString()
		return m
	}
	confirmOrder(t, repo, fullDesign, identified("white please"))
	confirmOrder(t, repo, black, identified("now black"))
	confirmOrder(t, repo, red, llm.User("and red"))

	orders, err := repo.Orders(ctx, "chat-1")
	require.NoError(t, err)
	require.Len(t, orders, 3)
	var colors []string
	for _, o := range orders {
		colors = append(colors, o.Color)
	}
	assert.ElementsMatch(t, []string{"white", "black", "red"}, colors)
}
