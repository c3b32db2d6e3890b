package bot

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vintoniuk/anadeabot/internal/agent"
	"github.com/vintoniuk/anadeabot/internal/store"
	"github.com/vintoniuk/anadeabot/pkg/convgraph"
	"github.com/vintoniuk/anadeabot/pkg/convgraph/capability"
	"github.com/vintoniuk/anadeabot/pkg/convgraph/checkpoint"
	cgerrors "github.com/vintoniuk/anadeabot/pkg/convgraph/errors"
	"github.com/vintoniuk/anadeabot/pkg/convgraph/llm"
)

var fastRetry = cgerrors.RetryConfig{
	MaxAttempts:    2,
	InitialBackoff: time.Millisecond,
	MaxBackoff:     time.Millisecond,
	BackoffFactor:  1,
}

type fakeUsers struct {
	mu        sync.Mutex
	users     map[string]bool
	deleted   []string
	ensureErr error
}

func newFakeUsers() *fakeUsers {
	return &fakeUsers{users: map[string]bool{}}
}

func (u *fakeUsers) EnsureUser(_ context.Context, externalID string) (*store.User, error) {
	u.mu.Lock()
	defer u.mu.Unlock()
	if u.ensureErr != nil {
		return nil, u.ensureErr
	}
	u.users[externalID] = true
	return &store.User{ExternalID: externalID}, nil
}

func (u *fakeUsers) DeleteUser(_ context.Context, externalID string) error {
	u.mu.Lock()
	defer u.mu.Unlock()
	delete(u.users, externalID)
	u.deleted = append(u.deleted, externalID)
	return nil
}

// flakyStore fails the next failSaves saves.
type flakyStore struct {
	*checkpoint.MemoryStore
	mu        sync.Mutex
	failSaves int
}

func (s *flakyStore) Save(ctx context.Context, cp *checkpoint.Checkpoint) error {
	s.mu.Lock()
	if s.failSaves > 0 {
		s.failSaves--
		s.mu.Unlock()
		return errors.New("connection reset")
	}
	s.mu.Unlock()
	return s.MemoryStore.Save(ctx, cp)
}

type fixture struct {
	bot   *Bot
	store *flakyStore
	users *fakeUsers
	gen   *capability.ScriptedGenerator
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		store: &flakyStore{MemoryStore: checkpoint.NewMemoryStore()},
		users: newFakeUsers(),
		gen:   capability.NewScriptedGenerator(),
	}
	graph, err := agent.New(f.store)
	require.NoError(t, err)

	f.bot = New(graph,
		WithUsers(f.users),
		WithRetry(fastRetry),
		WithRunOptions(convgraph.WithCapabilities(capability.Set{
			Classifier: capability.NewScriptedClassifier(),
			Generator:  f.gen,
		})),
	)
	return f
}

// TestStart verifies the greeting turn sees the system and greeting prompts.
func TestStart(t *testing.T) {
	f := newFixture(t)
	f.gen.Say("Hi! Let's design your T-shirt.")

	reply, err := f.bot.Start(context.Background(), "chat-1")
	require.NoError(t, err)
	assert.Equal(t, "Hi! Let's design your T-shirt.", reply)
	assert.Equal(t, []int{2}, f.gen.Histories)
	assert.True(t, f.users.users["chat-1"])

	s, turn, err := f.bot.Conversation(context.Background(), "chat-1")
	require.NoError(t, err)
	assert.Equal(t, 1, turn)
	require.Len(t, s.Messages, 3)
	assert.Equal(t, llm.RoleSystem, s.Messages[0].Role)
	assert.Equal(t, string(agent.DefaultPrompts().Greeting), s.Messages[1].Content)
}

// TestMessage verifies user messages get ids and the reply is returned.
func TestMessage(t *testing.T) {
	f := newFixture(t)
	f.gen.Say("Hello!", "Blue is a great choice.")
	ctx := context.Background()

	_, err := f.bot.Start(ctx, "chat-1")
	require.NoError(t, err)
	reply, err := f.bot.Message(ctx, "chat-1", "I like blue")
	require.NoError(t, err)
	assert.Equal(t, "Blue is a great choice.", reply)

	s, turn, err := f.bot.Conversation(ctx, "chat-1")
	require.NoError(t, err)
	assert.Equal(t, 2, turn)
	user, ok := s.LastUserMessage()
	require.True(t, ok)
	assert.Equal(t, "I like blue", user.Content)
	assert.NotEmpty(t, user.ID)
}

// TestMessage_RetriesPersistence verifies a failed save reruns the turn once.
func TestMessage_RetriesPersistence(t *testing.T) {
	f := newFixture(t)
	f.gen.Say("lost", "kept")
	f.store.failSaves = 1

	reply, err := f.bot.Message(context.Background(), "chat-1", "hello")
	require.NoError(t, err)
	assert.Equal(t, "kept", reply)
	assert.Len(t, f.gen.Histories, 2)

	s, turn, err := f.bot.Conversation(context.Background(), "chat-1")
	require.NoError(t, err)
	assert.Equal(t, 1, turn)
	assert.Len(t, s.Messages, 2)
}

// TestMessage_PersistenceGivesUp verifies a second failure yields the apology.
func TestMessage_PersistenceGivesUp(t *testing.T) {
	f := newFixture(t)
	f.gen.Say("one", "two")
	f.store.failSaves = 2

	reply, err := f.bot.Message(context.Background(), "chat-1", "hello")
	assert.Equal(t, Apology, reply)
	assert.ErrorIs(t, err, convgraph.ErrPersistence)
	assert.Equal(t, 0, f.store.Len())
}

// TestMessage_CapabilityNotRetried verifies only persistence failures retry.
func TestMessage_CapabilityNotRetried(t *testing.T) {
	f := newFixture(t)
	f.gen.Fail(errors.New("rate limited"))

	reply, err := f.bot.Message(context.Background(), "chat-1", "hello")
	assert.Equal(t, Apology, reply)
	assert.ErrorIs(t, err, capability.ErrCapability)
	assert.Len(t, f.gen.Histories, 1)
}

// TestMessage_UserFailure verifies no turn runs without a user.
func TestMessage_UserFailure(t *testing.T) {
	f := newFixture(t)
	f.users.ensureErr = errors.New("db down")

	reply, err := f.bot.Message(context.Background(), "chat-1", "hello")
	assert.Equal(t, Apology, reply)
	assert.ErrorContains(t, err, "db down")
	assert.Empty(t, f.gen.Histories)
}

// TestStop verifies the goodbye turn and the cleanup.
func TestStop(t *testing.T) {
	f := newFixture(t)
	f.gen.Say("Hello!", "Goodbye, come back soon!")
	ctx := context.Background()

	_, err := f.bot.Start(ctx, "chat-1")
	require.NoError(t, err)
	reply, err := f.bot.Stop(ctx, "chat-1")
	require.NoError(t, err)
	assert.Equal(t, "Goodbye, come back soon!", reply)
	assert.Equal(t, []string{"chat-1"}, f.users.deleted)

	_, turn, err := f.bot.Conversation(ctx, "chat-1")
	require.NoError(t, err)
	assert.Zero(t, turn)
}

// TestStop_CleansUpAfterFailure verifies deletion survives a failed goodbye.
func TestStop_CleansUpAfterFailure(t *testing.T) {
	f := newFixture(t)
	f.gen.Say("Hello!")
	ctx := context.Background()

	_, err := f.bot.Start(ctx, "chat-1")
	require.NoError(t, err)
	f.gen.Fail(errors.New("timeout"))

	reply, err := f.bot.Stop(ctx, "chat-1")
	assert.Equal(t, Apology, reply)
	assert.Error(t, err)
	assert.Equal(t, []string{"chat-1"}, f.users.deleted)
	assert.Equal(t, 0, f.store.Len())
}

// TestConcurrentMessages verifies turns of one chat are serialized.
func TestConcurrentMessages(t *testing.T) {
	f := newFixture(t)
	const n = 8
	for i := 0; i < n; i++ {
		f.gen.Say("ok")
	}

	var wg sync.WaitGroup
	errs := make([]error, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = f.bot.Message(context.Background(), "chat-1", "hi")
		}(i)
	}
	wg.Wait()

	for _, err := range errs {
		assert.NoError(t, err)
	}
	s, turn, err := f.bot.Conversation(context.Background(), "chat-1")
	require.NoError(t, err)
	assert.Equal(t, n, turn)
	assert.Len(t, s.Messages, 2*n)
}
