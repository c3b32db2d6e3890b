// Package bot turns chat events into conversation turns.
//
// Every handler serializes on the chat id, makes sure the user exists,
// runs one graph turn and returns the reply. A turn whose checkpoint
// could not be loaded or saved is retried once; any failure is logged and
// answered with Apology.
package bot

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/vintoniuk/anadeabot/internal/agent"
	"github.com/vintoniuk/anadeabot/internal/conversation"
	"github.com/vintoniuk/anadeabot/internal/store"
	"github.com/vintoniuk/anadeabot/pkg/convgraph"
	"github.com/vintoniuk/anadeabot/pkg/convgraph/checkpoint"
	cgerrors "github.com/vintoniuk/anadeabot/pkg/convgraph/errors"
	"github.com/vintoniuk/anadeabot/pkg/convgraph/llm"
)

// Apology is the reply sent when a turn fails.
const Apology = "Sorry, something went wrong! Try again later, please."

// Users is the part of the user repository the bot needs.
type Users interface {
	EnsureUser(ctx context.Context, externalID string) (*store.User, error)
	DeleteUser(ctx context.Context, externalID string) error
}

// Bot handles chat events for any number of conversations.
type Bot struct {
	graph   *agent.Graph
	users   Users
	locker  checkpoint.Locker
	prompts agent.Prompts
	retry   cgerrors.RetryConfig
	runOpts []convgraph.RunOption
	logger  *slog.Logger
}

// Option configures a Bot.
type Option func(*Bot)

// WithUsers sets the user repository. Without one users are not tracked.
func WithUsers(u Users) Option {
	return func(b *Bot) { b.users = u }
}

// WithLocker sets the per-conversation lock. The default serializes
// within the process only.
func WithLocker(l checkpoint.Locker) Option {
	return func(b *Bot) { b.locker = l }
}

// WithPrompts sets the prompts used by Start and Stop.
func WithPrompts(p agent.Prompts) Option {
	return func(b *Bot) { b.prompts = p }
}

// WithRetry sets the retry policy for persistence failures.
func WithRetry(cfg cgerrors.RetryConfig) Option {
	return func(b *Bot) { b.retry = cfg }
}

// WithRunOptions adds options to every graph invocation.
func WithRunOptions(opts ...convgraph.RunOption) Option {
	return func(b *Bot) { b.runOpts = append(b.runOpts, opts...) }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(b *Bot) { b.logger = l }
}

// New creates a Bot over a compiled agent graph.
func New(graph *agent.Graph, opts ...Option) *Bot {
	b := &Bot{
		graph:   graph,
		locker:  checkpoint.NewLocalLocker(),
		prompts: agent.DefaultPrompts(),
		retry:   cgerrors.RetryOnce,
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		opt(b)
	}
	b.retry.RetryableFunc = isPersistence
	return b
}

// Start opens a conversation and returns the greeting.
func (b *Bot) Start(ctx context.Context, chatID string) (string, error) {
	return b.handle(ctx, "start", chatID, conversation.Say(
		llm.System(string(b.prompts.System)),
		llm.System(string(b.prompts.Greeting)),
	))
}

// Message handles a user message and returns the reply.
func (b *Bot) Message(ctx context.Context, chatID, text string) (string, error) {
	msg := llm.User(text)
	msg.ID = uuid.NewString()
	return b.handle(ctx, "message", chatID, conversation.Say(msg))
}

// Stop says goodbye, then deletes the user and the conversation. The
// deletion happens even when the goodbye turn fails.
func (b *Bot) Stop(ctx context.Context, chatID string) (string, error) {
	unlock, err := b.locker.Lock(ctx, chatID)
	if err != nil {
		return b.fail("stop", chatID, err)
	}
	defer unlock()

	reply, turnErr := b.turn(ctx, chatID, conversation.Say(llm.System(string(b.prompts.Goodbye))))

	var errs []error
	if b.users != nil {
		errs = append(errs, b.users.DeleteUser(ctx, chatID))
	}
	errs = append(errs, b.graph.Forget(ctx, chatID))
	if err := errors.Join(errs...); err != nil {
		return b.fail("stop", chatID, err)
	}
	if turnErr != nil {
		return b.fail("stop", chatID, turnErr)
	}
	b.logger.Info("conversation stopped", "conversation_id", chatID)
	return reply, nil
}

// Conversation returns the stored state and turn number of a chat.
func (b *Bot) Conversation(ctx context.Context, chatID string) (conversation.State, int, error) {
	return b.graph.State(ctx, chatID)
}

func (b *Bot) handle(ctx context.Context, event, chatID string, partial conversation.Update) (string, error) {
	unlock, err := b.locker.Lock(ctx, chatID)
	if err != nil {
		return b.fail(event, chatID, err)
	}
	defer unlock()

	reply, err := b.turn(ctx, chatID, partial)
	if err != nil {
		return b.fail(event, chatID, err)
	}
	return reply, nil
}

// turn runs one invocation, retrying persistence failures. The caller
// holds the conversation lock.
func (b *Bot) turn(ctx context.Context, chatID string, partial conversation.Update) (string, error) {
	if b.users != nil {
		if _, err := b.users.EnsureUser(ctx, chatID); err != nil {
			return "", err
		}
	}

	cfg := b.retry
	cfg.OnRetry = func(attempt int, err error) {
		b.logger.Warn("retrying turn", "conversation_id", chatID, "attempt", attempt, "error", err.Error())
	}
	res := cgerrors.WithRetryContext(ctx, cfg, func(ctx context.Context) (conversation.State, error) {
		return b.graph.Invoke(ctx, chatID, partial, b.runOpts...)
	})
	if res.Err != nil {
		return "", res.Err
	}
	return res.Value.Reply(), nil
}

func (b *Bot) fail(event, chatID string, err error) (string, error) {
	b.logger.Error("turn failed",
		"event", event,
		"conversation_id", chatID,
		"error", err.Error(),
	)
	return Apology, fmt.Errorf("%s %s: %w", event, chatID, err)
}

func isPersistence(err error) bool {
	return errors.Is(err, convgraph.ErrPersistence)
}
