package agent

import (
	"errors"
	"fmt"
	"strings"

	"github.com/vintoniuk/anadeabot/internal/catalog"
	"github.com/vintoniuk/anadeabot/internal/conversation"
	"github.com/vintoniuk/anadeabot/pkg/convgraph"
	"github.com/vintoniuk/anadeabot/pkg/convgraph/capability"
	"github.com/vintoniuk/anadeabot/pkg/convgraph/llm"
)

type (
	state  = conversation.State
	update = conversation.Update
)

// nodes holds what the node functions share.
type nodes struct {
	prompts  Prompts
	entities Entities
	tools    *catalog.Tools
	faqLimit int
}

// withInstruction returns history followed by a system instruction.
func withInstruction(history []llm.Message, instruction string) []llm.Message {
	out := make([]llm.Message, 0, len(history)+1)
	out = append(out, history...)
	return append(out, llm.System(instruction))
}

// classify calls the classifier. Failures degrade to an empty record and
// are logged, since every classification here has a safe default.
func classify(ctx convgraph.Context, history []llm.Message, schema capability.Schema) capability.Record {
	rec, err := ctx.Capabilities().Classify(ctx, history, schema)
	if err != nil {
		ctx.Logger().Warn("classification degraded to default",
			"schema", schema.Name,
			"error", err.Error(),
		)
		return capability.Record{}
	}
	return rec
}

// choice extracts design choices from the conversation.
func (n *nodes) choice(ctx convgraph.Context, s state) (update, error) {
	rec := classify(ctx, withInstruction(s.Messages, string(n.prompts.ChoiceDetection)), DesignSchema)
	patch := designOf(rec)
	if patch.IsZero() {
		return update{}, nil
	}
	return conversation.PatchDesign(patch), nil
}

// intent records what the user is trying to do.
func (n *nodes) intent(ctx convgraph.Context, s state) (update, error) {
	rec := classify(ctx, withInstruction(s.Messages, string(n.prompts.IntentDetection)), IntentSchema)
	return conversation.SetIntent(intentOf(rec)), nil
}

// decision steers toward a complete, confirmed design.
func (n *nodes) decision(ctx convgraph.Context, s state) (update, error) {
	design := s.Design.Format()
	var prompt string
	if missing := s.Design.Missing(); len(missing) > 0 {
		prompt = n.prompts.AskMissing.Render(map[string]any{
			"design":    design,
			"attribute": strings.ToUpper(missing[0]),
		})
	} else {
		check := n.prompts.DesignSatisfaction.Render(map[string]any{"design": design})
		if classify(ctx, withInstruction(s.Messages, check), SatisfactionSchema).Bool("value") {
			prompt = n.prompts.AskConfirmation.Render(map[string]any{"design": design})
		} else {
			prompt = n.prompts.NotSatisfied.Render(map[string]any{"design": design})
		}
	}
	return conversation.Say(llm.System(prompt)), nil
}

// question looks up FAQ entries for the latest user message. Retrieval
// failures clear the facts so the agent answers without them.
func (n *nodes) question(ctx convgraph.Context, s state) (update, error) {
	facts := []conversation.Fact{}
	msg, ok := s.LastUserMessage()
	if !ok {
		return update{Facts: facts}, nil
	}
	docs, err := ctx.Capabilities().Retrieve(ctx, msg.Content, n.faqLimit)
	if err != nil {
		ctx.Logger().Warn("faq retrieval failed", "error", err.Error())
		return update{Facts: facts}, nil
	}
	for _, d := range docs {
		facts = append(facts, conversation.Fact{
			Question: d.Content,
			Answer:   d.Metadata["answer"],
			Score:    d.Score,
		})
	}
	return update{Facts: facts}, nil
}

// support forwards the user's request to customer support.
func (n *nodes) support(ctx convgraph.Context, s state) (update, error) {
	details := classify(ctx, withInstruction(s.Messages, string(n.prompts.SupportDetails)), SupportSchema).String("details")
	if details == "" {
		if msg, ok := s.LastUserMessage(); ok {
			details = msg.Content
		}
	}
	if n.entities != nil {
		if err := n.entities.SubmitRequest(ctx, ctx.ConversationID(), idempotencyKey(ctx, s), details); err != nil {
			return update{}, fmt.Errorf("submit support request: %w", err)
		}
	}
	ctx.Logger().Info("support request submitted")
	return conversation.Say(llm.System(n.prompts.SupportSubmitted.Render(map[string]any{"details": details}))), nil
}

// confirm places the order when the user confirms a complete design.
func (n *nodes) confirm(ctx convgraph.Context, s state) (update, error) {
	design := s.Design.Format()
	confirmed := classify(ctx, withInstruction(s.Messages, string(n.prompts.CheckConfirmation)), ConfirmationSchema).Bool("value")
	if !confirmed || !s.Design.Complete() {
		u := conversation.Confirm(false)
		u.Messages = []llm.Message{llm.System(n.prompts.NotConfirmed.Render(map[string]any{"design": design}))}
		return u, nil
	}

	if n.entities != nil {
		if err := n.entities.PlaceOrder(ctx, ctx.ConversationID(), idempotencyKey(ctx, s), s.Design); err != nil {
			return update{}, fmt.Errorf("place order: %w", err)
		}
	}
	ctx.Logger().Info("order placed", "design", s.Design)

	ack := n.prompts.AcknowledgeOrder.Render(map[string]any{"design": design})
	msg, err := ctx.Capabilities().Generate(ctx, withInstruction(s.Messages, ack), nil)
	if err != nil {
		return update{}, err
	}
	u := conversation.Confirm(true)
	u.ResetDesign = true
	u.Messages = []llm.Message{msg}
	return u, nil
}

// agent generates the next assistant message, offering the option tools.
func (n *nodes) agent(ctx convgraph.Context, s state) (update, error) {
	history := s.Messages
	if s.Intent == conversation.IntentQuestion && len(s.Facts) > 0 {
		history = withInstruction(history, n.prompts.FAQ.Render(map[string]any{
			"faq": conversation.FormatFacts(s.Facts),
		}))
	}
	msg, err := ctx.Capabilities().Generate(ctx, history, catalog.Definitions(n.tools))
	if err != nil {
		return update{}, err
	}
	return conversation.Say(msg), nil
}

var errUnknownTool = errors.New("unknown tool")

// callTools answers every tool call of the last assistant message. Tool
// failures are reported to the model as the tool result.
func (n *nodes) callTools(ctx convgraph.Context, s state) (update, error) {
	last, ok := s.LastMessage()
	if !ok || !last.HasToolCalls() {
		return update{}, nil
	}
	results := make([]llm.Message, 0, len(last.ToolCalls))
	for _, call := range last.ToolCalls {
		content, err := n.runTool(ctx, call)
		if err != nil {
			ctx.Logger().Warn("tool call failed", "tool", call.Name, "error", err.Error())
			content = "error: " + err.Error()
		}
		results = append(results, llm.ToolResult(call.ID, call.Name, content))
	}
	return conversation.Say(results...), nil
}

func (n *nodes) runTool(ctx convgraph.Context, call llm.ToolCall) (string, error) {
	if n.tools == nil {
		return "", fmt.Errorf("%w %q", errUnknownTool, call.Name)
	}
	tool, ok := n.tools.Get(call.Name)
	if !ok {
		return "", fmt.Errorf("%w %q", errUnknownTool, call.Name)
	}
	return tool.Run(ctx, call.Arguments)
}

// routeIntent maps the classified intent onto the handling node.
func routeIntent(_ convgraph.Context, s state) string {
	switch s.Intent {
	case conversation.IntentPreference:
		return NodeDecision
	case conversation.IntentDecision:
		return NodeConfirm
	case conversation.IntentQuestion:
		return NodeQuestion
	case conversation.IntentHelp, conversation.IntentRequest:
		return NodeSupport
	default:
		return NodeAgent
	}
}

// routeConfirm ends the turn once an order is placed.
func routeConfirm(_ convgraph.Context, s state) string {
	if s.Confirmed {
		return convgraph.END
	}
	return NodeAgent
}

// routeAgent loops through tools while the model requests them.
func routeAgent(_ convgraph.Context, s state) string {
	if last, ok := s.LastMessage(); ok && last.HasToolCalls() {
		return NodeTools
	}
	return convgraph.END
}
