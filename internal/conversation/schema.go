package conversation

import (
	"fmt"

	"github.com/vintoniuk/anadeabot/pkg/convgraph/llm"
	"github.com/vintoniuk/anadeabot/pkg/convgraph/reducer"
)

// State field names, as declared in node Writes.
const (
	FieldMessages  = "messages"
	FieldDesign    = "design"
	FieldConfirmed = "confirmed"
	FieldIntent    = "intent"
	FieldFacts     = "facts"
)

// Schema merges Updates into State.
type Schema struct {
	// DedupMessages makes an incoming message replace the stored message
	// with the same non-empty ID instead of being appended.
	DedupMessages bool
}

// FieldNames lists every state field.
func (Schema) FieldNames() []string {
	return []string{FieldMessages, FieldDesign, FieldConfirmed, FieldIntent, FieldFacts}
}

// Merge applies each present field's reducer. It never mutates current.
func (s Schema) Merge(current State, u Update) State {
	next := current
	if s.DedupMessages {
		next.Messages = reducer.AppendByID(current.Messages, u.Messages)
	} else {
		next.Messages = reducer.Append(current.Messages, u.Messages)
	}
	if u.ResetDesign || (u.Design != nil && u.Design.IsZero()) {
		next.Design = Design{}
	}
	if u.Design != nil {
		next.Design = next.Design.Patch(*u.Design)
	}
	next.Confirmed = reducer.LastValue(current.Confirmed, u.Confirmed)
	next.Intent = reducer.LastValue(current.Intent, u.Intent)
	next.Facts = reducer.Replace(current.Facts, u.Facts)
	return next
}

// Fields names the fields present in u and rejects malformed messages and
// unknown intents.
func (Schema) Fields(u Update) ([]string, error) {
	var fields []string
	if len(u.Messages) > 0 {
		for i, m := range u.Messages {
			if err := validateMessage(m); err != nil {
				return nil, fmt.Errorf("message %d: %w", i, err)
			}
		}
		fields = append(fields, FieldMessages)
	}
	if u.Design != nil || u.ResetDesign {
		fields = append(fields, FieldDesign)
	}
	if u.Confirmed != nil {
		fields = append(fields, FieldConfirmed)
	}
	if u.Intent != nil {
		if !u.Intent.Valid() {
			return nil, fmt.Errorf("unknown intent %q", *u.Intent)
		}
		fields = append(fields, FieldIntent)
	}
	if u.Facts != nil {
		fields = append(fields, FieldFacts)
	}
	return fields, nil
}

func validateMessage(m llm.Message) error {
	if !m.Role.Valid() {
		return fmt.Errorf("unknown role %q", m.Role)
	}
	if m.Role == llm.RoleTool && m.ToolCallID == "" {
		return fmt.Errorf("tool message without tool_call_id")
	}
	if m.Role != llm.RoleAssistant && len(m.ToolCalls) > 0 {
		return fmt.Errorf("%s message with tool calls", m.Role)
	}
	return nil
}
