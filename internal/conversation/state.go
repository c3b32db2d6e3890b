package conversation

import (
	"fmt"
	"strings"

	"github.com/vintoniuk/anadeabot/pkg/convgraph/llm"
)

// Intent is the classified purpose of the latest user message.
type Intent string

// Intents in routing priority order. IntentAgent means nothing specific
// was detected.
const (
	IntentPreference Intent = "preference"
	IntentDecision   Intent = "decision"
	IntentQuestion   Intent = "question"
	IntentHelp       Intent = "help"
	IntentRequest    Intent = "request"
	IntentStruggle   Intent = "struggle"
	IntentAgent      Intent = "agent"
)

// Intents lists every intent in priority order.
var Intents = []Intent{
	IntentPreference, IntentDecision, IntentQuestion,
	IntentHelp, IntentRequest, IntentStruggle, IntentAgent,
}

// Valid reports whether i is a known intent. The empty intent is valid
// and means not yet classified.
func (i Intent) Valid() bool {
	if i == "" {
		return true
	}
	for _, known := range Intents {
		if i == known {
			return true
		}
	}
	return false
}

// Fact is a retrieved FAQ entry relevant to the current question.
type Fact struct {
	Question string  `json:"question"`
	Answer   string  `json:"answer"`
	Score    float64 `json:"score"`
}

// FormatFacts numbers facts for inclusion in a prompt.
func FormatFacts(facts []Fact) string {
	var b strings.Builder
	for i, f := range facts {
		if i > 0 {
			b.WriteByte('\n')
		}
		fmt.Fprintf(&b, "%d. Question: %s Answer: %s", i+1, f.Question, f.Answer)
	}
	return b.String()
}

// State is everything remembered about one conversation.
type State struct {
	Messages  []llm.Message `json:"messages"`
	Design    Design        `json:"design"`
	Confirmed bool          `json:"confirmed"`
	Intent    Intent        `json:"intent,omitempty"`
	Facts     []Fact        `json:"facts,omitempty"`
}

// LastMessage returns the most recent message.
func (s State) LastMessage() (llm.Message, bool) {
	if len(s.Messages) == 0 {
		return llm.Message{}, false
	}
	return s.Messages[len(s.Messages)-1], true
}

// LastUserMessage returns the most recent message from the user.
func (s State) LastUserMessage() (llm.Message, bool) {
	for i := len(s.Messages) - 1; i >= 0; i-- {
		if s.Messages[i].Role == llm.RoleUser {
			return s.Messages[i], true
		}
	}
	return llm.Message{}, false
}

// Reply returns the content of the last message, which is what the user
// is shown after a turn.
func (s State) Reply() string {
	m, _ := s.LastMessage()
	return m.Content
}

// Update is a partial state. Nil or false members are absent.
type Update struct {
	Messages []llm.Message
	// Design overwrites the attributes it sets. A non-nil empty Design is
	// the reset sentinel and clears the whole record.
	Design *Design
	// ResetDesign clears the design before Design is applied.
	ResetDesign bool
	Confirmed   *bool
	Intent      *Intent
	// Facts replaces the stored facts when non-nil, even when empty.
	Facts []Fact
}

// Say returns an update appending msgs.
func Say(msgs ...llm.Message) Update {
	return Update{Messages: msgs}
}

// PatchDesign returns an update applying p to the design. An empty p
// resets it.
func PatchDesign(p Design) Update {
	return Update{Design: &p}
}

// SetIntent returns an update recording i.
func SetIntent(i Intent) Update {
	return Update{Intent: &i}
}

// Confirm returns an update recording whether the order was confirmed.
func Confirm(v bool) Update {
	return Update{Confirmed: &v}
}
