package agent

import (
	"fmt"
	"sort"

	"github.com/vintoniuk/anadeabot/pkg/convgraph/template"
)

// Prompts holds every instruction the assistant sends to the model.
// Placeholders use ${name}.
type Prompts struct {
	System             template.Prompt
	Greeting           template.Prompt
	Goodbye            template.Prompt
	ChoiceDetection    template.Prompt
	IntentDetection    template.Prompt
	AskMissing         template.Prompt // ${design}, ${attribute}
	DesignSatisfaction template.Prompt // ${design}
	NotSatisfied       template.Prompt // ${design}
	AskConfirmation    template.Prompt // ${design}
	CheckConfirmation  template.Prompt
	AcknowledgeOrder   template.Prompt // ${design}
	NotConfirmed       template.Prompt // ${design}
	SupportDetails     template.Prompt
	SupportSubmitted   template.Prompt // ${details}
	FAQ                template.Prompt // ${faq}
}

// DefaultPrompts returns the built-in prompt set.
func DefaultPrompts() Prompts {
	return Prompts{
		System: `You are a helpful T-shirt design platform assistant. Your task is to
guide a user through the T-shirt design process and help them order their
T-shirt. Ask about their preferences and obtain every required attribute:
color, size, style, gender and printing. Along the way the user might ask
about our offerings, available design options or other features of the
platform. Use the FAQ when it is provided. If the user faces a problem you
cannot solve, pass a request to customer support.`,

		Greeting: `Greet the user, briefly explain what the T-shirt design platform is
and how you can help them create their awesome T-shirt, and finish with
something like: Let's create the T-shirt of your dreams. Are you ready?`,

		Goodbye: `The user is leaving the conversation. Thank them for their time, say
goodbye, and tell them they are welcome back whenever they want to design
another T-shirt.`,

		ChoiceDetection: `If the user made a choice for any T-shirt design attribute, or changed
their mind about a previously chosen option, infer the values. If the user
is not interested in an attribute or is happy with any option, choose one
yourself. Leave attributes the user has not mentioned empty. DO NOT MAKE UP
VALUES.`,

		IntentDetection: `Determine the most probable intent of the user's last message. If none
of the intents clearly applies, leave all of them false. DO NOT FORCE
YOURSELF TO MAKE A CHOICE.`,

		AskMissing: `You need to know every T-shirt attribute, but some are missing.
So far you have collected:
${design}
Suggest the available options for the attribute ${attribute} and ask for
the user's choice. Be smooth and take the conversation above into account.
If the user already specified an attribute, DO NOT ASK FOR IT AGAIN. BE
BRIEF AND ASK FOR ONE ATTRIBUTE AT A TIME.`,

		DesignSatisfaction: `The user's current T-shirt design is:
${design}
Determine whether the user is satisfied with this design and has no
further changes in mind.`,

		NotSatisfied: `The user does not seem satisfied with the T-shirt design yet:
${design}
Ask what they would like to change and offer help choosing.`,

		AskConfirmation: `Present the T-shirt design below to the user and ask whether everything
is correct and you can place the order. You must be completely sure the
user decided to order; if you are not, ask explicitly. Do not ask anything
else.

Design:
${design}`,

		CheckConfirmation: `Determine whether the user confirms their T-shirt design and is ready to
place an order. Respond in a binary manner: confirms - true, does not
confirm - false.`,

		AcknowledgeOrder: `The user confirmed their order of this T-shirt:
${design}
Thank them for the order and tell them to let you know when they would like
to design and order another one.`,

		NotConfirmed: `The user did not confirm the order. The design so far is:
${design}
Find out what is missing or what they want to change.`,

		SupportDetails: `The user wants to contact customer support. Write a concise,
self-contained summary of their request from the conversation.`,

		SupportSubmitted: `A request was sent to customer support with these details:
${details}
Tell the user a specialist will get back to them.`,

		FAQ: `Answer the user's question using these entries from the FAQ when they
are relevant:
${faq}`,
	}
}

// fields maps config keys onto the prompt they override.
func (p *Prompts) fields() map[string]*template.Prompt {
	return map[string]*template.Prompt{
		"system":              &p.System,
		"greeting":            &p.Greeting,
		"goodbye":             &p.Goodbye,
		"choice_detection":    &p.ChoiceDetection,
		"intent_detection":    &p.IntentDetection,
		"ask_missing":         &p.AskMissing,
		"design_satisfaction": &p.DesignSatisfaction,
		"not_satisfied":       &p.NotSatisfied,
		"ask_confirmation":    &p.AskConfirmation,
		"check_confirmation":  &p.CheckConfirmation,
		"acknowledge_order":   &p.AcknowledgeOrder,
		"not_confirmed":       &p.NotConfirmed,
		"support_details":     &p.SupportDetails,
		"support_submitted":   &p.SupportSubmitted,
		"faq":                 &p.FAQ,
	}
}

// Override returns p with the prompts named in overrides replaced. Keys are
// snake_case field names such as "ask_missing". Unknown keys are an error.
func (p Prompts) Override(overrides map[string]string) (Prompts, error) {
	fields := p.fields()
	var unknown []string
	for k, v := range overrides {
		dst, ok := fields[k]
		if !ok {
			unknown = append(unknown, k)
			continue
		}
		*dst = template.Prompt(v)
	}
	if len(unknown) > 0 {
		sort.Strings(unknown)
		return p, fmt.Errorf("unknown prompts: %v", unknown)
	}
	return p, nil
}
