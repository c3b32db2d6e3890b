package agent

import (
	"github.com/vintoniuk/anadeabot/internal/catalog"
	"github.com/vintoniuk/anadeabot/internal/conversation"
	"github.com/vintoniuk/anadeabot/pkg/convgraph/capability"
)

// Classification schema names.
const (
	SchemaDesign       = "design_choice"
	SchemaIntent       = "user_intent"
	SchemaSatisfaction = "design_satisfaction"
	SchemaConfirmation = "order_confirmation"
	SchemaSupport      = "support_request"
)

// DesignSchema extracts attribute choices. Color is free text so custom
// colors survive; the rest are restricted to the catalog.
var DesignSchema = capability.Schema{
	Name:        SchemaDesign,
	Description: "A set of user T-shirt attribute design choices.",
	Fields: []capability.Field{
		{
			Name: conversation.AttrColor, Type: capability.TypeString,
			Description: "The main fabric color the user chose or changed to, not the color of decorations. " +
				"Offered colors are white, black, blue, red and green; extract any other requested color as written.",
		},
		{
			Name: conversation.AttrSize, Type: capability.TypeEnum, Enum: catalog.Sizes,
			Description: "The T-shirt SIZE the user chose or changed to. If it matches no offered size, leave it empty.",
		},
		{
			Name: conversation.AttrStyle, Type: capability.TypeEnum, Enum: catalog.Styles,
			Description: "The T-shirt STYLE the user chose or changed to. If it matches no offered style, leave it empty.",
		},
		{
			Name: conversation.AttrGender, Type: capability.TypeEnum, Enum: catalog.Genders,
			Description: "Whether the T-shirt is meant for a man, a woman, or anyone.",
		},
		{
			Name: conversation.AttrPrinting, Type: capability.TypeEnum, Enum: catalog.Printing,
			Description: "The method of putting a picture onto the fabric the user chose or changed to.",
		},
	},
}

// IntentSchema flags the purpose of the latest message. The first true
// flag in field order wins.
var IntentSchema = capability.Schema{
	Name:        SchemaIntent,
	Description: "The most probable intent of the user.",
	Fields: []capability.Field{
		{Name: string(conversation.IntentPreference), Type: capability.TypeBool,
			Description: "The user wants to choose or change a property of the T-shirt."},
		{Name: string(conversation.IntentDecision), Type: capability.TypeBool,
			Description: "We asked the user to confirm the order and they approve or decline it."},
		{Name: string(conversation.IntentQuestion), Type: capability.TypeBool,
			Description: "The user asks a question about our offerings, design options or the platform."},
		{Name: string(conversation.IntentHelp), Type: capability.TypeBool,
			Description: "We suggested contacting customer support and the user agreed."},
		{Name: string(conversation.IntentRequest), Type: capability.TypeBool,
			Description: "Unprompted, the user wants to send something to customer support."},
		{Name: string(conversation.IntentStruggle), Type: capability.TypeBool,
			Description: "The user faces an obstacle or struggles to accomplish a goal."},
	},
}

// booleanSchema asks for a single yes or no answer.
func booleanSchema(name, description string) capability.Schema {
	return capability.Schema{
		Name:        name,
		Description: description,
		Fields: []capability.Field{
			{Name: "value", Type: capability.TypeBool, Required: true, Description: "True or false."},
		},
	}
}

// SatisfactionSchema asks whether the user is happy with the design.
var SatisfactionSchema = booleanSchema(SchemaSatisfaction, "Whether the user is satisfied with the design.")

// ConfirmationSchema asks whether the user confirmed the order.
var ConfirmationSchema = booleanSchema(SchemaConfirmation, "Whether the user confirms the order.")

// SupportSchema summarises a support request.
var SupportSchema = capability.Schema{
	Name:        SchemaSupport,
	Description: "A request to customer support.",
	Fields: []capability.Field{
		{Name: "details", Type: capability.TypeString,
			Description: "A concise, self-contained summary of the user's support request."},
	},
}

// intentOf returns the first flagged intent, or IntentAgent.
func intentOf(r capability.Record) conversation.Intent {
	for _, f := range IntentSchema.Fields {
		if r.Bool(f.Name) {
			return conversation.Intent(f.Name)
		}
	}
	return conversation.IntentAgent
}

// designOf converts a classification into a design patch.
func designOf(r capability.Record) conversation.Design {
	var d conversation.Design
	for _, attr := range conversation.Attributes {
		d, _ = d.Set(attr, r.String(attr))
	}
	return catalog.Normalize(d)
}
