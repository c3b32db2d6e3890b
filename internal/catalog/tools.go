package catalog

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/vintoniuk/anadeabot/internal/conversation"
	"github.com/vintoniuk/anadeabot/pkg/convgraph/llm"
	"github.com/vintoniuk/anadeabot/pkg/convgraph/registry"
)

// ToolFunc executes a tool call and returns its textual result.
type ToolFunc func(ctx context.Context, args json.RawMessage) (string, error)

// Tool is a function the model may call.
type Tool struct {
	Definition llm.Tool
	Run        ToolFunc
}

// Tools is an ordered set of tools keyed by name.
type Tools = registry.Registry[string, Tool]

var noParams = json.RawMessage(`{"type":"object","properties":{},"additionalProperties":false}`)

var descriptions = map[string]string{
	conversation.AttrColor: "Call this tool if you need to know available options for COLOR of a T-shirt. " +
		"The color is the main color of the fabric, not the color of decorations.",
	conversation.AttrSize: "Call this tool if you need to know available options for SIZE of a T-shirt. " +
		"Children need smaller sizes like XS or S, adults sizes such as M or L, and XL or XLL suit big bodies.",
	conversation.AttrStyle: "Call this tool if you need to know available options for STYLE of a T-shirt. " +
		"The style determines sleeves, fabric and whether it suits a female or male body.",
	conversation.AttrGender: "Call this tool if you need to know available options for GENDER of a T-shirt, " +
		"that is whether it is suitable for a man, a woman or both.",
	conversation.AttrPrinting: "Call this tool if you need to know available PRINTING OPTIONS of a T-shirt, " +
		"the method of putting a picture onto the fabric.",
}

// ToolName returns the name of the option tool for attr.
func ToolName(attr string) string {
	return fmt.Sprintf("get_%s_options", attr)
}

// OptionTool builds the tool listing the options for attr.
func OptionTool(attr string) Tool {
	return Tool{
		Definition: llm.Tool{
			Name:        ToolName(attr),
			Description: descriptions[attr],
			Parameters:  noParams,
		},
		Run: func(ctx context.Context, _ json.RawMessage) (string, error) {
			if err := ctx.Err(); err != nil {
				return "", err
			}
			out, err := json.Marshal(Options(attr))
			if err != nil {
				return "", err
			}
			return string(out), nil
		},
	}
}

// NewTools registers an option tool for every design attribute, in
// asking order.
func NewTools() *Tools {
	tools := registry.New[string, Tool]()
	for _, attr := range conversation.Attributes {
		t := OptionTool(attr)
		tools.Register(t.Definition.Name, t)
	}
	return tools
}

// Definitions returns the model-facing definitions in registration order.
func Definitions(tools *Tools) []llm.Tool {
	if tools == nil {
		return nil
	}
	out := make([]llm.Tool, 0, tools.Len())
	tools.Range(func(_ string, t Tool) bool {
		out = append(out, t.Definition)
		return true
	})
	return out
}
