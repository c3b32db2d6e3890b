package catalog

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vintoniuk/anadeabot/internal/conversation"
)

// TestOptions verifies the offered values per attribute.
func TestOptions(t *testing.T) {
	assert.Equal(t, []string{"white", "black", "blue", "red", "green", "custom"}, Options(conversation.AttrColor))
	assert.Equal(t, []string{"XS", "S", "M", "L", "XL", "XLL"}, Options(conversation.AttrSize))
	assert.Equal(t, []string{"Crew Neck", "V-Neck", "Long Sleeve", "Tank Top"}, Options(conversation.AttrStyle))
	assert.Equal(t, []string{"male", "female", "unisex"}, Options(conversation.AttrGender))
	assert.Equal(t, []string{"Screen Printing", "Embroidery", "Heat Transfer", "Direct-to-Garment"}, Options(conversation.AttrPrinting))
	assert.Nil(t, Options("fabric"))

	// Callers cannot mutate the catalog.
	Options(conversation.AttrSize)[0] = "XXS"
	assert.Equal(t, "XS", Sizes[0])
}

// TestCanonical verifies case-insensitive matching and custom colors.
func TestCanonical(t *testing.T) {
	tests := []struct {
		attr, in, want string
		ok             bool
	}{
		{conversation.AttrSize, " xl ", "XL", true},
		{conversation.AttrSize, "XXL", "", false},
		{conversation.AttrStyle, "v-neck", "V-Neck", true},
		{conversation.AttrColor, "WHITE", "white", true},
		{conversation.AttrColor, "teal", "teal", true},
		{conversation.AttrColor, "  ", "", false},
		{conversation.AttrPrinting, "embroidery", "Embroidery", true},
		{"fabric", "cotton", "", false},
	}
	for _, tt := range tests {
		got, ok := Canonical(tt.attr, tt.in)
		assert.Equal(t, tt.ok, ok, "%s=%q", tt.attr, tt.in)
		assert.Equal(t, tt.want, got, "%s=%q", tt.attr, tt.in)
	}
}

// TestNormalize verifies unknown values are dropped.
func TestNormalize(t *testing.T) {
	got := Normalize(conversation.Design{Color: "Red", Size: "huge", Gender: "UNISEX"})
	assert.Equal(t, conversation.Design{Color: "red", Gender: "unisex"}, got)
}

// TestNewTools verifies registration order and tool output.
func TestNewTools(t *testing.T) {
	tools := NewTools()
	assert.Equal(t, []string{
		"get_color_options", "get_size_options", "get_style_options",
		"get_gender_options", "get_printing_options",
	}, tools.Keys())

	defs := Definitions(tools)
	require.Len(t, defs, 5)
	for _, d := range defs {
		assert.NotEmpty(t, d.Description, d.Name)
		assert.True(t, json.Valid(d.Parameters), d.Name)
	}

	out, err := tools.MustGet("get_color_options").Run(context.Background(), nil)
	require.NoError(t, err)
	var colors []string
	require.NoError(t, json.Unmarshal([]byte(out), &colors))
	assert.Equal(t, "custom", colors[len(colors)-1])

	assert.Nil(t, Definitions(nil))
}

// TestToolRun_Cancelled verifies a cancelled context is honoured.
func TestToolRun_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := OptionTool(conversation.AttrSize).Run(ctx, nil)
	assert.ErrorIs(t, err, context.Canceled)
}
