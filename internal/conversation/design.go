package conversation

import (
	"fmt"
	"strings"
)

// Design attribute names, in the order the assistant asks for them.
const (
	AttrColor    = "color"
	AttrSize     = "size"
	AttrStyle    = "style"
	AttrGender   = "gender"
	AttrPrinting = "printing"
)

// Attributes lists every design attribute in asking order.
var Attributes = []string{AttrColor, AttrSize, AttrStyle, AttrGender, AttrPrinting}

// Design is the set of T-shirt choices collected so far. An empty
// attribute has not been chosen.
type Design struct {
	Color    string `json:"color,omitempty" yaml:"color,omitempty"`
	Size     string `json:"size,omitempty" yaml:"size,omitempty"`
	Style    string `json:"style,omitempty" yaml:"style,omitempty"`
	Gender   string `json:"gender,omitempty" yaml:"gender,omitempty"`
	Printing string `json:"printing,omitempty" yaml:"printing,omitempty"`
}

// Get returns the named attribute.
func (d Design) Get(attr string) string {
	switch attr {
	case AttrColor:
		return d.Color
	case AttrSize:
		return d.Size
	case AttrStyle:
		return d.Style
	case AttrGender:
		return d.Gender
	case AttrPrinting:
		return d.Printing
	}
	return ""
}

// Set returns d with the named attribute replaced. Unknown names are an
// error.
func (d Design) Set(attr, value string) (Design, error) {
	switch attr {
	case AttrColor:
		d.Color = value
	case AttrSize:
		d.Size = value
	case AttrStyle:
		d.Style = value
	case AttrGender:
		d.Gender = value
	case AttrPrinting:
		d.Printing = value
	default:
		return d, fmt.Errorf("unknown design attribute %q", attr)
	}
	return d, nil
}

// Patch overwrites each attribute that is non-empty in p.
func (d Design) Patch(p Design) Design {
	if p.Color != "" {
		d.Color = p.Color
	}
	if p.Size != "" {
		d.Size = p.Size
	}
	if p.Style != "" {
		d.Style = p.Style
	}
	if p.Gender != "" {
		d.Gender = p.Gender
	}
	if p.Printing != "" {
		d.Printing = p.Printing
	}
	return d
}

// Missing returns the unset attributes in asking order.
func (d Design) Missing() []string {
	var out []string
	for _, a := range Attributes {
		if d.Get(a) == "" {
			out = append(out, a)
		}
	}
	return out
}

// Complete reports whether every attribute is set.
func (d Design) Complete() bool {
	return len(d.Missing()) == 0
}

// IsZero reports whether no attribute is set.
func (d Design) IsZero() bool {
	return d == Design{}
}

// Format renders the design one attribute per line for prompts.
func (d Design) Format() string {
	lines := make([]string, 0, len(Attributes))
	for _, a := range Attributes {
		v := d.Get(a)
		if v == "" {
			v = "not chosen"
		}
		lines = append(lines, a+": "+v)
	}
	return strings.Join(lines, "\n")
}
