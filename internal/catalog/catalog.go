// Package catalog lists the T-shirt options the shop offers and exposes
// them to the model as tools.
package catalog

import (
	"slices"
	"strings"

	"github.com/vintoniuk/anadeabot/internal/conversation"
)

// Custom is the color value offered for colors outside the palette.
const Custom = "custom"

// Option values per attribute.
var (
	Colors   = []string{"white", "black", "blue", "red", "green"}
	Sizes    = []string{"XS", "S", "M", "L", "XL", "XLL"}
	Styles   = []string{"Crew Neck", "V-Neck", "Long Sleeve", "Tank Top"}
	Genders  = []string{"male", "female", "unisex"}
	Printing = []string{"Screen Printing", "Embroidery", "Heat Transfer", "Direct-to-Garment"}
)

// Options returns the offered values for attr. Colors end with Custom.
func Options(attr string) []string {
	switch attr {
	case conversation.AttrColor:
		return append(slices.Clone(Colors), Custom)
	case conversation.AttrSize:
		return slices.Clone(Sizes)
	case conversation.AttrStyle:
		return slices.Clone(Styles)
	case conversation.AttrGender:
		return slices.Clone(Genders)
	case conversation.AttrPrinting:
		return slices.Clone(Printing)
	}
	return nil
}

// Canonical maps v onto the offered spelling for attr, ignoring case and
// surrounding space. Any non-empty color is accepted, since custom colors
// are allowed.
func Canonical(attr, v string) (string, bool) {
	v = strings.TrimSpace(v)
	if v == "" {
		return "", false
	}
	var offered []string
	switch attr {
	case conversation.AttrColor:
		for _, c := range Colors {
			if strings.EqualFold(c, v) {
				return c, true
			}
		}
		return v, true
	case conversation.AttrSize:
		offered = Sizes
	case conversation.AttrStyle:
		offered = Styles
	case conversation.AttrGender:
		offered = Genders
	case conversation.AttrPrinting:
		offered = Printing
	default:
		return "", false
	}
	for _, o := range offered {
		if strings.EqualFold(o, v) {
			return o, true
		}
	}
	return "", false
}

// Normalize returns d with every attribute mapped onto its canonical
// spelling. Values that are not offered are dropped.
func Normalize(d conversation.Design) conversation.Design {
	var out conversation.Design
	for _, attr := range conversation.Attributes {
		if v, ok := Canonical(attr, d.Get(attr)); ok {
			out, _ = out.Set(attr, v)
		}
	}
	return out
}
