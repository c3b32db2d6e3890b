package template

import (
	"fmt"
	"os"
	"regexp"
	"strings"
)

// Regular expressions for variable patterns.
var (
	// bracePattern matches ${name} and ${name:-default}.
	bracePattern = regexp.MustCompile(`\$\{([a-zA-Z_][a-zA-Z0-9_.]*)(?::-([^}]*))?\}`)

	// dollarPattern matches $name followed by a non-word character or end
	// of string, so $port does not match inside $portNumber.
	dollarPattern = regexp.MustCompile(`\$([a-zA-Z_][a-zA-Z0-9_]*)(?:\b|$)`)
)

// LookupFunc resolves a variable name.
type LookupFunc func(name string) (any, bool)

// Vars adapts a map to a LookupFunc.
func Vars(vars map[string]any) LookupFunc {
	return func(name string) (any, bool) {
		v, ok := vars[name]
		return v, ok
	}
}

// Env resolves variables from the process environment.
func Env(name string) (any, bool) {
	return os.LookupEnv(name)
}

// Expander expands variable patterns in strings.
//
// Create with NewExpander and configure with Option functions.
// Expander is safe for concurrent use after construction.
type Expander struct {
	missingAction MissingAction
	braceStyle    bool
	dollarStyle   bool
}

// NewExpander creates a new Expander with the given options.
//
// Default configuration:
//   - MissingAction: MissingKeep (keep placeholders as-is)
//   - BraceStyle: enabled (${var}, ${var:-default})
//   - DollarStyle: enabled ($var)
func NewExpander(opts ...Option) *Expander {
	e := &Expander{
		missingAction: MissingKeep,
		braceStyle:    true,
		dollarStyle:   true,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Expand expands variable patterns in s using vars.
//
// Errors are only returned when MissingAction is MissingError and a
// variable without a default is not found.
//
// Example:
//
//	exp := NewExpander()
//	result, err := exp.Expand("Which ${attribute} would you like?", map[string]any{"attribute": "size"})
//	// result: "Which size would you like?"
func (e *Expander) Expand(s string, vars map[string]any) (string, error) {
	return e.ExpandFunc(s, Vars(vars))
}

// ExpandFunc expands variable patterns in s, resolving names with lookup.
func (e *Expander) ExpandFunc(s string, lookup LookupFunc) (string, error) {
	if s == "" {
		return "", nil
	}

	result := s
	var missing []string

	resolve := func(match, name string, def *string) string {
		if val, ok := lookup(name); ok {
			return fmt.Sprintf("%v", val)
		}
		if def != nil {
			return *def
		}
		switch e.missingAction {
		case MissingEmpty:
			return ""
		case MissingError:
			missing = append(missing, name)
			return match
		default: // MissingKeep
			return match
		}
	}

	// ${var} first (more specific).
	if e.braceStyle {
		result = bracePattern.ReplaceAllStringFunc(result, func(match string) string {
			groups := bracePattern.FindStringSubmatch(match)
			var def *string
			if strings.Contains(match, ":-") {
				def = &groups[2]
			}
			return resolve(match, groups[1], def)
		})
	}

	if e.dollarStyle {
		result = dollarPattern.ReplaceAllStringFunc(result, func(match string) string {
			return resolve(match, match[1:], nil)
		})
	}

	if len(missing) > 0 {
		return result, &UndefinedVariableError{Names: missing}
	}
	return result, nil
}

// MustExpand expands variable patterns in s and panics on error.
func (e *Expander) MustExpand(s string, vars map[string]any) string {
	result, err := e.Expand(s, vars)
	if err != nil {
		panic(fmt.Sprintf("template: %v", err))
	}
	return result
}

// ExpandMap expands variable patterns in every string value of m,
// recursing into nested maps and slices. Other values are copied as-is.
func (e *Expander) ExpandMap(m map[string]any, lookup LookupFunc) (map[string]any, error) {
	if m == nil {
		return nil, nil
	}

	result := make(map[string]any, len(m))
	for k, v := range m {
		expanded, err := e.expandValue(v, lookup)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", k, err)
		}
		result[k] = expanded
	}
	return result, nil
}

func (e *Expander) expandValue(v any, lookup LookupFunc) (any, error) {
	switch val := v.(type) {
	case string:
		return e.ExpandFunc(val, lookup)
	case map[string]any:
		return e.ExpandMap(val, lookup)
	case []any:
		out := make([]any, len(val))
		for i, item := range val {
			expanded, err := e.expandValue(item, lookup)
			if err != nil {
				return nil, err
			}
			out[i] = expanded
		}
		return out, nil
	default:
		return v, nil
	}
}

// UndefinedVariableError is returned when MissingError is set and
// one or more variables are not found.
type UndefinedVariableError struct {
	// Names is the list of undefined variable names.
	Names []string
}

// Error implements the error interface.
func (e *UndefinedVariableError) Error() string {
	if len(e.Names) == 1 {
		return fmt.Sprintf("undefined variable: %s", e.Names[0])
	}
	return fmt.Sprintf("undefined variables: %s", strings.Join(e.Names, ", "))
}

// defaultExpander is the package-level expander with default settings.
var defaultExpander = NewExpander()

// Expand expands variable patterns in s using the default expander.
// Missing variables stay as-is.
func Expand(s string, vars map[string]any) string {
	result, _ := defaultExpander.Expand(s, vars)
	return result
}

// ExpandEnv expands ${VAR} and ${VAR:-default} from the environment.
// The $VAR form is left alone so literal dollar amounts survive.
func ExpandEnv(s string) string {
	result, _ := envExpander.ExpandFunc(s, Env)
	return result
}

var envExpander = NewExpander(WithDollarStyle(false))

// Prompt is a text template with ${name} placeholders.
type Prompt string

// Render fills the placeholders. Unknown placeholders are kept so a
// missing variable is visible in the rendered text rather than silently
// dropped.
func (p Prompt) Render(vars map[string]any) string {
	result, _ := promptExpander.Expand(string(p), vars)
	return result
}

// Placeholders lists the distinct variable names referenced by p.
func (p Prompt) Placeholders() []string {
	var names []string
	seen := make(map[string]bool)
	for _, m := range bracePattern.FindAllStringSubmatch(string(p), -1) {
		if !seen[m[1]] {
			seen[m[1]] = true
			names = append(names, m[1])
		}
	}
	return names
}

var promptExpander = NewExpander(WithDollarStyle(false))
