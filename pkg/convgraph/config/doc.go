/*
Package config provides type-safe configuration extraction from map[string]any.

Config wraps a map loaded from YAML or JSON and returns defaults for
missing keys or mismatched types instead of failing.

# Basic Usage

	cfg, err := config.FromFile("anadeabot.yaml")
	if err != nil {
	    return err
	}

	model := cfg.String("openai.model", "gpt-3.5-turbo")
	budget := cfg.Int("engine.step_budget", 25)
	timeout := cfg.Duration("http.read_timeout", 10*time.Second)

Keys are dotted paths into nested maps. A literal key containing dots
takes precedence over the path.

# Environment

FromFile expands ${VAR} and ${VAR:-default} in string values, so secrets
stay out of the file:

	openai:
	  api_key: ${OPENAI_API_KEY}
	postgres:
	  dsn: ${DATABASE_URL:-postgres://localhost/anadea}

# Decoding

Decode fills a struct through mapstructure tags. Durations may be
written as strings ("30s"), and fields the file omits keep whatever the
struct already held:

	s := Settings{StepBudget: 25}
	if err := cfg.Decode(&s); err != nil {
	    return err
	}

# Type Coercion

Duration accepts strings, numbers (seconds) and time.Duration. Int
accepts float64 only without a fractional part. Float accepts ints.

# Thread Safety

Config is safe for concurrent reads. The underlying map is not modified
after creation.
*/
package config
