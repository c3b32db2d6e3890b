package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/vintoniuk/anadeabot/pkg/convgraph/template"
)

// FromFile loads configuration from a file, auto-detecting format by
// extension (.yaml, .yml, .json). ${VAR} and ${VAR:-default} references
// in string values are expanded from the environment.
func FromFile(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("read config file: %w", err)
	}

	var cfg Config
	ext := strings.ToLower(filepath.Ext(path))
	switch ext {
	case ".yaml", ".yml":
		cfg, err = FromYAML(data)
	case ".json":
		cfg, err = FromJSON(data)
	default:
		return Config{}, fmt.Errorf("unsupported config file extension: %s", ext)
	}
	if err != nil {
		return Config{}, err
	}
	return cfg.ExpandEnv()
}

// FromYAML parses YAML data into a Config.
func FromYAML(data []byte) (Config, error) {
	var m map[string]any
	if err := yaml.Unmarshal(data, &m); err != nil {
		return Config{}, fmt.Errorf("parse yaml: %w", err)
	}
	return New(m), nil
}

// FromJSON parses JSON data into a Config.
func FromJSON(data []byte) (Config, error) {
	var m map[string]any
	if err := json.Unmarshal(data, &m); err != nil {
		return Config{}, fmt.Errorf("parse json: %w", err)
	}
	return New(m), nil
}

// ExpandEnv returns a copy with environment references expanded in every
// string value. Unset variables without a default are left as written.
func (c Config) ExpandEnv() (Config, error) {
	return c.ExpandWith(template.Env)
}

// ExpandWith is ExpandEnv with a custom variable source.
func (c Config) ExpandWith(lookup template.LookupFunc) (Config, error) {
	exp := template.NewExpander(template.WithDollarStyle(false))
	m, err := exp.ExpandMap(c.data, lookup)
	if err != nil {
		return Config{}, fmt.Errorf("expand config: %w", err)
	}
	return New(m), nil
}
