package config_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vintoniuk/anadeabot/pkg/convgraph/config"
)

const sampleYAML = `
openai:
  model: gpt-3.5-turbo
  dimensions: 256
  temperature: 0.2
engine:
  step_budget: 25
  timeout: 30s
log.level: debug
checkpoint:
  backend: redis
prompts:
  greeting: Hello there
  goodbye: Bye
  broken: 3
origins: [a, b]
`

func loadSample(t *testing.T) config.Config {
	t.Helper()
	cfg, err := config.FromYAML([]byte(sampleYAML))
	require.NoError(t, err)
	return cfg
}

// TestNew verifies a nil map yields an empty, usable Config.
func TestNew(t *testing.T) {
	cfg := config.New(nil)
	assert.NotNil(t, cfg.Raw())
	assert.False(t, cfg.Has("anything"))
	assert.Equal(t, "d", cfg.String("anything", "d"))
}

// TestDottedPaths verifies nested lookup and literal-key precedence.
func TestDottedPaths(t *testing.T) {
	cfg := loadSample(t)

	assert.Equal(t, "gpt-3.5-turbo", cfg.String("openai.model", ""))
	assert.Equal(t, 256, cfg.Int("openai.dimensions", 0))
	assert.InDelta(t, 0.2, cfg.Float("openai.temperature", 0), 1e-9)
	assert.Equal(t, 30*time.Second, cfg.Duration("engine.timeout", 0))
	assert.Equal(t, "debug", cfg.String("log.level", "info"))

	assert.True(t, cfg.Has("checkpoint.backend"))
	assert.False(t, cfg.Has("checkpoint.backend.extra"))
	assert.False(t, cfg.Has("openai.missing"))
	assert.Equal(t, "fallback", cfg.String("openai.model.name", "fallback"))
}

// TestTypedAccessors verifies conversions and fallbacks per type.
func TestTypedAccessors(t *testing.T) {
	cfg := config.New(map[string]any{
		"s":        "text",
		"b":        true,
		"i":        7,
		"i64":      int64(8),
		"f":        2.0,
		"frac":     2.5,
		"secs":     90,
		"fsecs":    1.5,
		"dur":      time.Minute,
		"baddur":   "soon",
		"strs":     []any{"x", "y"},
		"mixed":    []any{"x", 1},
		"typed":    []string{"z"},
		"notslice": "x",
	})

	tests := []struct {
		name string
		got  any
		want any
	}{
		{"string", cfg.String("s", ""), "text"},
		{"string wrong type", cfg.String("i", "d"), "d"},
		{"bool", cfg.Bool("b", false), true},
		{"bool wrong type", cfg.Bool("s", true), true},
		{"int", cfg.Int("i", 0), 7},
		{"int from int64", cfg.Int("i64", 0), 8},
		{"int from whole float", cfg.Int("f", 0), 2},
		{"int from fractional float", cfg.Int("frac", -1), -1},
		{"float from int", cfg.Float("i", 0), 7.0},
		{"float from int64", cfg.Float("i64", 0), 8.0},
		{"duration int seconds", cfg.Duration("secs", 0), 90 * time.Second},
		{"duration float seconds", cfg.Duration("fsecs", 0), 1500 * time.Millisecond},
		{"duration native", cfg.Duration("dur", 0), time.Minute},
		{"duration invalid", cfg.Duration("baddur", time.Second), time.Second},
		{"slice any", cfg.StringSlice("strs", nil), []string{"x", "y"}},
		{"slice mixed", cfg.StringSlice("mixed", []string{"d"}), []string{"d"}},
		{"slice typed", cfg.StringSlice("typed", nil), []string{"z"}},
		{"slice wrong type", cfg.StringSlice("notslice", []string{"d"}), []string{"d"}},
		{"any missing", cfg.Any("nope", "d"), "d"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.got)
		})
	}
}

// TestStringMapAndSub verifies section access.
func TestStringMapAndSub(t *testing.T) {
	cfg := loadSample(t)

	prompts := cfg.StringMap("prompts")
	assert.Equal(t, map[string]string{"greeting": "Hello there", "goodbye": "Bye"}, prompts)
	assert.Nil(t, cfg.StringMap("openai.model"))

	openai := cfg.Sub("openai")
	assert.Equal(t, "gpt-3.5-turbo", openai.String("model", ""))
	assert.False(t, cfg.Sub("missing").Has("model"))
}

type sampleSettings struct {
	OpenAI struct {
		Model      string `mapstructure:"model"`
		Dimensions int    `mapstructure:"dimensions"`
	} `mapstructure:"openai"`
	Engine struct {
		StepBudget int           `mapstructure:"step_budget"`
		Timeout    time.Duration `mapstructure:"timeout"`
	} `mapstructure:"engine"`
	Checkpoint struct {
		Backend string `mapstructure:"backend"`
		Redis   string `mapstructure:"redis"`
	} `mapstructure:"checkpoint"`
	Origins []string `mapstructure:"origins"`
}

// TestDecode verifies struct decoding with durations and kept defaults.
func TestDecode(t *testing.T) {
	cfg := loadSample(t)

	var s sampleSettings
	s.Checkpoint.Redis = "localhost:6379"
	require.NoError(t, cfg.Decode(&s))

	assert.Equal(t, "gpt-3.5-turbo", s.OpenAI.Model)
	assert.Equal(t, 256, s.OpenAI.Dimensions)
	assert.Equal(t, 25, s.Engine.StepBudget)
	assert.Equal(t, 30*time.Second, s.Engine.Timeout)
	assert.Equal(t, "redis", s.Checkpoint.Backend)
	assert.Equal(t, "localhost:6379", s.Checkpoint.Redis)
	assert.Equal(t, []string{"a", "b"}, s.Origins)
}

// TestDecode_Errors verifies invalid targets and values fail.
func TestDecode_Errors(t *testing.T) {
	var s sampleSettings
	assert.Error(t, config.New(nil).Decode(s))

	bad := config.New(map[string]any{"engine": map[string]any{"timeout": "whenever"}})
	err := bad.Decode(&s)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "decode config")
}

// TestFromJSON verifies JSON numbers decode through the float path.
func TestFromJSON(t *testing.T) {
	cfg, err := config.FromJSON([]byte(`{"http": {"addr": ":8080", "rate": 5}}`))
	require.NoError(t, err)
	assert.Equal(t, ":8080", cfg.String("http.addr", ""))
	assert.Equal(t, 5, cfg.Int("http.rate", 0))

	_, err = config.FromJSON([]byte(`{`))
	assert.ErrorContains(t, err, "parse json")
	_, err = config.FromYAML([]byte("a: [unterminated"))
	assert.ErrorContains(t, err, "parse yaml")
}

// TestFromFile verifies format detection and environment expansion.
func TestFromFile(t *testing.T) {
	t.Setenv("ANADEA_TEST_KEY", "sk-test")
	dir := t.TempDir()

	yamlPath := filepath.Join(dir, "bot.YML")
	require.NoError(t, os.WriteFile(yamlPath, []byte(`
openai:
  api_key: ${ANADEA_TEST_KEY}
  model: ${ANADEA_TEST_UNSET_MODEL:-gpt-3.5-turbo}
prompts:
  price: Shirts from $20
  missing: ${ANADEA_TEST_UNSET}
`), 0o644))

	cfg, err := config.FromFile(yamlPath)
	require.NoError(t, err)
	assert.Equal(t, "sk-test", cfg.String("openai.api_key", ""))
	assert.Equal(t, "gpt-3.5-turbo", cfg.String("openai.model", ""))
	assert.Equal(t, "Shirts from $20", cfg.String("prompts.price", ""))
	assert.Equal(t, "${ANADEA_TEST_UNSET}", cfg.String("prompts.missing", ""))

	jsonPath := filepath.Join(dir, "bot.json")
	require.NoError(t, os.WriteFile(jsonPath, []byte(`{"redis": "${ANADEA_TEST_KEY}"}`), 0o644))
	cfg, err = config.FromFile(jsonPath)
	require.NoError(t, err)
	assert.Equal(t, "sk-test", cfg.String("redis", ""))

	txtPath := filepath.Join(dir, "bot.txt")
	require.NoError(t, os.WriteFile(txtPath, []byte("x"), 0o644))
	_, err = config.FromFile(txtPath)
	assert.ErrorContains(t, err, "unsupported config file extension: .txt")

	_, err = config.FromFile(filepath.Join(dir, "absent.yaml"))
	assert.ErrorContains(t, err, "read config file")
}

// TestExpandWith verifies a custom variable source.
func TestExpandWith(t *testing.T) {
	cfg := config.New(map[string]any{"dsn": "postgres://${USER}@db"})
	out, err := cfg.ExpandWith(func(name string) (any, bool) {
		return "bot", name == "USER"
	})
	require.NoError(t, err)
	assert.Equal(t, "postgres://bot@db", out.String("dsn", ""))
	assert.Equal(t, "postgres://${USER}@db", cfg.String("dsn", ""))
}
