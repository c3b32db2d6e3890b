package evaluation

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vintoniuk/anadeabot/internal/agent"
	"github.com/vintoniuk/anadeabot/internal/catalog"
	"github.com/vintoniuk/anadeabot/internal/conversation"
	"github.com/vintoniuk/anadeabot/pkg/convgraph/capability"
	"github.com/vintoniuk/anadeabot/pkg/convgraph/llm"
)

const datasetYAML = `
conversations:
  - name: straight
    turns:
      - user_message: I want a blue shirt
        expected_state:
          design:
            color: blue
      - user_message: size M please
        expected_state:
          design:
            color: blue
            size: M
      - user_message: thanks
  - name: changes
    turns:
      - user_message: make it red
        expected_state:
          design:
            color: red
      - user_message: actually green, and embroidery
        expected_state:
          design:
            color: green
            printing: Embroidery
`

// keywordClassifier extracts catalog options mentioned in the last user
// message and reports no intent.
func keywordClassifier(missSizes bool) capability.Classifier {
	return capability.ClassifierFunc(func(_ context.Context, history []llm.Message, schema capability.Schema) (capability.Record, error) {
		if schema.Name != agent.SchemaDesign {
			return capability.Record{}, nil
		}
		var text string
		for i := len(history) - 1; i >= 0; i-- {
			if history[i].Role == llm.RoleUser {
				text = history[i].Content
				break
			}
		}
		rec := capability.Record{}
		for _, attr := range conversation.Attributes {
			if missSizes && attr == conversation.AttrSize {
				continue
			}
			for _, opt := range catalog.Options(attr) {
				if opt != catalog.Custom && containsWord(text, opt) {
					rec[attr] = opt
				}
			}
		}
		return rec, nil
	})
}

func containsWord(text, word string) bool {
	for _, f := range strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return r == ' ' || r == ',' || r == '.'
	}) {
		if f == strings.ToLower(word) {
			return true
		}
	}
	return strings.Contains(strings.ToLower(text), " "+strings.ToLower(word)) && strings.Contains(word, " ")
}

var echoGenerator = capability.GeneratorFunc(func(context.Context, []llm.Message, []llm.Tool) (llm.Message, error) {
	return llm.Assistant("ok"), nil
})

func loadTestDataset(t *testing.T) Dataset {
	t.Helper()
	ds, err := ParseDataset(strings.NewReader(datasetYAML))
	require.NoError(t, err)
	return ds
}

// TestParseDataset verifies the YAML layout.
func TestParseDataset(t *testing.T) {
	ds := loadTestDataset(t)
	require.Len(t, ds.Conversations, 2)
	c := ds.Conversations[0]
	assert.Equal(t, "straight", c.Name)
	require.Len(t, c.Turns, 3)
	assert.Equal(t, conversation.Design{Color: "blue", Size: "M"}, c.Turns[1].ExpectedState.Design)
	assert.Nil(t, c.Turns[2].ExpectedState)
}

// TestParseDataset_Errors verifies malformed datasets are rejected.
func TestParseDataset_Errors(t *testing.T) {
	_, err := ParseDataset(strings.NewReader("conversations:\n  - turns: []\n"))
	assert.ErrorContains(t, err, "no turns")

	_, err = ParseDataset(strings.NewReader("conversations:\n  - turns:\n      - expected_state: {}\n"))
	assert.ErrorContains(t, err, "empty user_message")

	_, err = ParseDataset(strings.NewReader("conversation: []\n"))
	assert.ErrorContains(t, err, "parse dataset")
}

// TestLoadDataset verifies reading from disk.
func TestLoadDataset(t *testing.T) {
	path := filepath.Join(t.TempDir(), "choice_detection.yaml")
	require.NoError(t, os.WriteFile(path, []byte(datasetYAML), 0o600))

	ds, err := LoadDataset(path)
	require.NoError(t, err)
	assert.Len(t, ds.Conversations, 2)
}

// TestRun_Perfect verifies a faithful classifier scores full accuracy.
func TestRun_Perfect(t *testing.T) {
	caps := capability.Set{Classifier: keywordClassifier(false), Generator: echoGenerator}
	report, err := NewRunner(caps, WithConcurrency(2)).Run(context.Background(), loadTestDataset(t))
	require.NoError(t, err)

	require.Len(t, report.Samples, 4)
	assert.Equal(t, 0, report.Samples[0].Conversation)
	assert.Equal(t, 1, report.Samples[3].Conversation)
	assert.Equal(t, 1, report.Samples[3].Turn)
	assert.InDelta(t, 1.0, report.Accuracy, 1e-9)
	for _, attr := range conversation.Attributes {
		assert.InDelta(t, 1.0, report.Attributes[attr], 1e-9, attr)
	}
	assert.Empty(t, report.Mismatches())
}

// TestRun_Mismatch verifies misses are scored and reported.
func TestRun_Mismatch(t *testing.T) {
	caps := capability.Set{Classifier: keywordClassifier(true), Generator: echoGenerator}
	report, err := NewRunner(caps).Run(context.Background(), loadTestDataset(t))
	require.NoError(t, err)

	assert.InDelta(t, 0.75, report.Accuracy, 1e-9)
	assert.InDelta(t, 0.75, report.Attributes[conversation.AttrSize], 1e-9)
	assert.InDelta(t, 1.0, report.Attributes[conversation.AttrColor], 1e-9)

	miss := report.Mismatches()
	require.Len(t, miss, 1)
	assert.Equal(t, "size M please", miss[0].UserMessage)

	var buf bytes.Buffer
	require.NoError(t, report.Write(&buf))
	assert.Contains(t, buf.String(), "accuracy: 0.750")
	assert.Contains(t, buf.String(), `message="size M please"`)
	assert.Contains(t, buf.String(), "expected:  color: blue, size: M")
}

// TestRun_Failure verifies a failing turn aborts the run.
func TestRun_Failure(t *testing.T) {
	failing := capability.GeneratorFunc(func(context.Context, []llm.Message, []llm.Tool) (llm.Message, error) {
		return llm.Message{}, errors.New("quota exceeded")
	})
	caps := capability.Set{Classifier: keywordClassifier(false), Generator: failing}

	_, err := NewRunner(caps).Run(context.Background(), loadTestDataset(t))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "opening turn")
	assert.Contains(t, err.Error(), "quota exceeded")
}

// TestNewReport_Empty verifies an empty run scores zero.
func TestNewReport_Empty(t *testing.T) {
	r := NewReport(nil)
	assert.Zero(t, r.Accuracy)
	assert.Empty(t, r.Mismatches())
}
