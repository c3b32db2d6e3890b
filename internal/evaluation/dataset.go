// Package evaluation replays scripted conversations through the agent
// graph and measures how well design choices are extracted.
package evaluation

import (
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/vintoniuk/anadeabot/internal/conversation"
)

// Dataset is a set of conversations with expected states.
type Dataset struct {
	Conversations []Conversation `yaml:"conversations"`
}

// Conversation is an ordered list of user turns.
type Conversation struct {
	Name  string `yaml:"name,omitempty"`
	Turns []Turn `yaml:"turns"`
}

// Turn is one user message, optionally with the state expected after it.
type Turn struct {
	UserMessage   string         `yaml:"user_message"`
	ExpectedState *ExpectedState `yaml:"expected_state,omitempty"`
}

// ExpectedState is the part of the state a turn is checked against.
type ExpectedState struct {
	Design conversation.Design `yaml:"design"`
}

// LoadDataset reads a YAML dataset file.
func LoadDataset(path string) (Dataset, error) {
	f, err := os.Open(path)
	if err != nil {
		return Dataset{}, fmt.Errorf("open dataset: %w", err)
	}
	defer f.Close()
	return ParseDataset(f)
}

// ParseDataset decodes a YAML dataset.
func ParseDataset(r io.Reader) (Dataset, error) {
	var ds Dataset
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&ds); err != nil {
		return Dataset{}, fmt.Errorf("parse dataset: %w", err)
	}
	for i, c := range ds.Conversations {
		if len(c.Turns) == 0 {
			return Dataset{}, fmt.Errorf("conversation %d: no turns", i)
		}
		for j, t := range c.Turns {
			if t.UserMessage == "" {
				return Dataset{}, fmt.Errorf("conversation %d turn %d: empty user_message", i, j)
			}
		}
	}
	return ds, nil
}
