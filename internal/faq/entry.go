package faq

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/vintoniuk/anadeabot/pkg/convgraph/capability"
)

// MetaAnswer is the document metadata key holding the answer.
const MetaAnswer = "answer"

// Entry is a question with its answer.
type Entry struct {
	Question string `yaml:"question" json:"question"`
	Answer   string `yaml:"answer" json:"answer"`
}

// Validate reports whether both sides are present.
func (e Entry) Validate() error {
	if strings.TrimSpace(e.Question) == "" {
		return errors.New("empty question")
	}
	if strings.TrimSpace(e.Answer) == "" {
		return fmt.Errorf("question %q: empty answer", e.Question)
	}
	return nil
}

// Index is a searchable FAQ collection.
type Index interface {
	capability.Retriever
	Add(ctx context.Context, entries []Entry) error
}

func document(id string, e Entry, score float64) capability.Document {
	return capability.Document{
		ID:       id,
		Content:  e.Question,
		Metadata: map[string]string{MetaAnswer: e.Answer},
		Score:    score,
	}
}

// LoadFile reads entries from a YAML or CSV file.
//
// YAML files hold either a list of entries or a mapping with an "faq" list.
// CSV files need a header row with "question" and "answer" columns.
func LoadFile(path string) ([]Entry, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open faq file: %w", err)
	}
	defer f.Close()

	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".yaml", ".yml":
		return ReadYAML(f)
	case ".csv":
		return ReadCSV(f)
	default:
		return nil, fmt.Errorf("unsupported faq file extension: %s", ext)
	}
}

// ReadYAML decodes entries from YAML.
func ReadYAML(r io.Reader) ([]Entry, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("read faq: %w", err)
	}

	var node yaml.Node
	if err := yaml.Unmarshal(data, &node); err != nil {
		return nil, fmt.Errorf("parse faq yaml: %w", err)
	}
	if len(node.Content) == 0 {
		return nil, nil
	}

	var entries []Entry
	root := node.Content[0]
	switch root.Kind {
	case yaml.SequenceNode:
		err = root.Decode(&entries)
	case yaml.MappingNode:
		var doc struct {
			FAQ []Entry `yaml:"faq"`
		}
		err = root.Decode(&doc)
		entries = doc.FAQ
	default:
		err = errors.New("expected a list or a mapping")
	}
	if err != nil {
		return nil, fmt.Errorf("parse faq yaml: %w", err)
	}
	return validate(entries)
}

// ReadCSV decodes entries from CSV with a question/answer header.
func ReadCSV(r io.Reader) ([]Entry, error) {
	records, err := csv.NewReader(r).ReadAll()
	if err != nil {
		return nil, fmt.Errorf("parse faq csv: %w", err)
	}
	if len(records) == 0 {
		return nil, nil
	}

	q, a := -1, -1
	for i, col := range records[0] {
		switch strings.ToLower(strings.TrimSpace(col)) {
		case "question":
			q = i
		case "answer":
			a = i
		}
	}
	if q < 0 || a < 0 {
		return nil, errors.New("parse faq csv: header needs question and answer columns")
	}

	entries := make([]Entry, 0, len(records)-1)
	for _, rec := range records[1:] {
		entries = append(entries, Entry{Question: rec[q], Answer: rec[a]})
	}
	return validate(entries)
}

func validate(entries []Entry) ([]Entry, error) {
	for i, e := range entries {
		if err := e.Validate(); err != nil {
			return nil, fmt.Errorf("entry %d: %w", i, err)
		}
	}
	return entries, nil
}
