package evaluation

import (
	"fmt"
	"io"
	"strings"

	"github.com/vintoniuk/anadeabot/internal/conversation"
)

// Report summarises a run.
type Report struct {
	Samples []Sample
	// Accuracy is the share of samples whose whole design matched.
	Accuracy float64
	// Attributes holds per-attribute accuracy, keyed by attribute name.
	Attributes map[string]float64
}

// NewReport scores samples.
func NewReport(samples []Sample) *Report {
	r := &Report{Samples: samples, Attributes: make(map[string]float64, len(conversation.Attributes))}
	if len(samples) == 0 {
		return r
	}

	hits := make(map[string]int, len(conversation.Attributes))
	matches := 0
	for _, s := range samples {
		if s.Match() {
			matches++
		}
		for _, attr := range conversation.Attributes {
			if s.Expected.Get(attr) == s.Predicted.Get(attr) {
				hits[attr]++
			}
		}
	}

	n := float64(len(samples))
	r.Accuracy = float64(matches) / n
	for _, attr := range conversation.Attributes {
		r.Attributes[attr] = float64(hits[attr]) / n
	}
	return r
}

// Mismatches returns the samples whose design differed.
func (r *Report) Mismatches() []Sample {
	var out []Sample
	for _, s := range r.Samples {
		if !s.Match() {
			out = append(out, s)
		}
	}
	return out
}

// Write prints a plain-text summary.
func (r *Report) Write(w io.Writer) error {
	var b strings.Builder
	fmt.Fprintf(&b, "samples: %d\n", len(r.Samples))
	fmt.Fprintf(&b, "accuracy: %.3f\n", r.Accuracy)
	for _, attr := range conversation.Attributes {
		fmt.Fprintf(&b, "  %-9s %.3f\n", attr+":", r.Attributes[attr])
	}
	for _, s := range r.Mismatches() {
		fmt.Fprintf(&b, "mismatch conversation=%d turn=%d message=%q\n", s.Conversation, s.Turn, s.UserMessage)
		fmt.Fprintf(&b, "  expected:  %s\n", inline(s.Expected))
		fmt.Fprintf(&b, "  predicted: %s\n", inline(s.Predicted))
	}
	_, err := io.WriteString(w, b.String())
	return err
}

func inline(d conversation.Design) string {
	return strings.ReplaceAll(d.Format(), "\n", ", ")
}
