package convgraph

import (
	"context"
	"errors"
)

// Test state types used across tests

// testState is a small reducer-merged state.
type testState struct {
	Log   []string `json:"log"`
	Count int      `json:"count"`
	Label string   `json:"label"`
}

// testUpdate is a partial update of testState. Nil fields are absent.
type testUpdate struct {
	Log   []string
	Count *int
	Label *string
	Bad   bool
}

var errBadUpdate = errors.New("bad update")

// testSchema appends to Log and overwrites Count and Label.
type testSchema struct{}

func (testSchema) Merge(current testState, u testUpdate) testState {
	next := current
	if len(u.Log) > 0 {
		next.Log = append(append([]string(nil), current.Log...), u.Log...)
	}
	if u.Count != nil {
		next.Count = *u.Count
	}
	if u.Label != nil {
		next.Label = *u.Label
	}
	return next
}

func (testSchema) Fields(u testUpdate) ([]string, error) {
	if u.Bad {
		return nil, errBadUpdate
	}
	var fields []string
	if u.Log != nil {
		fields = append(fields, "log")
	}
	if u.Count != nil {
		fields = append(fields, "count")
	}
	if u.Label != nil {
		fields = append(fields, "label")
	}
	return fields, nil
}

func (testSchema) FieldNames() []string {
	return []string{"log", "count", "label"}
}

func newTestGraph() *Graph[testState, testUpdate] {
	return NewGraph[testState, testUpdate](testSchema{})
}

// Helper node functions

// logNode appends its own name to Log.
func logNode(name string) NodeFunc[testState, testUpdate] {
	return func(ctx Context, s testState) (testUpdate, error) {
		return testUpdate{Log: []string{name}}, nil
	}
}

// incNode increments Count.
func incNode(ctx Context, s testState) (testUpdate, error) {
	n := s.Count + 1
	return testUpdate{Count: &n}, nil
}

// labelNode sets Label.
func labelNode(label string) NodeFunc[testState, testUpdate] {
	return func(ctx Context, s testState) (testUpdate, error) {
		return testUpdate{Label: &label}, nil
	}
}

// failingNode returns err.
func failingNode(err error) NodeFunc[testState, testUpdate] {
	return func(ctx Context, s testState) (testUpdate, error) {
		return testUpdate{}, err
	}
}

// routeByLabel routes to the current Label.
func routeByLabel(ctx Context, s testState) string {
	return s.Label
}

func ptr[T any](v T) *T {
	return &v
}

func bg() context.Context {
	return context.Background()
}
