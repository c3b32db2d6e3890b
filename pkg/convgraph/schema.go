package convgraph

// Schema describes how partial updates of type U merge into state S.
//
// Each state field owns a reducer; Merge applies the reducer of every field
// present in the update and leaves the others untouched. Merge must be pure
// and total: any update accepted by Fields, including one with no fields
// present, produces a state.
type Schema[S, U any] interface {
	// Merge returns current with update applied.
	Merge(current S, update U) S

	// Fields names the state fields present in update. It returns an error
	// when the update is malformed, such as a message with an unknown role.
	Fields(update U) ([]string, error)
}

// FieldLister is implemented by schemas that can enumerate their fields.
// When available, Compile rejects Writes declarations naming unknown fields.
type FieldLister interface {
	FieldNames() []string
}
