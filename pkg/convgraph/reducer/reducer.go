// Package reducer provides the merge functions conversation state fields
// are built from. Each reducer combines the current value of one field with
// an update to that field and must not mutate either argument.
package reducer

// Reducer merges an update into the current value of a field.
type Reducer[T any] func(current, update T) T

// Identified is implemented by values that carry a stable identity.
type Identified interface {
	Identity() string
}

// Append concatenates update onto current.
func Append[T any](current, update []T) []T {
	if len(update) == 0 {
		return current
	}
	out := make([]T, 0, len(current)+len(update))
	out = append(out, current...)
	return append(out, update...)
}

// AppendByID appends update onto current, except that an element whose
// identity matches one already present replaces it in place. Elements with
// an empty identity are always appended.
func AppendByID[T Identified](current, update []T) []T {
	if len(update) == 0 {
		return current
	}
	out := make([]T, 0, len(current)+len(update))
	out = append(out, current...)
	index := make(map[string]int, len(out))
	for i, v := range out {
		if id := v.Identity(); id != "" {
			index[id] = i
		}
	}
	for _, v := range update {
		id := v.Identity()
		if id == "" {
			out = append(out, v)
			continue
		}
		if i, ok := index[id]; ok {
			out[i] = v
			continue
		}
		index[id] = len(out)
		out = append(out, v)
	}
	return out
}

// LastValue overwrites current with *update when update is non-nil.
func LastValue[T any](current T, update *T) T {
	if update == nil {
		return current
	}
	return *update
}

// Replace returns update wholesale when it is non-nil, otherwise current.
// An empty non-nil slice clears the field.
func Replace[T any](current, update []T) []T {
	if update == nil {
		return current
	}
	out := make([]T, len(update))
	copy(out, update)
	return out
}

// Coalesce returns update unless it is the zero value.
func Coalesce[T comparable](current, update T) T {
	var zero T
	if update == zero {
		return current
	}
	return update
}
