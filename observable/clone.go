package observable

// Cloner is implemented by values that own mutable memory, such as slices or
// pointers. Containers store a clone of what they are given and hand out
// clones of what they hold, so no caller ever shares memory with a stored
// value.
type Cloner[T any] interface {
	Clone() T
}

func cloneOf[T any](v T) T {
	if c, ok := any(v).(Cloner[T]); ok {
		return c.Clone()
	}
	return v
}

func cloneAll[T any](items []T) []T {
	out := make([]T, len(items))
	for i, item := range items {
		out[i] = cloneOf(item)
	}
	return out
}
