package cache

import "github.com/fuad-daoud/discord-mirror/observable"

// View reads several live lists as one sequence. Every call looks at the
// lists as they are at that moment; guilds added or removed in between are
// picked up.
type View[T any] struct {
	lists func() []*observable.List[T]
}

func (v View[T]) Len() int {
	n := 0
	for _, l := range v.lists() {
		n += l.Len()
	}
	return n
}

// Each calls fn for every item until fn returns false. Each list is copied
// before fn sees it.
func (v View[T]) Each(fn func(T) bool) {
	for _, l := range v.lists() {
		for _, item := range l.ToSlice() {
			if !fn(item) {
				return
			}
		}
	}
}

func (v View[T]) Find(match func(T) bool) (T, bool) {
	for _, l := range v.lists() {
		if item, ok := l.FirstOrDefault(match); ok {
			return item, true
		}
	}
	var zero T
	return zero, false
}

func (v View[T]) ToSlice() []T {
	out := []T{}
	for _, l := range v.lists() {
		out = append(out, l.ToSlice()...)
	}
	return out
}
