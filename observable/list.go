package observable

import (
	"reflect"
	"sync"
)

// List is an ordered concurrent container with change notifications. One
// reader/writer lock guards it: any number of readers, or one writer.
//
// Reads that hand out data (ToSlice, Each) return isolated copies, so callers
// never observe a torn state and never hold the lock while iterating.
type List[T any] struct {
	mu     sync.RWMutex
	items  []T
	equal  func(a, b T) bool
	batch  batch
	notify notifier[ListChange[T]]
}

// NewList creates an empty list. equal defines value equality for Remove,
// RemoveRange and Contains; nil means reflect.DeepEqual.
func NewList[T any](equal func(a, b T) bool, opts ...Option) *List[T] {
	cfg := newConfig(opts)
	if equal == nil {
		equal = func(a, b T) bool { return reflect.DeepEqual(a, b) }
	}
	l := &List[T]{equal: equal}
	l.notify.dispatcher = cfg.dispatcher
	return l
}

func (l *List[T]) Subscribe(fn func(ListChange[T])) func() {
	return l.notify.subscribe(fn)
}

func (l *List[T]) Len() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.items)
}

// At returns the item at index and panics when index is out of range.
func (l *List[T]) At(index int) T {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return cloneOf(l.items[index])
}

func (l *List[T]) Add(item T) {
	l.mu.Lock()
	index := len(l.items)
	l.items = append(l.items, cloneOf(item))
	l.release(addedChanges(index, item, len(l.items))...)
}

func (l *List[T]) AddRange(items ...T) {
	if len(items) == 0 {
		return
	}
	l.mu.Lock()
	l.items = append(l.items, cloneAll(items)...)
	l.release(bulkChanges[T](len(l.items), true)...)
}

// Remove deletes the first item equal to item.
func (l *List[T]) Remove(item T) bool {
	l.mu.Lock()
	index := l.indexOf(item)
	if index < 0 {
		l.mu.Unlock()
		return false
	}
	old := l.removeAt(index)
	l.release(removedChanges(index, old, len(l.items))...)
	return true
}

// RemoveAt deletes the item at index and panics when index is out of range.
func (l *List[T]) RemoveAt(index int) T {
	l.mu.Lock()
	if index < 0 || index >= len(l.items) {
		l.mu.Unlock()
		panic("observable: list index out of range")
	}
	old := l.removeAt(index)
	l.release(removedChanges(index, old, len(l.items))...)
	return old
}

// RemoveRange deletes the first match of every given item and returns how
// many were removed.
func (l *List[T]) RemoveRange(items ...T) int {
	l.mu.Lock()
	removed := 0
	for _, item := range items {
		if index := l.indexOf(item); index >= 0 {
			l.removeAt(index)
			removed++
		}
	}
	if removed == 0 {
		l.mu.Unlock()
		return 0
	}
	l.release(bulkChanges[T](len(l.items), true)...)
	return removed
}

// RemoveWhere deletes every item matching match. A single removal raises
// Remove with its index; several raise one Reset.
func (l *List[T]) RemoveWhere(match func(T) bool) int {
	l.mu.Lock()
	kept := l.items[:0:0]
	var (
		first      T
		firstIndex = -1
		removed    int
	)
	for i, item := range l.items {
		if match(item) {
			if removed == 0 {
				first, firstIndex = item, i
			}
			removed++
			continue
		}
		kept = append(kept, item)
	}
	if removed > 0 {
		l.items = kept
	}
	switch {
	case removed == 1:
		l.release(removedChanges(firstIndex, first, len(l.items))...)
	case removed > 1:
		l.release(bulkChanges[T](len(l.items), true)...)
	default:
		l.mu.Unlock()
	}
	return removed
}

// Update replaces the first item matching match with item.
func (l *List[T]) Update(match func(T) bool, item T) bool {
	l.mu.Lock()
	index := l.find(match)
	if index < 0 {
		l.mu.Unlock()
		return false
	}
	old := l.items[index]
	l.items[index] = cloneOf(item)
	l.release(ListChange[T]{Action: ActionReplace, Index: index, OldItem: old, NewItem: item, Count: len(l.items)})
	return true
}

// Upsert replaces the first item matching match, or appends item when none
// does, under one write lock. It reports whether an item was replaced.
func (l *List[T]) Upsert(match func(T) bool, item T) bool {
	l.mu.Lock()
	index := l.find(match)
	if index >= 0 {
		old := l.items[index]
		l.items[index] = cloneOf(item)
		l.release(ListChange[T]{Action: ActionReplace, Index: index, OldItem: old, NewItem: item, Count: len(l.items)})
		return true
	}
	index = len(l.items)
	l.items = append(l.items, cloneOf(item))
	l.release(addedChanges(index, item, len(l.items))...)
	return false
}

// FindIndex returns the index of the first item matching match, or -1.
func (l *List[T]) FindIndex(match func(T) bool) int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.find(match)
}

func (l *List[T]) FirstOrDefault(match func(T) bool) (T, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	if index := l.find(match); index >= 0 {
		return cloneOf(l.items[index]), true
	}
	var zero T
	return zero, false
}

func (l *List[T]) Contains(item T) bool {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.indexOf(item) >= 0
}

// ToSlice returns a copy of the items.
func (l *List[T]) ToSlice() []T {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return cloneAll(l.items)
}

// Each calls fn with a snapshot of the items until fn returns false. Writers
// are not blocked while fn runs.
func (l *List[T]) Each(fn func(int, T) bool) {
	for i, item := range l.ToSlice() {
		if !fn(i, item) {
			return
		}
	}
}

func (l *List[T]) Clear() {
	l.mu.Lock()
	if len(l.items) == 0 {
		l.mu.Unlock()
		return
	}
	l.items = nil
	l.release(bulkChanges[T](0, true)...)
}

// ReplaceAll swaps the content for a copy of items.
func (l *List[T]) ReplaceAll(items []T) {
	l.mu.Lock()
	before := len(l.items)
	l.items = cloneAll(items)
	if before == 0 && len(l.items) == 0 {
		l.mu.Unlock()
		return
	}
	l.release(bulkChanges[T](len(l.items), before != len(l.items))...)
}

func (l *List[T]) BeginBatchUpdate() {
	l.batch.begin()
}

func (l *List[T]) EndBatchUpdate() {
	if l.batch.end() {
		l.notify.emit(ListChange[T]{Action: ActionReset, Index: -1, Count: l.Len()})
	}
}

func (l *List[T]) find(match func(T) bool) int {
	for i, item := range l.items {
		if match(item) {
			return i
		}
	}
	return -1
}

func (l *List[T]) indexOf(item T) int {
	return l.find(func(candidate T) bool { return l.equal(candidate, item) })
}

func (l *List[T]) removeAt(index int) T {
	old := l.items[index]
	l.items = append(l.items[:index:index], l.items[index+1:]...)
	return old
}

// release unlocks the write lock and raises changes. With a dispatcher the
// changes are posted before the lock is released, so queued deliveries carry
// indexes in the order the mutations happened.
func (l *List[T]) release(changes ...ListChange[T]) {
	if l.notify.dispatcher != nil {
		l.raise(changes...)
		l.mu.Unlock()
		return
	}
	l.mu.Unlock()
	l.raise(changes...)
}

func (l *List[T]) raise(changes ...ListChange[T]) {
	if l.batch.absorb() {
		return
	}
	l.notify.emit(changes...)
}

func addedChanges[T any](index int, item T, count int) []ListChange[T] {
	return []ListChange[T]{
		{Action: ActionAdd, Index: index, NewItem: item, Count: count},
		{Action: ActionCountChanged, Index: -1, Count: count},
	}
}

func removedChanges[T any](index int, old T, count int) []ListChange[T] {
	return []ListChange[T]{
		{Action: ActionRemove, Index: index, OldItem: old, Count: count},
		{Action: ActionCountChanged, Index: -1, Count: count},
	}
}

func bulkChanges[T any](count int, countChanged bool) []ListChange[T] {
	reset := ListChange[T]{Action: ActionReset, Index: -1, Count: count}
	if !countChanged {
		return []ListChange[T]{reset}
	}
	return []ListChange[T]{reset, {Action: ActionCountChanged, Index: -1, Count: count}}
}
