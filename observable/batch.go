package observable

import "sync"

// batch tracks nested batch scopes. It has its own lock so that opening or
// closing a scope never waits on a container's data lock.
type batch struct {
	mu    sync.Mutex
	depth int
	dirty bool
}

func (b *batch) begin() {
	b.mu.Lock()
	b.depth++
	b.mu.Unlock()
}

// end closes one scope and reports whether a Reset is owed.
func (b *batch) end() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.depth == 0 {
		return false
	}
	b.depth--
	if b.depth == 0 && b.dirty {
		b.dirty = false
		return true
	}
	return false
}

// absorb records a state change and reports whether its notifications must
// be suppressed because a batch is open.
func (b *batch) absorb() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.depth > 0 {
		b.dirty = true
		return true
	}
	return false
}

// open reports whether a batch scope is open.
func (b *batch) open() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.depth > 0
}
