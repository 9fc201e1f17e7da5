package observable

import (
	"sync"
	"sync/atomic"
)

const stripeBits = 5

const stripeCount = 1 << stripeBits

type stripe[K comparable, V any] struct {
	mu    sync.RWMutex
	items map[K]V
}

// Map is a concurrent keyed container with change notifications. Keys are
// snowflake-like integers; each key hashes to one of a fixed set of stripes
// and only that stripe is locked for single-key operations.
//
// Single adds and removes raise Add or Remove followed by CountChanged.
// Updates of an existing key raise Reset: consumers of an unordered key space
// cannot apply a positional replace.
type Map[K ~uint64, V any] struct {
	stripes [stripeCount]stripe[K, V]
	count   atomic.Int64
	batch   batch
	notify  notifier[MapChange[K, V]]
}

func NewMap[K ~uint64, V any](opts ...Option) *Map[K, V] {
	cfg := newConfig(opts)
	m := &Map[K, V]{}
	m.notify.dispatcher = cfg.dispatcher
	for i := range m.stripes {
		m.stripes[i].items = make(map[K]V)
	}
	return m
}

func (m *Map[K, V]) stripe(key K) *stripe[K, V] {
	return &m.stripes[(uint64(key)*0x9E3779B97F4A7C15)>>(64-stripeBits)]
}

// Subscribe registers fn for change notifications and returns a function
// that removes it.
func (m *Map[K, V]) Subscribe(fn func(MapChange[K, V])) func() {
	return m.notify.subscribe(fn)
}

func (m *Map[K, V]) Len() int {
	return int(m.count.Load())
}

// Get returns the value for key, or the zero value when key is absent.
func (m *Map[K, V]) Get(key K) V {
	value, _ := m.TryGetValue(key)
	return value
}

// Set stores value under key, adding or replacing.
func (m *Map[K, V]) Set(key K, value V) {
	s := m.stripe(key)
	s.mu.Lock()
	_, existed := s.items[key]
	s.items[key] = cloneOf(value)
	if !existed {
		m.count.Add(1)
		m.release(s.mu.Unlock, m.addedChanges(key, value))
		return
	}
	m.release(s.mu.Unlock, m.resetChanges(false))
}

func (m *Map[K, V]) TryGetValue(key K) (V, bool) {
	s := m.stripe(key)
	s.mu.RLock()
	defer s.mu.RUnlock()
	value, ok := s.items[key]
	return cloneOf(value), ok
}

func (m *Map[K, V]) ContainsKey(key K) bool {
	s := m.stripe(key)
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.items[key]
	return ok
}

// TryAdd stores value only when key is absent.
func (m *Map[K, V]) TryAdd(key K, value V) bool {
	s := m.stripe(key)
	s.mu.Lock()
	if _, ok := s.items[key]; ok {
		s.mu.Unlock()
		return false
	}
	s.items[key] = cloneOf(value)
	m.count.Add(1)
	m.release(s.mu.Unlock, m.addedChanges(key, value))
	return true
}

// TryRemove deletes key and returns the value it held.
func (m *Map[K, V]) TryRemove(key K) (V, bool) {
	s := m.stripe(key)
	s.mu.Lock()
	value, ok := s.items[key]
	if !ok {
		s.mu.Unlock()
		return value, false
	}
	delete(s.items, key)
	m.count.Add(-1)
	m.release(s.mu.Unlock, m.removedChanges(key, value))
	return value, true
}

// AddOrUpdate stores addValue when key is absent, or update(key, current)
// when it is present, and returns the stored value.
func (m *Map[K, V]) AddOrUpdate(key K, addValue V, update func(K, V) V) V {
	return m.AddOrUpdateFunc(key, func(K) V { return addValue }, update)
}

// AddOrUpdateFunc is AddOrUpdate with a factory for the added value. Both
// functions run under the key's stripe lock and must not call back into m.
// update receives a copy of the current value.
func (m *Map[K, V]) AddOrUpdateFunc(key K, add func(K) V, update func(K, V) V) V {
	s := m.stripe(key)
	s.mu.Lock()
	current, existed := s.items[key]
	var value V
	if existed {
		value = update(key, cloneOf(current))
	} else {
		value = add(key)
		m.count.Add(1)
	}
	s.items[key] = cloneOf(value)

	if existed {
		m.release(s.mu.Unlock, m.resetChanges(false))
	} else {
		m.release(s.mu.Unlock, m.addedChanges(key, value))
	}
	return value
}

// TryUpdate replaces the value under key with the result of update when key
// is present. update returns false to leave the entry untouched, in which
// case nothing is raised. It runs under the stripe lock on a copy of the
// current value.
func (m *Map[K, V]) TryUpdate(key K, update func(V) (V, bool)) bool {
	s := m.stripe(key)
	s.mu.Lock()
	current, ok := s.items[key]
	if !ok {
		s.mu.Unlock()
		return false
	}
	value, changed := update(cloneOf(current))
	if !changed {
		s.mu.Unlock()
		return false
	}
	s.items[key] = cloneOf(value)
	m.release(s.mu.Unlock, m.resetChanges(false))
	return true
}

// GetOrAdd returns the value under key, storing value first when absent.
func (m *Map[K, V]) GetOrAdd(key K, value V) V {
	return m.GetOrAddFunc(key, func(K) V { return value })
}

// GetOrAddFunc is GetOrAdd with a factory, run under the stripe lock. A hit
// on an existing key raises Reset outside a batch; inside a batch it changes
// nothing and so does not count towards the closing Reset.
func (m *Map[K, V]) GetOrAddFunc(key K, add func(K) V) V {
	s := m.stripe(key)
	s.mu.Lock()
	current, existed := s.items[key]
	if existed {
		current = cloneOf(current)
		if m.batch.open() {
			s.mu.Unlock()
			return current
		}
		m.release(s.mu.Unlock, m.resetChanges(false))
		return current
	}
	current = add(key)
	s.items[key] = cloneOf(current)
	m.count.Add(1)
	m.release(s.mu.Unlock, m.addedChanges(key, current))
	return current
}

// AddOrUpdateRange stores every entry of items and raises one Reset.
func (m *Map[K, V]) AddOrUpdateRange(items map[K]V) {
	if len(items) == 0 {
		return
	}
	added := 0
	for key, value := range items {
		s := m.stripe(key)
		s.mu.Lock()
		if _, ok := s.items[key]; !ok {
			added++
			m.count.Add(1)
		}
		s.items[key] = cloneOf(value)
		s.mu.Unlock()
	}
	m.raise(m.resetChanges(added != 0))
}

// RemoveRange deletes every present key and returns how many were removed.
func (m *Map[K, V]) RemoveRange(keys ...K) int {
	removed := 0
	for _, key := range keys {
		s := m.stripe(key)
		s.mu.Lock()
		if _, ok := s.items[key]; ok {
			delete(s.items, key)
			m.count.Add(-1)
			removed++
		}
		s.mu.Unlock()
	}
	if removed > 0 {
		m.raise(m.resetChanges(true))
	}
	return removed
}

// ReplaceAll swaps the whole content for items in one step.
func (m *Map[K, V]) ReplaceAll(items map[K]V) {
	m.lockAll()
	before := m.count.Load()
	for i := range m.stripes {
		m.stripes[i].items = make(map[K]V)
	}
	for key, value := range items {
		m.stripe(key).items[key] = cloneOf(value)
	}
	m.count.Store(int64(len(items)))

	if before == 0 && len(items) == 0 {
		m.unlockAll()
		return
	}
	m.release(m.unlockAll, m.resetChanges(before != int64(len(items))))
}

func (m *Map[K, V]) Clear() {
	m.lockAll()
	before := m.count.Load()
	if before == 0 {
		m.unlockAll()
		return
	}
	for i := range m.stripes {
		m.stripes[i].items = make(map[K]V)
	}
	m.count.Store(0)
	m.release(m.unlockAll, m.resetChanges(true))
}

// Keys returns a copy of the current keys, in no particular order.
func (m *Map[K, V]) Keys() []K {
	keys := make([]K, 0, m.Len())
	for i := range m.stripes {
		s := &m.stripes[i]
		s.mu.RLock()
		for key := range s.items {
			keys = append(keys, key)
		}
		s.mu.RUnlock()
	}
	return keys
}

// Values returns a copy of the current values, in no particular order.
func (m *Map[K, V]) Values() []V {
	values := make([]V, 0, m.Len())
	m.Range(func(_ K, value V) bool {
		values = append(values, value)
		return true
	})
	return values
}

// Range calls fn for every entry until fn returns false. Each stripe is
// copied under its read lock before fn sees it, so fn may call back into m.
func (m *Map[K, V]) Range(fn func(K, V) bool) {
	type entry struct {
		key   K
		value V
	}
	for i := range m.stripes {
		s := &m.stripes[i]
		s.mu.RLock()
		entries := make([]entry, 0, len(s.items))
		for key, value := range s.items {
			entries = append(entries, entry{key, cloneOf(value)})
		}
		s.mu.RUnlock()
		for _, e := range entries {
			if !fn(e.key, e.value) {
				return
			}
		}
	}
}

func (m *Map[K, V]) BeginBatchUpdate() {
	m.batch.begin()
}

// EndBatchUpdate closes one batch scope. Closing the outermost scope raises a
// single Reset if anything changed inside it; at depth zero it does nothing.
func (m *Map[K, V]) EndBatchUpdate() {
	if m.batch.end() {
		m.notify.emit(MapChange[K, V]{Action: ActionReset, Count: m.Len()})
	}
}

func (m *Map[K, V]) lockAll() {
	for i := range m.stripes {
		m.stripes[i].mu.Lock()
	}
}

func (m *Map[K, V]) unlockAll() {
	for i := len(m.stripes) - 1; i >= 0; i-- {
		m.stripes[i].mu.Unlock()
	}
}

// release runs unlock and raises changes. With a dispatcher the changes are
// posted before the lock is released, so queued deliveries keep the order of
// the mutations on each key.
func (m *Map[K, V]) release(unlock func(), changes []MapChange[K, V]) {
	if m.notify.dispatcher != nil {
		m.raise(changes)
		unlock()
		return
	}
	unlock()
	m.raise(changes)
}

func (m *Map[K, V]) raise(changes []MapChange[K, V]) {
	if m.batch.absorb() {
		return
	}
	m.notify.emit(changes...)
}

func (m *Map[K, V]) addedChanges(key K, value V) []MapChange[K, V] {
	count := m.Len()
	return []MapChange[K, V]{
		{Action: ActionAdd, Key: key, NewValue: value, Count: count},
		{Action: ActionCountChanged, Count: count},
	}
}

func (m *Map[K, V]) removedChanges(key K, value V) []MapChange[K, V] {
	count := m.Len()
	return []MapChange[K, V]{
		{Action: ActionRemove, Key: key, OldValue: value, Count: count},
		{Action: ActionCountChanged, Count: count},
	}
}

func (m *Map[K, V]) resetChanges(countChanged bool) []MapChange[K, V] {
	count := m.Len()
	if !countChanged {
		return []MapChange[K, V]{{Action: ActionReset, Count: count}}
	}
	return []MapChange[K, V]{
		{Action: ActionReset, Count: count},
		{Action: ActionCountChanged, Count: count},
	}
}
