package concurrent

import (
	"sync"
	"sync/atomic"
)

// Map is like a Go map[K]V but is safe for concurrent use by multiple
// goroutines without additional locking, and keeps an O(1) length counter.
type Map[K comparable, V any] struct {
	length atomic.Int64
	data   sync.Map
}

// Len returns the current number of elements in the map.
func (m *Map[K, V]) Len() int64 {
	return m.length.Load()
}

// Load returns the value stored for key, or the zero value if absent.
func (m *Map[K, V]) Load(key K) (V, bool) {
	value, ok := m.data.Load(key)
	if !ok {
		var zero V
		return zero, false
	}
	return value.(V), true
}

// Store sets the value for a key.
func (m *Map[K, V]) Store(key K, value V) {
	_, loaded := m.data.LoadOrStore(key, value)
	if !loaded {
		m.length.Add(1)
	} else {
		m.data.Store(key, value)
	}
}

// LoadOrStore returns the existing value for the key if present,
// otherwise stores and returns the given value. loaded is true if the
// value was already present.
func (m *Map[K, V]) LoadOrStore(key K, value V) (V, bool) {
	actual, loaded := m.data.LoadOrStore(key, value)
	if !loaded {
		m.length.Add(1)
	}
	return actual.(V), loaded
}

// LoadAndDelete deletes the value for a key, returning the previous
// value if the key was present.
func (m *Map[K, V]) LoadAndDelete(key K) (V, bool) {
	value, loaded := m.data.LoadAndDelete(key)
	if !loaded {
		var zero V
		return zero, false
	}
	m.length.Add(-1)
	return value.(V), true
}

// Delete deletes the value for a key.
func (m *Map[K, V]) Delete(key K) {
	_, loaded := m.data.LoadAndDelete(key)
	if loaded {
		m.length.Add(-1)
	}
}

// Clear deletes all entries.
func (m *Map[K, V]) Clear() {
	m.data.Clear()
	m.length.Store(0)
}

// Range calls f sequentially for each key and value in the map.
// If f returns false, iteration stops. Range does not correspond to any
// consistent snapshot of the map's contents.
func (m *Map[K, V]) Range(f func(K, V) bool) {
	m.data.Range(func(key, value any) bool {
		return f(key.(K), value.(V))
	})
}
