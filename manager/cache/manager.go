package cache

import (
	"sync"

	"github.com/google/uuid"
)

type Entry[T any] struct {
	ID   uuid.UUID
	Path string
	Item T

	// memory cost charged to the budget
	Cost int64

	Stats *EntryStats
}

// Manager maps file paths to cached items of one kind.
type Manager[T any] struct {
	storage       map[string]*Entry[T]
	storageLocker sync.RWMutex

	budget *Budget
}

func NewManager[T any](budget *Budget) *Manager[T] {
	return &Manager[T]{
		storage: make(map[string]*Entry[T]),
		budget:  budget,
	}
}

// Get returns the cached item at path and counts a read.
func (m *Manager[T]) Get(path string) (T, bool) {
	m.storageLocker.RLock()
	defer m.storageLocker.RUnlock()

	entry, ok := m.storage[path]
	if !ok {
		var zero T
		return zero, false
	}

	entry.Stats.Reads.Add(1)
	return entry.Item, true
}

// Put stores item at path. An item already cached is replaced in place and
// its cost updated without an admission check; a new one must fit the budget.
// Put reports whether item is now cached.
func (m *Manager[T]) Put(path string, item T, cost int64) bool {
	m.storageLocker.Lock()
	defer m.storageLocker.Unlock()

	if entry, ok := m.storage[path]; ok {
		m.budget.resize(cost - entry.Cost)
		entry.Item = item
		entry.Cost = cost
		entry.Stats.Writes.Add(1)
		return true
	}

	if !m.budget.admit(path, cost) {
		return false
	}

	uid, _ := uuid.NewV7()
	entry := &Entry[T]{
		ID:    uid,
		Path:  path,
		Item:  item,
		Cost:  cost,
		Stats: newEntryStats(),
	}
	entry.Stats.Writes.Add(1)
	m.storage[path] = entry
	return true
}

// LoadOrStore returns the item already cached at path, or caches item when the
// budget admits it. cached is false when item was refused.
func (m *Manager[T]) LoadOrStore(path string, item T, cost int64) (actual T, cached bool) {
	m.storageLocker.Lock()
	defer m.storageLocker.Unlock()

	if entry, ok := m.storage[path]; ok {
		entry.Stats.Reads.Add(1)
		return entry.Item, true
	}

	if !m.budget.admit(path, cost) {
		return item, false
	}

	uid, _ := uuid.NewV7()
	m.storage[path] = &Entry[T]{
		ID:    uid,
		Path:  path,
		Item:  item,
		Cost:  cost,
		Stats: newEntryStats(),
	}
	return item, true
}

func (m *Manager[T]) Contains(path string) bool {
	m.storageLocker.RLock()
	defer m.storageLocker.RUnlock()

	_, ok := m.storage[path]
	return ok
}

func (m *Manager[T]) Remove(path string) (T, bool) {
	m.storageLocker.Lock()
	defer m.storageLocker.Unlock()

	entry, ok := m.storage[path]
	if !ok {
		var zero T
		return zero, false
	}

	delete(m.storage, path)
	m.budget.release(path, entry.Cost)
	return entry.Item, true
}

// RemoveIf drops every entry matching fn and returns the dropped items.
func (m *Manager[T]) RemoveIf(fn func(path string, item T) bool) []T {
	m.storageLocker.Lock()
	defer m.storageLocker.Unlock()

	var out []T
	for path, entry := range m.storage {
		if fn(path, entry.Item) {
			delete(m.storage, path)
			m.budget.release(path, entry.Cost)
			out = append(out, entry.Item)
		}
	}
	return out
}

// Entries returns a snapshot of the cached entries.
func (m *Manager[T]) Entries() []*Entry[T] {
	m.storageLocker.RLock()
	defer m.storageLocker.RUnlock()

	out := make([]*Entry[T], 0, len(m.storage))
	for _, entry := range m.storage {
		out = append(out, entry)
	}
	return out
}

func (m *Manager[T]) Len() int {
	m.storageLocker.RLock()
	defer m.storageLocker.RUnlock()
	return len(m.storage)
}
