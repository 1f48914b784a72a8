package cache

import (
	"slices"
	"sync"
)

// Budget is the item and byte allowance shared by every Manager of a kernel.
// Admission never evicts: once the budget is spent, new items are refused and
// their owners write through to disk.
type Budget struct {
	mu sync.Mutex

	maxItems  int
	maxMemory int64

	items  int
	memory int64

	// admitted paths, most recent last
	candidates []string
}

func NewBudget(maxItems int, maxMemory int64) *Budget {
	return &Budget{maxItems: maxItems, maxMemory: maxMemory}
}

func (b *Budget) admit(path string, cost int64) bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.items >= b.maxItems || b.maxMemory-b.memory < cost {
		return false
	}

	b.items++
	b.memory += cost
	b.candidates = append(b.candidates, path)
	return true
}

func (b *Budget) resize(delta int64) {
	b.mu.Lock()
	b.memory += delta
	b.mu.Unlock()
}

func (b *Budget) release(path string, cost int64) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.items--
	b.memory -= cost
	if i := slices.Index(b.candidates, path); i >= 0 {
		b.candidates = slices.Delete(b.candidates, i, i+1)
	}
}

func (b *Budget) Items() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.items
}

func (b *Budget) Memory() int64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.memory
}

func (b *Budget) MaxMemory() int64 {
	return b.maxMemory
}

// Candidates lists the admitted paths in admission order.
func (b *Budget) Candidates() []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return slices.Clone(b.candidates)
}
