package store

import (
	"context"
	"sync"
)

// MemoryBackend keeps every collection in process memory.
type MemoryBackend struct {
	collections map[Kind]*memoryCollection
}

// NewMemoryBackend creates empty menu, category and dish collections.
func NewMemoryBackend() *MemoryBackend {
	b := &MemoryBackend{collections: make(map[Kind]*memoryCollection)}
	for _, k := range Kinds() {
		b.collections[k] = newMemoryCollection(k)
	}
	return b
}

// Collection returns the collection for kind, or nil for an unknown kind.
func (b *MemoryBackend) Collection(kind Kind) Collection {
	c, ok := b.collections[kind]
	if !ok {
		return nil
	}
	return c
}

// memoryCollection stores records by id and remembers insertion order.
// Records are cloned on the way in and out so callers never share state.
type memoryCollection struct {
	mu    sync.Mutex
	kind  Kind
	order []string
	items map[string]*Record
}

func newMemoryCollection(kind Kind) *memoryCollection {
	return &memoryCollection{
		kind:  kind,
		items: make(map[string]*Record),
	}
}

func (c *memoryCollection) Insert(_ context.Context, rec *Record) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, exists := c.items[rec.ID]; exists {
		return ErrDuplicateKey
	}
	c.items[rec.ID] = rec.Clone()
	c.order = append(c.order, rec.ID)
	return nil
}

func (c *memoryCollection) Get(_ context.Context, id string) (*Record, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	rec, ok := c.items[id]
	if !ok {
		return nil, notFound(c.kind, id)
	}
	return rec.Clone(), nil
}

func (c *memoryCollection) List(_ context.Context) ([]*Record, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]*Record, 0, len(c.order))
	for _, id := range c.order {
		out = append(out, c.items[id].Clone())
	}
	return out, nil
}

func (c *memoryCollection) Delete(_ context.Context, id string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.items[id]; !ok {
		return nil
	}
	delete(c.items, id)
	for i, v := range c.order {
		if v == id {
			c.order = append(c.order[:i], c.order[i+1:]...)
			break
		}
	}
	return nil
}

func (c *memoryCollection) Replace(_ context.Context, rec *Record) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.items[rec.ID]; !ok {
		return notFound(c.kind, rec.ID)
	}
	c.items[rec.ID] = rec.Clone()
	return nil
}
