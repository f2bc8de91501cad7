package exporter

import (
	"context"
	"fmt"
	"slices"
	"sync"
)

// Map implements an in-memory Store.
//
// The zero value is ready to use.
type Map struct {
	l     sync.RWMutex
	data  map[string][]byte
	order []string // ids in the order they were first indexed
}

// BulkIndex stores items in memory.
func (mp *Map) BulkIndex(ctx context.Context, items []Item) []error {
	if err := ctx.Err(); err != nil {
		return fill(len(items), err)
	}

	mp.l.Lock()
	defer mp.l.Unlock()

	if mp.data == nil {
		mp.data = make(map[string][]byte, len(items))
	}
	for _, item := range items {
		if _, ok := mp.data[item.ID]; !ok {
			mp.order = append(mp.order, item.ID)
		}
		mp.data[item.ID] = slices.Clone(item.Body)
	}
	return make([]error, len(items))
}

// Get returns the document with the given id.
func (mp *Map) Get(ctx context.Context, id string) ([]byte, error) {
	mp.l.RLock()
	defer mp.l.RUnlock()

	body, ok := mp.data[id]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrNotFound, id)
	}
	return slices.Clone(body), nil
}

// IDs returns the ids of documents in the order they were first indexed.
func (mp *Map) IDs(ctx context.Context) ([]string, error) {
	mp.l.RLock()
	defer mp.l.RUnlock()

	return slices.Clone(mp.order), nil
}

func (mp *Map) Close() error {
	return nil // no-op
}
