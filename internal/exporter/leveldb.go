package exporter

import (
	"context"
	"errors"
	"fmt"

	"github.com/syndtr/goleveldb/leveldb"
	"github.com/syndtr/goleveldb/leveldb/storage"
)

// LevelDB implements a Store backed by a leveldb database.
// Keys are document ids, values are document bodies.
type LevelDB struct {
	DB *leveldb.DB
}

// OpenLevelDB opens (or creates) the leveldb database at path.
func OpenLevelDB(path string) (*LevelDB, error) {
	db, err := leveldb.OpenFile(path, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to open leveldb: %w", err)
	}
	return &LevelDB{DB: db}, nil
}

// NewMemoryLevelDB creates a new LevelDB that is held entirely in memory.
func NewMemoryLevelDB() (*LevelDB, error) {
	db, err := leveldb.Open(storage.NewMemStorage(), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to open leveldb: %w", err)
	}
	return &LevelDB{DB: db}, nil
}

// BulkIndex writes all items in a single batch.
func (ldb *LevelDB) BulkIndex(ctx context.Context, items []Item) []error {
	if err := ctx.Err(); err != nil {
		return fill(len(items), err)
	}

	batch := new(leveldb.Batch)
	for _, item := range items {
		batch.Put([]byte(item.ID), item.Body)
	}
	if err := ldb.DB.Write(batch, nil); err != nil {
		return fill(len(items), fmt.Errorf("failed to write batch: %w", err))
	}
	return make([]error, len(items))
}

// Get returns the body of the document with the given id.
func (ldb *LevelDB) Get(ctx context.Context, id string) ([]byte, error) {
	body, err := ldb.DB.Get([]byte(id), nil)
	if errors.Is(err, leveldb.ErrNotFound) {
		return nil, fmt.Errorf("%w: %q", ErrNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get document: %w", err)
	}
	return body, nil
}

// IDs returns the ids of all documents, in ascending byte order.
func (ldb *LevelDB) IDs(ctx context.Context) ([]string, error) {
	it := ldb.DB.NewIterator(nil, nil)
	defer it.Release()

	var ids []string
	for it.Next() {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		ids = append(ids, string(it.Key()))
	}
	if err := it.Error(); err != nil {
		return nil, fmt.Errorf("failed to iterate documents: %w", err)
	}
	return ids, nil
}

func (ldb *LevelDB) Close() error {
	return ldb.DB.Close()
}
