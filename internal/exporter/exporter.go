// Package exporter implements sinks that write serialized documents into an index.
package exporter

import (
	"context"
	"errors"
	"io"
)

// Item is a single serialized document.
type Item struct {
	ID   string // document id, the subject of the document
	Body []byte // json encoded document
}

// Sink writes documents into an index.
//
// BulkIndex may be called concurrently.
type Sink interface {
	io.Closer

	// BulkIndex writes items into the index, replacing documents with the same id.
	// It returns exactly one error per item; a nil error means the item was acknowledged.
	BulkIndex(ctx context.Context, items []Item) []error
}

// Store is a sink that can read back the documents it holds.
type Store interface {
	Sink

	// Get returns the body of the document with the given id.
	// If no such document exists, returns an error wrapping [ErrNotFound].
	Get(ctx context.Context, id string) ([]byte, error)

	// IDs returns the ids of all stored documents.
	IDs(ctx context.Context) ([]string, error)
}

// ErrNotFound indicates that a document does not exist.
var ErrNotFound = errors.New("document not found")

// fill returns a slice holding err n times.
func fill(n int, err error) []error {
	errs := make([]error, n)
	for i := range errs {
		errs[i] = err
	}
	return errs
}
