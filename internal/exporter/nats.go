package exporter

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"slices"
	"strings"

	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"
)

// KeyValue is the subset of a jetstream key value bucket used to store documents.
// It is implemented by [jetstream.KeyValue].
type KeyValue interface {
	Put(ctx context.Context, key string, value []byte) (uint64, error)
	Get(ctx context.Context, key string) (jetstream.KeyValueEntry, error)
	Keys(ctx context.Context, opts ...jetstream.WatchOpt) ([]string, error)
}

// NATS implements a Store that keeps every document in a jetstream key value bucket.
//
// Putting a key replaces its previous value, so indexing a document again overwrites it.
// Keys are the base64url encoded document ids, as ids may contain characters not permitted in keys.
type NATS struct {
	Bucket KeyValue

	conn *nats.Conn // connection to close, if any
}

// DialNATS connects to the nats server at url and creates or updates the bucket for the given index.
// The bucket is named "<prefix>_<index>", with invalid characters replaced.
func DialNATS(ctx context.Context, url, prefix, index string) (*NATS, error) {
	conn, err := nats.Connect(url, nats.Name("harvester"))
	if err != nil {
		return nil, fmt.Errorf("failed to connect to nats: %w", err)
	}

	js, err := jetstream.New(conn)
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to create jetstream context: %w", err)
	}

	bucket, err := js.CreateOrUpdateKeyValue(ctx, jetstream.KeyValueConfig{
		Bucket:      BucketName(prefix, index),
		Description: "harvested documents of index " + index,
		History:     1,
	})
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to create key value bucket: %w", err)
	}

	return &NATS{Bucket: bucket, conn: conn}, nil
}

// BucketName returns the name of the bucket holding documents of the given index.
func BucketName(prefix, index string) string {
	return strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_':
			return r
		default:
			return '_'
		}
	}, prefix+"_"+index)
}

func natsKey(id string) string {
	return base64.RawURLEncoding.EncodeToString([]byte(id))
}

// BulkIndex puts each item into the bucket.
func (ns *NATS) BulkIndex(ctx context.Context, items []Item) []error {
	errs := make([]error, len(items))
	for i, item := range items {
		if _, err := ns.Bucket.Put(ctx, natsKey(item.ID), item.Body); err != nil {
			errs[i] = fmt.Errorf("failed to put document: %w", err)
		}
	}
	return errs
}

func (ns *NATS) Get(ctx context.Context, id string) ([]byte, error) {
	entry, err := ns.Bucket.Get(ctx, natsKey(id))
	if errors.Is(err, jetstream.ErrKeyNotFound) || errors.Is(err, jetstream.ErrKeyDeleted) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get document: %w", err)
	}
	return entry.Value(), nil
}

// IDs returns the ids of all documents in ascending order.
func (ns *NATS) IDs(ctx context.Context) ([]string, error) {
	keys, err := ns.Bucket.Keys(ctx)
	if errors.Is(err, jetstream.ErrNoKeysFound) {
		return []string{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to list documents: %w", err)
	}

	ids := make([]string, 0, len(keys))
	for _, key := range keys {
		id, err := base64.RawURLEncoding.DecodeString(key)
		if err != nil {
			// not written by us
			continue
		}
		ids = append(ids, string(id))
	}
	slices.Sort(ids)
	return ids, nil
}

func (ns *NATS) Close() error {
	if ns.conn == nil {
		return nil
	}
	err := ns.conn.Drain()
	if errors.Is(err, nats.ErrConnectionClosed) {
		return nil
	}
	return err
}
