package submit

import (
	"context"
	"errors"
	"io"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/FAU-CDI/harvester/internal/exporter"
	"github.com/FAU-CDI/harvester/internal/flatten"
	"github.com/FAU-CDI/harvester/internal/graph"
	"github.com/FAU-CDI/harvester/internal/stats"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var errRejected = errors.New("rejected")

// recordingSink records batches and rejects documents with an id starting with "bad".
type recordingSink struct {
	l       sync.Mutex
	batches [][]exporter.Item

	delay    time.Duration
	inFlight atomic.Int32
	maxSeen  atomic.Int32

	short bool // return too few results
}

func (rs *recordingSink) BulkIndex(ctx context.Context, items []exporter.Item) []error {
	current := rs.inFlight.Add(1)
	defer rs.inFlight.Add(-1)
	for {
		seen := rs.maxSeen.Load()
		if current <= seen || rs.maxSeen.CompareAndSwap(seen, current) {
			break
		}
	}
	time.Sleep(rs.delay)

	rs.l.Lock()
	rs.batches = append(rs.batches, items)
	rs.l.Unlock()

	if rs.short {
		return nil
	}

	errs := make([]error, len(items))
	for i, item := range items {
		if strings.HasPrefix(item.ID, "bad") {
			errs[i] = errRejected
		}
	}
	return errs
}

func (rs *recordingSink) Close() error { return nil }

func (rs *recordingSink) sizes() []int {
	rs.l.Lock()
	defer rs.l.Unlock()

	sizes := make([]int, len(rs.batches))
	for i, batch := range rs.batches {
		sizes[i] = len(batch)
	}
	return sizes
}

func doc(id string) flatten.Document {
	return flatten.Document{
		ID: graph.Label(id),
		Fields: []flatten.Field{
			{Relation: "http://example.com/p", Values: []any{"<" + id + ">"}},
		},
	}
}

func TestSubmitter_PerDocument(t *testing.T) {
	sink := new(recordingSink)
	submitter := Submitter{Sink: sink}

	ctx := context.Background()
	submitter.Submit(ctx, doc("a"))
	submitter.Submit(ctx, doc("b"))
	assert.Equal(t, []int{1, 1}, sink.sizes(), "every document is sent immediately")

	summary := submitter.Close(ctx)
	assert.Equal(t, Summary{Documents: 2, Submitted: 2}, summary)

	// bodies are not html escaped
	assert.Equal(t, `{"http://example.com/p":"<a>"}`, string(sink.batches[0][0].Body))
	assert.Equal(t, "a", sink.batches[0][0].ID)
}

func TestSubmitter_Batches(t *testing.T) {
	sink := new(recordingSink)
	submitter := Submitter{Sink: sink, BatchSize: 3}

	ctx := context.Background()
	for _, id := range []string{"a", "b", "c", "d", "e"} {
		submitter.Submit(ctx, doc(id))
	}
	assert.Equal(t, []int{3}, sink.sizes(), "remainder is buffered")

	submitter.Flush(ctx)
	assert.Equal(t, []int{3, 2}, sink.sizes())

	submitter.Flush(ctx)
	assert.Equal(t, []int{3, 2}, sink.sizes(), "empty flush sends nothing")

	var ids []string
	for _, batch := range sink.batches {
		for _, item := range batch {
			ids = append(ids, item.ID)
		}
	}
	assert.Equal(t, []string{"a", "b", "c", "d", "e"}, ids)
}

func TestSubmitter_Failures(t *testing.T) {
	var buffer strings.Builder
	st := stats.NewStats(&buffer, false)

	sink := new(recordingSink)
	submitter := Submitter{Sink: sink, Stats: st, BatchSize: 10}

	ctx := context.Background()
	submitter.Submit(ctx, doc("a"))
	submitter.Submit(ctx, doc("bad1"))
	submitter.Submit(ctx, flatten.Document{ID: "broken", Fields: []flatten.Field{
		{Relation: "http://example.com/p", Values: []any{make(chan int)}},
	}})
	submitter.Submit(ctx, doc("c"))

	summary := submitter.Close(ctx)
	assert.Equal(t, Summary{Documents: 4, Submitted: 2, Failed: 2}, summary)
	assert.Equal(t, []int{3}, sink.sizes(), "unserializable document is not sent")

	counts := st.Counts()
	assert.Equal(t, uint64(4), counts.Documents)
	assert.Equal(t, uint64(2), counts.Submitted)
	assert.Equal(t, uint64(2), counts.Failed)

	log := buffer.String()
	assert.Contains(t, log, "FAILED submit document")
	assert.Contains(t, log, "id=bad1")
	assert.Contains(t, log, "id=broken")
}

func TestSubmitter_ShortResponse(t *testing.T) {
	sink := &recordingSink{short: true}
	submitter := Submitter{Sink: sink, BatchSize: 2}

	ctx := context.Background()
	submitter.Submit(ctx, doc("a"))
	submitter.Submit(ctx, doc("b"))

	assert.Equal(t, Summary{Documents: 2, Failed: 2}, submitter.Close(ctx))
}

func TestSubmitter_Concurrent(t *testing.T) {
	sink := &recordingSink{delay: 20 * time.Millisecond}
	submitter := Submitter{Sink: sink, BatchSize: 1, ConcurrentRequestLimit: 2, Stats: stats.NewStats(io.Discard, false)}

	ctx := context.Background()
	for _, id := range []string{"a", "b", "c", "d", "e", "f"} {
		submitter.Submit(ctx, doc(id))
	}

	summary := submitter.Close(ctx)
	assert.Equal(t, Summary{Documents: 6, Submitted: 6}, summary)
	assert.Len(t, sink.sizes(), 6)
	assert.LessOrEqual(t, sink.maxSeen.Load(), int32(2), "at most two requests in flight")
	assert.Zero(t, sink.inFlight.Load(), "close waits for all requests")

	// the submitter can be used again after a flush
	submitter.Submit(ctx, doc("g"))
	submitter.Flush(ctx)
	assert.Len(t, sink.sizes(), 7)
}

func TestSubmitter_Store(t *testing.T) {
	var store exporter.Map
	submitter := Submitter{Sink: &store, BatchSize: 2}

	ctx := context.Background()
	submitter.Submit(ctx, doc("a"))
	submitter.Submit(ctx, doc("b"))
	submitter.Submit(ctx, doc("a"))
	submitter.Close(ctx)

	// submitting a document again replaces it
	ids, err := store.IDs(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b"}, ids)

	body, err := store.Get(ctx, "a")
	require.NoError(t, err)
	assert.JSONEq(t, `{"http://example.com/p":"<a>"}`, string(body))
}

func TestSummary_String(t *testing.T) {
	assert.Equal(t, "{documents:3,submitted:2,failed:1}", Summary{Documents: 3, Submitted: 2, Failed: 1}.String())
}
