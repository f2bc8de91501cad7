// Package submit batches documents and writes them to a sink.
package submit

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"

	"github.com/FAU-CDI/harvester/internal/exporter"
	"github.com/FAU-CDI/harvester/internal/flatten"
	"github.com/FAU-CDI/harvester/internal/stats"
	"golang.org/x/sync/errgroup"
)

// Summary summarizes the documents handled by a Submitter.
type Summary struct {
	Documents uint64 // documents passed to Submit
	Submitted uint64 // documents acknowledged by the sink
	Failed    uint64 // documents that failed to serialize or that were rejected
}

func (summary Summary) String() string {
	return fmt.Sprintf("{documents:%d,submitted:%d,failed:%d}", summary.Documents, summary.Submitted, summary.Failed)
}

var errSinkResponse = errors.New("sink returned wrong number of results")

// Submitter buffers serialized documents and flushes them to a sink in batches.
//
// Submit, Flush and Close must not be called concurrently.
type Submitter struct {
	Sink  exporter.Sink
	Stats *stats.Stats

	// BatchSize is the number of documents sent in a single bulk request.
	// Values <= 1 send every document on its own.
	BatchSize int

	// ConcurrentRequestLimit is the maximum number of bulk requests in flight.
	// Values <= 1 send every request synchronously.
	ConcurrentRequestLimit int

	buffer []exporter.Item
	group  *errgroup.Group

	documents, submitted, failed atomic.Uint64
}

func (submitter *Submitter) batchSize() int {
	return max(submitter.BatchSize, 1)
}

// Submit serializes doc and adds it to the current batch.
// When the batch is full, it is flushed.
//
// Failures are logged and counted, but never returned.
func (submitter *Submitter) Submit(ctx context.Context, doc flatten.Document) {
	submitter.documents.Add(1)
	submitter.Stats.Add(stats.CounterDocuments, 1)

	// json.Marshal would escape html in the output
	body, err := doc.MarshalJSON()
	if err != nil {
		submitter.fail(string(doc.ID), fmt.Errorf("failed to serialize document: %w", err))
		return
	}

	submitter.buffer = append(submitter.buffer, exporter.Item{ID: string(doc.ID), Body: body})
	if len(submitter.buffer) >= submitter.batchSize() {
		submitter.flush(ctx)
	}
}

// flush sends the current buffer without waiting for in-flight requests.
func (submitter *Submitter) flush(ctx context.Context) {
	if len(submitter.buffer) == 0 {
		return
	}

	batch := submitter.buffer
	submitter.buffer = make([]exporter.Item, 0, submitter.batchSize())

	if submitter.ConcurrentRequestLimit <= 1 {
		submitter.send(ctx, batch)
		return
	}

	if submitter.group == nil {
		submitter.group = new(errgroup.Group)
		submitter.group.SetLimit(submitter.ConcurrentRequestLimit)
	}
	submitter.group.Go(func() error {
		submitter.send(ctx, batch)
		return nil
	})
}

// send sends a single batch to the sink
func (submitter *Submitter) send(ctx context.Context, batch []exporter.Item) {
	submitter.Stats.LogDebug("bulk request", "documents", len(batch))

	errs := submitter.Sink.BulkIndex(ctx, batch)
	if len(errs) != len(batch) {
		err := fmt.Errorf("%w: got %d for %d documents", errSinkResponse, len(errs), len(batch))
		for _, item := range batch {
			submitter.fail(item.ID, err)
		}
		return
	}

	for i, err := range errs {
		if err != nil {
			submitter.fail(batch[i].ID, err)
			continue
		}
		submitter.submitted.Add(1)
		submitter.Stats.Add(stats.CounterSubmitted, 1)
	}
}

func (submitter *Submitter) fail(id string, err error) {
	submitter.failed.Add(1)
	submitter.Stats.Add(stats.CounterFailed, 1)
	submitter.Stats.LogError("submit document", err, "id", id)
}

// Flush sends any buffered documents and waits for all in-flight requests.
func (submitter *Submitter) Flush(ctx context.Context) {
	submitter.flush(ctx)
	if submitter.group != nil {
		_ = submitter.group.Wait() // send never returns an error
	}
}

// Close flushes the submitter and returns a summary of all documents.
// The sink is not closed.
func (submitter *Submitter) Close(ctx context.Context) Summary {
	submitter.Flush(ctx)
	return submitter.Summary()
}

// Summary returns a summary of the documents handled so far.
func (submitter *Submitter) Summary() Summary {
	return Summary{
		Documents: submitter.documents.Load(),
		Submitted: submitter.submitted.Load(),
		Failed:    submitter.failed.Load(),
	}
}
