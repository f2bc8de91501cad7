package stats

import (
	"fmt"
	"sync/atomic"
)

// Counts holds counters of a harvest pass.
type Counts struct {
	Sources       uint64 // sources that were processed
	FailedSources uint64 // sources that failed to be acquired
	SkippedRows   uint64 // query result rows that were not triples
	Triples       uint64 // distinct triples acquired
	Documents     uint64 // documents produced by flattening
	Submitted     uint64 // documents acknowledged by the sink
	Failed        uint64 // documents that failed to serialize or to be submitted
}

func (counts Counts) String() string {
	return fmt.Sprintf("{sources:%d,failed-sources:%d,skipped-rows:%d,triples:%d,documents:%d,submitted:%d,failed:%d}", counts.Sources, counts.FailedSources, counts.SkippedRows, counts.Triples, counts.Documents, counts.Submitted, counts.Failed)
}

type counters struct {
	sources, failedSources, skippedRows atomic.Uint64
	triples, documents                  atomic.Uint64
	submitted, failed                   atomic.Uint64
}

// Counter identifies a counter of [Counts].
type Counter int

const (
	CounterSources Counter = iota
	CounterFailedSources
	CounterSkippedRows
	CounterTriples
	CounterDocuments
	CounterSubmitted
	CounterFailed
)

func (c *counters) get(counter Counter) *atomic.Uint64 {
	switch counter {
	case CounterSources:
		return &c.sources
	case CounterFailedSources:
		return &c.failedSources
	case CounterSkippedRows:
		return &c.skippedRows
	case CounterTriples:
		return &c.triples
	case CounterDocuments:
		return &c.documents
	case CounterSubmitted:
		return &c.submitted
	case CounterFailed:
		return &c.failed
	}
	panic("counters.get: unknown counter")
}

// Add adds delta to the given counter.
// If st is nil or done, has no effect.
func (st *Stats) Add(counter Counter, delta uint64) {
	st = st.root()
	if st == nil || st.done.Load() {
		return
	}
	st.counts.get(counter).Add(delta)
}

// Counts returns a snapshot of the counters.
func (st *Stats) Counts() Counts {
	st = st.root()
	if st == nil {
		return Counts{}
	}
	return Counts{
		Sources:       st.counts.sources.Load(),
		FailedSources: st.counts.failedSources.Load(),
		SkippedRows:   st.counts.skippedRows.Load(),
		Triples:       st.counts.triples.Load(),
		Documents:     st.counts.documents.Load(),
		Submitted:     st.counts.submitted.Load(),
		Failed:        st.counts.failed.Load(),
	}
}
