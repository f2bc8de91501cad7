// Package harvest implements a single harvest pass.
//
// A pass acquires a graph from every configured source, flattens it into documents
// and submits these to a sink.
package harvest

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync/atomic"
	"time"

	"github.com/FAU-CDI/harvester/internal/acquire"
	"github.com/FAU-CDI/harvester/internal/exporter"
	"github.com/FAU-CDI/harvester/internal/flatten"
	"github.com/FAU-CDI/harvester/internal/graph"
	"github.com/FAU-CDI/harvester/internal/stats"
	"github.com/FAU-CDI/harvester/internal/submit"
	"github.com/google/uuid"
)

// State is the state of a Harvester.
type State int32

const (
	Idle State = iota
	Running
	Done
)

func (state State) String() string {
	switch state {
	case Idle:
		return "idle"
	case Running:
		return "running"
	case Done:
		return "done"
	default:
		return fmt.Sprintf("State(%d)", int32(state))
	}
}

// Acquirer fetches graphs.
// It is implemented by [acquire.Acquirer].
type Acquirer interface {
	FetchFromQuery(ctx context.Context, endpoint, query string, kind acquire.QueryKind) (*graph.Graph, error)
	FetchFromDump(ctx context.Context, location string) (*graph.Graph, error)
}

// Config configures the sources and batching of a harvest.
type Config struct {
	// Endpoint and Query configure the query source.
	// The query source is only used when both are set.
	Endpoint  string
	Query     string
	QueryKind acquire.QueryKind

	// SourceURLs are the locations of dumps, harvested in order after the query source.
	// Locations are trimmed and empty ones are skipped.
	SourceURLs []string

	// FetchConcurrency is the number of dumps fetched in parallel.
	// Values <= 1 fetch each dump only when it is harvested.
	FetchConcurrency int

	BatchSize              int // see submit.Submitter
	ConcurrentRequestLimit int // see submit.Submitter
}

// Harvester runs a single harvest pass.
//
// A Harvester starts Idle, is Running during Run and is Done afterwards.
// It cannot be restarted.
type Harvester struct {
	Config

	Acquirer  Acquirer
	Flattener flatten.Flattener
	Sink      exporter.Sink
	Stats     *stats.Stats

	state atomic.Int32
	stop  atomic.Bool
}

// Report describes a finished harvest pass.
type Report struct {
	Pass    uuid.UUID
	Stopped bool // a stop was requested before all sources were harvested

	Sources       int // sources attempted
	FailedSources int // sources that could not be acquired
	Triples       int // distinct triples acquired over all sources

	submit.Summary

	Took time.Duration
}

// State returns the current state of the harvester.
func (harvester *Harvester) State() State {
	return State(harvester.state.Load())
}

// Stop requests the harvester to stop.
// A running pass stops before the next source; an in-flight fetch is not interrupted.
// When called before Run, Run does not harvest anything.
func (harvester *Harvester) Stop() {
	harvester.stop.Store(true)
}

func (harvester *Harvester) stopped(ctx context.Context) bool {
	return harvester.stop.Load() || ctx.Err() != nil
}

// Run runs the harvest pass and returns a report of it.
//
// Failures of individual sources or documents are logged and reported, but never abort the pass.
// If the harvester is not Idle, Run does nothing and returns the zero Report.
func (harvester *Harvester) Run(ctx context.Context) (report Report) {
	if !harvester.state.CompareAndSwap(int32(Idle), int32(Running)) {
		return
	}
	defer harvester.state.Store(int32(Done))

	start := time.Now()

	report.Pass = uuid.New()
	st := harvester.Stats.With("pass", report.Pass.String())

	if harvester.stopped(ctx) {
		report.Stopped = true
		st.Log("harvest stopped before start")
		return
	}

	locations := harvester.locations()
	st.Log("harvest started", "query", harvester.hasQuery(), "dumps", len(locations))
	if filter := harvester.Flattener.Filter; filter.HasList() {
		st.Log("filtering relations", "mode", filter.Mode(), "relations", filter.Relations())
	}

	submitter := &submit.Submitter{
		Sink:                   harvester.Sink,
		Stats:                  st,
		BatchSize:              harvester.BatchSize,
		ConcurrentRequestLimit: harvester.ConcurrentRequestLimit,
	}

	// prefetching of dumps may start while the query is running
	fetchers, wait := harvester.dumps(ctx, locations)

	if harvester.hasQuery() {
		harvester.harvest(ctx, st, &report, submitter, harvester.Endpoint, stats.StageAcquireQuery, func() (*graph.Graph, error) {
			return harvester.Acquirer.FetchFromQuery(ctx, harvester.Endpoint, harvester.Query, harvester.QueryKind)
		})
	}

	for i, location := range locations {
		if harvester.stopped(ctx) {
			break
		}
		harvester.harvest(ctx, st, &report, submitter, location, stats.StageAcquireDump, fetchers[i])
	}
	wait()

	report.Stopped = harvester.stopped(ctx)
	report.Summary = submitter.Close(ctx)
	report.Took = time.Since(start)

	st.Log(
		"harvest finished",
		"stopped", report.Stopped,
		"sources", report.Sources,
		"failed-sources", report.FailedSources,
		"triples", report.Triples,
		"documents", report.Documents,
		"submitted", report.Submitted,
		"failed", report.Failed,
		"took", report.Took,
		"perf", st.Diff(),
	)
	return
}

func (harvester *Harvester) hasQuery() bool {
	return harvester.Endpoint != "" && harvester.Query != ""
}

// locations returns the trimmed dump locations, skipping empty ones.
func (harvester *Harvester) locations() []string {
	locations := make([]string, 0, len(harvester.SourceURLs))
	for _, location := range harvester.SourceURLs {
		location = strings.TrimSpace(location)
		if location == "" {
			continue
		}
		locations = append(locations, location)
	}
	return locations
}

// harvest acquires a single source, then flattens and submits it.
func (harvester *Harvester) harvest(ctx context.Context, st *stats.Stats, report *Report, submitter *submit.Submitter, name string, stage stats.Stage, fetch func() (*graph.Graph, error)) {
	st = st.With("source", name)

	report.Sources++
	st.Add(stats.CounterSources, 1)

	var g *graph.Graph
	if err := st.DoStage(stage, func() (err error) {
		g, err = fetch()
		return err
	}); err != nil {
		report.FailedSources++
		st.Add(stats.CounterFailedSources, 1)
		return
	}

	gStats := g.Stats()
	report.Triples += g.Len()
	st.Add(stats.CounterTriples, uint64(g.Len()))
	st.StoreGraphStats(gStats)
	st.Log("acquired source", "triples", gStats.Triples, "subjects", gStats.Subjects, "predicates", gStats.Predicates, "duplicates", gStats.Duplicates)

	_ = st.DoStage(stats.StageFlatten, func() error {
		total := len(g.Subjects())

		var count int
		for doc := range harvester.Flattener.All(g) {
			submitter.Submit(ctx, doc)

			count++
			st.SetCT(count, total)
		}
		return nil
	})

	_ = st.DoStage(stats.StageSubmit, func() error {
		submitter.Flush(ctx)
		return nil
	})
}

var errNotFetched = errors.New("dump was not fetched")

// dumps returns a function to fetch each of the given dumps and a function to wait for any background work.
func (harvester *Harvester) dumps(ctx context.Context, locations []string) (fetchers []func() (*graph.Graph, error), wait func()) {
	fetchers = make([]func() (*graph.Graph, error), len(locations))

	if harvester.FetchConcurrency <= 1 {
		for i, location := range locations {
			fetchers[i] = func() (*graph.Graph, error) {
				return harvester.Acquirer.FetchFromDump(ctx, location)
			}
		}
		return fetchers, func() {}
	}

	prefetcher := newPrefetcher(harvester.FetchConcurrency, len(locations))
	go prefetcher.run(func(i int) (*graph.Graph, error) {
		if harvester.stopped(ctx) {
			return nil, errNotFetched
		}
		return harvester.Acquirer.FetchFromDump(ctx, locations[i])
	})

	for i := range fetchers {
		fetchers[i] = func() (*graph.Graph, error) {
			return prefetcher.get(i)
		}
	}
	return fetchers, prefetcher.wait
}
