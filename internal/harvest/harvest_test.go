package harvest

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/FAU-CDI/harvester/internal/acquire"
	"github.com/FAU-CDI/harvester/internal/exporter"
	"github.com/FAU-CDI/harvester/internal/filter"
	"github.com/FAU-CDI/harvester/internal/flatten"
	"github.com/FAU-CDI/harvester/internal/graph"
	"github.com/FAU-CDI/harvester/internal/stats"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const selectResults = `{
  "head": {"vars": ["s", "p", "o"]},
  "results": {"bindings": [
    {"s": {"type": "uri", "value": "http://example.com/s1"}, "p": {"type": "uri", "value": "http://example.com/p1"}, "o": {"type": "literal", "value": "a"}},
    {"s": {"type": "uri", "value": "http://example.com/s1"}, "p": {"type": "uri", "value": "http://example.com/p1"}},
    {"s": {"type": "uri", "value": "http://example.com/s1"}, "p": {"type": "uri", "value": "http://example.com/p1"}, "o": {"type": "literal", "value": "b"}},
    {"s": {"type": "uri", "value": "http://example.com/s1"}, "p": {"type": "uri", "value": "http://example.com/p2"}, "o": {"type": "literal", "value": "42", "datatype": "http://www.w3.org/2001/XMLSchema#integer"}}
  ]}
}`

const dumpNTriples = `<http://example.com/d1> <http://example.com/p1> "x" .
<http://example.com/d2> <http://example.com/p1> <http://example.com/d1> .
`

func endpoint(t *testing.T) *httptest.Server {
	t.Helper()

	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/sparql":
			w.Header().Set("Content-Type", "application/sparql-results+json")
			_, _ = io.WriteString(w, selectResults)
		case "/dump.nt":
			w.Header().Set("Content-Type", "application/n-triples")
			_, _ = io.WriteString(w, dumpNTriples)
		default:
			http.Error(w, "no such dump", http.StatusNotFound)
		}
	}))
}

func TestHarvester_MalformedRow(t *testing.T) {
	server := endpoint(t)
	defer server.Close()

	var sink exporter.Map
	var log strings.Builder
	st := stats.NewStats(&log, false)

	harvester := &Harvester{
		Config: Config{
			Endpoint:  server.URL + "/sparql",
			Query:     "SELECT ?s ?p ?o WHERE { ?s ?p ?o }",
			QueryKind: acquire.Select,
		},
		Acquirer: &acquire.Acquirer{Stats: st},
		Sink:     &sink,
		Stats:    st,
	}

	report := harvester.Run(context.Background())
	assert.Equal(t, Done, harvester.State())
	assert.Equal(t, 1, report.Sources)
	assert.Zero(t, report.FailedSources)
	assert.Equal(t, 3, report.Triples, "rows after the malformed row are kept")
	assert.Equal(t, uint64(1), report.Submitted)

	body, err := sink.Get(context.Background(), "http://example.com/s1")
	require.NoError(t, err)
	assert.JSONEq(t, `{"http://example.com/p1":["a","b"],"http://example.com/p2":42}`, string(body))

	assert.Contains(t, log.String(), "FAILED read result row")
	assert.Equal(t, uint64(1), st.Counts().SkippedRows)
}

func TestHarvester_FailedDump(t *testing.T) {
	server := endpoint(t)
	defer server.Close()

	for _, concurrency := range []int{1, 3} {
		var sink exporter.Map
		var log strings.Builder
		st := stats.NewStats(&log, false)

		harvester := &Harvester{
			Config: Config{
				SourceURLs: []string{
					server.URL + "/missing.nt",
					server.URL + "/dump.nt",
				},
				FetchConcurrency: concurrency,
			},
			Acquirer: &acquire.Acquirer{Format: acquire.FormatAuto},
			Sink:     &sink,
			Stats:    st,
		}

		report := harvester.Run(context.Background())
		assert.Equal(t, 2, report.Sources)
		assert.Equal(t, 1, report.FailedSources)
		assert.Equal(t, 2, report.Triples)
		assert.Equal(t, uint64(2), report.Documents)
		assert.Equal(t, uint64(2), report.Submitted)
		assert.Zero(t, report.Failed)

		ids, err := sink.IDs(context.Background())
		require.NoError(t, err)
		assert.Equal(t, []string{"http://example.com/d1", "http://example.com/d2"}, ids)

		counts := st.Counts()
		assert.Equal(t, uint64(1), counts.FailedSources)
		assert.Equal(t, uint64(2), counts.Submitted)

		assert.Contains(t, log.String(), "no such dump")
		assert.Contains(t, log.String(), "harvest finished")
		assert.Contains(t, log.String(), "pass="+report.Pass.String())
	}
}

// fakeAcquirer returns a graph with a single triple for every location.
// Locations starting with "bad" fail.
type fakeAcquirer struct {
	l       sync.Mutex
	fetched []string

	delay   time.Duration
	onFetch func(location string)
}

var errFetch = errors.New("fetch failed")

func (fa *fakeAcquirer) FetchFromQuery(ctx context.Context, endpoint, query string, kind acquire.QueryKind) (*graph.Graph, error) {
	return fa.FetchFromDump(ctx, endpoint)
}

func (fa *fakeAcquirer) FetchFromDump(ctx context.Context, location string) (*graph.Graph, error) {
	time.Sleep(fa.delay)

	fa.l.Lock()
	fa.fetched = append(fa.fetched, location)
	fa.l.Unlock()

	if fa.onFetch != nil {
		fa.onFetch(location)
	}
	if strings.HasPrefix(location, "bad") {
		return nil, errFetch
	}

	var g graph.Graph
	g.Add(graph.Triple{Subject: graph.Label(location), Predicate: "p", Datum: graph.Datum{Value: location}, HasDatum: true})
	return &g, nil
}

func (fa *fakeAcquirer) locations() []string {
	fa.l.Lock()
	defer fa.l.Unlock()
	return append([]string(nil), fa.fetched...)
}

func TestHarvester_Order(t *testing.T) {
	var sink exporter.Map
	acquirer := new(fakeAcquirer)

	harvester := &Harvester{
		Config: Config{
			Endpoint:   "query",
			Query:      "CONSTRUCT WHERE { ?s ?p ?o }",
			SourceURLs: []string{"one", "bad", "two"},
			BatchSize:  10,
		},
		Acquirer: acquirer,
		Sink:     &sink,
	}

	report := harvester.Run(context.Background())
	assert.Equal(t, []string{"query", "one", "bad", "two"}, acquirer.locations())
	assert.Equal(t, 4, report.Sources)
	assert.Equal(t, 1, report.FailedSources)
	assert.Equal(t, uint64(3), report.Submitted)

	ids, err := sink.IDs(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"query", "one", "two"}, ids, "each source is flushed before the next")
}

func TestHarvester_NoQuery(t *testing.T) {
	acquirer := new(fakeAcquirer)
	harvester := &Harvester{
		Config:   Config{Endpoint: "query", SourceURLs: []string{"one"}},
		Acquirer: acquirer,
		Sink:     new(exporter.Map),
	}

	harvester.Run(context.Background())
	assert.Equal(t, []string{"one"}, acquirer.locations(), "query without text is not run")
}

func TestHarvester_Filter(t *testing.T) {
	var sink exporter.Map
	var log strings.Builder
	harvester := &Harvester{
		Config:    Config{SourceURLs: []string{"one"}},
		Acquirer:  new(fakeAcquirer),
		Flattener: flatten.Flattener{Filter: filter.New(filter.Allow, "other")},
		Sink:      &sink,
		Stats:     stats.NewStats(&log, false),
	}

	report := harvester.Run(context.Background())
	assert.Equal(t, uint64(1), report.Submitted)
	assert.Contains(t, log.String(), "mode=allow")
	assert.Contains(t, log.String(), "relations=[other]")
	assert.Contains(t, log.String(), "perf=")

	body, err := sink.Get(context.Background(), "one")
	require.NoError(t, err)
	assert.Equal(t, `{}`, string(body))
}

func TestHarvester_StopBeforeStart(t *testing.T) {
	acquirer := new(fakeAcquirer)
	harvester := &Harvester{
		Config:   Config{SourceURLs: []string{"one"}},
		Acquirer: acquirer,
		Sink:     new(exporter.Map),
	}
	assert.Equal(t, Idle, harvester.State())

	harvester.Stop()
	report := harvester.Run(context.Background())

	assert.True(t, report.Stopped)
	assert.NotEqual(t, uuid.Nil, report.Pass)
	assert.Equal(t, Done, harvester.State())
	assert.Empty(t, acquirer.locations())
}

func TestHarvester_StopBetweenSources(t *testing.T) {
	for _, concurrency := range []int{1, 2} {
		var harvester *Harvester
		acquirer := &fakeAcquirer{
			onFetch: func(location string) {
				if location == "one" {
					harvester.Stop()
				}
			},
		}

		var sink exporter.Map
		harvester = &Harvester{
			Config: Config{
				SourceURLs:       []string{"one", "two", "three", "four"},
				FetchConcurrency: concurrency,
			},
			Acquirer: acquirer,
			Sink:     &sink,
		}

		report := harvester.Run(context.Background())
		assert.True(t, report.Stopped)
		assert.Equal(t, 1, report.Sources, "the in-flight source is completed")

		ids, err := sink.IDs(context.Background())
		require.NoError(t, err)
		assert.Equal(t, []string{"one"}, ids)
		assert.Equal(t, Done, harvester.State())
	}
}

func TestHarvester_RunTwice(t *testing.T) {
	acquirer := new(fakeAcquirer)
	harvester := &Harvester{
		Config:   Config{SourceURLs: []string{"one"}},
		Acquirer: acquirer,
		Sink:     new(exporter.Map),
	}

	first := harvester.Run(context.Background())
	assert.Equal(t, 1, first.Sources)

	second := harvester.Run(context.Background())
	assert.Equal(t, Report{}, second)
	assert.Equal(t, []string{"one"}, acquirer.locations())
}

func TestHarvester_Canceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	acquirer := new(fakeAcquirer)
	harvester := &Harvester{
		Config:   Config{SourceURLs: []string{"one"}},
		Acquirer: acquirer,
		Sink:     new(exporter.Map),
	}

	report := harvester.Run(ctx)
	assert.True(t, report.Stopped)
	assert.Empty(t, acquirer.locations())
}

func TestHarvester_Prefetch(t *testing.T) {
	var sink exporter.Map
	acquirer := &fakeAcquirer{delay: 10 * time.Millisecond}

	locations := []string{"a", "b", "c", "d", "e", "f"}
	harvester := &Harvester{
		Config:   Config{SourceURLs: locations, FetchConcurrency: 3},
		Acquirer: acquirer,
		Sink:     &sink,
	}

	report := harvester.Run(context.Background())
	assert.Equal(t, 6, report.Sources)
	assert.ElementsMatch(t, locations, acquirer.locations())

	ids, err := sink.IDs(context.Background())
	require.NoError(t, err)
	assert.Equal(t, locations, ids, "documents are submitted in configured order")
}

func TestHarvester_BlankLocations(t *testing.T) {
	for _, concurrency := range []int{1, 2} {
		acquirer := new(fakeAcquirer)
		var sink exporter.Map
		harvester := &Harvester{
			Config: Config{
				SourceURLs:       []string{"", " one ", "  ", "two", "\t"},
				FetchConcurrency: concurrency,
			},
			Acquirer: acquirer,
			Sink:     &sink,
		}

		report := harvester.Run(context.Background())
		assert.Equal(t, 2, report.Sources)
		assert.Zero(t, report.FailedSources)
		assert.ElementsMatch(t, []string{"one", "two"}, acquirer.locations())

		ids, err := sink.IDs(context.Background())
		require.NoError(t, err)
		assert.Equal(t, []string{"one", "two"}, ids)
	}
}

// slowSink is a Map that takes some time for every batch.
// It records the result of fetched for every batch it receives.
type slowSink struct {
	exporter.Map
	delay   time.Duration
	fetched func() int

	l    sync.Mutex
	seen []int
}

func (ss *slowSink) BulkIndex(ctx context.Context, items []exporter.Item) []error {
	time.Sleep(ss.delay)

	ss.l.Lock()
	ss.seen = append(ss.seen, ss.fetched())
	ss.l.Unlock()

	return ss.Map.BulkIndex(ctx, items)
}

func TestHarvester_PrefetchWindow(t *testing.T) {
	const (
		count       = 20
		concurrency = 2
	)

	acquirer := new(fakeAcquirer)
	sink := &slowSink{
		delay:   20 * time.Millisecond,
		fetched: func() int { return len(acquirer.locations()) },
	}

	locations := make([]string, count)
	for i := range locations {
		locations[i] = fmt.Sprintf("dump%02d", i)
	}

	harvester := &Harvester{
		Config:   Config{SourceURLs: locations, FetchConcurrency: concurrency},
		Acquirer: acquirer,
		Sink:     sink,
	}

	report := harvester.Run(context.Background())
	assert.Equal(t, count, report.Sources)
	assert.Equal(t, uint64(count), report.Submitted)

	// while source i is submitted, i+1 graphs have been taken and at most concurrency more are held
	require.Len(t, sink.seen, count)
	for i, fetched := range sink.seen {
		assert.LessOrEqual(t, fetched, min(i+1+concurrency, count), "dumps fetched while submitting source %d", i)
	}
}

func TestState_String(t *testing.T) {
	assert.Equal(t, "idle", Idle.String())
	assert.Equal(t, "running", Running.String())
	assert.Equal(t, "done", Done.String())
	assert.Equal(t, "State(7)", State(7).String())
}
