package viewer

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"

	"github.com/FAU-CDI/harvester/internal/exporter"
	"github.com/FAU-CDI/harvester/internal/graph"
	"github.com/FAU-CDI/harvester/internal/stats"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newViewer(t *testing.T, st *stats.Stats) *Viewer {
	t.Helper()

	store := new(exporter.Map)
	errs := store.BulkIndex(context.Background(), []exporter.Item{
		{ID: "http://example.com/a", Body: []byte(`{"http://example.com/p":"<a>"}`)},
		{ID: "http://example.com/b?x=1&y=2", Body: []byte(`{}`)},
	})
	for _, err := range errs {
		require.NoError(t, err)
	}

	return &Viewer{Store: store, Stats: st}
}

func get(viewer http.Handler, target string) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	viewer.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, target, nil))
	return rec
}

func TestViewer_API(t *testing.T) {
	st := stats.NewStats(io.Discard, false)
	st.Add(stats.CounterSources, 2)
	st.Add(stats.CounterSubmitted, 2)
	st.StoreGraphStats(graph.Stats{Triples: 3, Subjects: 2, Predicates: 1})
	st.Close()

	viewer := newViewer(t, st)

	t.Run("index", func(t *testing.T) {
		rec := get(viewer, "/api/v1")
		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))

		var status Status
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &status))
		assert.True(t, status.Progress.Done)
		assert.Equal(t, uint64(2), status.Counts.Sources)
		assert.Equal(t, uint64(2), status.Counts.Submitted)
		assert.Equal(t, graph.Stats{Triples: 3, Subjects: 2, Predicates: 1}, status.Graph)
	})

	t.Run("documents", func(t *testing.T) {
		rec := get(viewer, "/api/v1/documents")
		assert.Equal(t, http.StatusOK, rec.Code)
		assert.JSONEq(t, `["http://example.com/a","http://example.com/b?x=1&y=2"]`, rec.Body.String())
	})

	t.Run("document", func(t *testing.T) {
		rec := get(viewer, "/api/v1/document?uri="+url.QueryEscape("http://example.com/a"))
		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, `{"http://example.com/p":"<a>"}`, rec.Body.String(), "body is passed through unchanged")

		rec = get(viewer, "/api/v1/document?uri="+url.QueryEscape("http://example.com/b?x=1&y=2"))
		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, `{}`, rec.Body.String())
	})

	t.Run("unknown document", func(t *testing.T) {
		rec := get(viewer, "/api/v1/document?uri="+url.QueryEscape("http://example.com/missing"))
		assert.Equal(t, http.StatusNotFound, rec.Code)
	})

	t.Run("no uri", func(t *testing.T) {
		rec := get(viewer, "/api/v1/document")
		assert.Equal(t, http.StatusNotFound, rec.Code)
	})
}

func TestViewer_HTML(t *testing.T) {
	viewer := newViewer(t, nil)

	rec := get(viewer, "/")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "/document?uri=http%3a%2f%2fexample.com%2fa")
	assert.Contains(t, rec.Body.String(), "http://example.com/b?x=1&amp;y=2")

	rec = get(viewer, "/document?uri="+url.QueryEscape("http://example.com/a"))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "&#34;http://example.com/p&#34;: &#34;&lt;a&gt;&#34;")

	rec = get(viewer, "/document?uri="+url.QueryEscape("http://example.com/missing"))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestViewer_Loading(t *testing.T) {
	st := stats.NewStats(io.Discard, false)
	st.Start(stats.StageFlatten)
	st.SetCT(1, 4)

	viewer := newViewer(t, st)

	rec := get(viewer, "/api/v1/documents")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Equal(t, viewerRetrySeconds, rec.Header().Get("Retry-After"))

	var message ProgressMessage
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &message))
	assert.Equal(t, viewerNotReady, message.Message)
	assert.Equal(t, stats.StageFlatten, message.Progress.Stage)
	assert.Equal(t, 1, message.Progress.Current)
	assert.Equal(t, 4, message.Progress.Total)

	rec = get(viewer, "/")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Contains(t, rec.Body.String(), "1 / 4")

	// the status is always available
	rec = get(viewer, "/api/v1")
	assert.Equal(t, http.StatusOK, rec.Code)

	st.Close()
	rec = get(viewer, "/api/v1/documents")
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestViewer_Close(t *testing.T) {
	var viewer *Viewer
	assert.NoError(t, viewer.Close())
	assert.NoError(t, newViewer(t, nil).Close())
}
