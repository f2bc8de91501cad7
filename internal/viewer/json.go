package viewer

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/FAU-CDI/harvester/internal/exporter"
	"github.com/FAU-CDI/harvester/internal/graph"
	"github.com/FAU-CDI/harvester/internal/stats"
	"github.com/gorilla/mux"
)

// Status is returned by the index route of the api.
type Status struct {
	Progress stats.Progress
	Counts   stats.Counts
	Graph    graph.Stats // of the most recently acquired source
}

func (viewer *Viewer) jsonIndex(w http.ResponseWriter, r *http.Request) {
	viewer.writeJSON(w, http.StatusOK, Status{
		Progress: viewer.Stats.Progress(),
		Counts:   viewer.Stats.Counts(),
		Graph:    viewer.Stats.GraphStats(),
	})
}

func (viewer *Viewer) jsonDocuments(w http.ResponseWriter, r *http.Request) {
	if viewer.jsonFallback(w, r) {
		return
	}

	ids, err := viewer.Store.IDs(r.Context())
	if err != nil {
		viewer.Stats.LogError("list documents", err)
		http.Error(w, "failed to list documents", http.StatusInternalServerError)
		return
	}

	viewer.writeJSON(w, http.StatusOK, ids)
}

func (viewer *Viewer) jsonDocument(w http.ResponseWriter, r *http.Request) {
	if viewer.jsonFallback(w, r) {
		return
	}

	body, ok := viewer.getDocument(w, r, mux.Vars(r)["uri"])
	if !ok {
		return
	}

	// the body already is json
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(body)
}

// getDocument loads a document from the store.
// If it cannot be loaded, an appropriate response is sent and ok is false.
func (viewer *Viewer) getDocument(w http.ResponseWriter, r *http.Request, id string) (body []byte, ok bool) {
	body, err := viewer.Store.Get(r.Context(), id)
	switch {
	case errors.Is(err, exporter.ErrNotFound):
		http.NotFound(w, r)
		return nil, false
	case err != nil:
		viewer.Stats.LogError("get document", err, "id", id)
		http.Error(w, "failed to get document", http.StatusInternalServerError)
		return nil, false
	}
	return body, true
}

func (viewer *Viewer) writeJSON(w http.ResponseWriter, code int, value any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(value); err != nil {
		viewer.Stats.LogDebug("write response", "err", err)
	}
}
