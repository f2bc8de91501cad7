// Package viewer implements a read-only http interface to harvested documents.
package viewer

import (
	"net/http"
	"sync"

	"github.com/FAU-CDI/harvester/internal/exporter"
	"github.com/FAU-CDI/harvester/internal/stats"
	"github.com/gorilla/mux"
)

// Viewer implements an [http.Handler] that displays documents held in a store.
//
// While Stats is not done, document routes respond with the progress of the harvest instead.
type Viewer struct {
	Store exporter.Store
	Stats *stats.Stats

	init sync.Once
	mux  mux.Router
}

// Prepare sets up the routes of the viewer.
// It is called automatically by ServeHTTP.
func (viewer *Viewer) Prepare() {
	viewer.init.Do(func() {
		viewer.mux.HandleFunc("/", viewer.htmlIndex).Methods(http.MethodGet)
		viewer.mux.HandleFunc("/document", viewer.htmlDocument).Methods(http.MethodGet).Queries("uri", "{uri:.+}")

		viewer.mux.HandleFunc("/api/v1", viewer.jsonIndex).Methods(http.MethodGet)
		viewer.mux.HandleFunc("/api/v1/documents", viewer.jsonDocuments).Methods(http.MethodGet)
		viewer.mux.HandleFunc("/api/v1/document", viewer.jsonDocument).Methods(http.MethodGet).Queries("uri", "{uri:.+}")
	})
}

func (viewer *Viewer) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	viewer.Prepare()
	viewer.mux.ServeHTTP(w, r)
}

// Close closes the underlying store.
func (viewer *Viewer) Close() error {
	if viewer == nil || viewer.Store == nil {
		return nil
	}
	return viewer.Store.Close()
}
