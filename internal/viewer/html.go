package viewer

import (
	"bytes"
	"encoding/json"
	"html/template"
	"net/http"

	_ "embed"

	"github.com/FAU-CDI/harvester/internal/stats"
	"github.com/gorilla/mux"
)

//go:embed templates/index.html
var indexHTML string

var indexTemplate = template.Must(template.New("index.html").Parse(indexHTML))

//go:embed templates/document.html
var documentHTML string

var documentTemplate = template.Must(template.New("document.html").Parse(documentHTML))

type htmlIndexContext struct {
	Counts stats.Counts
	IDs    []string
}

func (viewer *Viewer) htmlIndex(w http.ResponseWriter, r *http.Request) {
	if viewer.htmlFallback(w, r) {
		return
	}

	ids, err := viewer.Store.IDs(r.Context())
	if err != nil {
		viewer.Stats.LogError("list documents", err)
		http.Error(w, "failed to list documents", http.StatusInternalServerError)
		return
	}

	viewer.render(w, indexTemplate, htmlIndexContext{
		Counts: viewer.Stats.Counts(),
		IDs:    ids,
	})
}

type htmlDocumentContext struct {
	ID   string
	Body string
}

func (viewer *Viewer) htmlDocument(w http.ResponseWriter, r *http.Request) {
	if viewer.htmlFallback(w, r) {
		return
	}

	id := mux.Vars(r)["uri"]
	body, ok := viewer.getDocument(w, r, id)
	if !ok {
		return
	}

	var pretty bytes.Buffer
	if err := json.Indent(&pretty, body, "", "  "); err != nil {
		pretty.Reset()
		pretty.Write(body)
	}

	viewer.render(w, documentTemplate, htmlDocumentContext{
		ID:   id,
		Body: pretty.String(),
	})
}

func (viewer *Viewer) render(w http.ResponseWriter, t *template.Template, context any) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	if err := t.Execute(w, context); err != nil {
		viewer.Stats.LogError("render "+t.Name(), err)
	}
}
