package viewer

// fallback serves the progress of the harvest while documents are still being loaded

import (
	"html/template"
	"net/http"

	_ "embed"

	"github.com/FAU-CDI/harvester/internal/stats"
)

//go:embed templates/loading.html
var loadingHTML string

var loadTemplate = template.Must(template.New("loading.html").Parse(loadingHTML))

const (
	viewerNotReady     = "data is still being loaded and the server is not ready"
	viewerRetrySeconds = "60"
)

// ProgressMessage is returned by the viewer while the harvest is not done.
type ProgressMessage struct {
	Message  string
	Progress stats.Progress
}

func (viewer *Viewer) htmlFallback(w http.ResponseWriter, _ *http.Request) (sent bool) {
	progress := viewer.Stats.Progress()
	if progress.Done {
		return false
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Header().Set("Retry-After", viewerRetrySeconds)
	w.WriteHeader(http.StatusServiceUnavailable)
	if err := loadTemplate.Execute(w, ProgressMessage{Message: viewerNotReady, Progress: progress}); err != nil {
		viewer.Stats.LogError("render fallback", err)
	}
	return true
}

func (viewer *Viewer) jsonFallback(w http.ResponseWriter, _ *http.Request) (sent bool) {
	progress := viewer.Stats.Progress()
	if progress.Done {
		return false
	}

	w.Header().Set("Retry-After", viewerRetrySeconds)
	viewer.writeJSON(w, http.StatusServiceUnavailable, ProgressMessage{
		Message:  viewerNotReady,
		Progress: progress,
	})
	return true
}
