package acquire

import (
	"errors"
	"fmt"
	"io"

	"github.com/FAU-CDI/harvester/internal/graph"
	"github.com/FAU-CDI/harvester/internal/stats"
)

// progressInterval is the number of tokens between progress updates
const progressInterval = 10_000

// Load reads all triples from source into a new graph and closes the source.
//
// Tokens wrapping [ErrMalformedRow] are logged and skipped.
// Any other error aborts loading; the partially loaded graph is discarded.
func Load(source Source, name string, st *stats.Stats) (g *graph.Graph, e error) {
	defer func() {
		if e2 := source.Close(); e2 != nil {
			e2 = fmt.Errorf("failed to close source: %w", e2)
			if e == nil {
				g, e = nil, e2
			} else {
				e = errors.Join(e, e2)
			}
		}
	}()

	g = new(graph.Graph)

	var counter int
	for {
		tok := source.Next()

		counter++
		if counter%progressInterval == 0 {
			st.SetCT(counter, 0)
		}

		switch {
		case errors.Is(tok.Err, io.EOF):
			st.SetCT(counter-1, 0)
			return g, nil
		case errors.Is(tok.Err, ErrMalformedRow):
			st.Add(stats.CounterSkippedRows, 1)
			st.LogError("read result row", tok.Err, "source", name)
		case tok.Err != nil:
			return nil, fmt.Errorf("failed to read triple %d: %w", counter, tok.Err)
		default:
			g.Add(tok.Triple)
		}
	}
}
