package harvest

import (
	"github.com/FAU-CDI/harvester/internal/graph"
	"golang.org/x/sync/errgroup"
)

// prefetcher fetches graphs in the background.
//
// At most limit graphs are fetched or in flight but not yet taken by get.
// Fetching the next graph waits until an earlier one has been taken.
type prefetcher struct {
	group    errgroup.Group
	slots    chan struct{}
	results  []prefetched
	launched chan struct{}
}

type prefetched struct {
	done  chan struct{}
	taken bool
	graph *graph.Graph
	err   error
}

func newPrefetcher(limit, count int) *prefetcher {
	p := &prefetcher{
		slots:    make(chan struct{}, max(limit, 1)),
		results:  make([]prefetched, count),
		launched: make(chan struct{}),
	}
	for i := range p.results {
		p.results[i].done = make(chan struct{})
	}
	return p
}

// run fetches every result in order, blocking while the window is full.
func (p *prefetcher) run(fetch func(i int) (*graph.Graph, error)) {
	defer close(p.launched)

	for i := range p.results {
		p.slots <- struct{}{}

		result := &p.results[i]
		p.group.Go(func() error {
			defer close(result.done)
			result.graph, result.err = fetch(i)
			return nil
		})
	}
}

// get waits for the i-th result and returns it.
// The prefetcher releases its reference to the graph and frees its slot in the window.
// get must be called at most once for each result, from a single goroutine.
func (p *prefetcher) get(i int) (*graph.Graph, error) {
	result := &p.results[i]
	<-result.done

	result.taken = true
	<-p.slots

	g := result.graph
	result.graph = nil
	return g, result.err
}

// wait discards all results not yet taken and waits for all fetches to finish.
// It must be called from the goroutine calling get.
func (p *prefetcher) wait() {
	for i := range p.results {
		if !p.results[i].taken {
			_, _ = p.get(i)
		}
	}

	<-p.launched
	_ = p.group.Wait() // fetches never return an error
}
