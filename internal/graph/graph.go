// Package graph holds an in-memory rdf graph as produced by a single acquisition.
package graph

import (
	"fmt"
	"strings"
)

// Label represents the label of a subject, predicate or referenced object.
// A label is an iri or a blank node identifier.
type Label string

// Datum represents a literal value found in a graph.
type Datum struct {
	Value    string // lexical form
	Datatype Label  // datatype iri, may be empty
	Language string // language tag, may be empty
}

// Kind returns the semantic kind of this datum.
func (datum Datum) Kind() Kind {
	return KindOf(datum.Datatype)
}

// Triple represents a single (subject, predicate, value) fact.
//
// When HasDatum is set the value is Datum, otherwise it is a reference to Object.
type Triple struct {
	Subject   Label
	Predicate Label
	Object    Label
	Datum     Datum
	HasDatum  bool
}

// key returns a string uniquely identifying this triple.
func (triple Triple) key() string {
	var builder strings.Builder
	builder.WriteString(string(triple.Subject))
	builder.WriteByte(0)
	builder.WriteString(string(triple.Predicate))
	builder.WriteByte(0)
	if !triple.HasDatum {
		builder.WriteByte('r')
		builder.WriteString(string(triple.Object))
		return builder.String()
	}
	builder.WriteByte('d')
	builder.WriteString(triple.Datum.Value)
	builder.WriteByte(0)
	builder.WriteString(string(triple.Datum.Datatype))
	builder.WriteByte(0)
	builder.WriteString(triple.Datum.Language)
	return builder.String()
}

// Stats holds statistics about triples in a graph.
type Stats struct {
	Triples    uint64 // distinct triples stored
	Datum      uint64 // distinct triples with a literal value
	Duplicates uint64 // triples that were added more than once
	Subjects   uint64
	Predicates uint64
}

func (stats Stats) String() string {
	return fmt.Sprintf("{triples:%d,datum:%d,duplicates:%d,subjects:%d,predicates:%d}", stats.Triples, stats.Datum, stats.Duplicates, stats.Subjects, stats.Predicates)
}

// Graph is a set of triples that remembers insertion order.
//
// The zero value is an empty graph ready to use.
// A Graph is not safe for concurrent use.
type Graph struct {
	triples []Triple
	seen    map[string]struct{}

	subjects   []Label
	predicates []Label
	predicate  map[Label]struct{}

	// index maps subject => predicate => indexes into triples
	index map[Label]map[Label][]int

	duplicates uint64
	datum      uint64
}

// Add adds a triple to this graph.
// Adding a triple that is already contained in the graph has no effect.
// Reports if the triple was newly added.
func (graph *Graph) Add(triple Triple) bool {
	if graph.seen == nil {
		graph.seen = make(map[string]struct{})
		graph.index = make(map[Label]map[Label][]int)
		graph.predicate = make(map[Label]struct{})
	}

	key := triple.key()
	if _, ok := graph.seen[key]; ok {
		graph.duplicates++
		return false
	}
	graph.seen[key] = struct{}{}

	// record the subject and predicate when first seen
	predicates, ok := graph.index[triple.Subject]
	if !ok {
		predicates = make(map[Label][]int)
		graph.index[triple.Subject] = predicates
		graph.subjects = append(graph.subjects, triple.Subject)
	}
	if _, ok := graph.predicate[triple.Predicate]; !ok {
		graph.predicate[triple.Predicate] = struct{}{}
		graph.predicates = append(graph.predicates, triple.Predicate)
	}

	predicates[triple.Predicate] = append(predicates[triple.Predicate], len(graph.triples))
	graph.triples = append(graph.triples, triple)
	if triple.HasDatum {
		graph.datum++
	}
	return true
}

// Len returns the number of distinct triples in this graph.
func (graph *Graph) Len() int {
	if graph == nil {
		return 0
	}
	return len(graph.triples)
}

// Triples returns the triples of this graph in insertion order.
// The returned slice must not be modified.
func (graph *Graph) Triples() []Triple {
	if graph == nil {
		return nil
	}
	return graph.triples
}

// Subjects returns the distinct subjects of this graph, in the order they were first encountered.
func (graph *Graph) Subjects() []Label {
	if graph == nil {
		return nil
	}
	return graph.subjects
}

// Predicates returns the distinct predicates of this graph, in the order they were first encountered.
func (graph *Graph) Predicates() []Label {
	if graph == nil {
		return nil
	}
	return graph.predicates
}

// Objects returns the triples with the given subject and predicate, in insertion order.
func (graph *Graph) Objects(subject, predicate Label) []Triple {
	if graph == nil {
		return nil
	}
	indexes := graph.index[subject][predicate]
	if len(indexes) == 0 {
		return nil
	}

	triples := make([]Triple, len(indexes))
	for i, index := range indexes {
		triples[i] = graph.triples[index]
	}
	return triples
}

// Stats returns statistics about this graph.
func (graph *Graph) Stats() Stats {
	if graph == nil {
		return Stats{}
	}
	return Stats{
		Triples:    uint64(len(graph.triples)),
		Datum:      graph.datum,
		Duplicates: graph.duplicates,
		Subjects:   uint64(len(graph.subjects)),
		Predicates: uint64(len(graph.predicates)),
	}
}
