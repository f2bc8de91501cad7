// Package flatten turns the triples of a graph into one json document per subject.
package flatten

import (
	"bytes"
	"encoding/json"
	"fmt"
	"iter"

	"github.com/FAU-CDI/harvester/internal/filter"
	"github.com/FAU-CDI/harvester/internal/graph"
)

// Field holds the values of a single relation of a document.
type Field struct {
	Relation graph.Label
	Values   []any // never empty
}

// JSON returns the json representation of the field value.
// A single value is returned as is, multiple values as a list.
func (field Field) JSON() any {
	if len(field.Values) == 1 {
		return field.Values[0]
	}
	return field.Values
}

// Document is the flattened representation of a single subject.
type Document struct {
	ID     graph.Label
	Fields []Field // in order of first occurrence of the relation in the graph
}

// Empty reports if this document has no fields.
func (doc Document) Empty() bool {
	return len(doc.Fields) == 0
}

// Field returns the field for the given relation.
func (doc Document) Field(relation graph.Label) (field Field, ok bool) {
	for _, field := range doc.Fields {
		if field.Relation == relation {
			return field, true
		}
	}
	return Field{}, false
}

// Object returns the json object representing this document.
// Keys are relations, values are a single value or a list of values.
func (doc Document) Object() map[string]any {
	object := make(map[string]any, len(doc.Fields))
	for _, field := range doc.Fields {
		object[string(field.Relation)] = field.JSON()
	}
	return object
}

// MarshalJSON encodes this document as a json object.
// A document without fields is encoded as "{}".
func (doc Document) MarshalJSON() ([]byte, error) {
	var buffer bytes.Buffer

	encoder := json.NewEncoder(&buffer)
	encoder.SetEscapeHTML(false)
	if err := encoder.Encode(doc.Object()); err != nil {
		return nil, fmt.Errorf("failed to encode document %q: %w", doc.ID, err)
	}

	return bytes.TrimSuffix(buffer.Bytes(), []byte("\n")), nil
}

// Flattener flattens graphs into documents.
type Flattener struct {
	// Filter determines the relations included in the document.
	Filter filter.Filter

	// SkipEmpty omits subjects that have no permitted relation.
	// By default such subjects produce an empty document.
	SkipEmpty bool
}

// All iterates over the documents of the given graph.
// Exactly one document is produced for every subject, in the order subjects were first encountered.
func (flattener Flattener) All(g *graph.Graph) iter.Seq[Document] {
	return func(yield func(Document) bool) {
		relations := flattener.relations(g)

		for _, subject := range g.Subjects() {
			doc := flattener.document(g, subject, relations)
			if flattener.SkipEmpty && doc.Empty() {
				continue
			}
			if !yield(doc) {
				return
			}
		}
	}
}

// Flatten returns all documents of the given graph.
func (flattener Flattener) Flatten(g *graph.Graph) []Document {
	docs := make([]Document, 0, len(g.Subjects()))
	for doc := range flattener.All(g) {
		docs = append(docs, doc)
	}
	return docs
}

// Each calls f for every document of the given graph, in the order of All.
// Iteration stops at the first error returned by f, which is then returned.
func (flattener Flattener) Each(g *graph.Graph, f func(Document) error) error {
	for doc := range flattener.All(g) {
		if err := f(doc); err != nil {
			return err
		}
	}
	return nil
}

// relations returns the permitted relations of the graph
func (flattener Flattener) relations(g *graph.Graph) []graph.Label {
	all := g.Predicates()

	relations := make([]graph.Label, 0, len(all))
	for _, relation := range all {
		if flattener.Filter.Permits(relation) {
			relations = append(relations, relation)
		}
	}
	return relations
}

func (flattener Flattener) document(g *graph.Graph, subject graph.Label, relations []graph.Label) Document {
	doc := Document{ID: subject}
	for _, relation := range relations {
		objects := g.Objects(subject, relation)
		if len(objects) == 0 {
			continue
		}

		field := Field{
			Relation: relation,
			Values:   make([]any, len(objects)),
		}
		for i, object := range objects {
			field.Values[i] = Value(object)
		}
		doc.Fields = append(doc.Fields, field)
	}
	return doc
}
