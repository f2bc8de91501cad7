// Package acquire fetches graphs from sparql endpoints and rdf dumps.
package acquire

import (
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/FAU-CDI/harvester/internal/graph"
	"github.com/anglo-korean/rdf"
	"github.com/cayleygraph/quad"
	"github.com/cayleygraph/quad/nquads"
)

// cspell:words nquads

// Source represents a source of triples
type Source interface {
	// Close closes this source.
	Close() error

	// Next scans the next token.
	// Once a token with err = io.EOF has been returned, no further tokens are returned.
	Next() Token
}

// Token represents a token read from a source.
//
// It can represent one of three states:
//
// 1. an error token: Err != nil
// 2. a (subject, predicate, object) token: Err == nil && HasDatum == false
// 3. a (subject, predicate, datum) token: Err == nil && HasDatum == true
//
// An error token wrapping [ErrMalformedRow] does not end the source.
type Token struct {
	graph.Triple
	Err error
}

// ErrMalformedRow is wrapped by errors of tokens that could not be turned into a triple.
// The source may continue to be read after such an error.
var ErrMalformedRow = errors.New("result row is not a triple")

// blankPrefix is the prefix of blank node labels.
const blankPrefix = "_:"

func blankLabel(id string) graph.Label {
	if strings.HasPrefix(id, blankPrefix) {
		return graph.Label(id)
	}
	return graph.Label(blankPrefix + id)
}

// QuadSource reads triples from an n-triples or n-quads stream.
// Graph labels of quads are ignored.
type QuadSource struct {
	reader *nquads.Reader
}

// NewQuadSource creates a new QuadSource reading from r.
func NewQuadSource(r io.Reader) *QuadSource {
	return &QuadSource{reader: nquads.NewReader(r, true)}
}

// Next reads the next token from the QuadSource
func (qs *QuadSource) Next() Token {
	for {
		value, err := qs.reader.ReadQuad()
		if err != nil {
			return Token{Err: err}
		}

		sI, sOK := quadLabel(value.Subject)
		pI, pOK := quadLabel(value.Predicate)
		if !(sOK && pOK) {
			continue
		}

		if oI, oOK := quadLabel(value.Object); oOK {
			return Token{Triple: graph.Triple{
				Subject:   sI,
				Predicate: pI,
				Object:    oI,
			}}
		}

		return Token{Triple: graph.Triple{
			Subject:   sI,
			Predicate: pI,
			Datum:     quadDatum(value.Object),
			HasDatum:  true,
		}}
	}
}

func (qs *QuadSource) Close() error {
	return qs.reader.Close()
}

func quadLabel(value quad.Value) (uri graph.Label, ok bool) {
	switch datum := value.(type) {
	case quad.IRI:
		return graph.Label(string(datum)), true
	case quad.BNode:
		return blankLabel(string(datum)), true
	default:
		return "", false
	}
}

func quadDatum(value quad.Value) graph.Datum {
	switch datum := value.(type) {
	case quad.String:
		return graph.Datum{Value: string(datum)}
	case quad.LangString:
		return graph.Datum{Value: string(datum.Value), Language: datum.Lang}
	case quad.TypedString:
		return graph.Datum{Value: string(datum.Value), Datatype: graph.Label(string(datum.Type))}
	default:
		return graph.Datum{Value: fmt.Sprint(value.Native())}
	}
}

// DecoderSource reads triples from rdf/xml or turtle.
type DecoderSource struct {
	decoder rdf.TripleDecoder
}

// NewDecoderSource creates a new source decoding triples in the given rdf format from r.
// The caller remains responsible for closing r.
func NewDecoderSource(r io.Reader, format rdf.Format) *DecoderSource {
	return &DecoderSource{decoder: rdf.NewTripleDecoder(r, format)}
}

// Next reads the next token from the DecoderSource
func (ds *DecoderSource) Next() Token {
	for {
		triple, err := ds.decoder.Decode()
		if err != nil {
			return Token{Err: err}
		}

		sI, sOK := rdfLabel(triple.Subj)
		pI, pOK := rdfLabel(triple.Pred)
		if !(sOK && pOK) {
			continue
		}

		if oI, oOK := rdfLabel(triple.Obj); oOK {
			return Token{Triple: graph.Triple{
				Subject:   sI,
				Predicate: pI,
				Object:    oI,
			}}
		}

		literal, ok := triple.Obj.(rdf.Literal)
		if !ok {
			continue
		}
		return Token{Triple: graph.Triple{
			Subject:   sI,
			Predicate: pI,
			Datum: graph.Datum{
				Value:    literal.String(),
				Datatype: graph.Label(literal.DataType.String()),
				Language: literal.Lang(),
			},
			HasDatum: true,
		}}
	}
}

// Close is a no-op, the underlying reader is owned by the caller.
func (ds *DecoderSource) Close() error {
	return nil
}

func rdfLabel(term rdf.Term) (uri graph.Label, ok bool) {
	switch term := term.(type) {
	case rdf.IRI:
		return graph.Label(term.String()), true
	case rdf.Blank:
		return blankLabel(term.String()), true
	default:
		return "", false
	}
}
