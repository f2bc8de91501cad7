package acquire

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
	"unicode"

	"github.com/FAU-CDI/harvester/internal/graph"
)

// SelectVars holds the names of the variables a select query binds for every triple.
type SelectVars struct {
	Subject   string
	Predicate string
	Object    string
}

// DefaultSelectVars are the variables used when none are configured.
var DefaultSelectVars = SelectVars{Subject: "s", Predicate: "p", Object: "o"}

var errSelectVarsCount = errors.New("need exactly three select variables")

// ParseSelectVars parses a list of three variable names, separated by commas or spaces.
// Leading '?' and '$' are removed.
// The empty string returns DefaultSelectVars.
func ParseSelectVars(value string) (SelectVars, error) {
	names := strings.FieldsFunc(value, func(r rune) bool {
		return r == ',' || unicode.IsSpace(r)
	})
	if len(names) == 0 {
		return DefaultSelectVars, nil
	}
	if len(names) != 3 {
		return SelectVars{}, fmt.Errorf("%w, got %q", errSelectVarsCount, value)
	}
	for i, name := range names {
		names[i] = strings.TrimLeft(name, "?$")
		if names[i] == "" {
			return SelectVars{}, fmt.Errorf("%w, got %q", errSelectVarsCount, value)
		}
	}
	return SelectVars{Subject: names[0], Predicate: names[1], Object: names[2]}, nil
}

func (vars SelectVars) orDefault() SelectVars {
	if vars == (SelectVars{}) {
		return DefaultSelectVars
	}
	return vars
}

// sparqlResults is the "application/sparql-results+json" format
type sparqlResults struct {
	Head struct {
		Vars []string `json:"vars"`
	} `json:"head"`
	Results struct {
		Bindings []map[string]binding `json:"bindings"`
	} `json:"results"`
}

// binding is a single bound rdf term
type binding struct {
	Type     string `json:"type"` // "uri", "bnode", "literal" or "typed-literal"
	Value    string `json:"value"`
	Datatype string `json:"datatype"`
	Lang     string `json:"xml:lang"`
}

// BindingsSource reads triples from sparql select results in json format.
//
// Each row must bind the three configured variables.
// Rows that do not bind a triple yield an error token wrapping [ErrMalformedRow].
type BindingsSource struct {
	vars SelectVars
	rows []map[string]binding
	next int
}

// NewBindingsSource decodes select results from r.
func NewBindingsSource(r io.Reader, vars SelectVars) (*BindingsSource, error) {
	var results sparqlResults
	if err := json.NewDecoder(r).Decode(&results); err != nil {
		return nil, fmt.Errorf("failed to decode select results: %w", err)
	}

	return &BindingsSource{
		vars: vars.orDefault(),
		rows: results.Results.Bindings,
	}, nil
}

// Next returns the token for the next row.
func (bs *BindingsSource) Next() Token {
	if bs.next >= len(bs.rows) {
		return Token{Err: io.EOF}
	}

	index := bs.next
	row := bs.rows[index]
	bs.next++

	subject, err := bindingLabel(row, bs.vars.Subject)
	if err != nil {
		return Token{Err: fmt.Errorf("row %d: %w", index, err)}
	}
	predicate, err := bindingLabel(row, bs.vars.Predicate)
	if err != nil {
		return Token{Err: fmt.Errorf("row %d: %w", index, err)}
	}

	object, ok := row[bs.vars.Object]
	if !ok {
		return Token{Err: fmt.Errorf("row %d: %w: ?%s is not bound", index, ErrMalformedRow, bs.vars.Object)}
	}

	triple := graph.Triple{Subject: subject, Predicate: predicate}
	switch object.Type {
	case "uri":
		triple.Object = graph.Label(object.Value)
	case "bnode":
		triple.Object = blankLabel(object.Value)
	case "literal", "typed-literal":
		triple.HasDatum = true
		triple.Datum = graph.Datum{
			Value:    object.Value,
			Datatype: graph.Label(object.Datatype),
			Language: object.Lang,
		}
	default:
		return Token{Err: fmt.Errorf("row %d: %w: ?%s has unknown type %q", index, ErrMalformedRow, bs.vars.Object, object.Type)}
	}

	return Token{Triple: triple}
}

func bindingLabel(row map[string]binding, name string) (graph.Label, error) {
	value, ok := row[name]
	if !ok {
		return "", fmt.Errorf("%w: ?%s is not bound", ErrMalformedRow, name)
	}
	switch value.Type {
	case "uri":
		return graph.Label(value.Value), nil
	case "bnode":
		return blankLabel(value.Value), nil
	default:
		return "", fmt.Errorf("%w: ?%s is a %s", ErrMalformedRow, name, value.Type)
	}
}

// Close is a no-op, as results are decoded eagerly.
func (bs *BindingsSource) Close() error {
	return nil
}
