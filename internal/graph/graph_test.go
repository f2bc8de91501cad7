package graph

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// ref returns a reference triple
func ref(s, p, o string) Triple {
	return Triple{Subject: Label(s), Predicate: Label(p), Object: Label(o)}
}

// lit returns a literal triple
func lit(s, p, value, datatype string) Triple {
	return Triple{
		Subject:   Label(s),
		Predicate: Label(p),
		Datum:     Datum{Value: value, Datatype: Label(datatype)},
		HasDatum:  true,
	}
}

func TestGraph_Add(t *testing.T) {
	var g Graph

	assert.True(t, g.Add(ref("s1", "p1", "o1")))
	assert.True(t, g.Add(lit("s1", "p1", "o1", "")), "literal and reference with the same text differ")
	assert.False(t, g.Add(ref("s1", "p1", "o1")), "duplicate is ignored")
	assert.True(t, g.Add(lit("s2", "p2", "42", XSD+"integer")))
	assert.True(t, g.Add(lit("s2", "p2", "42", XSD+"int")), "datatype is part of identity")
	assert.True(t, g.Add(ref("s1", "p3", "s2")))

	assert.Equal(t, 5, g.Len())
	assert.Equal(t, []Label{"s1", "s2"}, g.Subjects())
	assert.Equal(t, []Label{"p1", "p2", "p3"}, g.Predicates())
	assert.Equal(t, Stats{Triples: 5, Datum: 3, Duplicates: 1, Subjects: 2, Predicates: 3}, g.Stats())
}

func TestGraph_Objects(t *testing.T) {
	var g Graph
	g.Add(lit("s1", "p1", "b", ""))
	g.Add(ref("s2", "p1", "x"))
	g.Add(lit("s1", "p1", "a", ""))
	g.Add(lit("s1", "p2", "c", ""))

	objects := g.Objects("s1", "p1")
	require.Len(t, objects, 2)
	assert.Equal(t, "b", objects[0].Datum.Value, "first-seen order is kept")
	assert.Equal(t, "a", objects[1].Datum.Value)

	assert.Nil(t, g.Objects("s2", "p2"))
	assert.Nil(t, g.Objects("nope", "p1"))
}

func TestGraph_Nil(t *testing.T) {
	var g *Graph

	assert.Zero(t, g.Len())
	assert.Nil(t, g.Subjects())
	assert.Nil(t, g.Predicates())
	assert.Nil(t, g.Objects("s", "p"))
	assert.Equal(t, Stats{}, g.Stats())
}

func TestKindOf(t *testing.T) {
	tests := []struct {
		datatype Label
		want     Kind
	}{
		{"", KindText},
		{XSD + "string", KindText},
		{XSD + "decimal", KindText},
		{XSD + "dateTime", KindText},
		{"http://example.com/custom", KindText},
		{XSD + "boolean", KindBoolean},
		{XSD + "integer", KindInteger},
		{XSD + "byte", KindInteger},
		{XSD + "short", KindInteger},
		{XSD + "int", KindInteger},
		{XSD + "long", KindInteger},
		{XSD + "float", KindFloat},
		{XSD + "double", KindFloat},
	}
	for _, tt := range tests {
		t.Run(string(tt.datatype), func(t *testing.T) {
			assert.Equal(t, tt.want, KindOf(tt.datatype))
		})
	}
}
