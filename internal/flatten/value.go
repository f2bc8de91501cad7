package flatten

import (
	"encoding/json"
	"math"
	"math/big"
	"strconv"
	"strings"

	"github.com/FAU-CDI/harvester/internal/graph"
)

// Value returns the json value of the object of the given triple.
//
// References become strings holding the referenced label.
// Literals are rendered according to their kind, see [Literal].
func Value(triple graph.Triple) any {
	if !triple.HasDatum {
		return string(triple.Object)
	}
	return Literal(triple.Datum)
}

// Literal returns the json value of a literal.
//
// Boolean literals become a bool, integer and float literals become a [json.Number].
// Everything else, including literals whose lexical form does not parse for their kind, becomes a string holding the lexical form.
func Literal(datum graph.Datum) any {
	switch datum.Kind() {
	case graph.KindBoolean:
		if value, ok := parseBoolean(datum.Value); ok {
			return value
		}
	case graph.KindInteger:
		if value, ok := parseInteger(datum.Value); ok {
			return value
		}
	case graph.KindFloat:
		if value, ok := parseFloat(datum.Value); ok {
			return value
		}
	}
	return datum.Value
}

func parseBoolean(lexical string) (value bool, ok bool) {
	switch strings.TrimSpace(lexical) {
	case "true", "1":
		return true, true
	case "false", "0":
		return false, true
	}
	return false, false
}

func parseInteger(lexical string) (json.Number, bool) {
	lexical = strings.TrimSpace(lexical)

	if i, err := strconv.ParseInt(lexical, 10, 64); err == nil {
		return json.Number(strconv.FormatInt(i, 10)), true
	}

	// xsd:integer is unbounded
	var i big.Int
	if _, ok := i.SetString(lexical, 10); !ok {
		return "", false
	}
	return json.Number(i.String()), true
}

func parseFloat(lexical string) (json.Number, bool) {
	f, err := strconv.ParseFloat(strings.TrimSpace(lexical), 64)
	if err != nil || math.IsInf(f, 0) || math.IsNaN(f) {
		return "", false
	}
	return json.Number(strconv.FormatFloat(f, 'g', -1, 64)), true
}
