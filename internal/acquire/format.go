package acquire

import (
	"errors"
	"fmt"
	"io"
	"mime"
	"path"
	"strings"

	"github.com/anglo-korean/rdf"
)

// Format is a serialization of rdf graphs.
type Format string

const (
	FormatAuto     Format = "auto" // detect from file name or content type
	FormatRDFXML   Format = "rdfxml"
	FormatTurtle   Format = "turtle"
	FormatNTriples Format = "ntriples"
	FormatNQuads   Format = "nquads"
)

// DefaultFormat is the format assumed for dumps when none is configured.
const DefaultFormat = FormatRDFXML

var errUnknownFormat = errors.New("unknown rdf format")

// ParseFormat parses the name of a format.
// The empty string returns DefaultFormat.
func ParseFormat(value string) (Format, error) {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "":
		return DefaultFormat, nil
	case "auto":
		return FormatAuto, nil
	case "rdfxml", "rdf/xml", "xml", "rdf":
		return FormatRDFXML, nil
	case "turtle", "ttl":
		return FormatTurtle, nil
	case "ntriples", "n-triples", "nt":
		return FormatNTriples, nil
	case "nquads", "n-quads", "nq":
		return FormatNQuads, nil
	default:
		return "", fmt.Errorf("%w: %q", errUnknownFormat, value)
	}
}

var formatExtensions = map[string]Format{
	".rdf": FormatRDFXML,
	".xml": FormatRDFXML,
	".owl": FormatRDFXML,
	".ttl": FormatTurtle,
	".nt":  FormatNTriples,
	".nq":  FormatNQuads,
}

var formatMediaTypes = map[string]Format{
	"application/rdf+xml":   FormatRDFXML,
	"application/xml":       FormatRDFXML,
	"text/xml":              FormatRDFXML,
	"text/turtle":           FormatTurtle,
	"application/x-turtle":  FormatTurtle,
	"application/n-triples": FormatNTriples,
	"text/plain":            FormatNTriples,
	"application/n-quads":   FormatNQuads,
	"text/x-nquads":         FormatNQuads,
}

// DetectFormat detects the format of a resource from its name and content type.
// The file extension takes precedence over the content type.
func DetectFormat(name, contentType string) (Format, bool) {
	if format, ok := formatExtensions[strings.ToLower(path.Ext(name))]; ok {
		return format, true
	}

	mediaType, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		return "", false
	}
	format, ok := formatMediaTypes[mediaType]
	return format, ok
}

// Source returns a source reading triples in this format from r.
func (format Format) Source(r io.Reader) (Source, error) {
	switch format {
	case FormatRDFXML:
		return NewDecoderSource(r, rdf.RDFXML), nil
	case FormatTurtle:
		return NewDecoderSource(r, rdf.Turtle), nil
	case FormatNTriples, FormatNQuads:
		return NewQuadSource(r), nil
	default:
		return nil, fmt.Errorf("%w: %q", errUnknownFormat, string(format))
	}
}
