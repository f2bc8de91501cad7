package graph

// Kind is the semantic kind of a literal.
type Kind uint8

const (
	// KindText is any literal that is rendered as a string.
	// Literals without a datatype, or with an unknown datatype, are text.
	KindText Kind = iota

	// KindBoolean represents xsd:boolean literals.
	KindBoolean

	// KindInteger represents xsd:integer and the derived integer datatypes.
	KindInteger

	// KindFloat represents xsd:float and xsd:double literals.
	KindFloat
)

func (kind Kind) String() string {
	switch kind {
	case KindBoolean:
		return "boolean"
	case KindInteger:
		return "integer"
	case KindFloat:
		return "float"
	default:
		return "text"
	}
}

// XSD is the namespace of the xml schema datatypes.
const XSD = "http://www.w3.org/2001/XMLSchema#"

var kinds = map[Label]Kind{
	XSD + "boolean": KindBoolean,

	XSD + "integer":            KindInteger,
	XSD + "long":               KindInteger,
	XSD + "int":                KindInteger,
	XSD + "short":              KindInteger,
	XSD + "byte":               KindInteger,
	XSD + "nonNegativeInteger": KindInteger,
	XSD + "nonPositiveInteger": KindInteger,
	XSD + "positiveInteger":    KindInteger,
	XSD + "negativeInteger":    KindInteger,
	XSD + "unsignedLong":       KindInteger,
	XSD + "unsignedInt":        KindInteger,
	XSD + "unsignedShort":      KindInteger,
	XSD + "unsignedByte":       KindInteger,

	XSD + "float":  KindFloat,
	XSD + "double": KindFloat,
}

// KindOf returns the kind of literals with the given datatype.
func KindOf(datatype Label) Kind {
	kind, ok := kinds[datatype]
	if !ok {
		return KindText
	}
	return kind
}
