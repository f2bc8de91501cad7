package exporter

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
)

// Kind identifies a kind of sink.
type Kind string

const (
	KindMemory   Kind = "memory"
	KindLevelDB  Kind = "leveldb"
	KindSQLite   Kind = "sqlite"
	KindMySQL    Kind = "mysql"
	KindPostgres Kind = "postgres"
	KindElastic  Kind = "elastic"
	KindNATS     Kind = "nats"
)

// Kinds lists all known kinds of sinks.
var Kinds = []Kind{KindMemory, KindLevelDB, KindSQLite, KindMySQL, KindPostgres, KindElastic, KindNATS}

var (
	errUnknownKind = errors.New("unknown sink")
	errNoAddress   = errors.New("sink needs an address")
)

// ParseKind parses the name of a sink kind.
// The empty string is KindMemory.
func ParseKind(value string) (Kind, error) {
	value = strings.ToLower(strings.TrimSpace(value))
	switch value {
	case "":
		return KindMemory, nil
	case "elasticsearch":
		return KindElastic, nil
	case "postgresql":
		return KindPostgres, nil
	}
	for _, kind := range Kinds {
		if string(kind) == value {
			return kind, nil
		}
	}
	return "", fmt.Errorf("%w: %q", errUnknownKind, value)
}

// Options describe a sink to open.
type Options struct {
	Kind    Kind
	Address string // url, dsn or path of the sink; unused for KindMemory

	Index   string // name of the index
	Type    string // document type, may be empty
	Bucket  string // bucket prefix for KindNATS

	Client *http.Client // client used by KindElastic
}

// Open opens the sink described by options.
func Open(ctx context.Context, options Options) (Sink, error) {
	if options.Kind != KindMemory && options.Kind != "" && options.Address == "" {
		return nil, fmt.Errorf("%w: %q", errNoAddress, options.Kind)
	}

	switch options.Kind {
	case KindMemory, "":
		return new(Map), nil
	case KindLevelDB:
		return asSink(OpenLevelDB(options.Address))
	case KindSQLite:
		return asSink(OpenSQL(ctx, DriverSQLite, options.Address, options.Index, options.Type))
	case KindMySQL:
		return asSink(OpenSQL(ctx, DriverMySQL, options.Address, options.Index, options.Type))
	case KindPostgres:
		return asSink(OpenSQL(ctx, DriverPostgres, options.Address, options.Index, options.Type))
	case KindElastic:
		return &Elastic{
			Client: options.Client,
			URL:    options.Address,
			Index:  options.Index,
			Type:   options.Type,
		}, nil
	case KindNATS:
		return asSink(DialNATS(ctx, options.Address, options.Bucket, options.Index))
	default:
		return nil, fmt.Errorf("%w: %q", errUnknownKind, options.Kind)
	}
}

// asSink converts the result of a constructor into a Sink, without wrapping a nil pointer.
func asSink[S Sink](sink S, err error) (Sink, error) {
	if err != nil {
		return nil, err
	}
	return sink, nil
}
