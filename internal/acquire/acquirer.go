package acquire

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/FAU-CDI/harvester/internal/graph"
	"github.com/FAU-CDI/harvester/internal/stats"
	"github.com/FAU-CDI/harvester/pkg/progress"
)

// QueryKind is the kind of a sparql query.
type QueryKind string

const (
	// Select queries return rows binding a subject, predicate and object each.
	Select QueryKind = "select"

	// Construct queries return a graph.
	Construct QueryKind = "construct"
)

var errUnknownQueryKind = errors.New("unknown query kind")

// ParseQueryKind parses a query kind.
// The empty string is Construct.
func ParseQueryKind(value string) (QueryKind, error) {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "", string(Construct):
		return Construct, nil
	case string(Select):
		return Select, nil
	default:
		return "", fmt.Errorf("%w: %q", errUnknownQueryKind, value)
	}
}

const (
	selectAccept    = "application/sparql-results+json"
	constructAccept = "application/n-triples, application/n-quads;q=0.9, text/turtle;q=0.8, application/rdf+xml;q=0.7, text/plain;q=0.5"
	dumpAccept      = "application/rdf+xml, text/turtle;q=0.9, application/n-triples;q=0.9, application/n-quads;q=0.9, */*;q=0.1"
)

// DefaultUserAgent is the user agent sent when none is configured.
const DefaultUserAgent = "harvester/1.0"

// Acquirer fetches graphs from sparql endpoints and dumps.
//
// An Acquirer holds no state across calls and is safe for concurrent use.
type Acquirer struct {
	Client    *http.Client // client for http requests; nil uses http.DefaultClient
	S3        S3API        // client for "s3://" locations; may be nil
	UserAgent string       // user agent for http requests, defaults to DefaultUserAgent

	// Format is the format of dumps.
	// FormatAuto detects it from the name and content type of each dump.
	// The zero value is DefaultFormat.
	Format Format

	// Vars are the variables bound by select queries.
	// The zero value is DefaultSelectVars.
	Vars SelectVars

	Stats *stats.Stats
}

func (acquirer *Acquirer) client() *http.Client {
	if acquirer.Client == nil {
		return http.DefaultClient
	}
	return acquirer.Client
}

func (acquirer *Acquirer) setUserAgent(req *http.Request) {
	agent := acquirer.UserAgent
	if agent == "" {
		agent = DefaultUserAgent
	}
	req.Header.Set("User-Agent", agent)
}

// FetchFromQuery runs query against the sparql endpoint and returns the resulting graph.
//
// For Select queries, rows that do not bind a triple are logged and skipped.
func (acquirer *Acquirer) FetchFromQuery(ctx context.Context, endpoint, query string, kind QueryKind) (*graph.Graph, error) {
	accept := constructAccept
	if kind == Select {
		accept = selectAccept
	}

	form := url.Values{"query": []string{query}}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Accept", accept)
	acquirer.setUserAgent(req)

	res, err := acquirer.client().Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to query endpoint: %w", err)
	}
	if err := checkResponse(res); err != nil {
		return nil, err
	}
	defer res.Body.Close()

	var source Source
	if kind == Select {
		source, err = NewBindingsSource(res.Body, acquirer.Vars)
	} else {
		format, ok := DetectFormat("", res.Header.Get("Content-Type"))
		if !ok {
			format = FormatNTriples
		}
		source, err = format.Source(res.Body)
	}
	if err != nil {
		return nil, err
	}

	return Load(source, endpoint, acquirer.Stats)
}

var errUndetectableFormat = errors.New("unable to detect dump format")

// FetchFromDump fetches and parses the dump at location.
//
// Location may be an "http", "https", "s3" or "file" url, or a path on the local file system.
// Gzip-compressed dumps are decompressed transparently.
func (acquirer *Acquirer) FetchFromDump(ctx context.Context, location string) (g *graph.Graph, e error) {
	resource, err := acquirer.open(ctx, location)
	if err != nil {
		return nil, err
	}
	defer func() {
		if e2 := resource.Close(); e2 != nil && e == nil {
			g, e = nil, fmt.Errorf("failed to close dump: %w", e2)
		}
	}()

	format := acquirer.Format
	switch format {
	case "":
		format = DefaultFormat
	case FormatAuto:
		var ok bool
		format, ok = DetectFormat(resource.Name, resource.ContentType)
		if !ok {
			return nil, fmt.Errorf("%w: %q", errUndetectableFormat, location)
		}
	}

	reader := &progress.Reader{
		Reader:   resource,
		Total:    resource.Size,
		Prefix:   location,
		Progress: acquirer.Stats.Rewritable(),
	}
	source, err := format.Source(reader)
	if err != nil {
		return nil, err
	}

	acquirer.Stats.LogDebug("parsing dump", "source", location, "format", format)
	return Load(source, location, acquirer.Stats)
}
