package exporter

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
)

// Elastic implements a Sink that writes into an elasticsearch index using the bulk api.
type Elastic struct {
	Client *http.Client // nil uses http.DefaultClient
	URL    string       // base url of the cluster, e.g. "http://localhost:9200"
	Index  string       // name of the index
	Type   string       // document type; omitted from requests when empty
}

var (
	errBulkStatus   = errors.New("bulk request failed")
	errBulkResponse = errors.New("invalid bulk response")
	errBulkItem     = errors.New("document rejected")
)

// maxBulkErrorBytes is the maximum number of bytes read from a failed bulk response
const maxBulkErrorBytes = 64 * 1024

type bulkAction struct {
	Index bulkMeta `json:"index"`
}

type bulkMeta struct {
	Index string `json:"_index"`
	Type  string `json:"_type,omitempty"`
	ID    string `json:"_id"`
}

type bulkResponse struct {
	Errors bool                    `json:"errors"`
	Items  []map[string]bulkResult `json:"items"`
}

type bulkResult struct {
	ID     string          `json:"_id"`
	Status int             `json:"status"`
	Error  json.RawMessage `json:"error"`
}

// BulkIndex sends items in a single bulk request.
// Items whose body is not valid json are rejected without being sent.
func (elastic *Elastic) BulkIndex(ctx context.Context, items []Item) []error {
	errs := make([]error, len(items))

	var body bytes.Buffer
	sent := make([]int, 0, len(items)) // indexes of items in the request
	encoder := json.NewEncoder(&body)
	for i, item := range items {
		start := body.Len()
		if err := encoder.Encode(bulkAction{Index: bulkMeta{Index: elastic.Index, Type: elastic.Type, ID: item.ID}}); err != nil {
			errs[i] = fmt.Errorf("failed to encode action: %w", err)
			body.Truncate(start)
			continue
		}

		// bodies must be on a single line
		if err := json.Compact(&body, item.Body); err != nil {
			errs[i] = fmt.Errorf("invalid document body: %w", err)
			body.Truncate(start)
			continue
		}
		body.WriteByte('\n')
		sent = append(sent, i)
	}
	if len(sent) == 0 {
		return errs
	}

	results, err := elastic.do(ctx, &body)
	if err == nil && len(results) != len(sent) {
		err = fmt.Errorf("%w: got %d results for %d documents", errBulkResponse, len(results), len(sent))
	}
	if err != nil {
		for _, i := range sent {
			errs[i] = err
		}
		return errs
	}

	for j, i := range sent {
		errs[i] = results[j].err()
	}
	return errs
}

func (elastic *Elastic) do(ctx context.Context, body io.Reader) ([]bulkResult, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, strings.TrimSuffix(elastic.URL, "/")+"/_bulk", body)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-ndjson")

	client := elastic.Client
	if client == nil {
		client = http.DefaultClient
	}
	res, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to send bulk request: %w", err)
	}
	defer res.Body.Close()

	if res.StatusCode < 200 || res.StatusCode >= 300 {
		message, _ := io.ReadAll(io.LimitReader(res.Body, maxBulkErrorBytes))
		return nil, fmt.Errorf("%w: %s: %s", errBulkStatus, res.Status, bytes.TrimSpace(message))
	}

	var response bulkResponse
	if err := json.NewDecoder(res.Body).Decode(&response); err != nil {
		return nil, fmt.Errorf("%w: %w", errBulkResponse, err)
	}

	results := make([]bulkResult, len(response.Items))
	for i, item := range response.Items {
		// each item has exactly one key, the action
		for _, result := range item {
			results[i] = result
		}
	}
	return results, nil
}

func (result bulkResult) err() error {
	if len(result.Error) > 0 && string(result.Error) != "null" {
		return fmt.Errorf("%w: status %d: %s", errBulkItem, result.Status, result.Error)
	}
	if result.Status < 200 || result.Status >= 300 {
		return fmt.Errorf("%w: status %d", errBulkItem, result.Status)
	}
	return nil
}

func (elastic *Elastic) Close() error {
	return nil // no-op
}
