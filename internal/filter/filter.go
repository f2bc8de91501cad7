// Package filter decides which relations take part in flattened documents.
package filter

import (
	"errors"
	"fmt"
	"maps"
	"slices"
	"strings"

	"github.com/FAU-CDI/harvester/internal/graph"
)

// Mode determines how the relations of a filter are interpreted.
type Mode uint8

const (
	// Deny removes the listed relations and passes everything else.
	Deny Mode = iota

	// Allow passes only the listed relations.
	Allow
)

func (mode Mode) String() string {
	if mode == Allow {
		return "allow"
	}
	return "deny"
}

var errUnknownMode = errors.New("unknown relation list mode")

// ParseMode parses a relation list mode.
// The empty string is Deny.
func ParseMode(value string) (Mode, error) {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "", "deny", "black", "blacklist", "denylist":
		return Deny, nil
	case "allow", "white", "whitelist", "allowlist":
		return Allow, nil
	default:
		return Deny, fmt.Errorf("%w: %q", errUnknownMode, value)
	}
}

// Filter decides if a relation participates in the output.
//
// The zero Filter permits every relation.
// A Filter is immutable and safe for concurrent use.
type Filter struct {
	mode      Mode
	relations map[graph.Label]struct{}
}

// New creates a new filter with the given mode and relations.
// Relations are trimmed and empty ones are ignored.
// When no relations remain, the filter permits everything regardless of mode.
func New(mode Mode, relations ...string) Filter {
	filter := Filter{mode: mode}
	for _, relation := range relations {
		relation = strings.TrimSpace(relation)
		if relation == "" {
			continue
		}
		if filter.relations == nil {
			filter.relations = make(map[graph.Label]struct{}, len(relations))
		}
		filter.relations[graph.Label(relation)] = struct{}{}
	}
	return filter
}

// Mode returns the mode of this filter.
func (filter Filter) Mode() Mode {
	return filter.mode
}

// HasList reports if this filter has any relations configured.
func (filter Filter) HasList() bool {
	return len(filter.relations) > 0
}

// Relations returns the configured relations in sorted order.
func (filter Filter) Relations() []graph.Label {
	return slices.Sorted(maps.Keys(filter.relations))
}

// Permits checks if the given relation participates in the output.
func (filter Filter) Permits(relation graph.Label) bool {
	if !filter.HasList() {
		return true
	}

	_, listed := filter.relations[relation]
	if filter.mode == Allow {
		return listed
	}
	return !listed
}

func (filter Filter) String() string {
	if !filter.HasList() {
		return "permit all"
	}
	return fmt.Sprintf("%s %v", filter.mode, filter.Relations())
}
