package main

import (
	"fmt"
	"strings"

	"github.com/FAU-CDI/harvester/internal/config"
	"github.com/FAU-CDI/harvester/internal/exporter"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
)

// harvestFlags adds flags for all harvest settings to cmd.
func harvestFlags(cmd *cobra.Command) {
	flags := cmd.Flags()

	flags.StringSlice("source", nil, "url of a dump to harvest, may be repeated")
	flags.String("endpoint", "", "url of the SPARQL endpoint")
	flags.String("query", "", "SPARQL query to run against the endpoint")
	flags.String("query-file", "", "read the SPARQL query from the given file")
	flags.String("query-kind", "", "kind of query, one of 'construct' or 'select'")
	flags.String("select-vars", "", "subject, predicate and object variables of a select query")
	flags.StringSlice("relation", nil, "relation to allow or deny, may be repeated")
	flags.String("relation-mode", "", "how to treat relations, one of 'allow' or 'deny'")
	flags.String("index", "", "name of the index to write documents to")
	flags.String("type", "", "type of documents, if supported by the sink")
	flags.Int("batch-size", 0, "number of documents per request to the sink")
	flags.Int("concurrent-requests", 0, "maximum number of concurrent requests to the sink")
	flags.Int("fetch-concurrency", 0, "number of dumps to fetch in parallel")
	flags.String("dump-format", "", "format of dumps, 'auto' to detect")
	flags.Duration("timeout", 0, "timeout for http requests")
	flags.String("sink", "", fmt.Sprintf("kind of sink, one of %s", kinds()))
	flags.String("sink-address", "", "address of the sink")
	flags.String("nats-bucket", "", "prefix of the key value bucket for the 'nats' sink")
	flags.Bool("skip-empty", false, "do not submit documents without any relations")
}

// harvestKeys maps flags added by harvestFlags to configuration keys
var harvestKeys = map[string]string{
	"source":              config.KeySourceURLs,
	"endpoint":            config.KeyEndpoint,
	"query":               config.KeyQuery,
	"query-file":          config.KeyQueryFile,
	"query-kind":          config.KeyQueryKind,
	"select-vars":         config.KeySelectVars,
	"relation":            config.KeyRelationList,
	"relation-mode":       config.KeyRelationListMode,
	"index":               config.KeyIndexName,
	"type":                config.KeyDocumentType,
	"batch-size":          config.KeyBatchSize,
	"concurrent-requests": config.KeyConcurrentRequestLimit,
	"fetch-concurrency":   config.KeyFetchConcurrency,
	"dump-format":         config.KeyDumpFormat,
	"timeout":             config.KeyTimeout,
	"sink":                config.KeySink,
	"sink-address":        config.KeySinkAddress,
	"nats-bucket":         config.KeyNATSBucket,
	"skip-empty":          config.KeySkipEmpty,
}

// bind binds the named flags to v.
// Flags override the config file and the environment.
// Commands bind when they run, as several commands share the same keys.
func bind(flags *pflag.FlagSet, keys map[string]string) error {
	for name, key := range keys {
		if err := v.BindPFlag(key, flags.Lookup(name)); err != nil {
			return fmt.Errorf("failed to bind flag %q: %w", name, err)
		}
	}
	return nil
}

func kinds() string {
	names := make([]string, len(exporter.Kinds))
	for i, kind := range exporter.Kinds {
		names[i] = "'" + string(kind) + "'"
	}
	return strings.Join(names, ", ")
}

// loadConfig loads and validates the configuration.
func loadConfig() (config.Config, error) {
	cfg, err := config.Load(v)
	if err != nil {
		return config.Config{}, err
	}
	if err := cfg.Validate(); err != nil {
		return config.Config{}, err
	}
	return cfg, nil
}
