// Package config loads the harvester configuration.
package config

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/FAU-CDI/harvester/internal/acquire"
	"github.com/FAU-CDI/harvester/internal/exporter"
	"github.com/FAU-CDI/harvester/internal/filter"
	"github.com/FAU-CDI/harvester/internal/flatten"
	"github.com/FAU-CDI/harvester/internal/harvest"
	"github.com/FAU-CDI/harvester/internal/stats"
	"github.com/spf13/cast"
	"github.com/spf13/viper"
)

// Configuration keys
const (
	KeySourceURLs             = "sourceURLs"
	KeyEndpoint               = "endpoint"
	KeyQuery                  = "query"
	KeyQueryFile              = "queryFile"
	KeyQueryKind              = "queryKind"
	KeySelectVars             = "selectVars"
	KeyRelationList           = "relationList"
	KeyRelationListMode       = "relationListMode"
	KeyIndexName              = "indexName"
	KeyDocumentType           = "documentType"
	KeyBatchSize              = "batchSize"
	KeyConcurrentRequestLimit = "concurrentRequestLimit"
	KeyFetchConcurrency       = "fetchConcurrency"
	KeyDumpFormat             = "dumpFormat"
	KeyTimeout                = "timeout"
	KeyUserAgent              = "userAgent"
	KeySink                   = "sink"
	KeySinkAddress            = "sinkAddress"
	KeyNATSBucket             = "natsBucket"
	KeySkipEmpty              = "skipEmpty"
	KeyAddr                   = "addr"
	KeyS3Endpoint             = "s3Endpoint"
	KeyS3Region               = "s3Region"
	KeyS3AccessKey            = "s3AccessKey"
	KeyS3SecretKey            = "s3SecretKey"
)

// EnvPrefix is the prefix of environment variables overriding configuration keys.
const EnvPrefix = "HARVESTER"

// FileName is the name of the configuration file, without extension.
const FileName = "harvester"

// New creates a new viper instance with defaults set.
// Environment variables with EnvPrefix override any other value.
func New() *viper.Viper {
	v := viper.New()
	SetDefaults(v)
	v.SetEnvPrefix(EnvPrefix)
	v.AutomaticEnv()
	return v
}

// ReadFile reads the configuration file into v.
// When path is empty, "harvester.yaml" is searched in the working directory and in "~/.config/harvester".
// A missing configuration file is not an error unless path is set.
func ReadFile(v *viper.Viper, path string) error {
	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName(FileName)
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		if home, err := os.UserHomeDir(); err == nil {
			v.AddConfigPath(filepath.Join(home, ".config", FileName))
		}
	}

	err := v.ReadInConfig()
	var notFound viper.ConfigFileNotFoundError
	if path == "" && errors.As(err, &notFound) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}
	return nil
}

// SetDefaults sets the default value of every configuration key.
func SetDefaults(v *viper.Viper) {
	v.SetDefault(KeySourceURLs, []string{})
	v.SetDefault(KeyEndpoint, "")
	v.SetDefault(KeyQuery, "")
	v.SetDefault(KeyQueryFile, "")
	v.SetDefault(KeyQueryKind, string(acquire.Construct))
	v.SetDefault(KeySelectVars, "s,p,o")
	v.SetDefault(KeyRelationList, []string{})
	v.SetDefault(KeyRelationListMode, "deny")
	v.SetDefault(KeyIndexName, "rdfdata")
	v.SetDefault(KeyDocumentType, "")
	v.SetDefault(KeyBatchSize, 1)
	v.SetDefault(KeyConcurrentRequestLimit, 1)
	v.SetDefault(KeyFetchConcurrency, 1)
	v.SetDefault(KeyDumpFormat, string(acquire.DefaultFormat))
	v.SetDefault(KeyTimeout, time.Duration(0))
	v.SetDefault(KeyUserAgent, acquire.DefaultUserAgent)
	v.SetDefault(KeySink, string(exporter.KindMemory))
	v.SetDefault(KeySinkAddress, "")
	v.SetDefault(KeyNATSBucket, "harvester")
	v.SetDefault(KeySkipEmpty, false)
	v.SetDefault(KeyAddr, ":3000")
	v.SetDefault(KeyS3Endpoint, "")
	v.SetDefault(KeyS3Region, "")
	v.SetDefault(KeyS3AccessKey, "")
	v.SetDefault(KeyS3SecretKey, "")
}

// Config is the complete harvester configuration.
type Config struct {
	SourceURLs []string

	Endpoint   string
	Query      string
	QueryKind  acquire.QueryKind
	SelectVars acquire.SelectVars

	RelationList     []string
	RelationListMode filter.Mode

	IndexName    string
	DocumentType string

	BatchSize              int
	ConcurrentRequestLimit int
	FetchConcurrency       int

	DumpFormat acquire.Format
	Timeout    time.Duration
	UserAgent  string

	Sink        exporter.Kind
	SinkAddress string
	NATSBucket  string

	SkipEmpty bool
	Addr      string

	S3 acquire.S3Options
}

var (
	errNoSources       = errors.New("no sources configured: need an endpoint and a query, or at least one source url")
	errQueryNoEndpoint = errors.New("query configured without an endpoint")
	errEndpointNoQuery = errors.New("endpoint configured without a query")
	errBothQueries     = errors.New("only one of query and queryFile may be set")
	errIndexName       = errors.New("indexName may not be empty")
)

// Load reads the configuration from v.
func Load(v *viper.Viper) (config Config, err error) {
	config.SourceURLs = ParseList(v.Get(KeySourceURLs))
	config.Endpoint = strings.TrimSpace(v.GetString(KeyEndpoint))

	config.Query = v.GetString(KeyQuery)
	if file := v.GetString(KeyQueryFile); file != "" {
		if strings.TrimSpace(config.Query) != "" {
			return Config{}, errBothQueries
		}
		data, err := os.ReadFile(file) // #nosec G304 -- explicitly configured query
		if err != nil {
			return Config{}, fmt.Errorf("failed to read query file: %w", err)
		}
		config.Query = string(data)
	}
	config.Query = strings.TrimSpace(config.Query)

	if config.QueryKind, err = acquire.ParseQueryKind(v.GetString(KeyQueryKind)); err != nil {
		return Config{}, err
	}
	if config.SelectVars, err = acquire.ParseSelectVars(strings.Join(ParseList(v.Get(KeySelectVars)), ",")); err != nil {
		return Config{}, err
	}

	config.RelationList = ParseList(v.Get(KeyRelationList))
	if config.RelationListMode, err = filter.ParseMode(v.GetString(KeyRelationListMode)); err != nil {
		return Config{}, err
	}

	config.IndexName = strings.TrimSpace(v.GetString(KeyIndexName))
	if config.IndexName == "" {
		return Config{}, errIndexName
	}
	config.DocumentType = strings.TrimSpace(v.GetString(KeyDocumentType))

	config.BatchSize = max(v.GetInt(KeyBatchSize), 1)
	config.ConcurrentRequestLimit = max(v.GetInt(KeyConcurrentRequestLimit), 1)
	config.FetchConcurrency = max(v.GetInt(KeyFetchConcurrency), 1)

	if config.DumpFormat, err = acquire.ParseFormat(v.GetString(KeyDumpFormat)); err != nil {
		return Config{}, err
	}
	config.Timeout = v.GetDuration(KeyTimeout)
	config.UserAgent = v.GetString(KeyUserAgent)

	if config.Sink, err = exporter.ParseKind(v.GetString(KeySink)); err != nil {
		return Config{}, err
	}
	config.SinkAddress = strings.TrimSpace(v.GetString(KeySinkAddress))
	config.NATSBucket = strings.TrimSpace(v.GetString(KeyNATSBucket))

	config.SkipEmpty = v.GetBool(KeySkipEmpty)
	config.Addr = v.GetString(KeyAddr)

	config.S3 = acquire.S3Options{
		Endpoint:  v.GetString(KeyS3Endpoint),
		Region:    v.GetString(KeyS3Region),
		AccessKey: v.GetString(KeyS3AccessKey),
		SecretKey: v.GetString(KeyS3SecretKey),
	}

	return config, nil
}

// Validate checks that config describes at least one source to harvest.
func (config Config) Validate() error {
	hasEndpoint := config.Endpoint != ""
	hasQuery := config.Query != ""

	switch {
	case hasQuery && !hasEndpoint:
		return errQueryNoEndpoint
	case hasEndpoint && !hasQuery:
		return errEndpointNoQuery
	case !hasEndpoint && len(config.SourceURLs) == 0:
		return errNoSources
	}
	return nil
}

// ParseList parses a list value.
//
// A string is split at commas, and may optionally be wrapped in brackets, as in "[a, b]".
// Entries are trimmed and empty entries are dropped.
func ParseList(value any) []string {
	var entries []string
	switch value := value.(type) {
	case nil:
		return nil
	case string:
		value = strings.TrimSpace(value)
		if strings.HasPrefix(value, "[") && strings.HasSuffix(value, "]") {
			value = value[1 : len(value)-1]
		}
		entries = strings.Split(value, ",")
	default:
		entries = cast.ToStringSlice(value)
	}

	list := make([]string, 0, len(entries))
	for _, entry := range entries {
		entry = strings.TrimSpace(entry)
		if entry == "" {
			continue
		}
		list = append(list, entry)
	}
	return list
}

// Filter returns the relation filter described by config.
func (config Config) Filter() filter.Filter {
	return filter.New(config.RelationListMode, config.RelationList...)
}

// Flattener returns the flattener described by config.
func (config Config) Flattener() flatten.Flattener {
	return flatten.Flattener{
		Filter:    config.Filter(),
		SkipEmpty: config.SkipEmpty,
	}
}

// Harvest returns the harvest configuration.
func (config Config) Harvest() harvest.Config {
	return harvest.Config{
		Endpoint:               config.Endpoint,
		Query:                  config.Query,
		QueryKind:              config.QueryKind,
		SourceURLs:             config.SourceURLs,
		FetchConcurrency:       config.FetchConcurrency,
		BatchSize:              config.BatchSize,
		ConcurrentRequestLimit: config.ConcurrentRequestLimit,
	}
}

// HTTPClient returns the http client to use for all requests.
func (config Config) HTTPClient() *http.Client {
	return &http.Client{Timeout: config.Timeout}
}

// SinkOptions returns the options to open the configured sink.
func (config Config) SinkOptions() exporter.Options {
	return exporter.Options{
		Kind:    config.Sink,
		Address: config.SinkAddress,
		Index:   config.IndexName,
		Type:    config.DocumentType,
		Bucket:  config.NATSBucket,
		Client:  config.HTTPClient(),
	}
}

// needsS3 checks if any source is an s3 location.
func (config Config) needsS3() bool {
	for _, url := range config.SourceURLs {
		if strings.HasPrefix(strings.ToLower(url), "s3://") {
			return true
		}
	}
	return false
}

// Acquirer returns the acquirer described by config.
// An s3 client is only created when a source requires it.
func (config Config) Acquirer(ctx context.Context, st *stats.Stats) (*acquire.Acquirer, error) {
	acquirer := &acquire.Acquirer{
		Client:    config.HTTPClient(),
		UserAgent: config.UserAgent,
		Format:    config.DumpFormat,
		Vars:      config.SelectVars,
		Stats:     st,
	}

	if config.needsS3() {
		client, err := acquire.NewS3Client(ctx, config.S3)
		if err != nil {
			return nil, err
		}
		acquirer.S3 = client
	}
	return acquirer, nil
}

// Harvester returns a new harvester writing into sink.
func (config Config) Harvester(ctx context.Context, sink exporter.Sink, st *stats.Stats) (*harvest.Harvester, error) {
	acquirer, err := config.Acquirer(ctx, st)
	if err != nil {
		return nil, err
	}

	return &harvest.Harvester{
		Config:    config.Harvest(),
		Acquirer:  acquirer,
		Flattener: config.Flattener(),
		Sink:      sink,
		Stats:     st,
	}, nil
}
