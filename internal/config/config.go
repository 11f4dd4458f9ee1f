// Package config loads the encounter pipeline configuration from environment
// variables, applies defaults, and validates everything up front so that a
// misconfigured run fails before it touches any data.
package config

import (
	"net"
	"strconv"
	"time"
)

// Sink kinds accepted by SINK_KIND.
const (
	SinkMongo    = "mongo"
	SinkPostgres = "postgres"
)

// Config holds all application configuration.
type Config struct {
	Source   SourceConfig
	Pipeline PipelineConfig
	Reports  ReportsConfig
	Sink     SinkConfig
	Mongo    MongoConfig
	Postgres PostgresConfig
	Server   ServerConfig
	Logging  LoggingConfig
	Export   ExportConfig
}

// SourceConfig locates the input CSV.
type SourceConfig struct {
	Input string `env:"INGEST_INPUT" default:"data/healthcare_dataset.csv"`
}

// PipelineConfig controls batching of accepted documents.
type PipelineConfig struct {
	// BatchSize is the number of documents per sink write (default: 5000)
	BatchSize int `env:"PIPELINE_BATCH_SIZE" default:"5000"`

	// ParallelWrites is how many batches may be written at once (default: 1)
	ParallelWrites int `env:"PIPELINE_PARALLEL_WRITES" default:"1"`
}

// ReportsConfig names the files written by validate, prepare and load.
type ReportsConfig struct {
	Dir           string `env:"REPORT_DIR" default:"reports"`
	CleanOutput   string `env:"CLEAN_OUTPUT" default:"data/healthcare_cleaned.csv"`
	RejectOutput  string `env:"REJECT_OUTPUT" default:"reports/rejects.jsonl"`
	SummaryOutput string `env:"SUMMARY_OUTPUT" default:"reports/pre_ingest.json"`
}

// SinkConfig selects the document store.
type SinkConfig struct {
	Kind string `env:"SINK_KIND" default:"mongo"`
}

// MongoConfig holds document store settings.
type MongoConfig struct {
	URI        string        `env:"MONGO_URI" default:"mongodb://localhost:27017"`
	Database   string        `env:"MONGO_DB" default:"healthcare"`
	Collection string        `env:"MONGO_COLL" default:"encounters"`
	Timeout    time.Duration `env:"MONGO_TIMEOUT" default:"10s"`
}

// PostgresConfig holds settings for the JSONB sink.
type PostgresConfig struct {
	// URL is the connection string; required only when SINK_KIND=postgres.
	// Both DATABASE_URL and DB_URL are accepted.
	URL string `env:"DATABASE_URL" envAlt:"DB_URL"`

	MaxConns int    `env:"DB_MAX_CONNS" default:"10"`
	MinConns int    `env:"DB_MIN_CONNS" default:"1"`
	Table    string `env:"DB_TABLE" default:"encounters"`
}

// ServerConfig holds HTTP ingest API settings.
type ServerConfig struct {
	Host string `env:"SERVER_HOST" default:"0.0.0.0"`
	Port int    `env:"SERVER_PORT" default:"8080"`

	ReadTimeout     time.Duration `env:"SERVER_READ_TIMEOUT" default:"15s"`
	WriteTimeout    time.Duration `env:"SERVER_WRITE_TIMEOUT" default:"0s"`
	IdleTimeout     time.Duration `env:"SERVER_IDLE_TIMEOUT" default:"60s"`
	ShutdownTimeout time.Duration `env:"SERVER_SHUTDOWN_TIMEOUT" default:"30s"`
	RequestTimeout  time.Duration `env:"SERVER_REQUEST_TIMEOUT" default:"10m"`

	// MaxConcurrent bounds simultaneous pipeline runs (default: 2)
	MaxConcurrent int `env:"INGEST_MAX_CONCURRENT" default:"2"`

	// MaxFileSize is the largest accepted upload in bytes (default: 100MB)
	MaxFileSize int64 `env:"INGEST_MAX_FILE_SIZE" default:"104857600"`

	// MaxWaitTime is how long a request waits for a run slot (default: 30s)
	MaxWaitTime time.Duration `env:"INGEST_MAX_WAIT_TIME" default:"30s"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	// Level is the minimum log level: debug, info, warn, error (default: info)
	Level string `env:"LOG_LEVEL" default:"info"`

	// Format is the log format: text or json (default: text)
	Format string `env:"LOG_FORMAT" default:"text"`
}

// ExportConfig controls the export command.
type ExportConfig struct {
	// OutFile defaults to exports/<db>_<collection>.jsonl when empty.
	OutFile   string `env:"EXPORT_OUT_FILE"`
	BatchSize int    `env:"EXPORT_BATCH_SIZE" default:"5000"`
}

// Addr returns the server listen address in host:port format.
func (c *ServerConfig) Addr() string {
	return net.JoinHostPort(c.Host, strconv.Itoa(c.Port))
}

// ExportPath returns the export file, falling back to the default name.
func (c *Config) ExportPath() string {
	if c.Export.OutFile != "" {
		return c.Export.OutFile
	}
	target := c.Mongo.Collection
	db := c.Mongo.Database
	if c.Sink.Kind == SinkPostgres {
		target, db = c.Postgres.Table, "postgres"
	}
	return "exports/" + db + "_" + target + ".jsonl"
}
