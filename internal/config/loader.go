package config

import (
	"fmt"
	"os"
	"reflect"
	"strconv"
	"strings"
	"time"

	"github.com/cockroachdb/errors"
)

// Load reads configuration from environment variables.
// It applies defaults for unset values and validates the result.
func Load() (*Config, error) {
	cfg := &Config{}

	if err := loadStruct(reflect.ValueOf(cfg).Elem()); err != nil {
		return nil, errors.Wrap(err, "config load")
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// loadStruct recursively populates struct fields from environment variables.
func loadStruct(v reflect.Value) error {
	t := v.Type()

	for i := 0; i < t.NumField(); i++ {
		field := t.Field(i)
		fieldVal := v.Field(i)

		if !fieldVal.CanSet() {
			continue
		}

		if field.Type.Kind() == reflect.Struct && field.Type != reflect.TypeOf(time.Time{}) {
			if err := loadStruct(fieldVal); err != nil {
				return err
			}
			continue
		}

		envName := field.Tag.Get("env")
		if envName == "" {
			continue
		}
		envAlt := field.Tag.Get("envAlt")
		required := field.Tag.Get("required") == "true"

		value := os.Getenv(envName)
		if value == "" && envAlt != "" {
			value = os.Getenv(envAlt)
		}
		if value == "" {
			if required {
				return errors.Newf("required environment variable %s is not set", envName)
			}
			value = field.Tag.Get("default")
		}
		if value == "" {
			continue
		}

		if err := setField(fieldVal, value); err != nil {
			return errors.Wrapf(err, "invalid value for %s=%q", envName, value)
		}
	}

	return nil
}

// setField sets a reflect.Value from a string based on its type.
func setField(field reflect.Value, value string) error {
	switch field.Kind() {
	case reflect.String:
		field.SetString(value)

	case reflect.Int, reflect.Int64:
		if field.Type() == reflect.TypeOf(time.Duration(0)) {
			d, err := time.ParseDuration(value)
			if err != nil {
				return errors.Wrap(err, "invalid duration")
			}
			field.SetInt(int64(d))
			return nil
		}
		i, err := strconv.ParseInt(value, 10, 64)
		if err != nil {
			return errors.Wrap(err, "invalid integer")
		}
		field.SetInt(i)

	case reflect.Bool:
		b, err := strconv.ParseBool(value)
		if err != nil {
			return errors.Wrap(err, "invalid boolean")
		}
		field.SetBool(b)

	default:
		return errors.Newf("unsupported field type: %s", field.Kind())
	}

	return nil
}

// Validate checks every setting and reports all problems at once.
func (c *Config) Validate() error {
	var errs []string

	if c.Pipeline.BatchSize <= 0 {
		errs = append(errs, "PIPELINE_BATCH_SIZE must be positive")
	}
	if c.Pipeline.ParallelWrites <= 0 {
		errs = append(errs, "PIPELINE_PARALLEL_WRITES must be positive")
	}

	switch c.Sink.Kind {
	case SinkMongo:
		if c.Mongo.URI == "" {
			errs = append(errs, "MONGO_URI is required when SINK_KIND=mongo")
		}
		if c.Mongo.Database == "" || c.Mongo.Collection == "" {
			errs = append(errs, "MONGO_DB and MONGO_COLL must be set")
		}
		if c.Mongo.Timeout <= 0 {
			errs = append(errs, "MONGO_TIMEOUT must be positive")
		}
	case SinkPostgres:
		if c.Postgres.URL == "" {
			errs = append(errs, "DATABASE_URL is required when SINK_KIND=postgres")
		}
		if c.Postgres.MaxConns <= 0 {
			errs = append(errs, "DB_MAX_CONNS must be positive")
		}
		if c.Postgres.MaxConns < c.Postgres.MinConns {
			errs = append(errs, fmt.Sprintf("DB_MAX_CONNS (%d) must be >= DB_MIN_CONNS (%d)",
				c.Postgres.MaxConns, c.Postgres.MinConns))
		}
		if c.Postgres.Table == "" {
			errs = append(errs, "DB_TABLE must be set")
		}
	default:
		errs = append(errs, fmt.Sprintf("SINK_KIND (%q) must be one of: mongo, postgres", c.Sink.Kind))
	}

	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		errs = append(errs, fmt.Sprintf("SERVER_PORT (%d) must be 1-65535", c.Server.Port))
	}
	if c.Server.ShutdownTimeout <= 0 {
		errs = append(errs, "SERVER_SHUTDOWN_TIMEOUT must be positive")
	}
	if c.Server.MaxConcurrent <= 0 {
		errs = append(errs, "INGEST_MAX_CONCURRENT must be positive")
	}
	if c.Server.MaxFileSize <= 0 {
		errs = append(errs, "INGEST_MAX_FILE_SIZE must be positive")
	}
	if c.Server.MaxWaitTime <= 0 {
		errs = append(errs, "INGEST_MAX_WAIT_TIME must be positive")
	}

	if c.Export.BatchSize <= 0 {
		errs = append(errs, "EXPORT_BATCH_SIZE must be positive")
	}

	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLevels[strings.ToLower(c.Logging.Level)] {
		errs = append(errs, fmt.Sprintf("LOG_LEVEL (%q) must be one of: debug, info, warn, error", c.Logging.Level))
	}
	validFormats := map[string]bool{"text": true, "json": true}
	if !validFormats[strings.ToLower(c.Logging.Format)] {
		errs = append(errs, fmt.Sprintf("LOG_FORMAT (%q) must be one of: text, json", c.Logging.Format))
	}

	if len(errs) > 0 {
		return errors.WithHint(
			errors.Newf("config validation failed:\n  - %s", strings.Join(errs, "\n  - ")),
			"set the variables in the environment or in .env",
		)
	}
	return nil
}

// String returns a representation safe for logging; connection strings are
// masked.
func (c *Config) String() string {
	var b strings.Builder
	b.WriteString("Config{")
	fmt.Fprintf(&b, "Source: {Input: %q}, ", c.Source.Input)
	fmt.Fprintf(&b, "Pipeline: {BatchSize: %d, ParallelWrites: %d}, ", c.Pipeline.BatchSize, c.Pipeline.ParallelWrites)
	fmt.Fprintf(&b, "Sink: {Kind: %q}, ", c.Sink.Kind)
	fmt.Fprintf(&b, "Mongo: {URI: [MASKED], DB: %q, Coll: %q}, ", c.Mongo.Database, c.Mongo.Collection)
	fmt.Fprintf(&b, "Postgres: {URL: [MASKED], Table: %q}, ", c.Postgres.Table)
	fmt.Fprintf(&b, "Server: {Addr: %q, MaxConcurrent: %d}, ", c.Server.Addr(), c.Server.MaxConcurrent)
	fmt.Fprintf(&b, "Logging: {Level: %q, Format: %q}", c.Logging.Level, c.Logging.Format)
	b.WriteString("}")
	return b.String()
}
