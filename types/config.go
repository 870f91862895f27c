package types

import (
	"fmt"
	"time"

	"github.com/hashicorp/go-multierror"

	"github.com/datazip-inc/streamcatchup/constants"
)

// Config is the CLI configuration binding one source, one projection store and
// one built-in projection.
type Config struct {
	Source       SourceConfig  `json:"source" mapstructure:"source" validate:"required"`
	Store        StoreConfig   `json:"store" mapstructure:"store" validate:"required"`
	Projection   string        `json:"projection,omitempty" mapstructure:"projection" validate:"omitempty,oneof=requests counter"`
	BatchSize    int           `json:"batch_size,omitempty" mapstructure:"batch_size" validate:"gte=0"`
	PollInterval time.Duration `json:"poll_interval,omitempty" mapstructure:"poll_interval" validate:"gte=0"`
	MetricsAddr  string        `json:"metrics_addr,omitempty" mapstructure:"metrics_addr"`
}

type SourceConfig struct {
	Type     constants.SourceType `json:"type" mapstructure:"type" validate:"required,oneof=logfile sql parquet"`
	Path     string               `json:"path,omitempty" mapstructure:"path"`
	Pattern  string               `json:"pattern,omitempty" mapstructure:"pattern"`
	Driver   string               `json:"driver,omitempty" mapstructure:"driver"`
	DSN      string               `json:"dsn,omitempty" mapstructure:"dsn"`
	Table    string               `json:"table,omitempty" mapstructure:"table"`
	StreamID string               `json:"stream_id,omitempty" mapstructure:"stream_id"`
}

type StoreConfig struct {
	Type       constants.StoreType `json:"type" mapstructure:"type" validate:"required,oneof=memory file sql mongodb"`
	Path       string              `json:"path,omitempty" mapstructure:"path"`
	Driver     string              `json:"driver,omitempty" mapstructure:"driver"`
	DSN        string              `json:"dsn,omitempty" mapstructure:"dsn"`
	Table      string              `json:"table,omitempty" mapstructure:"table"`
	URI        string              `json:"uri,omitempty" mapstructure:"uri"`
	Database   string              `json:"database,omitempty" mapstructure:"database"`
	Collection string              `json:"collection,omitempty" mapstructure:"collection"`
}

// Validate checks the cross-field requirements struct tags cannot express
func (c *Config) Validate() error {
	var errs error
	if err := c.Source.Validate(); err != nil {
		errs = multierror.Append(errs, err)
	}
	if err := c.Store.Validate(); err != nil {
		errs = multierror.Append(errs, err)
	}
	if c.Projection == "requests" && c.Source.Type != constants.LogFile {
		errs = multierror.Append(errs, fmt.Errorf("projection[requests] requires a %s source", constants.LogFile))
	}
	return errs
}

func (s *SourceConfig) Validate() error {
	switch s.Type {
	case constants.LogFile, constants.ParquetFile:
		if s.Path == "" {
			return fmt.Errorf("source[%s] requires path", s.Type)
		}
	case constants.SQLEvents:
		if s.DSN == "" || s.Driver == "" {
			return fmt.Errorf("source[%s] requires driver and dsn", s.Type)
		}
	}
	return nil
}

func (s *StoreConfig) Validate() error {
	switch s.Type {
	case constants.FileStore:
		if s.Path == "" {
			return fmt.Errorf("store[%s] requires path", s.Type)
		}
	case constants.SQLStore:
		if s.DSN == "" || s.Driver == "" {
			return fmt.Errorf("store[%s] requires driver and dsn", s.Type)
		}
	case constants.MongoStore:
		if s.URI == "" || s.Database == "" {
			return fmt.Errorf("store[%s] requires uri and database", s.Type)
		}
	}
	return nil
}

// ProjectionKind returns the configured projection, defaulting by source type
func (c *Config) ProjectionKind() string {
	if c.Projection != "" {
		return c.Projection
	}
	if c.Source.Type == constants.LogFile {
		return "requests"
	}
	return "counter"
}

// BatchSizeOrDefault returns the configured batch size hint
func (c *Config) BatchSizeOrDefault() int {
	if c.BatchSize > 0 {
		return c.BatchSize
	}
	return constants.DefaultBatchSize
}

// PollIntervalOrDefault returns the configured poll interval
func (c *Config) PollIntervalOrDefault() time.Duration {
	if c.PollInterval > 0 {
		return c.PollInterval
	}
	return constants.DefaultPollInterval
}
