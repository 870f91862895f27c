package types

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/datazip-inc/streamcatchup/constants"
)

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name    string
		config  Config
		wantErr bool
	}{
		{
			name: "logfile into memory",
			config: Config{
				Source: SourceConfig{Type: constants.LogFile, Path: "app.log"},
				Store:  StoreConfig{Type: constants.MemoryStore},
			},
		},
		{
			name: "logfile without path",
			config: Config{
				Source: SourceConfig{Type: constants.LogFile},
				Store:  StoreConfig{Type: constants.MemoryStore},
			},
			wantErr: true,
		},
		{
			name: "sql source and store without dsn",
			config: Config{
				Source: SourceConfig{Type: constants.SQLEvents, Driver: "pgx"},
				Store:  StoreConfig{Type: constants.SQLStore, Driver: "pgx"},
			},
			wantErr: true,
		},
		{
			name: "mongodb store without database",
			config: Config{
				Source: SourceConfig{Type: constants.ParquetFile, Path: "events.parquet"},
				Store:  StoreConfig{Type: constants.MongoStore, URI: "mongodb://localhost"},
			},
			wantErr: true,
		},
		{
			name: "requests over parquet",
			config: Config{
				Source:     SourceConfig{Type: constants.ParquetFile, Path: "events.parquet"},
				Store:      StoreConfig{Type: constants.FileStore, Path: "out"},
				Projection: "requests",
			},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.config.Validate()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestConfigDefaults(t *testing.T) {
	logs := Config{Source: SourceConfig{Type: constants.LogFile}}
	assert.Equal(t, "requests", logs.ProjectionKind())
	assert.Equal(t, constants.DefaultBatchSize, logs.BatchSizeOrDefault())
	assert.Equal(t, constants.DefaultPollInterval, logs.PollIntervalOrDefault())

	events := Config{Source: SourceConfig{Type: constants.SQLEvents}, BatchSize: 5}
	assert.Equal(t, "counter", events.ProjectionKind())
	assert.Equal(t, 5, events.BatchSizeOrDefault())
}
