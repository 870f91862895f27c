package constants

import "time"

const (
	// DefaultBatchSize is used when an engine is built without a batch size hint
	DefaultBatchSize = 100
	// DefaultPollInterval is the tick used by the CLI poll command when none is configured
	DefaultPollInterval = time.Second
	// DefaultStreamBatchSize bounds a fetch when a query carries no batch size
	DefaultStreamBatchSize = 100000

	ProjectionsTable  = "projections"
	EventsTable       = "events"
	ProjectionFileExt = "json"
	MongoPrimaryID    = "_id"

	// viper keys
	ConfigFolder = "CONFIG_FOLDER"
	LogLevel     = "LOG_LEVEL"
	NoLogFile    = "NO_LOG_FILE"
	OutputFormat = "OUTPUT_FORMAT"
	EnvPrefix    = "CATCHUP"
)

type SourceType string

const (
	LogFile     SourceType = "logfile"
	SQLEvents   SourceType = "sql"
	ParquetFile SourceType = "parquet"
)

type StoreType string

const (
	MemoryStore StoreType = "memory"
	FileStore   StoreType = "file"
	SQLStore    StoreType = "sql"
	MongoStore  StoreType = "mongodb"
)
