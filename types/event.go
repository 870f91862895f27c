package types

// Event is a row of an append-only event table or file
type Event struct {
	Sequence   int64  `json:"sequence" db:"sequence" parquet:"sequence"`
	StreamID   string `json:"stream_id" db:"stream_id" parquet:"stream_id"`
	Type       string `json:"type" db:"type" parquet:"type"`
	Payload    string `json:"payload,omitempty" db:"payload" parquet:"payload"`
	RecordedAt int64  `json:"recorded_at" db:"recorded_at" parquet:"recorded_at"`
}
