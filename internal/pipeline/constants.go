package pipeline

// Defaults for statement ingestion.
// These can be overridden via configuration.
const (
	// DefaultTimeZone anchors the hot-month window to the statement's bank.
	DefaultTimeZone = "Asia/Seoul"
)
