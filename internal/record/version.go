package record

// Version constants for the persisted record format.
const (
	// FormatVersion is the serialized collection format version.
	FormatVersion = "1"

	// EngineVersion is the gtdflow core version.
	EngineVersion = "0.1.0"
)
