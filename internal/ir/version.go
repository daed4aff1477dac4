package ir

// Version constants for the wire protocol and the processor.
const (
	// ProtocolVersion is the wire message schema version.
	ProtocolVersion = "1"

	// EngineVersion is the rfsync processor version.
	EngineVersion = "0.1.0"
)
