package ir

// Version constants for IR schema and interpreter.
const (
	// IRVersion is the IR schema version.
	IRVersion = "1"

	// EngineVersion is the interpreter version.
	EngineVersion = "0.1.0"
)
