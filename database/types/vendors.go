package types

// Supported engine identifiers.
const (
	MongoDB = "mongodb"
	Memory  = "memory"
)
