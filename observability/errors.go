package observability

import "errors"

// ErrInvalidProtocol is returned when the OTLP protocol is not "http" or "grpc".
var ErrInvalidProtocol = errors.New("observability: protocol must be either 'http' or 'grpc'")

// ErrInvalidExporter is returned when the exporter is not "stdout" or "otlp".
var ErrInvalidExporter = errors.New("observability: exporter must be either 'stdout' or 'otlp'")
