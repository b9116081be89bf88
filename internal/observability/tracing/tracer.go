// Package tracing exposes the application tracer. Without a configured SDK
// the global provider is a no-op, so spans cost nothing until an exporter
// is wired in at deploy time.
package tracing

import (
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"
)

// tracer is the global tracer instance for the fetcher.
var tracer = otel.Tracer("coinfetch")

// GetTracer returns the global tracer for creating spans.
func GetTracer() trace.Tracer {
	return tracer
}
