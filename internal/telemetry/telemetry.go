// Package telemetry provides the Meter/Tracer accessors used across the
// LLM adapter and pipeline stages, mirroring the shape the teacher's
// internal/compact package expected from its own (upstream) telemetry
// package — re-homed here since that package was not present in the
// retrieved slice.
package telemetry

import (
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
)

// Meter returns the global meter scoped to name, exactly the call shape
// internal/compact/haiku.go used: telemetry.Meter("github.com/.../ai").
func Meter(name string) metric.Meter {
	return otel.GetMeterProvider().Meter(name)
}

// Tracer returns the global tracer scoped to name.
func Tracer(name string) trace.Tracer {
	return otel.GetTracerProvider().Tracer(name)
}
