// Package telemetry centralizes tracer construction so instrumented code
// never reaches for the global otel API directly.
package telemetry

import (
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// Tracer returns the named tracer from the globally registered provider.
// Without a configured provider this yields a no-op tracer, so call sites
// need no nil checks.
func Tracer(name string) trace.Tracer {
	return otel.Tracer(name)
}

// TableAttributes is the common span attribute set for operations scoped
// to a single table.
func TableAttributes(schema, table string) []attribute.KeyValue {
	return []attribute.KeyValue{
		attribute.String("db.schema", schema),
		attribute.String("db.table", table),
	}
}
