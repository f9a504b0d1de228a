package observability

import (
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"
)

// Tracer returns the named tracer for a discovery engine component, backed
// by whatever TracerProvider has been registered globally via otel.SetTracerProvider
// (left to the host process; this module stays agnostic of exporters).
func Tracer(component string) trace.Tracer {
	return otel.Tracer("contactdiscovery/" + component)
}
