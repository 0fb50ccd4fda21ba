// Package outbox carries request context across the transactional outbox:
// headers built when the outbox row is written are restored by the consumer.
package outbox

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"

	"github.com/tuanvumaihuynh/storefront/pkg/correlationid"
)

// EventTypeHeader names the domain event a message carries.
const EventTypeHeader = "event-type"

// BuildHeaders returns the headers of an outbox message of the given event
// type, with the trace context and correlation id of ctx.
func BuildHeaders(ctx context.Context, eventType string) map[string]string {
	headers := map[string]string{EventTypeHeader: eventType}

	otel.GetTextMapPropagator().Inject(ctx, propagation.MapCarrier(headers))

	if correlationID, ok := correlationid.FromContext(ctx); ok {
		headers[correlationid.Header] = correlationID
	}

	return headers
}

// ExtractContextFromHeaders restores the trace context and correlation id
// stored by BuildHeaders into ctx.
func ExtractContextFromHeaders(ctx context.Context, headers map[string]string) context.Context {
	ctx = otel.GetTextMapPropagator().Extract(ctx, propagation.MapCarrier(headers))

	if correlationID, ok := headers[correlationid.Header]; ok && correlationID != "" {
		ctx = correlationid.NewContext(ctx, correlationID)
	}

	return ctx
}

// EventType returns the event type header, or "" for messages without one.
func EventType(headers map[string]string) string {
	return headers[EventTypeHeader]
}
