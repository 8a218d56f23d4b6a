package gocbsessx

import (
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
)

var (
	meter = otel.Meter("github.com/couchbase/gocbsessx",
		metric.WithInstrumentationVersion(buildVersion))

	tracer = otel.Tracer("github.com/couchbase/gocbsessx")
)

var (
	// sessionDispatchedRequests tracks the number of requests subscribed onto
	// sessions.
	sessionDispatchedRequests, _ = meter.Int64Counter("gocbsessx.dispatched_requests")

	// sessionCanceledRequests tracks the number of continuations that fired
	// with a cancellation rather than a response.
	sessionCanceledRequests, _ = meter.Int64Counter("gocbsessx.canceled_requests")

	// sessionOrphanedResponses tracks responses whose opaque had no registered
	// continuation.
	sessionOrphanedResponses, _ = meter.Int64Counter("gocbsessx.orphaned_responses")

	// sessionConfigUpdates tracks accepted topology updates, from fetches and
	// server pushes alike.
	sessionConfigUpdates, _ = meter.Int64Counter("gocbsessx.config_updates")
)
