package observability

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const meterName = "github.com/threadcart/api"

// APIMetrics holds the counters the handlers bump on successful writes.
// A nil *APIMetrics is valid and records nothing.
type APIMetrics struct {
	ordersPlaced     metric.Int64Counter
	trackingAppended metric.Int64Counter
	reviewsSubmitted metric.Int64Counter
	cartsReplaced    metric.Int64Counter
}

// NewAPIMetrics registers the instrument set on the global meter provider.
func NewAPIMetrics() (*APIMetrics, error) {
	meter := otel.Meter(meterName)

	ordersPlaced, err := meter.Int64Counter("orders.placed",
		metric.WithDescription("Orders accepted and persisted"))
	if err != nil {
		return nil, err
	}
	trackingAppended, err := meter.Int64Counter("orders.tracking.appended",
		metric.WithDescription("Tracking events appended to orders"))
	if err != nil {
		return nil, err
	}
	reviewsSubmitted, err := meter.Int64Counter("reviews.submitted",
		metric.WithDescription("Product reviews accepted"))
	if err != nil {
		return nil, err
	}
	cartsReplaced, err := meter.Int64Counter("carts.replaced",
		metric.WithDescription("Cart snapshots replaced"))
	if err != nil {
		return nil, err
	}

	return &APIMetrics{
		ordersPlaced:     ordersPlaced,
		trackingAppended: trackingAppended,
		reviewsSubmitted: reviewsSubmitted,
		cartsReplaced:    cartsReplaced,
	}, nil
}

func (m *APIMetrics) OrderPlaced(ctx context.Context) {
	if m == nil {
		return
	}
	m.ordersPlaced.Add(ctx, 1)
}

func (m *APIMetrics) TrackingAppended(ctx context.Context, status string) {
	if m == nil {
		return
	}
	m.trackingAppended.Add(ctx, 1, metric.WithAttributes(attribute.String("status", status)))
}

func (m *APIMetrics) ReviewSubmitted(ctx context.Context) {
	if m == nil {
		return
	}
	m.reviewsSubmitted.Add(ctx, 1)
}

func (m *APIMetrics) CartReplaced(ctx context.Context) {
	if m == nil {
		return
	}
	m.cartsReplaced.Add(ctx, 1)
}
