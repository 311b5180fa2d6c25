// Package metrics exposes the service's OpenTelemetry instruments. When no
// OTLP endpoint is configured the no-op meter provider is used, so callers
// record unconditionally.
package metrics

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetrichttp"
	"go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
)

const meterName = "order-engine"

type Metrics struct {
	OrdersPlaced        metric.Int64Counter
	OrdersCancelled     metric.Int64Counter
	OrdersReturned      metric.Int64Counter
	PaymentsConfirmed   metric.Int64Counter
	PaymentsExpired     metric.Int64Counter
	StockReservations   metric.Int64Counter
	InsufficientStock   metric.Int64Counter
	OrderValue          metric.Int64Histogram
	HTTPRequestDuration metric.Float64Histogram
}

// Init builds the meter provider and instruments. An empty endpoint skips
// the exporter; instruments then record into the no-op global provider.
// The returned shutdown func flushes pending exports.
func Init(ctx context.Context, endpoint, serviceName string) (*Metrics, func(context.Context) error, error) {
	shutdown := func(context.Context) error { return nil }

	if endpoint != "" {
		exporter, err := otlpmetrichttp.New(ctx,
			otlpmetrichttp.WithEndpoint(endpoint),
			otlpmetrichttp.WithInsecure(),
		)
		if err != nil {
			return nil, nil, fmt.Errorf("create otlp exporter: %w", err)
		}

		res, err := resource.New(ctx,
			resource.WithAttributes(semconv.ServiceName(serviceName)),
		)
		if err != nil {
			return nil, nil, fmt.Errorf("create resource: %w", err)
		}

		provider := sdkmetric.NewMeterProvider(
			sdkmetric.WithResource(res),
			sdkmetric.WithReader(sdkmetric.NewPeriodicReader(exporter,
				sdkmetric.WithInterval(15*time.Second),
			)),
		)
		otel.SetMeterProvider(provider)
		shutdown = provider.Shutdown
	}

	m, err := newInstruments(otel.GetMeterProvider().Meter(meterName))
	if err != nil {
		return nil, nil, err
	}
	return m, shutdown, nil
}

func newInstruments(meter metric.Meter) (*Metrics, error) {
	var m Metrics
	var err error

	if m.OrdersPlaced, err = meter.Int64Counter("orders_placed_total",
		metric.WithDescription("Orders placed"), metric.WithUnit("1")); err != nil {
		return nil, err
	}
	if m.OrdersCancelled, err = meter.Int64Counter("orders_cancelled_total",
		metric.WithDescription("Orders cancelled"), metric.WithUnit("1")); err != nil {
		return nil, err
	}
	if m.OrdersReturned, err = meter.Int64Counter("orders_returned_total",
		metric.WithDescription("Orders returned"), metric.WithUnit("1")); err != nil {
		return nil, err
	}
	if m.PaymentsConfirmed, err = meter.Int64Counter("payments_confirmed_total",
		metric.WithDescription("Payments verified and confirmed"), metric.WithUnit("1")); err != nil {
		return nil, err
	}
	if m.PaymentsExpired, err = meter.Int64Counter("payments_expired_total",
		metric.WithDescription("Payment sessions expired by the reaper"), metric.WithUnit("1")); err != nil {
		return nil, err
	}
	if m.StockReservations, err = meter.Int64Counter("stock_reservations_total",
		metric.WithDescription("Stock units reserved"), metric.WithUnit("1")); err != nil {
		return nil, err
	}
	if m.InsufficientStock, err = meter.Int64Counter("insufficient_stock_total",
		metric.WithDescription("Reservations rejected for lack of stock"), metric.WithUnit("1")); err != nil {
		return nil, err
	}
	if m.OrderValue, err = meter.Int64Histogram("order_value",
		metric.WithDescription("Order totals in minor currency units"), metric.WithUnit("1")); err != nil {
		return nil, err
	}
	if m.HTTPRequestDuration, err = meter.Float64Histogram("http_server_request_duration",
		metric.WithDescription("HTTP request duration in milliseconds"), metric.WithUnit("ms")); err != nil {
		return nil, err
	}

	return &m, nil
}

// Noop returns instruments bound to the no-op provider, for tests and for
// binaries that do not export metrics.
func Noop() *Metrics {
	m, _ := newInstruments(otel.GetMeterProvider().Meter(meterName))
	return m
}

// RecordHTTP records one served request.
func (m *Metrics) RecordHTTP(ctx context.Context, method, path string, status int, start time.Time) {
	m.HTTPRequestDuration.Record(ctx, float64(time.Since(start).Milliseconds()),
		metric.WithAttributes(
			attribute.String("http.method", method),
			attribute.String("http.route", path),
			attribute.Int("http.status_code", status),
		))
}
