package metrics

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetricgrpc"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetrichttp"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

// Config configures the metrics provider.
type Config struct {
	Enabled          bool
	ExporterEndpoint string
	ExporterProtocol string
	ServiceName      string
	Environment      string
}

// Metrics exposes application-level instruments.
type Metrics struct {
	registrations       metric.Int64Counter
	paymentEvents       metric.Int64Counter
	seatDecrements      metric.Int64Counter
	inventoryConflicts  metric.Int64Counter
	notifications       metric.Int64Counter
	rateLimitDenied     metric.Int64Counter
}

// NewProvider configures and registers the meter provider.
func NewProvider(lc fx.Lifecycle, cfg Config, log *zap.Logger) (metric.MeterProvider, error) {
	if !cfg.Enabled {
		provider := noop.NewMeterProvider()
		otel.SetMeterProvider(provider)
		return provider, nil
	}

	exporter, err := newExporter(cfg.ExporterProtocol, cfg.ExporterEndpoint)
	if err != nil {
		return nil, err
	}

	reader := sdkmetric.NewPeriodicReader(exporter, sdkmetric.WithInterval(10*time.Second))
	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	otel.SetMeterProvider(provider)

	if lc != nil {
		lc.Append(fx.Hook{
			OnStop: func(ctx context.Context) error {
				if log != nil {
					log.Info("shutting down meter provider")
				}
				return provider.Shutdown(ctx)
			},
		})
	}

	return provider, nil
}

func newExporter(protocol, endpoint string) (sdkmetric.Exporter, error) {
	endpoint = strings.TrimSpace(endpoint)
	if endpoint == "" {
		return nil, errors.New("metrics exporter endpoint is required")
	}

	switch strings.ToLower(strings.TrimSpace(protocol)) {
	case "", "grpc":
		return otlpmetricgrpc.New(context.Background(),
			otlpmetricgrpc.WithEndpoint(endpoint),
			otlpmetricgrpc.WithInsecure(),
		)
	case "http", "http/protobuf":
		return otlpmetrichttp.New(context.Background(),
			otlpmetrichttp.WithEndpoint(endpoint),
			otlpmetrichttp.WithInsecure(),
		)
	default:
		return nil, fmt.Errorf("unsupported metrics exporter protocol %q", protocol)
	}
}

// New configures the domain metrics instruments.
func New(cfg Config, provider metric.MeterProvider) (*Metrics, error) {
	name := strings.TrimSpace(cfg.ServiceName)
	if name == "" {
		name = "gatepass"
	}
	meter := provider.Meter(name)

	registrations, err := meter.Int64Counter("gatepass_registrations_total")
	if err != nil {
		return nil, err
	}
	paymentEvents, err := meter.Int64Counter("gatepass_payment_events_total")
	if err != nil {
		return nil, err
	}
	seatDecrements, err := meter.Int64Counter("gatepass_seat_decrements_total")
	if err != nil {
		return nil, err
	}
	inventoryConflicts, err := meter.Int64Counter("gatepass_inventory_inconsistencies_total")
	if err != nil {
		return nil, err
	}
	notifications, err := meter.Int64Counter("gatepass_notifications_total")
	if err != nil {
		return nil, err
	}
	rateLimitDenied, err := meter.Int64Counter("gatepass_rate_limit_denied_total")
	if err != nil {
		return nil, err
	}

	return &Metrics{
		registrations:      registrations,
		paymentEvents:      paymentEvents,
		seatDecrements:     seatDecrements,
		inventoryConflicts: inventoryConflicts,
		notifications:      notifications,
		rateLimitDenied:    rateLimitDenied,
	}, nil
}

// RecordRegistration counts a registration reaching the given status.
func (m *Metrics) RecordRegistration(ctx context.Context, status string) {
	if m == nil {
		return
	}
	m.registrations.Add(ctx, 1, metric.WithAttributes(
		attribute.String("status", strings.TrimSpace(status)),
	))
}

// RecordPaymentEvent counts a processed provider event.
func (m *Metrics) RecordPaymentEvent(ctx context.Context, provider, eventType string) {
	if m == nil {
		return
	}
	m.paymentEvents.Add(ctx, 1, metric.WithAttributes(
		attribute.String("provider", strings.TrimSpace(provider)),
		attribute.String("type", strings.TrimSpace(eventType)),
	))
}

// RecordSeatDecrement counts a successful seat inventory decrement.
func (m *Metrics) RecordSeatDecrement(ctx context.Context, seats int) {
	if m == nil {
		return
	}
	m.seatDecrements.Add(ctx, int64(seats))
}

// RecordInventoryInconsistency counts a settled payment that found no seats.
// This is the operator alert signal; it must never be silently dropped.
func (m *Metrics) RecordInventoryInconsistency(ctx context.Context) {
	if m == nil {
		return
	}
	m.inventoryConflicts.Add(ctx, 1)
}

// RecordNotification counts a confirmation dispatch attempt outcome.
func (m *Metrics) RecordNotification(ctx context.Context, result string) {
	if m == nil {
		return
	}
	m.notifications.Add(ctx, 1, metric.WithAttributes(
		attribute.String("result", strings.TrimSpace(result)),
	))
}

// RecordRateLimitDenied counts denied requests per endpoint.
func (m *Metrics) RecordRateLimitDenied(ctx context.Context, endpoint string) {
	if m == nil {
		return
	}
	m.rateLimitDenied.Add(ctx, 1, metric.WithAttributes(
		attribute.String("endpoint", strings.TrimSpace(endpoint)),
	))
}
