package tracing

import (
	"context"
	"time"

	"github.com/newrelic/go-agent/v3/newrelic"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"

	"github.com/Wirlhawk/skillswap-sub000/config"
)

// Tracer defines the interface for tracing. Every method is safe to call when
// tracing is disabled or the context carries no transaction.
type Tracer interface {
	// Application returns the agent application, nil when tracing is disabled
	Application() *newrelic.Application
	// StartTransaction starts a background transaction and returns a context carrying it
	StartTransaction(ctx context.Context, name string) (context.Context, *newrelic.Transaction)
	EndTransaction(txn *newrelic.Transaction)
	// StartSegment starts a segment in the transaction carried by ctx
	StartSegment(ctx context.Context, name string) *newrelic.Segment
	RecordError(ctx context.Context, err error)
	AddAttribute(ctx context.Context, key string, value interface{})
	Close()
}

// NewRelicTracer implements Tracer using New Relic
type NewRelicTracer struct {
	app     *newrelic.Application
	appName string
	enabled bool
}

// NewTracer creates a new tracer
func NewTracer(cfg config.TracingConfig) (*NewRelicTracer, error) {
	if cfg.LicenseKey == "" {
		log.Warn().Msg("New Relic license key not provided, tracing will be disabled")
		return &NewRelicTracer{enabled: false}, nil
	}

	app, err := newrelic.NewApplication(
		newrelic.ConfigAppName(cfg.AppName),
		newrelic.ConfigLicense(cfg.LicenseKey),
		newrelic.ConfigDistributedTracerEnabled(cfg.DistribTracing),
		newrelic.ConfigAppLogForwardingEnabled(cfg.LogEnabled),
	)
	if err != nil {
		return nil, errors.Wrap(err, "failed to initialize New Relic")
	}

	return &NewRelicTracer{
		app:     app,
		appName: cfg.AppName,
		enabled: true,
	}, nil
}

// NewNoopTracer returns a disabled tracer
func NewNoopTracer() *NewRelicTracer {
	return &NewRelicTracer{enabled: false}
}

// Application implements Tracer
func (t *NewRelicTracer) Application() *newrelic.Application {
	if t == nil || !t.enabled {
		return nil
	}
	return t.app
}

// StartTransaction implements Tracer
func (t *NewRelicTracer) StartTransaction(ctx context.Context, name string) (context.Context, *newrelic.Transaction) {
	if t == nil || !t.enabled || t.app == nil {
		return ctx, nil
	}
	txn := t.app.StartTransaction(name)
	return newrelic.NewContext(ctx, txn), txn
}

// EndTransaction implements Tracer
func (t *NewRelicTracer) EndTransaction(txn *newrelic.Transaction) {
	if txn == nil {
		return
	}
	txn.End()
}

// StartSegment implements Tracer. The returned segment may be nil; End is nil-safe.
func (t *NewRelicTracer) StartSegment(ctx context.Context, name string) *newrelic.Segment {
	if t == nil || !t.enabled {
		return nil
	}
	txn := newrelic.FromContext(ctx)
	if txn == nil {
		return nil
	}
	return txn.StartSegment(name)
}

// RecordError implements Tracer
func (t *NewRelicTracer) RecordError(ctx context.Context, err error) {
	if t == nil || !t.enabled || err == nil {
		return
	}
	if txn := newrelic.FromContext(ctx); txn != nil {
		txn.NoticeError(err)
	}
}

// AddAttribute implements Tracer
func (t *NewRelicTracer) AddAttribute(ctx context.Context, key string, value interface{}) {
	if t == nil || !t.enabled {
		return
	}
	if txn := newrelic.FromContext(ctx); txn != nil {
		txn.AddAttribute(key, value)
	}
}

// Close flushes pending data and shuts the agent down
func (t *NewRelicTracer) Close() {
	if t == nil || !t.enabled || t.app == nil {
		return
	}

	t.app.Shutdown(10 * time.Second)
	log.Info().Str("app", t.appName).Msg("New Relic tracer shutdown")
}
