// Package telemetry wires an OpenTelemetry MeterProvider to a Prometheus
// scrape endpoint, pairing OTEL instrumentation APIs with the Prometheus
// wire format every other observability tool in this stack expects.
// A disabled Telemetry still returns usable instruments backed by the
// global no-op meter provider; an error building the resource, the
// Prometheus exporter or an instrument is returned from New.
package telemetry

import (
	"context"
	"fmt"
	"net/http"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/prometheus"
	"go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	semconv "go.opentelemetry.io/otel/semconv/v1.24.0"
	"go.uber.org/zap"
)

// Config controls telemetry construction.
type Config struct {
	Enabled        bool
	PrometheusAddr string // e.g. ":9090"
	ServiceName    string
}

// Telemetry bundles the meter and the named instruments every component
// records against. New always fills every instrument; the zero value's
// instruments are nil, so callers holding a possibly nil *Telemetry
// check it before recording.
type Telemetry struct {
	meterProvider *sdkmetric.MeterProvider
	httpServer    *http.Server
	logger        *zap.Logger

	PagesCrawled       metric.Int64Counter
	ChunksStored       metric.Int64Counter
	CodeExamplesStored metric.Int64Counter
	CrawlRetries       metric.Int64Counter
	ThrottleEvents     metric.Int64Counter
	EmbedBatchLatency  metric.Float64Histogram
	RetrievalLatency   metric.Float64Histogram
}

// New builds a Telemetry. If cfg.Enabled is false, it returns a Telemetry
// whose instruments are backed by the global no-op meter provider and
// does not start an HTTP listener.
func New(cfg Config, logger *zap.Logger) (*Telemetry, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.ServiceName == "" {
		cfg.ServiceName = "ragcrawld"
	}

	t := &Telemetry{logger: logger}
	meter := otel.GetMeterProvider().Meter(cfg.ServiceName)

	if cfg.Enabled {
		res, err := resource.Merge(resource.Default(), resource.NewSchemaless(semconv.ServiceName(cfg.ServiceName)))
		if err != nil {
			return nil, fmt.Errorf("telemetry: building resource: %w", err)
		}

		exporter, err := prometheus.New()
		if err != nil {
			return nil, fmt.Errorf("telemetry: building prometheus exporter: %w", err)
		}

		mp := sdkmetric.NewMeterProvider(sdkmetric.WithResource(res), sdkmetric.WithReader(exporter))
		otel.SetMeterProvider(mp)
		t.meterProvider = mp
		meter = mp.Meter(cfg.ServiceName)

		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.Handler())
		t.httpServer = &http.Server{Addr: cfg.PrometheusAddr, Handler: mux}
		go func() {
			if err := t.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				logger.Warn("telemetry http server stopped", zap.Error(err))
			}
		}()
	}

	if err := t.registerInstruments(meter); err != nil {
		return nil, fmt.Errorf("telemetry: registering instruments: %w", err)
	}
	return t, nil
}

func (t *Telemetry) registerInstruments(meter metric.Meter) error {
	var err error
	if t.PagesCrawled, err = meter.Int64Counter("ragcrawld.pages_crawled",
		metric.WithDescription("pages successfully crawled")); err != nil {
		return err
	}
	if t.ChunksStored, err = meter.Int64Counter("ragcrawld.chunks_stored",
		metric.WithDescription("document chunks stored")); err != nil {
		return err
	}
	if t.CodeExamplesStored, err = meter.Int64Counter("ragcrawld.code_examples_stored",
		metric.WithDescription("code examples stored")); err != nil {
		return err
	}
	if t.CrawlRetries, err = meter.Int64Counter("ragcrawld.crawl_retries",
		metric.WithDescription("per-URL fetch retries")); err != nil {
		return err
	}
	if t.ThrottleEvents, err = meter.Int64Counter("ragcrawld.memory_throttle_events",
		metric.WithDescription("times crawl concurrency was throttled for memory pressure")); err != nil {
		return err
	}
	if t.EmbedBatchLatency, err = meter.Float64Histogram("ragcrawld.embed_batch_latency_seconds",
		metric.WithDescription("embedding batch call latency"), metric.WithUnit("s")); err != nil {
		return err
	}
	if t.RetrievalLatency, err = meter.Float64Histogram("ragcrawld.retrieval_latency_seconds",
		metric.WithDescription("retrieval pipeline latency per call"), metric.WithUnit("s")); err != nil {
		return err
	}
	return nil
}

// Shutdown stops the Prometheus HTTP listener (if started) and flushes
// the meter provider.
func (t *Telemetry) Shutdown(ctx context.Context) error {
	if t == nil {
		return nil
	}
	var firstErr error
	if t.httpServer != nil {
		if err := t.httpServer.Shutdown(ctx); err != nil && firstErr == nil {
			firstErr = fmt.Errorf("telemetry http server shutdown: %w", err)
		}
	}
	if t.meterProvider != nil {
		if err := t.meterProvider.Shutdown(ctx); err != nil && firstErr == nil {
			firstErr = fmt.Errorf("telemetry meter provider shutdown: %w", err)
		}
	}
	return firstErr
}
