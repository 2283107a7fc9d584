package observability

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/trace/noop"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"gopkg.in/yaml.v3"

	"github.com/signalsfoundry/epidemic-simulator/internal/logging"
)

// Span exporters understood by InitTracing.
const (
	ExporterStdout = "stdout"
	ExporterOTLP   = "otlp"
)

const (
	defaultServiceName  = "epidemic-simulator"
	defaultOTLPEndpoint = "localhost:4317"
)

// ErrInvalidTracingConfig wraps every TracingConfig validation failure.
var ErrInvalidTracingConfig = errors.New("invalid tracing config")

// TracingConfig selects the span exporter for engine ticks. It can be read
// from EPI_* environment variables, from the `tracing:` section of the
// simulator config file, or both, the file winning.
type TracingConfig struct {
	Enabled     bool    `yaml:"enabled"`
	ServiceName string  `yaml:"service_name"`
	Exporter    string  `yaml:"exporter"`
	Endpoint    string  `yaml:"endpoint"`
	SampleRatio float64 `yaml:"sample_ratio"`

	// Writer receives stdout-exporter spans. Nil means os.Stderr.
	Writer io.Writer `yaml:"-"`
}

// DefaultTracingConfig has tracing off, the stdout exporter and every tick sampled.
func DefaultTracingConfig() TracingConfig {
	return TracingConfig{
		ServiceName: defaultServiceName,
		Exporter:    ExporterStdout,
		SampleRatio: 1,
	}
}

// TracingConfigFromEnv overlays EPI_TRACING_ENABLED, EPI_TRACING_EXPORTER,
// EPI_TRACING_SERVICE_NAME, EPI_TRACING_SAMPLE_RATIO and EPI_OTLP_ENDPOINT on
// the defaults. Unparseable values are ignored.
func TracingConfigFromEnv() TracingConfig {
	return tracingConfigFrom(os.LookupEnv)
}

func tracingConfigFrom(lookup func(string) (string, bool)) TracingConfig {
	cfg := DefaultTracingConfig()
	if v, ok := lookup("EPI_TRACING_ENABLED"); ok {
		if enabled, err := strconv.ParseBool(v); err == nil {
			cfg.Enabled = enabled
		}
	}
	if v, ok := lookup("EPI_TRACING_EXPORTER"); ok && v != "" {
		cfg.Exporter = strings.ToLower(v)
	}
	if v, ok := lookup("EPI_TRACING_SERVICE_NAME"); ok && v != "" {
		cfg.ServiceName = v
	}
	if v, ok := lookup("EPI_TRACING_SAMPLE_RATIO"); ok {
		if ratio, err := strconv.ParseFloat(v, 64); err == nil && ratio >= 0 && ratio <= 1 {
			cfg.SampleRatio = ratio
		}
	}
	if v, ok := lookup("EPI_OTLP_ENDPOINT"); ok {
		cfg.Endpoint = v
	}
	return cfg
}

// LoadTracingConfig overlays the `tracing:` section of the YAML file at path
// on base. A missing section leaves base unchanged.
func LoadTracingConfig(path string, base TracingConfig) (TracingConfig, error) {
	if path == "" {
		return base, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return base, fmt.Errorf("read tracing config %q: %w", path, err)
	}
	var doc struct {
		Tracing yaml.Node `yaml:"tracing"`
	}
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return base, fmt.Errorf("parse tracing config %q: %w", path, err)
	}
	if doc.Tracing.Kind == 0 {
		return base, nil
	}
	cfg := base
	if err := doc.Tracing.Decode(&cfg); err != nil {
		return base, fmt.Errorf("parse tracing config %q: %w", path, err)
	}
	return cfg, nil
}

// Validate rejects exporters InitTracing cannot build and sample ratios
// outside [0,1].
func (c TracingConfig) Validate() error {
	switch strings.ToLower(c.Exporter) {
	case "", ExporterStdout, ExporterOTLP, "otlpgrpc":
	default:
		return fmt.Errorf("%w: unsupported exporter %q", ErrInvalidTracingConfig, c.Exporter)
	}
	if c.SampleRatio < 0 || c.SampleRatio > 1 {
		return fmt.Errorf("%w: sample_ratio %v outside [0,1]", ErrInvalidTracingConfig, c.SampleRatio)
	}
	return nil
}

// InitTracing installs the global tracer provider and propagators. With
// tracing disabled a noop provider is installed and the engine's per-tick
// spans cost nothing. The returned function flushes and stops the exporter.
func InitTracing(ctx context.Context, cfg TracingConfig, log logging.Logger) (func(context.Context) error, error) {
	if log == nil {
		log = logging.Noop()
	}
	if !cfg.Enabled {
		otel.SetTracerProvider(noop.NewTracerProvider())
		otel.SetTextMapPropagator(propagation.TraceContext{})
		log.Debug(ctx, "tracing disabled")
		return func(context.Context) error { return nil }, nil
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	exp, err := newSpanExporter(ctx, cfg)
	if err != nil {
		return nil, err
	}

	service := cfg.ServiceName
	if service == "" {
		service = defaultServiceName
	}
	res, err := resource.New(ctx, resource.WithAttributes(
		attribute.String("service.name", service),
		attribute.String("service.namespace", "epidemic"),
	))
	if err != nil {
		return nil, fmt.Errorf("create resource: %w", err)
	}

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithSampler(sdktrace.ParentBased(sdktrace.TraceIDRatioBased(cfg.SampleRatio))),
		sdktrace.WithBatcher(exp),
		sdktrace.WithResource(res),
	)
	otel.SetTracerProvider(tp)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))

	log.Info(ctx, "tracing enabled",
		logging.String("exporter", cfg.Exporter),
		logging.String("service_name", service),
		logging.Float64("sample_ratio", cfg.SampleRatio),
	)
	return tp.Shutdown, nil
}

func newSpanExporter(ctx context.Context, cfg TracingConfig) (sdktrace.SpanExporter, error) {
	switch strings.ToLower(cfg.Exporter) {
	case "", ExporterStdout:
		w := cfg.Writer
		if w == nil {
			w = os.Stderr
		}
		return stdouttrace.New(stdouttrace.WithWriter(w), stdouttrace.WithoutTimestamps())
	case ExporterOTLP, "otlpgrpc":
		endpoint := cfg.Endpoint
		if endpoint == "" {
			endpoint = defaultOTLPEndpoint
		}
		return otlptrace.New(ctx, otlptracegrpc.NewClient(
			otlptracegrpc.WithEndpoint(endpoint),
			otlptracegrpc.WithDialOption(grpc.WithTransportCredentials(insecure.NewCredentials())),
		))
	default:
		return nil, fmt.Errorf("%w: unsupported exporter %q", ErrInvalidTracingConfig, cfg.Exporter)
	}
}

// ShutdownWithTimeout calls shutdown with a five second budget, logging
// rather than returning its error.
func ShutdownWithTimeout(ctx context.Context, shutdown func(context.Context) error, log logging.Logger) {
	if shutdown == nil {
		return
	}
	if log == nil {
		log = logging.Noop()
	}
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := shutdown(ctx); err != nil {
		log.Warn(ctx, "tracing shutdown failed", logging.Error(err))
	}
}
