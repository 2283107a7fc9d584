package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/signalsfoundry/epidemic-simulator/core"
	"github.com/signalsfoundry/epidemic-simulator/internal/control"
	"github.com/signalsfoundry/epidemic-simulator/internal/logging"
	"github.com/signalsfoundry/epidemic-simulator/internal/observability"
	"github.com/signalsfoundry/epidemic-simulator/timectrl"
)

const shutdownTimeout = 5 * time.Second

type serveFlags struct {
	addr         string
	scenario     string
	mode         string
	interval     time.Duration
	publishEvery int

	tracing       bool
	traceExporter string
	otlpEndpoint  string
	traceRatio    float64
}

func newServeCmd(global *globalFlags) *cobra.Command {
	flags := &serveFlags{}
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the simulation behind the HTTP and WebSocket control API",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return serve(cmd, global, flags)
		},
	}
	flags.bind(cmd)
	return cmd
}

func (flags *serveFlags) bind(cmd *cobra.Command) {
	f := cmd.Flags()
	f.StringVar(&flags.addr, "addr", ":8080", "listen address")
	f.StringVarP(&flags.scenario, "scenario", "s", "", "scenario name or alias to load at startup")
	f.StringVar(&flags.mode, "mode", "realtime", "pacing: realtime or accelerated")
	f.DurationVar(&flags.interval, "interval", timectrl.DefaultInterval, "wall-clock time per tick in realtime mode")
	f.IntVar(&flags.publishEvery, "publish-every", 1, "push a snapshot to stream clients every N ticks")
	f.BoolVar(&flags.tracing, "tracing", false, "export one span per tick")
	f.StringVar(&flags.traceExporter, "tracing-exporter", observability.ExporterStdout, "span exporter: stdout or otlp")
	f.StringVar(&flags.otlpEndpoint, "otlp-endpoint", "", "OTLP gRPC collector address")
	f.Float64Var(&flags.traceRatio, "trace-sample-ratio", 1, "fraction of ticks traced")
}

func serve(cmd *cobra.Command, global *globalFlags, flags *serveFlags) error {
	parent := cmd.Context()
	if parent == nil {
		parent = context.Background()
	}
	ctx, stop := signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
	defer stop()

	log := global.logger(cmd)

	tracing, err := flags.tracingConfig(cmd, global.configPath)
	if err != nil {
		return err
	}
	shutdownTracing, err := observability.InitTracing(ctx, tracing, log)
	if err != nil {
		return err
	}
	defer observability.ShutdownWithTimeout(context.Background(), shutdownTracing, log)

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	metrics, err := observability.NewEpidemicCollector(reg)
	if err != nil {
		return err
	}

	engine, tc, err := buildLoop(ctx, cmd, global, log, flags.scenario, flags.mode, flags.interval,
		core.WithMetricsRecorder(metrics))
	if err != nil {
		return err
	}

	ctrl := control.NewServer(engine, control.WithLogger(log), control.WithMetrics(metrics))
	publishEvery := max(flags.publishEvery, 1)
	tc.AddListener(func(ctx context.Context, _ int) error {
		report, err := engine.Tick(ctx)
		if err != nil {
			return err
		}
		if report.Tick%publishEvery == 0 {
			ctrl.Publish(ctx)
		}
		return nil
	})

	srv := &http.Server{
		Addr:              flags.addr,
		Handler:           ctrl.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		err := tc.Run(gctx, 0)
		if errors.Is(err, context.Canceled) {
			return nil
		}
		return err
	})
	g.Go(func() error {
		log.Info(gctx, "control API listening", logging.String("addr", flags.addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		log.Info(context.Background(), "shutting down", logging.Int("ticks", tc.Steps()))
		ctrl.Close()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})
	return g.Wait()
}

// tracingConfig layers the tracing settings: EPI_* environment, then the
// config file's tracing section, then flags set on the command line.
func (flags *serveFlags) tracingConfig(cmd *cobra.Command, configPath string) (observability.TracingConfig, error) {
	cfg, err := observability.LoadTracingConfig(configPath, observability.TracingConfigFromEnv())
	if err != nil {
		return cfg, err
	}
	fs := cmd.Flags()
	if fs.Changed("tracing") {
		cfg.Enabled = flags.tracing
	}
	if fs.Changed("tracing-exporter") {
		cfg.Exporter = flags.traceExporter
	}
	if fs.Changed("otlp-endpoint") {
		cfg.Endpoint = flags.otlpEndpoint
	}
	if fs.Changed("trace-sample-ratio") {
		cfg.SampleRatio = flags.traceRatio
	}
	cfg.Writer = cmd.ErrOrStderr()
	return cfg, cfg.Validate()
}
