package main

import (
	"context"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/johntango/coursepipeline/broker"
	"github.com/johntango/coursepipeline/config"
	"github.com/johntango/coursepipeline/logging"
	"github.com/johntango/coursepipeline/pipeline/agents"
	"github.com/johntango/coursepipeline/pipeline/bootstrap"
	pipelinecfg "github.com/johntango/coursepipeline/pipeline/config"
	"github.com/johntango/coursepipeline/pipeline/events"
	"github.com/johntango/coursepipeline/pipeline/observability"
	"github.com/johntango/coursepipeline/pipeline/render"
	"github.com/johntango/coursepipeline/pipeline/runtime"
)

func newRunCommand(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "Run the pipeline until interrupted",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(*configPath)
			if err != nil {
				return err
			}
			return runPipeline(cmd.Context(), cfg)
		},
	}
}

func openBroker(cfg *config.Config) (broker.Broker, error) {
	switch cfg.Broker.Type {
	case "memory":
		return broker.NewMemoryBroker(), nil
	default:
		return broker.OpenSQLite(cfg.Broker.Path)
	}
}

func runPipeline(parent context.Context, cfg *config.Config) error {
	log, err := logging.New(logging.Options{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
		Path:   cfg.Logging.Path,
	})
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(parent, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if cfg.Observability.TracingEnabled {
		shutdown, err := observability.InitTracer(cfg.Observability.ServiceName, cfg.Observability.OTLPEndpoint)
		if err != nil {
			return err
		}
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := shutdown(shutdownCtx); err != nil {
				log.Warn("tracer shutdown failed", "error", err)
			}
		}()
	}

	topology, err := pipelinecfg.Load(cfg.Paths.TopologyPath)
	if err != nil {
		return err
	}

	b, err := openBroker(cfg)
	if err != nil {
		return err
	}
	defer b.Close()

	recorder, err := events.NewFileRecorder(cfg.Paths.EventLogPath)
	if err != nil {
		return err
	}
	defer recorder.Close()

	doc, err := render.Open(cfg.Paths.DocumentPath)
	if err != nil {
		return err
	}
	defer doc.Close()

	gen, err := agents.NewExecGenerator(cfg.Generator.Command, cfg.GeneratorTimeout())
	if err != nil {
		return err
	}

	runner, err := runtime.NewRunner(topology, b, recorder, gen, doc, log)
	if err != nil {
		return err
	}
	if err := runner.Start(ctx); err != nil {
		return err
	}
	defer runner.Stop()

	metrics := &http.Server{Addr: cfg.Observability.MetricsBind, Handler: metricsMux()}
	go func() {
		if err := metrics.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error("metrics server failed", "error", err)
		}
	}()
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = metrics.Shutdown(shutdownCtx)
	}()

	lock := bootstrap.NewLock(cfg.Paths.LockPath)
	held, err := lock.Acquire()
	if err != nil {
		return err
	}
	if held {
		defer func() {
			if err := lock.Release(); err != nil {
				log.Warn("failed to release bootstrap lock", "error", err)
			}
		}()
		gate := bootstrap.NewGate(
			b, recorder,
			bootstrap.NewFileSource(cfg.Paths.CoursesPath),
			doc,
			topology.Entry,
			cfg.Bootstrap.DocumentTitle,
			log,
		)
		go gate.Start(ctx, cfg.BootstrapInterval())
	} else {
		log.Info("bootstrap lock held elsewhere, seeding skipped", "lock", cfg.Paths.LockPath)
	}

	log.Info("coursepipe running",
		"pipeline", topology.Name,
		"broker", cfg.Broker.Type,
		"metrics", cfg.Observability.MetricsBind,
	)

	<-ctx.Done()
	log.Info("shutdown signal received")
	return nil
}

func metricsMux() *http.ServeMux {
	mux := http.NewServeMux()
	mux.Handle("/metrics", observability.MetricsHandler())
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprintln(w, "ok")
	})
	return mux
}
