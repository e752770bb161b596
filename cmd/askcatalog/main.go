// Askcatalog answers natural-language questions about a technology catalog
// over HTTP.
//
// It loads capability and application records, builds or loads the vector
// index over them, and runs each question through the planner, retrieval,
// ranker, synthesizer and reviewer stages.
//
// Configuration is read from an optional YAML file, a .env file and
// ASKCATALOG_ environment variables. See internal/config for details.
//
// Usage:
//
//	# Start with defaults and a config file
//	askcatalog -config askcatalog.yaml
//
//	# Rebuild the index from the current catalog
//	kill -HUP $(pidof askcatalog)
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/askcatalog/internal/catalog"
	"github.com/fyrsmithlabs/askcatalog/internal/config"
	"github.com/fyrsmithlabs/askcatalog/internal/embeddings"
	httpserver "github.com/fyrsmithlabs/askcatalog/internal/http"
	"github.com/fyrsmithlabs/askcatalog/internal/llm"
	"github.com/fyrsmithlabs/askcatalog/internal/logging"
	"github.com/fyrsmithlabs/askcatalog/internal/memory"
	"github.com/fyrsmithlabs/askcatalog/internal/pipeline"
	"github.com/fyrsmithlabs/askcatalog/internal/prompts"
	"github.com/fyrsmithlabs/askcatalog/internal/secrets"
	"github.com/fyrsmithlabs/askcatalog/internal/telemetry"
)

// Version information (set via ldflags during build)
var (
	version   = "dev"
	gitCommit = "unknown"
	buildDate = "unknown"
)

func main() {
	configPath := flag.String("config", os.Getenv("ASKCATALOG_CONFIG"), "path to YAML config file")
	flag.Parse()
	args := flag.Args()

	if len(args) > 0 {
		switch args[0] {
		case "version":
			printVersion()
			os.Exit(0)
		default:
			fmt.Fprintf(os.Stderr, "Unknown command: %s\n", args[0])
			fmt.Fprintf(os.Stderr, "\nUsage:\n")
			fmt.Fprintf(os.Stderr, "  askcatalog [-config file]   Start the service\n")
			fmt.Fprintf(os.Stderr, "  askcatalog version          Show version information\n")
			os.Exit(1)
		}
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		sig := <-sigCh
		log.Printf("Received signal %v, shutting down gracefully...", sig)
		cancel()
	}()

	if err := run(ctx, *configPath); err != nil {
		log.Fatalf("Server error: %v", err)
	}

	log.Println("Server shutdown complete")
}

func printVersion() {
	fmt.Printf("askcatalog\n")
	fmt.Printf("Version:    %s\n", version)
	fmt.Printf("Commit:     %s\n", gitCommit)
	fmt.Printf("Build Date: %s\n", buildDate)
}

// run wires the service and blocks until ctx is cancelled or the server
// fails. The shared state is initialized before the listener opens, so a bad
// catalog or unusable embedder stops startup.
func run(ctx context.Context, configPath string) (err error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}

	tel, err := telemetry.New(ctx, telemetry.ConfigFrom(cfg.Telemetry, version))
	if err != nil {
		return fmt.Errorf("failed to initialize telemetry: %w", err)
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout.Duration())
		defer cancel()
		err = errors.Join(err, tel.Shutdown(shutdownCtx))
	}()

	logCfg, err := logging.ConfigFrom(cfg.Logging)
	if err != nil {
		return err
	}
	logger, err := logging.NewLogger(logCfg, tel.LoggerProvider())
	if err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	defer func() {
		_ = logger.Sync() // Best-effort sync on shutdown
	}()

	logger.Info(ctx, "starting askcatalog",
		zap.String("version", version),
		zap.String("app", cfg.Server.AppName),
		zap.Int("port", cfg.Server.Port),
		zap.String("catalog_source", cfg.Catalog.Source),
		zap.String("embeddings_provider", cfg.Embeddings.Provider),
		zap.String("completion_provider", cfg.Completion.Provider),
		zap.String("memory_backend", cfg.Memory.Backend))

	deps, err := initDependencies(cfg, logger)
	if err != nil {
		return err
	}
	defer func() {
		err = errors.Join(err, deps.Close())
	}()

	coord, err := pipeline.New(pipeline.Options{
		Source:    deps.source,
		Embedder:  deps.embedder,
		Completer: deps.completer,
		Prompts:   prompts.NewLibrary(cfg.Pipeline.Prompts),
		Index:     cfg.Index,
		Pipeline:  cfg.Pipeline,
		Logger:    logger,
		Telemetry: tel,
	})
	if err != nil {
		return err
	}

	state, err := coord.Init(ctx)
	if err != nil {
		if ctx.Err() != nil {
			logger.Info(ctx, "shutdown requested during startup")
			return nil
		}
		return fmt.Errorf("failed to initialize shared state: %w", err)
	}
	logger.Info(ctx, "shared state ready",
		zap.String("origin", string(state.Origin)),
		zap.Int("entries", state.Catalog.Len()),
		zap.Int("capabilities", state.Catalog.CapabilityCount()))

	sessions := memory.NewSessions(cfg.Memory.WindowSize, cfg.Memory.SessionTTL.Duration(), deps.store, logger)
	go sessions.Run(ctx, 0)

	rebuild := rebuilder(coord, logger)
	if cfg.Catalog.Watch && cfg.Catalog.Source == "file" {
		watcher, err := catalog.NewWatcher(cfg.Catalog.Files, cfg.Catalog.WatchDebounce.Duration(), logger)
		if err != nil {
			return err
		}
		go watcher.Run(ctx, func(ctx context.Context) { rebuild(ctx, "catalog changed") })
	}

	hupCh := make(chan os.Signal, 1)
	signal.Notify(hupCh, syscall.SIGHUP)
	defer signal.Stop(hupCh)
	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case <-hupCh:
				rebuild(ctx, "SIGHUP")
			}
		}
	}()

	srv, err := httpserver.NewServer(coord, sessions, logger.Underlying(), &httpserver.Config{
		Host:           cfg.Server.Host,
		Port:           cfg.Server.Port,
		AllowedOrigins: cfg.Server.AllowedOrigins,
		AdminToken:     cfg.Server.AdminToken.Value(),
		Meter:          tel.Meter(httpserver.InstrumentationName),
	})
	if err != nil {
		return fmt.Errorf("failed to create http server: %w", err)
	}
	srv.Echo().GET("/metrics", echo.WrapHandler(promhttp.Handler()))

	logger.Info(ctx, "server configured",
		zap.String("health_endpoint", fmt.Sprintf("http://%s:%d/health", cfg.Server.Host, cfg.Server.Port)),
		zap.String("answer_endpoint", "/api/v1/answer"),
		zap.String("metrics_endpoint", "/metrics"),
		zap.Bool("admin_routes", cfg.Server.AdminToken.IsSet()))

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Start()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("http server: %w", err)
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout.Duration())
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("http server shutdown: %w", err)
	}
	return nil
}

// dependencies holds the external collaborators of the pipeline.
type dependencies struct {
	source    catalog.Source
	embedder  embeddings.Provider
	completer llm.Completer
	store     memory.Store
}

// Close releases the embedder and the conversation store.
func (d *dependencies) Close() error {
	var errs []error
	if d.embedder != nil {
		errs = append(errs, d.embedder.Close())
	}
	if d.store != nil {
		errs = append(errs, d.store.Close())
	}
	return errors.Join(errs...)
}

func initDependencies(cfg *config.Config, logger *logging.Logger) (_ *dependencies, err error) {
	d := &dependencies{}
	defer func() {
		if err != nil {
			_ = d.Close()
		}
	}()

	d.source, err = catalog.NewSource(cfg.Catalog)
	if err != nil {
		return nil, err
	}

	scrubber, err := secrets.New(secrets.ConfigFrom(cfg.Secrets))
	if err != nil {
		return nil, fmt.Errorf("failed to create secret scrubber: %w", err)
	}
	d.store, err = memory.Open(cfg.Memory, scrubber, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to open conversation store: %w", err)
	}

	d.embedder, err = embeddings.NewProvider(cfg.Embeddings, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to create embedding provider: %w", err)
	}

	d.completer, err = llm.New(cfg.Completion, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to create completer: %w", err)
	}
	return d, nil
}

// rebuilder returns a function that rebuilds the shared state and logs the
// outcome. Overlapping triggers are dropped.
func rebuilder(coord *pipeline.Coordinator, logger *logging.Logger) func(context.Context, string) {
	return func(ctx context.Context, trigger string) {
		start := time.Now()
		state, err := coord.Rebuild(ctx)
		switch {
		case errors.Is(err, pipeline.ErrRebuildInProgress):
			logger.Info(ctx, "rebuild already running; trigger dropped", zap.String("trigger", trigger))
		case err != nil:
			// The coordinator logs the failure and keeps serving.
		default:
			logger.Info(ctx, "shared state rebuilt",
				zap.String("trigger", trigger),
				zap.Int64("version", state.Version),
				zap.Duration("duration", time.Since(start)))
		}
	}
}
