package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/alecthomas/kingpin/v2"
	"go.uber.org/zap"

	"github.com/eugenenazirov/mcp-foundation/internal/application"
	"github.com/eugenenazirov/mcp-foundation/internal/config"
	"github.com/eugenenazirov/mcp-foundation/internal/logging"
	"github.com/eugenenazirov/mcp-foundation/internal/storage"
)

const shutdownTimeout = 10 * time.Second

var signalNotify = signal.Notify

func main() {
	kingpinApp := kingpin.New("mcp-server", "MCP server foundation - resolves its configuration for the current deployment mode and serves diagnostics")
	envFile := kingpinApp.Flag("env-file", "Path to the KEY=VALUE override file (empty disables it)").Default(".env").String()
	check := kingpinApp.Flag("check", "Resolve and validate the configuration, print it and exit").Bool()
	printConfig := kingpinApp.Flag("print-config", "Print the resolved configuration before starting").Bool()

	kingpin.MustParse(kingpinApp.Parse(os.Args[1:]))

	bootstrap, err := logging.Bootstrap()
	if err != nil {
		panic(fmt.Sprintf("failed to initialize logger: %v", err))
	}

	cfg, err := resolveOrReport(config.NewResolver(
		config.WithOverrideFile(*envFile),
		config.WithLogger(bootstrap),
	), os.Stderr, bootstrap)
	if err != nil {
		_ = bootstrap.Sync()
		os.Exit(1)
	}

	if *check || *printConfig {
		if err := config.WriteConfig(os.Stdout, cfg); err != nil {
			bootstrap.Error("failed to print configuration", zap.Error(err))
		}
	}
	if *check {
		return
	}

	level := zap.NewAtomicLevelAt(cfg.LogLevel())
	logger, err := logging.New(level, cfg.Debug())
	if err != nil {
		bootstrap.Fatal("failed to initialize logger", zap.Error(err))
	}
	defer func() {
		_ = logger.Sync()
	}()

	dirs, err := storage.Prepare(cfg)
	if err != nil {
		logger.Fatal("failed to prepare local storage", zap.Error(err))
	}
	if len(dirs) > 0 {
		logger.Debug("local storage ready", zap.Strings("dirs", dirs))
	}

	resolver := config.NewResolver(
		config.WithOverrideFile(*envFile),
		config.WithLogger(logger),
	)
	app, err := application.New(cfg, resolver, logger, application.WithLogLevel(level))
	if err != nil {
		logger.Fatal("failed to initialize application", zap.Error(err))
	}

	logger.Info("configuration resolved",
		zap.String("server", cfg.ServerName()),
		zap.Stringer("mode", cfg.Mode()),
		zap.Stringer("category", cfg.Category()),
		zap.Bool("hot_reload", cfg.HotReloadEnabled()),
	)

	if err := app.Start(); err != nil {
		logger.Fatal("failed to start server", zap.Error(err))
	}

	shutdown(app.Server(), shutdownTimeout, logger, app.StopWatcher)
}

// resolveOrReport runs one resolution pass. On failure the violation report
// is written to report, logger gets a one-line summary and the error is
// returned for the exit decision.
func resolveOrReport(resolver *config.Resolver, report io.Writer, logger *zap.Logger) (*config.Config, error) {
	cfg, err := resolver.Resolve()
	if err == nil {
		return cfg, nil
	}

	violations := 1
	var cfgErr *config.Error
	if errors.As(err, &cfgErr) {
		violations = len(cfgErr.Violations)
	}

	if writeErr := config.WriteReport(report, err); writeErr != nil {
		err = fmt.Errorf("%w (report unavailable: %v)", err, writeErr)
		logger.Error("configuration invalid, refusing to start", zap.Error(err))
		return nil, err
	}
	logger.Error("configuration invalid, refusing to start", zap.Int("violations", violations))
	return nil, err
}

func shutdown(server *http.Server, timeout time.Duration, logger *zap.Logger, cleanup ...func()) {
	quit := make(chan os.Signal, 1)
	signalNotify(quit, os.Interrupt, syscall.SIGINT, syscall.SIGTERM)

	<-quit
	logger.Info("shutting down server")

	for _, fn := range cleanup {
		fn()
	}

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		logger.Warn("graceful shutdown failed", zap.Error(err))
		if closeErr := server.Close(); closeErr != nil {
			logger.Error("forced close failed", zap.Error(closeErr))
		}
	}
}
