package application

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/net/netutil"

	"github.com/eugenenazirov/mcp-foundation/internal/api"
	"github.com/eugenenazirov/mcp-foundation/internal/config"
	"github.com/eugenenazirov/mcp-foundation/internal/metrics"
	"github.com/eugenenazirov/mcp-foundation/internal/watcher"
)

const (
	readHeaderTimeout = 5 * time.Second
	idleTimeout       = 60 * time.Second
)

// restartFields are consumed once at startup; reloading them has no effect
// until the process restarts.
var restartFields = []string{
	config.FieldHost,
	config.FieldPort,
	config.FieldRequestTimeout,
	config.FieldEnableMetrics,
	config.FieldMetricsPath,
	config.FieldWorkers,
	config.FieldMaxConnections,
}

// Option configures an App.
type Option func(*App)

// WithLogLevel makes reloads of log_level adjust level in place.
func WithLogLevel(level zap.AtomicLevel) Option {
	return func(a *App) {
		a.level = &level
	}
}

// WithWatchDebounce overrides the quiet period of the override-file watcher.
func WithWatchDebounce(d time.Duration) Option {
	return func(a *App) {
		a.watchDebounce = d
	}
}

// App encapsulates the application dependencies and HTTP server.
type App struct {
	holder   *config.Holder
	resolver *config.Resolver
	handler  *api.Handler
	router   http.Handler
	root     http.Handler
	metrics  *metrics.Recorder
	logger   *zap.Logger
	server   *http.Server
	maxConns int

	level         *zap.AtomicLevel
	watchDebounce time.Duration

	mu        sync.Mutex
	listener  net.Listener
	stopWatch context.CancelFunc
	watchDone chan struct{}
}

// New wires the configuration holder, metrics, router and HTTP server around
// an already resolved configuration. resolver drives later reloads.
func New(initial *config.Config, resolver *config.Resolver, logger *zap.Logger, opts ...Option) (*App, error) {
	if initial == nil {
		return nil, errors.New("application requires a resolved configuration")
	}

	a := &App{
		resolver: resolver,
		metrics:  metrics.New(),
		logger:   logger,
		maxConns: initial.MaxConnections(),
	}
	for _, opt := range opts {
		opt(a)
	}

	a.holder = config.NewHolder(initial, resolver, logger,
		config.WithReloadObserver(a.metrics.ObserveReload),
		config.WithOnReload(a.onReload),
	)
	a.metrics.SetActive(initial)

	a.handler = api.NewHandler(a.holder)
	a.router = api.NewRouter(a.handler, logger)

	var metricsHandler http.Handler
	if initial.MetricsEnabled() {
		metricsHandler = a.metrics.Handler()
	}
	a.root = BuildRootHandler(a.router, metricsHandler, initial.MetricsPath())
	a.server = NewServer(initial, a.root)

	return a, nil
}

// BuildRootHandler routes API traffic and, when metricsHandler is non-nil,
// serves it at metricsPath.
func BuildRootHandler(apiHandler, metricsHandler http.Handler, metricsPath string) http.Handler {
	mux := http.NewServeMux()
	mux.Handle("/api/", apiHandler)
	if metricsHandler != nil {
		mux.Handle("GET "+metricsPath, metricsHandler)
	}
	mux.Handle("/", http.HandlerFunc(http.NotFound))
	return mux
}

// NewServer creates and configures an HTTP server for cfg.
func NewServer(cfg *config.Config, handler http.Handler) *http.Server {
	return &http.Server{
		Addr:              cfg.Addr(),
		Handler:           handler,
		ReadHeaderTimeout: readHeaderTimeout,
		WriteTimeout:      cfg.RequestTimeout(),
		IdleTimeout:       idleTimeout,
	}
}

// Start binds the listen address, serves in the background and, when the
// active configuration allows hot reload, starts watching the override file.
func (a *App) Start() error {
	ln, err := net.Listen("tcp", a.server.Addr)
	if err != nil {
		return fmt.Errorf("listen on %s: %w", a.server.Addr, err)
	}
	if a.maxConns > 0 {
		ln = netutil.LimitListener(ln, a.maxConns)
	}

	a.mu.Lock()
	a.listener = ln
	a.mu.Unlock()

	go func() {
		a.logger.Info("server listening",
			zap.String("addr", ln.Addr().String()),
			zap.Stringer("mode", a.holder.Current().Mode()),
			zap.Int("max_connections", a.maxConns),
		)
		if err := a.server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			a.logger.Error("server error", zap.Error(err))
		}
	}()

	a.startWatcher()
	return nil
}

func (a *App) startWatcher() {
	cfg := a.holder.Current()
	path := a.resolver.OverrideFile()
	if !cfg.HotReloadEnabled() || path == "" {
		a.logger.Debug("config hot reload disabled",
			zap.Stringer("mode", cfg.Mode()),
			zap.Bool("reload", cfg.Reload()),
			zap.Bool("use_file_watcher", cfg.UseFileWatcher()),
		)
		return
	}

	opts := []watcher.Option{watcher.WithLogger(a.logger)}
	if a.watchDebounce > 0 {
		opts = append(opts, watcher.WithDebounce(a.watchDebounce))
	}
	w, err := watcher.New(path, opts...)
	if err != nil {
		a.logger.Warn("config hot reload unavailable", zap.String("path", path), zap.Error(err))
		return
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})

	a.mu.Lock()
	a.stopWatch = cancel
	a.watchDone = done
	a.mu.Unlock()

	go func() {
		defer close(done)
		a.logger.Info("watching override file", zap.String("path", w.Path()))
		if err := w.Run(ctx, a.reloadFromWatch); err != nil {
			a.logger.Warn("override file watcher stopped", zap.Error(err))
		}
	}()
}

// reloadFromWatch ignores the error; Holder.Reload already logs it and keeps
// the active configuration.
func (a *App) reloadFromWatch() {
	_, _ = a.holder.Reload()
}

// StopWatcher stops the override-file watcher, if one is running, and waits
// for it to exit.
func (a *App) StopWatcher() {
	a.mu.Lock()
	cancel, done := a.stopWatch, a.watchDone
	a.stopWatch, a.watchDone = nil, nil
	a.mu.Unlock()

	if cancel == nil {
		return
	}
	cancel()
	<-done
}

func (a *App) onReload(previous, next *config.Config) {
	a.metrics.SetActive(next)

	if a.level != nil && a.level.Level() != next.LogLevel() {
		a.level.SetLevel(next.LogLevel())
	}

	changed := config.Changed(previous, next)
	var pending []string
	for _, field := range changed {
		for _, restart := range restartFields {
			if field == restart {
				pending = append(pending, field)
			}
		}
	}
	if len(pending) > 0 {
		a.logger.Warn("configuration change requires a restart to take effect",
			zap.Strings("fields", pending),
			zap.String("active_addr", a.server.Addr),
		)
	}
}

// Addr returns the bound listen address once Start has succeeded, otherwise
// the configured one.
func (a *App) Addr() string {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.listener != nil {
		return a.listener.Addr().String()
	}
	return a.server.Addr
}

// Holder returns the configuration holder shared with the handlers.
func (a *App) Holder() *config.Holder {
	return a.holder
}

// Handler returns the root HTTP handler.
func (a *App) Handler() http.Handler {
	return a.root
}

// Server returns the HTTP server instance for shutdown handling.
func (a *App) Server() *http.Server {
	return a.server
}
