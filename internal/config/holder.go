package config

import (
	"errors"
	"fmt"
	"sort"
	"sync"
	"sync/atomic"

	"go.uber.org/zap"
)

// ReloadResult is the outcome of one Holder.Reload call.
type ReloadResult int

const (
	ReloadApplied ReloadResult = iota + 1
	ReloadFailed
	ReloadRejected
)

func (r ReloadResult) String() string {
	switch r {
	case ReloadApplied:
		return "applied"
	case ReloadFailed:
		return "failed"
	case ReloadRejected:
		return "rejected"
	default:
		return "unknown"
	}
}

// HolderOption configures a Holder.
type HolderOption func(*Holder)

// WithOnReload registers fn to run after a new Config has been published.
func WithOnReload(fn func(previous, next *Config)) HolderOption {
	return func(h *Holder) {
		h.onReload = append(h.onReload, fn)
	}
}

// WithReloadObserver registers fn to receive the outcome of every reload.
func WithReloadObserver(fn func(ReloadResult)) HolderOption {
	return func(h *Holder) {
		h.observers = append(h.observers, fn)
	}
}

// Holder publishes the active Config to concurrent readers. Readers never
// lock; reloads are serialised and swap the pointer in one step.
type Holder struct {
	current  atomic.Pointer[Config]
	resolver *Resolver
	logger   *zap.Logger

	mu        sync.Mutex
	onReload  []func(previous, next *Config)
	observers []func(ReloadResult)
}

// NewHolder publishes initial and keeps resolver for later reloads.
func NewHolder(initial *Config, resolver *Resolver, logger *zap.Logger, opts ...HolderOption) *Holder {
	h := &Holder{
		resolver: resolver,
		logger:   logger,
	}
	for _, opt := range opts {
		opt(h)
	}
	h.current.Store(initial)
	return h
}

// Current returns the active Config.
func (h *Holder) Current() *Config {
	return h.current.Load()
}

// Reload runs a fresh resolution pass and publishes the result. On any
// failure the active Config stays in place, the failure is logged as a
// warning and returned alongside the still-active Config.
func (h *Holder) Reload() (*Config, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	previous := h.current.Load()
	if !previous.Mode().IsLocal() {
		h.observe(ReloadRejected)
		return previous, ErrReloadNotAllowed
	}

	next, err := h.resolver.Resolve()
	if err != nil {
		fields := []zap.Field{zap.Error(err)}
		var cfgErr *Error
		if errors.As(err, &cfgErr) {
			fields = append(fields, zap.Int("violations", len(cfgErr.Violations)))
		}
		h.logger.Warn("config reload failed, keeping active configuration", fields...)
		h.observe(ReloadFailed)
		return previous, err
	}

	if !next.Mode().IsLocal() {
		h.logger.Warn("config reload resolved a deployed mode, keeping active configuration",
			zap.Stringer("mode", next.Mode()),
		)
		h.observe(ReloadRejected)
		return previous, fmt.Errorf("%w: reload resolved %s mode", ErrReloadNotAllowed, next.Mode())
	}

	h.current.Store(next)
	h.logger.Info("config reloaded",
		zap.Stringer("mode", next.Mode()),
		zap.Strings("changed", Changed(previous, next)),
	)
	h.observe(ReloadApplied)

	for _, fn := range h.onReload {
		fn(previous, next)
	}
	return next, nil
}

func (h *Holder) observe(result ReloadResult) {
	for _, fn := range h.observers {
		fn(result)
	}
}

// Changed lists the fields whose values differ between a and b, sorted.
func Changed(a, b *Config) []string {
	av, bv := a.values(), b.values()
	changed := make([]string, 0)
	for name, v := range av {
		if bv[name] != v {
			changed = append(changed, name)
		}
	}
	sort.Strings(changed)
	return changed
}

func (c *Config) values() map[string]string {
	return map[string]string{
		FieldDeploymentMode:   c.mode.String(),
		FieldDatabaseURL:      c.databaseURL,
		FieldStorageBackend:   c.storageBackend.String(),
		FieldSecretKey:        c.secretKey,
		FieldHost:             c.host,
		FieldPort:             fmt.Sprint(c.port),
		FieldDebug:            fmt.Sprint(c.debug),
		FieldReload:           fmt.Sprint(c.reload),
		FieldCacheURL:         c.cacheURL,
		FieldServerName:       c.serverName,
		FieldLogLevel:         c.logLevel.String(),
		FieldWorkers:          fmt.Sprint(c.workers),
		FieldRequestTimeout:   c.requestTimeout.String(),
		FieldDatabasePoolSize: fmt.Sprint(c.databasePoolSize),
		FieldRedisDB:          fmt.Sprint(c.redisDB),
		FieldStoragePath:      c.storagePath,
		FieldStorageBucket:    c.storageBucket,
		FieldStorageRegion:    c.storageRegion,
		FieldStorageEndpoint:  c.storageEndpoint,
		FieldUseFileWatcher:   fmt.Sprint(c.useFileWatcher),
		FieldEnableMetrics:    fmt.Sprint(c.enableMetrics),
		FieldMetricsPath:      c.metricsPath,

		FieldAuthEnabled:         fmt.Sprint(c.authEnabled),
		FieldOAuthProviderURL:    c.oauthProviderURL,
		FieldAPIKeyHeader:        c.apiKeyHeader,
		FieldMaxConnections:      fmt.Sprint(c.maxConnections),
		FieldCacheTTL:            c.cacheTTL.String(),
		FieldDatabaseEcho:        fmt.Sprint(c.databaseEcho),
		FieldDatabaseMaxOverflow: fmt.Sprint(c.databaseMaxOverflow),
		FieldRedisSSL:            fmt.Sprint(c.redisSSL),
		FieldEnableTracing:       fmt.Sprint(c.enableTracing),
		FieldTracingEndpoint:     c.tracingEndpoint,
		FieldAutoCreateTables:    fmt.Sprint(c.autoCreateTables),
	}
}
