package config

import (
	"net/url"
	"regexp"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/redis/go-redis/v9"
	"golang.org/x/net/http/httpguts"
)

const (
	minPort           = 1
	maxPort           = 65535
	maxRedisDB        = 15
	minRequestTimeout = time.Second
)

var databaseSchemes = map[string]Category{
	"sqlite":     CategoryLocal,
	"sqlite3":    CategoryLocal,
	"postgres":   CategoryDeployed,
	"postgresql": CategoryDeployed,
}

var validate = validator.New()

// metricsPathPattern admits slash-separated unreserved segments only, so the
// path can be registered as a literal ServeMux pattern.
var metricsPathPattern = regexp.MustCompile(`^/([A-Za-z0-9._~-]+/?)*$`)

// validateDraft applies every cross-field and per-field rule to cfg. Rules
// never stop early; fields that already failed coercion are skipped so each
// bad input is reported once.
func validateDraft(cfg *Config, vs *violations) {
	checkDatabaseURL(cfg, vs)
	checkStorageBackend(cfg, vs)
	checkSecretKey(cfg, vs)
	checkPort(cfg, vs)
	checkLimits(cfg, vs)
	checkCacheURL(cfg, vs)
	checkEndpoint(cfg.storageEndpoint, FieldStorageEndpoint, "storage endpoint", vs)
	checkEndpoint(cfg.oauthProviderURL, FieldOAuthProviderURL, "oauth provider url", vs)
	checkEndpoint(cfg.tracingEndpoint, FieldTracingEndpoint, "tracing endpoint", vs)
	checkHost(cfg, vs)
	checkAPIKeyHeader(cfg, vs)
	checkMetricsPath(cfg, vs)
}

func checkDatabaseURL(cfg *Config, vs *violations) {
	if vs.hasFailed(FieldDatabaseURL) || cfg.databaseURL == "" {
		return
	}

	u, err := url.Parse(cfg.databaseURL)
	if err != nil {
		vs.invalidf(FieldDatabaseURL, redacted, "malformed database url")
		return
	}

	scheme := baseScheme(u.Scheme)
	category, known := databaseSchemes[scheme]
	if !known {
		vs.invalidf(FieldDatabaseURL, u.Redacted(), "unsupported database scheme %q", u.Scheme)
		return
	}

	if category != cfg.Category() {
		vs.mismatch(FieldDatabaseURL, "%s mode requires a %s:// database url, got %s://",
			cfg.mode, defaultsFor(cfg.mode).DatabaseScheme, u.Scheme)
	}

	switch category {
	case CategoryLocal:
		if sqliteFile(u) == "" {
			vs.invalidf(FieldDatabaseURL, u.Redacted(), "sqlite url names no database file")
		}
	case CategoryDeployed:
		pg := *u
		pg.Scheme = "postgresql"
		if _, err := pgconn.ParseConfig(pg.String()); err != nil {
			vs.invalidf(FieldDatabaseURL, u.Redacted(), "malformed postgres url: %v", err)
		}
	}
}

func checkStorageBackend(cfg *Config, vs *violations) {
	if vs.hasFailed(FieldStorageBackend) || cfg.storageBackend == "" {
		return
	}
	if cfg.storageBackend.Category() != cfg.Category() {
		vs.mismatch(FieldStorageBackend, "%s mode cannot use the %q storage backend, expected one of %s",
			cfg.mode, cfg.storageBackend, strings.Join(backendsFor(cfg.Category()), ", "))
	}
}

func checkSecretKey(cfg *Config, vs *violations) {
	if cfg.Category() != CategoryDeployed {
		return
	}

	switch cfg.secretKey {
	case "":
		vs.add(Violation{
			Field:   FieldSecretKey,
			Kind:    KindMissingRequired,
			Message: "SECRET_KEY must be set in " + cfg.mode.String() + " mode",
		})
	case DevelopmentSecretKey:
		vs.mismatch(FieldSecretKey, "the development secret key cannot be used in %s mode", cfg.mode)
	}
}

func checkPort(cfg *Config, vs *violations) {
	if vs.hasFailed(FieldPort) {
		return
	}
	if cfg.port < minPort || cfg.port > maxPort {
		vs.outOfRange(FieldPort, cfg.port, "port %d is outside the range %d-%d", cfg.port, minPort, maxPort)
	}
}

func checkLimits(cfg *Config, vs *violations) {
	if !vs.hasFailed(FieldWorkers) && cfg.workers < 1 {
		vs.outOfRange(FieldWorkers, cfg.workers, "workers must be at least 1, got %d", cfg.workers)
	}
	if !vs.hasFailed(FieldDatabasePoolSize) && cfg.databasePoolSize < 1 {
		vs.outOfRange(FieldDatabasePoolSize, cfg.databasePoolSize,
			"database pool size must be at least 1, got %d", cfg.databasePoolSize)
	}
	if !vs.hasFailed(FieldRedisDB) && (cfg.redisDB < 0 || cfg.redisDB > maxRedisDB) {
		vs.outOfRange(FieldRedisDB, cfg.redisDB, "redis db %d is outside the range 0-%d", cfg.redisDB, maxRedisDB)
	}
	if !vs.hasFailed(FieldRequestTimeout) && cfg.requestTimeout < minRequestTimeout {
		vs.outOfRange(FieldRequestTimeout, cfg.requestTimeout,
			"request timeout must be at least %s, got %s", minRequestTimeout, cfg.requestTimeout)
	}
	if !vs.hasFailed(FieldMaxConnections) && cfg.maxConnections < 1 {
		vs.outOfRange(FieldMaxConnections, cfg.maxConnections,
			"max connections must be at least 1, got %d", cfg.maxConnections)
	}
	if !vs.hasFailed(FieldDatabaseMaxOverflow) && cfg.databaseMaxOverflow < 0 {
		vs.outOfRange(FieldDatabaseMaxOverflow, cfg.databaseMaxOverflow,
			"database max overflow cannot be negative, got %d", cfg.databaseMaxOverflow)
	}
	if !vs.hasFailed(FieldCacheTTL) && cfg.cacheTTL < 0 {
		vs.outOfRange(FieldCacheTTL, cfg.cacheTTL, "cache ttl cannot be negative, got %s", cfg.cacheTTL)
	}
}

func checkCacheURL(cfg *Config, vs *violations) {
	if vs.hasFailed(FieldCacheURL) || cfg.cacheURL == "" {
		return
	}
	if _, err := redis.ParseURL(cfg.cacheURL); err != nil {
		vs.invalidf(FieldCacheURL, redactURL(cfg.cacheURL), "malformed cache url: %v", err)
	}
}

func checkEndpoint(raw, name, label string, vs *violations) {
	if vs.hasFailed(name) || raw == "" {
		return
	}
	if err := validate.Var(raw, "url"); err != nil {
		vs.invalidf(name, redactURL(raw), "%s is not a valid url", label)
	}
}

func checkHost(cfg *Config, vs *violations) {
	if vs.hasFailed(FieldHost) || cfg.host == "" {
		return
	}
	if err := validate.Var(cfg.host, "hostname_rfc1123|ip"); err != nil {
		vs.invalidf(FieldHost, cfg.host, "%q is neither a hostname nor an IP address", cfg.host)
	}
}

func checkAPIKeyHeader(cfg *Config, vs *violations) {
	if vs.hasFailed(FieldAPIKeyHeader) {
		return
	}
	if !httpguts.ValidHeaderFieldName(cfg.apiKeyHeader) {
		vs.invalidf(FieldAPIKeyHeader, cfg.apiKeyHeader, "%q is not a valid HTTP header name", cfg.apiKeyHeader)
	}
}

func checkMetricsPath(cfg *Config, vs *violations) {
	if vs.hasFailed(FieldMetricsPath) {
		return
	}
	switch {
	case !strings.HasPrefix(cfg.metricsPath, "/"):
		vs.invalidf(FieldMetricsPath, cfg.metricsPath, "metrics path %q must start with /", cfg.metricsPath)
	case !metricsPathPattern.MatchString(cfg.metricsPath):
		vs.invalidf(FieldMetricsPath, cfg.metricsPath,
			"metrics path %q may only contain letters, digits and . _ ~ - between single slashes", cfg.metricsPath)
	case cfg.metricsPath == "/":
		vs.invalidf(FieldMetricsPath, cfg.metricsPath, "metrics path cannot be the server root")
	case cfg.metricsPath == "/api" || strings.HasPrefix(cfg.metricsPath, "/api/"):
		vs.invalidf(FieldMetricsPath, cfg.metricsPath, "metrics path %q overlaps the config API", cfg.metricsPath)
	}
}

// baseScheme drops a "+driver" suffix, so "postgresql+asyncpg" is treated as
// "postgresql".
func baseScheme(scheme string) string {
	scheme = strings.ToLower(scheme)
	if i := strings.IndexByte(scheme, '+'); i >= 0 {
		scheme = scheme[:i]
	}
	return scheme
}

// sqliteFile extracts the database path from a sqlite url. Three slashes mean
// a relative path and four an absolute one.
func sqliteFile(u *url.URL) string {
	if u.Opaque != "" {
		return u.Opaque
	}
	path := u.Path
	if u.Host == "" {
		path = strings.TrimPrefix(path, "/")
	} else {
		path = u.Host + path
	}
	return path
}

func backendsFor(category Category) []string {
	var names []string
	for _, b := range []StorageBackend{StorageLocal, StorageS3, StorageAzure, StorageGCS} {
		if b.Category() == category {
			names = append(names, b.String())
		}
	}
	return names
}
