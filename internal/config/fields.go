package config

import (
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap/zapcore"
)

// Field names used in provenance and violation reports.
const (
	FieldDeploymentMode   = "deployment_mode"
	FieldDatabaseURL      = "database_url"
	FieldStorageBackend   = "storage_backend"
	FieldSecretKey        = "secret_key"
	FieldHost             = "host"
	FieldPort             = "port"
	FieldDebug            = "debug"
	FieldReload           = "reload"
	FieldCacheURL         = "cache_url"
	FieldServerName       = "server_name"
	FieldLogLevel         = "log_level"
	FieldWorkers          = "workers"
	FieldRequestTimeout   = "request_timeout"
	FieldDatabasePoolSize = "database_pool_size"
	FieldRedisDB          = "redis_db"
	FieldStoragePath      = "storage_path"
	FieldStorageBucket    = "storage_bucket"
	FieldStorageRegion    = "storage_region"
	FieldStorageEndpoint  = "storage_endpoint"
	FieldUseFileWatcher   = "use_file_watcher"
	FieldEnableMetrics    = "enable_metrics"
	FieldMetricsPath      = "metrics_path"

	FieldAuthEnabled         = "auth_enabled"
	FieldOAuthProviderURL    = "oauth_provider_url"
	FieldAPIKeyHeader        = "api_key_header"
	FieldMaxConnections      = "max_connections"
	FieldCacheTTL            = "cache_ttl"
	FieldDatabaseEcho        = "database_echo"
	FieldDatabaseMaxOverflow = "database_max_overflow"
	FieldRedisSSL            = "redis_ssl"
	FieldEnableTracing       = "enable_tracing"
	FieldTracingEndpoint     = "tracing_endpoint"
	FieldAutoCreateTables    = "auto_create_tables"

	fieldOverrideFile = "override_file"
)

// Source identifies where a resolved value came from.
type Source int

const (
	SourceEnvironment Source = iota + 1
	SourceOverrideFile
	SourceModeDefault
	SourceFallback
)

func (s Source) String() string {
	switch s {
	case SourceEnvironment:
		return "environment"
	case SourceOverrideFile:
		return "override_file"
	case SourceModeDefault:
		return "mode_default"
	case SourceFallback:
		return "fallback"
	default:
		return "unknown"
	}
}

// LookupFunc reads one environment variable. os.LookupEnv satisfies it.
type LookupFunc func(key string) (string, bool)

// MapEnv adapts a map to a LookupFunc.
func MapEnv(values map[string]string) LookupFunc {
	return func(key string) (string, bool) {
		v, ok := values[key]
		return v, ok
	}
}

// field declares one setting: where to look for it and how to coerce it.
type field struct {
	name        string
	keys        []string
	expected    string
	required    bool
	modeDefault func(ModeDefaults) string
	fallback    string
	assign      func(cfg *Config, raw string) error
}

// resolve walks environment, override file, mode default and fallback in that
// order. The first non-empty value wins.
func (f field) resolve(env LookupFunc, overrides Overrides, defaults ModeDefaults) (string, Source, bool) {
	for _, key := range f.keys {
		if v, ok := env(key); ok && strings.TrimSpace(v) != "" {
			return strings.TrimSpace(v), SourceEnvironment, true
		}
	}
	for _, key := range f.keys {
		if v, ok := overrides.Lookup(key); ok {
			return v, SourceOverrideFile, true
		}
	}
	if f.modeDefault != nil {
		if v := f.modeDefault(defaults); v != "" {
			return v, SourceModeDefault, true
		}
	}
	if f.fallback != "" {
		return f.fallback, SourceFallback, true
	}
	return "", 0, false
}

var modeField = field{
	name:     FieldDeploymentMode,
	keys:     []string{"DEPLOYMENT_MODE"},
	expected: "deployment mode (development, uvx, docker, production)",
	fallback: string(defaultMode),
}

var fields = []field{
	{
		name:        FieldDatabaseURL,
		keys:        []string{"DATABASE_URL"},
		expected:    "url",
		required:    true,
		modeDefault: func(d ModeDefaults) string { return d.DatabaseURL },
		assign:      assignURL(func(c *Config) *string { return &c.databaseURL }),
	},
	{
		name:        FieldStorageBackend,
		keys:        []string{"STORAGE_BACKEND"},
		expected:    "storage backend (local, s3, azure, gcs)",
		required:    true,
		modeDefault: func(d ModeDefaults) string { return string(d.StorageBackend) },
		assign: func(c *Config, raw string) error {
			backend, err := ParseStorageBackend(raw)
			c.storageBackend = backend
			return err
		},
	},
	{
		// Presence is enforced per mode category by the validator.
		name:        FieldSecretKey,
		keys:        []string{"SECRET_KEY"},
		expected:    "string",
		modeDefault: func(d ModeDefaults) string { return d.SecretKey },
		assign:      assignString(func(c *Config) *string { return &c.secretKey }),
	},
	{
		name:        FieldHost,
		keys:        []string{"HOST"},
		expected:    "string",
		required:    true,
		modeDefault: func(d ModeDefaults) string { return d.Host },
		assign:      assignString(func(c *Config) *string { return &c.host }),
	},
	{
		name:        FieldPort,
		keys:        []string{"PORT"},
		expected:    "integer",
		required:    true,
		modeDefault: func(d ModeDefaults) string { return strconv.Itoa(d.Port) },
		assign:      assignInt(func(c *Config) *int { return &c.port }),
	},
	{
		name:        FieldDebug,
		keys:        []string{"DEBUG"},
		expected:    "boolean",
		required:    true,
		modeDefault: func(d ModeDefaults) string { return strconv.FormatBool(d.Debug) },
		assign:      assignBool(func(c *Config) *bool { return &c.debug }),
	},
	{
		name:        FieldReload,
		keys:        []string{"RELOAD"},
		expected:    "boolean",
		required:    true,
		modeDefault: func(d ModeDefaults) string { return strconv.FormatBool(d.Reload) },
		assign:      assignBool(func(c *Config) *bool { return &c.reload }),
	},
	{
		name:     FieldCacheURL,
		keys:     []string{"REDIS_URL", "CACHE_URL"},
		expected: "url",
		assign:   assignURL(func(c *Config) *string { return &c.cacheURL }),
	},
	{
		name:     FieldServerName,
		keys:     []string{"SERVER_NAME"},
		expected: "string",
		required: true,
		fallback: defaultServerName,
		assign:   assignString(func(c *Config) *string { return &c.serverName }),
	},
	{
		name:        FieldLogLevel,
		keys:        []string{"LOG_LEVEL"},
		expected:    "log level (debug, info, warning, error, critical)",
		required:    true,
		modeDefault: func(d ModeDefaults) string { return d.LogLevel },
		assign: func(c *Config, raw string) error {
			level, err := parseLogLevel(raw)
			c.logLevel = level
			return err
		},
	},
	{
		name:     FieldWorkers,
		keys:     []string{"WORKERS"},
		expected: "integer",
		required: true,
		fallback: strconv.Itoa(defaultWorkers),
		assign:   assignInt(func(c *Config) *int { return &c.workers }),
	},
	{
		name:     FieldRequestTimeout,
		keys:     []string{"REQUEST_TIMEOUT"},
		expected: "duration",
		required: true,
		fallback: defaultRequestTimeout.String(),
		assign: func(c *Config, raw string) error {
			d, err := parseDuration(raw)
			c.requestTimeout = d
			return err
		},
	},
	{
		name:     FieldDatabasePoolSize,
		keys:     []string{"DATABASE_POOL_SIZE"},
		expected: "integer",
		required: true,
		fallback: strconv.Itoa(defaultPoolSize),
		assign:   assignInt(func(c *Config) *int { return &c.databasePoolSize }),
	},
	{
		name:     FieldRedisDB,
		keys:     []string{"REDIS_DB"},
		expected: "integer",
		required: true,
		fallback: strconv.Itoa(defaultRedisDB),
		assign:   assignInt(func(c *Config) *int { return &c.redisDB }),
	},
	{
		name:     FieldStoragePath,
		keys:     []string{"STORAGE_PATH"},
		expected: "string",
		required: true,
		fallback: defaultStoragePath,
		assign:   assignString(func(c *Config) *string { return &c.storagePath }),
	},
	{
		name:     FieldStorageBucket,
		keys:     []string{"STORAGE_BUCKET"},
		expected: "string",
		assign:   assignString(func(c *Config) *string { return &c.storageBucket }),
	},
	{
		name:     FieldStorageRegion,
		keys:     []string{"STORAGE_REGION"},
		expected: "string",
		assign:   assignString(func(c *Config) *string { return &c.storageRegion }),
	},
	{
		name:     FieldStorageEndpoint,
		keys:     []string{"STORAGE_ENDPOINT"},
		expected: "url",
		assign:   assignURL(func(c *Config) *string { return &c.storageEndpoint }),
	},
	{
		name:        FieldUseFileWatcher,
		keys:        []string{"USE_FILE_WATCHER"},
		expected:    "boolean",
		required:    true,
		modeDefault: func(d ModeDefaults) string { return strconv.FormatBool(d.FileWatcher) },
		assign:      assignBool(func(c *Config) *bool { return &c.useFileWatcher }),
	},
	{
		name:     FieldEnableMetrics,
		keys:     []string{"ENABLE_METRICS"},
		expected: "boolean",
		required: true,
		fallback: "true",
		assign:   assignBool(func(c *Config) *bool { return &c.enableMetrics }),
	},
	{
		name:     FieldMetricsPath,
		keys:     []string{"METRICS_PATH"},
		expected: "string",
		required: true,
		fallback: defaultMetricsPath,
		assign:   assignString(func(c *Config) *string { return &c.metricsPath }),
	},
	{
		name:     FieldAuthEnabled,
		keys:     []string{"AUTH_ENABLED"},
		expected: "boolean",
		required: true,
		fallback: "true",
		assign:   assignBool(func(c *Config) *bool { return &c.authEnabled }),
	},
	{
		name:     FieldOAuthProviderURL,
		keys:     []string{"OAUTH_PROVIDER_URL"},
		expected: "url",
		assign:   assignURL(func(c *Config) *string { return &c.oauthProviderURL }),
	},
	{
		name:     FieldAPIKeyHeader,
		keys:     []string{"API_KEY_HEADER"},
		expected: "string",
		required: true,
		fallback: defaultAPIKeyHeader,
		assign:   assignString(func(c *Config) *string { return &c.apiKeyHeader }),
	},
	{
		name:     FieldMaxConnections,
		keys:     []string{"MAX_CONNECTIONS"},
		expected: "integer",
		required: true,
		fallback: strconv.Itoa(defaultMaxConnections),
		assign:   assignInt(func(c *Config) *int { return &c.maxConnections }),
	},
	{
		name:     FieldCacheTTL,
		keys:     []string{"CACHE_TTL"},
		expected: "duration",
		required: true,
		fallback: defaultCacheTTL.String(),
		assign: func(c *Config, raw string) error {
			d, err := parseDuration(raw)
			c.cacheTTL = d
			return err
		},
	},
	{
		name:     FieldDatabaseEcho,
		keys:     []string{"DATABASE_ECHO"},
		expected: "boolean",
		required: true,
		fallback: "false",
		assign:   assignBool(func(c *Config) *bool { return &c.databaseEcho }),
	},
	{
		name:     FieldDatabaseMaxOverflow,
		keys:     []string{"DATABASE_MAX_OVERFLOW"},
		expected: "integer",
		required: true,
		fallback: strconv.Itoa(defaultMaxOverflow),
		assign:   assignInt(func(c *Config) *int { return &c.databaseMaxOverflow }),
	},
	{
		name:     FieldRedisSSL,
		keys:     []string{"REDIS_SSL"},
		expected: "boolean",
		required: true,
		fallback: "false",
		assign:   assignBool(func(c *Config) *bool { return &c.redisSSL }),
	},
	{
		name:     FieldEnableTracing,
		keys:     []string{"ENABLE_TRACING"},
		expected: "boolean",
		required: true,
		fallback: "true",
		assign:   assignBool(func(c *Config) *bool { return &c.enableTracing }),
	},
	{
		name:     FieldTracingEndpoint,
		keys:     []string{"TRACING_ENDPOINT"},
		expected: "url",
		assign:   assignURL(func(c *Config) *string { return &c.tracingEndpoint }),
	},
	{
		name:     FieldAutoCreateTables,
		keys:     []string{"AUTO_CREATE_TABLES"},
		expected: "boolean",
		required: true,
		fallback: "true",
		assign:   assignBool(func(c *Config) *bool { return &c.autoCreateTables }),
	},
}

func assignString(target func(*Config) *string) func(*Config, string) error {
	return func(c *Config, raw string) error {
		*target(c) = raw
		return nil
	}
}

func assignInt(target func(*Config) *int) func(*Config, string) error {
	return func(c *Config, raw string) error {
		v, err := strconv.Atoi(raw)
		if err != nil {
			return err
		}
		*target(c) = v
		return nil
	}
}

func assignBool(target func(*Config) *bool) func(*Config, string) error {
	return func(c *Config, raw string) error {
		v, err := parseBool(raw)
		if err != nil {
			return err
		}
		*target(c) = v
		return nil
	}
}

// assignURL only checks that raw parses and names a scheme. Per-field rules
// run in the validator.
func assignURL(target func(*Config) *string) func(*Config, string) error {
	return func(c *Config, raw string) error {
		u, err := url.Parse(raw)
		if err != nil {
			return err
		}
		if u.Scheme == "" {
			return fmt.Errorf("url %q has no scheme", raw)
		}
		*target(c) = raw
		return nil
	}
}

func parseBool(raw string) (bool, error) {
	switch strings.ToLower(raw) {
	case "yes", "on":
		return true, nil
	case "no", "off":
		return false, nil
	}
	return strconv.ParseBool(raw)
}

// parseDuration accepts Go durations ("30s") and bare seconds ("30", "1.5").
func parseDuration(raw string) (time.Duration, error) {
	if d, err := time.ParseDuration(raw); err == nil {
		return d, nil
	}
	seconds, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid duration %q", raw)
	}
	return time.Duration(seconds * float64(time.Second)), nil
}

func parseLogLevel(raw string) (zapcore.Level, error) {
	switch strings.ToLower(raw) {
	case "warning":
		return zapcore.WarnLevel, nil
	case "critical":
		return zapcore.DPanicLevel, nil
	}
	return zapcore.ParseLevel(strings.ToLower(raw))
}
