package config

import (
	"maps"
	"net"
	"net/url"
	"strconv"
	"time"

	"go.uber.org/zap/zapcore"
)

const redacted = "xxxxx"

// Config is the validated configuration of one resolution pass. It is only
// produced by Resolver.Resolve and never changes after that, so it can be
// shared between goroutines without locking.
type Config struct {
	mode             DeploymentMode
	databaseURL      string
	storageBackend   StorageBackend
	secretKey        string
	host             string
	port             int
	debug            bool
	reload           bool
	cacheURL         string
	serverName       string
	logLevel         zapcore.Level
	workers          int
	requestTimeout   time.Duration
	databasePoolSize int
	redisDB          int
	storagePath      string
	storageBucket    string
	storageRegion    string
	storageEndpoint  string
	useFileWatcher   bool
	enableMetrics    bool
	metricsPath      string

	authEnabled         bool
	oauthProviderURL    string
	apiKeyHeader        string
	maxConnections      int
	cacheTTL            time.Duration
	databaseEcho        bool
	databaseMaxOverflow int
	redisSSL            bool
	enableTracing       bool
	tracingEndpoint     string
	autoCreateTables    bool

	sources map[string]Source
}

func (c *Config) Mode() DeploymentMode           { return c.mode }
func (c *Config) Category() Category             { return c.mode.Category() }
func (c *Config) DatabaseURL() string            { return c.databaseURL }
func (c *Config) StorageBackend() StorageBackend { return c.storageBackend }
func (c *Config) SecretKey() string              { return c.secretKey }
func (c *Config) Host() string                   { return c.host }
func (c *Config) Port() int                      { return c.port }
func (c *Config) Debug() bool                    { return c.debug }
func (c *Config) Reload() bool                   { return c.reload }
func (c *Config) ServerName() string             { return c.serverName }
func (c *Config) LogLevel() zapcore.Level        { return c.logLevel }
func (c *Config) Workers() int                   { return c.workers }
func (c *Config) RequestTimeout() time.Duration  { return c.requestTimeout }
func (c *Config) DatabasePoolSize() int          { return c.databasePoolSize }
func (c *Config) RedisDB() int                   { return c.redisDB }
func (c *Config) StoragePath() string            { return c.storagePath }
func (c *Config) StorageBucket() string          { return c.storageBucket }
func (c *Config) StorageRegion() string          { return c.storageRegion }
func (c *Config) StorageEndpoint() string        { return c.storageEndpoint }
func (c *Config) UseFileWatcher() bool           { return c.useFileWatcher }
func (c *Config) MetricsEnabled() bool           { return c.enableMetrics }
func (c *Config) MetricsPath() string            { return c.metricsPath }
func (c *Config) AuthEnabled() bool              { return c.authEnabled }
func (c *Config) OAuthProviderURL() string       { return c.oauthProviderURL }
func (c *Config) APIKeyHeader() string           { return c.apiKeyHeader }
func (c *Config) MaxConnections() int            { return c.maxConnections }
func (c *Config) CacheTTL() time.Duration        { return c.cacheTTL }
func (c *Config) DatabaseEcho() bool             { return c.databaseEcho }
func (c *Config) DatabaseMaxOverflow() int       { return c.databaseMaxOverflow }
func (c *Config) RedisSSL() bool                 { return c.redisSSL }
func (c *Config) TracingEnabled() bool           { return c.enableTracing }
func (c *Config) TracingEndpoint() string        { return c.tracingEndpoint }
func (c *Config) AutoCreateTables() bool         { return c.autoCreateTables }

// CacheURL returns the cache endpoint, if one was configured.
func (c *Config) CacheURL() (string, bool) {
	return c.cacheURL, c.cacheURL != ""
}

// DatabaseFile returns the on-disk path of a file-based database.
func (c *Config) DatabaseFile() (string, bool) {
	u, err := url.Parse(c.databaseURL)
	if err != nil || databaseSchemes[baseScheme(u.Scheme)] != CategoryLocal {
		return "", false
	}
	path := sqliteFile(u)
	return path, path != ""
}

// Addr joins host and port for net.Listen.
func (c *Config) Addr() string {
	return net.JoinHostPort(c.host, strconv.Itoa(c.port))
}

// HotReloadEnabled reports whether an override-file watcher should drive
// re-resolution for this configuration.
func (c *Config) HotReloadEnabled() bool {
	return c.mode.IsLocal() && c.reload && c.useFileWatcher
}

// Source reports which source supplied field. Unset optional fields report
// false.
func (c *Config) Source(field string) (Source, bool) {
	s, ok := c.sources[field]
	return s, ok
}

// Sources returns a copy of the per-field provenance.
func (c *Config) Sources() map[string]Source {
	return maps.Clone(c.sources)
}

// Snapshot is a serialisable view of a Config with secrets masked.
type Snapshot struct {
	Mode             string            `json:"deploymentMode" yaml:"deployment_mode"`
	Category         string            `json:"category" yaml:"category"`
	ServerName       string            `json:"serverName" yaml:"server_name"`
	Host             string            `json:"host" yaml:"host"`
	Port             int               `json:"port" yaml:"port"`
	Debug            bool              `json:"debug" yaml:"debug"`
	Reload           bool              `json:"reload" yaml:"reload"`
	LogLevel         string            `json:"logLevel" yaml:"log_level"`
	Workers          int               `json:"workers" yaml:"workers"`
	RequestTimeout   string            `json:"requestTimeout" yaml:"request_timeout"`
	DatabaseURL      string            `json:"databaseUrl" yaml:"database_url"`
	DatabasePoolSize int               `json:"databasePoolSize" yaml:"database_pool_size"`
	CacheURL         string            `json:"cacheUrl,omitempty" yaml:"cache_url,omitempty"`
	RedisDB          int               `json:"redisDb" yaml:"redis_db"`
	SecretKey        string            `json:"secretKey" yaml:"secret_key"`
	StorageBackend   string            `json:"storageBackend" yaml:"storage_backend"`
	StoragePath      string            `json:"storagePath" yaml:"storage_path"`
	StorageBucket    string            `json:"storageBucket,omitempty" yaml:"storage_bucket,omitempty"`
	StorageRegion    string            `json:"storageRegion,omitempty" yaml:"storage_region,omitempty"`
	StorageEndpoint  string            `json:"storageEndpoint,omitempty" yaml:"storage_endpoint,omitempty"`
	UseFileWatcher   bool              `json:"useFileWatcher" yaml:"use_file_watcher"`
	MetricsEnabled   bool              `json:"metricsEnabled" yaml:"enable_metrics"`
	MetricsPath      string            `json:"metricsPath" yaml:"metrics_path"`
	AuthEnabled      bool              `json:"authEnabled" yaml:"auth_enabled"`
	OAuthProviderURL string            `json:"oauthProviderUrl,omitempty" yaml:"oauth_provider_url,omitempty"`
	APIKeyHeader     string            `json:"apiKeyHeader" yaml:"api_key_header"`
	MaxConnections   int               `json:"maxConnections" yaml:"max_connections"`
	CacheTTL         string            `json:"cacheTtl" yaml:"cache_ttl"`
	DatabaseEcho     bool              `json:"databaseEcho" yaml:"database_echo"`
	MaxOverflow      int               `json:"databaseMaxOverflow" yaml:"database_max_overflow"`
	RedisSSL         bool              `json:"redisSsl" yaml:"redis_ssl"`
	TracingEnabled   bool              `json:"tracingEnabled" yaml:"enable_tracing"`
	TracingEndpoint  string            `json:"tracingEndpoint,omitempty" yaml:"tracing_endpoint,omitempty"`
	AutoCreateTables bool              `json:"autoCreateTables" yaml:"auto_create_tables"`
	Sources          map[string]string `json:"sources" yaml:"sources"`
}

// Snapshot returns the redacted view used for diagnostics output.
func (c *Config) Snapshot() Snapshot {
	sources := make(map[string]string, len(c.sources))
	for name, src := range c.sources {
		sources[name] = src.String()
	}

	secret := ""
	if c.secretKey != "" {
		secret = redacted
	}

	return Snapshot{
		Mode:             c.mode.String(),
		Category:         c.Category().String(),
		ServerName:       c.serverName,
		Host:             c.host,
		Port:             c.port,
		Debug:            c.debug,
		Reload:           c.reload,
		LogLevel:         c.logLevel.String(),
		Workers:          c.workers,
		RequestTimeout:   c.requestTimeout.String(),
		DatabaseURL:      redactURL(c.databaseURL),
		DatabasePoolSize: c.databasePoolSize,
		CacheURL:         redactURL(c.cacheURL),
		RedisDB:          c.redisDB,
		SecretKey:        secret,
		StorageBackend:   c.storageBackend.String(),
		StoragePath:      c.storagePath,
		StorageBucket:    c.storageBucket,
		StorageRegion:    c.storageRegion,
		StorageEndpoint:  redactURL(c.storageEndpoint),
		UseFileWatcher:   c.useFileWatcher,
		MetricsEnabled:   c.enableMetrics,
		MetricsPath:      c.metricsPath,
		AuthEnabled:      c.authEnabled,
		OAuthProviderURL: redactURL(c.oauthProviderURL),
		APIKeyHeader:     c.apiKeyHeader,
		MaxConnections:   c.maxConnections,
		CacheTTL:         c.cacheTTL.String(),
		DatabaseEcho:     c.databaseEcho,
		MaxOverflow:      c.databaseMaxOverflow,
		RedisSSL:         c.redisSSL,
		TracingEnabled:   c.enableTracing,
		TracingEndpoint:  redactURL(c.tracingEndpoint),
		AutoCreateTables: c.autoCreateTables,
		Sources:          sources,
	}
}

func redactURL(raw string) string {
	if raw == "" {
		return ""
	}
	u, err := url.Parse(raw)
	if err != nil {
		return redacted
	}
	return u.Redacted()
}
