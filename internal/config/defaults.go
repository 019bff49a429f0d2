package config

import "time"

const (
	defaultMode           = ModeDevelopment
	defaultPort           = 8000
	defaultServerName     = "mcp-server-foundation"
	defaultWorkers        = 1
	defaultPoolSize       = 10
	defaultRedisDB        = 0
	defaultStoragePath    = "./data/storage"
	defaultMetricsPath    = "/metrics"
	defaultOverrideFile   = ".env"
	defaultRequestTimeout = 30 * time.Second
	defaultAPIKeyHeader   = "X-API-Key"
	defaultMaxConnections = 100
	defaultMaxOverflow    = 20
	defaultCacheTTL       = time.Hour

	// DevelopmentSecretKey is the signing key used by local modes when none is
	// configured. It is rejected in deployed modes.
	DevelopmentSecretKey = "dev-secret-key-change-in-production"

	localDatabaseURL = "sqlite:///./data/mcp.db"
)

// ModeDefaults is the baseline configuration for one deployment mode.
type ModeDefaults struct {
	DatabaseScheme string
	DatabaseURL    string
	StorageBackend StorageBackend
	SecretKey      string
	Debug          bool
	Reload         bool
	FileWatcher    bool
	Host           string
	Port           int
	LogLevel       string
}

// DefaultsFor returns the baseline values for mode.
func DefaultsFor(mode DeploymentMode) (ModeDefaults, error) {
	if _, err := ParseMode(string(mode)); err != nil {
		return ModeDefaults{}, err
	}
	return defaultsFor(mode), nil
}

// defaultsFor must only be called with a parsed mode.
func defaultsFor(mode DeploymentMode) ModeDefaults {
	switch mode {
	case ModeDevelopment, ModeUVX:
		return ModeDefaults{
			DatabaseScheme: "sqlite",
			DatabaseURL:    localDatabaseURL,
			StorageBackend: StorageLocal,
			SecretKey:      DevelopmentSecretKey,
			Debug:          true,
			Reload:         true,
			FileWatcher:    true,
			Host:           "127.0.0.1",
			Port:           defaultPort,
			LogLevel:       "debug",
		}
	case ModeDocker:
		return ModeDefaults{
			DatabaseScheme: "postgresql",
			DatabaseURL:    "postgresql://mcp@postgres:5432/mcp",
			StorageBackend: StorageS3,
			Host:           "0.0.0.0",
			Port:           defaultPort,
			LogLevel:       "info",
		}
	case ModeProduction:
		return ModeDefaults{
			DatabaseScheme: "postgresql",
			DatabaseURL:    "postgresql://mcp@localhost:5432/mcp",
			StorageBackend: StorageS3,
			Host:           "0.0.0.0",
			Port:           defaultPort,
			LogLevel:       "info",
		}
	}
	panic("config: defaults requested for unparsed mode " + string(mode))
}
