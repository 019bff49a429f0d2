package storage

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/eugenenazirov/mcp-foundation/internal/config"
)

const dirPerm = 0o755

// Settings describes the object storage selected by a Config. Bucket and
// region only apply to remote backends.
type Settings struct {
	Backend  config.StorageBackend `json:"backend" yaml:"backend"`
	Path     string                `json:"path" yaml:"path"`
	Bucket   string                `json:"bucket,omitempty" yaml:"bucket,omitempty"`
	Region   string                `json:"region,omitempty" yaml:"region,omitempty"`
	Endpoint string                `json:"endpoint,omitempty" yaml:"endpoint,omitempty"`
}

// SettingsFrom derives the storage settings of cfg.
func SettingsFrom(cfg *config.Config) Settings {
	s := Settings{
		Backend: cfg.StorageBackend(),
		Path:    cfg.StoragePath(),
	}
	if s.Backend != config.StorageLocal {
		s.Bucket = cfg.StorageBucket()
		s.Region = cfg.StorageRegion()
		s.Endpoint = cfg.StorageEndpoint()
	}
	return s
}

// IsLocal reports whether objects live on the local filesystem.
func (s Settings) IsLocal() bool {
	return s.Backend == config.StorageLocal
}

// Prepare creates the directories a local-mode Config writes to: the storage
// path and the directory holding the file database. Deployed modes need no
// local state and are left untouched. The directories are returned in the
// order they were ensured.
func Prepare(cfg *config.Config) ([]string, error) {
	if !cfg.Mode().IsLocal() {
		return nil, nil
	}

	var dirs []string
	if s := SettingsFrom(cfg); s.IsLocal() && s.Path != "" {
		dirs = append(dirs, s.Path)
	}
	if file, ok := cfg.DatabaseFile(); ok {
		dirs = append(dirs, filepath.Dir(file))
	}

	for _, dir := range dirs {
		if err := os.MkdirAll(dir, dirPerm); err != nil {
			return nil, fmt.Errorf("prepare storage directory %s: %w", dir, err)
		}
	}
	return dirs, nil
}
