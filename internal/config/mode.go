package config

import (
	"fmt"
	"strings"
)

// DeploymentMode is the operating context of the process.
type DeploymentMode string

const (
	ModeDevelopment DeploymentMode = "development"
	ModeUVX         DeploymentMode = "uvx"
	ModeDocker      DeploymentMode = "docker"
	ModeProduction  DeploymentMode = "production"
)

// Category groups deployment modes by the kind of resources they run against.
type Category int

const (
	// CategoryLocal covers modes backed by file-based resources.
	CategoryLocal Category = iota + 1
	// CategoryDeployed covers modes backed by networked resources.
	CategoryDeployed
)

func (c Category) String() string {
	switch c {
	case CategoryLocal:
		return "local"
	case CategoryDeployed:
		return "deployed"
	default:
		return "unknown"
	}
}

// Modes returns every deployment mode in declaration order.
func Modes() []DeploymentMode {
	return []DeploymentMode{ModeDevelopment, ModeUVX, ModeDocker, ModeProduction}
}

// ParseMode normalises raw and matches it against the known modes.
func ParseMode(raw string) (DeploymentMode, error) {
	mode := DeploymentMode(strings.ToLower(strings.TrimSpace(raw)))
	switch mode {
	case ModeDevelopment, ModeUVX, ModeDocker, ModeProduction:
		return mode, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownMode, raw)
	}
}

// Category reports whether the mode runs against local or deployed resources.
func (m DeploymentMode) Category() Category {
	switch m {
	case ModeDevelopment, ModeUVX:
		return CategoryLocal
	case ModeDocker, ModeProduction:
		return CategoryDeployed
	default:
		return 0
	}
}

// IsLocal is shorthand for Category() == CategoryLocal.
func (m DeploymentMode) IsLocal() bool {
	return m.Category() == CategoryLocal
}

func (m DeploymentMode) String() string {
	return string(m)
}

// StorageBackend identifies where the service keeps its objects.
type StorageBackend string

const (
	StorageLocal StorageBackend = "local"
	StorageS3    StorageBackend = "s3"
	StorageAzure StorageBackend = "azure"
	StorageGCS   StorageBackend = "gcs"
)

// ParseStorageBackend matches raw against the known backends.
func ParseStorageBackend(raw string) (StorageBackend, error) {
	backend := StorageBackend(strings.ToLower(strings.TrimSpace(raw)))
	switch backend {
	case StorageLocal, StorageS3, StorageAzure, StorageGCS:
		return backend, nil
	default:
		return "", fmt.Errorf("unknown storage backend %q", raw)
	}
}

// Category returns the mode category the backend is valid for.
func (b StorageBackend) Category() Category {
	if b == StorageLocal {
		return CategoryLocal
	}
	return CategoryDeployed
}

func (b StorageBackend) String() string {
	return string(b)
}
