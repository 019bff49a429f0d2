package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseModeNormalisesInput(t *testing.T) {
	cases := map[string]DeploymentMode{
		"development":  ModeDevelopment,
		"DEVELOPMENT":  ModeDevelopment,
		"  uvx ":       ModeUVX,
		"Docker":       ModeDocker,
		"Production":   ModeProduction,
		"production\t": ModeProduction,
	}
	for raw, want := range cases {
		got, err := ParseMode(raw)
		require.NoError(t, err, raw)
		assert.Equal(t, want, got, raw)
	}
}

func TestParseModeRejectsUnknown(t *testing.T) {
	for _, raw := range []string{"", "staging", "prod", "local"} {
		_, err := ParseMode(raw)
		assert.ErrorIs(t, err, ErrUnknownMode, raw)
	}
}

func TestModeCategories(t *testing.T) {
	assert.Equal(t, CategoryLocal, ModeDevelopment.Category())
	assert.Equal(t, CategoryLocal, ModeUVX.Category())
	assert.Equal(t, CategoryDeployed, ModeDocker.Category())
	assert.Equal(t, CategoryDeployed, ModeProduction.Category())
	assert.True(t, ModeUVX.IsLocal())
	assert.False(t, ModeDocker.IsLocal())
	assert.Equal(t, "local", CategoryLocal.String())
	assert.Equal(t, "deployed", CategoryDeployed.String())
}

func TestDefaultsForEveryMode(t *testing.T) {
	for _, mode := range Modes() {
		defaults, err := DefaultsFor(mode)
		require.NoError(t, err, mode)

		assert.Equal(t, mode.Category(), defaults.StorageBackend.Category(), mode)
		assert.Equal(t, mode.IsLocal(), defaults.Debug, mode)
		assert.Equal(t, mode.IsLocal(), defaults.Reload, mode)
		assert.Equal(t, defaultPort, defaults.Port, mode)
		assert.Contains(t, defaults.DatabaseURL, defaults.DatabaseScheme+"://", mode)
		assert.Equal(t, mode.Category(), databaseSchemes[defaults.DatabaseScheme], mode)
	}
}

func TestDefaultsForDeployedModesHaveNoSecret(t *testing.T) {
	for _, mode := range []DeploymentMode{ModeDocker, ModeProduction} {
		defaults, err := DefaultsFor(mode)
		require.NoError(t, err)
		assert.Empty(t, defaults.SecretKey, mode)
	}
}

func TestDefaultsForUnknownMode(t *testing.T) {
	_, err := DefaultsFor("staging")
	assert.ErrorIs(t, err, ErrUnknownMode)
}

func TestParseStorageBackend(t *testing.T) {
	backend, err := ParseStorageBackend(" S3 ")
	require.NoError(t, err)
	assert.Equal(t, StorageS3, backend)
	assert.Equal(t, CategoryDeployed, backend.Category())
	assert.Equal(t, CategoryLocal, StorageLocal.Category())

	_, err = ParseStorageBackend("ftp")
	assert.Error(t, err)
}
