package config

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest"
	"go.uber.org/zap/zaptest/observer"
)

type recordedReloads struct {
	mu      sync.Mutex
	results []ReloadResult
}

func (r *recordedReloads) record(result ReloadResult) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.results = append(r.results, result)
}

func (r *recordedReloads) all() []ReloadResult {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]ReloadResult(nil), r.results...)
}

func newTestHolder(t *testing.T, env map[string]string, logger *zap.Logger, lines ...string) (*Holder, string, *recordedReloads) {
	t.Helper()
	path := writeOverrideFile(t, lines...)
	resolver := NewResolver(WithEnvironment(MapEnv(env)), WithOverrideFile(path))

	initial, err := resolver.Resolve()
	require.NoError(t, err)

	reloads := &recordedReloads{}
	holder := NewHolder(initial, resolver, logger, WithReloadObserver(reloads.record))
	return holder, path, reloads
}

func TestHolderReloadApplies(t *testing.T) {
	path := writeOverrideFile(t, "PORT=9100")
	resolver := NewResolver(WithEnvironment(MapEnv(nil)), WithOverrideFile(path))
	initial, err := resolver.Resolve()
	require.NoError(t, err)

	var previousPort, nextPort int
	reloads := &recordedReloads{}
	holder := NewHolder(initial, resolver, zaptest.NewLogger(t),
		WithReloadObserver(reloads.record),
		WithOnReload(func(previous, next *Config) {
			previousPort, nextPort = previous.Port(), next.Port()
		}),
	)

	rewriteOverrideFile(t, path, "PORT=9200", "LOG_LEVEL=info")
	cfg, err := holder.Reload()
	require.NoError(t, err)

	assert.Same(t, cfg, holder.Current())
	assert.Equal(t, 9200, holder.Current().Port())
	assert.Equal(t, 9100, previousPort)
	assert.Equal(t, 9200, nextPort)
	assert.Equal(t, []ReloadResult{ReloadApplied}, reloads.all())
	assert.Equal(t, []string{FieldLogLevel, FieldPort}, Changed(initial, cfg))
}

func TestHolderFailedReloadKeepsActiveConfig(t *testing.T) {
	core, logs := observer.New(zapcore.WarnLevel)
	holder, path, reloads := newTestHolder(t, nil, zap.New(core), "PORT=9100")
	initial := holder.Current()

	rewriteOverrideFile(t, path, "PORT=99999")
	cfg, err := holder.Reload()
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrOutOfRange)

	assert.Same(t, initial, cfg)
	assert.Same(t, initial, holder.Current())
	assert.Equal(t, []ReloadResult{ReloadFailed}, reloads.all())

	entries := logs.FilterMessage("config reload failed, keeping active configuration").All()
	require.Len(t, entries, 1)
	assert.EqualValues(t, 1, entries[0].ContextMap()["violations"])
}

func TestHolderRejectsReloadInDeployedMode(t *testing.T) {
	holder, _, reloads := newTestHolder(t, deployedEnv(ModeDocker), zaptest.NewLogger(t))
	initial := holder.Current()

	cfg, err := holder.Reload()
	assert.ErrorIs(t, err, ErrReloadNotAllowed)
	assert.Same(t, initial, cfg)
	assert.Equal(t, []ReloadResult{ReloadRejected}, reloads.all())
}

func TestHolderRejectsReloadIntoDeployedMode(t *testing.T) {
	env := map[string]string{"SECRET_KEY": "0f1e2d3c4b5a"}
	holder, path, reloads := newTestHolder(t, env, zaptest.NewLogger(t), "DEPLOYMENT_MODE=uvx")
	initial := holder.Current()
	require.Equal(t, ModeUVX, initial.Mode())

	rewriteOverrideFile(t, path, "DEPLOYMENT_MODE=production")
	cfg, err := holder.Reload()
	assert.ErrorIs(t, err, ErrReloadNotAllowed)
	assert.Same(t, initial, cfg)
	assert.Same(t, initial, holder.Current())
	assert.Equal(t, []ReloadResult{ReloadRejected}, reloads.all())
}

func TestHolderConcurrentReadersSeeCompleteConfigs(t *testing.T) {
	holder, path, _ := newTestHolder(t, nil, zap.NewNop(), "PORT=9100", "HOST=127.0.0.1")

	var wg sync.WaitGroup
	stop := make(chan struct{})
	for range 8 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				select {
				case <-stop:
					return
				default:
				}
				cfg := holder.Current()
				// port and host are always changed together.
				if cfg.Port() == 9100 {
					assert.Equal(t, "127.0.0.1", cfg.Host())
				} else {
					assert.Equal(t, "localhost", cfg.Host())
				}
			}
		}()
	}

	for i := range 20 {
		if i%2 == 0 {
			rewriteOverrideFile(t, path, "PORT=9200", "HOST=localhost")
		} else {
			rewriteOverrideFile(t, path, "PORT=9100", "HOST=127.0.0.1")
		}
		_, err := holder.Reload()
		require.NoError(t, err)
	}
	close(stop)
	wg.Wait()
}

func TestChangedIgnoresProvenance(t *testing.T) {
	fromEnv, err := resolve(t, map[string]string{"PORT": "8000"})
	require.NoError(t, err)
	fromDefault, err := resolve(t, nil)
	require.NoError(t, err)

	assert.Empty(t, Changed(fromEnv, fromDefault))
}
