package config

import (
	"fmt"
	"os"

	"go.uber.org/zap"
)

// Resolver runs the merge-then-validate pipeline. It holds no state between
// passes, so one Resolver can be reused for hot reloads.
type Resolver struct {
	env          LookupFunc
	overrideFile string
	logger       *zap.Logger
}

// Option configures a Resolver.
type Option func(*Resolver)

// WithEnvironment replaces os.LookupEnv as the environment source.
func WithEnvironment(lookup LookupFunc) Option {
	return func(r *Resolver) {
		r.env = lookup
	}
}

// WithOverrideFile sets the KEY=VALUE override file. An empty path disables it.
func WithOverrideFile(path string) Option {
	return func(r *Resolver) {
		r.overrideFile = path
	}
}

// WithLogger sets the logger used for pipeline diagnostics.
func WithLogger(logger *zap.Logger) Option {
	return func(r *Resolver) {
		r.logger = logger
	}
}

// NewResolver builds a Resolver reading the process environment and ".env".
func NewResolver(opts ...Option) *Resolver {
	r := &Resolver{
		env:          os.LookupEnv,
		overrideFile: defaultOverrideFile,
		logger:       zap.NewNop(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Load resolves a Config in one call.
func Load(opts ...Option) (*Config, error) {
	return NewResolver(opts...).Resolve()
}

// OverrideFile returns the override file path consulted on every pass.
func (r *Resolver) OverrideFile() string {
	return r.overrideFile
}

// Resolve runs one complete resolution pass. It returns either a validated
// Config or an *Error listing every violation found.
func (r *Resolver) Resolve() (*Config, error) {
	var vs violations

	overrides := r.readOverrides(&vs)

	rawMode, modeSource, _ := modeField.resolve(r.env, overrides, ModeDefaults{})
	mode, err := ParseMode(rawMode)
	if err != nil {
		vs.add(Violation{
			Field:    FieldDeploymentMode,
			Kind:     KindUnknownMode,
			Message:  fmt.Sprintf("%q is not one of development, uvx, docker, production", rawMode),
			Raw:      rawMode,
			Expected: modeField.expected,
		})
		r.logger.Debug("config resolution failed", zap.String("stage", "mode"))
		return nil, vs.err()
	}

	r.logger.Debug("merging config sources",
		zap.Stringer("mode", mode),
		zap.Stringer("mode_source", modeSource),
	)
	cfg := merge(mode, modeSource, r.env, overrides, &vs)

	r.logger.Debug("validating config", zap.Int("violations_so_far", len(vs.list)))
	validateDraft(cfg, &vs)

	if err := vs.err(); err != nil {
		r.logger.Debug("config resolution failed",
			zap.String("stage", "validate"),
			zap.Int("violations", len(vs.list)),
		)
		return nil, err
	}

	r.logger.Debug("config resolved", zap.Stringer("mode", mode))
	return cfg, nil
}

func (r *Resolver) readOverrides(vs *violations) Overrides {
	overrides, skipped, err := ReadOverrideFile(r.overrideFile)
	if err != nil {
		vs.invalidf(fieldOverrideFile, r.overrideFile, "cannot read override file: %v", err)
		return Overrides{}
	}

	for _, line := range skipped {
		r.logger.Warn("skipping malformed override line",
			zap.String("file", r.overrideFile),
			zap.Int("line", line),
		)
	}
	return overrides
}
