package config

import (
	"errors"
	"strconv"
)

// merge resolves every declared field for mode and coerces it into a draft
// Config. Coercion failures and missing required values are recorded in vs;
// the affected fields keep their zero value.
func merge(mode DeploymentMode, modeSource Source, env LookupFunc, overrides Overrides, vs *violations) *Config {
	defaults := defaultsFor(mode)

	cfg := &Config{
		mode:    mode,
		sources: make(map[string]Source, len(fields)+1),
	}
	cfg.sources[FieldDeploymentMode] = modeSource

	for _, f := range fields {
		raw, source, ok := f.resolve(env, overrides, defaults)
		if !ok {
			if f.required {
				vs.missing(f.name, f.keys[0])
			}
			continue
		}

		if err := f.assign(cfg, raw); err != nil {
			if errors.Is(err, strconv.ErrRange) {
				vs.outOfRange(f.name, raw, "%s value %s does not fit in an integer", f.keys[0], raw)
				continue
			}
			display := raw
			if f.expected == "url" {
				display = redactURL(raw)
			}
			vs.invalid(f.name, display, f.expected)
			continue
		}
		cfg.sources[f.name] = source
	}

	return cfg
}
