package config

import (
	"errors"
	"io"

	"gopkg.in/yaml.v3"
)

type report struct {
	Status     string            `yaml:"status"`
	Violations []reportViolation `yaml:"violations"`
}

type reportViolation struct {
	Field   string `yaml:"field"`
	Kind    string `yaml:"kind"`
	Message string `yaml:"message"`
}

// WriteReport renders err as a single YAML document listing every violation.
// Errors that are not an *Error are reported as one "Internal" entry.
func WriteReport(w io.Writer, err error) error {
	rep := report{Status: "failed"}

	var cfgErr *Error
	if errors.As(err, &cfgErr) {
		for _, v := range cfgErr.Violations {
			rep.Violations = append(rep.Violations, reportViolation{
				Field:   v.Field,
				Kind:    v.Kind.String(),
				Message: v.Message,
			})
		}
	} else {
		rep.Violations = []reportViolation{{Kind: "Internal", Message: err.Error()}}
	}

	return encodeYAML(w, rep)
}

// WriteConfig renders the redacted snapshot of cfg as YAML.
func WriteConfig(w io.Writer, cfg *Config) error {
	return encodeYAML(w, cfg.Snapshot())
}

func encodeYAML(w io.Writer, v any) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(v); err != nil {
		return err
	}
	return enc.Close()
}
