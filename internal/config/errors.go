package config

import (
	"errors"
	"fmt"

	"go.uber.org/multierr"
)

var (
	// ErrUnknownMode is returned when DEPLOYMENT_MODE matches no known mode.
	ErrUnknownMode = errors.New("unknown deployment mode")
	// ErrMissingRequired is returned when no source supplied a required field.
	ErrMissingRequired = errors.New("missing required configuration")
	// ErrInvalidValue is returned when a value cannot be coerced or is malformed.
	ErrInvalidValue = errors.New("invalid configuration value")
	// ErrModeMismatch is returned when a value contradicts the deployment mode.
	ErrModeMismatch = errors.New("configuration does not match deployment mode")
	// ErrOutOfRange is returned when a numeric value violates its bounds.
	ErrOutOfRange = errors.New("configuration value out of range")
	// ErrReloadNotAllowed is returned when a hot reload is requested outside
	// the local mode category.
	ErrReloadNotAllowed = errors.New("hot reload is only available in local modes")
)

// Kind classifies a configuration violation.
type Kind int

const (
	KindUnknownMode Kind = iota + 1
	KindMissingRequired
	KindInvalidValue
	KindModeMismatch
	KindOutOfRange
)

func (k Kind) String() string {
	switch k {
	case KindUnknownMode:
		return "UnknownMode"
	case KindMissingRequired:
		return "MissingRequiredConfig"
	case KindInvalidValue:
		return "InvalidConfigValue"
	case KindModeMismatch:
		return "ModeMismatch"
	case KindOutOfRange:
		return "OutOfRangeValue"
	default:
		return "Unknown"
	}
}

func (k Kind) sentinel() error {
	switch k {
	case KindUnknownMode:
		return ErrUnknownMode
	case KindMissingRequired:
		return ErrMissingRequired
	case KindInvalidValue:
		return ErrInvalidValue
	case KindModeMismatch:
		return ErrModeMismatch
	case KindOutOfRange:
		return ErrOutOfRange
	default:
		return nil
	}
}

// Violation is a single problem found during a resolution pass.
type Violation struct {
	Field    string
	Kind     Kind
	Message  string
	Raw      string
	Expected string
}

func (v Violation) Error() string {
	return fmt.Sprintf("%s: %s: %s", v.Field, v.Kind, v.Message)
}

// Is lets errors.Is match a violation against its kind sentinel.
func (v Violation) Is(target error) bool {
	return target != nil && target == v.Kind.sentinel()
}

// Error aggregates every violation of a failed resolution pass.
type Error struct {
	Violations []Violation
}

func (e *Error) Error() string {
	return "invalid configuration: " + multierr.Combine(e.Unwrap()...).Error()
}

// Unwrap exposes each violation to errors.Is and errors.As.
func (e *Error) Unwrap() []error {
	errs := make([]error, len(e.Violations))
	for i, v := range e.Violations {
		errs[i] = v
	}
	return errs
}

// Has reports whether any violation of kind was recorded for field.
// An empty field matches every field.
func (e *Error) Has(field string, kind Kind) bool {
	for _, v := range e.Violations {
		if v.Kind == kind && (field == "" || v.Field == field) {
			return true
		}
	}
	return false
}

// violations collects problems without stopping the pipeline.
type violations struct {
	list   []Violation
	failed map[string]bool
}

func (vs *violations) add(v Violation) {
	if vs.failed == nil {
		vs.failed = make(map[string]bool)
	}
	vs.failed[v.Field] = true
	vs.list = append(vs.list, v)
}

func (vs *violations) missing(field, key string) {
	vs.add(Violation{
		Field:   field,
		Kind:    KindMissingRequired,
		Message: fmt.Sprintf("%s is required but no source supplied it", key),
	})
}

func (vs *violations) invalid(field, raw, expected string) {
	vs.add(Violation{
		Field:    field,
		Kind:     KindInvalidValue,
		Message:  fmt.Sprintf("cannot use %q as %s", raw, expected),
		Raw:      raw,
		Expected: expected,
	})
}

func (vs *violations) invalidf(field, raw, format string, args ...any) {
	vs.add(Violation{
		Field:   field,
		Kind:    KindInvalidValue,
		Message: fmt.Sprintf(format, args...),
		Raw:     raw,
	})
}

func (vs *violations) mismatch(field, format string, args ...any) {
	vs.add(Violation{
		Field:   field,
		Kind:    KindModeMismatch,
		Message: fmt.Sprintf(format, args...),
	})
}

func (vs *violations) outOfRange(field string, value any, format string, args ...any) {
	vs.add(Violation{
		Field:   field,
		Kind:    KindOutOfRange,
		Message: fmt.Sprintf(format, args...),
		Raw:     fmt.Sprint(value),
	})
}

func (vs *violations) hasFailed(field string) bool {
	return vs.failed[field]
}

func (vs *violations) err() error {
	if len(vs.list) == 0 {
		return nil
	}
	return &Error{Violations: vs.list}
}
