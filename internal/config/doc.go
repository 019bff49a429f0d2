// Package config resolves the service configuration for a deployment mode.
// Each setting is taken from the first source that supplies it: environment
// variables, then the optional KEY=VALUE override file, then the defaults of
// the deployment mode, then the setting's own fallback. The merged draft is
// validated as a whole and either an immutable Config or an *Error listing
// every violation is returned.
package config
