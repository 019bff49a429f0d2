// Package application provides application initialization and dependency wiring.
// It builds the configuration holder, reload metrics, diagnostics router and
// HTTP server from a resolved configuration, and owns the override-file
// watcher that drives hot reloads in local modes. The main package is left
// with CLI parsing, the startup contract and orchestration.
package application
