package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/eugenenazirov/mcp-foundation/internal/config"
	"github.com/eugenenazirov/mcp-foundation/internal/storage"
)

type contextKey string

const requestIDContextKey contextKey = "requestID"

// ConfigHolder exposes the active configuration and manual reloads.
// *config.Holder satisfies it.
type ConfigHolder interface {
	Current() *config.Config
	Reload() (*config.Config, error)
}

// Handler serves diagnostics about the active configuration.
type Handler struct {
	holder ConfigHolder
	clock  func() time.Time
}

// HandlerOption configures Handler behaviour.
type HandlerOption func(*Handler)

// WithClock overrides the time source, primarily for tests.
func WithClock(clock func() time.Time) HandlerOption {
	return func(h *Handler) {
		h.clock = clock
	}
}

// NewHandler constructs a Handler reading from holder on every request.
func NewHandler(holder ConfigHolder, opts ...HandlerOption) *Handler {
	h := &Handler{
		holder: holder,
		clock: func() time.Time {
			return time.Now().UTC()
		},
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

func (h *Handler) handleGetConfig(w http.ResponseWriter, r *http.Request) {
	_ = r
	writeJSON(w, http.StatusOK, h.describe(h.holder.Current(), ""))
}

func (h *Handler) handleReload(w http.ResponseWriter, r *http.Request) {
	_ = r
	cfg, err := h.holder.Reload()
	if err == nil {
		writeJSON(w, http.StatusOK, h.describe(cfg, "Configuration reloaded"))
		return
	}

	if errors.Is(err, config.ErrReloadNotAllowed) {
		writeError(w, http.StatusConflict, "Reload not allowed", err.Error(),
			"update the deployment environment and restart the process")
		return
	}

	var cfgErr *config.Error
	if errors.As(err, &cfgErr) {
		resp := reloadFailedResponse{
			Error:      "Invalid configuration",
			Details:    "the active configuration was kept",
			Violations: make([]violationResponse, 0, len(cfgErr.Violations)),
		}
		for _, v := range cfgErr.Violations {
			resp.Violations = append(resp.Violations, violationResponse{
				Field:   v.Field,
				Kind:    v.Kind.String(),
				Message: v.Message,
			})
		}
		writeJSON(w, http.StatusUnprocessableEntity, resp)
		return
	}

	writeInternalError(w, err)
}

func (h *Handler) describe(cfg *config.Config, message string) configResponse {
	return configResponse{
		Config:      cfg.Snapshot(),
		Storage:     storage.SettingsFrom(cfg),
		HotReload:   cfg.HotReloadEnabled(),
		GeneratedAt: h.clock(),
		Message:     message,
	}
}

func requestIDFromContext(ctx context.Context) string {
	if v := ctx.Value(requestIDContextKey); v != nil {
		if id, ok := v.(string); ok {
			return id
		}
	}
	return ""
}

type configResponse struct {
	Config      config.Snapshot  `json:"config"`
	Storage     storage.Settings `json:"storage"`
	HotReload   bool             `json:"hotReload"`
	GeneratedAt time.Time        `json:"generatedAt"`
	Message     string           `json:"message,omitempty"`
}

type violationResponse struct {
	Field   string `json:"field"`
	Kind    string `json:"kind"`
	Message string `json:"message"`
}

type reloadFailedResponse struct {
	Error      string              `json:"error"`
	Details    string              `json:"details,omitempty"`
	Violations []violationResponse `json:"violations"`
}

type errorResponse struct {
	Error      string `json:"error"`
	Details    string `json:"details,omitempty"`
	Suggestion string `json:"suggestion,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	if status != 0 {
		w.WriteHeader(status)
	}
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, message, details, suggestion string) {
	writeJSON(w, status, errorResponse{
		Error:      message,
		Details:    details,
		Suggestion: suggestion,
	})
}

func writeInternalError(w http.ResponseWriter, err error) {
	writeError(w, http.StatusInternalServerError, "Internal error", err.Error(), "")
}
