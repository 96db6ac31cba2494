package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"slices"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"

	"stock-dashboard/config"
	"stock-dashboard/internal/app"
	"stock-dashboard/models"
	"stock-dashboard/observability"
	"stock-dashboard/templates"
	"stock-dashboard/templates/components"
	"stock-dashboard/templates/partials"
)

const maxBodyBytes = 1 << 16

// Handler handles HTTP API requests
type Handler struct {
	app *app.App
	cfg *config.Config
}

// NewHandler creates a new Handler
func NewHandler(application *app.App, cfg *config.Config) *Handler {
	return &Handler{app: application, cfg: cfg}
}

// HandleIndex serves the dashboard page using templ
func (h *Handler) HandleIndex(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := templates.Index(h.app.GetDashboardState(), h.app.NewsAPIKeyStatus()).Render(r.Context(), w); err != nil {
		observability.Error("failed to render index", "error", err)
	}
}

// HandleHealth returns the health status of the application
func (h *Handler) HandleHealth(w http.ResponseWriter, r *http.Request) {
	state := h.app.GetDashboardState()
	status := map[string]interface{}{
		"status": "ok",
		"refresh": map[string]interface{}{
			"state":        state.Status,
			"last_updated": state.LastUpdated,
			"last_error":   state.LastError,
		},
		"services": map[string]string{
			"market_data": h.cfg.MarketData.Provider,
			"newsapi":     "not_configured",
		},
	}
	if h.app.NewsAPIKeyStatus().IsConfigured {
		status["services"].(map[string]string)["newsapi"] = "configured"
	}

	// Add circuit breaker status
	cbStatus := h.app.BreakerStatus()
	status["circuit_breakers"] = cbStatus

	// Check if any breakers are open (degraded state)
	for _, cb := range cbStatus {
		if cb.State == "open" {
			status["status"] = "degraded"
			break
		}
	}
	if state.Status == models.StatusError {
		status["status"] = "degraded"
	}

	h.jsonResponse(w, status)
}

// HandleGetDashboard returns the current dashboard state
func (h *Handler) HandleGetDashboard(w http.ResponseWriter, r *http.Request) {
	state := h.app.GetDashboardState()

	if isHTMXRequest(r) {
		h.htmlResponse(w, partials.Dashboard(state), r)
		return
	}

	h.jsonResponse(w, state)
}

// HandleSetParameters replaces the dashboard parameters and triggers an
// immediate refresh
func (h *Handler) HandleSetParameters(w http.ResponseWriter, r *http.Request) {
	current := h.app.Parameters()

	var params models.Parameters
	var err error
	if strings.Contains(r.Header.Get("Content-Type"), "application/json") {
		params, err = decodeParametersJSON(r, current)
	} else {
		params, err = decodeParametersForm(r)
	}
	if err != nil {
		h.respondError(w, r, err.Error(), http.StatusBadRequest)
		return
	}

	applied, err := h.app.SetParameters(params)
	if err != nil {
		h.respondError(w, r, err.Error(), http.StatusBadRequest)
		return
	}

	if isHTMXRequest(r) {
		h.htmlResponse(w, partials.Dashboard(h.app.GetDashboardState()), r)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusAccepted)
	json.NewEncoder(w).Encode(ParametersResponse{Status: "accepted", Parameters: applied})
}

// HandleRefresh triggers a manual refresh
func (h *Handler) HandleRefresh(w http.ResponseWriter, r *http.Request) {
	seq := h.app.Refresh()

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusAccepted)
	json.NewEncoder(w).Encode(map[string]interface{}{"status": "refresh triggered", "sequence": seq})
}

// HandleGetNewsAPIKey returns the masked NewsAPI key
func (h *Handler) HandleGetNewsAPIKey(w http.ResponseWriter, r *http.Request) {
	status := h.app.NewsAPIKeyStatus()

	if isHTMXRequest(r) {
		h.htmlResponse(w, partials.NewsAPIKeyForm(status), r)
		return
	}

	h.jsonResponse(w, status)
}

// HandleSetNewsAPIKey stores an interactively entered NewsAPI key
func (h *Handler) HandleSetNewsAPIKey(w http.ResponseWriter, r *http.Request) {
	key, err := decodeAPIKey(r)
	if err != nil {
		h.respondError(w, r, err.Error(), http.StatusBadRequest)
		return
	}

	if err := h.app.SetNewsAPIKey(key); err != nil {
		h.respondError(w, r, err.Error(), http.StatusBadRequest)
		return
	}

	if isHTMXRequest(r) {
		h.htmlResponse(w, partials.NewsAPIKeyForm(h.app.NewsAPIKeyStatus()), r)
		return
	}

	h.jsonResponse(w, map[string]string{"status": "saved", "service": "newsapi"})
}

// HandleDeleteNewsAPIKey removes the NewsAPI key
func (h *Handler) HandleDeleteNewsAPIKey(w http.ResponseWriter, r *http.Request) {
	h.app.ClearNewsAPIKey()

	if isHTMXRequest(r) {
		h.htmlResponse(w, partials.NewsAPIKeyForm(h.app.NewsAPIKeyStatus()), r)
		return
	}

	h.jsonResponse(w, map[string]string{"status": "deleted", "service": "newsapi"})
}

// HandleTestNewsAPIKey validates the posted key, or the stored one when
// the body is empty
func (h *Handler) HandleTestNewsAPIKey(w http.ResponseWriter, r *http.Request) {
	key, err := decodeAPIKey(r)
	if err != nil && !errors.Is(err, errNoKey) {
		h.respondError(w, r, err.Error(), http.StatusBadRequest)
		return
	}

	if key == "" && !h.app.NewsAPIKeyStatus().IsConfigured {
		h.respondError(w, r, "Service not configured", http.StatusNotFound)
		return
	}

	result, err := h.app.TestNewsAPIKey(r.Context(), key)
	if err != nil {
		h.respondError(w, r, err.Error(), http.StatusInternalServerError)
		return
	}

	if isHTMXRequest(r) {
		kind := "success"
		if !result.Valid {
			kind = "error"
		}
		h.htmlResponse(w, components.Notice(kind, result.Message), r)
		return
	}

	h.jsonResponse(w, result)
}

// Helper functions

// isHTMXRequest checks if the request is from HTMX
func isHTMXRequest(r *http.Request) bool {
	return r.Header.Get("HX-Request") == "true"
}

// templComponent matches the templ.Component interface
type templComponent interface {
	Render(ctx context.Context, w io.Writer) error
}

// htmlResponse renders a templ component as HTML
func (h *Handler) htmlResponse(w http.ResponseWriter, component templComponent, r *http.Request) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := component.Render(r.Context(), w); err != nil {
		observability.Error("failed to render component", "path", r.URL.Path, "error", err)
	}
}

// htmlError renders an error state as HTML
func (h *Handler) htmlError(w http.ResponseWriter, message string, r *http.Request) {
	h.htmlResponse(w, components.ErrorState(message), r)
}

// respondError writes message as HTML for HTMX requests and JSON otherwise
func (h *Handler) respondError(w http.ResponseWriter, r *http.Request, message string, status int) {
	if isHTMXRequest(r) {
		h.htmlError(w, message, r)
		return
	}
	h.jsonError(w, message, status)
}

func (h *Handler) jsonResponse(w http.ResponseWriter, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(data)
}

func (h *Handler) jsonError(w http.ResponseWriter, message string, status int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{"error": message})
}

// SymbolList accepts either a JSON array of symbols or a single
// comma-separated string
type SymbolList []string

func (s *SymbolList) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) > 0 && data[0] == '"' {
		var raw string
		if err := json.Unmarshal(data, &raw); err != nil {
			return err
		}
		*s = strings.Split(raw, ",")
		return nil
	}
	var list []string
	if err := json.Unmarshal(data, &list); err != nil {
		return fmt.Errorf("symbols must be an array or a comma-separated string")
	}
	*s = list
	return nil
}

// AlertRequest represents the alert part of a parameters update. A zero
// threshold clears the alert.
type AlertRequest struct {
	Symbol    string          `json:"symbol"`
	Threshold decimal.Decimal `json:"threshold"`
}

// ParametersRequest represents a dashboard parameters update. Omitted
// fields keep their current values.
type ParametersRequest struct {
	Symbols       SymbolList    `json:"symbols"`
	Period        string        `json:"period,omitempty"`
	ShowVolume    *bool         `json:"show_volume,omitempty"`
	CompareMode   *bool         `json:"compare_mode,omitempty"`
	CompareMetric string        `json:"compare_metric,omitempty"`
	Alert         *AlertRequest `json:"alert,omitempty"`
}

// ParametersResponse is returned after parameters are accepted
type ParametersResponse struct {
	Status     string            `json:"status"`
	Parameters models.Parameters `json:"parameters"`
}

// APIKeyRequest represents an interactive API key entry
type APIKeyRequest struct {
	APIKey string `json:"api_key"`
}

func decodeParametersJSON(r *http.Request, current models.Parameters) (models.Parameters, error) {
	var req ParametersRequest
	if err := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes)).Decode(&req); err != nil {
		return models.Parameters{}, fmt.Errorf("invalid JSON request: %w", err)
	}

	params := current
	if req.Symbols != nil {
		params.Symbols = req.Symbols
	}
	if req.Period != "" {
		params.Period = models.Period(req.Period)
	}
	if req.ShowVolume != nil {
		params.ShowVolume = *req.ShowVolume
	}
	if req.CompareMode != nil {
		params.CompareMode = *req.CompareMode
	}
	if req.CompareMetric != "" {
		params.CompareMetric = models.CompareMetric(req.CompareMetric)
	}
	if req.Alert != nil {
		params.Alert = models.AlertRule{Symbol: req.Alert.Symbol, Threshold: req.Alert.Threshold}
	} else if req.Symbols != nil && !slices.Contains(models.NormalizeSymbols(req.Symbols), params.Alert.Symbol) {
		// a kept alert goes away with its symbol
		params.Alert = models.AlertRule{}
	}
	return params, nil
}

func decodeParametersForm(r *http.Request) (models.Parameters, error) {
	if err := r.ParseForm(); err != nil {
		return models.Parameters{}, errors.New("failed to parse form")
	}

	params := models.Parameters{
		Symbols:       strings.Split(r.FormValue("symbols"), ","),
		Period:        models.Period(r.FormValue("period")),
		ShowVolume:    formBool(r.FormValue("show_volume")),
		CompareMode:   formBool(r.FormValue("compare_mode")),
		CompareMetric: models.CompareMetric(r.FormValue("compare_metric")),
	}
	if raw := strings.TrimSpace(r.FormValue("alert_threshold")); raw != "" {
		threshold, err := decimal.NewFromString(raw)
		if err != nil {
			return models.Parameters{}, errors.New("alert price must be a number")
		}
		params.Alert = models.AlertRule{Symbol: r.FormValue("alert_symbol"), Threshold: threshold}
	}
	return params, nil
}

func formBool(v string) bool {
	b, _ := strconv.ParseBool(v)
	return b || v == "on"
}

var errNoKey = errors.New("API key is required")

func decodeAPIKey(r *http.Request) (string, error) {
	var key string
	if strings.Contains(r.Header.Get("Content-Type"), "application/json") {
		var req APIKeyRequest
		if err := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes)).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
			return "", errors.New("invalid JSON request")
		}
		key = req.APIKey
	} else {
		if err := r.ParseForm(); err != nil {
			return "", errors.New("failed to parse form")
		}
		key = r.FormValue("api_key")
	}

	key = strings.TrimSpace(key)
	if key == "" {
		return "", errNoKey
	}
	return key, nil
}
