// Package config serves the LLM provider switch used by the dashboard.
package config

import (
	"encoding/json"
	"net/http"

	"filing_qa/pkg/core/agent"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
)

type Response struct {
	ActiveProvider string   `json:"active_provider"`
	Available      []string `json:"available"`
}

type SwitchRequest struct {
	Provider string `json:"provider"`
}

type SwitchResponse struct {
	Success        bool   `json:"success"`
	ActiveProvider string `json:"active_provider,omitempty"`
	Error          string `json:"error,omitempty"`
}

// Handler holds dependencies for config endpoints
type Handler struct {
	AgentMgr *agent.Manager
	log      zerolog.Logger
}

// NewHandler creates a new config handler
func NewHandler(agentMgr *agent.Manager, log zerolog.Logger) *Handler {
	return &Handler{
		AgentMgr: agentMgr,
		log:      log.With().Str("component", "api.config").Logger(),
	}
}

// Routes registers GET /config and POST /config/switch on r.
func (h *Handler) Routes(r chi.Router) {
	r.Get("/config", h.HandleConfig)
	r.Post("/config/switch", h.HandleSwitch)
}

func (h *Handler) HandleConfig(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, http.StatusOK, Response{
		ActiveProvider: h.AgentMgr.GetActiveProvider(),
		Available:      h.AgentMgr.Available(),
	})
}

func (h *Handler) HandleSwitch(w http.ResponseWriter, r *http.Request) {
	var req SwitchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeJSON(w, http.StatusBadRequest, SwitchResponse{Error: "invalid request body"})
		return
	}

	if err := h.AgentMgr.SetGlobalProvider(req.Provider); err != nil {
		h.writeJSON(w, http.StatusBadRequest, SwitchResponse{Error: err.Error()})
		return
	}

	h.log.Info().Str("provider", req.Provider).Msg("Switched active provider")
	h.writeJSON(w, http.StatusOK, SwitchResponse{Success: true, ActiveProvider: req.Provider})
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.log.Error().Err(err).Msg("Failed to encode JSON response")
	}
}
