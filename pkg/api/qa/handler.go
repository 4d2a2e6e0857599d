// Package qa exposes the ask pipeline and conversation management over HTTP.
package qa

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"filing_qa/pkg/core/conversation"
	"filing_qa/pkg/core/filing"
	coreQA "filing_qa/pkg/core/qa"
	"filing_qa/pkg/core/ticker"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"
)

// Service is the subset of *coreQA.Orchestrator the handlers call.
type Service interface {
	Ask(ctx context.Context, req coreQA.AskRequest) (*coreQA.AskResult, error)
	Conversations(ctx context.Context, userID int64, limit int) ([]conversation.Summary, error)
	Messages(ctx context.Context, conversationID, userID int64) ([]conversation.Message, error)
	Rename(ctx context.Context, conversationID, userID int64, title string) error
	Delete(ctx context.Context, conversationID, userID int64) error
}

var _ Service = (*coreQA.Orchestrator)(nil)

// AskRequest is the POST /api/ask body.
type AskRequest struct {
	Question          string  `json:"question" validate:"required,max=4000"`
	ConversationID    *int64  `json:"conversation_id,omitempty" validate:"omitempty,gt=0"`
	ConversationTitle string  `json:"conversation_title,omitempty" validate:"max=200"`
	Source            string  `json:"source,omitempty" validate:"omitempty,oneof=raw summaries scoped"`
	FilingIDs         []int64 `json:"filing_ids,omitempty" validate:"omitempty,max=50,dive,gt=0"`
}

// AskResponse is the ask envelope. Failures carry success=false and a
// user-facing error message.
type AskResponse struct {
	Success        bool   `json:"success"`
	Answer         string `json:"answer,omitempty"`
	ConversationID int64  `json:"conversation_id,omitempty"`
	QuestionID     int64  `json:"question_id,omitempty"`
	IsCached       bool   `json:"is_cached"`
	Ticker         string `json:"ticker,omitempty"`
	Grounded       bool   `json:"grounded,omitempty"`
	DownloadTicket string `json:"download_ticket,omitempty"`
	RequestID      string `json:"request_id,omitempty"`
	Error          string `json:"error,omitempty"`
}

// RenameRequest is the PUT /api/conversations/{id}/title body.
type RenameRequest struct {
	Title string `json:"title" validate:"required,max=200"`
}

// Response wraps the non-ask endpoints.
type Response struct {
	Success bool   `json:"success"`
	Data    any    `json:"data,omitempty"`
	Error   string `json:"error,omitempty"`
}

// Handler holds dependencies for the question-answering endpoints
type Handler struct {
	svc      Service
	validate *validator.Validate
	log      zerolog.Logger
}

// NewHandler creates a new question-answering handler
func NewHandler(svc Service, log zerolog.Logger) *Handler {
	return &Handler{
		svc:      svc,
		validate: validator.New(),
		log:      log.With().Str("component", "api.qa").Logger(),
	}
}

// Routes registers the endpoints on r. Every route requires X-User-ID.
func (h *Handler) Routes(r chi.Router) {
	r.Group(func(r chi.Router) {
		r.Use(h.RequireUser)
		r.Post("/ask", h.HandleAsk)
		r.Get("/conversations", h.HandleListConversations)
		r.Get("/conversations/{id}/messages", h.HandleMessages)
		r.Put("/conversations/{id}/title", h.HandleRename)
		r.Delete("/conversations/{id}", h.HandleDelete)
	})
}

func (h *Handler) HandleAsk(w http.ResponseWriter, r *http.Request) {
	userID := UserID(r.Context())

	var req AskRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeJSON(w, http.StatusBadRequest, AskResponse{Error: "invalid request body"})
		return
	}
	if err := h.validate.Struct(req); err != nil {
		h.writeJSON(w, http.StatusBadRequest, AskResponse{Error: validationMessage(err)})
		return
	}

	res, err := h.svc.Ask(r.Context(), coreQA.AskRequest{
		UserID:            userID,
		Question:          req.Question,
		ConversationID:    req.ConversationID,
		ConversationTitle: req.ConversationTitle,
		Source:            filing.ContextSource(req.Source),
		FilingIDs:         req.FilingIDs,
	})
	if err != nil {
		status, msg := h.classify(err)
		h.writeJSON(w, status, AskResponse{Error: msg})
		return
	}

	h.writeJSON(w, http.StatusOK, AskResponse{
		Success:        true,
		Answer:         res.Answer,
		ConversationID: res.ConversationID,
		QuestionID:     res.QuestionID,
		IsCached:       res.IsCached,
		Ticker:         res.Ticker,
		Grounded:       res.Grounded,
		DownloadTicket: res.DownloadTicket,
		RequestID:      res.RequestID,
	})
}

func (h *Handler) HandleListConversations(w http.ResponseWriter, r *http.Request) {
	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 || n > 100 {
			h.writeError(w, http.StatusBadRequest, "limit must be between 1 and 100")
			return
		}
		limit = n
	}

	list, err := h.svc.Conversations(r.Context(), UserID(r.Context()), limit)
	if err != nil {
		status, msg := h.classify(err)
		h.writeError(w, status, msg)
		return
	}
	if list == nil {
		list = []conversation.Summary{}
	}
	h.writeJSON(w, http.StatusOK, Response{Success: true, Data: list})
}

func (h *Handler) HandleMessages(w http.ResponseWriter, r *http.Request) {
	id, ok := h.conversationID(w, r)
	if !ok {
		return
	}
	msgs, err := h.svc.Messages(r.Context(), id, UserID(r.Context()))
	if err != nil {
		status, msg := h.classify(err)
		h.writeError(w, status, msg)
		return
	}
	if msgs == nil {
		msgs = []conversation.Message{}
	}
	h.writeJSON(w, http.StatusOK, Response{Success: true, Data: msgs})
}

func (h *Handler) HandleRename(w http.ResponseWriter, r *http.Request) {
	id, ok := h.conversationID(w, r)
	if !ok {
		return
	}
	var req RenameRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := h.validate.Struct(req); err != nil {
		h.writeError(w, http.StatusBadRequest, validationMessage(err))
		return
	}
	if err := h.svc.Rename(r.Context(), id, UserID(r.Context()), req.Title); err != nil {
		status, msg := h.classify(err)
		h.writeError(w, status, msg)
		return
	}
	h.writeJSON(w, http.StatusOK, Response{Success: true})
}

func (h *Handler) HandleDelete(w http.ResponseWriter, r *http.Request) {
	id, ok := h.conversationID(w, r)
	if !ok {
		return
	}
	if err := h.svc.Delete(r.Context(), id, UserID(r.Context())); err != nil {
		status, msg := h.classify(err)
		h.writeError(w, status, msg)
		return
	}
	h.writeJSON(w, http.StatusOK, Response{Success: true})
}

func (h *Handler) conversationID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		h.writeError(w, http.StatusBadRequest, "invalid conversation id")
		return 0, false
	}
	return id, true
}

// classify maps an orchestrator error to a status and a user-facing message.
// Store failures are logged in full and shown generically.
func (h *Handler) classify(err error) (int, string) {
	switch {
	case errors.Is(err, ticker.ErrEmptyQuestion),
		errors.Is(err, ticker.ErrInvalidQuestionFormat),
		errors.Is(err, coreQA.ErrInvalidSource),
		errors.Is(err, coreQA.ErrMissingFilingIDs),
		errors.Is(err, coreQA.ErrEmptyTitle):
		return http.StatusBadRequest, err.Error()
	case errors.Is(err, conversation.ErrNotFoundOrForbidden):
		return http.StatusNotFound, "conversation not found"
	case errors.Is(err, coreQA.ErrAnalysisUnavailable):
		return http.StatusServiceUnavailable, "analysis service temporarily unavailable, please try again"
	default:
		h.log.Error().Err(err).Msg("request failed")
		return http.StatusInternalServerError, "system error, try again later"
	}
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.log.Error().Err(err).Msg("Failed to encode JSON response")
	}
}

func (h *Handler) writeError(w http.ResponseWriter, status int, message string) {
	h.writeJSON(w, status, Response{Error: message})
}

func validationMessage(err error) string {
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) && len(verrs) > 0 {
		fe := verrs[0]
		return "invalid field " + fe.Field() + ": failed " + fe.Tag()
	}
	return "invalid request"
}
