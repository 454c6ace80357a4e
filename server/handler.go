// Package server exposes the retention advisor over HTTP.
package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	advisorx "github.com/tanpawarit/anti-churn-agent/agent/agents/advisor"
	contractx "github.com/tanpawarit/anti-churn-agent/agent/contract"
)

// Handler serves the chat and session endpoints.
type Handler struct {
	advisor *advisorx.Advisor
}

func NewHandler(advisor *advisorx.Advisor) *Handler {
	return &Handler{advisor: advisor}
}

// RegisterRoutes registers the advisor routes.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/api", func(r chi.Router) {
		r.Post("/chat", h.Chat)
		r.Get("/sessions/{sessionID}/summary", h.Summary)
		r.Delete("/sessions/{sessionID}", h.ClearSession)
		r.Get("/customers/high-risk", h.HighRiskCustomers)
	})
}

type chatRequest struct {
	SessionID string `json:"session_id,omitempty"`
	Message   string `json:"message"`
}

type chatResponse struct {
	SessionID string `json:"session_id"`
	Reply     string `json:"reply"`
	Feedback  string `json:"feedback,omitempty"`
	Score     int    `json:"score"`
	Attempts  int    `json:"attempts"`
	Augmented bool   `json:"augmented"`
	Persisted bool   `json:"persisted"`
}

// Chat answers one retention question. A missing session id starts a new
// session.
func (h *Handler) Chat(w http.ResponseWriter, r *http.Request) {
	var req chatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		Error(w, http.StatusBadRequest, "invalid request body")
		return
	}

	sessionID := strings.TrimSpace(req.SessionID)
	if sessionID == "" {
		sessionID = uuid.NewString()
	}

	reply, err := h.advisor.HandleQuery(r.Context(), sessionID, req.Message)
	if err != nil {
		writeAdvisorError(w, err)
		return
	}

	JSON(w, http.StatusOK, chatResponse{
		SessionID: reply.SessionID,
		Reply:     reply.Reply,
		Feedback:  reply.Feedback,
		Score:     reply.Score,
		Attempts:  reply.Attempts,
		Augmented: reply.Augmented,
		Persisted: reply.Persisted,
	})
}

type summaryResponse struct {
	SessionID string `json:"session_id"`
	Summary   string `json:"summary"`
}

func (h *Handler) Summary(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "sessionID")

	summary, err := h.advisor.Summary(r.Context(), sessionID)
	if err != nil {
		writeAdvisorError(w, err)
		return
	}
	JSON(w, http.StatusOK, summaryResponse{SessionID: sessionID, Summary: summary})
}

func (h *Handler) ClearSession(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "sessionID")

	if err := h.advisor.ClearSession(r.Context(), sessionID); err != nil {
		writeAdvisorError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

const defaultHighRiskThreshold = 0.70

type highRiskCustomer struct {
	CustomerID     string  `json:"customer_id"`
	Name           string  `json:"name"`
	Industry       string  `json:"industry"`
	ChurnRiskScore float64 `json:"churn_risk_score"`
	RenewalDate    string  `json:"renewal_date,omitempty"`
	AccountManager string  `json:"account_manager,omitempty"`
}

// HighRiskCustomers lists customers at or above the risk threshold. The
// threshold query parameter overrides the default.
func (h *Handler) HighRiskCustomers(w http.ResponseWriter, r *http.Request) {
	threshold := defaultHighRiskThreshold
	if raw := strings.TrimSpace(r.URL.Query().Get("threshold")); raw != "" {
		parsed, err := strconv.ParseFloat(raw, 64)
		if err != nil || parsed < 0 || parsed > 1 {
			Error(w, http.StatusBadRequest, "threshold must be a number in [0,1]")
			return
		}
		threshold = parsed
	}

	profiles, err := h.advisor.HighRiskCustomers(threshold)
	if err != nil {
		log.Error().Err(err).Msg("failed to list high-risk customers")
		Error(w, http.StatusInternalServerError, "failed to list high-risk customers")
		return
	}

	out := make([]highRiskCustomer, 0, len(profiles))
	for _, p := range profiles {
		out = append(out, highRiskCustomer{
			CustomerID:     p.CustomerID,
			Name:           p.Name,
			Industry:       p.Industry,
			ChurnRiskScore: p.ChurnRiskScore,
			RenewalDate:    p.RenewalDate,
			AccountManager: p.AccountManager,
		})
	}
	JSON(w, http.StatusOK, map[string]any{"customers": out, "threshold": threshold})
}

// JSON writes a JSON response with the given status code.
func JSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		http.Error(w, `{"error": "failed to encode response"}`, http.StatusInternalServerError)
	}
}

// Error writes a JSON error response.
func Error(w http.ResponseWriter, status int, message string) {
	JSON(w, status, map[string]string{"error": message})
}

func writeAdvisorError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, contractx.ErrInvalidSession), errors.Is(err, contractx.ErrInvalidQuery):
		Error(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, contractx.ErrGenerationUnavailable),
		errors.Is(err, contractx.ErrEvaluationUnavailable),
		errors.Is(err, contractx.ErrMemoryUnavailable):
		Error(w, http.StatusServiceUnavailable, err.Error())
	case errors.Is(err, contractx.ErrMalformedEvaluation):
		Error(w, http.StatusBadGateway, err.Error())
	default:
		log.Error().Err(err).Msg("unhandled advisor error")
		Error(w, http.StatusInternalServerError, "internal error")
	}
}
