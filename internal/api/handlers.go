package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"blackout.chat/config"
	"blackout.chat/internal/crypto"
	"blackout.chat/internal/detector"
	"blackout.chat/internal/protect"
	"blackout.chat/internal/store"

	"github.com/go-chi/chi/v5"
)

type Handler struct {
	engine *protect.Engine
	config *config.Config
	logger *slog.Logger
}

func NewHandler(e *protect.Engine, cfg *config.Config, logger *slog.Logger) *Handler {
	return &Handler{
		engine: e,
		config: cfg,
		logger: logger,
	}
}

type ScanRequest struct {
	Text          string `json:"text"`
	OriginChannel string `json:"origin_channel"`
	OriginSender  string `json:"origin_sender"`
}

type ScanResponse struct {
	Detected   bool                `json:"detected"`
	Categories []detector.Category `json:"categories,omitempty"`
	SessionID  string              `json:"session_id,omitempty"`
}

type CreateRequest struct {
	SessionID string `json:"session_id"`
	Question  string `json:"question"`
	Answer    string `json:"answer"`
}

type CreateResponse struct {
	Handle    string    `json:"handle"`
	ExpiresAt time.Time `json:"expires_at"`
}

type ChallengeResponse struct {
	Handle   string `json:"handle"`
	Question string `json:"question"`
}

type AnswerRequest struct {
	Answer string `json:"answer"`
}

type AnswerResponse struct {
	Revealed     bool   `json:"revealed"`
	Content      string `json:"content,omitempty"`
	AttemptsLeft *int   `json:"attempts_left,omitempty"`
}

type StatusResponse struct {
	Handle    string     `json:"handle"`
	Exists    bool       `json:"exists"`
	Locked    bool       `json:"locked,omitempty"`
	Revealed  bool       `json:"revealed,omitempty"`
	Expired   bool       `json:"expired,omitempty"`
	ExpiresAt *time.Time `json:"expires_at,omitempty"`
}

type ErrorResponse struct {
	Error string `json:"error"`
}

func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	h.json(w, http.StatusOK, map[string]string{"status": "ok"})
}

// ScanMessage classifies produced content and, when flagged, stages it for
// the protection flow. Clean or empty text is a negative result, never an
// error.
func (h *Handler) ScanMessage(w http.ResponseWriter, r *http.Request) {
	var req ScanRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.error(w, http.StatusBadRequest, "invalid request body")
		return
	}

	res := h.engine.Scan(req.Text, req.OriginChannel, req.OriginSender)
	if res == nil {
		h.json(w, http.StatusOK, ScanResponse{Detected: false})
		return
	}

	sessionID := h.engine.Stage(req.Text, req.OriginChannel, req.OriginSender)
	h.json(w, http.StatusOK, ScanResponse{
		Detected:   true,
		Categories: res.Categories,
		SessionID:  sessionID,
	})
}

func (h *Handler) CreateProtected(w http.ResponseWriter, r *http.Request) {
	var req CreateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.error(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.SessionID == "" || req.Question == "" || req.Answer == "" {
		h.error(w, http.StatusBadRequest, "session_id, question and answer are required")
		return
	}

	msg, err := h.engine.CreateProtected(r.Context(), req.SessionID, req.Question, req.Answer)
	if err != nil {
		h.handleEngineError(w, err)
		return
	}

	h.json(w, http.StatusCreated, CreateResponse{
		Handle:    msg.Handle,
		ExpiresAt: msg.ExpiresAt,
	})
}

func (h *Handler) GetChallenge(w http.ResponseWriter, r *http.Request) {
	handle := chi.URLParam(r, "handle")

	question, err := h.engine.GetChallenge(r.Context(), handle)
	if err != nil {
		h.handleEngineError(w, err)
		return
	}

	h.json(w, http.StatusOK, ChallengeResponse{Handle: handle, Question: question})
}

func (h *Handler) SubmitAnswer(w http.ResponseWriter, r *http.Request) {
	handle := chi.URLParam(r, "handle")

	var req AnswerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.error(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Answer == "" {
		h.error(w, http.StatusBadRequest, "answer is required")
		return
	}

	outcome, err := h.engine.SubmitAnswer(r.Context(), handle, req.Answer)
	if err != nil {
		h.handleEngineError(w, err)
		return
	}

	if outcome.Revealed {
		h.json(w, http.StatusOK, AnswerResponse{Revealed: true, Content: outcome.Content})
		return
	}
	left := outcome.AttemptsLeft
	h.json(w, http.StatusOK, AnswerResponse{Revealed: false, AttemptsLeft: &left})
}

func (h *Handler) GetStatus(w http.ResponseWriter, r *http.Request) {
	handle := chi.URLParam(r, "handle")

	status, err := h.engine.Status(r.Context(), handle)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			h.json(w, http.StatusOK, StatusResponse{Handle: handle, Exists: false})
			return
		}
		h.handleEngineError(w, err)
		return
	}

	h.json(w, http.StatusOK, StatusResponse{
		Handle:    status.Handle,
		Exists:    true,
		Locked:    status.Locked,
		Revealed:  status.Revealed,
		Expired:   status.Expired,
		ExpiresAt: &status.ExpiresAt,
	})
}

func (h *Handler) json(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func (h *Handler) error(w http.ResponseWriter, status int, message string) {
	h.json(w, status, ErrorResponse{Error: message})
}

func (h *Handler) handleEngineError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, store.ErrNotFound):
		h.error(w, http.StatusNotFound, "message not found")
	case errors.Is(err, protect.ErrLocked):
		h.error(w, http.StatusLocked, "too many attempts, message locked")
	case errors.Is(err, protect.ErrSessionExpired):
		h.error(w, http.StatusGone, "session expired")
	case errors.Is(err, crypto.ErrDecrypt):
		h.error(w, http.StatusInternalServerError, "decryption failed")
	default:
		h.logger.Error("internal error", "err", err)
		h.error(w, http.StatusInternalServerError, "internal error")
	}
}
