package conversation

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/kungukcm/Hospital-Booking-System/pkg/logging"
)

// Handler wires HTTP requests to the conversation service.
type Handler struct {
	service *Service
	logger  *logging.Logger
}

// NewHandler creates a conversation handler.
func NewHandler(service *Service, logger *logging.Logger) *Handler {
	if logger == nil {
		logger = logging.Default()
	}
	return &Handler{
		service: service,
		logger:  logger,
	}
}

// MessageRequest is the body of a message post.
type MessageRequest struct {
	Message string `json:"message"`
}

// Start handles POST /v1/conversations and opens a new conversation with the
// first message.
func (h *Handler) Start(w http.ResponseWriter, r *http.Request) {
	h.respond(w, r, "")
}

// Message handles POST /v1/conversations/{id}/messages.
func (h *Handler) Message(w http.ResponseWriter, r *http.Request) {
	h.respond(w, r, chi.URLParam(r, "id"))
}

// History handles GET /v1/conversations/{id}.
func (h *Handler) History(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	messages, err := h.service.History(r.Context(), id)
	if err != nil {
		if errors.Is(err, ErrConversationNotFound) {
			h.writeError(w, http.StatusNotFound, "conversation not found")
			return
		}
		h.logger.Error("failed to load conversation", "conversation_id", id, "error", err)
		h.writeError(w, http.StatusInternalServerError, "failed to load conversation")
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]any{
		"conversation_id": id,
		"messages":        messages,
	})
}

func (h *Handler) respond(w http.ResponseWriter, r *http.Request, conversationID string) {
	var req MessageRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.logger.Error("failed to decode message request", "error", err)
		h.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	reply, err := h.service.Respond(r.Context(), conversationID, req.Message)
	if err != nil {
		h.writeError(w, h.statusFor(err), h.messageFor(err))
		return
	}
	status := http.StatusOK
	if conversationID == "" {
		status = http.StatusCreated
	}
	h.writeJSON(w, status, reply)
}

func (h *Handler) statusFor(err error) int {
	switch {
	case errors.Is(err, ErrEmptyMessage):
		return http.StatusBadRequest
	case errors.Is(err, ErrConversationBusy):
		return http.StatusConflict
	case errors.Is(err, ErrTurnDeadline):
		return http.StatusGatewayTimeout
	case errors.Is(err, ErrIterationLimit), errors.Is(err, ErrModelFailure):
		return http.StatusBadGateway
	default:
		h.logger.Error("failed to process message", "error", err)
		return http.StatusInternalServerError
	}
}

func (h *Handler) messageFor(err error) string {
	switch {
	case errors.Is(err, ErrEmptyMessage):
		return "message is required"
	case errors.Is(err, ErrConversationBusy):
		return "another message in this conversation is still being answered"
	case errors.Is(err, ErrTurnDeadline):
		return "the assistant took too long to answer, please try again"
	case errors.Is(err, ErrIterationLimit), errors.Is(err, ErrModelFailure):
		return "the assistant could not complete this request, please try again"
	default:
		return "failed to process message"
	}
}

func (h *Handler) writeError(w http.ResponseWriter, status int, message string) {
	h.writeJSON(w, status, map[string]string{"error": message})
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		h.logger.Error("failed to write JSON response", "error", err)
	}
}
