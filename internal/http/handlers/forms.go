package handlers

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/kungukcm/Hospital-Booking-System/internal/tools"
	"github.com/kungukcm/Hospital-Booking-System/pkg/logging"
)

const maxFormBody = 64 << 10

// FormsHandler serves the web form endpoints. Every endpoint runs the same
// tool the chat assistant calls, so both surfaces answer identically.
type FormsHandler struct {
	executor *tools.Executor
	logger   *logging.Logger
}

func NewFormsHandler(executor *tools.Executor, logger *logging.Logger) *FormsHandler {
	if executor == nil {
		panic("handlers: tool executor cannot be nil")
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &FormsHandler{executor: executor, logger: logger}
}

// Recommendations handles POST /v1/recommendations.
func (h *FormsHandler) Recommendations(w http.ResponseWriter, r *http.Request) {
	h.fromBody(w, r, tools.ToolRecommendSlots, http.StatusOK)
}

// Predictions handles POST /v1/predictions.
func (h *FormsHandler) Predictions(w http.ResponseWriter, r *http.Request) {
	h.fromBody(w, r, tools.ToolPredictWaitTime, http.StatusOK)
}

func (h *FormsHandler) Busiest(w http.ResponseWriter, r *http.Request) {
	h.fromBody(w, r, tools.ToolBusiestTimes, http.StatusOK)
}

func (h *FormsHandler) LeastBusy(w http.ResponseWriter, r *http.Request) {
	h.fromBody(w, r, tools.ToolLeastBusyTimes, http.StatusOK)
}

func (h *FormsHandler) Alternatives(w http.ResponseWriter, r *http.Request) {
	h.fromBody(w, r, tools.ToolSuggestAlternatives, http.StatusOK)
}

func (h *FormsHandler) NextAvailable(w http.ResponseWriter, r *http.Request) {
	h.fromBody(w, r, tools.ToolNextAvailableSlot, http.StatusOK)
}

func (h *FormsHandler) DaySummary(w http.ResponseWriter, r *http.Request) {
	h.fromBody(w, r, tools.ToolDaySummary, http.StatusOK)
}

// BookAppointment handles POST /v1/appointments.
func (h *FormsHandler) BookAppointment(w http.ResponseWriter, r *http.Request) {
	h.fromBody(w, r, tools.ToolBookAppointment, http.StatusCreated)
}

// CancelAppointment handles DELETE /v1/appointments with either
// appointment_id or date and time, plus an optional patient_name.
func (h *FormsHandler) CancelAppointment(w http.ResponseWriter, r *http.Request) {
	h.run(w, r, tools.ToolCancelAppointment, queryArgs(r), http.StatusOK)
}

// RescheduleAppointment handles POST /v1/appointments/reschedule.
func (h *FormsHandler) RescheduleAppointment(w http.ResponseWriter, r *http.Request) {
	h.fromBody(w, r, tools.ToolRescheduleAppointment, http.StatusOK)
}

func (h *FormsHandler) AppointmentStats(w http.ResponseWriter, r *http.Request) {
	h.run(w, r, tools.ToolAppointmentStats, map[string]any{}, http.StatusOK)
}

func (h *FormsHandler) NextAppointment(w http.ResponseWriter, r *http.Request) {
	h.run(w, r, tools.ToolNextAppointment, map[string]any{}, http.StatusOK)
}

// ListAppointments handles GET /v1/appointments with optional date,
// appointment_type, status and limit filters.
func (h *FormsHandler) ListAppointments(w http.ResponseWriter, r *http.Request) {
	h.run(w, r, tools.ToolListAppointments, queryArgs(r), http.StatusOK)
}

func (h *FormsHandler) fromBody(w http.ResponseWriter, r *http.Request, tool string, okStatus int) {
	args, err := decodeArgs(w, r)
	if err != nil {
		writeError(w, http.StatusBadRequest, tools.CodeInvalidArguments, err.Error())
		return
	}
	h.run(w, r, tool, args, okStatus)
}

func (h *FormsHandler) run(w http.ResponseWriter, r *http.Request, tool string, args map[string]any, okStatus int) {
	res := h.executor.ExecuteBatch(r.Context(), []tools.Request{{Name: tool, Arguments: args}})[0]
	if res.OK() {
		writeJSON(w, okStatus, res.Payload)
		return
	}
	status := StatusForCode(res.Error.Code)
	if status >= http.StatusInternalServerError {
		h.logger.Error("form request failed", "tool", tool, "code", res.Error.Code, "message", res.Error.Message)
	}
	writeError(w, status, res.Error.Code, res.Error.Message)
}

// StatusForCode maps a tool error code to an HTTP status.
func StatusForCode(code string) int {
	switch code {
	case tools.CodeInvalidArguments, tools.CodeInvalidInput:
		return http.StatusBadRequest
	case tools.CodeConflict:
		return http.StatusConflict
	case tools.CodeNotFound:
		return http.StatusNotFound
	case tools.CodeTimeout:
		return http.StatusGatewayTimeout
	case tools.CodeCanceled:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// decodeArgs reads a JSON object body. An empty body yields no arguments so
// that required-field errors come from the tool itself.
func decodeArgs(w http.ResponseWriter, r *http.Request) (map[string]any, error) {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxFormBody))
	dec.UseNumber()
	args := map[string]any{}
	if err := dec.Decode(&args); err != nil {
		if errors.Is(err, io.EOF) {
			return map[string]any{}, nil
		}
		return nil, errors.New("request body must be a JSON object")
	}
	return args, nil
}

func queryArgs(r *http.Request) map[string]any {
	q := r.URL.Query()
	args := make(map[string]any, len(q))
	for key := range q {
		if v := strings.TrimSpace(q.Get(key)); v != "" {
			args[key] = v
		}
	}
	return args
}

type errorBody struct {
	Error string `json:"error"`
	Code  string `json:"code,omitempty"`
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, errorBody{Error: message, Code: code})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
