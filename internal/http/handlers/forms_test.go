package handlers

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/kungukcm/Hospital-Booking-System/internal/appointments"
	"github.com/kungukcm/Hospital-Booking-System/internal/recommend"
	"github.com/kungukcm/Hospital-Booking-System/internal/scheduling"
	"github.com/kungukcm/Hospital-Booking-System/internal/tools"
	"github.com/kungukcm/Hospital-Booking-System/pkg/logging"
)

// Sunday 2026-10-18 08:00 UTC.
var fixedNow = time.Date(2026, time.October, 18, 8, 0, 0, 0, time.UTC)

func newTestFormsHandler(t *testing.T) *FormsHandler {
	t.Helper()
	clock := func() time.Time { return fixedNow }
	catalog := scheduling.DefaultCatalog()
	store := appointments.NewMemoryStore(1)
	extractor := scheduling.NewExtractor(catalog, scheduling.WithClock(clock), scheduling.WithHorizonDays(30))
	predictor, err := scheduling.NewPredictor(scheduling.DefaultTables(), catalog, scheduling.WithPredictorLogger(logging.Discard()))
	if err != nil {
		t.Fatalf("failed to build predictor: %v", err)
	}
	generator := recommend.NewGenerator(recommend.DefaultWorkingHours(), store, recommend.WithGeneratorClock(clock, time.UTC))
	ranker := recommend.NewRanker(extractor, predictor, generator, recommend.WithRankerLogger(logging.Discard()))

	registry, err := tools.NewRegistry(tools.NewHospital(ranker, store, 5).Tools(), tools.WithRegistryLogger(logging.Discard()))
	if err != nil {
		t.Fatalf("failed to build registry: %v", err)
	}
	executor := tools.NewExecutor(registry, tools.WithExecutorLogger(logging.Discard()))
	return NewFormsHandler(executor, logging.Discard())
}

func serve(h http.HandlerFunc, method, target, body string) *httptest.ResponseRecorder {
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, target, nil)
	} else {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	h(rec, req)
	return rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder, v any) {
	t.Helper()
	if err := json.NewDecoder(rec.Body).Decode(v); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
}

func TestRecommendationsForm(t *testing.T) {
	h := newTestFormsHandler(t)

	rec := serve(h.Recommendations, http.MethodPost, "/v1/recommendations",
		`{"appointment_type":"consultation","date":"2026-10-22","num_recommendations":2}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected status %d, got %d: %s", http.StatusOK, rec.Code, rec.Body.String())
	}
	var resp tools.SlotListPayload
	decode(t, rec, &resp)
	if len(resp.Slots) != 2 {
		t.Fatalf("expected 2 slots, got %d", len(resp.Slots))
	}
	if resp.Slots[0].Time != "16:00" || resp.Slots[0].WaitMinutes != 22 {
		t.Errorf("unexpected first slot %+v", resp.Slots[0])
	}
	if resp.Service != "consultation" {
		t.Errorf("expected service consultation, got %q", resp.Service)
	}
}

func TestFormErrors(t *testing.T) {
	h := newTestFormsHandler(t)

	cases := []struct {
		name    string
		handler http.HandlerFunc
		body    string
		status  int
		code    string
	}{
		{"malformed body", h.Recommendations, `[1,2]`, http.StatusBadRequest, tools.CodeInvalidArguments},
		{"empty body", h.Predictions, ``, http.StatusBadRequest, tools.CodeInvalidArguments},
		{"unknown service", h.Busiest, `{"appointment_type":"dentistry","date":"2026-10-22"}`, http.StatusBadRequest, tools.CodeInvalidArguments},
		{"past date", h.LeastBusy, `{"appointment_type":"checkup","date":"2026-10-01"}`, http.StatusBadRequest, tools.CodeInvalidInput},
		{"bad time", h.Alternatives, `{"appointment_type":"checkup","date":"2026-10-22","time":"noonish"}`, http.StatusBadRequest, tools.CodeInvalidInput},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rec := serve(tc.handler, http.MethodPost, "/v1/form", tc.body)
			if rec.Code != tc.status {
				t.Fatalf("expected status %d, got %d: %s", tc.status, rec.Code, rec.Body.String())
			}
			var resp errorBody
			decode(t, rec, &resp)
			if resp.Code != tc.code {
				t.Errorf("expected code %q, got %q", tc.code, resp.Code)
			}
			if resp.Error == "" {
				t.Errorf("expected error message")
			}
		})
	}
}

func TestPredictionAndSummaryForms(t *testing.T) {
	h := newTestFormsHandler(t)

	rec := serve(h.Predictions, http.MethodPost, "/v1/predictions",
		`{"appointment_type":"consultation","date":"2026-10-22","time":"16:00"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d: %s", rec.Code, rec.Body.String())
	}
	var view tools.SlotView
	decode(t, rec, &view)
	if view.WaitMinutes != 22 || view.Time != "16:00" {
		t.Errorf("unexpected prediction %+v", view)
	}

	rec = serve(h.DaySummary, http.MethodPost, "/v1/day-summary", `{"appointment_type":"consultation","date":"2026-10-22"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d: %s", rec.Code, rec.Body.String())
	}

	rec = serve(h.NextAvailable, http.MethodPost, "/v1/next-available", `{"appointment_type":"checkup"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d: %s", rec.Code, rec.Body.String())
	}
	decode(t, rec, &view)
	if view.Date != "2026-10-18" || view.Time != "09:00" {
		t.Errorf("expected next slot 2026-10-18 09:00, got %s %s", view.Date, view.Time)
	}
}

func TestAppointmentLifecycleForms(t *testing.T) {
	h := newTestFormsHandler(t)
	booking := `{"patient_name":"Amina Njeri","patient_phone":"+254700000001","appointment_type":"checkup","date":"2026-10-22","time":"10:30"}`

	rec := serve(h.BookAppointment, http.MethodPost, "/v1/appointments", booking)
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected status %d, got %d: %s", http.StatusCreated, rec.Code, rec.Body.String())
	}
	var booked tools.BookingPayload
	decode(t, rec, &booked)
	if booked.AppointmentID == "" || booked.Status != string(appointments.StatusConfirmed) {
		t.Fatalf("unexpected booking %+v", booked)
	}

	rec = serve(h.BookAppointment, http.MethodPost, "/v1/appointments", booking)
	if rec.Code != http.StatusConflict {
		t.Fatalf("expected status %d, got %d", http.StatusConflict, rec.Code)
	}

	rec = serve(h.ListAppointments, http.MethodGet, "/v1/appointments?date=2026-10-22&appointment_type=checkup", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d: %s", rec.Code, rec.Body.String())
	}
	var list struct {
		Appointments []tools.AppointmentView `json:"appointments"`
		Count        int                     `json:"count"`
	}
	decode(t, rec, &list)
	if list.Count != 1 || list.Appointments[0].PatientName != "Amina Njeri" {
		t.Fatalf("unexpected listing %+v", list)
	}

	rec = serve(h.CancelAppointment, http.MethodDelete, "/v1/appointments?date=2026-10-22&time=10:30", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d: %s", rec.Code, rec.Body.String())
	}
	rec = serve(h.CancelAppointment, http.MethodDelete, "/v1/appointments?date=2026-10-22&time=10:30", "")
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected status %d, got %d", http.StatusNotFound, rec.Code)
	}
}

func TestRescheduleStatsAndNextForms(t *testing.T) {
	h := newTestFormsHandler(t)

	rec := serve(h.NextAppointment, http.MethodGet, "/v1/appointments/next", "")
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected status %d with no bookings, got %d", http.StatusNotFound, rec.Code)
	}

	rec = serve(h.BookAppointment, http.MethodPost, "/v1/appointments",
		`{"patient_name":"Amina Njeri","appointment_type":"consultation","date":"2026-10-22","time":"09:00"}`)
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected status %d, got %d: %s", http.StatusCreated, rec.Code, rec.Body.String())
	}
	var booked tools.BookingPayload
	decode(t, rec, &booked)

	rec = serve(h.RescheduleAppointment, http.MethodPost, "/v1/appointments/reschedule",
		`{"appointment_id":"`+booked.AppointmentID+`","date":"2026-10-22","time":"16:00"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d: %s", rec.Code, rec.Body.String())
	}
	var moved tools.BookingPayload
	decode(t, rec, &moved)
	if moved.Slot.Time != "16:00" || moved.RescheduledFrom != "2026-10-22 09:00" {
		t.Errorf("unexpected reschedule %+v", moved)
	}

	rec = serve(h.RescheduleAppointment, http.MethodPost, "/v1/appointments/reschedule",
		`{"appointment_id":"missing","date":"2026-10-22","time":"16:00"}`)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected status %d, got %d", http.StatusNotFound, rec.Code)
	}

	rec = serve(h.AppointmentStats, http.MethodGet, "/v1/appointments/stats", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d: %s", rec.Code, rec.Body.String())
	}
	var stats tools.StatsPayload
	decode(t, rec, &stats)
	if stats.Confirmed != 1 || stats.Upcoming != 1 || stats.AverageWait != 22 {
		t.Errorf("unexpected stats %+v", stats)
	}

	rec = serve(h.NextAppointment, http.MethodGet, "/v1/appointments/next", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d: %s", rec.Code, rec.Body.String())
	}
	var next tools.AppointmentView
	decode(t, rec, &next)
	if next.ID != booked.AppointmentID || next.Time != "16:00" {
		t.Errorf("unexpected next appointment %+v", next)
	}

	rec = serve(h.CancelAppointment, http.MethodDelete, "/v1/appointments?appointment_id="+booked.AppointmentID, "")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d: %s", rec.Code, rec.Body.String())
	}
}

func TestStatusForCode(t *testing.T) {
	cases := map[string]int{
		tools.CodeInvalidArguments: http.StatusBadRequest,
		tools.CodeInvalidInput:     http.StatusBadRequest,
		tools.CodeConflict:         http.StatusConflict,
		tools.CodeNotFound:         http.StatusNotFound,
		tools.CodeTimeout:          http.StatusGatewayTimeout,
		tools.CodeCanceled:         http.StatusServiceUnavailable,
		tools.CodeUnknownTool:      http.StatusInternalServerError,
		tools.CodeInternal:         http.StatusInternalServerError,
	}
	for code, want := range cases {
		if got := StatusForCode(code); got != want {
			t.Errorf("StatusForCode(%q) = %d, want %d", code, got, want)
		}
	}
}
