package tools

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"cloud.google.com/go/civil"

	"github.com/kungukcm/Hospital-Booking-System/internal/appointments"
	"github.com/kungukcm/Hospital-Booking-System/internal/recommend"
	"github.com/kungukcm/Hospital-Booking-System/internal/scheduling"
)

// Names of the hospital tools.
const (
	ToolRecommendSlots        = "recommend_slots"
	ToolPredictWaitTime       = "predict_wait_time"
	ToolBusiestTimes          = "busiest_times"
	ToolLeastBusyTimes        = "least_busy_times"
	ToolSuggestAlternatives   = "suggest_alternatives"
	ToolNextAvailableSlot     = "next_available_slot"
	ToolDaySummary            = "day_summary"
	ToolBookAppointment       = "book_appointment"
	ToolCancelAppointment     = "cancel_appointment"
	ToolRescheduleAppointment = "reschedule_appointment"
	ToolListAppointments      = "list_appointments"
	ToolAppointmentStats      = "appointment_stats"
	ToolNextAppointment       = "next_appointment"
)

// HospitalToolNames lists every tool the assistant is expected to have.
var HospitalToolNames = []string{
	ToolRecommendSlots,
	ToolPredictWaitTime,
	ToolBusiestTimes,
	ToolLeastBusyTimes,
	ToolSuggestAlternatives,
	ToolNextAvailableSlot,
	ToolDaySummary,
	ToolBookAppointment,
	ToolCancelAppointment,
	ToolRescheduleAppointment,
	ToolListAppointments,
	ToolAppointmentStats,
	ToolNextAppointment,
}

// Hospital binds the tools to the ranker and the appointment store.
type Hospital struct {
	ranker           *recommend.Ranker
	store            appointments.Store
	defaultK         int
	defaultListLimit int
}

func NewHospital(ranker *recommend.Ranker, store appointments.Store, defaultK int) *Hospital {
	if ranker == nil {
		panic("tools: ranker cannot be nil")
	}
	if store == nil {
		panic("tools: appointment store cannot be nil")
	}
	if defaultK <= 0 {
		defaultK = 5
	}
	return &Hospital{ranker: ranker, store: store, defaultK: defaultK, defaultListLimit: 20}
}

// SlotView is the model-facing rendering of a slot and its prediction.
type SlotView struct {
	Rank        int     `json:"rank,omitempty"`
	Date        string  `json:"date"`
	Time        string  `json:"time"`
	Service     string  `json:"appointment_type"`
	WaitMinutes float64 `json:"predicted_wait_minutes"`
	Confidence  float64 `json:"confidence"`
	Congestion  string  `json:"congestion"`
}

func viewOf(rec recommend.Recommendation, rank int) SlotView {
	return SlotView{
		Rank:        rank,
		Date:        rec.Slot.Date.String(),
		Time:        clock(rec.Slot.Time),
		Service:     string(rec.Slot.Service),
		WaitMinutes: rec.Prediction.WaitMinutes,
		Confidence:  rec.Prediction.Confidence,
		Congestion:  string(rec.Prediction.Tier),
	}
}

func viewsOf(list recommend.List) []SlotView {
	out := make([]SlotView, 0, len(list))
	for i, rec := range list {
		out = append(out, viewOf(rec, i+1))
	}
	return out
}

// SlotListPayload is returned by the ranking tools.
type SlotListPayload struct {
	Date    string     `json:"date"`
	Service string     `json:"appointment_type"`
	Slots   []SlotView `json:"slots"`
	Note    string     `json:"note,omitempty"`
}

// Tools returns the tool declarations bound to h.
func (h *Hospital) Tools() []Tool {
	services := h.ranker.Catalog().Names()
	serviceParam := Param{
		Name:        "appointment_type",
		Type:        TypeString,
		Required:    true,
		Description: "Type of appointment",
		Enum:        services,
	}
	dateParam := Param{Name: "date", Type: TypeString, Required: true, Description: "Date as YYYY-MM-DD, or today/tomorrow"}
	timeParam := Param{Name: "time", Type: TypeString, Required: true, Description: "Time of day as HH:MM (24h)"}

	return []Tool{
		{
			Name:        ToolRecommendSlots,
			Description: "Recommend the appointment slots with the lowest predicted waiting time on a date.",
			Params: []Param{serviceParam, dateParam,
				{Name: "num_recommendations", Type: TypeInteger, Description: "How many slots to return", Default: h.defaultK}},
			Handler: h.recommendSlots,
		},
		{
			Name:        ToolPredictWaitTime,
			Description: "Predict the waiting time for a specific appointment slot without booking it.",
			Params:      []Param{serviceParam, dateParam, timeParam},
			Handler:     h.predictWaitTime,
		},
		{
			Name:        ToolBusiestTimes,
			Description: "List the busiest times on a date, to help patients avoid long waits.",
			Params: []Param{serviceParam, dateParam,
				{Name: "count", Type: TypeInteger, Description: "How many times to list", Default: 3}},
			Handler: h.busiestTimes,
		},
		{
			Name:        ToolLeastBusyTimes,
			Description: "List the least busy times on a date.",
			Params: []Param{serviceParam, dateParam,
				{Name: "count", Type: TypeInteger, Description: "How many times to list", Default: 3}},
			Handler: h.leastBusyTimes,
		},
		{
			Name:        ToolSuggestAlternatives,
			Description: "Check a preferred slot and suggest less congested alternatives on the same day.",
			Params: []Param{serviceParam, dateParam, timeParam,
				{Name: "num_alternatives", Type: TypeInteger, Description: "Maximum alternatives to suggest", Default: 3},
				{Name: "max_wait_minutes", Type: TypeNumber, Description: "Longest wait the patient accepts"}},
			Handler: h.suggestAlternatives,
		},
		{
			Name:        ToolNextAvailableSlot,
			Description: "Find the next free appointment slot from now.",
			Params:      []Param{serviceParam},
			Handler:     h.nextAvailable,
		},
		{
			Name:        ToolDaySummary,
			Description: "Summarize congestion for a date: average, minimum and maximum waits and share of low congestion slots.",
			Params:      []Param{serviceParam, dateParam},
			Handler:     h.daySummary,
		},
		{
			Name:        ToolBookAppointment,
			Description: "Book an appointment for a patient. Confirm the details with the patient first.",
			Params: []Param{
				{Name: "patient_name", Type: TypeString, Required: true, Description: "Full name of the patient"},
				{Name: "patient_phone", Type: TypeString, Description: "Contact phone number"},
				serviceParam, dateParam, timeParam,
			},
			Handler: h.bookAppointment,
		},
		{
			Name:        ToolCancelAppointment,
			Description: "Cancel one appointment, by its id or by the date and time it is booked at. Add the patient name when several patients share the slot.",
			Params: []Param{
				{Name: "appointment_id", Type: TypeString, Description: "Id returned when the appointment was booked"},
				{Name: "date", Type: TypeString, Description: "Date as YYYY-MM-DD, or today/tomorrow"},
				{Name: "time", Type: TypeString, Description: "Time of day as HH:MM (24h)"},
				{Name: "patient_name", Type: TypeString, Description: "Name of the patient the appointment is for"},
			},
			Handler: h.cancelAppointment,
		},
		{
			Name:        ToolRescheduleAppointment,
			Description: "Move a confirmed appointment to a new date and time. Fails when the new slot is fully booked.",
			Params: []Param{
				{Name: "appointment_id", Type: TypeString, Required: true, Description: "Id returned when the appointment was booked"},
				dateParam, timeParam,
			},
			Handler: h.rescheduleAppointment,
		},
		{
			Name:        ToolListAppointments,
			Description: "List booked appointments, optionally filtered by date, type and status.",
			Params: []Param{
				{Name: "date", Type: TypeString, Description: "Date as YYYY-MM-DD"},
				{Name: "appointment_type", Type: TypeString, Description: "Type of appointment", Enum: services},
				{Name: "status", Type: TypeString, Description: "Appointment status", Enum: []string{string(appointments.StatusConfirmed), string(appointments.StatusCancelled)}},
				{Name: "limit", Type: TypeInteger, Description: "Maximum appointments to return", Default: h.defaultListLimit},
			},
			Handler: h.listAppointments,
		},
		{
			Name:        ToolAppointmentStats,
			Description: "Count confirmed appointments by type, how many are still upcoming, and their average predicted wait.",
			Handler:     h.appointmentStats,
		},
		{
			Name:        ToolNextAppointment,
			Description: "Find the next confirmed appointment from now.",
			Handler:     h.nextAppointment,
		},
	}
}

func (h *Hospital) recommendSlots(ctx context.Context, args Args) (any, error) {
	svc, date, err := h.serviceAndDate(args)
	if err != nil {
		return nil, err
	}
	list, err := h.ranker.Recommend(ctx, svc, date, args.Int("num_recommendations"))
	if err != nil {
		return nil, err
	}
	return slotList(svc, date, list), nil
}

func (h *Hospital) predictWaitTime(ctx context.Context, args Args) (any, error) {
	svc, date, err := h.serviceAndDate(args)
	if err != nil {
		return nil, err
	}
	t, err := scheduling.ParseClock(args.String("time"))
	if err != nil {
		return nil, err
	}
	pred, err := h.ranker.PredictSingle(ctx, svc, date, t)
	if err != nil {
		return nil, err
	}
	return viewOf(recommend.Recommendation{
		Slot:       scheduling.TimeSlot{Date: date, Time: t, Service: svc},
		Prediction: pred,
	}, 0), nil
}

func (h *Hospital) busiestTimes(ctx context.Context, args Args) (any, error) {
	svc, date, err := h.serviceAndDate(args)
	if err != nil {
		return nil, err
	}
	list, err := h.ranker.Busiest(ctx, svc, date, args.Int("count"))
	if err != nil {
		return nil, err
	}
	payload := slotList(svc, date, list)
	if len(list) > 0 {
		payload.Note = "Consider booking earlier or later in the day for shorter waits."
	}
	return payload, nil
}

func (h *Hospital) leastBusyTimes(ctx context.Context, args Args) (any, error) {
	svc, date, err := h.serviceAndDate(args)
	if err != nil {
		return nil, err
	}
	list, err := h.ranker.LeastBusy(ctx, svc, date, args.Int("count"))
	if err != nil {
		return nil, err
	}
	return slotList(svc, date, list), nil
}

// AlternativesPayload is returned by suggest_alternatives.
type AlternativesPayload struct {
	Preferred    SlotView   `json:"preferred"`
	Verdict      string     `json:"recommendation"`
	Alternatives []SlotView `json:"alternatives"`
}

func (h *Hospital) suggestAlternatives(ctx context.Context, args Args) (any, error) {
	svc, date, err := h.serviceAndDate(args)
	if err != nil {
		return nil, err
	}
	t, err := scheduling.ParseClock(args.String("time"))
	if err != nil {
		return nil, err
	}
	alt, err := h.ranker.Alternatives(ctx, svc, date, t, args.Int("num_alternatives"), args.Float("max_wait_minutes"))
	if err != nil {
		return nil, err
	}
	return AlternativesPayload{
		Preferred:    viewOf(alt.Preferred, 0),
		Verdict:      string(alt.Verdict),
		Alternatives: viewsOf(alt.Alternatives),
	}, nil
}

func (h *Hospital) nextAvailable(ctx context.Context, args Args) (any, error) {
	svc, err := h.ranker.Catalog().Parse(args.String("appointment_type"))
	if err != nil {
		return nil, err
	}
	rec, err := h.ranker.NextAvailable(ctx, svc)
	if err != nil {
		return nil, err
	}
	return viewOf(rec, 0), nil
}

func (h *Hospital) daySummary(ctx context.Context, args Args) (any, error) {
	svc, date, err := h.serviceAndDate(args)
	if err != nil {
		return nil, err
	}
	return h.ranker.DaySummary(ctx, svc, date)
}

// BookingPayload is returned by book_appointment.
type BookingPayload struct {
	AppointmentID string   `json:"appointment_id"`
	PatientName   string   `json:"patient_name"`
	Slot          SlotView `json:"slot"`
	Status        string   `json:"status"`

	// Set by reschedule_appointment as "YYYY-MM-DD HH:MM".
	RescheduledFrom string `json:"rescheduled_from,omitempty"`
}

func (h *Hospital) bookAppointment(ctx context.Context, args Args) (any, error) {
	svc, date, err := h.serviceAndDate(args)
	if err != nil {
		return nil, err
	}
	t, err := scheduling.ParseClock(args.String("time"))
	if err != nil {
		return nil, err
	}
	if err := h.checkHours(t); err != nil {
		return nil, err
	}
	pred, err := h.ranker.PredictSingle(ctx, svc, date, t)
	if err != nil {
		return nil, err
	}
	appt, err := h.store.Create(ctx, appointments.NewAppointment{
		Patient:      appointments.Patient{Name: args.String("patient_name"), Phone: args.String("patient_phone")},
		Service:      svc,
		Date:         date,
		Time:         t,
		WaitEstimate: pred.WaitMinutes,
		Confidence:   pred.Confidence,
	})
	if err != nil {
		return nil, err
	}
	return BookingPayload{
		AppointmentID: appt.ID,
		PatientName:   appt.Patient.Name,
		Slot:          viewOf(recommend.Recommendation{Slot: appt.Slot(), Prediction: pred}, 0),
		Status:        string(appt.Status),
	}, nil
}

func (h *Hospital) cancelAppointment(ctx context.Context, args Args) (any, error) {
	sel := appointments.Selector{ID: args.String("appointment_id"), PatientName: args.String("patient_name")}
	if sel.ID == "" {
		if !args.Has("date") || !args.Has("time") {
			return nil, fmt.Errorf("%w: give the appointment id, or the date and time it is booked at", scheduling.ErrInvalidInput)
		}
		date, err := h.parseDate(args.String("date"))
		if err != nil {
			return nil, err
		}
		t, err := scheduling.ParseClock(args.String("time"))
		if err != nil {
			return nil, err
		}
		sel.Date, sel.Time = date, t
	}
	appt, err := h.store.Cancel(ctx, sel)
	if err != nil {
		if errors.Is(err, appointments.ErrNotFound) {
			if sel.ID != "" {
				return nil, fmt.Errorf("no confirmed appointment with id %s: %w", sel.ID, err)
			}
			return nil, fmt.Errorf("no appointment found on %s at %s: %w", sel.Date, clock(sel.Time), err)
		}
		return nil, err
	}
	return appointmentView(*appt), nil
}

func (h *Hospital) rescheduleAppointment(ctx context.Context, args Args) (any, error) {
	id := args.String("appointment_id")
	current, err := h.store.Get(ctx, id)
	if err != nil {
		if errors.Is(err, appointments.ErrNotFound) {
			return nil, fmt.Errorf("no appointment with id %s: %w", id, err)
		}
		return nil, err
	}
	if current.Status != appointments.StatusConfirmed {
		return nil, fmt.Errorf("%w: appointment %s is %s", scheduling.ErrInvalidInput, id, current.Status)
	}
	date, err := h.parseDate(args.String("date"))
	if err != nil {
		return nil, err
	}
	t, err := scheduling.ParseClock(args.String("time"))
	if err != nil {
		return nil, err
	}
	if err := h.checkHours(t); err != nil {
		return nil, err
	}
	pred, err := h.ranker.PredictSingle(ctx, current.Service, date, t)
	if err != nil {
		return nil, err
	}
	moved, err := h.store.Reschedule(ctx, appointments.Move{
		ID:           current.ID,
		Date:         date,
		Time:         t,
		WaitEstimate: pred.WaitMinutes,
		Confidence:   pred.Confidence,
	})
	if err != nil {
		return nil, err
	}
	return BookingPayload{
		AppointmentID:   moved.ID,
		PatientName:     moved.Patient.Name,
		Slot:            viewOf(recommend.Recommendation{Slot: moved.Slot(), Prediction: pred}, 0),
		Status:          string(moved.Status),
		RescheduledFrom: previousSlot(*moved),
	}, nil
}

// StatsPayload is returned by appointment_stats.
type StatsPayload struct {
	Confirmed   int            `json:"confirmed"`
	Upcoming    int            `json:"upcoming"`
	ByType      map[string]int `json:"by_appointment_type"`
	AverageWait float64        `json:"average_wait_minutes"`
}

func (h *Hospital) appointmentStats(ctx context.Context, _ Args) (any, error) {
	stats, err := h.store.Stats(ctx, civil.DateTimeOf(h.ranker.Now()))
	if err != nil {
		return nil, err
	}
	byType := make(map[string]int, len(stats.ByService))
	for svc, n := range stats.ByService {
		byType[string(svc)] = n
	}
	return StatsPayload{
		Confirmed:   stats.Confirmed,
		Upcoming:    stats.Upcoming,
		ByType:      byType,
		AverageWait: stats.AverageWait,
	}, nil
}

func (h *Hospital) nextAppointment(ctx context.Context, _ Args) (any, error) {
	appt, err := h.store.Next(ctx, civil.DateTimeOf(h.ranker.Now()))
	if err != nil {
		if errors.Is(err, appointments.ErrNotFound) {
			return nil, fmt.Errorf("no upcoming appointments: %w", err)
		}
		return nil, err
	}
	return appointmentView(*appt), nil
}

// AppointmentView is the model-facing rendering of a booked appointment.
type AppointmentView struct {
	ID           string  `json:"id"`
	PatientName  string  `json:"patient_name"`
	Service      string  `json:"appointment_type"`
	Date         string  `json:"date"`
	Time         string  `json:"time"`
	Status       string  `json:"status"`
	WaitEstimate float64 `json:"predicted_wait_minutes"`

	RescheduledFrom string `json:"rescheduled_from,omitempty"`
}

func appointmentView(a appointments.Appointment) AppointmentView {
	return AppointmentView{
		ID:              a.ID,
		PatientName:     a.Patient.Name,
		Service:         string(a.Service),
		Date:            a.Date.String(),
		Time:            clock(a.Time),
		Status:          string(a.Status),
		WaitEstimate:    a.WaitEstimate,
		RescheduledFrom: previousSlot(a),
	}
}

func previousSlot(a appointments.Appointment) string {
	if a.PreviousDate == nil || a.PreviousTime == nil {
		return ""
	}
	return a.PreviousDate.String() + " " + clock(*a.PreviousTime)
}

func (h *Hospital) listAppointments(ctx context.Context, args Args) (any, error) {
	filter := appointments.Filter{
		Status: appointments.Status(args.String("status")),
		Limit:  args.Int("limit"),
	}
	if args.Has("date") {
		d, err := h.parseDate(args.String("date"))
		if err != nil {
			return nil, err
		}
		filter.Date = &d
	}
	if args.Has("appointment_type") {
		svc, err := h.ranker.Catalog().Parse(args.String("appointment_type"))
		if err != nil {
			return nil, err
		}
		filter.Service = svc
	}
	items, err := h.store.List(ctx, filter)
	if err != nil {
		return nil, err
	}
	out := make([]AppointmentView, 0, len(items))
	for _, a := range items {
		out = append(out, appointmentView(a))
	}
	return map[string]any{"appointments": out, "count": len(out)}, nil
}

func (h *Hospital) checkHours(t civil.Time) error {
	hours := h.ranker.WorkingHours()
	if !hours.Contains(t) {
		return fmt.Errorf("%w: %s is outside working hours %s-%s", scheduling.ErrInvalidInput, clock(t), clock(hours.Start), clock(hours.End))
	}
	return nil
}

func (h *Hospital) serviceAndDate(args Args) (scheduling.ServiceType, civil.Date, error) {
	svc, err := h.ranker.Catalog().Parse(args.String("appointment_type"))
	if err != nil {
		return "", civil.Date{}, err
	}
	date, err := h.parseDate(args.String("date"))
	if err != nil {
		return "", civil.Date{}, err
	}
	return svc, date, nil
}

func (h *Hospital) parseDate(value string) (civil.Date, error) {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "today":
		return h.ranker.Today(), nil
	case "tomorrow":
		return h.ranker.Today().AddDays(1), nil
	}
	return scheduling.ParseDate(value)
}

func slotList(svc scheduling.ServiceType, date civil.Date, list recommend.List) SlotListPayload {
	payload := SlotListPayload{Date: date.String(), Service: string(svc), Slots: viewsOf(list)}
	if len(list) == 0 {
		payload.Note = "No available slots on this date. Suggest another date."
	}
	return payload
}

func clock(t civil.Time) string {
	return fmt.Sprintf("%02d:%02d", t.Hour, t.Minute)
}
