package appointments

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	"cloud.google.com/go/civil"

	"github.com/kungukcm/Hospital-Booking-System/internal/scheduling"
)

var (
	// ErrConflict is returned when the requested slot is already at capacity.
	ErrConflict = errors.New("appointments: slot is already booked")
	// ErrNotFound is returned when no active appointment matches.
	ErrNotFound = errors.New("appointments: appointment not found")
	// ErrAmbiguous is returned when a slot selector matches more than one
	// confirmed appointment. It classifies as invalid input.
	ErrAmbiguous = fmt.Errorf("%w: more than one appointment matches, give the appointment id or patient name", scheduling.ErrInvalidInput)
)

// Status is the lifecycle state of an appointment.
type Status string

const (
	StatusConfirmed Status = "confirmed"
	StatusCancelled Status = "cancelled"
)

// Patient identifies who the appointment is for.
type Patient struct {
	Name  string `json:"name"`
	Phone string `json:"phone,omitempty"`
}

// Appointment is a booked slot.
type Appointment struct {
	ID           string                 `json:"id"`
	Patient      Patient                `json:"patient"`
	Service      scheduling.ServiceType `json:"service"`
	Date         civil.Date             `json:"date"`
	Time         civil.Time             `json:"time"`
	Status       Status                 `json:"status"`
	WaitEstimate float64                `json:"wait_estimate_minutes"`
	Confidence   float64                `json:"confidence"`
	CreatedAt    time.Time              `json:"created_at"`
	CancelledAt  *time.Time             `json:"cancelled_at,omitempty"`

	// Set by Reschedule to the slot the appointment moved from.
	PreviousDate  *civil.Date `json:"previous_date,omitempty"`
	PreviousTime  *civil.Time `json:"previous_time,omitempty"`
	RescheduledAt *time.Time  `json:"rescheduled_at,omitempty"`
}

// Slot returns the appointment's time slot.
func (a Appointment) Slot() scheduling.TimeSlot {
	return scheduling.TimeSlot{Date: a.Date, Time: a.Time, Service: a.Service}
}

// DateTime returns when the appointment starts.
func (a Appointment) DateTime() civil.DateTime {
	return civil.DateTime{Date: a.Date, Time: a.Time}
}

// NewAppointment is the input to Store.Create.
type NewAppointment struct {
	Patient      Patient
	Service      scheduling.ServiceType
	Date         civil.Date
	Time         civil.Time
	WaitEstimate float64
	Confidence   float64
}

// Filter narrows List results. Zero values match everything.
type Filter struct {
	Date    *civil.Date
	Service scheduling.ServiceType
	Status  Status
	Limit   int
}

func (f Filter) matches(a Appointment) bool {
	if f.Date != nil && a.Date != *f.Date {
		return false
	}
	if f.Service != "" && a.Service != f.Service {
		return false
	}
	if f.Status != "" && a.Status != f.Status {
		return false
	}
	return true
}

// Selector picks one confirmed appointment, either by ID or by slot. A slot
// may hold several appointments when capacity allows it; PatientName narrows
// the match and a slot that still matches more than one is ErrAmbiguous.
type Selector struct {
	ID          string
	Date        civil.Date
	Time        civil.Time
	PatientName string
}

func (s Selector) validate() error {
	if strings.TrimSpace(s.ID) != "" {
		return nil
	}
	if !s.Date.IsValid() || !s.Time.IsValid() {
		return fmt.Errorf("%w: appointment id or date and time are required", scheduling.ErrInvalidInput)
	}
	return nil
}

func (s Selector) matches(a Appointment) bool {
	if a.Status != StatusConfirmed {
		return false
	}
	if id := strings.TrimSpace(s.ID); id != "" {
		return a.ID == id
	}
	if a.Date != s.Date || a.Time != slotClock(s.Time) {
		return false
	}
	name := strings.TrimSpace(s.PatientName)
	return name == "" || strings.EqualFold(a.Patient.Name, name)
}

// Move is the input to Store.Reschedule. The wait estimate is the prediction
// for the new slot.
type Move struct {
	ID           string
	Date         civil.Date
	Time         civil.Time
	WaitEstimate float64
	Confidence   float64
}

func (m Move) validate() error {
	if strings.TrimSpace(m.ID) == "" {
		return fmt.Errorf("%w: appointment id is required", scheduling.ErrInvalidInput)
	}
	if !m.Date.IsValid() || !m.Time.IsValid() {
		return fmt.Errorf("%w: invalid date or time", scheduling.ErrInvalidInput)
	}
	return nil
}

// Stats summarizes confirmed appointments.
type Stats struct {
	Confirmed   int                            `json:"confirmed"`
	Upcoming    int                            `json:"upcoming"`
	ByService   map[scheduling.ServiceType]int `json:"by_service"`
	AverageWait float64                        `json:"average_wait_minutes"`

	waitSum float64
}

func (s *Stats) add(service scheduling.ServiceType, n int, waitSum float64, upcoming int) {
	if s.ByService == nil {
		s.ByService = make(map[scheduling.ServiceType]int)
	}
	s.ByService[service] += n
	s.Confirmed += n
	s.Upcoming += upcoming
	s.waitSum += waitSum
}

func (s *Stats) finish() {
	if s.ByService == nil {
		s.ByService = make(map[scheduling.ServiceType]int)
	}
	if s.Confirmed > 0 {
		s.AverageWait = math.Round(s.waitSum/float64(s.Confirmed)*10) / 10
	}
}

// Store is the appointment persistence contract. Capacity is counted per
// (date, time) across services; Create, Reschedule and HasConflict agree on
// it. Times are compared at minute precision.
type Store interface {
	Create(ctx context.Context, req NewAppointment) (*Appointment, error)
	Get(ctx context.Context, id string) (*Appointment, error)
	Cancel(ctx context.Context, sel Selector) (*Appointment, error)
	Reschedule(ctx context.Context, move Move) (*Appointment, error)
	List(ctx context.Context, filter Filter) ([]Appointment, error)
	// Stats and Next only count appointments starting after the given
	// hospital-local time as upcoming.
	Stats(ctx context.Context, after civil.DateTime) (Stats, error)
	Next(ctx context.Context, after civil.DateTime) (*Appointment, error)
	HasConflict(ctx context.Context, date civil.Date, t civil.Time, service scheduling.ServiceType) (bool, error)
}

// slotClock drops seconds so every store sees the same slot.
func slotClock(t civil.Time) civil.Time {
	return civil.Time{Hour: t.Hour, Minute: t.Minute}
}
