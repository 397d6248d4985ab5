package appointments

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"cloud.google.com/go/civil"
	"github.com/google/uuid"

	"github.com/kungukcm/Hospital-Booking-System/internal/scheduling"
)

// MemoryStore keeps appointments in process memory.
type MemoryStore struct {
	mu       sync.RWMutex
	capacity int
	now      func() time.Time
	items    []Appointment
}

// NewMemoryStore creates a store allowing capacity confirmed appointments per slot time.
func NewMemoryStore(capacity int) *MemoryStore {
	if capacity <= 0 {
		capacity = 1
	}
	return &MemoryStore{capacity: capacity, now: time.Now}
}

func (s *MemoryStore) Create(ctx context.Context, req NewAppointment) (*Appointment, error) {
	if err := validateNew(req); err != nil {
		return nil, err
	}
	req.Time = slotClock(req.Time)
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.activeAt(req.Date, req.Time, "") >= s.capacity {
		return nil, ErrConflict
	}
	appt := Appointment{
		ID:           uuid.NewString(),
		Patient:      req.Patient,
		Service:      req.Service,
		Date:         req.Date,
		Time:         req.Time,
		Status:       StatusConfirmed,
		WaitEstimate: req.WaitEstimate,
		Confidence:   req.Confidence,
		CreatedAt:    s.now().UTC(),
	}
	s.items = append(s.items, appt)
	out := appt
	return &out, nil
}

func (s *MemoryStore) Get(ctx context.Context, id string) (*Appointment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	id = strings.TrimSpace(id)
	for _, a := range s.items {
		if a.ID == id {
			out := a
			return &out, nil
		}
	}
	return nil, ErrNotFound
}

func (s *MemoryStore) Cancel(ctx context.Context, sel Selector) (*Appointment, error) {
	if err := sel.validate(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	i, err := s.selectLocked(sel)
	if err != nil {
		return nil, err
	}
	a := &s.items[i]
	at := s.now().UTC()
	a.Status = StatusCancelled
	a.CancelledAt = &at
	out := *a
	return &out, nil
}

func (s *MemoryStore) Reschedule(ctx context.Context, move Move) (*Appointment, error) {
	if err := move.validate(); err != nil {
		return nil, err
	}
	move.Time = slotClock(move.Time)
	s.mu.Lock()
	defer s.mu.Unlock()

	i, err := s.selectLocked(Selector{ID: move.ID})
	if err != nil {
		return nil, err
	}
	a := &s.items[i]
	if a.Date == move.Date && a.Time == move.Time {
		return nil, fmt.Errorf("%w: appointment is already booked at that time", scheduling.ErrInvalidInput)
	}
	if s.activeAt(move.Date, move.Time, a.ID) >= s.capacity {
		return nil, ErrConflict
	}
	prevDate, prevTime := a.Date, a.Time
	at := s.now().UTC()
	a.PreviousDate = &prevDate
	a.PreviousTime = &prevTime
	a.RescheduledAt = &at
	a.Date, a.Time = move.Date, move.Time
	a.WaitEstimate, a.Confidence = move.WaitEstimate, move.Confidence
	out := *a
	return &out, nil
}

// selectLocked returns the index of the single confirmed appointment sel
// matches.
func (s *MemoryStore) selectLocked(sel Selector) (int, error) {
	found := -1
	for i := range s.items {
		if !sel.matches(s.items[i]) {
			continue
		}
		if found >= 0 {
			return -1, ErrAmbiguous
		}
		found = i
	}
	if found < 0 {
		return -1, ErrNotFound
	}
	return found, nil
}

func (s *MemoryStore) List(ctx context.Context, filter Filter) ([]Appointment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]Appointment, 0, len(s.items))
	for _, a := range s.items {
		if filter.matches(a) {
			out = append(out, a)
		}
	}
	sortAppointments(out)
	if filter.Limit > 0 && len(out) > filter.Limit {
		out = out[:filter.Limit]
	}
	return out, nil
}

func (s *MemoryStore) Stats(ctx context.Context, after civil.DateTime) (Stats, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var stats Stats
	for _, a := range s.items {
		if a.Status != StatusConfirmed {
			continue
		}
		upcoming := 0
		if a.DateTime().After(after) {
			upcoming = 1
		}
		stats.add(a.Service, 1, a.WaitEstimate, upcoming)
	}
	stats.finish()
	return stats, nil
}

func (s *MemoryStore) Next(ctx context.Context, after civil.DateTime) (*Appointment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var next *Appointment
	for i := range s.items {
		a := s.items[i]
		if a.Status != StatusConfirmed || !a.DateTime().After(after) {
			continue
		}
		if next == nil || a.Slot().Less(next.Slot()) {
			next = &a
		}
	}
	if next == nil {
		return nil, ErrNotFound
	}
	return next, nil
}

func (s *MemoryStore) HasConflict(ctx context.Context, date civil.Date, t civil.Time, service scheduling.ServiceType) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.activeAt(date, slotClock(t), "") >= s.capacity, nil
}

// activeAt counts confirmed appointments at a slot, leaving out exclude.
func (s *MemoryStore) activeAt(date civil.Date, t civil.Time, exclude string) int {
	n := 0
	for _, a := range s.items {
		if a.Status == StatusConfirmed && a.ID != exclude && a.Date == date && a.Time == t {
			n++
		}
	}
	return n
}

func sortAppointments(items []Appointment) {
	sort.SliceStable(items, func(i, j int) bool {
		return items[i].Slot().Less(items[j].Slot())
	})
}

func validateNew(req NewAppointment) error {
	if strings.TrimSpace(req.Patient.Name) == "" {
		return fmt.Errorf("%w: patient name is required", scheduling.ErrInvalidInput)
	}
	if req.Service == "" {
		return fmt.Errorf("%w: service is required", scheduling.ErrInvalidInput)
	}
	if !req.Date.IsValid() || !req.Time.IsValid() {
		return fmt.Errorf("%w: invalid date or time", scheduling.ErrInvalidInput)
	}
	return nil
}
