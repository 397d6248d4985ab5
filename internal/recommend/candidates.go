package recommend

import (
	"context"
	"fmt"
	"time"

	"cloud.google.com/go/civil"

	"github.com/kungukcm/Hospital-Booking-System/internal/scheduling"
)

// ConflictChecker reports whether a slot is already at capacity.
type ConflictChecker interface {
	HasConflict(ctx context.Context, date civil.Date, t civil.Time, service scheduling.ServiceType) (bool, error)
}

// WorkingHours bounds bookable start times: Start inclusive, End exclusive.
type WorkingHours struct {
	Start civil.Time
	End   civil.Time
}

func DefaultWorkingHours() WorkingHours {
	return WorkingHours{Start: civil.Time{Hour: 9}, End: civil.Time{Hour: 17}}
}

// ParseWorkingHours parses "HH:MM" bounds.
func ParseWorkingHours(start, end string) (WorkingHours, error) {
	s, err := scheduling.ParseClock(start)
	if err != nil {
		return WorkingHours{}, fmt.Errorf("recommend: working hours start: %w", err)
	}
	e, err := scheduling.ParseClock(end)
	if err != nil {
		return WorkingHours{}, fmt.Errorf("recommend: working hours end: %w", err)
	}
	wh := WorkingHours{Start: s, End: e}
	if err := wh.Validate(); err != nil {
		return WorkingHours{}, err
	}
	return wh, nil
}

func (w WorkingHours) Validate() error {
	if scheduling.ClockMinutes(w.End) <= scheduling.ClockMinutes(w.Start) {
		return fmt.Errorf("recommend: working hours end %s must be after start %s", w.End, w.Start)
	}
	return nil
}

// Contains reports whether t is a valid start time within working hours.
func (w WorkingHours) Contains(t civil.Time) bool {
	m := scheduling.ClockMinutes(t)
	return m >= scheduling.ClockMinutes(w.Start) && m < scheduling.ClockMinutes(w.End)
}

// GeneratorOption customizes a Generator.
type GeneratorOption func(*Generator)

// WithGeneratorClock sets the time source and hospital timezone used to skip past slots.
func WithGeneratorClock(now func() time.Time, loc *time.Location) GeneratorOption {
	return func(g *Generator) {
		if now != nil {
			g.now = now
		}
		if loc != nil {
			g.loc = loc
		}
	}
}

// Generator enumerates free slots for a day.
type Generator struct {
	hours     WorkingHours
	conflicts ConflictChecker
	now       func() time.Time
	loc       *time.Location
}

// NewGenerator builds a generator. A nil conflicts checker treats every slot as free.
func NewGenerator(hours WorkingHours, conflicts ConflictChecker, opts ...GeneratorOption) *Generator {
	g := &Generator{
		hours:     hours,
		conflicts: conflicts,
		now:       time.Now,
		loc:       time.UTC,
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

func (g *Generator) Hours() WorkingHours { return g.hours }

// Candidates steps through working hours by granularity, skipping slots that
// have started already or are at capacity. An empty result is not an error.
func (g *Generator) Candidates(ctx context.Context, date civil.Date, service scheduling.ServiceType, granularityMinutes int) ([]scheduling.TimeSlot, error) {
	if granularityMinutes <= 0 {
		return nil, fmt.Errorf("%w: slot granularity must be positive, got %d", scheduling.ErrInvalidInput, granularityMinutes)
	}
	now := g.now().In(g.loc)
	start := scheduling.ClockMinutes(g.hours.Start)
	end := scheduling.ClockMinutes(g.hours.End)

	slots := make([]scheduling.TimeSlot, 0, (end-start)/granularityMinutes+1)
	for m := start; m < end; m += granularityMinutes {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		slot := scheduling.TimeSlot{
			Date:    date,
			Time:    civil.Time{Hour: m / 60, Minute: m % 60},
			Service: service,
		}
		if slot.In(g.loc).Before(now) {
			continue
		}
		if g.conflicts != nil {
			busy, err := g.conflicts.HasConflict(ctx, slot.Date, slot.Time, service)
			if err != nil {
				return nil, fmt.Errorf("recommend: conflict check: %w", err)
			}
			if busy {
				continue
			}
		}
		slots = append(slots, slot)
	}
	return slots, nil
}
