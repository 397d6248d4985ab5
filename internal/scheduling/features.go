package scheduling

import (
	"fmt"
	"math"
	"time"

	"cloud.google.com/go/civil"
)

// NumFeatures is the fixed length of a FeatureVector.
const NumFeatures = 10

// FeatureNames lists the vector fields in order.
var FeatureNames = [NumFeatures]string{
	"hour",
	"weekday",
	"day_of_month",
	"month",
	"service",
	"hour_sin",
	"hour_cos",
	"weekday_sin",
	"weekday_cos",
	"occupancy",
}

// FeatureVector is the normalized input to a prediction. Values are in [0,1]
// except the cyclic encodings, which are in [-1,1].
type FeatureVector struct {
	Values    [NumFeatures]float64 `json:"values"`
	Slot      TimeSlot             `json:"slot"`
	Occupancy float64              `json:"occupancy"`
}

// Signals carry live context that is not part of the slot itself.
type Signals struct {
	// Occupancy is the fraction of capacity already booked around the slot.
	Occupancy float64
}

// ExtractorOption customizes an Extractor.
type ExtractorOption func(*Extractor)

// WithHorizonDays sets how many days ahead bookings are accepted.
func WithHorizonDays(days int) ExtractorOption {
	return func(e *Extractor) {
		if days > 0 {
			e.horizonDays = days
		}
	}
}

// WithClock overrides the time source used for horizon checks.
func WithClock(now func() time.Time) ExtractorOption {
	return func(e *Extractor) {
		if now != nil {
			e.now = now
		}
	}
}

// WithLocation sets the hospital timezone.
func WithLocation(loc *time.Location) ExtractorOption {
	return func(e *Extractor) {
		if loc != nil {
			e.loc = loc
		}
	}
}

// Extractor turns a service and instant into a FeatureVector.
type Extractor struct {
	catalog     *Catalog
	horizonDays int
	loc         *time.Location
	now         func() time.Time
}

func NewExtractor(catalog *Catalog, opts ...ExtractorOption) *Extractor {
	if catalog == nil {
		panic("scheduling: catalog cannot be nil")
	}
	e := &Extractor{
		catalog:     catalog,
		horizonDays: 90,
		loc:         time.UTC,
		now:         time.Now,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

func (e *Extractor) Catalog() *Catalog { return e.catalog }

func (e *Extractor) Location() *time.Location { return e.loc }

func (e *Extractor) HorizonDays() int { return e.horizonDays }

// Now returns the current time in the hospital timezone.
func (e *Extractor) Now() time.Time { return e.now().In(e.loc) }

// Today returns the current hospital date.
func (e *Extractor) Today() civil.Date { return civil.DateOf(e.Now()) }

// CheckDate reports ErrInvalidInput when date is before today or beyond the horizon.
func (e *Extractor) CheckDate(date civil.Date) error {
	if !date.IsValid() {
		return fmt.Errorf("%w: invalid date %v", ErrInvalidInput, date)
	}
	today := e.Today()
	if date.Before(today) {
		return fmt.Errorf("%w: date %s is in the past", ErrInvalidInput, date)
	}
	if last := today.AddDays(e.horizonDays); date.After(last) {
		return fmt.Errorf("%w: date %s is beyond the %d day scheduling horizon", ErrInvalidInput, date, e.horizonDays)
	}
	return nil
}

// Extract builds the vector for service at the instant at.
func (e *Extractor) Extract(service ServiceType, at time.Time, signals Signals) (FeatureVector, error) {
	local := at.In(e.loc)
	slot := TimeSlot{Date: civil.DateOf(local), Time: civil.TimeOf(local), Service: service}
	if local.Before(e.Now()) {
		return FeatureVector{}, fmt.Errorf("%w: %s is in the past", ErrInvalidInput, local.Format(time.RFC3339))
	}
	return e.ExtractSlot(slot, signals)
}

// ExtractSlot builds the vector for a slot. Only the date is checked against
// the horizon; callers that care about past times of today filter earlier.
func (e *Extractor) ExtractSlot(slot TimeSlot, signals Signals) (FeatureVector, error) {
	idx, ok := e.catalog.Index(slot.Service)
	if !ok {
		return FeatureVector{}, fmt.Errorf("%w: unknown service %q", ErrInvalidInput, slot.Service)
	}
	if !slot.Time.IsValid() {
		return FeatureVector{}, fmt.Errorf("%w: invalid time %v", ErrInvalidInput, slot.Time)
	}
	if err := e.CheckDate(slot.Date); err != nil {
		return FeatureVector{}, err
	}
	occupancy := signals.Occupancy
	if math.IsNaN(occupancy) || occupancy < 0 {
		return FeatureVector{}, fmt.Errorf("%w: occupancy %v out of range", ErrInvalidInput, occupancy)
	}
	if occupancy > 1 {
		occupancy = 1
	}

	hour := float64(slot.Time.Hour) + float64(slot.Time.Minute)/60
	weekday := float64(mondayIndex(slot.Date))
	serviceSpan := float64(e.catalog.Len() - 1)
	if serviceSpan < 1 {
		serviceSpan = 1
	}

	fv := FeatureVector{Slot: slot, Occupancy: occupancy}
	fv.Values = [NumFeatures]float64{
		hour / 24,
		weekday / 6,
		float64(slot.Date.Day-1) / 30,
		float64(slot.Date.Month-1) / 11,
		float64(idx) / serviceSpan,
		math.Sin(2 * math.Pi * hour / 24),
		math.Cos(2 * math.Pi * hour / 24),
		math.Sin(2 * math.Pi * weekday / 7),
		math.Cos(2 * math.Pi * weekday / 7),
		occupancy,
	}
	return fv, nil
}

// Weekday returns the day of week of a civil date.
func Weekday(d civil.Date) time.Weekday {
	return d.In(time.UTC).Weekday()
}

func mondayIndex(d civil.Date) int {
	return (int(Weekday(d)) + 6) % 7
}
