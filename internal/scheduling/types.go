package scheduling

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"cloud.google.com/go/civil"
)

// ErrInvalidInput is returned for requests the engine rejects outright: unknown
// services, dates outside the scheduling horizon, or non-positive result sizes.
var ErrInvalidInput = errors.New("scheduling: invalid input")

// ServiceType names an entry in the service catalog.
type ServiceType string

const (
	Consultation ServiceType = "consultation"
	Checkup      ServiceType = "checkup"
	FollowUp     ServiceType = "follow-up"
	Diagnosis    ServiceType = "diagnosis"
	Emergency    ServiceType = "emergency"
	Surgery      ServiceType = "surgery"
)

// Catalog is the closed set of bookable services. It is immutable after construction.
type Catalog struct {
	services []ServiceType
	index    map[ServiceType]int
}

// NewCatalog builds a catalog in the given order. Names are lower-cased.
func NewCatalog(services ...ServiceType) (*Catalog, error) {
	if len(services) == 0 {
		return nil, errors.New("scheduling: catalog requires at least one service")
	}
	c := &Catalog{index: make(map[ServiceType]int, len(services))}
	for _, svc := range services {
		name := ServiceType(strings.ToLower(strings.TrimSpace(string(svc))))
		if name == "" {
			return nil, errors.New("scheduling: empty service name")
		}
		if _, dup := c.index[name]; dup {
			return nil, fmt.Errorf("scheduling: duplicate service %q", name)
		}
		c.index[name] = len(c.services)
		c.services = append(c.services, name)
	}
	return c, nil
}

// DefaultCatalog returns the hospital's standard service list.
func DefaultCatalog() *Catalog {
	c, err := NewCatalog(Consultation, Checkup, FollowUp, Diagnosis, Emergency, Surgery)
	if err != nil {
		panic(err)
	}
	return c
}

// Parse resolves a user supplied service name. Matching ignores case and
// treats spaces and underscores as hyphens.
func (c *Catalog) Parse(name string) (ServiceType, error) {
	normalized := strings.ToLower(strings.TrimSpace(name))
	normalized = strings.NewReplacer(" ", "-", "_", "-").Replace(normalized)
	if _, ok := c.index[ServiceType(normalized)]; ok {
		return ServiceType(normalized), nil
	}
	if normalized == "followup" {
		if _, ok := c.index[FollowUp]; ok {
			return FollowUp, nil
		}
	}
	return "", fmt.Errorf("%w: unknown service %q", ErrInvalidInput, name)
}

func (c *Catalog) Contains(svc ServiceType) bool {
	_, ok := c.index[svc]
	return ok
}

// Index reports the position of svc in the catalog.
func (c *Catalog) Index(svc ServiceType) (int, bool) {
	i, ok := c.index[svc]
	return i, ok
}

func (c *Catalog) Len() int { return len(c.services) }

// Services returns a copy of the catalog entries in declaration order.
func (c *Catalog) Services() []ServiceType {
	out := make([]ServiceType, len(c.services))
	copy(out, c.services)
	return out
}

// Names returns the catalog entries as sorted strings.
func (c *Catalog) Names() []string {
	out := make([]string, 0, len(c.services))
	for _, svc := range c.services {
		out = append(out, string(svc))
	}
	sort.Strings(out)
	return out
}

// TimeSlot is a bookable (date, time of day, service) unit.
type TimeSlot struct {
	Date    civil.Date  `json:"date"`
	Time    civil.Time  `json:"time"`
	Service ServiceType `json:"service"`
}

// In returns the wall clock instant of the slot in loc.
func (s TimeSlot) In(loc *time.Location) time.Time {
	return civil.DateTime{Date: s.Date, Time: s.Time}.In(loc)
}

// Less orders slots by date, then time of day, then service name.
func (s TimeSlot) Less(other TimeSlot) bool {
	if s.Date != other.Date {
		return s.Date.Before(other.Date)
	}
	if a, b := ClockMinutes(s.Time), ClockMinutes(other.Time); a != b {
		return a < b
	}
	if s.Time.Second != other.Time.Second {
		return s.Time.Second < other.Time.Second
	}
	return s.Service < other.Service
}

func (s TimeSlot) String() string {
	return fmt.Sprintf("%s %02d:%02d %s", s.Date, s.Time.Hour, s.Time.Minute, s.Service)
}

// ClockMinutes returns minutes since midnight.
func ClockMinutes(t civil.Time) int {
	return t.Hour*60 + t.Minute
}

// ParseClock accepts "15:04" or "15:04:05". Slots are whole minutes, so
// seconds are dropped.
func ParseClock(value string) (civil.Time, error) {
	value = strings.TrimSpace(value)
	for _, layout := range []string{"15:04", "15:04:05", "3:04PM", "3:04 PM", "3PM", "3 PM"} {
		if t, err := time.Parse(layout, strings.ToUpper(value)); err == nil {
			return civil.Time{Hour: t.Hour(), Minute: t.Minute()}, nil
		}
	}
	return civil.Time{}, fmt.Errorf("%w: invalid time %q", ErrInvalidInput, value)
}

// ParseDate accepts ISO dates (YYYY-MM-DD).
func ParseDate(value string) (civil.Date, error) {
	d, err := civil.ParseDate(strings.TrimSpace(value))
	if err != nil {
		return civil.Date{}, fmt.Errorf("%w: invalid date %q", ErrInvalidInput, value)
	}
	return d, nil
}

// Tier is a coarse congestion class derived from predicted wait.
type Tier string

const (
	TierLow      Tier = "low"
	TierModerate Tier = "moderate"
	TierHigh     Tier = "high"
)

// Severity orders tiers from least to most congested.
func (t Tier) Severity() int {
	switch t {
	case TierLow:
		return 0
	case TierModerate:
		return 1
	default:
		return 2
	}
}

// Thresholds are inclusive upper bounds on wait minutes for the Low and
// Moderate tiers. Anything above ModerateMax is High.
type Thresholds struct {
	LowMax      float64 `yaml:"low_max" json:"low_max"`
	ModerateMax float64 `yaml:"moderate_max" json:"moderate_max"`
}

func DefaultThresholds() Thresholds {
	return Thresholds{LowMax: 15, ModerateMax: 30}
}

func (t Thresholds) Validate() error {
	if t.LowMax <= 0 {
		return fmt.Errorf("scheduling: low tier bound must be positive, got %v", t.LowMax)
	}
	if t.ModerateMax <= t.LowMax {
		return fmt.Errorf("scheduling: tier bounds must increase (low %v, moderate %v)", t.LowMax, t.ModerateMax)
	}
	return nil
}

func (t Thresholds) Classify(waitMinutes float64) Tier {
	switch {
	case waitMinutes <= t.LowMax:
		return TierLow
	case waitMinutes <= t.ModerateMax:
		return TierModerate
	default:
		return TierHigh
	}
}

// Source records which base scalar fed a prediction.
type Source string

const (
	SourceBaseline  Source = "baseline"
	SourceEstimator Source = "estimator"
)

// Prediction is the predicted wait for a single slot.
type Prediction struct {
	WaitMinutes float64 `json:"wait_minutes"`
	Confidence  float64 `json:"confidence"`
	Tier        Tier    `json:"tier"`
	Source      Source  `json:"source"`
}
