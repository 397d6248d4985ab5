package scheduling

import (
	"errors"
	"fmt"
	"math"
	"os"
	"sort"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// HourBucket applies a multiplier and a fixed confidence to hours in [Start, End).
type HourBucket struct {
	Start      int     `yaml:"start"`
	End        int     `yaml:"end"`
	Multiplier float64 `yaml:"multiplier"`
	Confidence float64 `yaml:"confidence"`
}

// Tables are the fixed lookup tables of the baseline wait formula.
type Tables struct {
	BaseWait           map[ServiceType]float64 `yaml:"base_wait"`
	ServiceMultipliers map[ServiceType]float64 `yaml:"service_multipliers"`
	DayMultipliers     map[string]float64      `yaml:"day_multipliers"`
	HourBuckets        []HourBucket            `yaml:"hour_buckets"`
	OccupancyWeight    float64                 `yaml:"occupancy_weight"`
	MinWait            float64                 `yaml:"min_wait"`
	MaxWait            float64                 `yaml:"max_wait"`
	Thresholds         Thresholds              `yaml:"thresholds"`
}

// DefaultTables returns the production tables for the default catalog.
func DefaultTables() Tables {
	return Tables{
		BaseWait: map[ServiceType]float64{
			Consultation: 20,
			Checkup:      20,
			FollowUp:     20,
			Diagnosis:    20,
			Emergency:    20,
			Surgery:      20,
		},
		ServiceMultipliers: map[ServiceType]float64{
			Consultation: 1.0,
			Checkup:      0.8,
			FollowUp:     0.6,
			Diagnosis:    1.2,
			Emergency:    1.5,
			Surgery:      2.0,
		},
		DayMultipliers: map[string]float64{
			"monday":    1.2,
			"tuesday":   1.1,
			"wednesday": 1.0,
			"thursday":  1.0,
			"friday":    1.1,
			"saturday":  0.7,
			"sunday":    0.6,
		},
		HourBuckets: []HourBucket{
			{Start: 0, End: 9, Multiplier: 0.9, Confidence: 0.85},
			{Start: 9, End: 12, Multiplier: 1.5, Confidence: 0.75},
			{Start: 12, End: 14, Multiplier: 1.4, Confidence: 0.8},
			{Start: 14, End: 16, Multiplier: 1.5, Confidence: 0.75},
			{Start: 16, End: 17, Multiplier: 1.1, Confidence: 0.8},
			{Start: 17, End: 24, Multiplier: 0.9, Confidence: 0.85},
		},
		OccupancyWeight: 0.5,
		MinWait:         5,
		MaxWait:         240,
		Thresholds:      DefaultThresholds(),
	}
}

// LoadTables reads a YAML file on top of DefaultTables. Map entries present in
// the file replace the defaults for the same key; a non-empty hour_buckets list
// replaces the default buckets entirely.
func LoadTables(path string) (Tables, error) {
	tables := DefaultTables()
	data, err := os.ReadFile(path)
	if err != nil {
		return Tables{}, fmt.Errorf("scheduling: read tables: %w", err)
	}

	var override Tables
	if err := yaml.Unmarshal(data, &override); err != nil {
		return Tables{}, fmt.Errorf("scheduling: parse tables: %w", err)
	}
	for svc, v := range override.BaseWait {
		tables.BaseWait[ServiceType(strings.ToLower(string(svc)))] = v
	}
	for svc, v := range override.ServiceMultipliers {
		tables.ServiceMultipliers[ServiceType(strings.ToLower(string(svc)))] = v
	}
	for day, v := range override.DayMultipliers {
		tables.DayMultipliers[strings.ToLower(day)] = v
	}
	if len(override.HourBuckets) > 0 {
		tables.HourBuckets = override.HourBuckets
	}
	if override.OccupancyWeight != 0 {
		tables.OccupancyWeight = override.OccupancyWeight
	}
	if override.MinWait != 0 {
		tables.MinWait = override.MinWait
	}
	if override.MaxWait != 0 {
		tables.MaxWait = override.MaxWait
	}
	if override.Thresholds.LowMax != 0 {
		tables.Thresholds.LowMax = override.Thresholds.LowMax
	}
	if override.Thresholds.ModerateMax != 0 {
		tables.Thresholds.ModerateMax = override.Thresholds.ModerateMax
	}
	return tables, nil
}

// Validate checks the tables cover every catalog service, every weekday and
// every hour of the day.
func (t Tables) Validate(catalog *Catalog) error {
	if catalog == nil {
		return errors.New("scheduling: catalog is required")
	}
	for _, svc := range catalog.Services() {
		if v, ok := t.BaseWait[svc]; !ok || !(v > 0) {
			return fmt.Errorf("scheduling: base wait for %q must be positive", svc)
		}
		if v, ok := t.ServiceMultipliers[svc]; !ok || !(v > 0) {
			return fmt.Errorf("scheduling: service multiplier for %q must be positive", svc)
		}
	}
	for d := time.Sunday; d <= time.Saturday; d++ {
		if v, ok := t.DayMultipliers[dayKey(d)]; !ok || !(v > 0) {
			return fmt.Errorf("scheduling: day multiplier for %s must be positive", d)
		}
	}

	buckets := make([]HourBucket, len(t.HourBuckets))
	copy(buckets, t.HourBuckets)
	sort.Slice(buckets, func(i, j int) bool { return buckets[i].Start < buckets[j].Start })
	next := 0
	for _, b := range buckets {
		if b.Start != next || b.End <= b.Start {
			return fmt.Errorf("scheduling: hour buckets must cover 0-24 without gaps (at hour %d)", next)
		}
		if !(b.Multiplier > 0) {
			return fmt.Errorf("scheduling: hour bucket %d-%d multiplier must be positive", b.Start, b.End)
		}
		if b.Confidence < 0 || b.Confidence > 1 || math.IsNaN(b.Confidence) {
			return fmt.Errorf("scheduling: hour bucket %d-%d confidence must be in [0,1]", b.Start, b.End)
		}
		next = b.End
	}
	if next != 24 {
		return fmt.Errorf("scheduling: hour buckets must cover 0-24 (ends at %d)", next)
	}

	if t.OccupancyWeight < 0 {
		return errors.New("scheduling: occupancy weight cannot be negative")
	}
	if !(t.MinWait > 0) || !(t.MaxWait > t.MinWait) {
		return fmt.Errorf("scheduling: wait bounds invalid (min %v, max %v)", t.MinWait, t.MaxWait)
	}
	return t.Thresholds.Validate()
}

func (t Tables) dayMultiplier(d time.Weekday) float64 {
	return t.DayMultipliers[dayKey(d)]
}

func (t Tables) bucket(hour int) HourBucket {
	for _, b := range t.HourBuckets {
		if hour >= b.Start && hour < b.End {
			return b
		}
	}
	return HourBucket{Start: hour, End: hour + 1, Multiplier: 1, Confidence: 0.8}
}

func dayKey(d time.Weekday) string {
	return strings.ToLower(d.String())
}
