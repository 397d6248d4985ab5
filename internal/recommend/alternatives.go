package recommend

import (
	"context"
	"fmt"
	"math"

	"cloud.google.com/go/civil"

	"github.com/kungukcm/Hospital-Booking-System/internal/scheduling"
)

// Verdict is the advice given for a preferred slot.
type Verdict string

const (
	VerdictAccept             Verdict = "accept"
	VerdictSuggestAlternative Verdict = "suggest_alternative"
	VerdictNoBetterOption     Verdict = "no_better_option"
)

// Alternatives is the analysis of a preferred slot.
type Alternatives struct {
	Preferred    Recommendation `json:"preferred"`
	Verdict      Verdict        `json:"verdict"`
	Alternatives List           `json:"alternatives"`
}

// Alternatives checks a preferred slot and proposes up to n better ones on the
// same day. A Low tier slot within maxWait is accepted as is. Otherwise better
// slots are those with a strictly lower wait that are either Low tier or, when
// maxWait > 0, within maxWait.
func (r *Ranker) Alternatives(ctx context.Context, service scheduling.ServiceType, date civil.Date, t civil.Time, n int, maxWait float64) (Alternatives, error) {
	if n <= 0 {
		return Alternatives{}, fmt.Errorf("%w: number of alternatives must be at least 1, got %d", scheduling.ErrInvalidInput, n)
	}
	if maxWait < 0 || math.IsNaN(maxWait) {
		return Alternatives{}, fmt.Errorf("%w: max wait cannot be negative", scheduling.ErrInvalidInput)
	}
	pred, err := r.PredictSingle(ctx, service, date, t)
	if err != nil {
		return Alternatives{}, err
	}
	preferred := scheduling.TimeSlot{Date: date, Time: t, Service: service}
	result := Alternatives{
		Preferred:    Recommendation{Slot: preferred, Prediction: pred},
		Alternatives: List{},
	}

	withinPreference := maxWait == 0 || pred.WaitMinutes <= maxWait
	if pred.Tier == scheduling.TierLow && withinPreference {
		result.Verdict = VerdictAccept
		return result, nil
	}

	ranked, err := r.rank(ctx, service, date)
	if err != nil {
		return Alternatives{}, err
	}
	for _, rec := range ranked {
		if len(result.Alternatives) == n {
			break
		}
		if rec.Slot == preferred || rec.Prediction.WaitMinutes >= pred.WaitMinutes {
			continue
		}
		if maxWait > 0 {
			if rec.Prediction.WaitMinutes > maxWait {
				continue
			}
		} else if rec.Prediction.Tier != scheduling.TierLow {
			continue
		}
		result.Alternatives = append(result.Alternatives, rec)
	}
	if len(result.Alternatives) > 0 {
		result.Verdict = VerdictSuggestAlternative
	} else {
		result.Verdict = VerdictNoBetterOption
	}
	return result, nil
}

// DaySummary aggregates the free slots of a day.
type DaySummary struct {
	Date              civil.Date              `json:"date"`
	Service           scheduling.ServiceType  `json:"service"`
	TotalSlots        int                     `json:"total_slots"`
	MeanWait          float64                 `json:"mean_wait_minutes"`
	MinWait           float64                 `json:"min_wait_minutes"`
	MaxWait           float64                 `json:"max_wait_minutes"`
	StdDevWait        float64                 `json:"std_dev_wait_minutes"`
	TierCounts        map[scheduling.Tier]int `json:"tier_counts"`
	AvailabilityScore float64                 `json:"availability_score"`
	Best              *Recommendation         `json:"best,omitempty"`
}

// DaySummary computes wait statistics over every free slot of the day.
// AvailabilityScore is the percentage of slots in the Low tier.
func (r *Ranker) DaySummary(ctx context.Context, service scheduling.ServiceType, date civil.Date) (DaySummary, error) {
	ranked, err := r.rank(ctx, service, date)
	if err != nil {
		return DaySummary{}, err
	}
	summary := DaySummary{
		Date:    date,
		Service: service,
		TierCounts: map[scheduling.Tier]int{
			scheduling.TierLow:      0,
			scheduling.TierModerate: 0,
			scheduling.TierHigh:     0,
		},
		TotalSlots: len(ranked),
	}
	if len(ranked) == 0 {
		return summary, nil
	}

	var sum float64
	summary.MinWait = math.Inf(1)
	summary.MaxWait = math.Inf(-1)
	for _, rec := range ranked {
		w := rec.Prediction.WaitMinutes
		sum += w
		summary.MinWait = math.Min(summary.MinWait, w)
		summary.MaxWait = math.Max(summary.MaxWait, w)
		summary.TierCounts[rec.Prediction.Tier]++
	}
	mean := sum / float64(len(ranked))
	var sq float64
	for _, rec := range ranked {
		d := rec.Prediction.WaitMinutes - mean
		sq += d * d
	}
	summary.MeanWait = round1(mean)
	summary.StdDevWait = round1(math.Sqrt(sq / float64(len(ranked))))
	summary.AvailabilityScore = round1(100 * float64(summary.TierCounts[scheduling.TierLow]) / float64(len(ranked)))
	best := ranked[0]
	summary.Best = &best
	return summary, nil
}

// NextAvailable returns the earliest free slot from now, scanning day by day
// to the end of the horizon.
func (r *Ranker) NextAvailable(ctx context.Context, service scheduling.ServiceType) (Recommendation, error) {
	if err := r.checkService(service); err != nil {
		return Recommendation{}, err
	}
	today := r.extractor.Today()
	for offset := 0; offset <= r.extractor.HorizonDays(); offset++ {
		date := today.AddDays(offset)
		slots, err := r.generator.Candidates(ctx, date, service, r.granularity)
		if err != nil {
			return Recommendation{}, err
		}
		if len(slots) == 0 {
			continue
		}
		occ := r.hourlyOccupancy(ctx, date)
		first := slots[0]
		fv, err := r.extractor.ExtractSlot(first, scheduling.Signals{Occupancy: occ[first.Time.Hour]})
		if err != nil {
			return Recommendation{}, err
		}
		return Recommendation{Slot: first, Prediction: r.predictor.Predict(fv)}, nil
	}
	return Recommendation{}, ErrNoAvailability
}

func round1(v float64) float64 {
	return math.Round(v*10) / 10
}
