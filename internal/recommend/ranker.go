package recommend

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"cloud.google.com/go/civil"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/kungukcm/Hospital-Booking-System/internal/scheduling"
	"github.com/kungukcm/Hospital-Booking-System/pkg/logging"
)

// ErrNoAvailability is returned when no free slot exists within the horizon.
var ErrNoAvailability = errors.New("recommend: no availability within the scheduling horizon")

// Recommendation pairs a slot with its predicted wait.
type Recommendation struct {
	Slot       scheduling.TimeSlot   `json:"slot"`
	Prediction scheduling.Prediction `json:"prediction"`
}

// List is ordered by ascending wait; rank is the position.
type List []Recommendation

// RankerOption customizes a Ranker.
type RankerOption func(*Ranker)

// WithOccupancy feeds live occupancy into every prediction.
func WithOccupancy(src OccupancySource) RankerOption {
	return func(r *Ranker) {
		r.occupancy = src
	}
}

// WithGranularity sets the slot step in minutes.
func WithGranularity(minutes int) RankerOption {
	return func(r *Ranker) {
		if minutes > 0 {
			r.granularity = minutes
		}
	}
}

func WithRankerLogger(logger *logging.Logger) RankerOption {
	return func(r *Ranker) {
		if logger != nil {
			r.logger = logger
		}
	}
}

// Ranker answers every slot query. Chat tools and HTTP endpoints share one
// Ranker so both surfaces return identical results.
type Ranker struct {
	extractor   *scheduling.Extractor
	predictor   *scheduling.Predictor
	generator   *Generator
	occupancy   OccupancySource
	granularity int
	logger      *logging.Logger
	tracer      trace.Tracer
}

func NewRanker(extractor *scheduling.Extractor, predictor *scheduling.Predictor, generator *Generator, opts ...RankerOption) *Ranker {
	if extractor == nil {
		panic("recommend: extractor cannot be nil")
	}
	if predictor == nil {
		panic("recommend: predictor cannot be nil")
	}
	if generator == nil {
		panic("recommend: generator cannot be nil")
	}
	r := &Ranker{
		extractor:   extractor,
		predictor:   predictor,
		generator:   generator,
		granularity: 30,
		logger:      logging.Default(),
		tracer:      otel.Tracer("hospital.internal.recommend"),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

func (r *Ranker) Catalog() *scheduling.Catalog { return r.extractor.Catalog() }

func (r *Ranker) Thresholds() scheduling.Thresholds { return r.predictor.Thresholds() }

func (r *Ranker) WorkingHours() WorkingHours { return r.generator.Hours() }

// Today returns the current date in the hospital timezone.
func (r *Ranker) Today() civil.Date { return r.extractor.Today() }

// Now returns the current time in the hospital timezone.
func (r *Ranker) Now() time.Time { return r.extractor.Now() }

// Recommend returns the k slots with the lowest predicted wait.
func (r *Ranker) Recommend(ctx context.Context, service scheduling.ServiceType, date civil.Date, k int) (List, error) {
	if k <= 0 {
		return nil, fmt.Errorf("%w: k must be at least 1, got %d", scheduling.ErrInvalidInput, k)
	}
	ranked, err := r.rank(ctx, service, date)
	if err != nil {
		return nil, err
	}
	return truncate(ranked, k), nil
}

// LeastBusy is Recommend under the name the chat tools use.
func (r *Ranker) LeastBusy(ctx context.Context, service scheduling.ServiceType, date civil.Date, k int) (List, error) {
	return r.Recommend(ctx, service, date, k)
}

// Busiest returns the k slots with the highest predicted wait, the reverse of the ranking.
func (r *Ranker) Busiest(ctx context.Context, service scheduling.ServiceType, date civil.Date, k int) (List, error) {
	if k <= 0 {
		return nil, fmt.Errorf("%w: k must be at least 1, got %d", scheduling.ErrInvalidInput, k)
	}
	ranked, err := r.rank(ctx, service, date)
	if err != nil {
		return nil, err
	}
	reversed := make(List, len(ranked))
	for i, rec := range ranked {
		reversed[len(ranked)-1-i] = rec
	}
	return truncate(reversed, k), nil
}

// PredictSingle predicts the wait for one slot without booking it. The slot
// does not need to be free or inside working hours.
func (r *Ranker) PredictSingle(ctx context.Context, service scheduling.ServiceType, date civil.Date, t civil.Time) (scheduling.Prediction, error) {
	if err := r.checkService(service); err != nil {
		return scheduling.Prediction{}, err
	}
	if err := r.extractor.CheckDate(date); err != nil {
		return scheduling.Prediction{}, err
	}
	occ := r.hourlyOccupancy(ctx, date)
	slot := scheduling.TimeSlot{Date: date, Time: t, Service: service}
	fv, err := r.extractor.Extract(service, slot.In(r.extractor.Location()), scheduling.Signals{Occupancy: occ[t.Hour]})
	if err != nil {
		return scheduling.Prediction{}, err
	}
	return r.predictor.Predict(fv), nil
}

func (r *Ranker) rank(ctx context.Context, service scheduling.ServiceType, date civil.Date) (List, error) {
	ctx, span := r.tracer.Start(ctx, "recommend.rank", trace.WithAttributes(
		attribute.String("service", string(service)),
		attribute.String("date", date.String()),
	))
	defer span.End()

	if err := r.checkService(service); err != nil {
		return nil, err
	}
	if err := r.extractor.CheckDate(date); err != nil {
		return nil, err
	}
	slots, err := r.generator.Candidates(ctx, date, service, r.granularity)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}
	occ := r.hourlyOccupancy(ctx, date)

	out := make(List, 0, len(slots))
	for _, slot := range slots {
		fv, err := r.extractor.ExtractSlot(slot, scheduling.Signals{Occupancy: occ[slot.Time.Hour]})
		if err != nil {
			span.RecordError(err)
			return nil, err
		}
		out = append(out, Recommendation{Slot: slot, Prediction: r.predictor.Predict(fv)})
	}
	sortRecommendations(out)
	span.SetAttributes(attribute.Int("candidates", len(out)))
	return out, nil
}

func (r *Ranker) checkService(service scheduling.ServiceType) error {
	if !r.extractor.Catalog().Contains(service) {
		return fmt.Errorf("%w: unknown service %q", scheduling.ErrInvalidInput, service)
	}
	return nil
}

// hourlyOccupancy degrades to zero occupancy when the source fails.
func (r *Ranker) hourlyOccupancy(ctx context.Context, date civil.Date) map[int]float64 {
	if r.occupancy == nil {
		return nil
	}
	occ, err := r.occupancy.HourlyOccupancy(ctx, date)
	if err != nil {
		r.logger.Warn("occupancy unavailable, predicting without it", "date", date.String(), "error", err)
		return nil
	}
	return occ
}

// sortRecommendations orders by wait, then time of day, then service name.
func sortRecommendations(list List) {
	sort.SliceStable(list, func(i, j int) bool {
		a, b := list[i], list[j]
		if a.Prediction.WaitMinutes != b.Prediction.WaitMinutes {
			return a.Prediction.WaitMinutes < b.Prediction.WaitMinutes
		}
		return a.Slot.Less(b.Slot)
	})
}

func truncate(list List, k int) List {
	if len(list) > k {
		list = list[:k]
	}
	out := make(List, len(list))
	copy(out, list)
	return out
}
