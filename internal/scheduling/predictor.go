package scheduling

import (
	"errors"
	"fmt"
	"math"

	"github.com/kungukcm/Hospital-Booking-System/internal/observability/metrics"
	"github.com/kungukcm/Hospital-Booking-System/pkg/logging"
)

var errMalformedEstimate = errors.New("scheduling: malformed estimator output")

// PredictorOption customizes a Predictor.
type PredictorOption func(*Predictor)

// WithEstimator plugs in a learned base-wait estimator.
func WithEstimator(e Estimator) PredictorOption {
	return func(p *Predictor) {
		p.estimator = e
	}
}

func WithPredictorLogger(logger *logging.Logger) PredictorOption {
	return func(p *Predictor) {
		if logger != nil {
			p.logger = logger
		}
	}
}

func WithPredictionMetrics(m *metrics.PredictionMetrics) PredictorOption {
	return func(p *Predictor) {
		p.metrics = m
	}
}

// Predictor computes waits with the baseline formula
//
//	base(service) × day(weekday) × hour(bucket) × service(service) × (1 + w × occupancy)
//
// clamped to [MinWait, MaxWait] and rounded to a tenth of a minute.
type Predictor struct {
	tables    Tables
	estimator Estimator
	logger    *logging.Logger
	metrics   *metrics.PredictionMetrics
}

// NewPredictor validates tables against the catalog.
func NewPredictor(tables Tables, catalog *Catalog, opts ...PredictorOption) (*Predictor, error) {
	if err := tables.Validate(catalog); err != nil {
		return nil, err
	}
	p := &Predictor{
		tables: tables,
		logger: logging.Default(),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p, nil
}

func (p *Predictor) Thresholds() Thresholds { return p.tables.Thresholds }

// Predict never fails for a vector produced by an Extractor over the same catalog.
func (p *Predictor) Predict(fv FeatureVector) Prediction {
	slot := fv.Slot
	base := p.tables.BaseWait[slot.Service]
	source := SourceBaseline

	if p.estimator != nil {
		estimate, err := p.estimate(fv)
		if err != nil {
			reason := "estimator_error"
			if errors.Is(err, errMalformedEstimate) {
				reason = "malformed_output"
			}
			p.logger.Warn("prediction degraded",
				"reason", reason,
				"service", slot.Service,
				"slot", slot.String(),
				"error", err,
			)
			p.metrics.ObserveDegraded(reason)
		} else {
			base = estimate
			source = SourceEstimator
		}
	}

	bucket := p.tables.bucket(slot.Time.Hour)
	wait := base *
		p.tables.dayMultiplier(Weekday(slot.Date)) *
		bucket.Multiplier *
		p.tables.ServiceMultipliers[slot.Service] *
		(1 + p.tables.OccupancyWeight*fv.Occupancy)
	wait = math.Min(math.Max(wait, p.tables.MinWait), p.tables.MaxWait)
	wait = math.Round(wait*10) / 10

	p.metrics.ObservePrediction(string(source))
	return Prediction{
		WaitMinutes: wait,
		Confidence:  bucket.Confidence,
		Tier:        p.tables.Thresholds.Classify(wait),
		Source:      source,
	}
}

func (p *Predictor) estimate(fv FeatureVector) (v float64, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("scheduling: estimator panic: %v", r)
		}
	}()
	out, err := p.estimator.Estimate(fv)
	if err != nil {
		return 0, err
	}
	if len(out) != 1 {
		return 0, fmt.Errorf("%w: expected 1 value, got %d", errMalformedEstimate, len(out))
	}
	v = out[0]
	if math.IsNaN(v) || math.IsInf(v, 0) || v <= 0 {
		return 0, fmt.Errorf("%w: %v", errMalformedEstimate, v)
	}
	return v, nil
}
