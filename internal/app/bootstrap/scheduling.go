package bootstrap

import (
	"fmt"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/kungukcm/Hospital-Booking-System/internal/appointments"
	appconfig "github.com/kungukcm/Hospital-Booking-System/internal/config"
	"github.com/kungukcm/Hospital-Booking-System/internal/observability/metrics"
	"github.com/kungukcm/Hospital-Booking-System/internal/recommend"
	"github.com/kungukcm/Hospital-Booking-System/internal/scheduling"
	"github.com/kungukcm/Hospital-Booking-System/pkg/logging"
)

// BuildRanker wires the catalog, the prediction tables, the optional learned
// estimator and the slot generator into a Ranker backed by store.
func BuildRanker(cfg *appconfig.Config, store appointments.Store, reg prometheus.Registerer, now func() time.Time, logger *logging.Logger) (*recommend.Ranker, error) {
	if cfg == nil {
		return nil, fmt.Errorf("bootstrap: config is required")
	}
	if logger == nil {
		logger = logging.Default()
	}
	if now == nil {
		now = time.Now
	}

	catalog := scheduling.DefaultCatalog()
	tables := scheduling.DefaultTables()
	if path := strings.TrimSpace(cfg.SchedulingTablesPath); path != "" {
		loaded, err := scheduling.LoadTables(path)
		if err != nil {
			return nil, fmt.Errorf("bootstrap: load scheduling tables: %w", err)
		}
		tables = loaded
		logger.Info("scheduling tables loaded", "path", path)
	}

	predictorOpts := []scheduling.PredictorOption{
		scheduling.WithPredictorLogger(logger),
		scheduling.WithPredictionMetrics(metrics.NewPredictionMetrics(reg)),
	}
	if path := strings.TrimSpace(cfg.LearnedEstimatorPath); path != "" {
		estimator, err := scheduling.LoadLinearEstimator(path)
		if err != nil {
			return nil, fmt.Errorf("bootstrap: load learned estimator: %w", err)
		}
		predictorOpts = append(predictorOpts, scheduling.WithEstimator(estimator))
		logger.Info("learned estimator enabled", "path", path)
	}
	predictor, err := scheduling.NewPredictor(tables, catalog, predictorOpts...)
	if err != nil {
		return nil, fmt.Errorf("bootstrap: %w", err)
	}

	loc := cfg.Location()
	extractor := scheduling.NewExtractor(catalog,
		scheduling.WithHorizonDays(cfg.HorizonDays),
		scheduling.WithLocation(loc),
		scheduling.WithClock(now),
	)

	hours, err := recommend.ParseWorkingHours(cfg.WorkingHoursStart, cfg.WorkingHoursEnd)
	if err != nil {
		return nil, fmt.Errorf("bootstrap: %w", err)
	}
	generator := recommend.NewGenerator(hours, store, recommend.WithGeneratorClock(now, loc))

	return recommend.NewRanker(extractor, predictor, generator,
		recommend.WithOccupancy(recommend.NewStoreOccupancy(store, cfg.SlotCapacity, cfg.SlotGranularityMinutes)),
		recommend.WithGranularity(cfg.SlotGranularityMinutes),
		recommend.WithRankerLogger(logger),
	), nil
}
