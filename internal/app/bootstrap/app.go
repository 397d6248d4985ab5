package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/kungukcm/Hospital-Booking-System/internal/appointments"
	appconfig "github.com/kungukcm/Hospital-Booking-System/internal/config"
	"github.com/kungukcm/Hospital-Booking-System/internal/conversation"
	"github.com/kungukcm/Hospital-Booking-System/internal/observability/metrics"
	"github.com/kungukcm/Hospital-Booking-System/internal/recommend"
	"github.com/kungukcm/Hospital-Booking-System/internal/tools"
	"github.com/kungukcm/Hospital-Booking-System/pkg/logging"
)

// Deps carries optional collaborators. Zero values select production defaults.
type Deps struct {
	AWS        *aws.Config
	Registerer prometheus.Registerer
	Clock      func() time.Time
	// Store and Model override the configured ones, mainly for tests.
	Store appointments.Store
	Model conversation.Model
}

// App holds the wired components served by the API.
type App struct {
	Ranker       *recommend.Ranker
	Store        appointments.Store
	Executor     *tools.Executor
	Conversation *conversation.Service

	closers []func() error
}

// Build wires every component from cfg. Conversation is nil when no language
// model is configured.
func Build(ctx context.Context, cfg *appconfig.Config, deps Deps, logger *logging.Logger) (*App, error) {
	if cfg == nil {
		return nil, fmt.Errorf("bootstrap: config is required")
	}
	if logger == nil {
		logger = logging.Default()
	}
	if deps.Clock == nil {
		deps.Clock = time.Now
	}
	app := &App{}

	store := deps.Store
	if store == nil {
		built, pool, err := BuildAppointmentStore(ctx, cfg, logger)
		if err != nil {
			return nil, err
		}
		if pool != nil {
			app.closers = append(app.closers, func() error { pool.Close(); return nil })
		}
		store = built
	}
	app.Store = store

	ranker, err := BuildRanker(cfg, store, deps.Registerer, deps.Clock, logger)
	if err != nil {
		_ = app.Close()
		return nil, err
	}
	app.Ranker = ranker

	hospital := tools.NewHospital(ranker, store, cfg.DefaultRecommendations)
	registry, err := tools.NewRegistry(hospital.Tools(), tools.WithRegistryLogger(logger))
	if err != nil {
		_ = app.Close()
		return nil, fmt.Errorf("bootstrap: %w", err)
	}
	if err := registry.Require(tools.HospitalToolNames...); err != nil {
		_ = app.Close()
		return nil, fmt.Errorf("bootstrap: %w", err)
	}
	app.Executor = tools.NewExecutor(registry,
		tools.WithPoolSize(cfg.ToolPoolSize),
		tools.WithCallTimeout(cfg.ToolCallTimeout),
		tools.WithExecutorLogger(logger),
		tools.WithToolMetrics(metrics.NewToolMetrics(deps.Registerer)),
	)

	model := deps.Model
	if model == nil {
		built, closeModel, err := BuildModel(ctx, cfg, deps.AWS, logger)
		if err != nil {
			_ = app.Close()
			return nil, err
		}
		app.closers = append(app.closers, closeModel)
		model = built
	}
	if model == nil {
		return app, nil
	}

	redisClient := BuildRedisClient(ctx, cfg, logger, true)
	if redisClient != nil {
		app.closers = append(app.closers, redisClient.Close)
	}
	hours := ranker.WorkingHours()
	orchestrator := conversation.NewOrchestrator(model, app.Executor,
		conversation.WithMaxIterations(cfg.MaxIterations),
		conversation.WithTurnTimeout(cfg.TurnTimeout),
		conversation.WithSystemPrompt(conversation.SystemPrompt(conversation.PromptConfig{
			HospitalName: cfg.HospitalName,
			Location:     cfg.Location(),
			Services:     ranker.Catalog().Names(),
			OpenTime:     hours.Start.String()[:5],
			CloseTime:    hours.End.String()[:5],
		})),
		conversation.WithOrchestratorLogger(logger),
		conversation.WithConversationMetrics(metrics.NewConversationMetrics(deps.Registerer)),
		conversation.WithOrchestratorClock(deps.Clock),
	)
	app.Conversation = conversation.NewService(orchestrator, BuildHistoryStore(redisClient, cfg, logger), logger,
		conversation.WithTurnLock(BuildTurnLock(redisClient, cfg)),
	)
	return app, nil
}

// Close releases pools and clients in reverse order of creation.
func (a *App) Close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	a.closers = nil
	return errors.Join(errs...)
}
