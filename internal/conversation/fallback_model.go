package conversation

import (
	"context"

	"github.com/kungukcm/Hospital-Booking-System/pkg/logging"
)

// FallbackModel wraps a primary model with a fallback provider. If the
// primary fails and the turn is still live, the fallback is tried.
type FallbackModel struct {
	primary  Model
	fallback Model
	logger   *logging.Logger
}

// NewFallbackModel returns primary unchanged when fallback is nil.
func NewFallbackModel(primary, fallback Model, logger *logging.Logger) Model {
	if primary == nil {
		panic("conversation: primary model cannot be nil")
	}
	if fallback == nil {
		return primary
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &FallbackModel{primary: primary, fallback: fallback, logger: logger}
}

func (m *FallbackModel) Generate(ctx context.Context, req ModelRequest) (ModelReply, error) {
	reply, err := m.primary.Generate(ctx, req)
	if err == nil {
		return reply, nil
	}
	if ctx.Err() != nil {
		return ModelReply{}, err
	}

	m.logger.Warn("primary model failed, attempting fallback", "error", err)
	reply, fallbackErr := m.fallback.Generate(ctx, req)
	if fallbackErr != nil {
		m.logger.Error("fallback model also failed",
			"primary_error", err.Error(),
			"fallback_error", fallbackErr.Error(),
		)
		return ModelReply{}, fallbackErr
	}
	m.logger.Info("fallback model succeeded after primary failure")
	return reply, nil
}
