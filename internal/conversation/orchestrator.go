package conversation

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/kungukcm/Hospital-Booking-System/internal/observability/metrics"
	"github.com/kungukcm/Hospital-Booking-System/internal/tools"
	"github.com/kungukcm/Hospital-Booking-System/pkg/logging"
)

const (
	defaultMaxIterations = 4
	defaultTurnTimeout   = 60 * time.Second
)

// PromptFunc renders the system prompt for the current time.
type PromptFunc func(now time.Time) string

// OrchestratorOption configures an Orchestrator.
type OrchestratorOption func(*Orchestrator)

// WithMaxIterations bounds model invocations per turn.
func WithMaxIterations(n int) OrchestratorOption {
	return func(o *Orchestrator) {
		if n > 0 {
			o.maxIterations = n
		}
	}
}

// WithTurnTimeout sets the deadline applied to every turn.
func WithTurnTimeout(d time.Duration) OrchestratorOption {
	return func(o *Orchestrator) {
		if d > 0 {
			o.turnTimeout = d
		}
	}
}

func WithSystemPrompt(fn PromptFunc) OrchestratorOption {
	return func(o *Orchestrator) {
		if fn != nil {
			o.prompt = fn
		}
	}
}

func WithOrchestratorLogger(logger *logging.Logger) OrchestratorOption {
	return func(o *Orchestrator) {
		if logger != nil {
			o.logger = logger
		}
	}
}

func WithConversationMetrics(m *metrics.ConversationMetrics) OrchestratorOption {
	return func(o *Orchestrator) {
		o.metrics = m
	}
}

func WithOrchestratorClock(now func() time.Time) OrchestratorOption {
	return func(o *Orchestrator) {
		if now != nil {
			o.now = now
		}
	}
}

// Orchestrator drives one turn between the model and the tool executor:
// the model is called with tools enabled, a requested batch is executed, and
// the model is called again in synthesis mode with tools disabled. Every model
// call counts against the iteration ceiling.
type Orchestrator struct {
	model         Model
	executor      *tools.Executor
	prompt        PromptFunc
	maxIterations int
	turnTimeout   time.Duration
	logger        *logging.Logger
	metrics       *metrics.ConversationMetrics
	tracer        trace.Tracer
	now           func() time.Time
}

func NewOrchestrator(model Model, executor *tools.Executor, opts ...OrchestratorOption) *Orchestrator {
	if model == nil {
		panic("conversation: model cannot be nil")
	}
	if executor == nil {
		panic("conversation: tool executor cannot be nil")
	}
	o := &Orchestrator{
		model:         model,
		executor:      executor,
		prompt:        func(time.Time) string { return "" },
		maxIterations: defaultMaxIterations,
		turnTimeout:   defaultTurnTimeout,
		logger:        logging.Default(),
		tracer:        otel.Tracer("hospital.internal.conversation"),
		now:           time.Now,
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// RunTurn appends userMessage to a copy of state and runs the turn to a final
// answer. The input state is never modified. On failure the returned state is
// the partial conversation and err is an *OrchestratorError, except for blank
// input which yields ErrEmptyMessage before any model call.
func (o *Orchestrator) RunTurn(ctx context.Context, state *State, userMessage string) (*State, string, error) {
	if state == nil {
		state = NewState(uuid.NewString())
	}
	work := state.Clone()
	text := strings.TrimSpace(userMessage)
	if text == "" {
		return work, "", ErrEmptyMessage
	}

	ctx, cancel := context.WithTimeout(ctx, o.turnTimeout)
	defer cancel()
	ctx, span := o.tracer.Start(ctx, "conversation.run_turn", trace.WithAttributes(
		attribute.String("conversation_id", work.ID),
	))
	defer span.End()

	start := o.now()
	logger := o.logger.With("conversation_id", work.ID)
	work.Messages = append(work.Messages, Message{Role: RoleUser, Text: text, At: start})

	definitions := o.executor.Registry().Definitions()
	toolsEnabled := true
	iterations := 0

	fail := func(reason Reason, cause error) (*State, string, error) {
		work.UpdatedAt = o.now()
		err := &OrchestratorError{Reason: reason, Iterations: iterations, State: work, Err: cause}
		span.RecordError(err)
		span.SetAttributes(attribute.String("outcome", string(reason)), attribute.Int("iterations", iterations))
		logger.Warn("turn failed", "reason", reason, "iterations", iterations, "error", cause)
		o.metrics.ObserveTurn(string(reason), iterations, o.now().Sub(start).Seconds())
		return work, "", err
	}

	for {
		if err := ctx.Err(); err != nil {
			return fail(ReasonDeadline, err)
		}
		if iterations >= o.maxIterations {
			return fail(ReasonIterationLimit, nil)
		}
		iterations++

		reply, err := o.model.Generate(ctx, ModelRequest{
			System:       o.prompt(o.now()),
			Messages:     work.Messages,
			Tools:        definitions,
			ToolsEnabled: toolsEnabled,
		})
		if err != nil {
			if ctx.Err() != nil {
				return fail(ReasonDeadline, err)
			}
			return fail(ReasonModelFailure, err)
		}

		if toolsEnabled && len(reply.ToolCalls) > 0 {
			calls := assignCallIDs(reply.ToolCalls)
			work.Messages = append(work.Messages, Message{
				Role:      RoleAssistant,
				Text:      strings.TrimSpace(reply.Text),
				ToolCalls: calls,
				At:        o.now(),
			})
			logger.Info("executing tool batch", "iteration", iterations, "calls", len(calls))
			results := o.executor.ExecuteBatch(ctx, calls)
			work.Messages = append(work.Messages, Message{Role: RoleTool, ToolResults: results, At: o.now()})
			toolsEnabled = false
			continue
		}

		if !toolsEnabled && len(reply.ToolCalls) > 0 {
			logger.Warn("ignoring tool calls in synthesis", "iteration", iterations, "calls", len(reply.ToolCalls))
		}
		final := strings.TrimSpace(reply.Text)
		if final == "" {
			logger.Warn("model returned no text", "iteration", iterations, "tools_enabled", toolsEnabled)
			continue
		}

		work.Messages = append(work.Messages, Message{Role: RoleAssistant, Text: final, At: o.now()})
		work.UpdatedAt = o.now()
		span.SetAttributes(attribute.String("outcome", "completed"), attribute.Int("iterations", iterations))
		o.metrics.ObserveTurn("completed", iterations, o.now().Sub(start).Seconds())
		return work, final, nil
	}
}

func assignCallIDs(calls []tools.Request) []tools.Request {
	out := make([]tools.Request, len(calls))
	seen := make(map[string]struct{}, len(calls))
	for i, call := range calls {
		if _, dup := seen[call.ID]; call.ID == "" || dup {
			call.ID = fmt.Sprintf("call_%s", uuid.NewString())
		}
		seen[call.ID] = struct{}{}
		out[i] = call
	}
	return out
}

// IsOrchestratorError unwraps err into an *OrchestratorError.
func IsOrchestratorError(err error) (*OrchestratorError, bool) {
	var oe *OrchestratorError
	if errors.As(err, &oe) {
		return oe, true
	}
	return nil, false
}
