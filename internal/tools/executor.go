package tools

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/kungukcm/Hospital-Booking-System/internal/observability/metrics"
	"github.com/kungukcm/Hospital-Booking-System/pkg/logging"
)

const (
	defaultPoolSize = 4
	maxPoolSize     = 8
	defaultTimeout  = 10 * time.Second
)

// ExecutorOption customizes an Executor.
type ExecutorOption func(*Executor)

// WithPoolSize bounds concurrent calls per batch. Values are clamped to [1, 8].
func WithPoolSize(n int) ExecutorOption {
	return func(e *Executor) {
		switch {
		case n <= 0:
			e.poolSize = defaultPoolSize
		case n > maxPoolSize:
			e.poolSize = maxPoolSize
		default:
			e.poolSize = n
		}
	}
}

// WithCallTimeout sets the per-call deadline.
func WithCallTimeout(d time.Duration) ExecutorOption {
	return func(e *Executor) {
		if d > 0 {
			e.timeout = d
		}
	}
}

func WithExecutorLogger(logger *logging.Logger) ExecutorOption {
	return func(e *Executor) {
		if logger != nil {
			e.logger = logger
		}
	}
}

func WithToolMetrics(m *metrics.ToolMetrics) ExecutorOption {
	return func(e *Executor) {
		e.metrics = m
	}
}

// Executor runs batches of tool calls on a bounded pool.
type Executor struct {
	registry *Registry
	poolSize int
	timeout  time.Duration
	logger   *logging.Logger
	metrics  *metrics.ToolMetrics
	tracer   trace.Tracer
}

func NewExecutor(registry *Registry, opts ...ExecutorOption) *Executor {
	if registry == nil {
		panic("tools: registry cannot be nil")
	}
	e := &Executor{
		registry: registry,
		poolSize: defaultPoolSize,
		timeout:  defaultTimeout,
		logger:   logging.Default(),
		tracer:   otel.Tracer("hospital.internal.tools"),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

func (e *Executor) Registry() *Registry { return e.registry }

// ExecuteBatch runs every request and returns one result per request in
// request order. Requests without an ID are assigned one. A call that exceeds
// its timeout yields a timeout result without delaying its siblings; when ctx
// ends, calls that have not started are reported as canceled.
func (e *Executor) ExecuteBatch(ctx context.Context, reqs []Request) []Result {
	ctx, span := e.tracer.Start(ctx, "tools.execute_batch", trace.WithAttributes(
		attribute.Int("calls", len(reqs)),
	))
	defer span.End()

	results := make([]Result, len(reqs))
	sem := make(chan struct{}, e.poolSize)
	var wg sync.WaitGroup

	for i, req := range reqs {
		if req.ID == "" {
			req.ID = uuid.NewString()
		}
		wg.Add(1)
		go func(i int, req Request) {
			defer wg.Done()
			select {
			case sem <- struct{}{}:
			case <-ctx.Done():
				results[i] = e.record(req, Result{ID: req.ID, Name: req.Name}.fail(CodeCanceled, "turn ended before the call started"), 0)
				return
			}
			defer func() { <-sem }()
			if ctx.Err() != nil {
				results[i] = e.record(req, Result{ID: req.ID, Name: req.Name}.fail(CodeCanceled, "turn ended before the call started"), 0)
				return
			}
			results[i] = e.executeOne(ctx, req)
		}(i, req)
	}
	wg.Wait()
	return results
}

func (e *Executor) executeOne(parent context.Context, req Request) Result {
	ctx, span := e.tracer.Start(parent, "tools.call", trace.WithAttributes(
		attribute.String("tool", req.Name),
		attribute.String("call_id", req.ID),
	))
	defer span.End()

	callCtx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	start := time.Now()
	done := make(chan Result, 1)
	go func() {
		done <- e.registry.Execute(callCtx, req)
	}()

	var res Result
	select {
	case res = <-done:
		if res.Error != nil && res.Error.Code == CodeTimeout && parent.Err() != nil {
			res = Result{ID: req.ID, Name: req.Name}.fail(CodeCanceled, "turn ended before the call finished")
		}
	case <-callCtx.Done():
		if parent.Err() != nil {
			res = Result{ID: req.ID, Name: req.Name}.fail(CodeCanceled, "turn ended before the call finished")
		} else {
			res = Result{ID: req.ID, Name: req.Name}.fail(CodeTimeout, "tool call timed out after "+e.timeout.String())
		}
		e.logger.Warn("tool call abandoned", "tool", req.Name, "call_id", req.ID, "code", res.Error.Code)
	}
	if res.Error != nil {
		span.SetAttributes(attribute.String("error_code", res.Error.Code))
	}
	return e.record(req, res, time.Since(start))
}

func (e *Executor) record(req Request, res Result, elapsed time.Duration) Result {
	code := ""
	if res.Error != nil {
		code = res.Error.Code
	}
	e.metrics.ObserveCall(req.Name, string(res.Status), code, elapsed.Seconds())
	return res
}
