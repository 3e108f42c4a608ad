// Package runtime is the control plane that governs how and when tools
// may run. A Runtime owns the four pieces of per-session mutable state
// (result cache, failure map, round counter, plan gate) and threads every
// tool call through the same pipeline:
//
//	plan gate -> failure breaker -> validation -> cache -> middleware ->
//	breaker record -> cache store -> audit
//
// One Runtime is constructed per chat session and passed by reference;
// there are no package-level singletons.
package runtime

import (
	"context"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/singleflight"

	"github.com/HathorNetwork/hathor-playground-sub001/internal/cache"
	"github.com/HathorNetwork/hathor-playground-sub001/internal/config"
	"github.com/HathorNetwork/hathor-playground-sub001/internal/guard"
	"github.com/HathorNetwork/hathor-playground-sub001/internal/middleware"
	"github.com/HathorNetwork/hathor-playground-sub001/internal/observability"
	"github.com/HathorNetwork/hathor-playground-sub001/internal/plangate"
	"github.com/HathorNetwork/hathor-playground-sub001/internal/toolcall"
	"github.com/HathorNetwork/hathor-playground-sub001/internal/validate"
	"github.com/HathorNetwork/hathor-playground-sub001/pkg/models"
)

// Recorder receives an audit entry for every executed or cache-served
// tool call. Policy-blocked calls are not recorded: they never produce
// an effect to account for.
type Recorder interface {
	Record(ctx context.Context, entry AuditEntry) error
}

// AuditEntry describes one admitted tool call for the audit log.
type AuditEntry struct {
	SessionID string
	CallID    string
	Tool      string
	Signature string
	Success   bool
	Cached    bool
	Duration  time.Duration
	Error     string
}

// EventSink receives tool lifecycle events. Must not block.
type EventSink func(models.ToolEvent)

// Options configures a Runtime. Config is required; the rest default to
// inert implementations.
type Options struct {
	Config  *config.Config
	Logger  *observability.Logger
	Metrics *observability.Metrics
	Tracer  *observability.Tracer
	Auditor Recorder
	Events  EventSink
}

// Runtime coordinates tool execution for one chat session.
type Runtime struct {
	cfg      *config.Config
	registry *Registry
	cache    *cache.ResultCache
	breaker  *guard.Breaker
	rounds   *guard.RoundLimiter
	gate     *plangate.Gate
	logger   *observability.Logger
	metrics  *observability.Metrics
	tracer   *observability.Tracer
	auditor  Recorder
	events   EventSink
	flight   singleflight.Group
}

// New creates a Runtime for a single chat session.
func New(opts Options) *Runtime {
	cfg := opts.Config
	if cfg == nil {
		cfg = config.Default()
	}
	logger := opts.Logger
	if logger == nil {
		logger = observability.NewLogger(observability.LogConfig{Level: "error"})
	}
	tracer := opts.Tracer
	if tracer == nil {
		tracer, _ = observability.NewTracer(observability.TraceConfig{})
	}

	return &Runtime{
		cfg:      cfg,
		registry: NewRegistry(),
		cache: cache.New(cache.Options{
			TTL:        cfg.Cache.TTL,
			MaxEntries: cfg.Cache.MaxEntries,
		}),
		breaker: guard.NewBreaker(cfg.Limits.MaxFailuresPerCall),
		rounds:  guard.NewRoundLimiter(cfg.Limits.MaxToolRounds),
		gate:    plangate.New(),
		logger:  logger,
		metrics: opts.Metrics,
		tracer:  tracer,
		auditor: opts.Auditor,
		events:  opts.Events,
	}
}

// Register adds a tool to the runtime's registry.
func (r *Runtime) Register(tool Tool) {
	r.registry.Register(tool)
}

// Registry exposes the tool registry for transports that need to
// describe the available tools to the model.
func (r *Runtime) Registry() *Registry {
	return r.registry
}

// Cache exposes the result cache for lifecycle wiring (watchers,
// janitors).
func (r *Runtime) Cache() *cache.ResultCache {
	return r.cache
}

// GateState returns the plan gate's current state.
func (r *Runtime) GateState() plangate.State {
	return r.gate.State()
}

// OnNewTurn resets the round limiter, the failure breaker, and the plan
// gate together before the next call is admitted. Called when a user
// message arrives.
func (r *Runtime) OnNewTurn() {
	if r.metrics != nil {
		r.metrics.RoundsConsumed.Observe(float64(r.rounds.Rounds()))
	}
	r.rounds.Reset()
	r.breaker.Reset()
	r.gate.BeginTurn()
}

// OnClear resets all control-plane state on an explicit chat clear.
// In-flight effects stay committed; only the bookkeeping is dropped.
func (r *Runtime) OnClear() {
	r.rounds.Reset()
	r.breaker.Reset()
	r.gate.Reset()
	r.cache.Invalidate("", nil)
}

// ObserveAssistantText scans a completed assistant message for the plan
// and reflection markers and advances the gate.
func (r *Runtime) ObserveAssistantText(text string) plangate.State {
	return r.gate.ObserveAssistantText(text)
}

// CanAutoContinue reports whether the transport may continue the
// conversation without user input, consuming one round if so.
func (r *Runtime) CanAutoContinue() bool {
	return r.rounds.CanAutoContinue()
}

// RunTool executes a single tool call through the full pipeline and
// always returns an envelope.
func (r *Runtime) RunTool(ctx context.Context, name string, args map[string]any) models.ToolResult {
	callID := uuid.NewString()
	ctx = observability.AddToolCallID(ctx, callID)
	ctx, span := r.tracer.TraceToolExecution(ctx, name, callID)
	defer span.End()

	r.emit(models.ToolEvent{ToolCallID: callID, ToolName: name, Stage: models.ToolEventRequested, StartedAt: time.Now()})

	// Plan gate: a policy rejection, not an operational failure. The
	// breaker never hears about it.
	if !r.gate.Admits() {
		r.logger.Info(ctx, "tool call rejected by plan gate", "tool", name, "state", string(r.gate.State()))
		r.blockMetric(name, models.BlockPlanGate)
		r.emit(models.ToolEvent{ToolCallID: callID, ToolName: name, Stage: models.ToolEventBlocked, BlockReason: models.BlockPlanGate})
		return r.gate.RejectEnvelope(name)
	}

	// Failure-loop breaker: refuse a third identical attempt.
	if r.breaker.ShouldBlock(name, args) {
		r.logger.Warn(ctx, "tool call blocked after repeated identical failures", "tool", name)
		r.blockMetric(name, models.BlockFailureLoop)
		r.emit(models.ToolEvent{ToolCallID: callID, ToolName: name, Stage: models.ToolEventBlocked, BlockReason: models.BlockFailureLoop})
		return r.breaker.BlockEnvelope(name)
	}

	tool, found := r.registry.Get(name)
	if !found {
		res := models.Fail("unknown tool: "+name, "tool not found: "+name)
		r.breaker.RecordFailure(name, args)
		return res
	}

	// Validation short-circuits before the cache and middleware, and
	// does not increment the failure counter: bad input is the
	// caller's bug, not a retryable condition.
	if verdict := r.validateCall(tool, args); !verdict.Valid {
		r.logger.Info(ctx, "tool call failed validation", "tool", name, "errors", verdict.Errors)
		r.blockMetric(name, models.BlockValidation)
		r.emit(models.ToolEvent{ToolCallID: callID, ToolName: name, Stage: models.ToolEventBlocked, BlockReason: models.BlockValidation})
		return verdict.ToEnvelope()
	}
	warnings := r.validateWarnings(tool, args)

	// Cache lookup for read-dependent tools.
	cacheable := cache.IsReadTool(name)
	if cacheable {
		if hit := r.cache.Get(name, args, 0); hit != nil {
			r.cacheMetric(name, "hit")
			r.logger.Debug(ctx, "cache hit", "tool", name)
			r.emit(models.ToolEvent{ToolCallID: callID, ToolName: name, Stage: models.ToolEventCached})
			r.audit(ctx, callID, name, args, *hit, true)
			// A hit carries the same soft warnings a fresh execution
			// would, so identical calls read identically to the agent.
			return hit.WithWarnings(warnings...)
		}
		r.cacheMetric(name, "miss")
	}

	result := r.execute(ctx, callID, tool, name, args, cacheable)

	// Breaker accounting and cache maintenance happen only for calls
	// that actually reached the executor.
	if result.Success {
		r.breaker.RecordSuccess(name, args)
		if cacheable && !isCachedResult(result) {
			r.cache.Set(name, args, result)
		}
		if mutates(tool) {
			swept := r.cache.InvalidateOnFileChange(pathArg(args))
			if swept > 0 {
				r.logger.Debug(ctx, "cache swept after mutation", "tool", name, "entries", swept)
			}
		}
	} else {
		count := r.breaker.RecordFailure(name, args)
		r.logger.Warn(ctx, "tool execution failed", "tool", name, "error", result.Error, "consecutive_failures", count)
	}

	r.audit(ctx, callID, name, args, result, false)
	return result.WithWarnings(warnings...)
}

// execute runs the middleware-wrapped executor, collapsing concurrent
// identical read calls into one execution.
func (r *Runtime) execute(ctx context.Context, callID string, tool Tool, name string, args map[string]any, cacheable bool) models.ToolResult {
	opts := middleware.Options{
		Timeout:      r.cfg.Execution.Timeout,
		RetryBackoff: r.cfg.Execution.RetryBackoff,
		OnRetry: func(attempt int, lastErr string) {
			r.emit(models.ToolEvent{
				ToolCallID: callID,
				ToolName:   name,
				Stage:      models.ToolEventRetrying,
				Attempt:    attempt,
				Error:      lastErr,
			})
		},
	}
	// A retried write must be provably idempotent or it is not retried
	// automatically; only read tools get middleware retries.
	if cacheable && !mutates(tool) {
		opts.Retries = r.cfg.Execution.ReadRetries
	}

	start := time.Now()
	r.emit(models.ToolEvent{ToolCallID: callID, ToolName: name, Stage: models.ToolEventStarted, StartedAt: start})

	run := func() models.ToolResult {
		return middleware.Execute(ctx, name, tool.Execute, args, opts)
	}

	var result models.ToolResult
	if cacheable {
		sig := toolcall.Signature(name, args)
		v, _, _ := r.flight.Do(sig, func() (any, error) {
			return run(), nil
		})
		result = v.(models.ToolResult)
	} else {
		result = run()
	}

	status := "success"
	stage := models.ToolEventSucceeded
	if !result.Success {
		status = "error"
		stage = models.ToolEventFailed
	}
	if r.metrics != nil {
		r.metrics.ToolExecutions.WithLabelValues(name, status).Inc()
		r.metrics.ToolDuration.WithLabelValues(name).Observe(time.Since(start).Seconds())
		if result.Metadata != nil && result.Metadata.RetryCount > 0 {
			r.metrics.Retries.WithLabelValues(name).Add(float64(result.Metadata.RetryCount))
		}
	}
	r.emit(models.ToolEvent{
		ToolCallID: callID,
		ToolName:   name,
		Stage:      stage,
		Error:      result.Error,
		StartedAt:  start,
		FinishedAt: time.Now(),
	})
	return result
}

func (r *Runtime) validateCall(tool Tool, args map[string]any) validate.Result {
	results := []validate.Result{validate.Args(tool.Name(), tool.Schema(), args)}
	if v, ok := tool.(ArgValidator); ok {
		results = append(results, v.ValidateArgs(args))
	}
	return validate.Merge(results...)
}

// validateWarnings re-runs the domain validator to collect soft
// warnings for a call that passed. Validators are pure, so the second
// run is safe.
func (r *Runtime) validateWarnings(tool Tool, args map[string]any) []string {
	if v, ok := tool.(ArgValidator); ok {
		res := v.ValidateArgs(args)
		return append(res.Warnings, res.Suggestions...)
	}
	return nil
}

func (r *Runtime) audit(ctx context.Context, callID, name string, args map[string]any, result models.ToolResult, cached bool) {
	if r.auditor == nil {
		return
	}
	var duration time.Duration
	if result.Metadata != nil {
		duration = result.Metadata.ExecutionTime
	}
	entry := AuditEntry{
		SessionID: observability.GetSessionID(ctx),
		CallID:    callID,
		Tool:      name,
		Signature: toolcall.Signature(name, args),
		Success:   result.Success,
		Cached:    cached,
		Duration:  duration,
		Error:     result.Error,
	}
	if err := r.auditor.Record(ctx, entry); err != nil {
		r.logger.Warn(ctx, "audit record failed", "tool", name, "error", err)
	}
}

func (r *Runtime) emit(event models.ToolEvent) {
	if r.events != nil {
		r.events(event)
	}
}

func (r *Runtime) blockMetric(tool string, reason models.BlockReason) {
	if r.metrics != nil {
		r.metrics.PolicyBlocks.WithLabelValues(tool, string(reason)).Inc()
	}
}

func (r *Runtime) cacheMetric(tool, outcome string) {
	if r.metrics != nil {
		r.metrics.CacheLookups.WithLabelValues(tool, outcome).Inc()
	}
}

func mutates(tool Tool) bool {
	if m, ok := tool.(Mutator); ok {
		return m.Mutates()
	}
	return false
}

func isCachedResult(res models.ToolResult) bool {
	return res.Metadata != nil && res.Metadata.Cached
}

func pathArg(args map[string]any) string {
	if p, ok := args["path"].(string); ok {
		return p
	}
	return ""
}
