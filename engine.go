package relengine

import (
	"context"
	"log"
	"time"

	"github.com/google/uuid"
	"go.uber.org/atomic"
)

// ──────────────────────────────────────────────
// Relationship Engine — per-message orchestration
// ──────────────────────────────────────────────

// EngineConfig controls the persistence retry policy.
type EngineConfig struct {
	RetryAttempts  int           // total attempts, default 3
	RetryBaseDelay time.Duration // doubles each attempt, default 100ms
	Debug          bool
}

// DefaultEngineConfig returns production-ready defaults.
func DefaultEngineConfig() EngineConfig {
	return EngineConfig{
		RetryAttempts:  3,
		RetryBaseDelay: 100 * time.Millisecond,
	}
}

// EngineOptions carries the optional collaborators. Zero fields fall
// back to the lexical analyzer, the detailed credibility strategy, the
// canonical transition table, and an empty profile source.
type EngineOptions struct {
	Analyzer    EmotionAnalyzer
	Scorer      CredibilityStrategy
	Transitions TransitionStrategy
	Profiles    ProfileSource
	Config      EngineConfig
}

// EvaluationResult is the outcome of processing one inbound message.
type EvaluationResult struct {
	Context    *RelationshipContext `json:"context"`
	Emotion    *EmotionReading      `json:"emotion"`
	Metrics    DetailedMetrics      `json:"metrics"`
	Response   ResponseConfig       `json:"response"`
	Transition TransitionDecision   `json:"transition"`
}

// EngineStats is a point-in-time snapshot of engine counters.
type EngineStats struct {
	Processed   int64 `json:"processed"`
	Transitions int64 `json:"transitions"`
	Failures    int64 `json:"failures"`
}

// RelationshipEngine drives the evaluation pipeline: load context,
// infer emotion, append-then-recompute metrics, update credibility,
// evaluate the tier transition, persist with retry.
//
// The engine holds no cross-request mutable state; each invocation
// loads, mutates a deep copy, and persists a single per-user context,
// so the host may process different users concurrently. The bound
// credibility and transition strategies are fixed at construction and
// never mixed within a context's lifetime.
//
// Usage:
//
//	store := relengine.NewInMemoryContextStore()
//	engine := relengine.NewRelationshipEngine(store)
//
//	result, err := engine.ProcessInteraction(ctx, "user_001", "I am happy with this!")
type RelationshipEngine struct {
	store    ContextStore
	profiles ProfileSource
	analyzer EmotionAnalyzer
	scorer   CredibilityStrategy
	machine  *StateMachine
	metrics  *MetricsAggregator
	config   EngineConfig

	processed   atomic.Int64
	transitions atomic.Int64
	failures    atomic.Int64
}

// NewRelationshipEngine creates an engine bound to the given store.
func NewRelationshipEngine(store ContextStore, options ...EngineOptions) *RelationshipEngine {
	var opts EngineOptions
	if len(options) > 0 {
		opts = options[0]
	}
	if opts.Analyzer == nil {
		opts.Analyzer = NewLexicalEmotionAnalyzer()
	}
	if opts.Scorer == nil {
		opts.Scorer = NewDetailedCredibilityScorer()
	}
	if opts.Profiles == nil {
		opts.Profiles = NewStaticProfileSource()
	}
	if opts.Config.RetryAttempts <= 0 {
		opts.Config.RetryAttempts = DefaultEngineConfig().RetryAttempts
	}
	if opts.Config.RetryBaseDelay <= 0 {
		opts.Config.RetryBaseDelay = DefaultEngineConfig().RetryBaseDelay
	}
	return &RelationshipEngine{
		store:    store,
		profiles: opts.Profiles,
		analyzer: opts.Analyzer,
		scorer:   opts.Scorer,
		machine:  NewStateMachine(opts.Transitions),
		metrics:  NewMetricsAggregator(),
		config:   opts.Config,
	}
}

// Stats returns a snapshot of the engine counters.
func (e *RelationshipEngine) Stats() EngineStats {
	return EngineStats{
		Processed:   e.processed.Load(),
		Transitions: e.transitions.Load(),
		Failures:    e.failures.Load(),
	}
}

// ProcessInteraction runs the full pipeline for one inbound message.
// All mutation happens on a deep copy; if any step fails, the
// previously persisted context is untouched and the error carries a
// stable code distinguishing validation, missing-context and transient
// failures.
func (e *RelationshipEngine) ProcessInteraction(ctx context.Context, userID, message string) (*EvaluationResult, error) {
	result, err := e.processInteraction(ctx, userID, message, time.Now())
	if err != nil {
		e.failures.Inc()
		return nil, err
	}
	e.processed.Inc()
	return result, nil
}

// ProcessInteractionAt is ProcessInteraction with an injected clock,
// used by tests and the monitor tick.
func (e *RelationshipEngine) ProcessInteractionAt(ctx context.Context, userID, message string, now time.Time) (*EvaluationResult, error) {
	result, err := e.processInteraction(ctx, userID, message, now)
	if err != nil {
		e.failures.Inc()
		return nil, err
	}
	e.processed.Inc()
	return result, nil
}

func (e *RelationshipEngine) processInteraction(ctx context.Context, userID, message string, now time.Time) (*EvaluationResult, error) {
	if userID == "" {
		return nil, NewValidationError("user id is empty")
	}

	work, err := e.loadOrCreate(ctx, userID)
	if err != nil {
		return nil, err
	}

	// 1. Emotion inference, committed under the hysteresis rule
	reading, err := e.analyzer.Infer(message, work)
	if err != nil {
		return nil, err
	}
	if ShouldCommitEmotion(work.EmotionalState, reading) {
		work.EmotionalState = reading.Dominant
	}

	// 2. Append the interaction, then recompute metrics from history
	work.AppendInteraction(InteractionRecord{
		ID:             uuid.NewString(),
		Timestamp:      now,
		Action:         "message",
		EmotionalState: work.EmotionalState,
	})
	detailed := e.metrics.AggregateDetailed(work)

	// 3. Credibility update
	profile, err := e.profiles.GetProfile(ctx, userID)
	if err != nil {
		return nil, NewTransientStoreError("profile lookup failed", err)
	}
	score, err := e.scorer.Score(profile, AnalyzeHistory(work.InteractionHistory), now)
	if err != nil {
		return nil, err
	}
	work.CredibilityScore = score
	detailed.CredibilityScore = score

	// 4. Tier transition (global override first, then the bound table)
	decision := e.machine.Evaluate(work.RelationshipState, detailed.RelationshipMetrics)
	if decision.Changed {
		change := StateChange{
			ID:            uuid.NewString(),
			PreviousState: work.RelationshipState,
			NewState:      decision.NextState,
			Reason:        decision.Reason,
			Timestamp:     now,
		}
		work.RelationshipState = decision.NextState
		work.RecordStateChange(change)
		detailed.LastStateChange = &change
		e.transitions.Inc()
		log.Printf("[RelationshipEngine] Tier transition | user=%s %s -> %s | reason=%s",
			userID, change.PreviousState, change.NewState, change.Reason)
	}

	// 5. Response configuration + next pipeline stage
	work.ResponseMode = DeriveResponseMode(work.RelationshipState, detailed.RelationshipMetrics)
	response := ResponseConfigFor(work.RelationshipState, work.EmotionalState)
	work.InteractionHistory[len(work.InteractionHistory)-1].ResponseType = response.Style

	nextStage := DerivePipelineStage(work.ResponseMode, work.CredibilityScore)
	if err := ValidateStageTransition(work.CurrentState, nextStage); err != nil {
		return nil, err
	}
	work.CurrentState = nextStage
	work.LastInteraction = now

	// 6. Validate, then persist with bounded retry
	if err := work.Validate(); err != nil {
		return nil, err
	}
	if err := e.putWithRetry(ctx, userID, work); err != nil {
		return nil, err
	}

	return &EvaluationResult{
		Context:    work,
		Emotion:    reading,
		Metrics:    detailed,
		Response:   response,
		Transition: decision,
	}, nil
}

// EvaluateUser recomputes credibility and the tier transition from the
// persisted history without a new message. It fails with a
// missing-context error when the user has never interacted.
func (e *RelationshipEngine) EvaluateUser(ctx context.Context, userID string) (*EvaluationResult, error) {
	rc, err := e.getWithRetry(ctx, userID)
	if err != nil {
		e.failures.Inc()
		return nil, err
	}
	work := rc.Clone()
	now := time.Now()

	detailed := e.metrics.AggregateDetailed(work)
	profile, err := e.profiles.GetProfile(ctx, userID)
	if err != nil {
		e.failures.Inc()
		return nil, NewTransientStoreError("profile lookup failed", err)
	}
	score, err := e.scorer.Score(profile, AnalyzeHistory(work.InteractionHistory), now)
	if err != nil {
		e.failures.Inc()
		return nil, err
	}
	work.CredibilityScore = score
	detailed.CredibilityScore = score

	decision := e.machine.Evaluate(work.RelationshipState, detailed.RelationshipMetrics)
	if decision.Changed {
		change := StateChange{
			ID:            uuid.NewString(),
			PreviousState: work.RelationshipState,
			NewState:      decision.NextState,
			Reason:        decision.Reason,
			Timestamp:     now,
		}
		work.RelationshipState = decision.NextState
		work.RecordStateChange(change)
		detailed.LastStateChange = &change
		e.transitions.Inc()
	}
	work.ResponseMode = DeriveResponseMode(work.RelationshipState, detailed.RelationshipMetrics)

	if err := e.putWithRetry(ctx, userID, work); err != nil {
		e.failures.Inc()
		return nil, err
	}
	return &EvaluationResult{
		Context:    work,
		Metrics:    detailed,
		Response:   ResponseConfigFor(work.RelationshipState, work.EmotionalState),
		Transition: decision,
	}, nil
}

// Terminate handles an explicit end-of-engagement event. The context
// must already exist; history, tier and credibility are preserved.
func (e *RelationshipEngine) Terminate(ctx context.Context, userID string) error {
	rc, err := e.getWithRetry(ctx, userID)
	if err != nil {
		e.failures.Inc()
		return err
	}
	work := rc.Clone()
	work.Terminate()
	if err := e.putWithRetry(ctx, userID, work); err != nil {
		e.failures.Inc()
		return err
	}
	log.Printf("[RelationshipEngine] Engagement terminated | user=%s tier=%s", userID, work.RelationshipState)
	return nil
}

// loadOrCreate distinguishes "no context yet" (create default) from
// transient load failures (surfaced after retries).
func (e *RelationshipEngine) loadOrCreate(ctx context.Context, userID string) (*RelationshipContext, error) {
	rc, err := e.getWithRetry(ctx, userID)
	if err != nil {
		if IsContextNotFound(err) {
			if e.config.Debug {
				log.Printf("[RelationshipEngine] First contact, creating context | user=%s", userID)
			}
			return NewRelationshipContext(userID), nil
		}
		return nil, err
	}
	return rc.Clone(), nil
}

func (e *RelationshipEngine) getWithRetry(ctx context.Context, userID string) (*RelationshipContext, error) {
	var rc *RelationshipContext
	err := e.withRetry("context load", func() error {
		var err error
		rc, err = e.store.Get(ctx, userID)
		return err
	})
	return rc, err
}

func (e *RelationshipEngine) putWithRetry(ctx context.Context, userID string, rc *RelationshipContext) error {
	return e.withRetry("context persist", func() error {
		return e.store.Put(ctx, userID, rc)
	})
}

// withRetry runs fn up to RetryAttempts times with the base delay
// doubling between attempts. Only retryable errors are retried; the
// last error is surfaced when all attempts fail.
func (e *RelationshipEngine) withRetry(op string, fn func() error) error {
	delay := e.config.RetryBaseDelay
	var lastErr error
	for attempt := 1; attempt <= e.config.RetryAttempts; attempt++ {
		lastErr = fn()
		if lastErr == nil {
			return nil
		}
		if !IsRetryable(lastErr) {
			return lastErr
		}
		if attempt < e.config.RetryAttempts {
			log.Printf("[RelationshipEngine] %s attempt %d/%d failed, retrying in %s | error=%v",
				op, attempt, e.config.RetryAttempts, delay, lastErr)
			time.Sleep(delay)
			delay *= 2
		}
	}
	return lastErr
}
