// internal/chaos/chaos.go
package chaos

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// ErrSteadyStateInvalid aborts an experiment before any fault is injected.
var ErrSteadyStateInvalid = errors.New("steady state invalid, aborting experiment")

// Experiment defines a resilience drill: verify a steady state, inject
// faults, observe, roll back and check the hypothesis.
type Experiment struct {
	Name        string
	Hypothesis  string
	SteadyState []Probe
	Method      []Action
	Rollback    []Action
	Validation  []Assertion
	// Duration is how long the system is observed under fault.
	Duration time.Duration
	// Interval is the sampling period while observing.
	Interval time.Duration
}

// Probe measures one property of the system.
type Probe struct {
	Name      string
	Measure   func(context.Context) (float64, error)
	Threshold Threshold
}

type Threshold struct {
	Operator string // >, <, >=, <=, ==
	Value    float64
}

// Holds reports whether value satisfies the threshold.
func (t Threshold) Holds(value float64) bool {
	switch t.Operator {
	case ">":
		return value > t.Value
	case "<":
		return value < t.Value
	case ">=":
		return value >= t.Value
	case "<=":
		return value <= t.Value
	case "==":
		return value == t.Value
	default:
		return false
	}
}

// Action injects or removes a fault.
type Action struct {
	Name    string
	Target  string
	Execute func(context.Context) error
}

// Assertion is checked against the last observation of a probe.
type Assertion struct {
	Probe     string
	Condition func(float64) bool
	Message   string
}

type Result struct {
	Experiment       string                 `json:"experiment"`
	StartTime        time.Time              `json:"start_time"`
	EndTime          time.Time              `json:"end_time"`
	Duration         time.Duration          `json:"duration"`
	HypothesisHeld   bool                   `json:"hypothesis_held"`
	SteadyStateValid bool                   `json:"steady_state_valid"`
	Violations       []Violation            `json:"violations"`
	Observations     map[string][]DataPoint `json:"observations"`
	Errors           []ErrorEvent           `json:"errors"`
	FailedAssertions []string               `json:"failed_assertions,omitempty"`
	// Recovery is the time from the first violation to the next healthy
	// sample, if the system recovered while under observation.
	Recovery *time.Duration `json:"recovery,omitempty"`
}

type Violation struct {
	Probe     string    `json:"probe"`
	Expected  float64   `json:"expected"`
	Actual    float64   `json:"actual"`
	Timestamp time.Time `json:"timestamp"`
}

type DataPoint struct {
	Timestamp time.Time `json:"timestamp"`
	Value     float64   `json:"value"`
}

type ErrorEvent struct {
	Timestamp time.Time `json:"timestamp"`
	Error     string    `json:"error"`
	Component string    `json:"component"`
}

// Engine runs experiments and keeps their results.
type Engine struct {
	tracer  trace.Tracer
	logger  zerolog.Logger
	mu      sync.Mutex
	results []Result
}

func NewEngine(logger zerolog.Logger) *Engine {
	return &Engine{
		tracer: otel.Tracer("eternalflame/chaos"),
		logger: logger.With().Str("component", "chaos").Logger(),
	}
}

// Run executes one experiment. Rollback actions always run once faults have
// been injected.
func (e *Engine) Run(ctx context.Context, exp Experiment) (*Result, error) {
	ctx, span := e.tracer.Start(ctx, "chaos.run_experiment",
		trace.WithAttributes(attribute.String("experiment.name", exp.Name)),
	)
	defer span.End()

	if exp.Interval <= 0 {
		exp.Interval = time.Second
	}

	result := &Result{
		Experiment:   exp.Name,
		StartTime:    time.Now(),
		Observations: make(map[string][]DataPoint),
		Errors:       make([]ErrorEvent, 0),
	}

	// Phase 1: Validate steady state
	span.AddEvent("validating_steady_state")
	if violations := e.checkSteadyState(ctx, exp.SteadyState); len(violations) > 0 {
		result.Violations = violations
		return result, ErrSteadyStateInvalid
	}
	result.SteadyStateValid = true

	// Phase 2: Inject faults
	span.AddEvent("injecting_faults")
	for _, action := range exp.Method {
		if err := action.Execute(ctx); err != nil {
			result.recordError(action.Target, err)
			span.RecordError(err)
		}
	}

	// Phase 3: Observe
	span.AddEvent("observing_system")
	e.observe(ctx, exp, result)

	// Phase 4: Roll back
	span.AddEvent("rolling_back")
	for _, action := range exp.Rollback {
		if err := action.Execute(ctx); err != nil {
			result.recordError(action.Target, err)
			span.RecordError(err)
		}
	}

	// Phase 5: Validate assertions
	span.AddEvent("validating_assertions")
	result.FailedAssertions = validate(exp.Validation, result)
	result.HypothesisHeld = len(result.FailedAssertions) == 0
	result.EndTime = time.Now()
	result.Duration = result.EndTime.Sub(result.StartTime)

	e.mu.Lock()
	e.results = append(e.results, *result)
	e.mu.Unlock()

	span.SetAttributes(
		attribute.Bool("hypothesis_held", result.HypothesisHeld),
		attribute.Int("violations", len(result.Violations)),
	)
	return result, nil
}

func (e *Engine) observe(ctx context.Context, exp Experiment, result *Result) {
	observeCtx, cancel := context.WithTimeout(ctx, exp.Duration)
	defer cancel()

	ticker := time.NewTicker(exp.Interval)
	defer ticker.Stop()

	var violatedAt time.Time
	for {
		select {
		case <-observeCtx.Done():
			return
		case <-ticker.C:
		}

		for _, probe := range exp.SteadyState {
			value, err := probe.Measure(ctx)
			if err != nil {
				result.recordError(probe.Name, err)
				continue
			}
			now := time.Now()
			result.Observations[probe.Name] = append(result.Observations[probe.Name], DataPoint{Timestamp: now, Value: value})

			switch {
			case !probe.Threshold.Holds(value):
				if violatedAt.IsZero() {
					violatedAt = now
				}
				result.Violations = append(result.Violations, Violation{
					Probe:     probe.Name,
					Expected:  probe.Threshold.Value,
					Actual:    value,
					Timestamp: now,
				})
			case !violatedAt.IsZero() && result.Recovery == nil:
				recovery := now.Sub(violatedAt)
				result.Recovery = &recovery
			}
		}
	}
}

func (e *Engine) checkSteadyState(ctx context.Context, probes []Probe) []Violation {
	var violations []Violation
	for _, probe := range probes {
		value, err := probe.Measure(ctx)
		if err != nil {
			value = -1
		}
		if err != nil || !probe.Threshold.Holds(value) {
			violations = append(violations, Violation{
				Probe:     probe.Name,
				Expected:  probe.Threshold.Value,
				Actual:    value,
				Timestamp: time.Now(),
			})
		}
	}
	return violations
}

func validate(assertions []Assertion, result *Result) []string {
	var failed []string
	for _, a := range assertions {
		points := result.Observations[a.Probe]
		if len(points) == 0 || !a.Condition(points[len(points)-1].Value) {
			failed = append(failed, a.Message)
		}
	}
	return failed
}

func (r *Result) recordError(component string, err error) {
	r.Errors = append(r.Errors, ErrorEvent{Timestamp: time.Now(), Error: err.Error(), Component: component})
}

// Results returns a copy of every result recorded so far.
func (e *Engine) Results() []Result {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]Result(nil), e.results...)
}

// GameDay runs experiments in order, pausing between them. It reports
// whether every hypothesis held.
func (e *Engine) GameDay(ctx context.Context, name string, experiments []Experiment, pause time.Duration) bool {
	ctx, span := e.tracer.Start(ctx, "chaos.game_day",
		trace.WithAttributes(attribute.String("gameday.name", name)),
	)
	defer span.End()

	e.logger.Info().Str("game_day", name).Int("experiments", len(experiments)).Msg("starting game day")

	allHeld := true
	for i, exp := range experiments {
		log := e.logger.With().Str("experiment", exp.Name).Logger()
		log.Info().Int("index", i+1).Str("hypothesis", exp.Hypothesis).Msg("running experiment")

		result, err := e.Run(ctx, exp)
		if err != nil {
			allHeld = false
			log.Error().Err(err).Msg("experiment aborted")
			continue
		}
		e.report(log, result)
		allHeld = allHeld && result.HypothesisHeld

		if i < len(experiments)-1 && pause > 0 {
			select {
			case <-ctx.Done():
				return false
			case <-time.After(pause):
			}
		}
	}
	return allHeld
}

func (e *Engine) report(log zerolog.Logger, result *Result) {
	ev := log.Info()
	if !result.HypothesisHeld {
		ev = log.Warn().Strs("failed_assertions", result.FailedAssertions)
	}
	if result.Recovery != nil {
		ev = ev.Dur("recovery", *result.Recovery)
	}
	ev.Bool("hypothesis_held", result.HypothesisHeld).
		Int("violations", len(result.Violations)).
		Int("errors", len(result.Errors)).
		Dur("duration", result.Duration).
		Msg("experiment finished")
}
