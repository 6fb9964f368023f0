package chaos

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"eternalflame/internal/calculation"
	"eternalflame/internal/schedule"
)

const (
	testDuration = 60 * time.Millisecond
	testInterval = 15 * time.Millisecond
)

func newTestDrill(t *testing.T) *Drill {
	t.Helper()
	d, err := NewDrill(t.TempDir(), zerolog.Nop())
	require.NoError(t, err)
	t.Cleanup(func() { d.Close() })
	return d
}

func TestThresholdHolds(t *testing.T) {
	assert.True(t, Threshold{">", 1}.Holds(2))
	assert.False(t, Threshold{">", 2}.Holds(2))
	assert.True(t, Threshold{">=", 2}.Holds(2))
	assert.True(t, Threshold{"<", 2}.Holds(1))
	assert.True(t, Threshold{"<=", 2}.Holds(2))
	assert.True(t, Threshold{"==", 0}.Holds(0))
	assert.False(t, Threshold{"~", 0}.Holds(0))
}

func TestRunAbortsOnInvalidSteadyState(t *testing.T) {
	injected := false
	exp := Experiment{
		Name: "broken",
		SteadyState: []Probe{{
			Name:      "always_bad",
			Measure:   func(context.Context) (float64, error) { return 0, errors.New("probe down") },
			Threshold: Threshold{">", 0},
		}},
		Method: []Action{{Execute: func(context.Context) error { injected = true; return nil }}},
	}

	result, err := NewEngine(zerolog.Nop()).Run(context.Background(), exp)
	assert.ErrorIs(t, err, ErrSteadyStateInvalid)
	assert.False(t, result.SteadyStateValid)
	assert.Len(t, result.Violations, 1)
	assert.False(t, injected)
}

func TestRunRecordsRecovery(t *testing.T) {
	samples := []float64{10, 0, 0, 10}
	i := 0
	probe := Probe{
		Name: "flappy",
		Measure: func(context.Context) (float64, error) {
			v := samples[min(i, len(samples)-1)]
			i++
			return v, nil
		},
		Threshold: Threshold{">", 5},
	}

	rolledBack := false
	exp := Experiment{
		Name:        "flap",
		SteadyState: []Probe{probe},
		Rollback:    []Action{{Execute: func(context.Context) error { rolledBack = true; return nil }}},
		Validation:  []Assertion{{Probe: "flappy", Condition: func(v float64) bool { return v > 5 }, Message: "recovers"}},
		Duration:    100 * time.Millisecond,
		Interval:    10 * time.Millisecond,
	}

	result, err := NewEngine(zerolog.Nop()).Run(context.Background(), exp)
	require.NoError(t, err)
	assert.True(t, rolledBack)
	assert.True(t, result.HypothesisHeld)
	assert.NotEmpty(t, result.Violations)
	assert.NotNil(t, result.Recovery)
}

func TestTranslatorOutage(t *testing.T) {
	d := newTestDrill(t)
	ctx := context.Background()

	before, err := d.sourceTextRate(ctx)
	require.NoError(t, err)
	assert.Zero(t, before, "translator is up before the outage")

	result, err := NewEngine(zerolog.Nop()).Run(ctx, d.TranslatorOutageExperiment(testDuration, testInterval))
	require.NoError(t, err)
	assert.True(t, result.HypothesisHeld, result.FailedAssertions)
	assert.Empty(t, result.Violations)
	assert.False(t, d.Faults.TranslatorDown.Load(), "rolled back")

	points := result.Observations["source_text_rate"]
	require.NotEmpty(t, points)
	for _, p := range points {
		assert.Equal(t, float64(100), p.Value)
	}
}

func TestTranslatorOutageFallsBackToSourceText(t *testing.T) {
	d := newTestDrill(t)
	ctx := context.Background()
	req := calculation.Request{EventDate: "2023-01-15", Locale: "en"}

	res, err := d.Calc.Calculate(ctx, req)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(res.Explanation, "EN:"))
	assert.False(t, IsSourceText(res))

	d.Faults.TranslatorDown.Store(true)
	res, err = d.Calc.Calculate(ctx, req)
	require.NoError(t, err)
	assert.Equal(t, "en", res.Locale)
	assert.Equal(t, schedule.Explanation(res.ElapsedMonths, res.SuggestedQuantity, true), res.Explanation)
	require.NotEmpty(t, res.Schedule)
	for _, e := range res.Schedule {
		var reason schedule.Reason
		require.NoError(t, reason.UnmarshalText([]byte(e.Reason)))
		assert.Equal(t, reason.Description(), e.Description)
	}
	assert.True(t, IsSourceText(res))
}

func TestAuditOutage(t *testing.T) {
	d := newTestDrill(t)

	result, err := NewEngine(zerolog.Nop()).Run(context.Background(), d.AuditOutageExperiment(testDuration, testInterval))
	require.NoError(t, err)
	assert.True(t, result.HypothesisHeld, result.FailedAssertions)
	assert.False(t, d.Faults.AuditDown.Load())

	before, err := d.auditRows(context.Background())
	require.NoError(t, err)
	_, err = d.calculateSuccessRate(context.Background())
	require.NoError(t, err)
	after, err := d.auditRows(context.Background())
	require.NoError(t, err)
	assert.Equal(t, before+probeBatch, after, "appends resume after rollback")
}

func TestConcurrentRegister(t *testing.T) {
	d := newTestDrill(t)

	result, err := NewEngine(zerolog.Nop()).Run(context.Background(), d.ConcurrentRegisterExperiment(testDuration, testInterval, 4))
	require.NoError(t, err)
	assert.Empty(t, result.Errors)
	assert.True(t, result.HypothesisHeld, result.FailedAssertions)
}

func TestGameDay(t *testing.T) {
	d := newTestDrill(t)
	engine := NewEngine(zerolog.Nop())

	held := engine.GameDay(context.Background(), "test", d.Experiments(testDuration, testInterval), 0)
	assert.True(t, held)
	assert.Len(t, engine.Results(), 3)
}
