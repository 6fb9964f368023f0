// internal/chaos/experiments.go
package chaos

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"eternalflame/internal/apperr"
	"eternalflame/internal/calculation"
	"eternalflame/internal/schedule"
)

const probeBatch = 5

// drillEpoch is the earliest event date the probes use; each sample moves it
// forward a day so consecutive samples produce different texts.
var drillEpoch = time.Date(2020, time.January, 1, 0, 0, 0, 0, time.UTC)

// Experiments returns the standard drills with the given observation window.
func (d *Drill) Experiments(duration, interval time.Duration) []Experiment {
	return []Experiment{
		d.TranslatorOutageExperiment(duration, interval),
		d.AuditOutageExperiment(duration, interval),
		d.ConcurrentRegisterExperiment(duration, interval, 4),
	}
}

func (d *Drill) nextEventDate() string {
	n := d.samples.Add(1) % 1000
	return drillEpoch.AddDate(0, 0, int(n)).Format(time.DateOnly)
}

// calculateSuccessRate runs a batch of English computations and returns the
// percentage that succeeded.
func (d *Drill) calculateSuccessRate(ctx context.Context) (float64, error) {
	ok := 0
	for range probeBatch {
		if _, err := d.Calc.Calculate(ctx, calculation.Request{EventDate: d.nextEventDate(), Locale: "en"}); err == nil {
			ok++
		}
	}
	return float64(ok) * 100 / probeBatch, nil
}

// sourceTextRate runs a batch of English computations and returns the
// percentage whose explanation and every description are the untranslated
// source text. Failed computations count as not untranslated.
func (d *Drill) sourceTextRate(ctx context.Context) (float64, error) {
	hits := 0
	for range probeBatch {
		res, err := d.Calc.Calculate(ctx, calculation.Request{EventDate: d.nextEventDate(), Locale: "en"})
		if err == nil && IsSourceText(res) {
			hits++
		}
	}
	return float64(hits) * 100 / probeBatch, nil
}

// IsSourceText reports whether res carries the source-locale texts exactly.
func IsSourceText(res *calculation.Result) bool {
	if res.Explanation != schedule.Explanation(res.ElapsedMonths, res.SuggestedQuantity, len(res.Schedule) > 0) {
		return false
	}
	for _, e := range res.Schedule {
		var reason schedule.Reason
		if err := reason.UnmarshalText([]byte(e.Reason)); err != nil || e.Description != reason.Description() {
			return false
		}
	}
	return true
}

func (d *Drill) successProbe() Probe {
	return Probe{
		Name:      "calculate_success_rate",
		Measure:   d.calculateSuccessRate,
		Threshold: Threshold{Operator: "==", Value: 100},
	}
}

func toggle(name, target string, flag interface{ Store(bool) }, on bool) Action {
	return Action{
		Name:   name,
		Target: target,
		Execute: func(context.Context) error {
			flag.Store(on)
			return nil
		},
	}
}

// TranslatorOutageExperiment takes the translation backend down.
func (d *Drill) TranslatorOutageExperiment(duration, interval time.Duration) Experiment {
	return Experiment{
		Name:        "translator-outage",
		Hypothesis:  "Computations keep succeeding with source-language text when the translator is down",
		SteadyState: []Probe{
			d.successProbe(),
			{
				Name:      "source_text_rate",
				Measure:   d.sourceTextRate,
				Threshold: Threshold{Operator: ">=", Value: 0},
			},
		},
		Method:   []Action{toggle("kill-translator", "translator", &d.Faults.TranslatorDown, true)},
		Rollback: []Action{toggle("restore-translator", "translator", &d.Faults.TranslatorDown, false)},
		Validation: []Assertion{
			{
				Probe:     "calculate_success_rate",
				Condition: func(v float64) bool { return v == 100 },
				Message:   "every computation should succeed during a translator outage",
			},
			{
				Probe:     "source_text_rate",
				Condition: func(v float64) bool { return v == 100 },
				Message:   "every computation should carry the source text during a translator outage",
			},
		},
		Duration: duration,
		Interval: interval,
	}
}

// AuditOutageExperiment makes every audit append fail.
func (d *Drill) AuditOutageExperiment(duration, interval time.Duration) Experiment {
	var rowsBefore float64
	return Experiment{
		Name:       "audit-store-outage",
		Hypothesis: "Audit failures are swallowed and nothing is written while the store rejects appends",
		SteadyState: []Probe{
			d.successProbe(),
			{
				Name:      "audit_rows",
				Measure:   d.auditRows,
				Threshold: Threshold{Operator: ">=", Value: 0},
			},
		},
		Method: []Action{
			{
				Name:   "snapshot-audit",
				Target: "calculate_logs",
				Execute: func(ctx context.Context) (err error) {
					rowsBefore, err = d.auditRows(ctx)
					return err
				},
			},
			toggle("fail-audit", "calculate_logs", &d.Faults.AuditDown, true),
		},
		Rollback: []Action{toggle("restore-audit", "calculate_logs", &d.Faults.AuditDown, false)},
		Validation: []Assertion{
			{
				Probe:     "calculate_success_rate",
				Condition: func(v float64) bool { return v == 100 },
				Message:   "every computation should succeed while audit appends fail",
			},
			{
				Probe:     "audit_rows",
				Condition: func(v float64) bool { return v == rowsBefore },
				Message:   "no audit rows should be written while appends fail",
			},
		},
		Duration: duration,
		Interval: interval,
	}
}

// ConcurrentRegisterExperiment races n registrations for one username.
func (d *Drill) ConcurrentRegisterExperiment(duration, interval time.Duration, n int) Experiment {
	return Experiment{
		Name:       "concurrent-register-race",
		Hypothesis: "Concurrent registrations of one username create exactly one account",
		SteadyState: []Probe{{
			Name:      "duplicate_accounts",
			Measure:   d.duplicateAccounts,
			Threshold: Threshold{Operator: "==", Value: 0},
		}},
		Method: []Action{{
			Name:   "register-burst",
			Target: "users",
			Execute: func(ctx context.Context) error {
				return d.registerBurst(ctx, n)
			},
		}},
		Validation: []Assertion{{
			Probe:     "duplicate_accounts",
			Condition: func(v float64) bool { return v == 0 },
			Message:   "a username must never be stored twice",
		}},
		Duration: duration,
		Interval: interval,
	}
}

// registerBurst fails unless exactly one registration wins and every other
// one is a conflict.
func (d *Drill) registerBurst(ctx context.Context, n int) error {
	username := "drill-" + uuid.NewString()[:8]

	var (
		wg              sync.WaitGroup
		mu              sync.Mutex
		wins, conflicts int
		others          []error
	)
	start := make(chan struct{})
	for range n {
		wg.Add(1)
		go func() {
			defer wg.Done()
			<-start
			_, err := d.Accounts.Register(ctx, username, "drill-password")

			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				wins++
			case apperr.KindOf(err) == apperr.KindConflict:
				conflicts++
			default:
				others = append(others, err)
			}
		}()
	}
	close(start)
	wg.Wait()

	if len(others) > 0 {
		return fmt.Errorf("register race: %w", errors.Join(others...))
	}
	if wins != 1 || conflicts != n-1 {
		return fmt.Errorf("register race: %d wins, %d conflicts", wins, conflicts)
	}
	return nil
}
