// internal/calculation/policy.go
package calculation

import (
	"context"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"
)

var bestEffortFailures = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Name: "eternalflame_best_effort_failures_total",
		Help: "Failures swallowed by best-effort steps, by operation.",
	},
	[]string{"op"},
)

// BestEffort runs fn and discards its error after logging and counting it.
// It is the only place a failure is allowed to disappear.
func BestEffort(ctx context.Context, logger zerolog.Logger, op string, fn func(context.Context) error) {
	if err := fn(ctx); err != nil {
		bestEffortFailures.WithLabelValues(op).Inc()
		logger.Warn().Err(err).Str("op", op).Msg("best-effort step failed")
	}
}
