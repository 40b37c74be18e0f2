package dashboard

import (
	"context"

	"go.uber.org/zap"

	"github.com/capstone-impacta/engagement-cli/internal/metrics"
	"github.com/capstone-impacta/engagement-cli/internal/resilience"
)

// GuardedSource stops hitting an unreachable store for a cooldown after
// repeated connectivity failures. Rejected loads fail fast with a
// ConnectivityError, which the view renders inline like any load failure.
type GuardedSource struct {
	src     Source
	breaker *resilience.CircuitBreaker
}

// NewGuardedSource wraps src with a circuit breaker built from cfg.
func NewGuardedSource(src Source, cfg resilience.CircuitBreakerConfig) *GuardedSource {
	log := zap.L().With(zap.String("component", "dashboard.guard"))
	next := cfg.OnStateChange
	cfg.OnStateChange = func(from, to resilience.CircuitState) {
		log.Warn("store circuit state changed", zap.Stringer("from", from), zap.Stringer("to", to))
		metrics.StoreCircuitState.Set(float64(to))
		if next != nil {
			next(from, to)
		}
	}
	return &GuardedSource{src: src, breaker: resilience.NewCircuitBreaker(cfg)}
}

func (g *GuardedSource) Load(ctx context.Context) (*Dataset, error) {
	return resilience.Execute(ctx, g.breaker, "dashboard: load dataset", g.src.Load)
}
