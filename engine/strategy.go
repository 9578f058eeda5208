package engine

import "math/rand"

// Strategy names a load balancing policy for choosing among suitable
// adapters.
type Strategy string

const (
	StrategyRoundRobin      Strategy = "round_robin"
	StrategyRandom          Strategy = "random"
	StrategyLeastLoaded     Strategy = "least_loaded"
	StrategyFastestResponse Strategy = "fastest_response"
	StrategyCostOptimized   Strategy = "cost_optimized"
)

// Valid reports whether s names a known strategy.
func (s Strategy) Valid() bool {
	switch s {
	case StrategyRoundRobin, StrategyRandom, StrategyLeastLoaded,
		StrategyFastestResponse, StrategyCostOptimized:
		return true
	}
	return false
}

// applyStrategy picks one candidate under the configured strategy.
// Candidates must be non-empty. Callers must hold e.mu.
func (e *Engine) applyStrategy(candidates []string) string {
	if len(candidates) == 1 {
		return candidates[0]
	}

	switch e.strategy {
	case StrategyRandom:
		return candidates[rand.Intn(len(candidates))]

	case StrategyRoundRobin:
		selected := candidates[e.rrIndex%len(candidates)]
		e.rrIndex++
		return selected

	case StrategyLeastLoaded:
		best := candidates[0]
		bestLoad := e.metricsFor(best).Snapshot().CurrentLoad
		for _, name := range candidates[1:] {
			if load := e.metricsFor(name).Snapshot().CurrentLoad; load < bestLoad {
				best, bestLoad = name, load
			}
		}
		return best

	case StrategyFastestResponse:
		// Adapters with no recorded average are skipped; if none has one
		// yet there is nothing to rank on, so fall back to the first.
		best := ""
		bestTime := 0.0
		for _, name := range candidates {
			avg := e.metricsFor(name).Snapshot().AverageResponseTime
			if avg <= 0 {
				continue
			}
			if best == "" || avg < bestTime {
				best, bestTime = name, avg
			}
		}
		if best != "" {
			return best
		}
		return candidates[0]

	default:
		// StrategyCostOptimized is a policy hook without its own ranking.
		return candidates[0]
	}
}
