package risk

import "github.com/terminal-bench/gridpulse/internal/entropy"

// The three scoring stages carry the names the operators know them by. None of
// them is a trained model; each is a closed-form draw against the entropy source.

// isolationForest decides whether the sample is an injected anomaly and scores it.
func isolationForest(src entropy.Source, rate float64) (anomalous bool, score float64) {
	anomalous = src.Uniform(0, 1) < rate
	if anomalous {
		return true, src.Uniform(0.6, 1.0)
	}
	return false, src.Uniform(0.0, 0.3)
}

// lstmForecast estimates near-term risk from the hour of day.
func lstmForecast(src entropy.Source, peak bool) float64 {
	if peak {
		return src.Uniform(0.5, 0.9)
	}
	return src.Uniform(0.0, 0.3)
}

// bayesianBlackout combines utilization, anomaly and forecast into a blackout estimate.
func bayesianBlackout(utilization float64, anomalous bool, forecast float64) float64 {
	base := 0.05
	if utilization > 0.85 {
		base = 0.4
	}
	bonus := 0.0
	if anomalous {
		bonus = 0.2
	}
	return clamp(base+bonus+forecast*0.3, 0, 1)
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
