package resilience

import (
	"github.com/go-i2p/wgadmin/lib/metrics"
)

// recordTransition is the default state change hook; it exports the
// breaker state (0=closed, 1=open, 2=half-open) and counts trips.
func recordTransition(name string, _, to State) {
	metrics.BreakerState.WithLabelValues(name).Set(float64(to))
	if to == Open {
		metrics.BreakerTrips.WithLabelValues(name).Inc()
	}
}
