package observability

import (
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "carona"

var (
	BookingsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{Namespace: namespace, Name: "bookings_total", Help: "Seat reservation attempts by result"},
		[]string{"result"},
	)
	MatchAttemptsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{Namespace: namespace, Name: "match_attempts_total", Help: "Automatic match attempts by outcome"},
		[]string{"outcome"},
	)
	RatingsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{Namespace: namespace, Name: "ratings_total", Help: "Rating submissions by role and result"},
		[]string{"role", "result"},
	)
	TxRetriesTotal = prometheus.NewCounter(
		prometheus.CounterOpts{Namespace: namespace, Name: "tx_retries_total", Help: "Transactions replayed after serialization or deadlock errors"},
	)
	MatchLatency = prometheus.NewHistogram(
		prometheus.HistogramOpts{Namespace: namespace, Name: "match_latency_seconds", Help: "Match attempt latency seconds", Buckets: prometheus.DefBuckets},
	)
)

// Register adds the domain collectors to reg.
func Register(reg prometheus.Registerer) error {
	for _, c := range []prometheus.Collector{BookingsTotal, MatchAttemptsTotal, RatingsTotal, TxRetriesTotal, MatchLatency} {
		if err := reg.Register(c); err != nil {
			return err
		}
	}
	return nil
}
