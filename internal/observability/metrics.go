package observability

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	samplesCounter = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "steprewards",
		Subsystem: "engine",
		Name:      "samples_total",
		Help:      "Ingested samples grouped by outcome status.",
	}, []string{"status"})

	fraudScoreHistogram = prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: "steprewards",
		Subsystem: "engine",
		Name:      "fraud_score",
		Help:      "Distribution of fraud scores across scored samples.",
		Buckets:   prometheus.LinearBuckets(0, 10, 11),
	})

	tierAdvanceCounter = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "steprewards",
		Subsystem: "engine",
		Name:      "tier_advances_total",
		Help:      "Number of phase tier transitions completed.",
	})

	ledgerPersistGauge = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "steprewards",
		Subsystem: "persistence",
		Name:      "last_ledger_persisted_timestamp_seconds",
		Help:      "Unix timestamp of the most recent ledger entry persisted to Postgres.",
	})
)

func init() {
	prometheus.MustRegister(samplesCounter, fraudScoreHistogram, tierAdvanceCounter, ledgerPersistGauge)
}

// RecordSample tracks one ingestion outcome and its fraud score.
func RecordSample(status string, fraudScore int) {
	samplesCounter.WithLabelValues(status).Inc()
	fraudScoreHistogram.Observe(float64(fraudScore))
}

// RecordTierAdvance counts a completed tier transition.
func RecordTierAdvance() {
	tierAdvanceCounter.Inc()
}

// RecordLedgerPersisted updates the persistence watermark gauge.
func RecordLedgerPersisted(ts time.Time) {
	if ts.IsZero() {
		return
	}
	ledgerPersistGauge.Set(float64(ts.Unix()))
}
