package client

import (
	"time"

	"github.com/iov-one/paychan/errors"
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics collects counters of client activity. A nil *Metrics is valid and
// records nothing.
type Metrics struct {
	submitted       *prometheus.CounterVec
	rejected        *prometheus.CounterVec
	refreshFailures prometheus.Counter
	paymentsSigned  prometheus.Counter
	duration        *prometheus.HistogramVec
}

// NewMetrics returns metrics registered with given registerer.
func NewMetrics(reg prometheus.Registerer) (*Metrics, error) {
	m := &Metrics{
		submitted: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "paychan",
			Subsystem: "client",
			Name:      "transactions_submitted_total",
			Help:      "Total transactions handed to the wallet, by contract method.",
		}, []string{"method"}),
		rejected: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "paychan",
			Subsystem: "client",
			Name:      "transactions_failed_total",
			Help:      "Total transactions that failed to submit or were rejected by the ledger, by contract method.",
		}, []string{"method"}),
		refreshFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "paychan",
			Subsystem: "client",
			Name:      "refresh_failures_total",
			Help:      "Total channel refreshes that could not read the ledger record.",
		}),
		paymentsSigned: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "paychan",
			Subsystem: "client",
			Name:      "payments_signed_total",
			Help:      "Total payments signed with a channel key.",
		}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "paychan",
			Subsystem: "client",
			Name:      "operation_duration_seconds",
			Help:      "Duration of client operations.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"operation"}),
	}
	for _, c := range []prometheus.Collector{m.submitted, m.rejected, m.refreshFailures, m.paymentsSigned, m.duration} {
		if err := reg.Register(c); err != nil {
			return nil, errors.Wrap(errors.ErrInput, err.Error())
		}
	}
	return m, nil
}

func (m *Metrics) txSubmitted(method string) {
	if m != nil {
		m.submitted.WithLabelValues(method).Inc()
	}
}

func (m *Metrics) txFailed(method string) {
	if m != nil {
		m.rejected.WithLabelValues(method).Inc()
	}
}

func (m *Metrics) refreshFailed() {
	if m != nil {
		m.refreshFailures.Inc()
	}
}

func (m *Metrics) paymentSigned() {
	if m != nil {
		m.paymentsSigned.Inc()
	}
}

func (m *Metrics) observe(operation string, start time.Time) {
	if m != nil {
		m.duration.WithLabelValues(operation).Observe(time.Since(start).Seconds())
	}
}
