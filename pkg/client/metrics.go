package client

import (
	"errors"

	"github.com/prometheus/client_golang/prometheus"
)

const (
	labelOutcome = "outcome"

	outcomeOK        = "ok"
	outcomeHTTPError = "http_error"
	outcomeTransport = "transport_error"
	outcomeProtocol  = "protocol_error"
	outcomeCanceled  = "canceled"
)

type metrics struct {
	requests *prometheus.CounterVec
	attempts prometheus.Counter
	inFlight prometheus.Gauge
}

func newMetrics(reg prometheus.Registerer) *metrics {
	var m metrics

	m.requests = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "gqlblind_requests_total",
		Help: "Number of GraphQL requests sent, by final outcome.",
	}, []string{labelOutcome})
	m.attempts = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "gqlblind_attempts_total",
		Help: "Number of HTTP attempts, including retries.",
	})
	m.inFlight = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "gqlblind_requests_in_flight",
		Help: "Number of requests currently holding a concurrency slot.",
	})

	if reg != nil {
		m.requests = mustRegisterOrGet(reg, m.requests).(*prometheus.CounterVec)
		m.attempts = mustRegisterOrGet(reg, m.attempts).(prometheus.Counter)
		m.inFlight = mustRegisterOrGet(reg, m.inFlight).(prometheus.Gauge)
	}
	return &m
}

// mustRegisterOrGet registers c, returning the already registered collector
// when an identical one exists.
func mustRegisterOrGet(reg prometheus.Registerer, c prometheus.Collector) prometheus.Collector {
	if err := reg.Register(c); err != nil {
		var are prometheus.AlreadyRegisteredError
		if errors.As(err, &are) {
			return are.ExistingCollector
		}
		panic(err)
	}
	return c
}
