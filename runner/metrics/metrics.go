package metrics

import (
	"math/big"
	"strconv"

	"github.com/ethereum/go-ethereum/params"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

const Namespace = "oracle_keeper"

// Metricer records the outcome of keeper cycles.
type Metricer interface {
	RecordInfo(version string)
	RecordCycle(eligible bool)
	RecordTransportError(endpoint int)
	RecordRotation(endpoint int)
	RecordAllEndpointsFailed()
	RecordNonceFetchError()
	RecordSubmission(success bool)
	RecordBalance(wei *big.Int)
}

type Metrics struct {
	registry *prometheus.Registry

	info              *prometheus.GaugeVec
	cycles            *prometheus.CounterVec
	transportErrors   *prometheus.CounterVec
	currentEndpoint   prometheus.Gauge
	allEndpointsDown  prometheus.Counter
	nonceFetchErrors  prometheus.Counter
	submissions       *prometheus.CounterVec
	accountBalanceEth prometheus.Gauge
}

var _ Metricer = (*Metrics)(nil)

func NewMetrics() *Metrics {
	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	registry.MustRegister(collectors.NewGoCollector())

	m := &Metrics{
		registry: registry,
		info: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: Namespace,
			Name:      "info",
			Help:      "Keeper build information",
		}, []string{"version"}),
		cycles: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "cycles_total",
			Help:      "Completed eligibility checks by result",
		}, []string{"eligible"}),
		transportErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "transport_errors_total",
			Help:      "Failed eligibility calls by endpoint index",
		}, []string{"endpoint"}),
		currentEndpoint: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: Namespace,
			Name:      "current_endpoint",
			Help:      "Index of the endpoint the pool cursor points at",
		}),
		allEndpointsDown: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "all_endpoints_failed_total",
			Help:      "Cycles in which every endpoint failed the eligibility call",
		}),
		nonceFetchErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "nonce_fetch_errors_total",
			Help:      "Submissions abandoned because the nonce could not be fetched",
		}),
		submissions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "submissions_total",
			Help:      "Action transaction submissions by result",
		}, []string{"result"}),
		accountBalanceEth: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: Namespace,
			Name:      "account_balance",
			Help:      "Sender balance in whole native tokens",
		}),
	}

	registry.MustRegister(
		m.info,
		m.cycles,
		m.transportErrors,
		m.currentEndpoint,
		m.allEndpointsDown,
		m.nonceFetchErrors,
		m.submissions,
		m.accountBalanceEth,
	)
	return m
}

func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

func (m *Metrics) RecordInfo(version string) {
	m.info.WithLabelValues(version).Set(1)
}

func (m *Metrics) RecordCycle(eligible bool) {
	m.cycles.WithLabelValues(boolLabel(eligible)).Inc()
}

func (m *Metrics) RecordTransportError(endpoint int) {
	m.transportErrors.WithLabelValues(strconv.Itoa(endpoint)).Inc()
}

func (m *Metrics) RecordRotation(endpoint int) {
	m.currentEndpoint.Set(float64(endpoint))
}

func (m *Metrics) RecordAllEndpointsFailed() {
	m.allEndpointsDown.Inc()
}

func (m *Metrics) RecordNonceFetchError() {
	m.nonceFetchErrors.Inc()
}

func (m *Metrics) RecordSubmission(success bool) {
	result := "failed"
	if success {
		result = "sent"
	}
	m.submissions.WithLabelValues(result).Inc()
}

func (m *Metrics) RecordBalance(wei *big.Int) {
	if wei == nil {
		return
	}
	m.accountBalanceEth.Set(WeiToEther(wei))
}

// WeiToEther converts a wei amount to a float of whole tokens. Precision loss
// is acceptable for a gauge.
func WeiToEther(wei *big.Int) float64 {
	f, _ := new(big.Float).Quo(new(big.Float).SetInt(wei), big.NewFloat(params.Ether)).Float64()
	return f
}

func boolLabel(b bool) string {
	if b {
		return "true"
	}
	return "false"
}

type noopMetrics struct{}

// NoopMetrics discards every observation.
var NoopMetrics Metricer = noopMetrics{}

func (noopMetrics) RecordInfo(string) {}
func (noopMetrics) RecordCycle(bool) {}
func (noopMetrics) RecordTransportError(int) {}
func (noopMetrics) RecordRotation(int) {}
func (noopMetrics) RecordAllEndpointsFailed() {}
func (noopMetrics) RecordNonceFetchError() {}
func (noopMetrics) RecordSubmission(bool) {}
func (noopMetrics) RecordBalance(*big.Int) {}
