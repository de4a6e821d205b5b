package metrics

import (
	"context"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/ederziomek/real-digital-token/internal/reserve"
)

// Metrics holds the Prometheus collectors for the reserve ledger.
type Metrics struct {
	OperationsCommitted *prometheus.CounterVec
	OperationsRejected  *prometheus.CounterVec
	MintedAmount        prometheus.Counter
	BurnedAmount        prometheus.Counter
	TotalSupply         prometheus.Gauge
	BRLReserve          prometheus.Gauge
	Paused              prometheus.Gauge
	PublishFailures     prometheus.Counter
}

var _ reserve.Observer = (*Metrics)(nil)

// New creates the collectors and registers them with reg.
func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		OperationsCommitted: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "reserve_operations_committed_total",
			Help: "Reserve operations committed",
		}, []string{"kind"}),

		OperationsRejected: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "reserve_operations_rejected_total",
			Help: "Reserve operations rejected, by error code",
		}, []string{"kind", "code"}),

		MintedAmount: factory.NewCounter(prometheus.CounterOpts{
			Name: "reserve_minted_minor_units_total",
			Help: "Tokens minted in minor units",
		}),

		BurnedAmount: factory.NewCounter(prometheus.CounterOpts{
			Name: "reserve_burned_minor_units_total",
			Help: "Tokens burned in minor units",
		}),

		TotalSupply: factory.NewGauge(prometheus.GaugeOpts{
			Name: "reserve_total_supply_minor_units",
			Help: "Outstanding token supply",
		}),

		BRLReserve: factory.NewGauge(prometheus.GaugeOpts{
			Name: "reserve_brl_minor_units",
			Help: "Recorded BRL backing",
		}),

		Paused: factory.NewGauge(prometheus.GaugeOpts{
			Name: "reserve_paused",
			Help: "1 when minting and burning are halted",
		}),

		PublishFailures: factory.NewCounter(prometheus.CounterOpts{
			Name: "reserve_event_publish_failures_total",
			Help: "Committed events that could not be published",
		}),
	}
}

// Committed implements reserve.Observer.
func (m *Metrics) Committed(entry reserve.Entry, state reserve.Reserve) {
	m.OperationsCommitted.WithLabelValues(string(entry.Kind)).Inc()
	switch entry.Kind {
	case reserve.KindMint:
		m.MintedAmount.Add(float64(entry.Amount))
	case reserve.KindBurn:
		m.BurnedAmount.Add(float64(entry.Amount))
	}
	m.Observe(state)
}

// Rejected implements reserve.Observer.
func (m *Metrics) Rejected(kind reserve.EntryKind, code reserve.Code) {
	m.OperationsRejected.WithLabelValues(string(kind), string(code)).Inc()
}

// Observe sets the state gauges from r.
func (m *Metrics) Observe(r reserve.Reserve) {
	m.TotalSupply.Set(float64(r.TotalSupply))
	m.BRLReserve.Set(float64(r.BRLReserve))
	if r.Paused {
		m.Paused.Set(1)
	} else {
		m.Paused.Set(0)
	}
}

// CountFailures wraps next so that failed publishes increment PublishFailures.
func (m *Metrics) CountFailures(next reserve.Publisher) reserve.Publisher {
	return countingPublisher{next: next, failures: m.PublishFailures}
}

type countingPublisher struct {
	next     reserve.Publisher
	failures prometheus.Counter
}

func (p countingPublisher) Publish(ctx context.Context, event reserve.Event) error {
	err := p.next.Publish(ctx, event)
	if err != nil {
		p.failures.Inc()
	}
	return err
}
