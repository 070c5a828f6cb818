package main

import (
	"math"

	"github.com/prometheus/client_golang/prometheus"
)

type Metrics struct {
	Recorded      prometheus.Counter
	Resets        prometheus.Counter
	Rejected      prometheus.Counter
	Depth         prometheus.Gauge
	Average       prometheus.Gauge
	DroppedEvents prometheus.Counter
}

// NewMetrics creates the collectors and registers them with reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		Recorded: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "pricehistory",
			Name:      "recorded_prices_total",
			Help:      "Prices recorded.",
		}),
		Resets: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "pricehistory",
			Name:      "resets_total",
			Help:      "History resets.",
		}),
		Rejected: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "pricehistory",
			Name:      "unauthorized_total",
			Help:      "Writes rejected because the signer is not the owner.",
		}),
		Depth: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "pricehistory",
			Name:      "depth",
			Help:      "Prices recorded since the last reset, capped at the required depth.",
		}),
		Average: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "pricehistory",
			Name:      "average_price",
			Help:      "Average of the window, NaN while the window is not full.",
		}),
		DroppedEvents: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "pricehistory",
			Name:      "dropped_events_total",
			Help:      "Events dropped for slow subscribers.",
		}),
	}
	reg.MustRegister(m.Recorded, m.Resets, m.Rejected, m.Depth, m.Average, m.DroppedEvents)
	m.Average.Set(math.NaN())
	return m
}

// observe updates the gauges from h.
func (m *Metrics) observe(h *PriceHistory) {
	m.Depth.Set(float64(h.DepthSoFar()))
	avg, err := h.GetAverage()
	if err != nil {
		avg = math.NaN()
	}
	m.Average.Set(avg)
}
