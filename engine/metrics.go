package engine

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"fleetcore/robot"
)

// metrics exposes per-tick coordination gauges, all namespaced "fleetcore_".
type metrics struct {
	tickDuration prometheus.Histogram
	ticks        prometheus.Counter
	robots       *prometheus.GaugeVec
	warnings     prometheus.Gauge
	holds        prometheus.Gauge
	reserved     prometheus.Gauge
}

var statusLabels = []robot.Status{robot.Unassigned, robot.TaskAssigned, robot.Moving, robot.Waiting, robot.TaskComplete}

func newMetrics(reg prometheus.Registerer) *metrics {
	factory := promauto.With(reg)
	return &metrics{
		tickDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: "fleetcore",
			Name:      "tick_duration_seconds",
			Help:      "Time spent in one coordination tick (motion plus collision pass)",
			Buckets:   []float64{.0001, .0005, .001, .005, .01, .05, .1},
		}),
		ticks: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "fleetcore",
			Name:      "ticks_total",
			Help:      "Coordination ticks executed",
		}),
		robots: factory.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "fleetcore",
			Name:      "robots",
			Help:      "Robots in the roster by status",
		}, []string{"status"}),
		warnings: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: "fleetcore",
			Name:      "warnings",
			Help:      "Warnings produced by the last tick",
		}),
		holds: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: "fleetcore",
			Name:      "waiting_robots",
			Help:      "Robots halted by a collision hold or a reservation wait",
		}),
		reserved: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: "fleetcore",
			Name:      "reserved_vertices",
			Help:      "Vertices with a holder",
		}),
	}
}

func (m *metrics) observe(s Snapshot, took time.Duration) {
	m.tickDuration.Observe(took.Seconds())
	m.ticks.Inc()

	counts := make(map[robot.Status]int, len(statusLabels))
	waiting := 0
	for _, r := range s.Robots {
		counts[r.Status]++
		if r.Waiting {
			waiting++
		}
	}
	for _, st := range statusLabels {
		m.robots.WithLabelValues(st.String()).Set(float64(counts[st]))
	}
	m.warnings.Set(float64(len(s.Warnings)))
	m.holds.Set(float64(waiting))

	reserved := 0
	for _, e := range s.Reservations {
		if e.Holder != 0 {
			reserved++
		}
	}
	m.reserved.Set(float64(reserved))
}
