package observability

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

const namespace = "grader"

// Registry is served on /metrics.
var Registry = prometheus.NewRegistry()

var (
	admissionDecisions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "admission",
			Name:      "decisions_total",
			Help:      "Count of admission decisions by tool and decision.",
		},
		[]string{"tool", "decision"},
	)
	admissionInFlight = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "admission",
			Name:      "in_flight",
			Help:      "Number of admitted gradings currently running per tool.",
		},
		[]string{"tool"},
	)
	outcomes = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "assessment",
			Name:      "outcomes_total",
			Help:      "Count of classified assessment outcomes by tool and kind.",
		},
		[]string{"tool", "kind"},
	)
	correctorDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "corrector",
			Name:      "duration_seconds",
			Help:      "Corrector run latency by runner kind.",
			Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60, 120},
		},
		[]string{"runner"},
	)
)

var registerMetrics sync.Once

// Register all metrics.
func Register() {
	registerMetrics.Do(func() {
		Registry.MustRegister(admissionDecisions)
		Registry.MustRegister(admissionInFlight)
		Registry.MustRegister(outcomes)
		Registry.MustRegister(correctorDuration)
		Registry.MustRegister(collectors.NewGoCollector())
		Registry.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	})
}

func RecordAdmission(tool, decision string) {
	admissionDecisions.WithLabelValues(tool, decision).Inc()
}

func SetInFlight(tool string, n int) {
	admissionInFlight.WithLabelValues(tool).Set(float64(n))
}

func RecordOutcome(tool, kind string) {
	outcomes.WithLabelValues(tool, kind).Inc()
}

func RecordCorrectorDuration(runner string, elapsed time.Duration) {
	correctorDuration.WithLabelValues(runner).Observe(elapsed.Seconds())
}
