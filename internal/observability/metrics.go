package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics collects runtime metrics for the tool control plane.
type Metrics struct {
	// ToolExecutions counts tool invocations that reached an executor.
	// Labels: tool, status (success|error|timeout)
	ToolExecutions *prometheus.CounterVec

	// ToolDuration measures executor latency in seconds.
	// Labels: tool
	ToolDuration *prometheus.HistogramVec

	// CacheLookups counts result cache lookups.
	// Labels: tool, outcome (hit|miss)
	CacheLookups *prometheus.CounterVec

	// PolicyBlocks counts calls refused by the control plane itself.
	// Labels: tool, reason (plan_gate|failure_loop|validation)
	PolicyBlocks *prometheus.CounterVec

	// BatchItems observes batch sizes.
	// Labels: tool
	BatchItems *prometheus.HistogramVec

	// Retries counts middleware-level retry attempts.
	// Labels: tool
	Retries *prometheus.CounterVec

	// RoundsConsumed observes how many auto-continue rounds a turn used.
	RoundsConsumed prometheus.Histogram
}

// NewMetrics creates and registers all metrics with the given registerer.
// Pass nil to use the default Prometheus registry.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	factory := promauto.With(reg)

	return &Metrics{
		ToolExecutions: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "playground_tool_executions_total",
				Help: "Tool invocations that reached an executor, by tool and status",
			},
			[]string{"tool", "status"},
		),
		ToolDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "playground_tool_duration_seconds",
				Help:    "Tool executor latency in seconds",
				Buckets: []float64{0.01, 0.05, 0.1, 0.5, 1, 5, 10, 30, 60},
			},
			[]string{"tool"},
		),
		CacheLookups: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "playground_cache_lookups_total",
				Help: "Result cache lookups by tool and outcome",
			},
			[]string{"tool", "outcome"},
		),
		PolicyBlocks: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "playground_policy_blocks_total",
				Help: "Calls refused by the control plane, by tool and reason",
			},
			[]string{"tool", "reason"},
		),
		BatchItems: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "playground_batch_items",
				Help:    "Number of items per batch operation",
				Buckets: []float64{1, 2, 5, 10, 20},
			},
			[]string{"tool"},
		),
		Retries: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "playground_tool_retries_total",
				Help: "Middleware-level retry attempts by tool",
			},
			[]string{"tool"},
		),
		RoundsConsumed: factory.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "playground_rounds_consumed",
				Help:    "Automatic continuation rounds consumed per turn",
				Buckets: []float64{1, 2, 5, 10, 20, 50},
			},
		),
	}
}
