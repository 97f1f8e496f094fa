package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics for the application
type Metrics struct {
	registry *prometheus.Registry

	// Command metrics
	CommandsTotal        *prometheus.CounterVec
	CommandDuration      *prometheus.HistogramVec
	CommandsBlockedTotal prometheus.Counter

	// Session metrics
	SessionsActive       prometheus.Gauge
	SessionsStartedTotal prometheus.Counter
	SessionRestartsTotal prometheus.Counter
	ShutdownStagesTotal  *prometheus.CounterVec

	// Agent metrics
	AgentRunsTotal  *prometheus.CounterVec
	AgentRunTurns   prometheus.Histogram
	LLMCallsTotal   *prometheus.CounterVec
	LLMCallDuration *prometheus.HistogramVec
}

// NewMetrics creates and registers all metrics
func NewMetrics() *Metrics {
	registry := prometheus.NewRegistry()

	m := &Metrics{
		registry: registry,

		// Command metrics
		CommandsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "shell_commands_total",
				Help: "Total number of shell commands executed, by outcome",
			},
			[]string{"outcome"},
		),
		CommandDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "shell_command_duration_seconds",
				Help:    "Duration of shell command executions in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"outcome"},
		),
		CommandsBlockedTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "shell_commands_blocked_total",
				Help: "Total number of commands rejected by the security gate",
			},
		),

		// Session metrics
		SessionsActive: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "shell_sessions_active",
				Help: "Number of currently live bash sessions",
			},
		),
		SessionsStartedTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "shell_sessions_started_total",
				Help: "Total number of bash sessions started",
			},
		),
		SessionRestartsTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "shell_session_restarts_total",
				Help: "Total number of bash session restarts after a crash or write failure",
			},
		),
		ShutdownStagesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "shell_shutdown_stages_total",
				Help: "Total number of shutdown escalation stages reached",
			},
			[]string{"stage"},
		),

		// Agent metrics
		AgentRunsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "agent_runs_total",
				Help: "Total number of agent runs, by status",
			},
			[]string{"status"},
		),
		AgentRunTurns: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "agent_run_turns",
				Help:    "Number of model turns taken per agent run",
				Buckets: []float64{1, 2, 3, 5, 8, 13, 20},
			},
		),
		LLMCallsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "llm_calls_total",
				Help: "Total number of LLM provider calls, by provider and status",
			},
			[]string{"provider", "status"},
		),
		LLMCallDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "llm_call_duration_seconds",
				Help:    "Duration of LLM provider calls in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"provider"},
		),
	}

	// Register all metrics
	m.registerMetrics()

	return m
}

// registerMetrics registers all metrics with the registry
func (m *Metrics) registerMetrics() {
	// Command metrics
	m.registry.MustRegister(m.CommandsTotal)
	m.registry.MustRegister(m.CommandDuration)
	m.registry.MustRegister(m.CommandsBlockedTotal)

	// Session metrics
	m.registry.MustRegister(m.SessionsActive)
	m.registry.MustRegister(m.SessionsStartedTotal)
	m.registry.MustRegister(m.SessionRestartsTotal)
	m.registry.MustRegister(m.ShutdownStagesTotal)

	// Agent metrics
	m.registry.MustRegister(m.AgentRunsTotal)
	m.registry.MustRegister(m.AgentRunTurns)
	m.registry.MustRegister(m.LLMCallsTotal)
	m.registry.MustRegister(m.LLMCallDuration)
}

// Handler returns an HTTP handler for the metrics endpoint
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{
		EnableOpenMetrics: true,
	})
}

// Registry returns the Prometheus registry
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}
