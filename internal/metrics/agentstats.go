package metrics

import "time"

// AgentStats translates agent run counters into Prometheus metrics.
type AgentStats struct {
	m *Metrics
}

// NewAgentStats wraps a Metrics instance for the agent run loop.
func NewAgentStats(m *Metrics) *AgentStats {
	return &AgentStats{m: m}
}

// RunFinished records one completed agent run.
func (a *AgentStats) RunFinished(status string, turns int) {
	a.m.AgentRunsTotal.WithLabelValues(status).Inc()
	a.m.AgentRunTurns.Observe(float64(turns))
}

// CallFinished records one LLM provider call.
func (a *AgentStats) CallFinished(provider string, status string, duration time.Duration) {
	a.m.LLMCallsTotal.WithLabelValues(provider, status).Inc()
	a.m.LLMCallDuration.WithLabelValues(provider).Observe(duration.Seconds())
}
