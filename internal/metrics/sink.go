package metrics

import (
	"github.com/shelldon-ai/shelldon/pkg/shell"
)

// Sink translates shell lifecycle events into Prometheus metrics.
type Sink struct {
	m *Metrics
}

// NewSink wraps a Metrics instance as a shell.EventSink.
func NewSink(m *Metrics) *Sink {
	return &Sink{m: m}
}

// SessionStarted implements shell.EventSink.
func (s *Sink) SessionStarted(sessionID string, pid int) {
	s.m.SessionsStartedTotal.Inc()
	s.m.SessionsActive.Inc()
}

// SessionRestarted implements shell.EventSink.
func (s *Sink) SessionRestarted(sessionID string) {
	s.m.SessionRestartsTotal.Inc()
}

// SessionClosed implements shell.EventSink.
func (s *Sink) SessionClosed(sessionID string, exitCode int) {
	s.m.SessionsActive.Dec()
}

// ShutdownEscalated implements shell.EventSink.
func (s *Sink) ShutdownEscalated(sessionID string, stage string) {
	s.m.ShutdownStagesTotal.WithLabelValues(stage).Inc()
}

// CommandStarted implements shell.EventSink.
func (s *Sink) CommandStarted(sessionID string, command string) {}

// CommandFinished implements shell.EventSink.
func (s *Sink) CommandFinished(sessionID string, command string, result shell.Result) {
	outcome := result.Outcome.String()
	s.m.CommandsTotal.WithLabelValues(outcome).Inc()
	s.m.CommandDuration.WithLabelValues(outcome).Observe(result.Duration.Seconds())
	if result.Outcome == shell.OutcomeBlocked {
		s.m.CommandsBlockedTotal.Inc()
	}
}
