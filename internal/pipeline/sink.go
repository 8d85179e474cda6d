package pipeline

import (
	"context"

	"SafeStack/internal/models"
	"SafeStack/pkg/util"
)

// SignalSink publishes created alerts on the process signal bus.
type SignalSink struct {
	signals *util.Signals
}

func NewSignalSink(signals *util.Signals) *SignalSink {
	return &SignalSink{signals: signals}
}

func (s *SignalSink) AlertCreated(_ context.Context, alert *models.AlertView) {
	s.signals.Emit(models.SigAlertCreated, alert)
}
