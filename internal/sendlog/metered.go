package sendlog

import (
	"context"

	"vendzz/pkg/metrics"
	"vendzz/pkg/models"
)

type meteredRecorder struct {
	Recorder
}

// WithMetrics counts every write by backend and outcome.
func WithMetrics(r Recorder) Recorder {
	return &meteredRecorder{Recorder: r}
}

func (m *meteredRecorder) Record(ctx context.Context, send models.ScheduledSend) error {
	err := m.Recorder.Record(ctx, send)
	status := "success"
	if err != nil {
		status = "error"
	}
	metrics.IncSendLogWrite(m.Backend(), status)
	return err
}
