package events

import (
	"time"

	"go.uber.org/zap"
)

// Event is one typed observability event emitted by the job pipeline.
type Event struct {
	Type         Type
	JobID        string
	MasterSlipID uint64
	Queue        string
	Progress     int
	Attempt      int
	Delay        time.Duration
	Error        string
	At           time.Time
}

type Type string

const (
	JobStarted    Type = "job_started"
	JobProgressed Type = "job_progressed"
	JobRetried    Type = "job_retried"
	JobCompleted  Type = "job_completed"
	JobFallenBack Type = "job_fallen_back"
	JobFailed     Type = "job_failed"
)

// Sink consumes pipeline events. Implementations must not block.
type Sink interface {
	Emit(e Event)
}

// ZapSink writes events to structured logs.
type ZapSink struct {
	Logger *zap.Logger
}

func (s *ZapSink) Emit(e Event) {
	if s == nil || s.Logger == nil {
		return
	}
	fields := []zap.Field{
		zap.String("job_id", e.JobID),
		zap.Uint64("master_slip_id", e.MasterSlipID),
	}
	if e.Queue != "" {
		fields = append(fields, zap.String("queue", e.Queue))
	}
	if e.Type == JobProgressed {
		fields = append(fields, zap.Int("progress", e.Progress))
	}
	if e.Type == JobRetried {
		fields = append(fields, zap.Int("attempt", e.Attempt), zap.Duration("delay", e.Delay))
	}
	if e.Error != "" {
		fields = append(fields, zap.String("error", e.Error))
	}
	s.Logger.Info(string(e.Type), fields...)
}

// NopSink discards events.
type NopSink struct{}

func (NopSink) Emit(Event) {}
