package usecase

import (
	"context"

	applogger "QuantPull/pkg/logger"
	"QuantPull/pkg/queue"
)

// LogAggregateType is the queue message type for aggregated error logs.
const LogAggregateType = "log.aggregate"

// LogDrainJob consumes aggregated log batches from the queue and emits a
// per-entry summary, deduplicated upstream by the collector.
type LogDrainJob struct {
	log *applogger.Logger
}

func NewLogDrainJob(log *applogger.Logger) *LogDrainJob {
	return &LogDrainJob{log: log}
}

func (j *LogDrainJob) Name() string { return "log-drain" }
func (j *LogDrainJob) Type() string { return LogAggregateType }

func (j *LogDrainJob) Handle(ctx context.Context, payload interface{}) error {
	entries, err := queue.ParsePayload[[]applogger.AggregatedLogEntry](payload)
	if err != nil {
		return err
	}
	for _, e := range *entries {
		j.log.Info("aggregated log",
			applogger.String("level", e.Level),
			applogger.String("message", e.Message),
			applogger.String("caller", e.Caller),
			applogger.Int("count", e.Count),
		)
	}
	return nil
}

var _ queue.Job = (*LogDrainJob)(nil)
