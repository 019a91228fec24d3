package jobs

import (
	"encoding/json"

	"github.com/hibiken/asynq"
)

const (
	// QueueDefault is the default queue name for background jobs.
	QueueDefault = "default"
	// TaskSummaryWarmup pre-computes the cutoff summary for a day.
	TaskSummaryWarmup = "orders:summary_warmup"
	// TaskHistoryPrune removes price ledger entries past retention, along
	// with expired idempotency keys.
	TaskHistoryPrune = "pricing:history_prune"
)

// SummaryWarmupPayload names the day to warm; empty means today.
type SummaryWarmupPayload struct {
	Day string `json:"day,omitempty"`
}

// NewSummaryWarmupTask constructs an Asynq task.
func NewSummaryWarmupTask(payload SummaryWarmupPayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskSummaryWarmup, data), nil
}

// HistoryPrunePayload overrides the retention window in days; zero means the
// configured default.
type HistoryPrunePayload struct {
	RetentionDays int `json:"retention_days,omitempty"`
}

// NewHistoryPruneTask constructs an Asynq task.
func NewHistoryPruneTask(payload HistoryPrunePayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskHistoryPrune, data), nil
}
