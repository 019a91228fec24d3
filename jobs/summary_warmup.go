package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"

	"github.com/greengate-erp/greengate-erp/internal/orders"
	"github.com/greengate-erp/greengate-erp/internal/shared"
)

// SummaryWarmupJob pre-computes cutoff summaries so the first morning reads
// hit the cache.
type SummaryWarmupJob struct {
	Orders *orders.Service
	Logger *slog.Logger
	clock  func() time.Time
}

// NewSummaryWarmupJob wires dependencies for the warmup handler.
func NewSummaryWarmupJob(ordersSvc *orders.Service, logger *slog.Logger) *SummaryWarmupJob {
	return &SummaryWarmupJob{
		Orders: ordersSvc,
		Logger: logger,
		clock:  func() time.Time { return time.Now().UTC() },
	}
}

// Handle processes summary warmup tasks.
func (j *SummaryWarmupJob) Handle(ctx context.Context, t *asynq.Task) error {
	if j == nil || j.Orders == nil {
		return errors.New("summary warmup: handler not configured")
	}
	var payload SummaryWarmupPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return asynq.SkipRetry
	}
	day := j.clock()
	if payload.Day != "" {
		parsed, err := shared.ParseDay(payload.Day)
		if err != nil {
			return asynq.SkipRetry
		}
		day = parsed
	}
	summary, err := j.Orders.CutoffSummary(ctx, day)
	if err != nil {
		j.logger().Error("summary warmup failed", slog.String("day", shared.FormatDay(day)), slog.Any("error", err))
		return err
	}
	j.logger().Info("summary warmed", slog.String("day", summary.Day), slog.Float64("total", summary.Total))
	return nil
}

func (j *SummaryWarmupJob) logger() *slog.Logger {
	if j.Logger != nil {
		return j.Logger
	}
	return slog.Default()
}
