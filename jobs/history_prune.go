package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"

	"github.com/greengate-erp/greengate-erp/internal/pricing"
	"github.com/greengate-erp/greengate-erp/internal/shared"
)

// HistoryPruneJob removes price ledger entries older than the retention
// window. Only the trailing three days feed pricing, so old entries are pure
// audit weight.
type HistoryPruneJob struct {
	Pricing       *pricing.Service
	Idempotency   *shared.IdempotencyStore
	RetentionDays int
	Logger        *slog.Logger
	clock         func() time.Time
}

// NewHistoryPruneJob wires dependencies for the prune handler.
func NewHistoryPruneJob(pricingSvc *pricing.Service, idem *shared.IdempotencyStore, retentionDays int, logger *slog.Logger) *HistoryPruneJob {
	return &HistoryPruneJob{
		Pricing:       pricingSvc,
		Idempotency:   idem,
		RetentionDays: retentionDays,
		Logger:        logger,
		clock:         func() time.Time { return time.Now().UTC() },
	}
}

// Handle processes history prune tasks.
func (j *HistoryPruneJob) Handle(ctx context.Context, t *asynq.Task) error {
	if j == nil || j.Pricing == nil {
		return errors.New("history prune: handler not configured")
	}
	var payload HistoryPrunePayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return asynq.SkipRetry
	}
	retention := payload.RetentionDays
	if retention <= 0 {
		retention = j.RetentionDays
	}
	if retention <= 0 {
		retention = 90
	}
	cutoff := j.clock().AddDate(0, 0, -retention)
	removed, err := j.Pricing.PruneHistory(ctx, cutoff)
	if err != nil {
		j.logger().Error("history prune failed", slog.Any("error", err))
		return err
	}
	if j.Idempotency != nil {
		if err := j.Idempotency.Cleanup(ctx, time.Duration(retention)*24*time.Hour); err != nil {
			j.logger().Warn("idempotency cleanup failed", slog.Any("error", err))
		}
	}
	j.logger().Info("history pruned", slog.String("before", shared.FormatDay(cutoff)), slog.Int64("removed", removed))
	return nil
}

func (j *HistoryPruneJob) logger() *slog.Logger {
	if j.Logger != nil {
		return j.Logger
	}
	return slog.Default()
}
