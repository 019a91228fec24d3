package orders

import (
	"context"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/greengate-erp/greengate-erp/internal/shared"
)

// SummaryCache keeps computed day summaries in Redis. Cutoff summaries are
// read far more often than orders change, and staleness is bounded by both
// the TTL and explicit invalidation on every order write.
type SummaryCache struct {
	client *redis.Client
	ttl    time.Duration
}

// NewSummaryCache constructs a summary cache.
func NewSummaryCache(client *redis.Client, ttl time.Duration) *SummaryCache {
	return &SummaryCache{client: client, ttl: ttl}
}

func summaryKey(day time.Time) string {
	return "orders:summary:" + shared.FormatDay(day)
}

// Get returns the cached summary for a day, reporting whether one was found.
// Cache errors degrade to a miss.
func (c *SummaryCache) Get(ctx context.Context, day time.Time) (DaySummary, bool) {
	if c == nil || c.client == nil {
		return DaySummary{}, false
	}
	raw, err := c.client.Get(ctx, summaryKey(day)).Bytes()
	if err != nil {
		return DaySummary{}, false
	}
	var summary DaySummary
	if err := json.Unmarshal(raw, &summary); err != nil {
		return DaySummary{}, false
	}
	return summary, true
}

// Set stores the summary for a day.
func (c *SummaryCache) Set(ctx context.Context, day time.Time, summary DaySummary) {
	if c == nil || c.client == nil {
		return
	}
	raw, err := json.Marshal(summary)
	if err != nil {
		return
	}
	c.client.Set(ctx, summaryKey(day), raw, c.ttl)
}

// Invalidate drops the cached summary for a day.
func (c *SummaryCache) Invalidate(ctx context.Context, day time.Time) {
	if c == nil || c.client == nil {
		return
	}
	c.client.Del(ctx, summaryKey(day))
}
