package ratelimit

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/redis/go-redis/v9"
)

// Spend is tracked in micro-dollars so Redis counters stay integral.
const microUSD = 1_000_000

// SpendResult is the outcome of a daily spend check.
type SpendResult struct {
	Allowed  bool
	SpentUSD float64
	LimitUSD float64
}

// SpendTracker tracks estimated daily USD spend per session via Redis.
type SpendTracker struct {
	rdb *redis.Client
}

// NewSpendTracker creates a spend tracker. If rdb is nil, all checks pass.
func NewSpendTracker(rdb *redis.Client) *SpendTracker {
	return &SpendTracker{rdb: rdb}
}

func dailySpendKey(sessionID string) string {
	day := time.Now().UTC().Format("2006-01-02")
	return fmt.Sprintf("prism:spend:daily:%s:%s", sessionID, day)
}

// CheckDailySpend checks if the session is under its daily spend limit.
// A zero limit disables the check.
func (s *SpendTracker) CheckDailySpend(ctx context.Context, sessionID string, limitUSD float64) (SpendResult, error) {
	if s.rdb == nil || limitUSD <= 0 {
		return SpendResult{Allowed: true, LimitUSD: limitUSD}, nil
	}

	spent, err := s.rdb.Get(ctx, dailySpendKey(sessionID)).Int64()
	if err != nil && err != redis.Nil {
		// Fail open on Redis errors
		return SpendResult{Allowed: true, LimitUSD: limitUSD}, nil
	}

	spentUSD := float64(spent) / microUSD
	return SpendResult{
		Allowed:  spentUSD < limitUSD,
		SpentUSD: spentUSD,
		LimitUSD: limitUSD,
	}, nil
}

// RecordSpend adds estimated cost to the session's daily spend counter.
func (s *SpendTracker) RecordSpend(ctx context.Context, sessionID string, costUSD float64) error {
	if s.rdb == nil || costUSD <= 0 {
		return nil
	}

	micro := int64(math.Ceil(costUSD * microUSD))
	key := dailySpendKey(sessionID)
	pipe := s.rdb.Pipeline()
	pipe.IncrBy(ctx, key, micro)
	// Expire at end of day UTC + 1 hour buffer
	now := time.Now().UTC()
	endOfDay := time.Date(now.Year(), now.Month(), now.Day()+1, 0, 0, 0, 0, time.UTC)
	pipe.Expire(ctx, key, endOfDay.Sub(now)+time.Hour)
	_, err := pipe.Exec(ctx)
	return err
}
