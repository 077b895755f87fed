package ratelimit

import (
	"context"
	"fmt"
	"strings"

	redis "github.com/redis/go-redis/v9"
	"github.com/pawprintlabs/pawprint/internal/config"
)

const keyStatusPoll = "status:poll:%s"

// StatusPollLimiter throttles the order status polling endpoint per client.
// The thank-you page polls until the report is ready, so the limit just has
// to keep a stuck or hostile client from hammering the database. Disabled
// when no redis address is configured.
type StatusPollLimiter struct {
	enabled bool
	bucket  *TokenBucket
	rate    float64
	burst   int
}

func NewStatusPollLimiter(cfg config.Config) *StatusPollLimiter {
	addr := strings.TrimSpace(cfg.RedisAddr)
	if addr == "" {
		return nil
	}

	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: strings.TrimSpace(cfg.RedisPassword),
	})

	return &StatusPollLimiter{
		enabled: true,
		bucket:  NewTokenBucket(client),
		rate:    2,
		burst:   10,
	}
}

func (l *StatusPollLimiter) Enabled() bool {
	return l != nil && l.enabled
}

func (l *StatusPollLimiter) Allow(ctx context.Context, clientKey string) (bool, error) {
	if !l.Enabled() {
		return true, nil
	}
	return l.bucket.Allow(ctx, fmt.Sprintf(keyStatusPoll, strings.TrimSpace(clientKey)), l.rate, l.burst)
}
