package ratelimit

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	extratelimit "github.com/vnmchuo/ratelimiter"
)

// Limiter budgets completion tokens per client per minute, backed by github.com/vnmchuo/ratelimiter.
type Limiter struct {
	store extratelimit.Limiter
}

func NewLimiter(rdb *redis.Client, tokensPerMinute int64) *Limiter {
	store := extratelimit.NewRedisStore(rdb,
		extratelimit.WithLimit(int(tokensPerMinute)),
		extratelimit.WithWindow(time.Minute),
	)
	return &Limiter{store: store}
}

func NewTestLimiter(store extratelimit.Limiter) *Limiter {
	return &Limiter{store: store}
}

// Allow charges tokens against the client's budget. A nil Limiter allows everything.
func (l *Limiter) Allow(ctx context.Context, clientKey string, tokens int) (bool, error) {
	if l == nil {
		return true, nil
	}
	res, err := l.store.AllowN(ctx, key(clientKey), tokens)
	if err != nil {
		return false, err
	}
	return res.Allowed, nil
}

// Status peeks at the client's budget without charging it. A nil Limiter
// returns a nil Result.
func (l *Limiter) Status(ctx context.Context, clientKey string) (*extratelimit.Result, error) {
	if l == nil {
		return nil, nil
	}
	return l.store.Status(ctx, key(clientKey))
}

func key(clientKey string) string {
	return fmt.Sprintf("ratelimit:letter:%s", clientKey)
}
