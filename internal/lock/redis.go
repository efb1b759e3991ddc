package lock

import (
	"context"
	"fmt"
	"time"

	"github.com/diewo77/quote-optimizer/internal/apperrors"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

var unlockScript = redis.NewScript(`
	if redis.call("GET", KEYS[1]) == ARGV[1] then
		return redis.call("DEL", KEYS[1])
	else
		return 0
	end
`)

var extendScript = redis.NewScript(`
	if redis.call("GET", KEYS[1]) == ARGV[1] then
		return redis.call("PEXPIRE", KEYS[1], ARGV[2])
	else
		return 0
	end
`)

// Redis holds the lock as a key with an owner token and a TTL, for
// deployments where runs start from several hosts. While the lock is held a
// watchdog pushes the TTL forward every ttl/3, so a run longer than the TTL
// keeps its lock.
type Redis struct {
	client   redis.UniversalClient
	key      string
	ttl      time.Duration
	interval time.Duration
	logger   *zap.Logger
}

func NewRedis(client redis.UniversalClient, name string, ttl time.Duration, logger *zap.Logger) *Redis {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Redis{
		client:   client,
		key:      "quoteopt:lock:" + name,
		ttl:      ttl,
		interval: ttl / 3,
		logger:   logger.With(zap.String("lock", "quoteopt:lock:"+name)),
	}
}

func (r *Redis) Acquire(ctx context.Context) (Release, error) {
	token := uuid.NewString()
	ok, err := r.client.SetNX(ctx, r.key, token, r.ttl).Result()
	if err != nil {
		return nil, fmt.Errorf("lock %s: %w", r.key, err)
	}
	if !ok {
		return nil, apperrors.ErrRunInProgress
	}

	extend := func(ctx context.Context) (bool, error) {
		n, err := extendScript.Run(ctx, r.client, []string{r.key}, token, r.ttl.Milliseconds()).Int64()
		if err != nil {
			return false, err
		}
		return n == 1, nil
	}
	stop := startWatchdog(extend, r.interval, r.logger)

	return func(ctx context.Context) error {
		stop()
		n, err := unlockScript.Run(ctx, r.client, []string{r.key}, token).Int64()
		if err != nil {
			return fmt.Errorf("unlock %s: %w", r.key, err)
		}
		if n == 0 {
			// the TTL expired and someone else may hold the key now
			return apperrors.ErrLockNotHeld
		}
		return nil
	}, nil
}

// startWatchdog calls extend every interval until the returned stop func is
// called or extend reports the lock gone. stop waits for the goroutine.
func startWatchdog(extend func(context.Context) (bool, error), interval time.Duration, logger *zap.Logger) (stop func()) {
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go runWatchdog(ctx, extend, interval, logger, done)
	return func() {
		cancel()
		<-done
	}
}

func runWatchdog(ctx context.Context, extend func(context.Context) (bool, error), interval time.Duration, logger *zap.Logger, done chan struct{}) {
	defer close(done)
	if interval <= 0 {
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			ok, err := extend(ctx)
			if err != nil {
				if ctx.Err() != nil {
					return
				}
				logger.Error("lock extend failed", zap.Error(err))
				return
			}
			if !ok {
				logger.Warn("lock lost before release")
				return
			}
		}
	}
}
