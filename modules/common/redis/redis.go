package redis

import (
	"context"
	"crypto/tls"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"wrap-render-server/modules/common/config"
)

// ErrQueueEmpty - BRPOP timed out without a message
var ErrQueueEmpty = errors.New("queue empty")

// Connect - open the redis client and ping it
func Connect(cfg *config.Config, log zerolog.Logger) (*redis.Client, error) {
	log.Info().Msgf("🔌 [Redis] Connecting to %s", cfg.GetRedisAddr())

	var tlsConfig *tls.Config
	if cfg.RedisUseTLS {
		tlsConfig = &tls.Config{
			MinVersion:         tls.VersionTLS12,
			InsecureSkipVerify: true, // managed redis presents a self-signed chain
		}
	}

	rdb := redis.NewClient(&redis.Options{
		Addr:         cfg.GetRedisAddr(),
		Username:     cfg.RedisUsername,
		Password:     cfg.RedisPassword,
		TLSConfig:    tlsConfig,
		DB:           0,
		DialTimeout:  10 * time.Second,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redis ping failed: %w", err)
	}

	log.Info().Msg("✅ [Redis] Connected")
	return rdb, nil
}

// PushJSON - LPUSH a JSON encoded payload onto a list
func PushJSON(ctx context.Context, rdb redis.Cmdable, queue string, payload any) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to encode queue payload: %w", err)
	}
	if err := rdb.LPush(ctx, queue, data).Err(); err != nil {
		return fmt.Errorf("failed to push to %s: %w", queue, err)
	}
	return nil
}

// PopJSON - BRPOP one payload from a list and decode it into out.
// Returns ErrQueueEmpty when the timeout elapses.
func PopJSON(ctx context.Context, rdb redis.Cmdable, queue string, timeout time.Duration, out any) error {
	result, err := rdb.BRPop(ctx, timeout, queue).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return ErrQueueEmpty
		}
		return fmt.Errorf("failed to pop from %s: %w", queue, err)
	}
	// BRPOP returns [key, value]
	if len(result) < 2 {
		return ErrQueueEmpty
	}
	if err := json.Unmarshal([]byte(result[1]), out); err != nil {
		return fmt.Errorf("failed to decode queue payload: %w", err)
	}
	return nil
}
