package bootstrap

import (
	"context"
	"crypto/tls"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"github.com/kungukcm/Hospital-Booking-System/internal/appointments"
	appconfig "github.com/kungukcm/Hospital-Booking-System/internal/config"
	"github.com/kungukcm/Hospital-Booking-System/internal/conversation"
	"github.com/kungukcm/Hospital-Booking-System/pkg/logging"
)

// BuildRedisClient returns a configured Redis client or nil when disabled.
// When verify is true, a ping is issued and failures return nil.
func BuildRedisClient(ctx context.Context, cfg *appconfig.Config, logger *logging.Logger, verify bool) *redis.Client {
	if cfg == nil || strings.TrimSpace(cfg.RedisAddr) == "" {
		return nil
	}
	if logger == nil {
		logger = logging.Default()
	}
	if ctx == nil {
		ctx = context.Background()
	}

	redisOptions := &redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
	}
	if cfg.RedisTLS {
		redisOptions.TLSConfig = &tls.Config{MinVersion: tls.VersionTLS12}
	}
	client := redis.NewClient(redisOptions)
	if !verify {
		return client
	}
	if err := client.Ping(ctx).Err(); err != nil {
		logger.Warn("redis not available", "error", err)
		_ = client.Close()
		return nil
	}
	return client
}

// BuildHistoryStore persists conversations in Redis when a client is
// available and in process memory otherwise.
func BuildHistoryStore(redisClient *redis.Client, cfg *appconfig.Config, logger *logging.Logger) conversation.HistoryStore {
	if redisClient == nil {
		if logger != nil {
			logger.Warn("redis not configured; conversation history kept in memory")
		}
		return conversation.NewMemoryHistoryStore()
	}
	return conversation.NewRedisHistoryStore(redisClient, cfg.ConversationTTL)
}

// BuildTurnLock shares the per-conversation turn lock through Redis when a
// client is available. The lock outlives a turn by a small margin so a crashed
// holder frees the conversation soon after its turn would have timed out.
func BuildTurnLock(redisClient *redis.Client, cfg *appconfig.Config) conversation.TurnLock {
	if redisClient == nil {
		return conversation.NewMemoryTurnLock()
	}
	return conversation.NewRedisTurnLock(redisClient, cfg.TurnTimeout+30*time.Second)
}

// BuildAppointmentStore returns a Postgres store when DATABASE_URL is set and
// an in-memory store otherwise. The returned pool is nil for the memory store.
func BuildAppointmentStore(ctx context.Context, cfg *appconfig.Config, logger *logging.Logger) (appointments.Store, *pgxpool.Pool, error) {
	if logger == nil {
		logger = logging.Default()
	}
	if strings.TrimSpace(cfg.DatabaseURL) == "" {
		logger.Warn("DATABASE_URL not set; appointments kept in memory")
		return appointments.NewMemoryStore(cfg.SlotCapacity), nil, nil
	}

	pool, err := pgxpool.New(ctx, cfg.DatabaseURL)
	if err != nil {
		return nil, nil, fmt.Errorf("bootstrap: connect postgres: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, nil, fmt.Errorf("bootstrap: ping postgres: %w", err)
	}
	logger.Info("appointments stored in postgres", "capacity", cfg.SlotCapacity)
	return appointments.NewPostgresStore(pool, cfg.SlotCapacity), pool, nil
}
