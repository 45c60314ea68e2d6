package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/Domenick1991/coursebot/config"
	"github.com/Domenick1991/coursebot/internal/domain"
	"github.com/redis/go-redis/v9"
)

type RedisCache struct {
	client   *redis.Client
	statsTTL time.Duration
}

func NewRedisCache(cfg config.RedisConfig, statsTTL time.Duration) *RedisCache {
	return NewRedisCacheWithClient(redis.NewClient(&redis.Options{Addr: cfg.Addr, Password: cfg.Password, DB: cfg.DB}), statsTTL)
}

func NewRedisCacheWithClient(client *redis.Client, statsTTL time.Duration) *RedisCache {
	return &RedisCache{client: client, statsTTL: statsTTL}
}

func (c *RedisCache) Ping(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}

func (c *RedisCache) Close() error {
	return c.client.Close()
}

// GetSession returns nil, nil on a miss.
func (c *RedisCache) GetSession(ctx context.Context, userID int64) (*domain.Session, error) {
	data, err := c.client.Get(ctx, sessionKey(userID)).Bytes()
	if err != nil {
		if err == redis.Nil {
			return nil, nil
		}
		return nil, err
	}

	var s domain.Session
	if err := json.Unmarshal(data, &s); err != nil {
		return nil, err
	}
	return &s, nil
}

// SetSession stores the session until its own expiry.
func (c *RedisCache) SetSession(ctx context.Context, s *domain.Session) error {
	ttl := time.Until(s.ExpiresAt)
	if ttl <= 0 {
		return c.DeleteSession(ctx, s.UserID)
	}
	payload, err := json.Marshal(s)
	if err != nil {
		return err
	}
	return c.client.Set(ctx, sessionKey(s.UserID), payload, ttl).Err()
}

func (c *RedisCache) DeleteSession(ctx context.Context, userID int64) error {
	return c.client.Del(ctx, sessionKey(userID)).Err()
}

func (c *RedisCache) GetStats(ctx context.Context) (*domain.StatsSummary, error) {
	data, err := c.client.Get(ctx, statsKey()).Bytes()
	if err != nil {
		if err == redis.Nil {
			return nil, nil
		}
		return nil, err
	}

	var s domain.StatsSummary
	if err := json.Unmarshal(data, &s); err != nil {
		return nil, err
	}
	return &s, nil
}

func (c *RedisCache) SetStats(ctx context.Context, s *domain.StatsSummary) error {
	payload, err := json.Marshal(s)
	if err != nil {
		return err
	}
	return c.client.Set(ctx, statsKey(), payload, c.statsTTL).Err()
}

// AcquireReminderLock keeps two bot replicas from running the same reminder pass.
func (c *RedisCache) AcquireReminderLock(ctx context.Context, lessonType string, ttl time.Duration) (bool, error) {
	return c.client.SetNX(ctx, reminderLockKey(lessonType), "locked", ttl).Result()
}

func (c *RedisCache) ReleaseReminderLock(ctx context.Context, lessonType string) error {
	return c.client.Del(ctx, reminderLockKey(lessonType)).Err()
}

func sessionKey(userID int64) string {
	return fmt.Sprintf("session:user:%d", userID)
}

func statsKey() string {
	return "cache:stats:summary"
}

func reminderLockKey(lessonType string) string {
	return fmt.Sprintf("lock:reminder:%s", lessonType)
}
