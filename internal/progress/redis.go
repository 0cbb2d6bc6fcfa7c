package progress

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	redisv9 "github.com/redis/go-redis/v9"
)

// RedisCache backs the fast progress tier with Redis, for deployments that
// want resume positions shared across server instances.
type RedisCache struct {
	client *redisv9.Client
}

// NewRedisCache connects to Redis and verifies the connection.
func NewRedisCache(ctx context.Context, addr, password string, db int) (*RedisCache, error) {
	client := redisv9.NewClient(&redisv9.Options{
		Addr:         addr,
		Password:     password,
		DB:           db,
		DialTimeout:  3 * time.Second,
		ReadTimeout:  2 * time.Second,
		WriteTimeout: 2 * time.Second,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		return nil, fmt.Errorf("ping redis failed: %w", err)
	}

	return &RedisCache{client: client}, nil
}

func (c *RedisCache) Get(ctx context.Context, userID, documentID uint) (string, bool) {
	marker, err := c.client.Get(ctx, c.key(userID, documentID)).Result()
	if errors.Is(err, redisv9.Nil) {
		return "", false
	}
	if err != nil {
		log.Printf("[PROGRESS] redis get failed: %v", err)
		return "", false
	}
	return marker, true
}

func (c *RedisCache) Set(ctx context.Context, userID, documentID uint, marker string) {
	if err := c.client.Set(ctx, c.key(userID, documentID), marker, 0).Err(); err != nil {
		log.Printf("[PROGRESS] redis set failed: %v", err)
	}
}

// Close releases the Redis connection.
func (c *RedisCache) Close() error {
	return c.client.Close()
}

func (c *RedisCache) key(userID, documentID uint) string {
	return fmt.Sprintf("progress:%d:%d", userID, documentID)
}
