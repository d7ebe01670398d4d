package db

import (
	"context"
	"errors"
	"fmt"
	"log"

	"github.com/go-redis/redis/v8"
)

// RedisSlot keeps each envelope under a single Redis string key
type RedisSlot struct {
	Client *redis.Client
}

// NewRedisSlot creates a new RedisSlot instance
func NewRedisSlot(client *redis.Client) *RedisSlot {
	return &RedisSlot{Client: client}
}

// Get reads the raw envelope stored under key
func (s *RedisSlot) Get(ctx context.Context, key string) ([]byte, error) {
	data, err := s.Client.Get(ctx, key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrSlotEmpty
		}
		log.Printf("Error reading key %s: %v", key, err)
		return nil, fmt.Errorf("failed to read %s from Redis: %w", key, err)
	}
	return data, nil
}

// Set overwrites key with data. A single SET is atomic in Redis.
func (s *RedisSlot) Set(ctx context.Context, key string, data []byte) error {
	if err := s.Client.Set(ctx, key, data, 0).Err(); err != nil {
		log.Printf("Error writing key %s: %v", key, err)
		return fmt.Errorf("failed to write %s to Redis: %w", key, err)
	}
	return nil
}

// InitializeRedisClient creates and tests a Redis client connection
func InitializeRedisClient(ctx context.Context, addr, password string, db int) (*redis.Client, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	// Ping Redis to check connection
	if _, err := rdb.Ping(ctx).Result(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("could not connect to Redis at %s: %w", addr, err)
	}

	log.Printf("Successfully connected to Redis %s DB %d", addr, db)
	return rdb, nil
}
