package main

import (
	"context"
	"errors"

	"github.com/go-redis/redis/v8"
)

// redisItemStore maps items onto plain Redis string keys.
type redisItemStore struct {
	client *redis.Client
}

func newRedisItemStore(addr string, db int) *redisItemStore {
	client := redis.NewClient(&redis.Options{
		Addr: addr,
		DB:   db,
	})
	return &redisItemStore{client: client}
}

func (s *redisItemStore) GetItem(ctx context.Context, key string) (string, bool, error) {
	value, err := s.client.Get(ctx, key).Result()
	if errors.Is(err, redis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return value, true, nil
}

func (s *redisItemStore) SetItem(ctx context.Context, key, value string) error {
	return s.client.Set(ctx, key, value, 0).Err()
}

func (s *redisItemStore) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

func (s *redisItemStore) Close() error {
	return s.client.Close()
}
