package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"
)

// RedisStore keeps a profile in Redis. Change notification rides a pub/sub
// channel per profile, so every client of the same profile observes writes
// from the others.
type RedisStore struct {
	client  *redis.Client
	profile string
}

func NewRedisStore(client *redis.Client, profile string) (*RedisStore, error) {
	if profile == "" {
		return nil, errors.New("store: profile name is required")
	}
	return &RedisStore{client: client, profile: profile}, nil
}

func (s *RedisStore) Get(key string) ([]byte, bool, error) {
	data, err := s.client.Get(context.Background(), s.redisKey(key)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("store: redis get failed: %w", err)
	}
	return data, true, nil
}

func (s *RedisStore) Set(key string, value []byte) error {
	ctx := context.Background()
	if err := s.client.Set(ctx, s.redisKey(key), value, 0).Err(); err != nil {
		return fmt.Errorf("store: redis set failed: %w", err)
	}
	return s.publish(ctx, key)
}

func (s *RedisStore) Delete(key string) error {
	ctx := context.Background()
	if err := s.client.Del(ctx, s.redisKey(key)).Err(); err != nil {
		return fmt.Errorf("store: redis delete failed: %w", err)
	}
	return s.publish(ctx, key)
}

func (s *RedisStore) Watch(ctx context.Context) (<-chan Event, error) {
	sub := s.client.Subscribe(ctx, s.channel())
	if _, err := sub.Receive(ctx); err != nil {
		_ = sub.Close()
		return nil, fmt.Errorf("store: redis subscribe failed: %w", err)
	}
	ch := make(chan Event, 16)
	go func() {
		defer close(ch)
		defer func() { _ = sub.Close() }()
		msgs := sub.Channel()
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-msgs:
				if !ok {
					return
				}
				select {
				case ch <- Event{Key: msg.Payload}:
				default:
				}
			}
		}
	}()
	return ch, nil
}

func (s *RedisStore) publish(ctx context.Context, key string) error {
	if err := s.client.Publish(ctx, s.channel(), key).Err(); err != nil {
		return fmt.Errorf("store: redis publish failed: %w", err)
	}
	return nil
}

func (s *RedisStore) redisKey(key string) string {
	return fmt.Sprintf("profile:%s:%s", s.profile, key)
}

func (s *RedisStore) channel() string {
	return fmt.Sprintf("profile:%s:events", s.profile)
}
