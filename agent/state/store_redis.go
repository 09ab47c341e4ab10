package state

import (
	"context"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"
)

// RedisStore persists sessions in a Redis server.
type RedisStore struct {
	client    redis.UniversalClient
	keyPrefix string
	opts      storeOptions
}

type RedisConfig struct {
	Addr     string `default:"localhost:6379"`
	Password string
	DB       int `default:"0"`
}

func NewRedisClient(cfg RedisConfig) *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
}

func NewRedisStore(client redis.UniversalClient, opts ...StoreOption) (*RedisStore, error) {
	if client == nil {
		return nil, errors.New("redis client is required")
	}
	o := applyStoreOptions(opts)
	if o.ttl < 0 {
		return nil, errors.New("ttl must be >= 0")
	}
	return &RedisStore{
		client:    client,
		keyPrefix: o.keyPrefix,
		opts:      o,
	}, nil
}

func (s *RedisStore) Load(ctx context.Context, sessionID string) (*Session, error) {
	key, err := sessionKey(s.keyPrefix, sessionID)
	if err != nil {
		return nil, err
	}
	raw, err := s.client.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrStateNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("redis get session: %w", err)
	}
	return decodeSession(raw)
}

func (s *RedisStore) Save(ctx context.Context, sess *Session) error {
	payload, err := encodeSession(sess)
	if err != nil {
		return err
	}
	key, err := sessionKey(s.keyPrefix, sess.ID)
	if err != nil {
		return err
	}
	if err := s.client.Set(ctx, key, payload, s.opts.ttl).Err(); err != nil {
		return fmt.Errorf("redis set session: %w", err)
	}
	return nil
}

func (s *RedisStore) Delete(ctx context.Context, sessionID string) error {
	key, err := sessionKey(s.keyPrefix, sessionID)
	if err != nil {
		return err
	}
	return s.client.Del(ctx, key).Err()
}
