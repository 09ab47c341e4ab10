package state

import (
	"fmt"
	"strings"
	"time"
)

type StoreDriver string

const (
	DriverMemory  StoreDriver = "memory"
	DriverRedis   StoreDriver = "redis"
	DriverUpstash StoreDriver = "upstash"
)

type StoreConfig struct {
	Driver    string        `default:"memory"`
	TTL       time.Duration `default:"24h"`
	KeyPrefix string        `envconfig:"KEY_PREFIX" split_words:"true" default:"chat:session:"`

	Redis   RedisConfig
	Upstash UpstashRedisConfig
}

// NewStore builds the session store selected by cfg.Driver.
func NewStore(cfg StoreConfig) (Store, error) {
	opts := []StoreOption{
		WithTTL(cfg.TTL),
		WithKeyPrefix(cfg.KeyPrefix),
	}

	switch StoreDriver(strings.ToLower(strings.TrimSpace(cfg.Driver))) {
	case DriverMemory, "":
		return NewMemoryStore(opts...), nil
	case DriverRedis:
		return NewRedisStore(NewRedisClient(cfg.Redis), opts...)
	case DriverUpstash:
		return NewUpstashRedisStore(cfg.Upstash, opts...)
	default:
		return nil, fmt.Errorf("unsupported session store driver %q", cfg.Driver)
	}
}
