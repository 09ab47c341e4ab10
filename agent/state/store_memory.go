package state

import (
	"context"
	"time"

	"github.com/patrickmn/go-cache"
)

// MemoryStore keeps encoded sessions in process memory with expiry.
// Sessions are stored encoded so callers never share a live Session.
type MemoryStore struct {
	cache     *cache.Cache
	keyPrefix string
}

func NewMemoryStore(opts ...StoreOption) *MemoryStore {
	o := applyStoreOptions(opts)
	ttl := o.ttl
	if ttl <= 0 {
		ttl = cache.NoExpiration
	}
	return &MemoryStore{
		cache:     cache.New(ttl, 10*time.Minute),
		keyPrefix: o.keyPrefix,
	}
}

func (s *MemoryStore) Load(_ context.Context, sessionID string) (*Session, error) {
	key, err := sessionKey(s.keyPrefix, sessionID)
	if err != nil {
		return nil, err
	}
	x, found := s.cache.Get(key)
	if !found {
		return nil, ErrStateNotFound
	}
	return decodeSession(x.([]byte))
}

func (s *MemoryStore) Save(_ context.Context, sess *Session) error {
	payload, err := encodeSession(sess)
	if err != nil {
		return err
	}
	key, err := sessionKey(s.keyPrefix, sess.ID)
	if err != nil {
		return err
	}
	s.cache.Set(key, payload, cache.DefaultExpiration)
	return nil
}

func (s *MemoryStore) Delete(_ context.Context, sessionID string) error {
	key, err := sessionKey(s.keyPrefix, sessionID)
	if err != nil {
		return err
	}
	s.cache.Delete(key)
	return nil
}
