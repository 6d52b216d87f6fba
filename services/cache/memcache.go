package cache

import (
	"time"

	"sjsage522/inventoryscraper/logger"
	"sjsage522/inventoryscraper/pkg/errors"

	"github.com/bradfitz/gomemcache/memcache"
)

const defaultTimeout = 500 * time.Millisecond

// MemcacheService implements CacheService using memcache
type MemcacheService struct {
	client *memcache.Client
	log    *logger.Logger
}

// NewMemcacheService creates a memcache-backed cache for one or more servers
func NewMemcacheService(servers ...string) *MemcacheService {
	client := memcache.New(servers...)
	client.Timeout = defaultTimeout

	return &MemcacheService{
		client: client,
		log:    logger.ForCache(),
	}
}

// Ping checks that every server is reachable
func (m *MemcacheService) Ping() error {
	if err := m.client.Ping(); err != nil {
		return errors.NewCache("memcache", "ping failed", err)
	}
	return nil
}

// Get retrieves a value from memcache. A miss is returned as
// memcache.ErrCacheMiss.
func (m *MemcacheService) Get(key string) ([]byte, error) {
	item, err := m.client.Get(key)
	if err != nil {
		if err != memcache.ErrCacheMiss {
			m.log.Warn().Err(err).Str("key", key).Msg("Cache get failed")
		}
		return nil, err
	}
	return item.Value, nil
}

// Set stores a value with an expiration rounded down to whole seconds
func (m *MemcacheService) Set(key string, value []byte, expiration time.Duration) error {
	err := m.client.Set(&memcache.Item{
		Key:        key,
		Value:      value,
		Expiration: int32(expiration.Seconds()),
	})
	if err != nil {
		return errors.NewCache(key, "set failed", err)
	}
	m.log.Debug().Str("key", key).Dur("ttl", expiration).Msg("Cache set")
	return nil
}

// Delete removes a value. Deleting a missing key is not an error.
func (m *MemcacheService) Delete(key string) error {
	if err := m.client.Delete(key); err != nil && err != memcache.ErrCacheMiss {
		return errors.NewCache(key, "delete failed", err)
	}
	return nil
}
