package redisstore

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/devedd/neurochat/internal/common"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// indexes must outlive every member they track, otherwise an expired index
// leaves members behind that can no longer be invalidated.
const minIndexTTL = time.Hour

type Options struct {
	Addr       string
	Password   string
	DB         int
	HMACSecret string
}

// Store is the cache client. Logical keys never reach redis: every physical key
// is HMAC-SHA256(secret, logical key). The connection is opened on first use.
type Store struct {
	opts   Options
	secret []byte
	log    *zap.Logger

	mu     sync.Mutex
	client *redis.Client
}

func New(opts Options, log *zap.Logger) *Store {
	return &Store{
		opts:   opts,
		secret: []byte(opts.HMACSecret),
		log:    log.Named("cache"),
	}
}

// Connect is idempotent. A failed attempt leaves the store unconnected so the
// next call tries again.
func (s *Store) Connect(ctx context.Context) error {
	_, err := s.conn(ctx)
	return err
}

func (s *Store) conn(ctx context.Context) (*redis.Client, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.client != nil {
		return s.client, nil
	}

	c := redis.NewClient(&redis.Options{
		Addr:         s.opts.Addr,
		Password:     s.opts.Password,
		DB:           s.opts.DB,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 5 * time.Second,
		MaxRetries:   1,
	})
	if err := c.Ping(ctx).Err(); err != nil {
		_ = c.Close()
		s.log.Error("redis connect failed", zap.String("addr", s.opts.Addr), zap.Error(err))
		return nil, common.ErrCacheUnavailable.Wrap(err)
	}
	s.log.Info("redis connected", zap.String("addr", s.opts.Addr))
	s.client = c
	return c, nil
}

func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.client == nil {
		return nil
	}
	err := s.client.Close()
	s.client = nil
	s.log.Info("redis connection closed")
	return err
}

func (s *Store) Ping(ctx context.Context) error {
	c, err := s.conn(ctx)
	if err != nil {
		return err
	}
	return c.Ping(ctx).Err()
}

// HashKey maps a logical key to its physical redis key.
func (s *Store) HashKey(key string) string {
	m := hmac.New(sha256.New, s.secret)
	m.Write([]byte(key))
	return hex.EncodeToString(m.Sum(nil))
}

// Get returns ok=false when the key is absent.
func (s *Store) Get(ctx context.Context, key string) ([]byte, bool, error) {
	c, err := s.conn(ctx)
	if err != nil {
		return nil, false, err
	}
	b, err := c.Get(ctx, s.HashKey(key)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, false, nil
		}
		return nil, false, err
	}
	return b, true, nil
}

// Set stores value under key. ttl <= 0 means no expiry.
func (s *Store) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	c, err := s.conn(ctx)
	if err != nil {
		return err
	}
	if ttl < 0 {
		ttl = 0
	}
	return c.Set(ctx, s.HashKey(key), value, ttl).Err()
}

// Delete removes keys. Unlike the JSON helpers it reports transport failures:
// a delete that did not happen leaves stale state behind.
func (s *Store) Delete(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}
	c, err := s.conn(ctx)
	if err != nil {
		return err
	}
	hashed := make([]string, 0, len(keys))
	for _, k := range keys {
		hashed = append(hashed, s.HashKey(k))
	}
	if err := c.Del(ctx, hashed...).Err(); err != nil {
		s.log.Error("cache delete failed", zap.Strings("keys", keys), zap.Error(err))
		return fmt.Errorf("cache delete: %w", err)
	}
	return nil
}

func (s *Store) Exists(ctx context.Context, key string) (bool, error) {
	c, err := s.conn(ctx)
	if err != nil {
		return false, err
	}
	n, err := c.Exists(ctx, s.HashKey(key)).Result()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

// TTL reports the remaining lifetime of key (negative when absent or persistent).
func (s *Store) TTL(ctx context.Context, key string) (time.Duration, error) {
	c, err := s.conn(ctx)
	if err != nil {
		return 0, err
	}
	return c.TTL(ctx, s.HashKey(key)).Result()
}

// GetJSON decodes the value at key into dst. Transport and decode failures are
// logged and reported as a miss; only an unavailable connection is returned.
func (s *Store) GetJSON(ctx context.Context, key string, dst any) (bool, error) {
	raw, ok, err := s.Get(ctx, key)
	if err != nil {
		if errors.Is(err, common.ErrCacheUnavailable) {
			return false, err
		}
		s.log.Warn("cache read failed, treating as miss", zap.String("key", key), zap.Error(err))
		return false, nil
	}
	if !ok || len(raw) == 0 {
		return false, nil
	}
	if err := json.Unmarshal(raw, dst); err != nil {
		s.log.Warn("cache value is not valid json, treating as miss", zap.String("key", key), zap.Error(err))
		return false, nil
	}
	return true, nil
}

// SetJSON encodes v and stores it. Only an unavailable connection is returned.
func (s *Store) SetJSON(ctx context.Context, key string, v any, ttl time.Duration) error {
	payload, err := json.Marshal(v)
	if err != nil {
		s.log.Error("value not json serializable", zap.String("key", key), zap.Error(err))
		return nil
	}
	if err := s.Set(ctx, key, payload, ttl); err != nil {
		if errors.Is(err, common.ErrCacheUnavailable) {
			return err
		}
		s.log.Warn("cache write failed", zap.String("key", key), zap.Error(err))
	}
	return nil
}

// AddToIndex records key as a member of index so InvalidateIndex can find it.
func (s *Store) AddToIndex(ctx context.Context, index, key string, ttl time.Duration) error {
	c, err := s.conn(ctx)
	if err != nil {
		return err
	}
	if ttl < minIndexTTL {
		ttl = minIndexTTL
	}
	hidx := s.HashKey(index)
	_, err = c.TxPipelined(ctx, func(p redis.Pipeliner) error {
		p.SAdd(ctx, hidx, s.HashKey(key))
		p.Expire(ctx, hidx, ttl)
		return nil
	})
	if err != nil {
		return fmt.Errorf("cache index add %s: %w", index, err)
	}
	return nil
}

// InvalidateIndex deletes every key recorded under index, then the index itself.
func (s *Store) InvalidateIndex(ctx context.Context, index string) error {
	c, err := s.conn(ctx)
	if err != nil {
		return err
	}
	hidx := s.HashKey(index)
	members, err := c.SMembers(ctx, hidx).Result()
	if err != nil {
		s.log.Error("cache index read failed", zap.String("index", index), zap.Error(err))
		return nil
	}
	keys := append(members, hidx)
	if err := c.Del(ctx, keys...).Err(); err != nil {
		s.log.Error("cache index invalidation failed", zap.String("index", index), zap.Error(err))
		return nil
	}
	s.log.Debug("cache index invalidated", zap.String("index", index), zap.Int("members", len(members)))
	return nil
}
