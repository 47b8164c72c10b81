package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/agentcourt/clearinghouse/internal/domain"
	"github.com/agentcourt/clearinghouse/internal/ports"
)

func Connect(_ context.Context, redisURL string) (*redis.Client, error) {
	if strings.HasPrefix(redisURL, "redis://") {
		opt, parseErr := redis.ParseURL(redisURL)
		if parseErr != nil {
			return nil, fmt.Errorf("parse redis url: %w", parseErr)
		}
		return redis.NewClient(opt), nil
	}
	return redis.NewClient(&redis.Options{Addr: redisURL}), nil
}

const (
	idempotencyPrefix = "clearinghouse:idem:"
	dedupPrefix       = "clearinghouse:dedup:"
)

// RedisIdempotencyStore keeps idempotency reservations and replay bodies in
// redis so replays survive a process restart. TTL handling is delegated to
// redis; the now argument on Get exists only to satisfy the port.
type RedisIdempotencyStore struct {
	client *redis.Client
}

func NewRedisIdempotencyStore(client *redis.Client) *RedisIdempotencyStore {
	return &RedisIdempotencyStore{client: client}
}

type idempotencyEntry struct {
	Key          string    `json:"key"`
	RequestHash  string    `json:"request_hash"`
	ResponseCode int       `json:"response_code"`
	ResponseBody []byte    `json:"response_body,omitempty"`
	ExpiresAt    time.Time `json:"expires_at"`
}

func (s *RedisIdempotencyStore) Get(ctx context.Context, key string, _ time.Time) (*ports.IdempotencyRecord, error) {
	raw, err := s.client.Get(ctx, idempotencyPrefix+key).Result()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var entry idempotencyEntry
	if err := json.Unmarshal([]byte(raw), &entry); err != nil {
		return nil, nil
	}
	return &ports.IdempotencyRecord{Key: entry.Key, RequestHash: entry.RequestHash, ResponseCode: entry.ResponseCode, ResponseBody: entry.ResponseBody, ExpiresAt: entry.ExpiresAt}, nil
}

func (s *RedisIdempotencyStore) Reserve(ctx context.Context, key, requestHash string, expiresAt time.Time) error {
	entry := idempotencyEntry{Key: key, RequestHash: requestHash, ExpiresAt: expiresAt}
	raw, err := json.Marshal(entry)
	if err != nil {
		return err
	}
	ttl := time.Until(expiresAt)
	if ttl <= 0 {
		ttl = time.Minute
	}
	ok, err := s.client.SetNX(ctx, idempotencyPrefix+key, raw, ttl).Result()
	if err != nil {
		return err
	}
	if !ok {
		return domain.ErrConflict
	}
	return nil
}

func (s *RedisIdempotencyStore) Complete(ctx context.Context, key string, responseCode int, responseBody []byte, _ time.Time) error {
	redisKey := idempotencyPrefix + key
	raw, err := s.client.Get(ctx, redisKey).Result()
	if errors.Is(err, redis.Nil) {
		return domain.ErrNotFound
	}
	if err != nil {
		return err
	}
	var entry idempotencyEntry
	if err := json.Unmarshal([]byte(raw), &entry); err != nil {
		return err
	}
	entry.ResponseCode = responseCode
	entry.ResponseBody = append([]byte(nil), responseBody...)
	updated, err := json.Marshal(entry)
	if err != nil {
		return err
	}
	return s.client.Set(ctx, redisKey, updated, redis.KeepTTL).Err()
}

// RedisEventDedupStore remembers processed event ids for the dedup window.
type RedisEventDedupStore struct {
	client *redis.Client
}

func NewRedisEventDedupStore(client *redis.Client) *RedisEventDedupStore {
	return &RedisEventDedupStore{client: client}
}

func (s *RedisEventDedupStore) IsDuplicate(ctx context.Context, eventID string, _ time.Time) (bool, error) {
	n, err := s.client.Exists(ctx, dedupPrefix+eventID).Result()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

func (s *RedisEventDedupStore) MarkProcessed(ctx context.Context, eventID, eventType string, expiresAt time.Time) error {
	ttl := time.Until(expiresAt)
	if ttl <= 0 {
		ttl = time.Minute
	}
	return s.client.Set(ctx, dedupPrefix+eventID, eventType, ttl).Err()
}
