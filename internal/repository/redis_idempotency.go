package repository

import (
	"context"
	"time"

	"github.com/goccy/go-json"
	"github.com/neria/manager/internal/middleware"
)

type RedisIdempotencyStore struct {
	client *RedisClient
	ttl    time.Duration
	prefix string
}

func NewRedisIdempotencyStore(client *RedisClient, ttl time.Duration) *RedisIdempotencyStore {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &RedisIdempotencyStore{
		client: client,
		ttl:    ttl,
		prefix: "idem:",
	}
}

type idemWire struct {
	Status     int    `json:"status"`
	Body       []byte `json:"body"`
	CreatedAt  int64  `json:"created_at"`
	Processing bool   `json:"processing"`
}

func (s *RedisIdempotencyStore) GetOrLock(ctx context.Context, key string) (*middleware.IdempotencyRecord, bool) {
	payload, _ := json.Marshal(idemWire{CreatedAt: time.Now().UTC().Unix(), Processing: true})
	ok, err := s.client.Client.SetNX(ctx, s.prefix+key, payload, s.ttl).Result()
	if err == nil && ok {
		return nil, false
	}
	raw, err := s.client.Client.Get(ctx, s.prefix+key).Bytes()
	if err != nil {
		// Lost the race against expiry or redis is down; let the request through.
		return nil, false
	}
	var wire idemWire
	if err := json.Unmarshal(raw, &wire); err != nil {
		return nil, false
	}
	return &middleware.IdempotencyRecord{
		Status:     wire.Status,
		Body:       wire.Body,
		CreatedAt:  time.Unix(wire.CreatedAt, 0).UTC(),
		Processing: wire.Processing,
	}, true
}

func (s *RedisIdempotencyStore) Save(ctx context.Context, key string, status int, body []byte) {
	payload, _ := json.Marshal(idemWire{Status: status, Body: body, CreatedAt: time.Now().UTC().Unix()})
	_ = s.client.Client.Set(ctx, s.prefix+key, payload, s.ttl).Err()
}

func (s *RedisIdempotencyStore) Unlock(ctx context.Context, key string) {
	_ = s.client.Client.Del(ctx, s.prefix+key).Err()
}

