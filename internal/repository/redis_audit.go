package repository

import (
	"context"
	"time"

	"github.com/goccy/go-json"
	"github.com/neria/manager/internal/model"
)

// RedisAuditSink mirrors audit events into a capped Redis list for consumers
// outside the manager.
type RedisAuditSink struct {
	client  *RedisClient
	listKey string
	listMax int
}

func NewRedisAuditSink(client *RedisClient, listKey string, listMax int) *RedisAuditSink {
	if listKey == "" {
		listKey = "audit_events"
	}
	if listMax <= 0 {
		listMax = 10000
	}
	return &RedisAuditSink{
		client:  client,
		listKey: listKey,
		listMax: listMax,
	}
}

func (r *RedisAuditSink) Insert(ctx context.Context, entry *model.AuditEvent) error {
	if entry == nil {
		return nil
	}
	payload, err := json.Marshal(entry)
	if err != nil {
		return err
	}
	pipe := r.client.Client.TxPipeline()
	pipe.LPush(ctx, r.listKey, payload)
	pipe.LTrim(ctx, r.listKey, 0, int64(r.listMax-1))
	_, err = pipe.Exec(ctx)
	return err
}

// List scans the newest entries of the list and filters them in memory.
func (r *RedisAuditSink) List(ctx context.Context, tenantID string, limit int, from, to *time.Time) ([]*model.AuditEvent, error) {
	if limit <= 0 || limit > 1000 {
		limit = 100
	}
	fetch := limit * 5
	if fetch < 100 {
		fetch = 100
	}
	if fetch > r.listMax {
		fetch = r.listMax
	}
	items, err := r.client.Client.LRange(ctx, r.listKey, 0, int64(fetch-1)).Result()
	if err != nil {
		return nil, err
	}
	results := make([]*model.AuditEvent, 0, limit)
	for _, raw := range items {
		var entry model.AuditEvent
		if err := json.Unmarshal([]byte(raw), &entry); err != nil {
			continue
		}
		if tenantID != "" && entry.TenantID != tenantID {
			continue
		}
		if from != nil && entry.CreatedAt.Before(*from) {
			continue
		}
		if to != nil && entry.CreatedAt.After(*to) {
			continue
		}
		results = append(results, &entry)
		if len(results) >= limit {
			break
		}
	}
	return results, nil
}
