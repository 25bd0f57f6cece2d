package service

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/neria/manager/internal/model"
	"github.com/neria/manager/internal/pkg/logger"
)

type AuditRepo interface {
	Insert(ctx context.Context, entry *model.AuditEvent) error
	List(ctx context.Context, tenantID string, limit int, from, to *time.Time) ([]*model.AuditEvent, error)
}

// AuditService appends execution outcomes. Writes go to the repository, an
// in-memory ring used as a listing fallback, and an optional external sink.
type AuditService struct {
	repo   AuditRepo
	sink   AuditRepo
	buffer *auditBuffer
	now    func() time.Time
}

func NewAuditService(repo AuditRepo, sink AuditRepo, bufferSize int) *AuditService {
	return &AuditService{
		repo:   repo,
		sink:   sink,
		buffer: newAuditBuffer(bufferSize),
		now:    time.Now,
	}
}

// Record never fails: a broken audit store must not mask the outcome being recorded.
func (s *AuditService) Record(ctx context.Context, entry *model.AuditEvent) {
	if entry == nil {
		return
	}
	if entry.ID == "" {
		entry.ID = uuid.NewString()
	}
	entry.CreatedAt = s.now().UTC()
	if entry.Metadata == nil {
		entry.Metadata = map[string]any{}
	}
	s.buffer.Add(entry)

	if s.repo != nil {
		if err := s.repo.Insert(ctx, entry); err != nil {
			logger.LogError(ctx, err, "failed to persist audit event",
				"tenant_id", entry.TenantID, "action", entry.Action, "status", entry.Status)
		}
	}
	if s.sink != nil {
		if err := s.sink.Insert(ctx, entry); err != nil {
			logger.Warn("failed to mirror audit event", "error", err.Error())
		}
	}
}

func (s *AuditService) List(ctx context.Context, tenantID string, limit int, from, to *time.Time) ([]*model.AuditEvent, error) {
	if s.repo != nil {
		records, err := s.repo.List(ctx, tenantID, limit, from, to)
		if err == nil {
			return records, nil
		}
		logger.LogError(ctx, err, "audit repository list failed, serving from memory")
	}
	return s.buffer.List(tenantID, limit, from, to), nil
}

type auditBuffer struct {
	mu        sync.Mutex
	maxSize   int
	records   []*model.AuditEvent
	nextIndex int
}

func newAuditBuffer(maxSize int) *auditBuffer {
	if maxSize <= 0 {
		maxSize = 1000
	}
	return &auditBuffer{
		maxSize: maxSize,
		records: make([]*model.AuditEvent, 0, maxSize),
	}
}

func (b *auditBuffer) Add(entry *model.AuditEvent) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if len(b.records) < b.maxSize {
		b.records = append(b.records, entry)
		return
	}
	b.records[b.nextIndex] = entry
	b.nextIndex = (b.nextIndex + 1) % b.maxSize
}

// List walks newest to oldest.
func (b *auditBuffer) List(tenantID string, limit int, from, to *time.Time) []*model.AuditEvent {
	b.mu.Lock()
	defer b.mu.Unlock()
	if limit <= 0 || limit > b.maxSize {
		limit = b.maxSize
	}
	results := make([]*model.AuditEvent, 0, limit)
	total := len(b.records)
	for i := 0; i < total; i++ {
		idx := (b.nextIndex + total - 1 - i) % total
		entry := b.records[idx]
		if entry == nil {
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
		results = append(results, entry)
		if len(results) >= limit {
			break
		}
	}
	return results
}
