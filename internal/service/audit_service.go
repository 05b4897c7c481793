package service

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/Chaibouu/mon-ecole-beta-sub002/internal/models"
	"github.com/Chaibouu/mon-ecole-beta-sub002/pkg/jobs"
	"github.com/Chaibouu/mon-ecole-beta-sub002/pkg/middleware/requestid"
)

const auditJobType = "audit_log"

type auditLogWriter interface {
	CreateAuditLog(ctx context.Context, log *models.AuditLog) error
}

type auditDispatcher interface {
	TryEnqueue(job jobs.Job) error
}

// AuditService records audit trail entries off the request path. Without a queue it
// writes inline.
type AuditService struct {
	queue   auditDispatcher
	writer  auditLogWriter
	metrics *MetricsService
	logger  *zap.Logger
}

// NewAuditService constructs the service.
func NewAuditService(queue auditDispatcher, writer auditLogWriter, metrics *MetricsService, logger *zap.Logger) *AuditService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AuditService{queue: queue, writer: writer, metrics: metrics, logger: logger}
}

// Record stores an action performed by identity on a resource. before and after are
// encoded as JSON and may be nil. Failures are logged, never returned.
func (s *AuditService) Record(ctx context.Context, identity models.Identity, action, resource, resourceID string, before, after interface{}) {
	if s == nil {
		return
	}
	entry := models.AuditLog{
		ID:        uuid.NewString(),
		Action:    action,
		Resource:  resource,
		IPAddress: identity.IPAddress,
		UserAgent: identity.UserAgent,
		CreatedAt: time.Now().UTC(),
	}
	if identity.UserID != "" {
		userID := identity.UserID
		entry.UserID = &userID
	}
	if identity.SchoolID != "" {
		schoolID := identity.SchoolID
		entry.SchoolID = &schoolID
	}
	if resourceID != "" {
		entry.ResourceID = &resourceID
	}
	entry.OldValues = s.encode(before)
	entry.NewValues = s.encode(after)

	if s.queue == nil {
		if err := s.writer.CreateAuditLog(ctx, &entry); err != nil {
			s.metrics.RecordAuditJob("failed")
			s.logger.Warn("failed to write audit log", zap.String("action", action), zap.String("request_id", requestid.FromContext(ctx)), zap.Error(err))
			return
		}
		s.metrics.RecordAuditJob("written")
		return
	}
	if err := s.queue.TryEnqueue(jobs.Job{ID: entry.ID, Type: auditJobType, Payload: entry}); err != nil {
		s.metrics.RecordAuditJob("dropped")
		s.logger.Warn("audit log dropped",
			zap.String("action", action),
			zap.String("resource_id", resourceID),
			zap.String("request_id", requestid.FromContext(ctx)),
			zap.Error(err))
	}
}

func (s *AuditService) encode(v interface{}) []byte {
	if v == nil {
		return nil
	}
	raw, err := json.Marshal(v)
	if err != nil {
		s.logger.Warn("failed to encode audit payload", zap.Error(err))
		return nil
	}
	return raw
}

// AuditWorker persists queued audit entries.
type AuditWorker struct {
	writer  auditLogWriter
	metrics *MetricsService
	logger  *zap.Logger
}

// NewAuditWorker constructs the worker.
func NewAuditWorker(writer auditLogWriter, metrics *MetricsService, logger *zap.Logger) *AuditWorker {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AuditWorker{writer: writer, metrics: metrics, logger: logger}
}

// Handle processes a queue job.
func (w *AuditWorker) Handle(ctx context.Context, job jobs.Job) error {
	entry, ok := job.Payload.(models.AuditLog)
	if !ok {
		w.logger.Error("unexpected audit payload", zap.String("job_id", job.ID), zap.String("type", fmt.Sprintf("%T", job.Payload)))
		return nil
	}
	if err := w.writer.CreateAuditLog(ctx, &entry); err != nil {
		w.metrics.RecordAuditJob("failed")
		return err
	}
	w.metrics.RecordAuditJob("written")
	return nil
}
