package usecase

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
	"go.uber.org/zap"

	"github.com/arklim/maintenance-service/internal/core/domain"
	"github.com/arklim/maintenance-service/internal/core/port"
	"github.com/arklim/maintenance-service/internal/infra/logger"
)

const (
	defaultAuditBufferSize   = 1024
	defaultAuditWriteTimeout = 5 * time.Second
)

// AuditSinkConfig tunes the audit buffer.
type AuditSinkConfig struct {
	BufferSize   int
	WriteTimeout time.Duration
}

// NamedAuditWriter labels a writer for diagnostics.
type NamedAuditWriter struct {
	Name   string
	Writer port.AuditWriter
}

// AuditSink buffers audit records and appends them to every writer from a background worker.
// Record never blocks and never reports failures to the caller; drops and write errors surface
// only through logs and metrics.
type AuditSink struct {
	writers []NamedAuditWriter
	queue   chan domain.AuditRecord
	timeout time.Duration
	logger  *zap.Logger
	metrics *Metrics
	now     func() time.Time

	mu     sync.RWMutex
	closed bool
	done   chan struct{}
}

// NewAuditSink constructs the sink and starts its worker.
func NewAuditSink(cfg AuditSinkConfig, log *zap.Logger, metrics *Metrics, writers ...NamedAuditWriter) *AuditSink {
	if log == nil {
		log = zap.NewNop()
	}
	size := cfg.BufferSize
	if size <= 0 {
		size = defaultAuditBufferSize
	}
	timeout := cfg.WriteTimeout
	if timeout <= 0 {
		timeout = defaultAuditWriteTimeout
	}

	s := &AuditSink{
		writers: writers,
		queue:   make(chan domain.AuditRecord, size),
		timeout: timeout,
		logger:  log,
		metrics: metrics,
		now:     time.Now,
		done:    make(chan struct{}),
	}

	go s.run()

	return s
}

// WithClock overrides the timestamp source (primarily for testing).
func (s *AuditSink) WithClock(now func() time.Time) *AuditSink {
	if now != nil {
		s.now = now
	}
	return s
}

// Record enqueues one audit entry stamped with the server time.
func (s *AuditSink) Record(ctx context.Context, actorID, action, resource string, detail map[string]any) {
	ts := s.now().UTC()
	record := domain.AuditRecord{
		ID:        ulid.MustNew(ulid.Timestamp(ts), ulid.DefaultEntropy()).String(),
		Timestamp: ts,
		ActorID:   actorID,
		Action:    action,
		Resource:  resource,
		Detail:    copyDetail(ctx, detail),
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		s.drop(record, "sink closed")
		return
	}

	select {
	case s.queue <- record:
	default:
		s.drop(record, "buffer full")
	}
}

// Close stops accepting records and waits for the buffered ones to be written.
func (s *AuditSink) Close(ctx context.Context) error {
	s.mu.Lock()
	if !s.closed {
		s.closed = true
		close(s.queue)
	}
	s.mu.Unlock()

	select {
	case <-s.done:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("drain audit sink: %w", ctx.Err())
	}
}

func (s *AuditSink) run() {
	defer close(s.done)

	for record := range s.queue {
		for _, w := range s.writers {
			s.write(w, record)
		}
	}
}

func (s *AuditSink) write(w NamedAuditWriter, record domain.AuditRecord) {
	defer func() {
		if r := recover(); r != nil {
			s.metrics.auditWriteFailed(w.Name)
			s.logger.Error("audit writer panicked",
				zap.String("writer", w.Name),
				zap.String("audit_id", record.ID),
				zap.Any("panic", r),
			)
		}
	}()

	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()

	if err := w.Writer.Append(ctx, record); err != nil {
		s.metrics.auditWriteFailed(w.Name)
		fields := []zap.Field{
			zap.String("writer", w.Name),
			zap.String("audit_id", record.ID),
			zap.String("actor_id", record.ActorID),
			zap.String("action", record.Action),
			zap.Error(err),
		}
		if errors.Is(err, context.DeadlineExceeded) {
			s.logger.Warn("audit write timed out", fields...)
			return
		}
		s.logger.Error("audit write failed", fields...)
	}
}

func (s *AuditSink) drop(record domain.AuditRecord, reason string) {
	s.metrics.auditDropped()
	s.logger.Warn("audit record dropped",
		zap.String("reason", reason),
		zap.String("actor_id", record.ActorID),
		zap.String("action", record.Action),
		zap.String("resource", record.Resource),
	)
}

func copyDetail(ctx context.Context, detail map[string]any) map[string]any {
	out := make(map[string]any, len(detail)+1)
	for k, v := range detail {
		out[k] = v
	}
	if reqID := logger.RequestID(ctx); reqID != "" {
		out["request_id"] = reqID
	}
	return out
}

var _ port.AuditRecorder = (*AuditSink)(nil)
