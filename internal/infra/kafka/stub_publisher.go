package kafka

import (
	"context"

	"go.uber.org/zap"

	"github.com/arklim/maintenance-service/internal/core/domain"
	"github.com/arklim/maintenance-service/internal/core/port"
)

// StubPublisher logs audit records instead of sending them to Kafka. Used when no brokers are configured.
type StubPublisher struct {
	logger *zap.Logger
}

// NewStubPublisher constructs a development-friendly audit writer.
func NewStubPublisher(logger *zap.Logger) *StubPublisher {
	return &StubPublisher{logger: logger}
}

// Append logs the record.
func (p *StubPublisher) Append(_ context.Context, record domain.AuditRecord) error {
	p.logger.Info("stub audit record published",
		zap.String("audit_id", record.ID),
		zap.String("actor_id", record.ActorID),
		zap.String("action", record.Action),
		zap.String("resource", record.Resource),
		zap.Time("timestamp", record.Timestamp),
		zap.Any("detail", record.Detail),
	)
	return nil
}

var _ port.AuditWriter = (*StubPublisher)(nil)
