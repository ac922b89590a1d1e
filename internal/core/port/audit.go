package port

import (
	"context"

	"github.com/arklim/maintenance-service/internal/core/domain"
)

// AuditWriter appends audit records to a durable destination.
type AuditWriter interface {
	Append(ctx context.Context, record domain.AuditRecord) error
}

// AuditRecorder records security relevant decisions without ever failing the caller.
type AuditRecorder interface {
	Record(ctx context.Context, actorID, action, resource string, detail map[string]any)
}

// AuditReader lists persisted audit records, newest first.
type AuditReader interface {
	List(ctx context.Context, filter domain.AuditFilter) ([]domain.AuditRecord, error)
}
