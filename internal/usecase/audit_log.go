package usecase

import (
	"context"
	"fmt"
	"strings"

	"github.com/arklim/maintenance-service/internal/core/domain"
	"github.com/arklim/maintenance-service/internal/core/port"
)

// AuditLogService exposes the persisted audit trail to actors holding view:audit.
type AuditLogService struct {
	reader port.AuditReader
	gate   *Gate
}

// NewAuditLogService constructs the service.
func NewAuditLogService(reader port.AuditReader, gate *Gate) *AuditLogService {
	return &AuditLogService{reader: reader, gate: gate}
}

// Recent returns the newest audit records matching filter.
func (s *AuditLogService) Recent(ctx context.Context, actor *domain.Actor, filter domain.AuditFilter) ([]domain.AuditRecord, error) {
	if err := s.gate.RequirePermission(ctx, actor, domain.PermViewAudit); err != nil {
		return nil, err
	}

	filter.ActorID = strings.TrimSpace(filter.ActorID)
	records, err := s.reader.List(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("list audit records: %w", err)
	}
	if records == nil {
		records = []domain.AuditRecord{}
	}
	return records, nil
}
