package postgres

import (
	"context"
	"encoding/json"
	"fmt"

	squirrel "github.com/Masterminds/squirrel"

	"github.com/arklim/maintenance-service/internal/core/domain"
	"github.com/arklim/maintenance-service/internal/core/port"
)

const (
	defaultAuditListLimit = 100
	maxAuditListLimit     = 1000
)

// AuditRepository appends audit records to the append-only audit_log table.
type AuditRepository struct {
	exec    pgExecutor
	builder squirrel.StatementBuilderType
}

// NewAuditRepository constructs a repository backed by any executor that satisfies pgExecutor.
func NewAuditRepository(exec pgExecutor) *AuditRepository {
	return &AuditRepository{
		exec:    exec,
		builder: squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar),
	}
}

// Append inserts record. Records are never updated or deleted.
func (r *AuditRepository) Append(ctx context.Context, record domain.AuditRecord) error {
	detail := []byte("{}")
	if len(record.Detail) > 0 {
		encoded, err := json.Marshal(record.Detail)
		if err != nil {
			return fmt.Errorf("marshal audit detail: %w", err)
		}
		detail = encoded
	}

	stmt, args, err := r.builder.Insert(schema+".audit_log").
		Columns("id", "occurred_at", "actor_id", "action", "resource", "detail").
		Values(record.ID, record.Timestamp, record.ActorID, record.Action, record.Resource, detail).
		Suffix("ON CONFLICT (id) DO NOTHING").
		ToSql()
	if err != nil {
		return fmt.Errorf("build insert audit sql: %w", err)
	}

	if _, err := r.exec.Exec(ctx, stmt, args...); err != nil {
		return fmt.Errorf("insert audit record: %w", err)
	}

	return nil
}

// List returns the newest records first, optionally narrowed by actor. The limit defaults to
// 100 and is capped at 1000.
func (r *AuditRepository) List(ctx context.Context, filter domain.AuditFilter) ([]domain.AuditRecord, error) {
	limit := filter.Limit
	switch {
	case limit <= 0:
		limit = defaultAuditListLimit
	case limit > maxAuditListLimit:
		limit = maxAuditListLimit
	}

	query := r.builder.Select("id", "occurred_at", "actor_id", "action", "resource", "detail").
		From(schema + ".audit_log").
		OrderBy("occurred_at DESC", "id DESC").
		Limit(uint64(limit))
	if filter.ActorID != "" {
		query = query.Where(squirrel.Eq{"actor_id": filter.ActorID})
	}

	stmt, args, err := query.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build list audit sql: %w", err)
	}

	rows, err := r.exec.Query(ctx, stmt, args...)
	if err != nil {
		return nil, fmt.Errorf("query audit log: %w", err)
	}
	defer rows.Close()

	records := make([]domain.AuditRecord, 0)
	for rows.Next() {
		var (
			record domain.AuditRecord
			detail []byte
		)
		if err := rows.Scan(&record.ID, &record.Timestamp, &record.ActorID, &record.Action, &record.Resource, &detail); err != nil {
			return nil, fmt.Errorf("scan audit record: %w", err)
		}
		if len(detail) > 0 {
			if err := json.Unmarshal(detail, &record.Detail); err != nil {
				return nil, fmt.Errorf("decode audit detail %s: %w", record.ID, err)
			}
		}
		records = append(records, record)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate audit log: %w", err)
	}

	return records, nil
}

var (
	_ port.AuditWriter = (*AuditRepository)(nil)
	_ port.AuditReader = (*AuditRepository)(nil)
)
