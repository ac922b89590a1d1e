package postgres

import (
	"context"
	"fmt"
	"time"

	squirrel "github.com/Masterminds/squirrel"

	"github.com/arklim/maintenance-service/internal/core/domain"
	"github.com/arklim/maintenance-service/internal/core/port"
)

// WorkOrderRepository persists work orders and serves the scheduling view over them.
type WorkOrderRepository struct {
	*ResourceRepository[domain.WorkOrder]
}

// NewWorkOrderRepository constructs a repository backed by any executor that satisfies pgExecutor.
func NewWorkOrderRepository(exec pgExecutor) *WorkOrderRepository {
	return &WorkOrderRepository{ResourceRepository: newResourceRepository(exec, workOrdersTable)}
}

// ListScheduledBetween returns work orders whose scheduled date falls inside rng, oldest first.
// An empty ownerID lists every tenant.
func (r *WorkOrderRepository) ListScheduledBetween(ctx context.Context, ownerID string, rng domain.ScheduleRange) ([]domain.WorkOrder, error) {
	where := squirrel.And{
		squirrel.NotEq{"scheduled_at": nil},
		squirrel.GtOrEq{"scheduled_at": rng.Start},
		squirrel.LtOrEq{"scheduled_at": rng.End},
	}
	if ownerID != "" {
		where = append(where, squirrel.Eq{"owner_id": ownerID})
	}

	stmt, args, err := r.builder.Select(r.table.columns...).
		From(r.table.qualified()).
		Where(where).
		OrderBy("scheduled_at ASC", "id ASC").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build scheduled work orders sql: %w", err)
	}

	return r.collect(ctx, stmt, args)
}

// Schedule sets scheduled_at and approves the order unless it is already terminal.
func (r *WorkOrderRepository) Schedule(ctx context.Context, id string, at time.Time) error {
	stmt, args, err := r.builder.Update(r.table.qualified()).
		Set("scheduled_at", at).
		Set("status", string(domain.WorkOrderApproved)).
		Set("updated_at", squirrel.Expr("NOW()")).
		Where(squirrel.Eq{"id": id}).
		Where(openWorkOrder).
		ToSql()
	if err != nil {
		return fmt.Errorf("build schedule work order sql: %w", err)
	}

	tag, err := r.exec.Exec(ctx, stmt, args...)
	if err != nil {
		return fmt.Errorf("schedule work order: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return r.missOrRefused(ctx, id, domain.ErrTerminalWorkOrder)
	}

	return nil
}

var (
	_ port.ResourceRepository[domain.WorkOrder] = (*WorkOrderRepository)(nil)
	_ port.WorkOrderScheduleRepository          = (*WorkOrderRepository)(nil)
)
