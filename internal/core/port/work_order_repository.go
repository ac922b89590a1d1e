package port

import (
	"context"
	"time"

	"github.com/arklim/maintenance-service/internal/core/domain"
)

// WorkOrderScheduleRepository exposes the scheduling view of work orders.
type WorkOrderScheduleRepository interface {
	// ListScheduledBetween returns work orders with a scheduled date inside the inclusive range,
	// restricted to ownerID unless it is empty.
	ListScheduledBetween(ctx context.Context, ownerID string, rng domain.ScheduleRange) ([]domain.WorkOrder, error)
	FindByID(ctx context.Context, id string) (*domain.WorkOrder, error)
	// Schedule sets the scheduled date and moves the order to approved in one conditional write.
	// Orders in a terminal status are left untouched and yield domain.ErrTerminalWorkOrder.
	Schedule(ctx context.Context, id string, at time.Time) error
	OwnerResolver
}
