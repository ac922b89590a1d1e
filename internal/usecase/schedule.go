package usecase

import (
	"context"
	"fmt"
	"sort"
	"time"

	"go.uber.org/zap"

	"github.com/arklim/maintenance-service/internal/core/domain"
	"github.com/arklim/maintenance-service/internal/core/port"
)

// SchedulingService answers calendar queries over work orders and assigns schedule dates.
type SchedulingService struct {
	repo   port.WorkOrderScheduleRepository
	gate   *Gate
	filter *IsolationFilter
	audit  port.AuditRecorder
	loc    *time.Location
	logger *zap.Logger
}

// NewSchedulingService wires the service. Calendar days are evaluated in loc (UTC when nil).
func NewSchedulingService(
	repo port.WorkOrderScheduleRepository,
	gate *Gate,
	filter *IsolationFilter,
	audit port.AuditRecorder,
	loc *time.Location,
	logger *zap.Logger,
) *SchedulingService {
	if loc == nil {
		loc = time.UTC
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	filter.Register(domain.ResourceWorkOrder, repo)
	return &SchedulingService{
		repo:   repo,
		gate:   gate,
		filter: filter,
		audit:  audit,
		loc:    loc,
		logger: logger,
	}
}

// Location returns the zone calendar days are evaluated in.
func (s *SchedulingService) Location() *time.Location {
	return s.loc
}

// ByDate returns the actor's scheduled work orders falling on the calendar day of date.
func (s *SchedulingService) ByDate(ctx context.Context, actor *domain.Actor, date time.Time) ([]domain.WorkOrder, error) {
	return s.between(ctx, actor, DayRange(date, s.loc))
}

// ByDateRange returns the actor's work orders scheduled within [start, end].
func (s *SchedulingService) ByDateRange(ctx context.Context, actor *domain.Actor, start, end time.Time) ([]domain.WorkOrder, error) {
	return s.between(ctx, actor, domain.ScheduleRange{Start: start, End: end})
}

// Schedule assigns date to the work order and moves it to approved. The store refuses the write
// when the order has reached a terminal status, even if that happened after it was loaded.
func (s *SchedulingService) Schedule(ctx context.Context, actor *domain.Actor, id string, date time.Time) (*domain.WorkOrder, error) {
	if err := s.gate.RequirePermission(ctx, actor, domain.PermManageSchedule); err != nil {
		return nil, err
	}

	if _, err := s.filter.ScopeMutation(ctx, actor, domain.Mutation{
		Resource: domain.ResourceWorkOrder,
		Verb:     domain.VerbUpdate,
		ID:       id,
	}); err != nil {
		return nil, err
	}

	current, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("load work order %s: %w", id, err)
	}

	scheduledAt := date.UTC()
	if err := s.repo.Schedule(ctx, id, scheduledAt); err != nil {
		return nil, fmt.Errorf("schedule work order %s: %w", id, err)
	}

	if s.audit != nil {
		s.audit.Record(ctx, actor.ID, domain.AuditActionSchedule,
			fmt.Sprintf("%s/%s", domain.ResourceWorkOrder, id),
			map[string]any{
				"scheduled_at":    scheduledAt.Format(time.RFC3339),
				"previous_status": string(current.Status),
			})
	}
	s.logger.Info("work order scheduled",
		zap.String("actor_id", actor.ID),
		zap.String("work_order_id", id),
		zap.Time("scheduled_at", scheduledAt),
	)

	updated, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("reload work order %s: %w", id, err)
	}
	return updated, nil
}

// Stats aggregates the actor's work orders scheduled within [start, end].
func (s *SchedulingService) Stats(ctx context.Context, actor *domain.Actor, start, end time.Time) (domain.ScheduleStats, error) {
	orders, err := s.ByDateRange(ctx, actor, start, end)
	if err != nil {
		return domain.ScheduleStats{}, err
	}
	return ComputeStats(orders), nil
}

func (s *SchedulingService) between(ctx context.Context, actor *domain.Actor, rng domain.ScheduleRange) ([]domain.WorkOrder, error) {
	if err := s.gate.RequirePermission(ctx, actor, domain.PermViewSchedule); err != nil {
		return nil, err
	}
	if rng.Start.After(rng.End) {
		return nil, fmt.Errorf("%w: start %s is after end %s", domain.ErrInvalidRange,
			rng.Start.Format(time.RFC3339), rng.End.Format(time.RFC3339))
	}

	q, err := s.filter.ScopeQuery(actor, domain.Query{Resource: domain.ResourceWorkOrder, Verb: domain.VerbRead})
	if err != nil {
		return nil, err
	}

	orders, err := s.repo.ListScheduledBetween(ctx, q.OwnerID, rng)
	if err != nil {
		return nil, fmt.Errorf("list scheduled work orders: %w", err)
	}

	return FilterScheduled(orders, q.OwnerID, rng), nil
}

// DayRange returns the inclusive bounds of the calendar day containing date in loc.
func DayRange(date time.Time, loc *time.Location) domain.ScheduleRange {
	if loc == nil {
		loc = time.UTC
	}
	local := date.In(loc)
	start := time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, loc)
	end := start.AddDate(0, 0, 1).Add(-time.Nanosecond)
	return domain.ScheduleRange{Start: start, End: end}
}

// FilterScheduled keeps work orders with a scheduled date inside rng, owned by ownerID when set,
// sorted ascending by scheduled date with ties broken by id.
func FilterScheduled(orders []domain.WorkOrder, ownerID string, rng domain.ScheduleRange) []domain.WorkOrder {
	out := make([]domain.WorkOrder, 0, len(orders))
	for _, order := range orders {
		if order.ScheduledAt == nil || !rng.Contains(*order.ScheduledAt) {
			continue
		}
		if ownerID != "" && order.OwnerID != ownerID {
			continue
		}
		out = append(out, order)
	}

	sort.SliceStable(out, func(i, j int) bool {
		a, b := *out[i].ScheduledAt, *out[j].ScheduledAt
		if a.Equal(b) {
			return out[i].ID < out[j].ID
		}
		return a.Before(b)
	})
	return out
}

// ComputeStats aggregates statuses. CompletionRate is 0 when there are no work orders.
func ComputeStats(orders []domain.WorkOrder) domain.ScheduleStats {
	stats := domain.ScheduleStats{Total: len(orders)}
	for _, order := range orders {
		switch order.Status {
		case domain.WorkOrderCompleted:
			stats.Completed++
		case domain.WorkOrderPending, domain.WorkOrderApproved:
			stats.Open++
		case domain.WorkOrderCancelled:
			stats.Cancelled++
		}
	}
	if stats.Total > 0 {
		stats.CompletionRate = float64(stats.Completed) / float64(stats.Total) * 100
	}
	return stats
}
