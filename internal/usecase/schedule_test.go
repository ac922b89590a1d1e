package usecase

import (
	"context"
	"errors"
	"testing"
	"time"

	"go.uber.org/zap/zaptest"

	"github.com/arklim/maintenance-service/internal/core/domain"
)

func newTestScheduling(t *testing.T, loc *time.Location) (*SchedulingService, *workOrderStore, *recordingAudit) {
	t.Helper()
	fx := newResourceFixture(t)
	store := newWorkOrderStore()
	svc := NewSchedulingService(store, fx.gate, fx.filter, fx.audit, loc, zaptest.NewLogger(t))
	return svc, store, fx.audit
}

func TestSchedulingService_ByDate(t *testing.T) {
	svc, store, _ := newTestScheduling(t, time.UTC)
	day := time.Date(2025, 3, 10, 0, 0, 0, 0, time.UTC)

	store.seed(
		domain.WorkOrder{ID: "wo-3", OwnerID: "tech-a", Status: domain.WorkOrderApproved, ScheduledAt: at(day.Add(15 * time.Hour))},
		domain.WorkOrder{ID: "wo-1", OwnerID: "tech-a", Status: domain.WorkOrderPending, ScheduledAt: at(day.Add(9 * time.Hour))},
		domain.WorkOrder{ID: "wo-2", OwnerID: "tech-a", Status: domain.WorkOrderPending, ScheduledAt: at(day.Add(9 * time.Hour))},
		domain.WorkOrder{ID: "wo-4", OwnerID: "tech-a", Status: domain.WorkOrderPending},
		domain.WorkOrder{ID: "wo-5", OwnerID: "tech-a", Status: domain.WorkOrderPending, ScheduledAt: at(day.AddDate(0, 0, 1))},
		domain.WorkOrder{ID: "wo-6", OwnerID: "tech-b", Status: domain.WorkOrderPending, ScheduledAt: at(day.Add(10 * time.Hour))},
		domain.WorkOrder{ID: "wo-7", OwnerID: "tech-a", Status: domain.WorkOrderPending, ScheduledAt: at(day.Add(-time.Nanosecond))},
	)

	orders, err := svc.ByDate(context.Background(), actor("tech-a", domain.RoleTechnician), day.Add(12*time.Hour))
	if err != nil {
		t.Fatalf("ByDate returned error: %v", err)
	}

	want := []string{"wo-1", "wo-2", "wo-3"}
	if len(orders) != len(want) {
		t.Fatalf("expected %v, got %+v", want, orders)
	}
	for i, id := range want {
		if orders[i].ID != id {
			t.Fatalf("position %d: expected %s, got %s", i, id, orders[i].ID)
		}
	}

	all, err := svc.ByDate(context.Background(), actor("admin-1", domain.RoleAdmin), day)
	if err != nil {
		t.Fatalf("ByDate returned error: %v", err)
	}
	if len(all) != 4 {
		t.Fatalf("admin should see every tenant's schedule for the day, got %d", len(all))
	}
}

func TestSchedulingService_RequiresViewSchedule(t *testing.T) {
	svc, _, audit := newTestScheduling(t, time.UTC)

	if _, err := svc.ByDate(context.Background(), actor("client-a", domain.RoleClient), time.Now()); !errors.Is(err, domain.ErrForbidden) {
		t.Fatalf("expected ErrForbidden, got %v", err)
	}
	if len(audit.Calls()) != 1 {
		t.Fatal("expected the denial to be audited")
	}
	if _, err := svc.Stats(context.Background(), nil, time.Now(), time.Now()); !errors.Is(err, domain.ErrUnauthenticated) {
		t.Fatalf("expected ErrUnauthenticated, got %v", err)
	}
}

func TestSchedulingService_InvalidRange(t *testing.T) {
	svc, _, _ := newTestScheduling(t, time.UTC)
	start := time.Date(2025, 3, 11, 0, 0, 0, 0, time.UTC)

	_, err := svc.ByDateRange(context.Background(), actor("tech-a", domain.RoleTechnician), start, start.Add(-time.Hour))
	if !errors.Is(err, domain.ErrInvalidRange) {
		t.Fatalf("expected ErrInvalidRange, got %v", err)
	}

	if _, err := svc.ByDateRange(context.Background(), nil, start, start.Add(-time.Hour)); !errors.Is(err, domain.ErrUnauthenticated) {
		t.Fatalf("anonymous callers must be rejected before the range is validated, got %v", err)
	}
	if _, err := svc.Stats(context.Background(), actor("client-a", domain.RoleClient), start, start.Add(-time.Hour)); !errors.Is(err, domain.ErrForbidden) {
		t.Fatalf("callers without view:schedule must be rejected before the range is validated, got %v", err)
	}
}

func TestSchedulingService_Stats(t *testing.T) {
	svc, store, _ := newTestScheduling(t, time.UTC)
	start := time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC)
	end := time.Date(2025, 3, 31, 23, 59, 59, 0, time.UTC)
	tech := actor("tech-a", domain.RoleTechnician)

	empty, err := svc.Stats(context.Background(), tech, start, end)
	if err != nil {
		t.Fatalf("Stats returned error: %v", err)
	}
	if empty != (domain.ScheduleStats{}) {
		t.Fatalf("expected zero stats with a zero completion rate, got %+v", empty)
	}

	store.seed(
		domain.WorkOrder{ID: "a", OwnerID: "tech-a", Status: domain.WorkOrderCompleted, ScheduledAt: at(start.Add(time.Hour))},
		domain.WorkOrder{ID: "b", OwnerID: "tech-a", Status: domain.WorkOrderPending, ScheduledAt: at(start.Add(2 * time.Hour))},
		domain.WorkOrder{ID: "c", OwnerID: "tech-a", Status: domain.WorkOrderApproved, ScheduledAt: at(start.Add(3 * time.Hour))},
		domain.WorkOrder{ID: "d", OwnerID: "tech-a", Status: domain.WorkOrderCancelled, ScheduledAt: at(start.Add(4 * time.Hour))},
		domain.WorkOrder{ID: "e", OwnerID: "tech-b", Status: domain.WorkOrderCompleted, ScheduledAt: at(start.Add(5 * time.Hour))},
	)

	stats, err := svc.Stats(context.Background(), tech, start, end)
	if err != nil {
		t.Fatalf("Stats returned error: %v", err)
	}
	want := domain.ScheduleStats{Total: 4, Completed: 1, Open: 2, Cancelled: 1, CompletionRate: 25}
	if stats != want {
		t.Fatalf("expected %+v, got %+v", want, stats)
	}
}

func TestSchedulingService_Schedule(t *testing.T) {
	svc, store, audit := newTestScheduling(t, time.UTC)
	store.seed(
		domain.WorkOrder{ID: "wo-1", OwnerID: "tech-a", Status: domain.WorkOrderPending},
		domain.WorkOrder{ID: "wo-2", OwnerID: "tech-a", Status: domain.WorkOrderCompleted},
		domain.WorkOrder{ID: "wo-3", OwnerID: "tech-b", Status: domain.WorkOrderPending},
	)
	tech := actor("tech-a", domain.RoleTechnician)
	when := time.Date(2025, 3, 10, 14, 0, 0, 0, time.FixedZone("BRT", -3*60*60))

	scheduled, err := svc.Schedule(context.Background(), tech, "wo-1", when)
	if err != nil {
		t.Fatalf("Schedule returned error: %v", err)
	}
	if scheduled.Status != domain.WorkOrderApproved {
		t.Fatalf("expected approved, got %s", scheduled.Status)
	}
	if scheduled.ScheduledAt == nil || !scheduled.ScheduledAt.Equal(when) || scheduled.ScheduledAt.Location() != time.UTC {
		t.Fatalf("expected scheduled_at %v stored in UTC, got %v", when, scheduled.ScheduledAt)
	}

	calls := audit.Calls()
	if len(calls) != 1 || calls[0].Action != domain.AuditActionSchedule || calls[0].Detail["previous_status"] != "pending" {
		t.Fatalf("expected one schedule audit record, got %+v", calls)
	}

	if _, err := svc.Schedule(context.Background(), tech, "wo-2", when); !errors.Is(err, domain.ErrTerminalWorkOrder) {
		t.Fatalf("expected ErrTerminalWorkOrder, got %v", err)
	}
	if _, err := svc.Schedule(context.Background(), tech, "wo-3", when); !errors.Is(err, domain.ErrForbidden) {
		t.Fatalf("expected ErrForbidden for a foreign work order, got %v", err)
	}
	if _, err := svc.Schedule(context.Background(), tech, "missing", when); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if _, err := svc.Schedule(context.Background(), actor("client-a", domain.RoleClient), "wo-1", when); !errors.Is(err, domain.ErrForbidden) {
		t.Fatalf("expected ErrForbidden without manage:schedule, got %v", err)
	}
}

// staleWorkOrderStore reports a status read before a concurrent writer finished the order.
type staleWorkOrderStore struct {
	*workOrderStore
	status domain.WorkOrderStatus
}

func (s *staleWorkOrderStore) FindByID(ctx context.Context, id string) (*domain.WorkOrder, error) {
	order, err := s.workOrderStore.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	order.Status = s.status
	return order, nil
}

func TestSchedulingService_ScheduleLosesRaceToCompletion(t *testing.T) {
	fx := newResourceFixture(t)
	store := &staleWorkOrderStore{workOrderStore: newWorkOrderStore(), status: domain.WorkOrderPending}
	store.seed(domain.WorkOrder{ID: "wo-1", OwnerID: "tech-a", Status: domain.WorkOrderCompleted})
	svc := NewSchedulingService(store, fx.gate, fx.filter, fx.audit, time.UTC, zaptest.NewLogger(t))

	when := time.Date(2025, 3, 10, 14, 0, 0, 0, time.UTC)
	if _, err := svc.Schedule(context.Background(), actor("tech-a", domain.RoleTechnician), "wo-1", when); !errors.Is(err, domain.ErrTerminalWorkOrder) {
		t.Fatalf("expected ErrTerminalWorkOrder from the conditional write, got %v", err)
	}

	stored, _ := store.workOrderStore.FindByID(context.Background(), "wo-1")
	if stored.Status != domain.WorkOrderCompleted || stored.ScheduledAt != nil {
		t.Fatalf("completed order must be left untouched, got %+v", stored)
	}
	if len(fx.audit.Calls()) != 0 {
		t.Fatalf("refused schedules are not audited, got %+v", fx.audit.Calls())
	}
}

func TestDayRange(t *testing.T) {
	loc := time.FixedZone("BRT", -3*60*60)
	// 01:30 UTC on the 11th is still the 10th in BRT.
	rng := DayRange(time.Date(2025, 3, 11, 1, 30, 0, 0, time.UTC), loc)

	wantStart := time.Date(2025, 3, 10, 0, 0, 0, 0, loc)
	if !rng.Start.Equal(wantStart) {
		t.Fatalf("expected start %v, got %v", wantStart, rng.Start)
	}
	if !rng.End.Equal(wantStart.Add(24*time.Hour - time.Nanosecond)) {
		t.Fatalf("unexpected end %v", rng.End)
	}
	if !rng.Contains(wantStart) || !rng.Contains(rng.End) || rng.Contains(rng.End.Add(time.Nanosecond)) {
		t.Fatal("day range must be inclusive on both ends and exclude the next midnight")
	}

	if utc := DayRange(time.Date(2025, 3, 10, 23, 0, 0, 0, time.UTC), nil); utc.Start.Day() != 10 {
		t.Fatalf("nil location should default to UTC, got %v", utc.Start)
	}
}

func TestFilterScheduled(t *testing.T) {
	day := time.Date(2025, 3, 10, 0, 0, 0, 0, time.UTC)
	rng := DayRange(day, time.UTC)
	orders := []domain.WorkOrder{
		{ID: "b", OwnerID: "u", ScheduledAt: at(day.Add(time.Hour))},
		{ID: "a", OwnerID: "u", ScheduledAt: at(day.Add(time.Hour))},
		{ID: "x", OwnerID: "other", ScheduledAt: at(day.Add(time.Hour))},
		{ID: "n", OwnerID: "u"},
	}

	got := FilterScheduled(orders, "u", rng)
	if len(got) != 2 || got[0].ID != "a" || got[1].ID != "b" {
		t.Fatalf("expected [a b], got %+v", got)
	}

	if got := FilterScheduled(nil, "", rng); got == nil || len(got) != 0 {
		t.Fatalf("expected empty non-nil slice, got %#v", got)
	}
}
