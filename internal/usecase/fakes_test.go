package usecase

import (
	"context"
	"sort"
	"strconv"
	"sync"
	"time"

	"github.com/arklim/maintenance-service/internal/core/domain"
)

type auditCall struct {
	ActorID  string
	Action   string
	Resource string
	Detail   map[string]any
}

type recordingAudit struct {
	mu    sync.Mutex
	calls []auditCall
}

func (r *recordingAudit) Record(_ context.Context, actorID, action, resource string, detail map[string]any) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = append(r.calls, auditCall{ActorID: actorID, Action: action, Resource: resource, Detail: detail})
}

func (r *recordingAudit) Calls() []auditCall {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]auditCall, len(r.calls))
	copy(out, r.calls)
	return out
}

// memRepo is an in-memory port.ResourceRepository keyed by id.
type memRepo[T any, PT interface {
	*T
	domain.Owned
}] struct {
	mu         sync.Mutex
	items      map[string]T
	apply      func(item *T, patch domain.Patch)
	ownerCalls int
}

func newMemRepo[T any, PT interface {
	*T
	domain.Owned
}](apply func(*T, domain.Patch)) *memRepo[T, PT] {
	return &memRepo[T, PT]{items: make(map[string]T), apply: apply}
}

func (m *memRepo[T, PT]) seed(items ...T) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := range items {
		item := items[i]
		m.items[PT(&item).ResourceID()] = item
	}
}

func (m *memRepo[T, PT]) FindByID(_ context.Context, id string) (*T, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	item, ok := m.items[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return &item, nil
}

func (m *memRepo[T, PT]) FindAllByOwner(_ context.Context, ownerID string) ([]T, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]T, 0)
	for _, id := range m.sortedIDs() {
		item := m.items[id]
		if PT(&item).OwnerOf() == ownerID {
			out = append(out, item)
		}
	}
	return out, nil
}

func (m *memRepo[T, PT]) FindAll(_ context.Context) ([]T, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]T, 0, len(m.items))
	for _, id := range m.sortedIDs() {
		out = append(out, m.items[id])
	}
	return out, nil
}

func (m *memRepo[T, PT]) Insert(_ context.Context, payload *T) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.items[PT(payload).ResourceID()] = *payload
	return nil
}

func (m *memRepo[T, PT]) Update(_ context.Context, id string, patch domain.Patch) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	item, ok := m.items[id]
	if !ok {
		return domain.ErrNotFound
	}
	if m.apply != nil {
		m.apply(&item, patch)
	}
	m.items[id] = item
	return nil
}

func (m *memRepo[T, PT]) Delete(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.items[id]; !ok {
		return domain.ErrNotFound
	}
	delete(m.items, id)
	return nil
}

func (m *memRepo[T, PT]) OwnerOf(_ context.Context, id string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.ownerCalls++
	item, ok := m.items[id]
	if !ok {
		return "", domain.ErrNotFound
	}
	return PT(&item).OwnerOf(), nil
}

func (m *memRepo[T, PT]) OwnerCalls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.ownerCalls
}

func (m *memRepo[T, PT]) sortedIDs() []string {
	ids := make([]string, 0, len(m.items))
	for id := range m.items {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// workOrderStore adds the scheduling view to the in-memory work order repository.
type workOrderStore struct {
	*memRepo[domain.WorkOrder, *domain.WorkOrder]
}

func newWorkOrderStore() *workOrderStore {
	return &workOrderStore{memRepo: newMemRepo[domain.WorkOrder, *domain.WorkOrder](applyWorkOrderPatch)}
}

func (s *workOrderStore) ListScheduledBetween(ctx context.Context, ownerID string, rng domain.ScheduleRange) ([]domain.WorkOrder, error) {
	var (
		all []domain.WorkOrder
		err error
	)
	if ownerID == "" {
		all, err = s.FindAll(ctx)
	} else {
		all, err = s.FindAllByOwner(ctx, ownerID)
	}
	if err != nil {
		return nil, err
	}
	out := make([]domain.WorkOrder, 0, len(all))
	for _, order := range all {
		if order.ScheduledAt != nil && rng.Contains(*order.ScheduledAt) {
			out = append(out, order)
		}
	}
	return out, nil
}

// Schedule mirrors the conditional write of the SQL repository: terminal orders are left untouched.
func (s *workOrderStore) Schedule(_ context.Context, id string, when time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	item, ok := s.items[id]
	if !ok {
		return domain.ErrNotFound
	}
	if item.Status.Terminal() {
		return domain.ErrTerminalWorkOrder
	}
	item.ScheduledAt = &when
	item.Status = domain.WorkOrderApproved
	s.items[id] = item
	return nil
}

func applyWorkOrderPatch(w *domain.WorkOrder, patch domain.Patch) {
	for key, value := range patch {
		switch key {
		case "title":
			w.Title, _ = value.(string)
		case "status":
			if s, ok := value.(string); ok {
				w.Status = domain.WorkOrderStatus(s)
			}
		}
	}
}

func applyEquipmentPatch(e *domain.Equipment, patch domain.Patch) {
	if name, ok := patch["name"].(string); ok {
		e.Name = name
	}
}

func sequentialIDs(prefix string) func() string {
	var (
		mu sync.Mutex
		n  int
	)
	return func() string {
		mu.Lock()
		defer mu.Unlock()
		n++
		return prefix + "-" + strconv.Itoa(n)
	}
}

func actor(id string, role domain.Role) *domain.Actor {
	return &domain.Actor{ID: id, Role: role}
}

func at(t time.Time) *time.Time {
	return &t
}
