package usecase

import (
	"context"
	"fmt"
	"sort"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/arklim/maintenance-service/internal/core/domain"
	"github.com/arklim/maintenance-service/internal/core/port"
)

// ResourceService exposes permission-checked, tenant-scoped CRUD over a single resource type.
type ResourceService[T any, PT interface {
	*T
	domain.Owned
	domain.Identified
}] struct {
	resource  domain.ResourceType
	repo      port.ResourceRepository[T]
	gate      *Gate
	filter    *IsolationFilter
	audit     port.AuditRecorder
	logger    *zap.Logger
	newID     func() string
	lifecycle bool // PT implements domain.Lifecycle
}

// NewResourceService wires a service for resource. The repository is also registered as the
// filter's owner resolver for that resource type.
func NewResourceService[T any, PT interface {
	*T
	domain.Owned
	domain.Identified
}](
	resource domain.ResourceType,
	repo port.ResourceRepository[T],
	gate *Gate,
	filter *IsolationFilter,
	audit port.AuditRecorder,
	logger *zap.Logger,
) *ResourceService[T, PT] {
	if logger == nil {
		logger = zap.NewNop()
	}
	filter.Register(resource, repo)
	_, lifecycle := any(PT(new(T))).(domain.Lifecycle)
	return &ResourceService[T, PT]{
		resource:  resource,
		repo:      repo,
		gate:      gate,
		filter:    filter,
		audit:     audit,
		logger:    logger.With(zap.String("resource", string(resource))),
		newID:     uuid.NewString,
		lifecycle: lifecycle,
	}
}

// WithIDGenerator overrides identifier generation (primarily for testing).
func (s *ResourceService[T, PT]) WithIDGenerator(gen func() string) *ResourceService[T, PT] {
	if gen != nil {
		s.newID = gen
	}
	return s
}

// Resource returns the resource type served.
func (s *ResourceService[T, PT]) Resource() domain.ResourceType {
	return s.resource
}

// List returns the records visible to actor: every record with the read override, otherwise only
// the actor's own.
func (s *ResourceService[T, PT]) List(ctx context.Context, actor *domain.Actor, perm domain.Permission) ([]T, error) {
	if err := s.gate.RequirePermission(ctx, actor, perm); err != nil {
		return nil, err
	}

	q, err := s.filter.ScopeQuery(actor, domain.Query{Resource: s.resource, Verb: domain.VerbRead})
	if err != nil {
		return nil, err
	}

	return s.list(ctx, q)
}

// ListOwn returns only the records owned by actor regardless of overrides.
func (s *ResourceService[T, PT]) ListOwn(ctx context.Context, actor *domain.Actor, perm domain.Permission) ([]T, error) {
	if err := s.gate.RequirePermission(ctx, actor, perm); err != nil {
		return nil, err
	}

	q, err := s.filter.ScopeQuery(actor, domain.Query{Resource: s.resource, Verb: domain.VerbRead})
	if err != nil {
		return nil, err
	}
	q.OwnerID = actor.ID

	return s.list(ctx, q)
}

// Get loads a single record. Records outside the actor's scope yield domain.ErrForbidden.
func (s *ResourceService[T, PT]) Get(ctx context.Context, actor *domain.Actor, perm domain.Permission, id string) (*T, error) {
	if err := s.gate.RequirePermission(ctx, actor, perm); err != nil {
		return nil, err
	}

	q, err := s.filter.ScopeQuery(actor, domain.Query{Resource: s.resource, Verb: domain.VerbRead, ID: id})
	if err != nil {
		return nil, err
	}

	return s.get(ctx, actor, q)
}

// GetOwn loads a single record that must be owned by actor regardless of overrides.
func (s *ResourceService[T, PT]) GetOwn(ctx context.Context, actor *domain.Actor, perm domain.Permission, id string) (*T, error) {
	if err := s.gate.RequirePermission(ctx, actor, perm); err != nil {
		return nil, err
	}

	q, err := s.filter.ScopeQuery(actor, domain.Query{Resource: s.resource, Verb: domain.VerbRead, ID: id})
	if err != nil {
		return nil, err
	}
	q.OwnerID = actor.ID

	return s.get(ctx, actor, q)
}

// Create inserts payload owned by actor. Any owner or id supplied by the caller is overwritten,
// as is lifecycle state for entities implementing domain.Lifecycle.
func (s *ResourceService[T, PT]) Create(ctx context.Context, actor *domain.Actor, perm domain.Permission, payload *T) (*T, error) {
	if err := s.gate.RequirePermission(ctx, actor, perm); err != nil {
		return nil, err
	}
	if payload == nil {
		return nil, fmt.Errorf("create %s: %w", s.resource, domain.ErrInvalidPatch)
	}

	record := PT(payload)
	if _, err := s.filter.ScopeMutation(ctx, actor, domain.Mutation{
		Resource: s.resource,
		Verb:     domain.VerbCreate,
		Payload:  record,
	}); err != nil {
		return nil, err
	}
	record.AssignID(s.newID())
	if lc, ok := any(record).(domain.Lifecycle); ok {
		lc.ResetForCreate()
	}

	if err := s.repo.Insert(ctx, payload); err != nil {
		return nil, fmt.Errorf("insert %s: %w", s.resource, err)
	}

	s.record(ctx, actor, domain.AuditActionCreate, record.ResourceID(), nil)

	created, err := s.repo.FindByID(ctx, record.ResourceID())
	if err != nil {
		return nil, fmt.Errorf("reload %s: %w", s.resource, err)
	}
	return created, nil
}

// Update applies patch to the record identified by id. Owner and id keys are ignored. Entities
// implementing domain.Lifecycle review the patch against their current state first.
func (s *ResourceService[T, PT]) Update(ctx context.Context, actor *domain.Actor, perm domain.Permission, id string, patch domain.Patch) (*T, error) {
	if err := s.gate.RequirePermission(ctx, actor, perm); err != nil {
		return nil, err
	}

	m, err := s.filter.ScopeMutation(ctx, actor, domain.Mutation{
		Resource: s.resource,
		Verb:     domain.VerbUpdate,
		ID:       id,
		Patch:    patch,
	})
	if err != nil {
		return nil, err
	}
	if s.lifecycle {
		if m.Patch, err = s.reviewPatch(ctx, id, m.Patch); err != nil {
			return nil, err
		}
	}
	if len(m.Patch) == 0 {
		return nil, fmt.Errorf("update %s %s: %w: no patchable fields", s.resource, id, domain.ErrInvalidPatch)
	}

	if err := s.repo.Update(ctx, id, m.Patch); err != nil {
		return nil, fmt.Errorf("update %s %s: %w", s.resource, id, err)
	}

	s.record(ctx, actor, domain.AuditActionUpdate, id, map[string]any{"fields": patchFields(m.Patch)})

	updated, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("reload %s %s: %w", s.resource, id, err)
	}
	return updated, nil
}

// Delete removes the record identified by id.
func (s *ResourceService[T, PT]) Delete(ctx context.Context, actor *domain.Actor, perm domain.Permission, id string) error {
	if err := s.gate.RequirePermission(ctx, actor, perm); err != nil {
		return err
	}

	if _, err := s.filter.ScopeMutation(ctx, actor, domain.Mutation{
		Resource: s.resource,
		Verb:     domain.VerbDelete,
		ID:       id,
	}); err != nil {
		return err
	}

	if err := s.repo.Delete(ctx, id); err != nil {
		return fmt.Errorf("delete %s %s: %w", s.resource, id, err)
	}
	s.filter.Forget(s.resource, id)

	s.record(ctx, actor, domain.AuditActionDelete, id, nil)
	return nil
}

func (s *ResourceService[T, PT]) list(ctx context.Context, q domain.Query) ([]T, error) {
	var (
		items []T
		err   error
	)
	if q.Unrestricted() {
		items, err = s.repo.FindAll(ctx)
	} else {
		items, err = s.repo.FindAllByOwner(ctx, q.OwnerID)
	}
	if err != nil {
		return nil, fmt.Errorf("list %s: %w", s.resource, err)
	}
	if items == nil {
		items = []T{}
	}
	return items, nil
}

func (s *ResourceService[T, PT]) get(ctx context.Context, actor *domain.Actor, q domain.Query) (*T, error) {
	item, err := s.repo.FindByID(ctx, q.ID)
	if err != nil {
		return nil, fmt.Errorf("get %s %s: %w", s.resource, q.ID, err)
	}
	if err := s.filter.CheckOwner(ctx, actor, q, PT(item)); err != nil {
		return nil, err
	}
	return item, nil
}

func (s *ResourceService[T, PT]) reviewPatch(ctx context.Context, id string, patch domain.Patch) (domain.Patch, error) {
	current, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("load %s %s: %w", s.resource, id, err)
	}
	lc, _ := any(PT(current)).(domain.Lifecycle)
	reviewed, err := lc.ReviewPatch(patch)
	if err != nil {
		return nil, fmt.Errorf("update %s %s: %w", s.resource, id, err)
	}
	return reviewed, nil
}

func (s *ResourceService[T, PT]) record(ctx context.Context, actor *domain.Actor, action, id string, detail map[string]any) {
	s.logger.Debug("resource mutated",
		zap.String("actor_id", actor.ID),
		zap.String("action", action),
		zap.String("id", id),
	)
	if s.audit == nil {
		return
	}
	s.audit.Record(ctx, actor.ID, action, fmt.Sprintf("%s/%s", s.resource, id), detail)
}

func patchFields(patch domain.Patch) []string {
	fields := make([]string, 0, len(patch))
	for key := range patch {
		fields = append(fields, key)
	}
	sort.Strings(fields)
	return fields
}
