package usecase

import (
	"context"
	"errors"
	"fmt"
	"strings"

	lru "github.com/hashicorp/golang-lru/v2"
	"go.uber.org/zap"

	"github.com/arklim/maintenance-service/internal/core/domain"
	"github.com/arklim/maintenance-service/internal/core/port"
)

// DefaultOwnerCacheSize bounds the number of resolved owners kept in memory.
const DefaultOwnerCacheSize = 4096

type ownerKey struct {
	resource domain.ResourceType
	id       string
}

// IsolationFilter confines queries and mutations to the acting tenant unless the actor
// holds the "<verb>:all" override for the requested verb.
type IsolationFilter struct {
	owners map[domain.ResourceType]port.OwnerResolver
	cache  *lru.Cache[ownerKey, string]
	audit  port.AuditRecorder
	logger *zap.Logger
}

// NewIsolationFilter constructs a filter. Owner resolvers are registered per resource type.
func NewIsolationFilter(audit port.AuditRecorder, logger *zap.Logger) *IsolationFilter {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &IsolationFilter{
		owners: make(map[domain.ResourceType]port.OwnerResolver),
		audit:  audit,
		logger: logger,
	}
}

// WithOwnerCache fronts owner resolution with an LRU of the given size. Owners are never
// reassigned, but a record may be deleted through another process; a cached owner that would
// deny the actor is therefore re-read from the store first.
func (f *IsolationFilter) WithOwnerCache(size int) (*IsolationFilter, error) {
	if size <= 0 {
		size = DefaultOwnerCacheSize
	}
	cache, err := lru.New[ownerKey, string](size)
	if err != nil {
		return nil, fmt.Errorf("create owner cache: %w", err)
	}
	f.cache = cache
	return f, nil
}

// Register installs the owner resolver for a resource type.
func (f *IsolationFilter) Register(resource domain.ResourceType, resolver port.OwnerResolver) *IsolationFilter {
	f.owners[resource] = resolver
	return f
}

// ScopeQuery returns q constrained to the actor's tenant. Re-applying it is a no-op.
func (f *IsolationFilter) ScopeQuery(actor *domain.Actor, q domain.Query) (domain.Query, error) {
	if actor == nil {
		return q, domain.Unauthenticated(string(q.Verb), string(q.Resource))
	}
	if q.Verb == "" {
		q.Verb = domain.VerbRead
	}

	override, err := f.holdsOverride(actor, q.Verb)
	if err != nil {
		return q, err
	}

	if !override {
		q.OwnerID = actor.ID
	}
	q.Scoped = true
	return q, nil
}

// ScopeMutation prepares m for the store. Creates are always owned by the actor; updates and
// deletes are rejected unless the target belongs to the actor or the actor holds the override.
func (f *IsolationFilter) ScopeMutation(ctx context.Context, actor *domain.Actor, m domain.Mutation) (domain.Mutation, error) {
	if actor == nil {
		return m, domain.Unauthenticated(string(m.Verb), string(m.Resource))
	}

	switch m.Verb {
	case domain.VerbCreate:
		if m.Payload == nil {
			return m, errors.New("create mutation requires a payload")
		}
		m.Payload.AssignOwner(actor.ID)
		return m, nil

	case domain.VerbUpdate:
		m.Patch = stripReserved(m.Patch)
		if err := f.authorizeTarget(ctx, actor, m.Resource, m.Verb, m.ID); err != nil {
			return m, err
		}
		return m, nil

	case domain.VerbDelete:
		if err := f.authorizeTarget(ctx, actor, m.Resource, m.Verb, m.ID); err != nil {
			return m, err
		}
		return m, nil

	default:
		return m, fmt.Errorf("unsupported mutation verb %q", m.Verb)
	}
}

// CheckOwner verifies a record already loaded under query q belongs to the scope q allows.
func (f *IsolationFilter) CheckOwner(ctx context.Context, actor *domain.Actor, q domain.Query, record domain.Owned) error {
	if q.Unrestricted() || record.OwnerOf() == q.OwnerID {
		return nil
	}
	return f.deny(ctx, actor, q.Verb, q.Resource, record.ResourceID())
}

// Forget drops a cached owner after the record is deleted.
func (f *IsolationFilter) Forget(resource domain.ResourceType, id string) {
	if f.cache == nil {
		return
	}
	f.cache.Remove(ownerKey{resource: resource, id: id})
}

func (f *IsolationFilter) authorizeTarget(ctx context.Context, actor *domain.Actor, resource domain.ResourceType, verb domain.Verb, id string) error {
	id = strings.TrimSpace(id)
	if id == "" {
		return fmt.Errorf("%s %s requires a target id", verb, resource)
	}

	owner, cached, err := f.resolveOwner(ctx, resource, id)
	if err != nil {
		return err
	}

	override, err := f.holdsOverride(actor, verb)
	if err != nil {
		return err
	}
	if override || owner == actor.ID {
		return nil
	}

	if cached {
		if owner, err = f.lookupOwner(ctx, resource, id); err != nil {
			if errors.Is(err, domain.ErrNotFound) {
				f.Forget(resource, id)
			}
			return err
		}
		if owner == actor.ID {
			return nil
		}
	}

	return f.deny(ctx, actor, verb, resource, id)
}

// resolveOwner reports whether the owner came from the cache.
func (f *IsolationFilter) resolveOwner(ctx context.Context, resource domain.ResourceType, id string) (string, bool, error) {
	if f.cache != nil {
		if owner, ok := f.cache.Get(ownerKey{resource: resource, id: id}); ok {
			return owner, true, nil
		}
	}
	owner, err := f.lookupOwner(ctx, resource, id)
	return owner, false, err
}

// lookupOwner reads the owner from the registered resolver and refreshes the cache.
func (f *IsolationFilter) lookupOwner(ctx context.Context, resource domain.ResourceType, id string) (string, error) {
	resolver, ok := f.owners[resource]
	if !ok {
		return "", fmt.Errorf("no owner resolver registered for %s", resource)
	}

	owner, err := resolver.OwnerOf(ctx, id)
	if err != nil {
		return "", fmt.Errorf("resolve %s owner: %w", resource, err)
	}

	if f.cache != nil {
		f.cache.Add(ownerKey{resource: resource, id: id}, owner)
	}
	return owner, nil
}

func (f *IsolationFilter) holdsOverride(actor *domain.Actor, verb domain.Verb) (bool, error) {
	perm, ok := domain.OverrideFor(verb)
	if !ok {
		return false, nil
	}
	granted, err := domain.HasPermission(actor.Role, perm)
	if err != nil {
		f.logger.Error("unrecognised role reached the isolation filter",
			zap.String("actor_id", actor.ID),
			zap.String("role", string(actor.Role)),
		)
		return false, fmt.Errorf("scope actor %s: %w", actor.ID, err)
	}
	return granted, nil
}

func (f *IsolationFilter) deny(ctx context.Context, actor *domain.Actor, verb domain.Verb, resource domain.ResourceType, id string) error {
	target := fmt.Sprintf("%s/%s", resource, id)
	f.logger.Info("tenant isolation denied access",
		zap.String("actor_id", actor.ID),
		zap.String("verb", string(verb)),
		zap.String("resource", target),
	)
	if f.audit != nil {
		f.audit.Record(ctx, actor.ID, string(verb), target, map[string]any{
			"reason": "owner_mismatch",
			"role":   string(actor.Role),
		})
	}
	return domain.Forbidden(actor.ID, string(verb), target)
}

func stripReserved(patch domain.Patch) domain.Patch {
	out := make(domain.Patch, len(patch))
	for key, value := range patch {
		if key == domain.FieldOwnerID || key == domain.FieldID {
			continue
		}
		out[key] = value
	}
	return out
}
