package port

import (
	"context"

	"github.com/arklim/maintenance-service/internal/core/domain"
)

// ResourceRepository persists a single tenant-scoped resource type.
// Implementations return domain.ErrNotFound when the record does not exist.
type ResourceRepository[T any] interface {
	FindByID(ctx context.Context, id string) (*T, error)
	// FindAllByOwner backs every scoped listing and must be served by an index on owner_id.
	FindAllByOwner(ctx context.Context, ownerID string) ([]T, error)
	FindAll(ctx context.Context) ([]T, error)
	Insert(ctx context.Context, payload *T) error
	Update(ctx context.Context, id string, patch domain.Patch) error
	Delete(ctx context.Context, id string) error
	OwnerResolver
}

// OwnerResolver resolves the owning user of an existing record.
type OwnerResolver interface {
	OwnerOf(ctx context.Context, id string) (string, error)
}
