package domain

// ResourceType names a tenant-scoped resource collection.
type ResourceType string

const (
	ResourceClient      ResourceType = "client"
	ResourceEquipment   ResourceType = "equipment"
	ResourceWorkOrder   ResourceType = "work_order"
	ResourceTransaction ResourceType = "transaction"
	ResourceQuote       ResourceType = "quote"
)

// ResourceTypes lists every scoped resource collection.
func ResourceTypes() []ResourceType {
	return []ResourceType{ResourceClient, ResourceEquipment, ResourceWorkOrder, ResourceTransaction, ResourceQuote}
}

// Owned is implemented by every tenant-scoped entity. The isolation filter only needs these accessors.
type Owned interface {
	ResourceType() ResourceType
	ResourceID() string
	OwnerOf() string
	AssignOwner(ownerID string)
}

// Identified is implemented by entities whose identifier is assigned by the server on creation.
type Identified interface {
	AssignID(id string)
}

// Lifecycle is implemented by entities whose state only moves through controlled transitions.
type Lifecycle interface {
	// ResetForCreate clears state a caller may not choose when creating the entity.
	ResetForCreate()
	// ReviewPatch checks patch against the entity's current state and returns what may be written.
	ReviewPatch(patch Patch) (Patch, error)
}
