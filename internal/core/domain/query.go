package domain

// Verb is the kind of access a query or mutation performs against a scoped resource.
type Verb string

const (
	VerbRead   Verb = "read"
	VerbCreate Verb = "create"
	VerbUpdate Verb = "update"
	VerbDelete Verb = "delete"
)

// Patch maps column names to new values for a partial update.
type Patch map[string]any

// Reserved patch keys that callers may never set.
const (
	FieldID      = "id"
	FieldOwnerID = "owner_id"
)

// Query is the logical form of a read against a scoped resource collection.
type Query struct {
	Resource ResourceType
	Verb     Verb
	// ID narrows the query to a single record when set.
	ID string
	// OwnerID constrains results to a single tenant when set.
	OwnerID string
	// Scoped is true once the isolation filter has constrained the query to the actor's tenant.
	Scoped bool
}

// Unrestricted reports whether the query returns rows from every tenant.
func (q Query) Unrestricted() bool {
	return q.OwnerID == ""
}

// Mutation is the logical form of a write against a scoped resource collection.
type Mutation struct {
	Resource ResourceType
	Verb     Verb
	// ID targets an existing record for update and delete.
	ID string
	// Payload is the record to insert for create.
	Payload Owned
	// Patch carries the changed columns for update.
	Patch Patch
}
