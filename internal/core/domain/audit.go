package domain

import "time"

// Audit actions recorded for sensitive mutations. Permission denials use the denied permission or role tag.
const (
	AuditActionCreate   = "create"
	AuditActionUpdate   = "update"
	AuditActionDelete   = "delete"
	AuditActionSchedule = "schedule"
)

// AuditRecord is an immutable, append-only entry describing a security relevant decision.
type AuditRecord struct {
	ID        string
	Timestamp time.Time
	ActorID   string
	Action    string
	Resource  string
	Detail    map[string]any
}

// AuditFilter narrows an audit log listing.
type AuditFilter struct {
	ActorID string
	Limit   int
}
