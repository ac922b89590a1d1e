package domain

import (
	"fmt"
	"sort"
	"strings"
)

// Role identifies one of the fixed roles an actor can hold.
type Role string

const (
	RoleAdmin      Role = "admin"
	RoleTechnician Role = "technician"
	RoleClient     Role = "client"
	RoleUser       Role = "user"
)

// Permission is an opaque capability tag of the form "verb:resource".
type Permission string

const (
	PermReadAll   Permission = "read:all"
	PermWriteAll  Permission = "write:all"
	PermDeleteAll Permission = "delete:all"

	PermManageUsers    Permission = "manage:users"
	PermManageSettings Permission = "manage:settings"
	PermManageSchedule Permission = "manage:schedule"

	PermReadClients   Permission = "read:clients"
	PermWriteClients  Permission = "write:clients"
	PermDeleteClients Permission = "delete:clients"

	PermReadEquipment   Permission = "read:equipment"
	PermWriteEquipment  Permission = "write:equipment"
	PermDeleteEquipment Permission = "delete:equipment"

	PermReadWorkOrders   Permission = "read:work-orders"
	PermWriteWorkOrders  Permission = "write:work-orders"
	PermDeleteWorkOrders Permission = "delete:work-orders"
	PermReadOwnOrders    Permission = "read:own-orders"

	PermReadQuotes    Permission = "read:quotes"
	PermWriteQuotes   Permission = "write:quotes"
	PermDeleteQuotes  Permission = "delete:quotes"
	PermReadOwnQuotes Permission = "read:own-quotes"

	PermReadFinance   Permission = "read:finance"
	PermWriteFinance  Permission = "write:finance"
	PermDeleteFinance Permission = "delete:finance"

	PermViewSchedule  Permission = "view:schedule"
	PermViewReports   Permission = "view:reports"
	PermViewDashboard Permission = "view:dashboard"
	PermViewAudit     Permission = "view:audit"
	PermExportData    Permission = "export:data"
)

// Verb returns the action part of the permission ("read" for "read:clients").
func (p Permission) Verb() string {
	verb, _, _ := strings.Cut(string(p), ":")
	return verb
}

// Resource returns the resource part of the permission ("clients" for "read:clients").
func (p Permission) Resource() string {
	_, resource, found := strings.Cut(string(p), ":")
	if !found {
		return string(p)
	}
	return resource
}

// PermissionSet is an immutable-by-convention set of permissions.
type PermissionSet map[Permission]struct{}

// Has reports whether the set contains perm.
func (s PermissionSet) Has(perm Permission) bool {
	_, ok := s[perm]
	return ok
}

// Sorted returns the permissions in lexical order.
func (s PermissionSet) Sorted() []Permission {
	out := make([]Permission, 0, len(s))
	for perm := range s {
		out = append(out, perm)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

var roleRanks = map[Role]int{
	RoleUser:       0,
	RoleClient:     1,
	RoleTechnician: 2,
	RoleAdmin:      3,
}

var rolePermissions = map[Role]PermissionSet{
	RoleAdmin: newPermissionSet(
		PermReadAll, PermWriteAll, PermDeleteAll,
		PermManageUsers, PermManageSettings, PermManageSchedule,
		PermReadClients, PermWriteClients, PermDeleteClients,
		PermReadEquipment, PermWriteEquipment, PermDeleteEquipment,
		PermReadWorkOrders, PermWriteWorkOrders, PermDeleteWorkOrders, PermReadOwnOrders,
		PermReadQuotes, PermWriteQuotes, PermDeleteQuotes,
		PermReadFinance, PermWriteFinance, PermDeleteFinance,
		PermViewSchedule, PermViewReports, PermViewDashboard, PermViewAudit,
		PermExportData,
	),
	RoleTechnician: newPermissionSet(
		PermReadClients,
		PermReadEquipment, PermWriteEquipment,
		PermReadWorkOrders, PermWriteWorkOrders, PermReadOwnOrders,
		PermReadQuotes,
		PermViewSchedule, PermManageSchedule,
		PermViewDashboard,
	),
	RoleClient: newPermissionSet(
		PermReadOwnOrders,
		PermReadOwnQuotes,
		PermViewDashboard,
	),
	RoleUser: newPermissionSet(
		PermViewDashboard,
	),
}

func newPermissionSet(perms ...Permission) PermissionSet {
	set := make(PermissionSet, len(perms))
	for _, perm := range perms {
		set[perm] = struct{}{}
	}
	return set
}

// Roles lists every known role from highest to lowest rank.
func Roles() []Role {
	return []Role{RoleAdmin, RoleTechnician, RoleClient, RoleUser}
}

// ParseRole normalises raw input into a known role.
func ParseRole(raw string) (Role, error) {
	role := Role(strings.ToLower(strings.TrimSpace(raw)))
	if _, ok := roleRanks[role]; !ok {
		return "", fmt.Errorf("%w: %q", ErrInvalidRole, raw)
	}
	return role, nil
}

// Valid reports whether r is one of the known roles.
func (r Role) Valid() bool {
	_, ok := roleRanks[r]
	return ok
}

// Rank returns the position of role in the hierarchy; higher outranks lower.
func Rank(role Role) (int, error) {
	rank, ok := roleRanks[role]
	if !ok {
		return 0, fmt.Errorf("%w: %q", ErrInvalidRole, role)
	}
	return rank, nil
}

// PermissionsOf returns a copy of the permission set granted to role.
func PermissionsOf(role Role) (PermissionSet, error) {
	perms, ok := rolePermissions[role]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrInvalidRole, role)
	}

	out := make(PermissionSet, len(perms))
	for perm := range perms {
		out[perm] = struct{}{}
	}
	return out, nil
}

// HasPermission reports whether role is granted perm.
func HasPermission(role Role, perm Permission) (bool, error) {
	perms, ok := rolePermissions[role]
	if !ok {
		return false, fmt.Errorf("%w: %q", ErrInvalidRole, role)
	}
	return perms.Has(perm), nil
}

// OverrideFor returns the "<verb>:all" permission that lifts owner scoping for verb.
func OverrideFor(verb Verb) (Permission, bool) {
	switch verb {
	case VerbRead:
		return PermReadAll, true
	case VerbUpdate:
		return PermWriteAll, true
	case VerbDelete:
		return PermDeleteAll, true
	default:
		return "", false
	}
}
