package domain

import (
	"errors"
	"testing"
)

func TestRankOrdering(t *testing.T) {
	roles := Roles()
	for i := 0; i < len(roles)-1; i++ {
		higher, err := Rank(roles[i])
		if err != nil {
			t.Fatalf("Rank(%s) returned error: %v", roles[i], err)
		}
		lower, err := Rank(roles[i+1])
		if err != nil {
			t.Fatalf("Rank(%s) returned error: %v", roles[i+1], err)
		}
		if higher <= lower {
			t.Fatalf("expected %s to outrank %s, got %d <= %d", roles[i], roles[i+1], higher, lower)
		}
	}
}

func TestRankUnknownRole(t *testing.T) {
	if _, err := Rank(Role("auditor")); !errors.Is(err, ErrInvalidRole) {
		t.Fatalf("expected ErrInvalidRole, got %v", err)
	}
	if _, err := PermissionsOf(Role("")); !errors.Is(err, ErrInvalidRole) {
		t.Fatalf("expected ErrInvalidRole, got %v", err)
	}
	if _, err := HasPermission(Role("root"), PermReadAll); !errors.Is(err, ErrInvalidRole) {
		t.Fatalf("expected ErrInvalidRole, got %v", err)
	}
}

func TestHasPermissionTable(t *testing.T) {
	cases := []struct {
		role Role
		perm Permission
		want bool
	}{
		{RoleAdmin, PermManageUsers, true},
		{RoleAdmin, PermReadAll, true},
		{RoleAdmin, PermDeleteAll, true},
		{RoleTechnician, PermManageUsers, false},
		{RoleTechnician, PermReadWorkOrders, true},
		{RoleTechnician, PermManageSchedule, true},
		{RoleTechnician, PermReadAll, false},
		{RoleTechnician, PermReadFinance, false},
		{RoleClient, PermReadOwnOrders, true},
		{RoleClient, PermReadWorkOrders, false},
		{RoleClient, PermWriteWorkOrders, false},
		{RoleUser, PermViewDashboard, true},
		{RoleUser, PermReadOwnOrders, false},
	}

	for _, tc := range cases {
		got, err := HasPermission(tc.role, tc.perm)
		if err != nil {
			t.Fatalf("HasPermission(%s, %s) returned error: %v", tc.role, tc.perm, err)
		}
		if got != tc.want {
			t.Fatalf("HasPermission(%s, %s) = %v, want %v", tc.role, tc.perm, got, tc.want)
		}
	}
}

func TestPermissionsOfReturnsCopy(t *testing.T) {
	perms, err := PermissionsOf(RoleUser)
	if err != nil {
		t.Fatalf("PermissionsOf returned error: %v", err)
	}
	perms[PermReadAll] = struct{}{}

	ok, err := HasPermission(RoleUser, PermReadAll)
	if err != nil {
		t.Fatalf("HasPermission returned error: %v", err)
	}
	if ok {
		t.Fatalf("mutating a returned set must not change the role table")
	}
}

func TestParseRole(t *testing.T) {
	role, err := ParseRole("  Technician ")
	if err != nil {
		t.Fatalf("ParseRole returned error: %v", err)
	}
	if role != RoleTechnician {
		t.Fatalf("expected technician, got %s", role)
	}

	if _, err := ParseRole("superuser"); !errors.Is(err, ErrInvalidRole) {
		t.Fatalf("expected ErrInvalidRole, got %v", err)
	}
}

func TestPermissionParts(t *testing.T) {
	if got := PermReadOwnOrders.Verb(); got != "read" {
		t.Fatalf("expected verb read, got %s", got)
	}
	if got := PermReadOwnOrders.Resource(); got != "own-orders" {
		t.Fatalf("expected resource own-orders, got %s", got)
	}
	if got := Permission("opaque").Resource(); got != "opaque" {
		t.Fatalf("expected opaque resource, got %s", got)
	}
}

func TestOverrideFor(t *testing.T) {
	if perm, ok := OverrideFor(VerbRead); !ok || perm != PermReadAll {
		t.Fatalf("expected read:all override, got %s %v", perm, ok)
	}
	if perm, ok := OverrideFor(VerbUpdate); !ok || perm != PermWriteAll {
		t.Fatalf("expected write:all override, got %s %v", perm, ok)
	}
	if perm, ok := OverrideFor(VerbDelete); !ok || perm != PermDeleteAll {
		t.Fatalf("expected delete:all override, got %s %v", perm, ok)
	}
	if _, ok := OverrideFor(VerbCreate); ok {
		t.Fatalf("create must not have an override")
	}
}

func TestDenialErrorUnwrap(t *testing.T) {
	err := Forbidden("user-1", string(PermReadWorkOrders), "work-orders")
	if !errors.Is(err, ErrForbidden) {
		t.Fatalf("expected errors.Is(ErrForbidden)")
	}
	if errors.Is(err, ErrUnauthenticated) {
		t.Fatalf("forbidden must be distinguishable from unauthenticated")
	}

	var denial *DenialError
	if !errors.As(err, &denial) {
		t.Fatalf("expected *DenialError")
	}
	if denial.ActorID != "user-1" || denial.Resource != "work-orders" {
		t.Fatalf("unexpected denial fields: %+v", denial)
	}
}
