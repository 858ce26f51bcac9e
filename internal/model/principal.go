package model

import (
	"fmt"
	"slices"
	"strings"
)

// Role is the administrative role resolved by the verify endpoint.
type Role string

const (
	RoleAdmin      Role = "ADMIN"
	RoleSuperAdmin Role = "SUPER_ADMIN"
)

// ParseRole accepts the backend spellings of a role, case-insensitively.
func ParseRole(raw string) (Role, error) {
	switch strings.ToUpper(strings.TrimSpace(raw)) {
	case string(RoleAdmin):
		return RoleAdmin, nil
	case string(RoleSuperAdmin), "SUPERADMIN":
		return RoleSuperAdmin, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownRole, raw)
	}
}

// Permission is one tag of the closed set of console capabilities.
type Permission string

const (
	PermDashboard Permission = "DASHBOARD"
	PermProducts  Permission = "PRODUCTS"
	PermOrders    Permission = "ORDERS"
	PermCustomers Permission = "CUSTOMERS"
	PermAdmin     Permission = "ADMIN"
	PermRewards   Permission = "REWARDS"
	PermCoupons   Permission = "COUPONS"
	PermSettings  Permission = "SETTINGS"
)

var allPermissions = []Permission{
	PermDashboard,
	PermProducts,
	PermOrders,
	PermCustomers,
	PermAdmin,
	PermRewards,
	PermCoupons,
	PermSettings,
}

// AllPermissions returns every known permission tag.
func AllPermissions() []Permission {
	return slices.Clone(allPermissions)
}

func ParsePermission(raw string) (Permission, error) {
	candidate := Permission(strings.ToUpper(strings.TrimSpace(raw)))
	if slices.Contains(allPermissions, candidate) {
		return candidate, nil
	}

	return "", fmt.Errorf("%w: %q", ErrUnknownPermission, raw)
}

// PermissionSet is an unordered set of permission tags.
type PermissionSet map[Permission]struct{}

func NewPermissionSet(perms ...Permission) PermissionSet {
	set := make(PermissionSet, len(perms))
	for _, perm := range perms {
		set[perm] = struct{}{}
	}

	return set
}

func (s PermissionSet) Has(perm Permission) bool {
	_, ok := s[perm]
	return ok
}

// List returns the tags in declaration order.
func (s PermissionSet) List() []Permission {
	out := make([]Permission, 0, len(s))
	for _, perm := range allPermissions {
		if s.Has(perm) {
			out = append(out, perm)
		}
	}

	return out
}

// Principal is the authorized administrator as resolved by the backend.
type Principal struct {
	ID          string        `json:"id"`
	Email       string        `json:"email"`
	DisplayName string        `json:"display_name,omitempty"`
	Role        Role          `json:"role"`
	Permissions PermissionSet `json:"-"`
}

// PermissionList is the JSON-friendly view of the permission set.
func (p *Principal) PermissionList() []Permission {
	if p == nil {
		return nil
	}

	return p.Permissions.List()
}

// Identity is the identity-provider user. It carries no authorization.
type Identity struct {
	UID         string `json:"uid"`
	Email       string `json:"email"`
	DisplayName string `json:"display_name,omitempty"`
}
