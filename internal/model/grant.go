package model

import "time"

// GrantWildcard matches every resource id of a type.
const GrantWildcard = "all"

const (
	PermissionView   = "view"
	PermissionCreate = "create"
	PermissionEdit   = "edit"
	PermissionDelete = "delete"
	PermissionManage = "manage"
)

// AccessGrant is an additive exception to the default role rules.
type AccessGrant struct {
	ID           string    `json:"id"`
	UserID       string    `json:"user_id"`
	ResourceType string    `json:"resource_type"`
	ResourceID   string    `json:"resource_id"`
	Permission   string    `json:"permission"`
	DepartmentID string    `json:"department_id,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
}

// GrantQuery describes the grant that would satisfy a denied request.
type GrantQuery struct {
	UserID       string
	ResourceType string
	ResourceID   string
	Permission   string
	DepartmentID string
}

// Satisfies reports whether the grant covers the query. Stores that cannot
// express the matching in SQL fall back to this.
func (g AccessGrant) Satisfies(q GrantQuery) bool {
	if g.UserID != q.UserID {
		return false
	}
	if g.ResourceType != q.ResourceType && g.ResourceType != GrantWildcard {
		return false
	}
	if g.ResourceID != GrantWildcard && (q.ResourceID == "" || g.ResourceID != q.ResourceID) {
		return false
	}
	if g.DepartmentID != "" && g.DepartmentID != q.DepartmentID {
		return false
	}
	return PermissionImplies(g.Permission, q.Permission)
}

// PermissionImplies reports whether holding granted is enough for wanted.
func PermissionImplies(granted string, wanted string) bool {
	switch granted {
	case wanted:
		return true
	case PermissionManage:
		return true
	case PermissionEdit:
		return wanted == PermissionView
	default:
		return false
	}
}

// ImplyingPermissions lists every permission that satisfies wanted.
func ImplyingPermissions(wanted string) []string {
	perms := []string{wanted, PermissionManage}
	if wanted == PermissionView {
		perms = append(perms, PermissionEdit)
	}
	return perms
}

// GrantFilter narrows a grant listing. Zero values match everything.
type GrantFilter struct {
	UserID       string
	DepartmentID string
}
