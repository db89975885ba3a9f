package authz

import "go-org-access/internal/model"

type Action string

const (
	ActionRead   Action = "read"
	ActionCreate Action = "create"
	ActionUpdate Action = "update"
	ActionDelete Action = "delete"
)

// Permission is the grant permission that would cover the action.
func (a Action) Permission() string {
	switch a {
	case ActionRead:
		return model.PermissionView
	case ActionCreate:
		return model.PermissionCreate
	case ActionUpdate:
		return model.PermissionEdit
	case ActionDelete:
		return model.PermissionDelete
	default:
		return string(a)
	}
}

// Resource types with rules of their own. Anything else falls back to the
// default table.
const (
	ResourceUser        = "users"
	ResourceDepartment  = "departments"
	ResourceAccessGrant = "access_grants"
	ResourceEvent       = "events"
	ResourceTask        = "tasks"
	ResourceActivity    = "activity"
)

// Rule is a scope predicate evaluated against the caller and the resource.
type Rule string

const (
	RuleAllow                  Rule = "allow"
	RuleDeny                   Rule = "deny"
	RuleSameDepartment         Rule = "same_department"
	RuleSameDepartmentOrShared Rule = "same_department_or_shared"
	RuleOwner                  Rule = "owner"
	RuleOwnerInDepartment      Rule = "owner_in_department"
)

type roleRules map[model.Role]map[Action]Rule

// Policy maps resource type -> role -> action -> rule. The "*" entry is the
// fallback for resource types without their own row.
type Policy map[string]roleRules

const defaultResource = "*"

var departmentScoped = map[Action]Rule{
	ActionRead:   RuleSameDepartmentOrShared,
	ActionCreate: RuleSameDepartmentOrShared,
	ActionUpdate: RuleSameDepartment,
	ActionDelete: RuleSameDepartment,
}

var ownerScoped = map[Action]Rule{
	ActionRead:   RuleOwner,
	ActionCreate: RuleOwnerInDepartment,
	ActionUpdate: RuleOwner,
	ActionDelete: RuleOwner,
}

// DefaultPolicy is the single source of truth for role scoping.
func DefaultPolicy() Policy {
	return Policy{
		defaultResource: {
			model.RoleManager:      departmentScoped,
			model.RoleStaff:        ownerScoped,
			model.RoleCollaborator: ownerScoped,
		},
		ResourceEvent: {
			model.RoleManager: departmentScoped,
			model.RoleStaff: {
				ActionRead:   RuleSameDepartmentOrShared,
				ActionCreate: RuleSameDepartmentOrShared,
				ActionUpdate: RuleDeny,
				ActionDelete: RuleDeny,
			},
			model.RoleCollaborator: {
				ActionRead:   RuleSameDepartmentOrShared,
				ActionCreate: RuleDeny,
				ActionUpdate: RuleDeny,
				ActionDelete: RuleDeny,
			},
		},
		ResourceUser: {
			model.RoleManager: {
				ActionRead:   RuleSameDepartment,
				ActionCreate: RuleSameDepartment,
				ActionUpdate: RuleSameDepartment,
				ActionDelete: RuleSameDepartment,
			},
			model.RoleStaff: {
				ActionRead:   RuleOwner,
				ActionCreate: RuleDeny,
				ActionUpdate: RuleDeny,
				ActionDelete: RuleDeny,
			},
			model.RoleCollaborator: {
				ActionRead:   RuleOwner,
				ActionCreate: RuleDeny,
				ActionUpdate: RuleDeny,
				ActionDelete: RuleDeny,
			},
		},
		ResourceDepartment: {
			model.RoleManager: {
				ActionRead:   RuleAllow,
				ActionCreate: RuleDeny,
				ActionUpdate: RuleDeny,
				ActionDelete: RuleDeny,
			},
			model.RoleStaff: {
				ActionRead:   RuleAllow,
				ActionCreate: RuleDeny,
				ActionUpdate: RuleDeny,
				ActionDelete: RuleDeny,
			},
			model.RoleCollaborator: {
				ActionRead:   RuleAllow,
				ActionCreate: RuleDeny,
				ActionUpdate: RuleDeny,
				ActionDelete: RuleDeny,
			},
		},
		ResourceAccessGrant: {
			model.RoleManager: {
				ActionRead:   RuleSameDepartment,
				ActionCreate: RuleSameDepartment,
				ActionUpdate: RuleSameDepartment,
				ActionDelete: RuleSameDepartment,
			},
			model.RoleStaff:        {ActionRead: RuleOwner, ActionCreate: RuleDeny, ActionUpdate: RuleDeny, ActionDelete: RuleDeny},
			model.RoleCollaborator: {ActionRead: RuleOwner, ActionCreate: RuleDeny, ActionUpdate: RuleDeny, ActionDelete: RuleDeny},
		},
		// Everyone may read their own trail; only admins see the rest.
		ResourceActivity: {
			model.RoleManager:      {ActionRead: RuleOwner},
			model.RoleStaff:        {ActionRead: RuleOwner},
			model.RoleCollaborator: {ActionRead: RuleOwner},
		},
	}
}

// Lookup returns the rule for (resourceType, role, action). Unknown roles or
// actions resolve to RuleDeny.
func (p Policy) Lookup(resourceType string, role model.Role, action Action) Rule {
	if role == model.RoleAdmin {
		return RuleAllow
	}

	rules, ok := p[resourceType]
	if !ok {
		rules = p[defaultResource]
	}

	byAction, ok := rules[role]
	if !ok {
		return RuleDeny
	}

	rule, ok := byAction[action]
	if !ok {
		return RuleDeny
	}
	return rule
}

func (r Rule) evaluate(user model.AuthenticatedUser, res Resource) bool {
	switch r {
	case RuleAllow:
		return true
	case RuleSameDepartment:
		return res.DepartmentID != "" && res.DepartmentID == user.DepartmentID
	case RuleSameDepartmentOrShared:
		return res.DepartmentID == "" || res.DepartmentID == user.DepartmentID
	case RuleOwner:
		return res.OwnedBy(user.ID)
	case RuleOwnerInDepartment:
		return res.OwnedBy(user.ID) && user.DepartmentID != "" && res.DepartmentID == user.DepartmentID
	default:
		return false
	}
}
