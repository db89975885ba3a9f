// Package authz decides whether an authenticated user may perform an action on
// a resource.
//
// Every decision goes through one table (Policy) keyed by resource type, role
// and action, whose value is a scope rule. Hard guards run before the table
// and cannot be lifted by grants; access grants are consulted only when the
// table denies, and can only turn a denial into an allow.
package authz

import (
	"context"
	"fmt"
	"slices"

	"go-org-access/internal/model"
)

// ObligationLastAdminGuard tells the caller it must refuse the change if it
// would leave the organisation without an active admin.
const ObligationLastAdminGuard = "last_admin_guard"

// Resource describes what is being acted on.
type Resource struct {
	Type string
	ID   string
	// DepartmentID is the owning department; empty means shared. For create
	// it is the department the new resource will belong to.
	DepartmentID string
	// OwnerIDs are the assignee/requester references.
	OwnerIDs []string
	// Relocate marks an update that changes the owning department to MoveTo.
	// MoveTo may be empty, meaning the resource becomes shared.
	Relocate bool
	MoveTo   string
	// AssignRole is the role being given to a user resource, if any.
	AssignRole model.Role
	// SubjectRole is the current role of a user resource.
	SubjectRole model.Role
}

func (r Resource) OwnedBy(userID string) bool {
	return userID != "" && slices.Contains(r.OwnerIDs, userID)
}

type Decision struct {
	Allowed     bool
	Rule        Rule
	ViaGrant    bool
	Reason      string
	Obligations []string
}

// GrantChecker looks up additive access grants.
type GrantChecker interface {
	HasGrant(ctx context.Context, query model.GrantQuery) (bool, error)
}

// Observer receives every decision, for metrics.
type Observer interface {
	Decision(role model.Role, action Action, allowed bool)
}

type Engine struct {
	policy   Policy
	grants   GrantChecker
	observer Observer
}

type Option func(*Engine)

func WithPolicy(policy Policy) Option {
	return func(e *Engine) { e.policy = policy }
}

func WithObserver(observer Observer) Option {
	return func(e *Engine) { e.observer = observer }
}

// NewEngine builds an engine over the default policy. grants may be nil, in
// which case no exception grants exist.
func NewEngine(grants GrantChecker, opts ...Option) *Engine {
	engine := &Engine{policy: DefaultPolicy(), grants: grants}
	for _, opt := range opts {
		opt(engine)
	}
	return engine
}

// Authorize returns a nil error when the action is allowed. A denial is an
// error wrapping model.ErrForbidden; any other error comes from the grant
// lookup and means no decision could be made.
func (e *Engine) Authorize(ctx context.Context, user model.AuthenticatedUser, action Action, res Resource) (Decision, error) {
	decision, err := e.decide(ctx, user, action, res)
	if err != nil {
		return Decision{}, err
	}

	if e.observer != nil {
		e.observer.Decision(user.Role, action, decision.Allowed)
	}

	if !decision.Allowed {
		return decision, fmt.Errorf("%w: %s", model.ErrForbidden, decision.Reason)
	}
	return decision, nil
}

// Can is Authorize for list filtering: lookup failures count as denial.
func (e *Engine) Can(ctx context.Context, user model.AuthenticatedUser, action Action, res Resource) bool {
	_, err := e.Authorize(ctx, user, action, res)
	return err == nil
}

func (e *Engine) decide(ctx context.Context, user model.AuthenticatedUser, action Action, res Resource) (Decision, error) {
	if user.ID == "" || !user.Role.Valid() {
		return Decision{Rule: RuleDeny, Reason: "unknown identity"}, nil
	}

	if user.Role == model.RoleAdmin {
		decision := Decision{Allowed: true, Rule: RuleAllow}
		if res.Type == ResourceUser && (action == ActionUpdate || action == ActionDelete) {
			decision.Obligations = append(decision.Obligations, ObligationLastAdminGuard)
		}
		return decision, nil
	}

	if reason := guard(user, action, res); reason != "" {
		return Decision{Rule: RuleDeny, Reason: reason}, nil
	}

	rule := e.policy.Lookup(res.Type, user.Role, action)
	if rule.evaluate(user, res) {
		return Decision{Allowed: true, Rule: rule}, nil
	}

	granted, err := e.hasGrant(ctx, user, action, res)
	if err != nil {
		return Decision{}, err
	}
	if granted {
		return Decision{Allowed: true, Rule: rule, ViaGrant: true}, nil
	}

	return Decision{Rule: rule, Reason: fmt.Sprintf("%s denies %s on %s", rule, action, res.Type)}, nil
}

// guard holds the rules no grant can lift. Admins never reach it.
func guard(user model.AuthenticatedUser, action Action, res Resource) string {
	if res.SubjectRole == model.RoleAdmin && action != ActionRead {
		return "only admins can modify admin accounts"
	}

	if res.AssignRole != "" {
		switch {
		case user.Role == model.RoleManager && res.AssignRole == model.RoleAdmin:
			return "managers cannot assign the admin role"
		case user.Role != model.RoleManager:
			return "role assignment requires a manager or admin"
		}
	}

	if res.Relocate && res.MoveTo != res.DepartmentID {
		return "only admins can move resources between departments"
	}

	return ""
}

func (e *Engine) hasGrant(ctx context.Context, user model.AuthenticatedUser, action Action, res Resource) (bool, error) {
	if e.grants == nil {
		return false, nil
	}

	ok, err := e.grants.HasGrant(ctx, model.GrantQuery{
		UserID:       user.ID,
		ResourceType: res.Type,
		ResourceID:   res.ID,
		Permission:   action.Permission(),
		DepartmentID: res.DepartmentID,
	})
	if err != nil {
		return false, fmt.Errorf("check access grants: %w", err)
	}
	return ok, nil
}
