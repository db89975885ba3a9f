package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go-org-access/internal/authz"
	"go-org-access/internal/event"
	"go-org-access/internal/ids"
	"go-org-access/internal/model"
)

var validPermissions = map[string]struct{}{
	model.PermissionView:   {},
	model.PermissionCreate: {},
	model.PermissionEdit:   {},
	model.PermissionDelete: {},
	model.PermissionManage: {},
}

// GrantService manages access grants. Grants only ever widen what the engine
// allows, so creating one is guarded like editing the grantee.
type GrantService struct {
	grants      GrantStore
	users       UserStore
	departments DepartmentStore
	authz       Authorizer
	bus         event.Bus
	now         func() time.Time
}

func NewGrantService(grants GrantStore, users UserStore, departments DepartmentStore, authorizer Authorizer, bus event.Bus) *GrantService {
	return &GrantService{
		grants:      grants,
		users:       users,
		departments: departments,
		authz:       authorizer,
		bus:         bus,
		now:         func() time.Time { return time.Now().UTC() },
	}
}

func grantResource(id string, departmentID string, ownerID string) authz.Resource {
	return authz.Resource{
		Type:         authz.ResourceAccessGrant,
		ID:           id,
		DepartmentID: departmentID,
		OwnerIDs:     []string{ownerID},
	}
}

func (s *GrantService) Create(ctx context.Context, actor model.AuthenticatedUser, req model.CreateGrantRequest) (model.AccessGrant, error) {
	resourceType := strings.TrimSpace(req.ResourceType)
	if resourceType == "" {
		return model.AccessGrant{}, invalid("resource type is required")
	}
	resourceID := strings.TrimSpace(req.ResourceID)
	if resourceID == "" {
		resourceID = model.GrantWildcard
	}
	permission := strings.ToLower(strings.TrimSpace(req.Permission))
	if _, ok := validPermissions[permission]; !ok {
		return model.AccessGrant{}, invalid("unknown permission %q", req.Permission)
	}
	department := strings.TrimSpace(req.DepartmentID)

	grantee, err := s.users.FindByID(ctx, strings.TrimSpace(req.UserID))
	if errors.Is(err, model.ErrNotFound) {
		return model.AccessGrant{}, invalid("unknown user %q", req.UserID)
	}
	if err != nil {
		return model.AccessGrant{}, err
	}

	// The actor must cover both the grantee and the scope the grant applies to.
	if _, err := s.authz.Authorize(ctx, actor, authz.ActionCreate, grantResource("", grantee.DepartmentID, grantee.ID)); err != nil {
		return model.AccessGrant{}, err
	}
	if department != grantee.DepartmentID {
		if _, err := s.authz.Authorize(ctx, actor, authz.ActionCreate, grantResource("", department, grantee.ID)); err != nil {
			return model.AccessGrant{}, err
		}
	}

	if department != "" {
		if _, err := s.departments.FindByID(ctx, department); err != nil {
			if errors.Is(err, model.ErrNotFound) {
				return model.AccessGrant{}, invalid("unknown department %q", department)
			}
			return model.AccessGrant{}, err
		}
	}

	now := s.now()
	grant := model.AccessGrant{
		ID:           ids.NewAt(now),
		UserID:       grantee.ID,
		ResourceType: resourceType,
		ResourceID:   resourceID,
		Permission:   permission,
		DepartmentID: department,
		CreatedAt:    now,
	}
	if err := s.grants.Create(ctx, grant); err != nil {
		return model.AccessGrant{}, err
	}

	publish(s.bus, event.Event{
		Type:      event.TypeGrantCreated,
		ActorID:   actor.ID,
		SubjectID: grantee.ID,
		Detail:    fmt.Sprintf("grant=%s %s:%s:%s department=%s", grant.ID, resourceType, resourceID, permission, department),
	})
	return grant, nil
}

func (s *GrantService) Revoke(ctx context.Context, actor model.AuthenticatedUser, id string) error {
	grant, err := s.grants.FindByID(ctx, id)
	if err != nil {
		return err
	}
	if _, err := s.authz.Authorize(ctx, actor, authz.ActionDelete, grantResource(grant.ID, grant.DepartmentID, grant.UserID)); err != nil {
		return err
	}
	if err := s.grants.Delete(ctx, id); err != nil {
		return err
	}

	publish(s.bus, event.Event{Type: event.TypeGrantRevoked, ActorID: actor.ID, SubjectID: grant.UserID, Detail: "grant=" + grant.ID})
	return nil
}

// List returns the grants actor may read: admins see all, managers their
// department's, everyone else their own.
func (s *GrantService) List(ctx context.Context, actor model.AuthenticatedUser, filter model.GrantFilter) ([]model.AccessGrant, error) {
	grants, err := s.grants.List(ctx, filter)
	if err != nil {
		return nil, err
	}

	visible := make([]model.AccessGrant, 0, len(grants))
	for _, g := range grants {
		if s.authz.Can(ctx, actor, authz.ActionRead, grantResource(g.ID, g.DepartmentID, g.UserID)) {
			visible = append(visible, g)
		}
	}
	return visible, nil
}
