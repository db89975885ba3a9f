package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"go-org-access/internal/authz"
	"go-org-access/internal/event"
	"go-org-access/internal/model"
)

type DepartmentService struct {
	departments DepartmentStore
	authz       Authorizer
	bus         event.Bus
	now         func() time.Time
}

func NewDepartmentService(departments DepartmentStore, authorizer Authorizer, bus event.Bus) *DepartmentService {
	return &DepartmentService{
		departments: departments,
		authz:       authorizer,
		bus:         bus,
		now:         func() time.Time { return time.Now().UTC() },
	}
}

func departmentResource(id string) authz.Resource {
	return authz.Resource{Type: authz.ResourceDepartment, ID: id, DepartmentID: id}
}

func (s *DepartmentService) Create(ctx context.Context, actor model.AuthenticatedUser, req model.CreateDepartmentRequest) (model.Department, error) {
	name := strings.TrimSpace(req.Name)
	if name == "" {
		return model.Department{}, invalid("department name is required")
	}
	if _, err := s.authz.Authorize(ctx, actor, authz.ActionCreate, authz.Resource{Type: authz.ResourceDepartment}); err != nil {
		return model.Department{}, err
	}

	dept := model.Department{
		ID:          uuid.NewString(),
		Name:        name,
		Description: strings.TrimSpace(req.Description),
		CreatedAt:   s.now(),
	}
	if err := s.departments.Create(ctx, dept); err != nil {
		return model.Department{}, err
	}

	publish(s.bus, event.Event{Type: event.TypeDepartmentCreated, ActorID: actor.ID, SubjectID: dept.ID})
	return dept, nil
}

func (s *DepartmentService) Update(ctx context.Context, actor model.AuthenticatedUser, id string, req model.UpdateDepartmentRequest) (model.Department, error) {
	dept, err := s.departments.FindByID(ctx, id)
	if err != nil {
		return model.Department{}, err
	}
	if _, err := s.authz.Authorize(ctx, actor, authz.ActionUpdate, departmentResource(dept.ID)); err != nil {
		return model.Department{}, err
	}

	if req.Name != nil {
		name := strings.TrimSpace(*req.Name)
		if name == "" {
			return model.Department{}, invalid("department name is required")
		}
		dept.Name = name
	}
	if req.Description != nil {
		dept.Description = strings.TrimSpace(*req.Description)
	}

	if err := s.departments.Update(ctx, dept); err != nil {
		return model.Department{}, err
	}

	publish(s.bus, event.Event{Type: event.TypeDepartmentUpdated, ActorID: actor.ID, SubjectID: dept.ID, Detail: fmt.Sprintf("name=%s", dept.Name)})
	return dept, nil
}

func (s *DepartmentService) List(ctx context.Context, actor model.AuthenticatedUser) ([]model.Department, error) {
	depts, err := s.departments.List(ctx)
	if err != nil {
		return nil, err
	}

	visible := make([]model.Department, 0, len(depts))
	for _, d := range depts {
		if s.authz.Can(ctx, actor, authz.ActionRead, departmentResource(d.ID)) {
			visible = append(visible, d)
		}
	}
	return visible, nil
}
