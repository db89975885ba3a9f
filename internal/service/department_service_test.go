package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"go-org-access/internal/model"
)

func TestDepartmentsAdminOnlyMutations(t *testing.T) {
	f := newFixture(t)
	admin := f.addUser(t, "root", model.RoleAdmin, "").Identity()
	ctx := context.Background()

	finance, err := f.departments.Create(ctx, admin, model.CreateDepartmentRequest{Name: " Finance ", Description: "money"})
	require.NoError(t, err)
	require.Equal(t, "Finance", finance.Name)

	_, err = f.departments.Create(ctx, admin, model.CreateDepartmentRequest{Name: "Finance"})
	require.ErrorIs(t, err, model.ErrConflict)

	_, err = f.departments.Create(ctx, admin, model.CreateDepartmentRequest{Name: "  "})
	require.ErrorIs(t, err, model.ErrInvalidInput)

	manager := f.addUser(t, "mgr", model.RoleManager, finance.ID).Identity()
	_, err = f.departments.Create(ctx, manager, model.CreateDepartmentRequest{Name: "HR"})
	require.ErrorIs(t, err, model.ErrForbidden)
	_, err = f.departments.Update(ctx, manager, finance.ID, model.UpdateDepartmentRequest{Name: ptr("Mine")})
	require.ErrorIs(t, err, model.ErrForbidden)

	renamed, err := f.departments.Update(ctx, admin, finance.ID, model.UpdateDepartmentRequest{Name: ptr("Finance & Ops")})
	require.NoError(t, err)
	require.Equal(t, "Finance & Ops", renamed.Name)
	require.Equal(t, "money", renamed.Description)

	collaborator := f.addUser(t, "c", model.RoleCollaborator, "").Identity()
	list, err := f.departments.List(ctx, collaborator)
	require.NoError(t, err)
	require.Len(t, list, 1)
}
