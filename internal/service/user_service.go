package service

import (
	"context"
	"errors"
	"fmt"
	"net/mail"
	"slices"
	"strings"
	"time"

	"github.com/google/uuid"

	"go-org-access/internal/authz"
	"go-org-access/internal/event"
	"go-org-access/internal/model"
)

// Authorizer is the authorization engine as seen by the services.
type Authorizer interface {
	Authorize(ctx context.Context, user model.AuthenticatedUser, action authz.Action, res authz.Resource) (authz.Decision, error)
	Can(ctx context.Context, user model.AuthenticatedUser, action authz.Action, res authz.Resource) bool
}

// SessionRevoker ends the refresh sessions of a user.
type SessionRevoker interface {
	RevokeAllForUser(ctx context.Context, actorID string, userID string) error
}

type UserService struct {
	users       UserStore
	departments DepartmentStore
	hasher      PasswordHasher
	authz       Authorizer
	sessions    SessionRevoker
	bus         event.Bus
	now         func() time.Time
}

func NewUserService(users UserStore, departments DepartmentStore, hasher PasswordHasher, authorizer Authorizer, sessions SessionRevoker, bus event.Bus) *UserService {
	return &UserService{
		users:       users,
		departments: departments,
		hasher:      hasher,
		authz:       authorizer,
		sessions:    sessions,
		bus:         bus,
		now:         func() time.Time { return time.Now().UTC() },
	}
}

func userResource(u model.User) authz.Resource {
	return authz.Resource{
		Type:         authz.ResourceUser,
		ID:           u.ID,
		DepartmentID: u.DepartmentID,
		OwnerIDs:     []string{u.ID},
		SubjectRole:  u.Role,
	}
}

func invalid(format string, args ...any) error {
	return fmt.Errorf("%w: %s", model.ErrInvalidInput, fmt.Sprintf(format, args...))
}

func normalizeEmail(raw string) (string, error) {
	email := strings.ToLower(strings.TrimSpace(raw))
	addr, err := mail.ParseAddress(email)
	if err != nil || addr.Address != email {
		return "", invalid("email is not valid")
	}
	return email, nil
}

func parseRole(raw string, fallback model.Role) (model.Role, error) {
	if strings.TrimSpace(raw) == "" {
		return fallback, nil
	}
	role, ok := model.ParseRole(raw)
	if !ok {
		return "", invalid("unknown role %q", raw)
	}
	return role, nil
}

func (s *UserService) ensureDepartment(ctx context.Context, id string) error {
	if id == "" {
		return nil
	}
	if _, err := s.departments.FindByID(ctx, id); err != nil {
		if errors.Is(err, model.ErrNotFound) {
			return invalid("unknown department %q", id)
		}
		return err
	}
	return nil
}

func (s *UserService) Create(ctx context.Context, actor model.AuthenticatedUser, req model.CreateUserRequest) (model.User, error) {
	email, err := normalizeEmail(req.Email)
	if err != nil {
		return model.User{}, err
	}
	fullName := strings.TrimSpace(req.FullName)
	if fullName == "" {
		return model.User{}, invalid("full name is required")
	}
	role, err := parseRole(req.Role, model.RoleStaff)
	if err != nil {
		return model.User{}, err
	}
	department := strings.TrimSpace(req.DepartmentID)

	if _, err := s.authz.Authorize(ctx, actor, authz.ActionCreate, authz.Resource{
		Type:         authz.ResourceUser,
		DepartmentID: department,
		AssignRole:   role,
	}); err != nil {
		return model.User{}, err
	}

	if err := s.hasher.Validate(req.Password); err != nil {
		return model.User{}, err
	}
	if err := s.ensureDepartment(ctx, department); err != nil {
		return model.User{}, err
	}

	hash, err := s.hasher.Hash(ctx, req.Password)
	if err != nil {
		return model.User{}, err
	}

	now := s.now()
	user := model.User{
		ID:           uuid.NewString(),
		FullName:     fullName,
		Email:        email,
		PasswordHash: hash,
		Role:         role,
		DepartmentID: department,
		Active:       true,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := s.users.Create(ctx, user); err != nil {
		return model.User{}, err
	}

	publish(s.bus, event.Event{
		Type:      event.TypeUserCreated,
		ActorID:   actor.ID,
		SubjectID: user.ID,
		Detail:    fmt.Sprintf("role=%s department=%s", user.Role, user.DepartmentID),
	})
	return user, nil
}

func (s *UserService) Get(ctx context.Context, actor model.AuthenticatedUser, id string) (model.User, error) {
	user, err := s.users.FindByID(ctx, id)
	if err != nil {
		return model.User{}, err
	}
	if _, err := s.authz.Authorize(ctx, actor, authz.ActionRead, userResource(user)); err != nil {
		return model.User{}, err
	}
	return user, nil
}

// List returns the users actor may read. Rows the engine denies are omitted
// rather than failing the whole listing.
func (s *UserService) List(ctx context.Context, actor model.AuthenticatedUser, filter model.UserFilter) ([]model.User, error) {
	users, err := s.users.List(ctx, filter)
	if err != nil {
		return nil, err
	}

	visible := make([]model.User, 0, len(users))
	for _, u := range users {
		if s.authz.Can(ctx, actor, authz.ActionRead, userResource(u)) {
			visible = append(visible, u)
		}
	}
	return visible, nil
}

// Update applies a partial change. Users may change their own name and
// password without an engine decision; everything else goes through it.
func (s *UserService) Update(ctx context.Context, actor model.AuthenticatedUser, id string, req model.UpdateUserRequest) (model.User, error) {
	target, err := s.users.FindByID(ctx, id)
	if err != nil {
		return model.User{}, err
	}

	next := target
	res := userResource(target)
	selfService := actor.ID == target.ID

	if req.FullName != nil {
		name := strings.TrimSpace(*req.FullName)
		if name == "" {
			return model.User{}, invalid("full name is required")
		}
		next.FullName = name
	}
	if req.Role != nil {
		role, err := parseRole(*req.Role, "")
		if err != nil || role == "" {
			return model.User{}, invalid("unknown role %q", *req.Role)
		}
		if role != target.Role {
			next.Role = role
			res.AssignRole = role
			selfService = false
		}
	}
	if req.DepartmentID != nil {
		department := strings.TrimSpace(*req.DepartmentID)
		if department != target.DepartmentID {
			next.DepartmentID = department
			res.Relocate = true
			res.MoveTo = department
			selfService = false
		}
	}
	if req.Active != nil && *req.Active != target.Active {
		next.Active = *req.Active
		selfService = false
	}

	action := authz.ActionUpdate
	if target.Active && !next.Active {
		action = authz.ActionDelete
	}

	guardAdmin := false
	if !selfService {
		decision, err := s.authz.Authorize(ctx, actor, action, res)
		if err != nil {
			return model.User{}, err
		}
		guardAdmin = slices.Contains(decision.Obligations, authz.ObligationLastAdminGuard) && removesAdmin(target, next)
	}

	passwordChanged := false
	if req.Password != nil {
		if err := s.hasher.Validate(*req.Password); err != nil {
			return model.User{}, err
		}
		hash, err := s.hasher.Hash(ctx, *req.Password)
		if err != nil {
			return model.User{}, err
		}
		next.PasswordHash = hash
		passwordChanged = true
	}
	if res.Relocate {
		if err := s.ensureDepartment(ctx, next.DepartmentID); err != nil {
			return model.User{}, err
		}
	}

	next.UpdatedAt = s.now()
	if guardAdmin {
		err = s.users.UpdateRetainingAdmin(ctx, next)
	} else {
		err = s.users.Update(ctx, next)
	}
	if err != nil {
		return model.User{}, err
	}

	deactivated := target.Active && !next.Active
	if (passwordChanged || deactivated) && s.sessions != nil {
		if err := s.sessions.RevokeAllForUser(ctx, actor.ID, target.ID); err != nil {
			return model.User{}, err
		}
	}

	eventType := event.TypeUserUpdated
	if deactivated {
		eventType = event.TypeUserDeactivated
	}
	publish(s.bus, event.Event{
		Type:      eventType,
		ActorID:   actor.ID,
		SubjectID: target.ID,
		Detail:    fmt.Sprintf("role=%s department=%s active=%t password_changed=%t", next.Role, next.DepartmentID, next.Active, passwordChanged),
	})
	return next, nil
}

func (s *UserService) Deactivate(ctx context.Context, actor model.AuthenticatedUser, id string) (model.User, error) {
	inactive := false
	return s.Update(ctx, actor, id, model.UpdateUserRequest{Active: &inactive})
}

// removesAdmin reports whether the change takes an active admin out of that
// role.
func removesAdmin(before model.User, after model.User) bool {
	wasAdmin := before.Role == model.RoleAdmin && before.Active
	stillAdmin := after.Role == model.RoleAdmin && after.Active
	return wasAdmin && !stillAdmin
}

// BootstrapAdmin creates the first admin when the user table is empty. It
// reports whether an account was created.
func (s *UserService) BootstrapAdmin(ctx context.Context, email string, password string) (bool, error) {
	if password == "" {
		return false, nil
	}

	count, err := s.users.Count(ctx)
	if err != nil {
		return false, err
	}
	if count > 0 {
		return false, nil
	}

	email, err = normalizeEmail(email)
	if err != nil {
		return false, err
	}
	if err := s.hasher.Validate(password); err != nil {
		return false, err
	}
	hash, err := s.hasher.Hash(ctx, password)
	if err != nil {
		return false, err
	}

	now := s.now()
	admin := model.User{
		ID:           uuid.NewString(),
		FullName:     "Administrator",
		Email:        email,
		PasswordHash: hash,
		Role:         model.RoleAdmin,
		Active:       true,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := s.users.Create(ctx, admin); err != nil {
		return false, err
	}

	publish(s.bus, event.Event{Type: event.TypeUserCreated, SubjectID: admin.ID, Detail: "role=admin bootstrap=true"})
	return true, nil
}
