package repository

import (
	"cmp"
	"context"
	"fmt"
	"slices"
	"strings"
	"sync"
	"time"

	"go-org-access/internal/model"
)

// memoryState is shared by the memory repositories so that cross-table steps
// (rotation checks the owner) run under one lock.
type memoryState struct {
	mu          sync.Mutex
	users       map[string]model.User
	departments map[string]model.Department
	credentials map[string]model.RefreshCredential // keyed by token hash
	grants      map[string]model.AccessGrant
	activity    []model.ActivityEntry
}

// MemoryStore keeps everything in process. It backs STORE_BACKEND=memory and
// the service and integration tests.
type MemoryStore struct {
	Users       *MemoryUserRepository
	Departments *MemoryDepartmentRepository
	Tokens      *MemoryTokenRepository
	Grants      *MemoryGrantRepository
	Activity    *MemoryActivityRepository
}

func NewMemoryStore() *MemoryStore {
	state := &memoryState{
		users:       make(map[string]model.User),
		departments: make(map[string]model.Department),
		credentials: make(map[string]model.RefreshCredential),
		grants:      make(map[string]model.AccessGrant),
	}
	return &MemoryStore{
		Users:       &MemoryUserRepository{state},
		Departments: &MemoryDepartmentRepository{state},
		Tokens:      &MemoryTokenRepository{state},
		Grants:      &MemoryGrantRepository{state},
		Activity:    &MemoryActivityRepository{state},
	}
}

type MemoryUserRepository struct{ s *memoryState }

func (r *MemoryUserRepository) FindByID(_ context.Context, id string) (model.User, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	u, ok := r.s.users[id]
	if !ok {
		return model.User{}, fmt.Errorf("user %s: %w", id, model.ErrNotFound)
	}
	return u, nil
}

func (r *MemoryUserRepository) FindByEmail(_ context.Context, email string) (model.User, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	if u, ok := r.s.userByEmail(email); ok {
		return u, nil
	}
	return model.User{}, model.ErrNotFound
}

func (s *memoryState) userByEmail(email string) (model.User, bool) {
	email = strings.TrimSpace(email)
	for _, u := range s.users {
		if strings.EqualFold(u.Email, email) {
			return u, true
		}
	}
	return model.User{}, false
}

func (r *MemoryUserRepository) Create(_ context.Context, u model.User) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	if _, exists := r.s.userByEmail(u.Email); exists {
		return fmt.Errorf("email already registered: %w", model.ErrConflict)
	}
	if _, exists := r.s.users[u.ID]; exists {
		return fmt.Errorf("user %s: %w", u.ID, model.ErrConflict)
	}
	r.s.users[u.ID] = u
	return nil
}

func (r *MemoryUserRepository) Update(_ context.Context, u model.User) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	return r.update(u)
}

func (r *MemoryUserRepository) UpdateRetainingAdmin(_ context.Context, u model.User) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	remaining := 0
	for _, other := range r.s.users {
		if other.ID != u.ID && other.Role == model.RoleAdmin && other.Active {
			remaining++
		}
	}
	if u.Role == model.RoleAdmin && u.Active {
		remaining++
	}
	if remaining == 0 {
		return ErrLastAdmin
	}
	return r.update(u)
}

// update expects the state lock to be held.
func (r *MemoryUserRepository) update(u model.User) error {
	current, ok := r.s.users[u.ID]
	if !ok {
		return fmt.Errorf("user %s: %w", u.ID, model.ErrNotFound)
	}
	// email and created_at are immutable, as in the SQL UPDATE
	u.Email = current.Email
	u.CreatedAt = current.CreatedAt
	r.s.users[u.ID] = u
	return nil
}

func (r *MemoryUserRepository) List(_ context.Context, filter model.UserFilter) ([]model.User, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	users := make([]model.User, 0, len(r.s.users))
	for _, u := range r.s.users {
		if filter.DepartmentID != "" && u.DepartmentID != filter.DepartmentID {
			continue
		}
		if filter.Role != "" && u.Role != filter.Role {
			continue
		}
		if filter.ActiveOnly && !u.Active {
			continue
		}
		users = append(users, u)
	}
	slices.SortFunc(users, func(a, b model.User) int {
		return cmp.Compare(strings.ToLower(a.Email), strings.ToLower(b.Email))
	})
	return users, nil
}

func (r *MemoryUserRepository) Count(_ context.Context) (int, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	return len(r.s.users), nil
}

type MemoryDepartmentRepository struct{ s *memoryState }

func (r *MemoryDepartmentRepository) FindByID(_ context.Context, id string) (model.Department, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	d, ok := r.s.departments[id]
	if !ok {
		return model.Department{}, fmt.Errorf("department %s: %w", id, model.ErrNotFound)
	}
	return d, nil
}

func (r *MemoryDepartmentRepository) nameTaken(name string, exceptID string) bool {
	for _, d := range r.s.departments {
		if d.ID != exceptID && d.Name == name {
			return true
		}
	}
	return false
}

func (r *MemoryDepartmentRepository) Create(_ context.Context, d model.Department) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	if r.nameTaken(d.Name, "") {
		return fmt.Errorf("department name %q: %w", d.Name, model.ErrConflict)
	}
	r.s.departments[d.ID] = d
	return nil
}

func (r *MemoryDepartmentRepository) Update(_ context.Context, d model.Department) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	current, ok := r.s.departments[d.ID]
	if !ok {
		return fmt.Errorf("department %s: %w", d.ID, model.ErrNotFound)
	}
	if r.nameTaken(d.Name, d.ID) {
		return fmt.Errorf("department name %q: %w", d.Name, model.ErrConflict)
	}
	current.Name = d.Name
	current.Description = d.Description
	r.s.departments[d.ID] = current
	return nil
}

func (r *MemoryDepartmentRepository) List(_ context.Context) ([]model.Department, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	depts := make([]model.Department, 0, len(r.s.departments))
	for _, d := range r.s.departments {
		depts = append(depts, d)
	}
	slices.SortFunc(depts, func(a, b model.Department) int { return cmp.Compare(a.Name, b.Name) })
	return depts, nil
}

// MemoryTokenRepository is the in-process refresh ledger. Rotation holds the
// state lock across check, revoke and insert.
type MemoryTokenRepository struct{ s *memoryState }

func (r *MemoryTokenRepository) Insert(_ context.Context, c model.RefreshCredential) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	if _, exists := r.s.credentials[c.TokenHash]; exists {
		return fmt.Errorf("refresh credential hash: %w", model.ErrConflict)
	}
	r.s.credentials[c.TokenHash] = c
	return nil
}

func (r *MemoryTokenRepository) Rotate(_ context.Context, presentedHash string, now time.Time, next func(ownerID string) (model.RefreshCredential, error)) (model.RefreshCredential, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	current, ok := r.s.credentials[presentedHash]
	if !ok || !current.ValidAt(now) {
		return model.RefreshCredential{}, model.ErrInvalidToken
	}
	owner, ok := r.s.users[current.UserID]
	if !ok || !owner.Active {
		return model.RefreshCredential{}, model.ErrInvalidToken
	}

	replacement, err := next(current.UserID)
	if err != nil {
		return model.RefreshCredential{}, err
	}
	if _, exists := r.s.credentials[replacement.TokenHash]; exists {
		return model.RefreshCredential{}, fmt.Errorf("refresh credential hash: %w", model.ErrConflict)
	}

	current.Revoked = true
	r.s.credentials[presentedHash] = current
	r.s.credentials[replacement.TokenHash] = replacement
	return replacement, nil
}

func (r *MemoryTokenRepository) RevokeByHash(_ context.Context, hash string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	if c, ok := r.s.credentials[hash]; ok {
		c.Revoked = true
		r.s.credentials[hash] = c
	}
	return nil
}

func (r *MemoryTokenRepository) RevokeAllForUser(_ context.Context, userID string) (int64, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	var n int64
	for hash, c := range r.s.credentials {
		if c.UserID == userID && !c.Revoked {
			c.Revoked = true
			r.s.credentials[hash] = c
			n++
		}
	}
	return n, nil
}

// Lookup exposes a ledger row for tests and diagnostics.
func (r *MemoryTokenRepository) Lookup(hash string) (model.RefreshCredential, bool) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	c, ok := r.s.credentials[hash]
	return c, ok
}

type MemoryGrantRepository struct{ s *memoryState }

func (r *MemoryGrantRepository) Create(_ context.Context, g model.AccessGrant) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	if _, exists := r.s.grants[g.ID]; exists {
		return fmt.Errorf("access grant %s: %w", g.ID, model.ErrConflict)
	}
	r.s.grants[g.ID] = g
	return nil
}

func (r *MemoryGrantRepository) FindByID(_ context.Context, id string) (model.AccessGrant, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	g, ok := r.s.grants[id]
	if !ok {
		return model.AccessGrant{}, fmt.Errorf("access grant %s: %w", id, model.ErrNotFound)
	}
	return g, nil
}

func (r *MemoryGrantRepository) Delete(_ context.Context, id string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	if _, ok := r.s.grants[id]; !ok {
		return fmt.Errorf("access grant %s: %w", id, model.ErrNotFound)
	}
	delete(r.s.grants, id)
	return nil
}

func (r *MemoryGrantRepository) List(_ context.Context, filter model.GrantFilter) ([]model.AccessGrant, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	grants := make([]model.AccessGrant, 0)
	for _, g := range r.s.grants {
		if filter.UserID != "" && g.UserID != filter.UserID {
			continue
		}
		if filter.DepartmentID != "" && g.DepartmentID != filter.DepartmentID {
			continue
		}
		grants = append(grants, g)
	}
	slices.SortFunc(grants, func(a, b model.AccessGrant) int { return cmp.Compare(a.ID, b.ID) })
	return grants, nil
}

func (r *MemoryGrantRepository) HasGrant(_ context.Context, q model.GrantQuery) (bool, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	for _, g := range r.s.grants {
		if g.Satisfies(q) {
			return true, nil
		}
	}
	return false, nil
}

type MemoryActivityRepository struct{ s *memoryState }

func (r *MemoryActivityRepository) Append(_ context.Context, entry model.ActivityEntry) (int64, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	entry.ID = int64(len(r.s.activity) + 1)
	r.s.activity = append(r.s.activity, entry)
	return entry.ID, nil
}

func (r *MemoryActivityRepository) List(_ context.Context, query model.ActivityQuery) ([]model.ActivityEntry, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	limit := clampLimit(query.Limit)
	entries := make([]model.ActivityEntry, 0, limit)
	for i := len(r.s.activity) - 1; i >= 0 && len(entries) < limit; i-- {
		e := r.s.activity[i]
		if query.ActorID != "" && e.ActorID != query.ActorID {
			continue
		}
		if query.Action != "" && !strings.EqualFold(e.Action, query.Action) {
			continue
		}
		entries = append(entries, e)
	}
	return entries, nil
}
