package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"go-org-access/internal/authz"
	"go-org-access/internal/credential"
	"go-org-access/internal/event"
	"go-org-access/internal/model"
	"go-org-access/internal/repository"
	"go-org-access/internal/token"
)

var testNow = time.Date(2025, 12, 24, 9, 0, 0, 0, time.UTC)

const testPassword = "correct-horse"

type countingMetrics struct {
	mu          sync.Mutex
	loginOK     int
	loginFail   int
	refreshOK   int
	refreshFail int
}

func (m *countingMetrics) Login(ok bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if ok {
		m.loginOK++
	} else {
		m.loginFail++
	}
}

func (m *countingMetrics) Refresh(ok bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if ok {
		m.refreshOK++
	} else {
		m.refreshFail++
	}
}

type fixture struct {
	store       *repository.MemoryStore
	hasher      *credential.Store
	issuer      *token.Issuer
	ledger      *RefreshLedger
	engine      *authz.Engine
	bus         *event.InMemoryBus
	metrics     *countingMetrics
	auth        *AuthService
	users       *UserService
	departments *DepartmentService
	grants      *GrantService
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	issuer, err := token.NewIssuer(token.Config{
		Secret:     "fixture-secret",
		Algorithm:  "HS256",
		AccessTTL:  time.Hour,
		RefreshTTL: 7 * 24 * time.Hour,
	})
	require.NoError(t, err)

	f := &fixture{
		store:   repository.NewMemoryStore(),
		hasher:  credential.NewStore(credential.Options{Cost: bcrypt.MinCost, MinLength: 8, Workers: 4}),
		issuer:  issuer,
		bus:     event.NewBus(),
		metrics: &countingMetrics{},
	}
	f.ledger = NewRefreshLedger(issuer, f.store.Tokens)
	f.engine = authz.NewEngine(f.store.Grants)
	f.auth = NewAuthService(AuthDeps{
		Users:   f.store.Users,
		Hasher:  f.hasher,
		Issuer:  issuer,
		Ledger:  f.ledger,
		Bus:     f.bus,
		Metrics: f.metrics,
	})
	f.users = NewUserService(f.store.Users, f.store.Departments, f.hasher, f.engine, f.auth, f.bus)
	f.departments = NewDepartmentService(f.store.Departments, f.engine, f.bus)
	f.grants = NewGrantService(f.store.Grants, f.store.Users, f.store.Departments, f.engine, f.bus)
	return f
}

func (f *fixture) addDepartment(t *testing.T, id string) {
	t.Helper()
	require.NoError(t, f.store.Departments.Create(context.Background(), model.Department{ID: id, Name: id, CreatedAt: testNow}))
}

func (f *fixture) addUser(t *testing.T, id string, role model.Role, department string) model.User {
	t.Helper()

	hash, err := f.hasher.Hash(context.Background(), testPassword)
	require.NoError(t, err)

	user := model.User{
		ID:           id,
		FullName:     id,
		Email:        id + "@example.org",
		PasswordHash: hash,
		Role:         role,
		DepartmentID: department,
		Active:       true,
		CreatedAt:    testNow,
		UpdatedAt:    testNow,
	}
	require.NoError(t, f.store.Users.Create(context.Background(), user))
	return user
}
