package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go-org-access/internal/authz"
	"go-org-access/internal/config"
	"go-org-access/internal/credential"
	"go-org-access/internal/database"
	"go-org-access/internal/event"
	"go-org-access/internal/handler"
	"go-org-access/internal/metrics"
	"go-org-access/internal/middleware"
	"go-org-access/internal/repository"
	"go-org-access/internal/router"
	"go-org-access/internal/service"
	"go-org-access/internal/token"
	"go-org-access/internal/websocket"
)

type App struct {
	server       *http.Server
	handler      http.Handler
	cleanupFuncs []func()
}

// stores is the persistence selected by STORE_BACKEND.
type stores struct {
	users       service.UserStore
	departments service.DepartmentStore
	tokens      service.CredentialLedger
	grants      service.GrantStore
	activity    service.ActivityStore
	health      router.HealthFunc
	close       func()
}

func New() (*App, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	return NewWithConfig(context.Background(), cfg)
}

func NewWithConfig(ctx context.Context, cfg *config.Config) (*App, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	st, err := openStores(ctx, cfg)
	if err != nil {
		return nil, err
	}

	appMetrics := metrics.New()

	hasher := credential.NewStore(credential.Options{
		Cost:      cfg.BcryptCost,
		MinLength: cfg.PasswordMinLength,
		Workers:   cfg.HashWorkers,
		OnHash:    appMetrics.PasswordHash,
	})

	issuer, err := token.NewIssuer(token.Config{
		Secret:     cfg.SigningSecret,
		Algorithm:  cfg.SigningAlgorithm,
		AccessTTL:  cfg.AccessTTL,
		RefreshTTL: cfg.RefreshTTL,
	})
	if err != nil {
		st.close()
		return nil, fmt.Errorf("failed to initialize token issuer: %w", err)
	}

	bus := event.NewBus()
	engine := authz.NewEngine(st.grants, authz.WithObserver(appMetrics))
	ledger := service.NewRefreshLedger(issuer, st.tokens)

	authService := service.NewAuthService(service.AuthDeps{
		Users:   st.users,
		Hasher:  hasher,
		Issuer:  issuer,
		Ledger:  ledger,
		Bus:     bus,
		Metrics: appMetrics,
	})
	userService := service.NewUserService(st.users, st.departments, hasher, engine, authService, bus)
	departmentService := service.NewDepartmentService(st.departments, engine, bus)
	grantService := service.NewGrantService(st.grants, st.users, st.departments, engine, bus)
	activityService := service.NewActivityService(st.activity, engine)

	workerCtx, cancelWorkers := context.WithCancel(context.Background())

	events, unsubscribe := bus.Subscribe()
	activityDone := make(chan struct{})
	go activityService.Run(workerCtx, events, activityDone)

	hub := websocket.NewHub(bus)
	go hub.Run(workerCtx)

	created, err := userService.BootstrapAdmin(ctx, cfg.AdminEmail, cfg.AdminPassword)
	if err != nil {
		cancelWorkers()
		unsubscribe()
		st.close()
		return nil, fmt.Errorf("failed to bootstrap admin: %w", err)
	}
	if created {
		slog.Info("bootstrap admin created", "email", cfg.AdminEmail)
	}

	authMiddleware := middleware.NewAuthMiddleware(authService)
	appRouter := router.New(cfg, authMiddleware, router.Handlers{
		Auth:       handler.NewAuthHandler(authService),
		User:       handler.NewUserHandler(userService),
		Department: handler.NewDepartmentHandler(departmentService),
		Grant:      handler.NewGrantHandler(grantService),
		Activity:   handler.NewActivityHandler(activityService),
		Docs:       handler.NewDocsHandler(),

		ActivityStream: hub.ServeWS,
	}, appMetrics, st.health)

	server := &http.Server{
		Addr:              ":" + cfg.ServerPort,
		Handler:           appRouter,
		ReadHeaderTimeout: cfg.ServerReadHeaderTimeout,
		WriteTimeout:      cfg.ServerWriteTimeout,
		IdleTimeout:       cfg.ServerIdleTimeout,
	}

	return &App{
		server:  server,
		handler: appRouter,
		cleanupFuncs: []func(){
			func() {
				cancelWorkers()
				unsubscribe()
				<-activityDone
			},
			st.close,
		},
	}, nil
}

func openStores(ctx context.Context, cfg *config.Config) (stores, error) {
	if cfg.StoreBackend == config.BackendMemory {
		slog.Warn("using in-memory store; data is lost on restart")
		mem := repository.NewMemoryStore()
		return stores{
			users:       mem.Users,
			departments: mem.Departments,
			tokens:      mem.Tokens,
			grants:      mem.Grants,
			activity:    mem.Activity,
			close:       func() {},
		}, nil
	}

	slog.Info("connecting to PostgreSQL")
	db, err := database.New(ctx, cfg.DatabaseURL, cfg.DBMaxConns, cfg.DBMinConns)
	if err != nil {
		return stores{}, fmt.Errorf("failed to connect to database: %w", err)
	}

	if err := db.EnsureSchema(ctx); err != nil {
		db.Close()
		return stores{}, fmt.Errorf("failed to ensure database schema: %w", err)
	}
	slog.Info("database ready")

	return stores{
		users:       repository.NewUserRepository(db.SQL),
		departments: repository.NewDepartmentRepository(db.SQL),
		tokens:      repository.NewTokenRepository(db.SQL),
		grants:      repository.NewGrantRepository(db.SQL),
		activity:    repository.NewActivityRepository(db.SQL),
		health:      db.Health,
		close:       db.Close,
	}, nil
}

// Handler exposes the routed handler for in-process tests.
func (a *App) Handler() http.Handler {
	return a.handler
}

// Close releases workers and the store without touching the HTTP server.
func (a *App) Close() {
	for _, cleanup := range a.cleanupFuncs {
		cleanup()
	}
}

func (a *App) Run() error {
	go func() {
		slog.Info("server starting", "addr", a.server.Addr)
		if serveErr := a.server.ListenAndServe(); serveErr != nil && !errors.Is(serveErr, http.ErrServerClosed) {
			slog.Error("server failed", "error", serveErr)
			os.Exit(1)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := a.server.Shutdown(ctx); err != nil {
		a.Close()
		return fmt.Errorf("graceful shutdown failed: %w", err)
	}

	a.Close()
	slog.Info("server stopped")
	return nil
}
