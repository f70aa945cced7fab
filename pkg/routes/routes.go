package pkg

import (
	"context"
	"net"
	"net/http"

	"BranchLMS/internal/assignment"
	"BranchLMS/internal/auth"
	"BranchLMS/internal/bootstrap"
	"BranchLMS/internal/branchscope"
	"BranchLMS/internal/config"
	"BranchLMS/internal/dashboard"
	"BranchLMS/internal/hrsync"
	"BranchLMS/internal/integrity"
	"BranchLMS/internal/store"
	"BranchLMS/pkg/middleware"

	"github.com/casbin/casbin/v2"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

// Modules is the whole application graph.
var Modules = fx.Options(
	config.Module,
	bootstrap.Module,
	store.Module,
	ServiceModules,
	EchoModules,
)

// ServiceModules binds the repository to each consumer's store interface and
// provides the services.
var ServiceModules = fx.Module("services",
	fx.Provide(
		func(r *store.Repository) assignment.Store { return r },
		func(r *store.Repository) integrity.Store { return r },
		func(r *store.Repository) dashboard.Store { return r },
		func(r *store.Repository) hrsync.Store { return r },
		func(r *store.Repository) branchscope.AdminStore { return r },
	),
	fx.Provide(NewLocationTable),
	fx.Provide(branchscope.NewResolver),
	fx.Provide(
		func(r *branchscope.Resolver) dashboard.ScopeResolver { return r },
		func(r *branchscope.Resolver) assignment.ScopeResolver { return r },
		func(r *branchscope.Resolver) integrity.ScopeResolver { return r },
	),
	fx.Provide(assignment.NewService),
	fx.Provide(integrity.NewService),
	fx.Provide(dashboard.NewService),
	fx.Provide(hrsync.NewClient),
	fx.Provide(
		func(c *hrsync.Client) hrsync.Fetcher { return c },
		func(s *assignment.Service) hrsync.Assigner { return s },
	),
	fx.Provide(hrsync.NewSyncer),
	fx.Provide(hrsync.NewScheduler),
	fx.Invoke(func(s *hrsync.Scheduler, lc fx.Lifecycle) { s.StartScheduler(lc) }),
	fx.Invoke(CheckLocationTable),
)

var EchoModules = fx.Module("echo",
	fx.Provide(NewEchoServer),
	fx.Provide(auth.NewTokens),
	fx.Provide(middleware.NewEnforcer),
	fx.Provide(dashboard.NewHandler),
	fx.Provide(assignment.NewHandler),
	fx.Provide(integrity.NewHandler),
	fx.Provide(hrsync.NewHandler),
	fx.Invoke(RegisterRoutes))

// NewLocationTable loads the store-name table named by STORE_LOCATIONS_FILE.
func NewLocationTable(cfg *config.Config, log *zap.Logger) (*branchscope.Table, error) {
	table, err := branchscope.LoadTable(cfg.StoreLocationsFile)
	if err != nil {
		return nil, err
	}
	log.Info("store location table loaded",
		zap.String("file", cfg.StoreLocationsFile),
		zap.String("version", table.Version()),
		zap.Int("names", table.Len()))
	return table, nil
}

// CheckLocationTable warns about branches the store-name table cannot produce.
// It never blocks startup.
func CheckLocationTable(lc fx.Lifecycle, repo *store.Repository, table *branchscope.Table, log *zap.Logger) {
	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			branches, err := repo.FindBranches(ctx)
			if err != nil {
				log.Warn("branch list unavailable, location table not checked", zap.Error(err))
				return nil
			}
			if missing := table.MissingLocCodes(branches); len(missing) > 0 {
				log.Warn("branches without a store-name mapping",
					zap.Strings("locCodes", missing),
					zap.String("tableVersion", table.Version()))
			}
			return nil
		},
	})
}

func NewEchoServer(lc fx.Lifecycle, cfg *config.Config, log *zap.Logger) *echo.Echo {
	e := echo.New()
	e.HidePort = true
	middleware.SetupMiddleware(e, cfg, log)

	addr := net.JoinHostPort("", cfg.Port)
	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			log.Info("server listening", zap.String("addr", addr))
			go func() {
				if err := e.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
					log.Fatal("failed to start the server", zap.Error(err))
				}
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			log.Info("shutting down the server")
			return e.Shutdown(ctx)
		},
	})
	return e
}

func RegisterRoutes(
	e *echo.Echo,
	tokens *auth.Tokens,
	enf *casbin.Enforcer,
	log *zap.Logger,
	dashboardHandler *dashboard.Handler,
	assignmentHandler *assignment.Handler,
	integrityHandler *integrity.Handler,
	hrHandler *hrsync.Handler,
) {
	e.GET("/healthz", func(c echo.Context) error {
		return c.JSON(http.StatusOK, echo.Map{"status": "ok"})
	})

	protected := e.Group("/api")
	protected.Use(middleware.JWT(tokens), middleware.Authorize(enf, log))
	dashboardHandler.Register(protected)
	assignmentHandler.Register(protected)
	integrityHandler.Register(protected)
	hrHandler.Register(protected)
}
