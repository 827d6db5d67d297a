package cmd

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/frahmantamala/audit-management/internal"
	"github.com/frahmantamala/audit-management/internal/audit"
	auditpg "github.com/frahmantamala/audit-management/internal/audit/postgres"
	"github.com/frahmantamala/audit-management/internal/auth"
	authpg "github.com/frahmantamala/audit-management/internal/auth/postgres"
	"github.com/frahmantamala/audit-management/internal/core/events"
	"github.com/frahmantamala/audit-management/internal/department"
	departmentpg "github.com/frahmantamala/audit-management/internal/department/postgres"
	"github.com/frahmantamala/audit-management/internal/discovery"
	discoverypg "github.com/frahmantamala/audit-management/internal/discovery/postgres"
	"github.com/frahmantamala/audit-management/internal/notification"
	notificationpg "github.com/frahmantamala/audit-management/internal/notification/postgres"
	notificationredis "github.com/frahmantamala/audit-management/internal/notification/redis"
	"github.com/frahmantamala/audit-management/internal/notification/webhook"
	"github.com/frahmantamala/audit-management/internal/permission"
	permissionpg "github.com/frahmantamala/audit-management/internal/permission/postgres"
	"github.com/frahmantamala/audit-management/internal/user"
	userpg "github.com/frahmantamala/audit-management/internal/user/postgres"
	"github.com/frahmantamala/audit-management/internal/workflow"
	"github.com/frahmantamala/audit-management/pkg/logger"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/jmoiron/sqlx"
	goredis "github.com/redis/go-redis/v9"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

// Dependencies is the object graph shared by the server and the CLI commands.
type Dependencies struct {
	Config *internal.Config
	Logger *slog.Logger
	DB     *sqlx.DB
	Gorm   *gorm.DB
	Redis  *goredis.Client

	Permissions   *permission.Service
	Resolver      *permission.Resolver
	Finder        *discovery.Finder
	Departments   *department.Service
	Notifications *notification.Service
	Workflow      *workflow.Router
	Metrics       *workflow.Metrics
	Bus           *events.EventBus
	Audit         *audit.Service
	Auth          *auth.Service
	Users         *user.Service
}

func initializeDependencies(ctx context.Context) (*Dependencies, error) {
	cfg, err := loadConfig(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	logger.InitWithLevel(cfg.Env, cfg.Observability.Logging.Level)
	lg := logger.L()

	db, err := initDB(cfg.Database)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}

	gdb, err := initGorm(db)
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to initialize gorm: %w", err)
	}

	deps := &Dependencies{Config: cfg, Logger: lg, DB: db, Gorm: gdb}

	var channels notification.MultiDispatcher
	if cfg.Redis.Enabled {
		client, err := notificationredis.NewClient(ctx, cfg.Redis)
		if err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("failed to connect redis: %w", err)
		}
		deps.Redis = client
		channels = append(channels, notificationredis.NewDispatcher(client, cfg.Redis.ChannelPrefix))
	} else {
		lg.Info("redis disabled, real-time dispatch is a no-op")
	}
	if hook := cfg.Notification.Webhook; hook.URL != "" {
		channels = append(channels, webhook.NewDispatcher(webhook.Config{
			URL:     hook.URL,
			Secret:  hook.Secret,
			Timeout: hook.Timeout,
			Retries: hook.Retries,
			Backoff: hook.Backoff,
		}, lg))
	}
	var dispatcher notification.Dispatcher = notification.NopDispatcher{}
	if len(channels) > 0 {
		dispatcher = channels
	}

	store := permissionpg.NewStore(gdb)
	deps.Resolver = permission.NewResolver(store, lg,
		permission.WithCatalogCache(cfg.Permission.CatalogCacheSize, cfg.Permission.CatalogCacheTTL))
	deps.Permissions = permission.NewService(store, deps.Resolver, lg)

	deps.Finder = discovery.NewFinder(discoverypg.NewMemberRepository(gdb), deps.Resolver, lg,
		discovery.Options{ConsultOverrides: cfg.Discovery.ConsultOverrides})

	deps.Departments = department.NewService(departmentpg.NewDepartmentRepository(gdb), lg)

	deps.Notifications = notification.NewService(
		notificationpg.NewNotificationRepository(gdb),
		notificationpg.NewNotificationQueries(db),
		lg,
	)

	deps.Metrics = workflow.NewMetrics(nil)
	deps.Workflow = workflow.NewRouter(deps.Finder, deps.Notifications, dispatcher, deps.Metrics, lg, workflow.Options{
		Concurrency:     cfg.Notification.FanoutConcurrency,
		DispatchTimeout: cfg.Notification.DispatchTimeout,
		LinkBaseURL:     cfg.Notification.LinkBaseURL,
	})

	deps.Bus = events.NewEventBus(lg)
	workflow.NewEventHandler(deps.Workflow, lg).RegisterHandlers(deps.Bus)

	deps.Audit = audit.NewService(auditpg.NewAuditRepository(gdb), deps.Resolver, deps.Workflow, lg)

	tokens := auth.NewJWTTokenGenerator(cfg.Security.JWTSecret, cfg.Security.JWTIssuer, cfg.Security.AccessTokenDuration)
	deps.Auth = auth.NewService(authpg.NewRepository(gdb), deps.Permissions, tokens, lg)
	deps.Users = user.NewService(userpg.NewUserRepository(gdb), deps.Permissions, deps.Permissions, deps.Resolver, lg)

	return deps, nil
}

func (d *Dependencies) Close() {
	if d.Redis != nil {
		if err := d.Redis.Close(); err != nil {
			d.Logger.Error("redis close error", "error", err)
		}
	}
	if err := d.DB.Close(); err != nil {
		d.Logger.Error("database close error", "error", err)
	}
}

func initDB(cfg internal.DatabaseConfig) (*sqlx.DB, error) {
	const driver = "pgx"

	dbConn, err := sqlx.Connect(driver, cfg.Source)
	if err != nil {
		return nil, fmt.Errorf("failed to open db connection: %w", err)
	}

	dbConn.SetMaxIdleConns(cfg.MaxIdleConns)
	dbConn.SetMaxOpenConns(cfg.MaxOpenConns)
	dbConn.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	dbConn.SetConnMaxIdleTime(cfg.ConnMaxIdleTime)

	return dbConn, nil
}

// initGorm shares the sqlx connection pool so both APIs see one set of limits.
func initGorm(db *sqlx.DB) (*gorm.DB, error) {
	return gorm.Open(postgres.New(postgres.Config{Conn: db.DB}), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Warn),
	})
}
