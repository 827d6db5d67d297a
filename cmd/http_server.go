package cmd

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/frahmantamala/audit-management/internal/audit"
	"github.com/frahmantamala/audit-management/internal/auth"
	"github.com/frahmantamala/audit-management/internal/discovery"
	"github.com/frahmantamala/audit-management/internal/notification"
	"github.com/frahmantamala/audit-management/internal/permission"
	"github.com/frahmantamala/audit-management/internal/transport/rest"
	"github.com/frahmantamala/audit-management/internal/transport/swagger"
	"github.com/frahmantamala/audit-management/internal/user"

	"github.com/go-chi/chi"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
)

var httpServerCmd = &cobra.Command{
	Use:   "server",
	Short: "Start HTTP server",
	Long:  `Start the HTTP server to handle API requests`,
	Run: func(cmd *cobra.Command, args []string) {
		startHTTPServer()
	},
}

func startHTTPServer() {
	ctx := context.Background()
	deps, err := initializeDependencies(ctx)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize dependencies: %v\n", err)
		os.Exit(1)
	}
	defer deps.Close()

	cfg := deps.Config
	lg := deps.Logger

	if cfg.Server.OpenAPIPath != "" {
		if _, err := swagger.LoadSpec(cfg.Server.OpenAPIPath); err != nil {
			lg.Error("openapi document rejected", "error", err)
			os.Exit(1)
		}
	}

	router := chi.NewRouter()
	rest.RegisterAllRoutes(router, buildHandlers(deps), routeOptions(deps), lg)

	addr := fmt.Sprintf(":%d", cfg.Server.Port)
	server := &http.Server{
		Addr:              addr,
		Handler:           router,
		ReadHeaderTimeout: cfg.Server.ReadHeaderTimeout,
		ReadTimeout:       cfg.Server.ReadTimeout,
		WriteTimeout:      cfg.Server.WriteTimeout,
		IdleTimeout:       cfg.Server.IdleTimeout,
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	serverErrChan := make(chan error, 1)
	go func() {
		lg.Info("starting HTTP server", "address", addr)
		serverErrChan <- server.ListenAndServe()
	}()

	select {
	case sig := <-sigChan:
		lg.Info("received signal, shutting down", "signal", sig)
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			lg.Error("server shutdown error", "error", err)
		}
	case err := <-serverErrChan:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			lg.Error("server failed to start", "error", err)
			deps.Close()
			os.Exit(1)
		}
	}

	lg.Info("server stopped")
}

func buildHandlers(deps *Dependencies) rest.Handlers {
	extra := map[string]rest.Pinger{}
	if deps.Redis != nil {
		extra["redis"] = rest.PingFunc(func(ctx context.Context) error {
			return deps.Redis.Ping(ctx).Err()
		})
	}

	principal := permission.PrincipalFunc(auth.PrincipalFromContext)

	return rest.Handlers{
		Health:       rest.NewHealthHandler(deps.DB.DB, extra),
		Auth:         auth.NewHandler(deps.Auth),
		RBAC:         auth.NewRBACAuthorization(deps.Resolver, deps.Logger),
		Notification: notification.NewHandler(deps.Notifications),
		Audit:        audit.NewHandler(deps.Audit),
		Permission:   permission.NewHandler(deps.Permissions, deps.Resolver, principal),
		Discovery:    discovery.NewHandler(deps.Finder, principal),
		User:         user.NewHandler(deps.Users),
	}
}

func routeOptions(deps *Dependencies) rest.Options {
	cfg := deps.Config
	opts := rest.Options{
		AllowedOrigins: cfg.Server.AllowedOrigins,
		OpenAPIPath:    cfg.Server.OpenAPIPath,
		RateLimit:      cfg.Server.RateLimit,
	}
	if cfg.Observability.Metrics.Enabled {
		opts.MetricsPath = cfg.Observability.Metrics.Path
		opts.MetricsHandler = promhttp.Handler()
	}
	return opts
}
