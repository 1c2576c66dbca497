// server runs the filevault auth HTTP API.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"filevault/backend/internal/audit"
	auditrepo "filevault/backend/internal/audit/repository"
	"filevault/backend/internal/config"
	"filevault/backend/internal/db"
	healthhandler "filevault/backend/internal/health/handler"
	"filevault/backend/internal/httpx"
	identityhandler "filevault/backend/internal/identity/handler"
	identityservice "filevault/backend/internal/identity/service"
	"filevault/backend/internal/metrics"
	"filevault/backend/internal/security"
	"filevault/backend/internal/server"
	"filevault/backend/internal/server/middleware"
	sessionrepo "filevault/backend/internal/session/repository"
	sessionsvc "filevault/backend/internal/session/service"
	telemetryotel "filevault/backend/internal/telemetry/otel"
	userhandler "filevault/backend/internal/user/handler"
	userrepo "filevault/backend/internal/user/repository"
)

const serviceName = "filevault-auth"

func main() {
	if err := run(); err != nil {
		slog.Error("server.exit", slog.Any("err", err))
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("config: %w", err)
	}
	slog.SetDefault(server.NewLogger(os.Stdout, cfg.LogLevel))
	if err := cfg.ValidateAuth(); err != nil {
		return fmt.Errorf("config: %w", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	providers, err := telemetryotel.NewProviders(ctx, cfg.OTLPEndpoint, serviceName, cfg.OTLPInsecure)
	if err != nil {
		return fmt.Errorf("telemetry: %w", err)
	}
	providers.SetGlobal()
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = providers.Shutdown(shutdownCtx)
	}()

	pool, err := db.Open(ctx, db.PoolConfig{
		DSN:        cfg.DatabaseURL,
		MaxConns:   cfg.DBMaxConns,
		Retries:    cfg.DBConnectRetries,
		RetryDelay: cfg.ConnectDelay(),
	})
	if err != nil {
		return fmt.Errorf("db: %w", err)
	}
	defer pool.Close()

	accessSecret, err := security.LoadSecret(cfg.JWTSecret)
	if err != nil {
		return fmt.Errorf("JWT_SECRET: %w", err)
	}
	refreshSecret, err := security.LoadSecret(cfg.JWTRefreshSecret)
	if err != nil {
		return fmt.Errorf("JWT_REFRESH_SECRET: %w", err)
	}
	codec, err := security.NewTokenCodec(accessSecret, refreshSecret, cfg.JWTIssuer, cfg.JWTAudience)
	if err != nil {
		return fmt.Errorf("token codec: %w", err)
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	collector := metrics.NewCollector(reg)

	sessions := sessionsvc.NewManager(sessionrepo.NewPostgresRepository(pool), codec, cfg.AccessTTL(), cfg.RefreshTTL(),
		sessionsvc.WithMetrics(collector))
	auditLogger := audit.NewLogger(auditrepo.NewPostgresRepository(pool), middleware.ClientIPFromContext).
		WithMirror(telemetryotel.NewAuditMirror(providers.LoggerProvider))
	authSvc := identityservice.NewAuthService(userrepo.NewPostgresRepository(pool), sessions,
		security.NewHasher(cfg.BcryptCost), auditLogger, collector)

	cookies := httpx.CookieConfig{
		Secure:   cfg.SecureCookies(),
		SameSite: cfg.SameSite(),
		Domain:   cfg.CookieDomain,
	}
	deps := server.Deps{
		Auth:        identityhandler.NewAuthHandler(authSvc, cookies, sessions.AccessTTL(), sessions.RefreshTTL()),
		Users:       userhandler.NewUserHandler(authSvc),
		Health:      healthhandler.NewServer(pool),
		Gate:        sessions.Gate(),
		Logger:      slog.Default(),
		HTTPMetrics: collector,
		CORSOrigins: cfg.CORSOrigins(),
	}
	if cfg.MetricsEnabled {
		deps.MetricsHandler = metrics.Handler(reg)
	}

	slog.Info("server.starting",
		slog.String("addr", cfg.HTTPAddr),
		slog.String("env", cfg.Env),
		slog.Duration("access_ttl", sessions.AccessTTL()),
		slog.Duration("refresh_ttl", sessions.RefreshTTL()),
	)
	return server.ListenAndServe(ctx, server.New(cfg.HTTPAddr, server.NewRouter(deps)))
}
