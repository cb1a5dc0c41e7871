package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"time"

	"hisaab/internal/auth"
	"hisaab/internal/backend"
	"hisaab/internal/cli"
	"hisaab/internal/guard"
	apphttp "hisaab/internal/http"
	"hisaab/internal/log"
	"hisaab/internal/services"
)

func main() {
	cli.LoadEnvFile()
	logger := cli.SetupLogger(log.ComponentApp)
	cfg := cli.LoadAndValidateConfig(logger)

	backendCfg, err := backend.FromAppConfig(cfg)
	if err != nil {
		logger.Error("Invalid backend configuration", "error", err)
		os.Exit(1)
	}
	res, err := backend.NewFactory(logger).CreateBackend(context.Background(), backendCfg)
	if err != nil {
		logger.Error("Failed to initialize backend", "error", err, "backend", cfg.DataBackend)
		os.Exit(1)
	}

	g := guard.New(guard.NewBcryptHasher(cfg.BcryptCost))
	issuer := auth.NewIssuer(cfg.JWTSecret, cfg.TokenTTL)
	dashboards := services.NewDashboardService(res.Store, cfg.DashboardCacheTTL)

	srv := apphttp.NewServer(":"+cfg.Port, apphttp.Deps{
		Hisaabs:            services.NewHisaabService(res.Store, g, res.Publisher(), dashboards, logger.WithComponent(log.ComponentHisaab)),
		Dashboards:         dashboards,
		Rooms:              services.NewRoomService(res.Store, g, logger),
		Users:              services.NewUserService(res.Store, g, issuer),
		Issuer:             issuer,
		Store:              res.Store,
		Logger:             logger,
		CORSOrigin:         cfg.CORSOrigin,
		CookieSecure:       cfg.CookieSecure,
		RateLimitPerMinute: cfg.RateLimitPerMinute,
	})

	ctx, done := cli.GracefulShutdown(logger, 30*time.Second, func(ctx context.Context) {
		if err := srv.Shutdown(ctx); err != nil {
			logger.Error("Server shutdown error", "error", err)
		}
		if res.Cleanup != nil {
			if err := res.Cleanup(); err != nil {
				logger.Error("Backend cleanup error", "error", err)
			}
		}
	})

	logger.Info("Starting hisaab server",
		"port", cfg.Port,
		"backend", cfg.DataBackend,
		"events_enabled", res.Events != nil)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error("Server error", "error", err, "port", cfg.Port)
		os.Exit(1)
	}

	cli.WaitForShutdown(ctx, done)
	logger.Info("Server stopped gracefully")
}
