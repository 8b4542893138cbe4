package cmd

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"

	"reward-engine/config"
	"reward-engine/handlers"
	"reward-engine/logger"
	"reward-engine/middleware"
	"reward-engine/utils"
	"reward-engine/workers"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API and background workers",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runServe(cmd)
	},
}

func identityHandlers(cfg *config.Config, log *logger.Logger) ([]fiber.Handler, error) {
	switch cfg.AuthMode {
	case config.AuthModeGateway:
		if cfg.ServiceToken == "" {
			return nil, fmt.Errorf("SERVICE_TOKEN is required in gateway auth mode")
		}
		return []fiber.Handler{
			middleware.GatewayAuthMiddleware(cfg.ServiceToken, log, "/health", "/internal/"),
			middleware.UserContextMiddleware(log),
		}, nil
	case config.AuthModeAuthService:
		if cfg.AuthServiceURL == "" {
			return nil, fmt.Errorf("AUTH_SERVICE_URL is required in authservice auth mode")
		}
		client := middleware.NewAuthServiceClient(cfg.AuthServiceURL, cfg.ServiceToken)
		return []fiber.Handler{middleware.AuthServiceMiddleware(client, log)}, nil
	case config.AuthModeJWT:
		if cfg.JWTSecret == "" {
			return nil, fmt.Errorf("JWT_SECRET is required in jwt auth mode")
		}
		return []fiber.Handler{middleware.JWTMiddleware(cfg.JWTSecret, log)}, nil
	}
	return nil, fmt.Errorf("unknown AUTH_MODE %q", cfg.AuthMode)
}

func runServe(cmd *cobra.Command) error {
	rt, err := setup(cmd)
	if err != nil {
		return err
	}
	defer rt.close()
	defer rt.log.Sync()
	cfg, log := rt.cfg, rt.log

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cal, err := rt.calendar()
	if err != nil {
		return err
	}
	engine, store := rt.engine(cal)

	identity, err := identityHandlers(cfg, log)
	if err != nil {
		return err
	}

	var limiterStorage fiber.Storage
	if cfg.RedisAddr != "" {
		rdb := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
		defer rdb.Close()
		if err := rdb.Ping(ctx).Err(); err != nil {
			return fmt.Errorf("ping redis: %w", err)
		}
		limiterStorage = utils.NewRedisStorage(rdb, "reward-engine:ratelimit:")
		log.Info("✅ Rate limiter backed by Redis", "addr", cfg.RedisAddr)
	}

	if cfg.SyncServiceURL != "" {
		syncWorker := workers.NewLearnerSyncWorker(store.Learners, engine.Referrals, workers.LearnerSyncConfig{
			BaseURL:      cfg.SyncServiceURL,
			EndpointPath: cfg.SyncEndpoint,
			ServiceToken: cfg.ServiceToken,
			Interval:     cfg.SyncInterval,
		}, cal.Clock(), log)
		syncWorker.Start(ctx)
	} else {
		log.Warn("⚠️  SYNC_SERVICE_URL not set, learner sync disabled")
	}

	if cfg.ManifestEnabled && cfg.R2Configured() {
		r2, err := utils.NewR2Client(ctx, utils.R2Config{
			AccountID:    cfg.R2AccountID,
			AccessKey:    cfg.R2AccessKey,
			AccessSecret: cfg.R2AccessSecret,
			Bucket:       cfg.R2Bucket,
			CDNBaseURL:   cfg.CDNBaseURL,
		})
		if err != nil {
			return err
		}
		if err := workers.NewManifestPublisher(engine.Daily, r2, cal, log).Start(ctx); err != nil {
			return err
		}
		log.Info("✅ Daily manifest publisher scheduled", "timezone", cal.Location().String())
	}

	app := handlers.NewApp(handlers.AppConfig{
		Engine:           engine,
		Log:              log,
		Identity:         identity,
		ServiceToken:     cfg.ServiceToken,
		AllowedOrigins:   cfg.AllowedOrigins,
		RequestTimeout:   cfg.RequestTimeout,
		RateLimitMax:     cfg.RateLimitMax,
		RateLimitStorage: limiterStorage,
	})

	errCh := make(chan error, 1)
	go func() {
		errCh <- app.Listen(":" + cfg.Port)
	}()
	log.Info("✅ Server running", "port", cfg.Port, "auth_mode", cfg.AuthMode, "timezone", cfg.Timezone)

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	log.Info("Shutting down server...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return app.ShutdownWithContext(shutdownCtx)
}
