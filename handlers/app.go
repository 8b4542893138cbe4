package handlers

import (
	"strings"
	"time"

	"github.com/bytedance/sonic"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/recover"

	"reward-engine/logger"
	"reward-engine/middleware"
	"reward-engine/services"
)

type AppConfig struct {
	Engine *services.Engine
	Log    *logger.Logger

	// Identity resolves the calling learner (gateway headers, auth service, or JWT).
	Identity []fiber.Handler

	ServiceToken     string
	AllowedOrigins   []string
	RequestTimeout   time.Duration
	RateLimitMax     int
	RateLimitStorage fiber.Storage
}

// NewApp builds the fiber application with every route mounted.
func NewApp(cfg AppConfig) *fiber.App {
	log := logger.OrNop(cfg.Log)

	app := fiber.New(fiber.Config{
		AppName:      "reward-engine",
		Immutable:    true,
		BodyLimit:    64 * 1024,
		JSONEncoder:  sonic.Marshal,
		JSONDecoder:  sonic.Unmarshal,
		ErrorHandler: middleware.ErrorHandler(log),
	})

	app.Use(recover.New())
	app.Use(middleware.RequestContext(cfg.RequestTimeout, log))

	origins := cfg.AllowedOrigins
	if len(origins) == 0 {
		origins = []string{"http://localhost:3000"}
	}
	app.Use(cors.New(cors.Config{
		AllowOrigins:     strings.Join(origins, ","),
		AllowMethods:     "GET,POST,PUT,OPTIONS",
		AllowHeaders:     "Origin, Content-Type, Accept, Authorization, X-Requested-With, X-Request-ID, X-Service-Token, X-Device-ID",
		ExposeHeaders:    "Content-Length, Content-Type, X-Request-ID",
		AllowCredentials: !containsWildcard(origins),
		MaxAge:           86400,
	}))

	app.Get("/health", func(c *fiber.Ctx) error {
		return c.SendString("ok")
	})

	for _, h := range cfg.Identity {
		app.Use(h)
	}
	if cfg.RateLimitMax > 0 {
		app.Use(middleware.RateLimit(cfg.RateLimitMax, cfg.RateLimitStorage))
	}

	v := newValidator()
	SetupRewardRoutes(app, cfg.Engine, v)
	SetupReferralRoutes(app, cfg.Engine, v)
	SetupContentRoutes(app, cfg.Engine, v)
	SetupSettingsRoutes(app, cfg.Engine, v)
	SetupInternalRoutes(app, cfg.Engine, cfg.ServiceToken, v, log)

	return app
}

func containsWildcard(origins []string) bool {
	for _, o := range origins {
		if o == "*" {
			return true
		}
	}
	return false
}
