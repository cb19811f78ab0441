package api

import (
	"errors"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/rs/zerolog"

	"github.com/Fatnaoui/crawler-project/pkg/logging"
)

// ServerOptions tunes the fiber app
type ServerOptions struct {
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	AllowOrigins string
}

// NewApp builds the stats API with its middleware and routes
func NewApp(h *Handlers, sh *StorageHandler, opts ServerOptions) *fiber.App {
	logger := logging.GetLogger("api")

	app := fiber.New(fiber.Config{
		AppName:               "Darija Curate API",
		DisableStartupMessage: true,
		ReadTimeout:           opts.ReadTimeout,
		WriteTimeout:          opts.WriteTimeout,
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			code := fiber.StatusInternalServerError
			var e *fiber.Error
			if errors.As(err, &e) {
				code = e.Code
			}
			return c.Status(code).JSON(fiber.Map{
				"error": err.Error(),
			})
		},
	})

	app.Use(recover.New(recover.Config{
		EnableStackTrace: true,
	}))
	app.Use(requestLogger(logger))

	origins := opts.AllowOrigins
	if origins == "" {
		origins = "*"
	}
	app.Use(cors.New(cors.Config{
		AllowOrigins: origins,
		AllowHeaders: "Origin, Content-Type, Accept",
		AllowMethods: "GET, DELETE, OPTIONS",
	}))

	SetupRoutes(app, h, sh)
	return app
}

// SetupRoutes registers every endpoint
func SetupRoutes(app *fiber.App, h *Handlers, sh *StorageHandler) {
	app.Get("/health", h.Health)

	v1 := app.Group("/api/v1")

	runs := v1.Group("/runs")
	runs.Get("/", h.ListRuns)
	runs.Get("/:id", h.GetRun)
	runs.Get("/:id/stats", h.GetRunStats)
	runs.Get("/:id/rejections", h.ListRejections)

	ledger := v1.Group("/ledger")
	ledger.Get("/health", sh.GetStorageHealth)
	ledger.Get("/metrics", sh.GetStorageMetrics)
	ledger.Delete("/metrics", sh.ClearMetrics)
}

func requestLogger(logger zerolog.Logger) fiber.Handler {
	return func(c *fiber.Ctx) error {
		start := time.Now()
		err := c.Next()
		status := c.Response().StatusCode()
		if err != nil {
			var e *fiber.Error
			if errors.As(err, &e) {
				status = e.Code
			} else {
				status = fiber.StatusInternalServerError
			}
		}
		logger.Debug().
			Str("method", c.Method()).
			Str("path", c.Path()).
			Int("status", status).
			Dur("latency", time.Since(start)).
			Msg("Request handled")
		return err
	}
}
