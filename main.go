package main

import (
	"os"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/fiber/v2/middleware/requestid"
	"github.com/rs/zerolog"

	"certificate-service/internal/cache"
	"certificate-service/internal/certnum"
	"certificate-service/internal/config"
	"certificate-service/internal/fonts"
	"certificate-service/internal/handlers"
)

func main() {
	log := zerolog.New(os.Stdout).With().Timestamp().Logger()

	cfg := config.MustLoad()

	// Initialize image cache
	cache.Init(cfg.Cache.TTL)

	fontLib, err := fonts.NewLibrary(cfg.Certificate.FontsDir)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load fonts")
	}

	numbers := certnum.New(cfg.Certificate.OrgTag)
	h := handlers.New(cfg, fontLib, numbers, log)

	app := fiber.New(fiber.Config{
		Prefork:      false,
		ServerHeader: "Certificate-Service",
		AppName:      "Certificate Generator v1.0.0",
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
		BodyLimit:    cfg.Server.BodyLimit,
		Concurrency:  256 * 1024,
	})

	// Middleware
	app.Use(recover.New())
	app.Use(requestid.New())
	app.Use(logger.New(logger.Config{
		Format:     "${time} | ${status} | ${latency} | ${method} ${path}\n",
		TimeFormat: "2006-01-02 15:04:05",
	}))

	// CORS
	app.Use(cors.New(cors.Config{
		AllowOrigins: "*",
		AllowMethods: "GET,POST,PUT,DELETE,OPTIONS",
		AllowHeaders: "Origin, Content-Type, Accept, Authorization",
	}))

	setupRoutes(app, h)

	log.Info().Str("port", cfg.Server.Port).Str("org", numbers.Org).Msg("certificate service starting")

	if err := app.Listen(":" + cfg.Server.Port); err != nil {
		log.Fatal().Err(err).Msg("server failed")
	}
}

func setupRoutes(app *fiber.App, h *handlers.Handler) {
	app.Get("/", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"service": "Certificate Generator",
			"version": "1.0.0",
			"status":  "running",
		})
	})

	app.Get("/health", h.HealthCheck)

	api := app.Group("/api")

	// Certificate generation
	api.Post("/certificate/generate", h.GenerateCertificate)
	api.Post("/certificate/batch", h.GenerateBatch)

	// Template management
	api.Post("/template/validate", h.ValidateTemplate)
	api.Post("/template/preload", h.PreloadTemplate)

	// Barcode pre-flight
	api.Post("/barcode/check", h.CheckBarcode)

	// Cache management
	api.Get("/cache/stats", h.GetCacheStats)
	api.Post("/cache/clear", h.ClearCache)

	// 404 handler
	app.Use(func(c *fiber.Ctx) error {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error": "Not found",
			"path":  c.Path(),
		})
	})
}
