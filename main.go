package main

import (
	"context"
	"log"
	"os"
	"time"

	"github.com/getsentry/sentry-go"
	"github.com/gofiber/fiber/v2"

	"mailblast/config"
	"mailblast/middleware"
	"mailblast/routes"
	"mailblast/worker"
)

func main() {
	logger := log.New(os.Stdout, "MAILBLAST: ", log.Ldate|log.Ltime|log.Lshortfile)

	// Load configuration
	if err := config.LoadConfig(); err != nil {
		logger.Fatalf("Failed to load configuration: %v", err)
	}

	// Error reporting is optional; a missing DSN just disables it
	if config.AppConfig.SentryDSN != "" {
		if err := sentry.Init(sentry.ClientOptions{
			Dsn:         config.AppConfig.SentryDSN,
			Environment: config.AppConfig.Environment,
		}); err != nil {
			logger.Printf("Sentry initialization failed: %v", err)
		}
		defer sentry.Flush(2 * time.Second)
	}

	// Initialize database connection
	if err := config.ConnectDB(); err != nil {
		logger.Fatalf("Failed to connect to database: %v", err)
	}

	// Create Fiber app
	app := fiber.New()

	// Add CORS middleware
	app.Use(middleware.CORS())

	// Background workers: bounce polling and daily usage reset
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	bounceWorker := worker.NewBounceWorker(config.DB, log.New(os.Stdout, "BOUNCE: ", log.LstdFlags))
	go bounceWorker.Start(ctx)

	usageWorker := worker.NewUsageWorker(config.DB, log.New(os.Stdout, "USAGE: ", log.LstdFlags))
	go usageWorker.Start(ctx)

	// Setup routes
	routes.SetupRoutes(app, config.DB)

	// Start server
	logger.Printf("🚀 Server starting on port %s", config.AppConfig.ServerPort)
	if err := app.Listen(":" + config.AppConfig.ServerPort); err != nil {
		logger.Fatalf("Failed to start server: %v", err)
	}
}
