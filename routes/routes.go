package routes

import (
	"log"
	"os"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/websocket/v2"
	"gorm.io/gorm"

	controller "mailblast/controllers"
	"mailblast/middleware"
)

func SetupAuthRoutes(app *fiber.App, db *gorm.DB) {
	auth := app.Group("/auth", logger.New(logger.Config{
		Format: "[${time}] ${status} - ${latency} ${method} ${path}\n",
	}))

	auth.Post("/register", controller.Register)
	auth.Post("/login", controller.Login)

	protectedAuth := auth.Group("", middleware.Protected())
	protectedAuth.Get("/me", controller.GetCurrentUser)
}

func SetupAPIRoutes(app *fiber.App, db *gorm.DB) {
	campaignController := controller.NewCampaignController(db, log.New(os.Stdout, "CAMPAIGN: ", log.LstdFlags))
	trackingController := controller.NewTrackingController(db, log.New(os.Stdout, "TRACKING: ", log.LstdFlags))
	subscriberController := controller.NewSubscriberController(db, log.New(os.Stdout, "SUBSCRIBER: ", log.LstdFlags))
	domainController := controller.NewDomainController(db, log.New(os.Stdout, "DOMAIN: ", log.LstdFlags))
	templateController := controller.NewTemplateController(db, log.New(os.Stdout, "TEMPLATE: ", log.LstdFlags))
	relayController := controller.NewRelayController(db, log.New(os.Stdout, "RELAY: ", log.LstdFlags))
	dashboardController := controller.NewDashboardController(db, log.New(os.Stdout, "DASHBOARD: ", log.LstdFlags))

	api := app.Group("/api/v1", middleware.Protected(), logger.New(logger.Config{
		Format: "[${time}] ${status} - ${latency} ${method} ${path}\n",
	}))

	// Campaign routes
	campaign := api.Group("/campaigns")
	campaign.Post("/", campaignController.CreateCampaign)
	campaign.Get("/", campaignController.GetCampaigns)
	// Ad hoc send, registered ahead of the :id routes
	campaign.Post("/quick-send", middleware.SendRateLimiter(), campaignController.QuickSend)
	campaign.Get("/:id", campaignController.GetCampaign)
	campaign.Put("/:id", campaignController.UpdateCampaign)
	campaign.Delete("/:id", campaignController.DeleteCampaign)
	campaign.Get("/:id/stats", campaignController.GetCampaignStats)
	campaign.Post("/:id/send", middleware.SendRateLimiter(), campaignController.SendCampaign)

	// WebSocket route for campaign send progress
	app.Get("/api/v1/campaigns/:id/progress", middleware.Protected(), websocket.New(func(c *websocket.Conn) {
		controller.HandleCampaignProgressWS(c)
	}))

	// Engagement tracking endpoints hit by recipient mail clients
	app.Get("/track/open/:campaignID", trackingController.HandleOpenTracking)
	app.Get("/track/click", trackingController.HandleClickTracking)

	// Subscriber routes
	subscriber := api.Group("/subscribers")
	subscriber.Post("/", subscriberController.CreateSubscriber)
	subscriber.Get("/", subscriberController.GetSubscribers)
	subscriber.Put("/:id", subscriberController.UpdateSubscriber)
	subscriber.Delete("/:id", subscriberController.DeleteSubscriber)
	subscriber.Post("/import", subscriberController.ImportSubscribers)
	subscriber.Get("/export", subscriberController.ExportSubscribers)

	// Sending domain routes
	domain := api.Group("/domains")
	domain.Post("/", domainController.CreateDomain)
	domain.Get("/", domainController.GetDomains)
	domain.Post("/:id/verify", domainController.VerifyDomain)
	domain.Get("/:id/whois", domainController.GetDomainInfo)
	domain.Delete("/:id", domainController.DeleteDomain)

	// Template routes
	template := api.Group("/templates")
	template.Post("/", templateController.CreateTemplate)
	template.Get("/", templateController.GetTemplates)
	template.Get("/:id", templateController.GetTemplate)
	template.Put("/:id", templateController.UpdateTemplate)
	template.Delete("/:id", templateController.DeleteTemplate)

	// Mailbox relay routes
	relay := api.Group("/relay")
	relay.Post("/", relayController.ConfigureRelay)
	relay.Get("/", relayController.GetRelay)
	relay.Delete("/", relayController.DeleteRelay)

	// Dashboard
	api.Get("/dashboard", dashboardController.GetDashboard)

	log.Println("API routes initialized successfully")
}

func SetupRoutes(app *fiber.App, db *gorm.DB) {
	app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"status": "ok"})
	})

	SetupAuthRoutes(app, db)
	SetupAPIRoutes(app, db)

	app.Use(func(c *fiber.Ctx) error {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error":   "Not Found",
			"message": "The requested resource was not found",
		})
	})
}
