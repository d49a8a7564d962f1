package routes

import (
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/zipdrophq/zipdrop-backend/internal/handlers"
	"github.com/zipdrophq/zipdrop-backend/internal/middleware"
)

// Deps bundles everything the route table needs.
type Deps struct {
	Customers *handlers.CustomerHandler
	Partners  *handlers.PartnerHandler
	Orders    *handlers.OrderHandler
	OTP       *handlers.OTPHandler
	Documents *handlers.DocumentHandler
	Health    *handlers.HealthHandler

	JWTSecret string
}

// SetupRoutes configures all API routes.
func SetupRoutes(app *fiber.App, d Deps) {
	app.Get("/", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"message": "Welcome to ZipDrop Backend!",
			"version": d.Health.Version,
			"endpoints": fiber.Map{
				"health":  "/health",
				"metrics": "/metrics",
				"api":     "/api",
			},
		})
	})

	app.Get("/health", d.Health.Check)
	app.Get("/metrics", adaptor.HTTPHandler(promhttp.Handler()))

	api := app.Group("/api")

	// Mutating routes require a bearer token when a secret is configured.
	auth := func(c *fiber.Ctx) error { return c.Next() }
	if d.JWTSecret != "" {
		auth = middleware.AuthRequired(d.JWTSecret)
	}

	customers := api.Group("/customers")
	customers.Post("/", d.Customers.CreateCustomer)
	customers.Get("/:id", d.Customers.GetCustomer)

	partners := api.Group("/partners")
	partners.Post("/", d.Partners.CreatePartner)
	partners.Get("/nearby", d.Partners.FindNearby)
	partners.Get("/optimal", d.Partners.FindOptimal)
	partners.Get("/:id", d.Partners.GetPartner)
	partners.Post("/:id/location", auth, d.Partners.UpdateLocation)
	partners.Get("/:id/location", d.Partners.GetLatestLocation)

	orders := api.Group("/orders")
	orders.Post("/", auth, d.Orders.CreateOrder)
	orders.Get("/", d.Orders.ListOrders)
	orders.Get("/:id", d.Orders.GetOrder)
	orders.Get("/:id/timeline", d.Orders.GetTimeline)
	orders.Post("/:id/assign", auth, d.Orders.AssignPartner)
	orders.Post("/:id/status", auth, d.Orders.UpdateStatus)
	orders.Post("/:id/verify-pickup", auth, d.Orders.VerifyPickup)
	orders.Post("/:id/verify-delivery", auth, d.Orders.VerifyDelivery)
	orders.Post("/:id/cancel", auth, d.Orders.CancelOrder)
	orders.Post("/:id/rate", auth, d.Orders.RateOrder)

	otp := api.Group("/otp")
	otp.Post("/issue", d.OTP.Issue)
	otp.Post("/verify", d.OTP.Verify)

	documents := api.Group("/documents")
	documents.Post("/", auth, d.Documents.Upload)
	documents.Get("/:id", d.Documents.GetDocument)
	documents.Post("/:id/verify", auth, d.Documents.VerifyDocument)
	documents.Get("/:id/url", auth, d.Documents.GetSignedURL)
}
