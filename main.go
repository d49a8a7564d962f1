package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	fiberlogger "github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"go.uber.org/zap"

	"github.com/zipdrophq/zipdrop-backend/database"
	"github.com/zipdrophq/zipdrop-backend/internal/config"
	"github.com/zipdrophq/zipdrop-backend/internal/handlers"
	"github.com/zipdrophq/zipdrop-backend/internal/jobs"
	"github.com/zipdrophq/zipdrop-backend/internal/models"
	"github.com/zipdrophq/zipdrop-backend/internal/objectstore"
	"github.com/zipdrophq/zipdrop-backend/internal/ocr"
	"github.com/zipdrophq/zipdrop-backend/internal/pricing"
	"github.com/zipdrophq/zipdrop-backend/internal/routes"
	"github.com/zipdrophq/zipdrop-backend/internal/services"
	"github.com/zipdrophq/zipdrop-backend/internal/storage"
	"github.com/zipdrophq/zipdrop-backend/pkg/rabbitmq"
	"gorm.io/gorm"
)

const version = "1.0.0"

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}

	var log *zap.Logger
	if cfg.Environment == "production" {
		log, err = zap.NewProduction()
	} else {
		log, err = zap.NewDevelopment()
	}
	if err != nil {
		panic(err)
	}
	defer log.Sync()

	// Storage
	var store storage.Store
	var db *gorm.DB
	if cfg.UseMemoryStore {
		log.Warn("using in-memory storage, not for production")
		store = storage.NewMemoryStore()
	} else {
		db, err = database.Connect(cfg.DatabaseDSN)
		if err != nil {
			log.Fatal("database connection failed", zap.Error(err))
		}
		if err := db.AutoMigrate(
			&models.Customer{},
			&models.Partner{},
			&models.Order{},
			&models.OrderItem{},
			&models.OrderEvent{},
			&models.OTP{},
			&models.LocationSample{},
			&models.Document{},
		); err != nil {
			log.Fatal("database migration failed", zap.Error(err))
		}
		store = storage.NewDatabaseStore(db)
		log.Info("connected to postgres")
	}

	// Notifier
	var notifier services.Notifier
	if cfg.TwilioAccountSID != "" && cfg.TwilioAuthToken != "" {
		notifier, err = services.NewTwilioNotifier(cfg.TwilioAccountSID, cfg.TwilioAuthToken, cfg.TwilioFrom, log)
		if err != nil {
			log.Fatal("twilio initialization failed", zap.Error(err))
		}
		log.Info("twilio notifier initialized")
	} else {
		log.Warn("twilio credentials not set, SMS delivery disabled")
		notifier = services.NewNoopNotifier(log)
	}

	// Event publisher
	var events services.EventPublisher = services.NoopPublisher{}
	if cfg.RabbitMQURL != "" {
		mq, err := rabbitmq.NewClient(rabbitmq.Config{URL: cfg.RabbitMQURL})
		if err != nil {
			log.Fatal("rabbitmq connection failed", zap.Error(err))
		}
		defer mq.Close()
		events = services.NewAMQPPublisher(mq, log)
		log.Info("rabbitmq publisher initialized")
	} else {
		log.Warn("RABBITMQ_URL not set, order events disabled")
	}

	// Object storage and OCR for partner documents
	objects, err := objectstore.NewS3Storage(context.Background(), cfg.S3Bucket, cfg.AWSRegion)
	if err != nil {
		log.Fatal("s3 initialization failed", zap.Error(err))
	}
	extractor := ocr.NewVisionClient(cfg.OCREndpoint, cfg.OCRAPIKey, cfg.OCRTimeout)

	rates := pricing.Rates{
		BaseFee: cfg.PricingBaseFee,
		PerKM:   cfg.PricingPerKM,
		PerKG:   cfg.PricingPerKG,
		Surcharges: map[pricing.ServiceType]float64{
			pricing.ServiceStandard:  cfg.SurchargeStandard,
			pricing.ServiceScheduled: cfg.SurchargeScheduled,
			pricing.ServiceExpress:   cfg.SurchargeExpress,
			pricing.ServiceSameDay:   cfg.SurchargeSameDay,
		},
		TaxRate: cfg.PricingTaxRate,
	}

	otpService := services.NewOTPService(store, notifier, cfg.OTPTTL, cfg.OTPMaxAttempts, log)
	orderService := services.NewOrderService(store, otpService, rates, events, notifier, log)
	locationService := services.NewLocationService(store, cfg.LocationMinInterval, cfg.LocationMaxSpeedKMH, log)
	documentService := services.NewDocumentService(store, objects, extractor, log)

	cleanup := jobs.NewCleanupJob(store, cfg.OTPTTL, cfg.LocationRetention, log)
	cleanup.Start()
	defer cleanup.Stop()

	app := fiber.New(fiber.Config{
		AppName: "ZipDrop Backend v" + version,
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			code := fiber.StatusInternalServerError
			if e, ok := err.(*fiber.Error); ok {
				code = e.Code
			}
			return c.Status(code).JSON(fiber.Map{"error": err.Error()})
		},
	})

	app.Use(fiberlogger.New(fiberlogger.Config{
		Format: "[${time}] ${status} - ${latency} ${method} ${path}\n",
	}))
	app.Use(recover.New())
	app.Use(cors.New(cors.Config{
		AllowOrigins: "*",
		AllowHeaders: "Origin, Content-Type, Accept, Authorization",
		AllowMethods: "GET, POST, PUT, DELETE, OPTIONS",
	}))

	routes.SetupRoutes(app, routes.Deps{
		Customers: handlers.NewCustomerHandler(store),
		Partners:  handlers.NewPartnerHandler(store, locationService),
		Orders:    handlers.NewOrderHandler(orderService),
		OTP:       handlers.NewOTPHandler(otpService),
		Documents: handlers.NewDocumentHandler(documentService),
		Health:    handlers.NewHealthHandler(version, db),
		JWTSecret: cfg.JWTSecret,
	})

	// Graceful shutdown
	go func() {
		quit := make(chan os.Signal, 1)
		signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
		<-quit
		log.Info("shutting down")
		_ = app.Shutdown()
	}()

	log.Info("server starting", zap.String("port", cfg.Port))
	if err := app.Listen(":" + cfg.Port); err != nil {
		log.Fatal("server exited", zap.Error(err))
	}
}
