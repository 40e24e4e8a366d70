package main

import (
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/joho/godotenv"

	"github.com/wagate/wagate-backend/database"
	"github.com/wagate/wagate-backend/internal/models"
	"github.com/wagate/wagate-backend/internal/routes"
	"github.com/wagate/wagate-backend/internal/services"
	"github.com/wagate/wagate-backend/internal/storage"
	"github.com/wagate/wagate-backend/internal/transport"
)

const version = "1.0.0"

func main() {
	// Load .env file for local development
	if os.Getenv("INSTANCE_CONNECTION_NAME") == "" {
		err := godotenv.Load(".env")
		if err != nil {
			err = godotenv.Load("environments/.env.development")
			if err != nil {
				log.Println("⚠️  No .env file found - checking environment variables")
			}
		}
	}

	bridgeURL := os.Getenv("BRIDGE_URL")
	if bridgeURL == "" {
		bridgeURL = "ws://localhost:8081"
		log.Printf("⚠️  BRIDGE_URL not set - defaulting to %s", bridgeURL)
	}

	// Initialize storage
	var store storage.Store

	switch {
	case os.Getenv("USE_MEMORY_STORE") == "true":
		log.Println("⚠️  Using in-memory storage (not for production!)")
		store = storage.NewMemoryStore()

	case os.Getenv("USE_DATABASE") == "true":
		log.Println("📦 Connecting to PostgreSQL database...")
		database.Connect()

		log.Println("🔄 Running database migrations...")
		err := database.DB.AutoMigrate(
			&models.Session{},
			&models.Credentials{},
			&models.RuleDocument{},
		)
		if err != nil {
			log.Fatal("Failed to migrate database:", err)
		}
		log.Println("✅ Database migrations completed!")

		store = storage.NewDatabaseStore(database.DB)

	default:
		dataDir := os.Getenv("DATA_DIR")
		if dataDir == "" {
			dataDir = "./data"
		}
		fileStore, err := storage.NewFileStore(dataDir)
		if err != nil {
			log.Fatal("Failed to initialize file storage:", err)
		}
		store = fileStore
		log.Printf("✅ Using file storage at %s", dataDir)
	}

	storage.SetStore(store)

	// Initialize all services
	alertService := services.NewAlertService()
	services.SetAlertService(alertService)

	ruleService := services.NewRuleService(store)
	invoker := services.NewCallbackInvoker()
	dispatcher := services.NewDispatcher(ruleService, invoker)

	registry := services.NewSessionRegistry(store, ruleService, dispatcher,
		transport.NewBridgeDialer(bridgeURL), alertService)
	services.SetRegistry(registry)

	// Resume sessions that survived a restart
	registry.Restore()

	log.Println("✅ All services initialized")

	// Create fiber app
	app := fiber.New(fiber.Config{
		AppName: "WaGate Backend v" + version,
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			code := fiber.StatusInternalServerError
			if e, ok := err.(*fiber.Error); ok {
				code = e.Code
			}
			return c.Status(code).JSON(fiber.Map{
				"error": err.Error(),
			})
		},
	})

	// Middleware
	app.Use(logger.New(logger.Config{
		Format: "[${time}] ${status} - ${latency} ${method} ${path}\n",
	}))
	app.Use(recover.New())
	app.Use(cors.New(cors.Config{
		AllowOrigins: "*",
		AllowHeaders: "Origin, Content-Type, Accept, Authorization",
		AllowMethods: "GET, POST, PUT, DELETE, OPTIONS",
	}))

	// Root endpoint with service status
	app.Get("/", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"service":  "WaGate Backend API",
			"version":  version,
			"status":   "healthy",
			"sessions": registry.SessionCount(),
			"bridge":   bridgeURL,
		})
	})

	// Setup routes
	routes.SetupRoutes(app, registry, ruleService, version)

	// Get port from environment or use default
	port := os.Getenv("PORT")
	if port == "" {
		port = "8080"
	}

	// Handle graceful shutdown
	c := make(chan os.Signal, 1)
	signal.Notify(c, os.Interrupt, syscall.SIGTERM)

	go func() {
		<-c
		log.Println("\n🛑 Gracefully shutting down...")
		_ = app.Shutdown()
	}()

	log.Println("========================================")
	log.Printf("🚀 WaGate Backend starting on port %s", port)
	log.Printf("🔗 Protocol bridge: %s", bridgeURL)
	log.Println("========================================")

	log.Fatal(app.Listen(":" + port))
}
