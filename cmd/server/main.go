package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/contrib/websocket"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/hibiken/asynq"
	"github.com/redis/go-redis/v9"

	"github.com/planvision/studio/internal/client"
	"github.com/planvision/studio/internal/config"
	"github.com/planvision/studio/internal/handler"
	"github.com/planvision/studio/internal/middleware"
	"github.com/planvision/studio/internal/service"
	"github.com/planvision/studio/internal/worker"
	ws "github.com/planvision/studio/internal/websocket"
	"github.com/planvision/studio/pkg/response"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	// Initialize Redis client
	redisClient := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})

	// Test Redis connection
	ctx := context.Background()
	if err := redisClient.Ping(ctx).Err(); err != nil {
		log.Printf("Warning: Redis not available: %v", err)
	}

	// Initialize Asynq client
	asynqClient := asynq.NewClient(asynq.RedisClientOpt{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	defer asynqClient.Close()

	// Initialize validator
	validate := validator.New()

	// Initialize WebSocket hub
	hub := ws.NewHub()
	go hub.Run()

	// Backend clients
	renderBackend := client.NewRenderClient(&cfg.Backend)
	catalog := client.NewCatalogClient(&cfg.Backend)

	// Services
	archiveService := service.NewArchiveService(asynqClient, redisClient)
	var archiver service.Archiver
	if cfg.Archive.Enabled {
		archiver = archiveService
	}
	pollInterval := time.Duration(cfg.Backend.PollIntervalMS) * time.Millisecond
	sessions := service.NewSessionManager(renderBackend, hub, archiver, pollInterval)
	galleryService := service.NewGalleryService(renderBackend, redisClient, archiveService)

	// Handlers
	sessionHandler := handler.NewSessionHandler(sessions)
	renderHandler := handler.NewRenderHandler(sessions, renderBackend, galleryService, validate)
	materialsHandler := handler.NewMaterialsHandler(sessions, catalog, validate)
	galleryHandler := handler.NewGalleryHandler(galleryService, sessions, validate)

	// Middleware
	rateLimiter := middleware.NewRateLimiter(redisClient)

	// Initialize Fiber app
	app := fiber.New(fiber.Config{
		ErrorHandler: customErrorHandler,
	})

	// Global middleware
	app.Use(recover.New())
	app.Use(logger.New(logger.Config{
		Format: "[${time}] ${status} - ${latency} ${method} ${path}\n",
	}))
	app.Use(cors.New(cors.Config{
		AllowOrigins: "*",
		AllowMethods: "GET,POST,PUT,DELETE,OPTIONS",
		AllowHeaders: "Origin,Content-Type,Accept",
	}))

	// Health check
	app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"status": "ok"})
	})

	// API routes
	api := app.Group("/api")

	// Sessions
	api.Post("/sessions", sessionHandler.Create)
	session := api.Group("/sessions/:sessionId")
	session.Delete("/", sessionHandler.Close)

	// Room configuration
	session.Post("/rooms", materialsHandler.InitRooms)
	session.Get("/rooms", materialsHandler.GetRooms)
	session.Put("/rooms/:roomId/material", materialsHandler.SetMaterial)

	// Batch render lifecycle
	session.Post("/render/start", rateLimiter.BatchStartLimit(cfg.RateLimit.BatchStartPerHour), renderHandler.Start)
	session.Get("/render/state", renderHandler.State)
	session.Post("/render/cancel", renderHandler.Cancel)
	session.Post("/render/reset", renderHandler.Reset)
	session.Post("/render/dismiss-error", renderHandler.DismissError)

	// Render proxies
	api.Post("/render/room", rateLimiter.RoomRenderLimit(cfg.RateLimit.RoomRenderPerHour), renderHandler.RoomRender)
	api.Get("/render/pipeline/status", renderHandler.PipelineStatus)
	api.Delete("/render/jobs/:jobId", renderHandler.DeleteJob)

	// Catalog
	api.Get("/materials", materialsHandler.ListMaterials)
	api.Get("/styles", materialsHandler.ListStyles)

	// Gallery
	api.Get("/gallery", galleryHandler.Items)
	api.Post("/gallery/favorite", galleryHandler.Favorite)
	api.Post("/gallery/select", galleryHandler.Select)
	api.Get("/gallery/compare", galleryHandler.Compare)

	// WebSocket routes
	app.Use("/ws", func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	})

	app.Get("/ws/sessions/:sessionId", websocket.New(func(c *websocket.Conn) {
		sessionID := c.Params("sessionId")
		hub.HandleConnection(c, sessionID)
	}))

	// Start Asynq worker server for render archival
	if cfg.Archive.Enabled {
		go startWorkerServer(cfg, archiveService)
	}

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		<-quit
		log.Println("Shutting down server...")
		sessions.CloseAll()
		if err := app.ShutdownWithTimeout(10 * time.Second); err != nil {
			log.Printf("Server shutdown error: %v", err)
		}
	}()

	// Start server
	addr := ":" + cfg.Server.Port
	log.Printf("Studio server starting on %s", addr)
	if err := app.Listen(addr); err != nil {
		log.Fatalf("Server error: %v", err)
	}
}

func startWorkerServer(cfg *config.Config, archiveService *service.ArchiveService) {
	srv := asynq.NewServer(
		asynq.RedisClientOpt{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		},
		asynq.Config{
			Concurrency: 4,
			Queues: map[string]int{
				"archive": 1,
			},
		},
	)

	archiveWorker := worker.NewArchiveWorker(archiveService, cfg.Archive.OutputDir)

	mux := asynq.NewServeMux()
	mux.HandleFunc(service.TaskTypeArchive, archiveWorker.ProcessTask)

	if err := srv.Run(mux); err != nil {
		log.Printf("Asynq worker error: %v", err)
	}
}

func customErrorHandler(c *fiber.Ctx, err error) error {
	code := fiber.StatusInternalServerError
	message := "Internal Server Error"

	if e, ok := err.(*fiber.Error); ok {
		code = e.Code
		message = e.Message
	}

	return c.Status(code).JSON(response.ErrorResponse{
		Error: response.ErrorDetail{
			Code:    response.CodeServiceError,
			Message: message,
		},
	})
}
