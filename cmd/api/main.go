// cmd/api/main.go
package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"

	"whatsapp-campaigns/internal/config"
	"whatsapp-campaigns/internal/database"
	"whatsapp-campaigns/internal/handlers"
	"whatsapp-campaigns/internal/middleware"
	"whatsapp-campaigns/internal/repositories"
	"whatsapp-campaigns/internal/services"
	"whatsapp-campaigns/internal/store"
	"whatsapp-campaigns/pkg/logger"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		logger.New("info").Fatal("Failed to load configuration: %v", err)
	}

	// Initialize logger
	log := logger.NewWithWriter(cfg.Logging.Level, cfg.Logging.Format, os.Stdout)
	log.Info("Starting WhatsApp Campaigns Server...")

	// Initialize database connection
	db, err := database.NewConnection(cfg)
	if err != nil {
		log.Fatal("Failed to connect to database: %v", err)
	}
	defer db.Close()

	// Run migrations
	if err := database.RunMigrations(db.SqlDB); err != nil {
		log.Fatal("Failed to run migrations: %v", err)
	}

	// Initialize repositories
	campaignRepo := repositories.NewCampaignRepository(db.DB)
	ruleRepo := repositories.NewResponderRuleRepository(db.DB)

	checks := map[string]handlers.HealthCheck{
		"database": db.HealthCheck,
	}

	// Initialize Redis
	var rdb *redis.Client
	if cfg.Redis.Enabled {
		rdb = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr(),
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		defer rdb.Close()

		checks["redis"] = func(ctx context.Context) error {
			return rdb.Ping(ctx).Err()
		}
	}

	var scheduleStore services.ScheduleStore = services.NewMemoryScheduleStore()
	if cfg.Scheduler.JobStore == "redis" {
		scheduleStore = repositories.NewRedisScheduleStore(rdb, cfg.Redis.JobsKey)
	}

	// Initialize realtime event routing
	eventBus := services.NewEventBus()
	wsManager := services.NewWebSocketManager(eventBus, cfg.WebSocket, log.With("component", "websocket"))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go wsManager.Run(ctx)

	// Initialize session lifecycle
	clientFactory, err := store.NewClientFactory(cfg.WhatsApp.AuthDir, log.With("component", "whatsmeow"))
	if err != nil {
		log.Fatal("Failed to initialize client store: %v", err)
	}

	sessionManager := services.NewSessionManager(
		services.SessionManagerOptions{
			ReinitDelay:  cfg.WhatsApp.ReinitDelay,
			CleanupDelay: cfg.WhatsApp.CleanupDelay,
			PrintQR:      cfg.Server.Debug,
		},
		services.NewMemoryRegistry(),
		clientFactory,
		eventBus,
		services.NewQRGenerator(cfg.QRCode),
		log.With("component", "sessions"),
	)
	sessionManager.SetInboundHandler(services.NewAutoResponder(ruleRepo, log.With("component", "auto_responder")))

	// Initialize services
	deliveryEngine := services.NewDeliveryEngine(
		sessionManager,
		campaignRepo,
		services.DeliveryOptions{
			SendInterval:       cfg.Delivery.SendInterval,
			VerifyRecipients:   cfg.WhatsApp.VerifyRecipients,
			DefaultCountryCode: cfg.WhatsApp.DefaultCountryCode,
		},
		log.With("component", "delivery"),
	)

	scheduler, err := services.NewScheduler(deliveryEngine, sessionManager, scheduleStore, cfg.Scheduler.Workers, log.With("component", "scheduler"))
	if err != nil {
		log.Fatal("Failed to create scheduler: %v", err)
	}

	contactService := services.NewContactService(sessionManager)
	groupService := services.NewGroupService(sessionManager, deliveryEngine, log.With("component", "groups"))

	// Start session manager
	if cfg.WhatsApp.RestoreOnStart {
		if err := sessionManager.Start(ctx); err != nil {
			log.Error("Failed to start session manager: %v", err)
		}
	}

	// Start scheduler
	if err := scheduler.Start(ctx); err != nil {
		log.Fatal("Failed to start scheduler: %v", err)
	}

	// Setup Gin router
	router := setupRouter(
		cfg,
		handlers.NewSessionHandler(sessionManager, wsManager, log),
		handlers.NewMessageHandler(deliveryEngine, scheduler, groupService, cfg.Upload.MaxSize, log),
		handlers.NewCampaignHandler(campaignRepo, cfg.Delivery.HistoryLimit, log),
		handlers.NewResponderHandler(ruleRepo, log),
		handlers.NewContactHandler(contactService, groupService, log),
		handlers.NewWebSocketHandler(wsManager, sessionManager, cfg.WebSocket, log),
		handlers.NewHealthHandler(checks),
		log,
	)

	// Start HTTP server
	srv := &http.Server{
		Addr:         cfg.GetServerAddress(),
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	// Start server in goroutine
	go func() {
		log.Info("Server starting on port %s", cfg.Server.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal("Failed to start server: %v", err)
		}
	}()

	// Wait for interrupt signal to gracefully shutdown the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("Shutting down server...")

	// Graceful shutdown with timeout
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	// Shutdown HTTP server
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("Server forced to shutdown: %v", err)
	}

	// Persisted scheduled sends survive the restart
	scheduler.Stop()

	// Stop session manager, keeping authentication artifacts
	sessionManager.Stop()

	// Stop WebSocket manager
	cancel()

	log.Info("Server shutdown complete")
}

func setupRouter(
	cfg *config.Config,
	sessionHandler *handlers.SessionHandler,
	messageHandler *handlers.MessageHandler,
	campaignHandler *handlers.CampaignHandler,
	responderHandler *handlers.ResponderHandler,
	contactHandler *handlers.ContactHandler,
	websocketHandler *handlers.WebSocketHandler,
	healthHandler *handlers.HealthHandler,
	log *logger.Logger,
) *gin.Engine {
	// Set Gin mode
	if cfg.IsProduction() && !cfg.Server.Debug {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()

	// Global middleware
	router.Use(middleware.Recovery(log))
	router.Use(middleware.RequestID())
	router.Use(middleware.RequestLogger(log))
	router.Use(middleware.CORSMiddleware(cfg))

	// Health check endpoints
	router.GET("/health", healthHandler.Health)
	router.GET("/ready", healthHandler.Ready)
	if cfg.Metrics.Enabled {
		router.GET(cfg.Metrics.Path, gin.WrapH(promhttp.Handler()))
	}

	api := router.Group("")
	if cfg.RateLimit.Enabled {
		limiter := middleware.NewRateLimiter(cfg.RateLimit)
		go func() {
			ticker := time.NewTicker(time.Minute)
			defer ticker.Stop()
			for range ticker.C {
				limiter.Cleanup()
			}
		}()
		api.Use(limiter.Middleware())
	}
	if cfg.AuthEnabled() {
		api.Use(middleware.AuthMiddleware(cfg))
	}

	// Session lifecycle endpoints
	session := api.Group("/session")
	{
		session.POST("/init", sessionHandler.InitSession)
		session.POST("/logout", sessionHandler.Logout)
		session.GET("/:sessionId/status", sessionHandler.GetStatus)
	}
	api.GET("/sessions", sessionHandler.ListSessions)

	// Send endpoints
	send := api.Group("/send")
	{
		send.POST("/bulk", messageHandler.SendBulk)
		send.POST("/schedule", messageHandler.ScheduleSend)
		send.GET("/schedule", messageHandler.ListScheduled)
		send.DELETE("/schedule/:id", messageHandler.CancelScheduled)
		send.POST("/group-members", messageHandler.SendToGroupMembers)
	}

	// Campaign report endpoints
	campaigns := api.Group("/campaigns")
	{
		campaigns.GET("/latest", campaignHandler.Latest)
		campaigns.GET("/history", campaignHandler.History)
	}

	// Auto-responder rule endpoints
	rules := api.Group("/rules")
	{
		rules.POST("", responderHandler.CreateRule)
		rules.GET("", responderHandler.ListRules)
		rules.PUT("/:id", responderHandler.UpdateRule)
		rules.DELETE("/:id", responderHandler.DeleteRule)
	}

	// Address book endpoints
	api.GET("/contacts", contactHandler.ListContacts)
	api.GET("/groups", contactHandler.ListGroups)

	// WebSocket endpoint
	api.GET("/ws", websocketHandler.HandleConnection)
	api.GET("/ws/:sessionId", websocketHandler.HandleConnection)

	// 404 handler
	router.NoRoute(func(c *gin.Context) {
		c.JSON(http.StatusNotFound, gin.H{
			"success": false,
			"error":   "Endpoint not found",
		})
	})

	return router
}
