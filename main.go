package main

import (
	"fmt"
	"log"
	"time"

	"github.com/seunghan91/talk-api-open-sub000/internal/config"
	"github.com/seunghan91/talk-api-open-sub000/internal/database"
	"github.com/seunghan91/talk-api-open-sub000/internal/handlers"
	"github.com/seunghan91/talk-api-open-sub000/internal/middleware"
	"github.com/seunghan91/talk-api-open-sub000/internal/obs"
	"github.com/seunghan91/talk-api-open-sub000/internal/routes"
	"github.com/seunghan91/talk-api-open-sub000/internal/services"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
)

func main() {
	// Load YAML configuration
	if err := config.LoadConfig(); err != nil {
		log.Printf("Warning: Failed to load YAML config: %v", err)
		log.Println("Using default configuration...")
	}
	appConfig := config.GetConfig()

	logger := obs.SetupLogger(appConfig.Logging.Level)

	// Initialize database
	db, err := database.InitDB()
	if err != nil {
		log.Fatal("Failed to connect to database:", err)
	}
	defer db.Close()

	// Run migrations
	if err := database.RunMigrations(db); err != nil {
		log.Fatal("Failed to run migrations:", err)
	}

	loc, err := time.LoadLocation(appConfig.Service.Timezone)
	if err != nil {
		logger.Warn().Err(err).Str("timezone", appConfig.Service.Timezone).Msg("falling back to UTC")
		loc = time.UTC
	}

	// Metrics registry
	reg := prometheus.NewRegistry()
	metrics := obs.NewMetrics(reg)

	// Initialize services
	settings := services.NewSettingsStore(db)
	engine := services.NewLimitDecisionEngine(db, settings, metrics, logger, loc)
	selector := services.NewRecipientSelector(db)
	notifier := services.NewLogNotifier(logger)
	fanout := services.NewFanoutCoordinator(db, notifier, metrics, logger)
	state := services.NewDeliveryStateService(db, notifier, logger)

	// Initialize Gin router
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(middleware.CustomLoggingMiddleware())
	r.Use(middleware.CORS())

	// Initialize handlers
	broadcastHandler := handlers.NewBroadcastHandler(db, engine, selector, fanout)
	deliveryHandler := handlers.NewDeliveryHandler(db, state)
	adminHandler := handlers.NewAdminHandler(db, settings)

	// Setup routes
	routes.SetupRoutes(r, broadcastHandler, deliveryHandler, adminHandler, reg, db)

	// Start server
	port := fmt.Sprintf("%d", appConfig.Server.Port)
	host := appConfig.Server.Host

	log.Printf("Server starting on %s:%s", host, port)
	if err := r.Run(host + ":" + port); err != nil {
		log.Fatal("Failed to start server:", err)
	}
}
