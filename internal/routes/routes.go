package routes

import (
	"database/sql"

	"github.com/seunghan91/talk-api-open-sub000/internal/config"
	"github.com/seunghan91/talk-api-open-sub000/internal/handlers"
	"github.com/seunghan91/talk-api-open-sub000/internal/middleware"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

func SetupRoutes(r *gin.Engine, broadcastHandler *handlers.BroadcastHandler, deliveryHandler *handlers.DeliveryHandler, adminHandler *handlers.AdminHandler, reg *prometheus.Registry, db *sql.DB) {
	appConfig := config.GetConfig()
	perClient := middleware.PerClientRateLimit(appConfig.Server.RequestsPerSecond, appConfig.Server.RequestBurst)

	// API v1
	v1 := r.Group("/api/v1")

	// Broadcast routes (require active status)
	broadcasts := v1.Group("/broadcasts")
	broadcasts.Use(middleware.AuthRequiredWithStatus(db))
	{
		broadcasts.POST("", perClient, broadcastHandler.CreateBroadcast)
		broadcasts.GET("/limits", broadcastHandler.GetLimits)
		broadcasts.GET("/received", broadcastHandler.GetReceivedBroadcasts)
		broadcasts.POST("/:id/read", deliveryHandler.MarkRead)
		broadcasts.POST("/:id/reply", perClient, deliveryHandler.Reply)
	}

	// Admin routes (privileged only)
	admin := v1.Group("/admin")
	admin.Use(middleware.AuthRequired(), middleware.AdminRequired(db))
	{
		admin.GET("/broadcast_settings", adminHandler.GetBroadcastSettings)
		admin.PATCH("/broadcast_settings", adminHandler.UpdateBroadcastSettings)
	}

	// Prometheus metrics
	r.GET("/metrics", gin.WrapH(promhttp.HandlerFor(reg, promhttp.HandlerOpts{})))
}
