package server

import (
  "github.com/gin-contrib/cors"
  "github.com/gin-gonic/gin"
  "go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

  "github.com/tempero-labs/dispenser-backend/internal/handlers"
  "github.com/tempero-labs/dispenser-backend/internal/middleware"
)

type RouterConfig struct {
  ServiceName       string
  AllowedOrigins    []string
  AuthHandler       *handlers.AuthHandler
  AuthMiddleware    *middleware.AuthMiddleware
  RecipeHandler     *handlers.RecipeHandler
  ReservoirHandler  *handlers.ReservoirHandler
  JobsHandler       *handlers.JobsHandler
  DeviceHandler     *handlers.DeviceHandler
  MonitorHandler    *handlers.MonitorHandler
}

func NewRouter(cfg RouterConfig) *gin.Engine {
  router := gin.Default()
  router.Use(otelgin.Middleware(cfg.ServiceName))

  // Cors
  origins := cfg.AllowedOrigins
  if len(origins) == 0 {
    origins = []string{
      "http://localhost:80",
      "http://localhost:3000",
      "http://localhost:5173",
    }
  }
  router.Use(cors.New(cors.Config{
    AllowOrigins:     origins,
    AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "PATCH", "OPTIONS"},
    AllowHeaders:     []string{"Authorization", "Content-Type", "X-Requested-With"},
    AllowCredentials: true,
  }))

// ===============
// || Public    ||
// ===============
  router.GET("/healthcheck", handlers.HealthCheck)
  router.POST("/register", cfg.AuthHandler.Register)
  router.POST("/login", cfg.AuthHandler.Login)
  // Claim redemption carries its own six digit code, no bearer token yet.
  router.POST("/devices/claim", cfg.DeviceHandler.Claim)
  // Job monitor: anonymous observers allowed, owners get ownership checks.
  router.GET("/jobs/:id/events", cfg.AuthMiddleware.OptionalUser(), cfg.MonitorHandler.JobEvents)

// ===============
// || User      ||
// ===============
  api := router.Group("/api")
  api.Use(cfg.AuthMiddleware.RequireUser())
  // Recipes
  api.POST("/recipes", cfg.RecipeHandler.Create)
  api.GET("/recipes", cfg.RecipeHandler.List)
  api.GET("/recipes/:id", cfg.RecipeHandler.Get)
  api.DELETE("/recipes/:id", cfg.RecipeHandler.Delete)
  api.GET("/catalog/spices", cfg.RecipeHandler.Catalog)
  // Reservoirs
  api.GET("/reservoirs", cfg.ReservoirHandler.List)
  api.PUT("/reservoirs", cfg.ReservoirHandler.Update)
  // Jobs
  api.POST("/jobs", cfg.JobsHandler.Create)
  api.GET("/jobs/active", cfg.JobsHandler.Active)
  api.GET("/jobs/:id", cfg.JobsHandler.Get)
  api.POST("/jobs/cancel", cfg.JobsHandler.Cancel)
  // Devices
  api.POST("/devices/claim-code", cfg.DeviceHandler.IssueClaimCode)
  api.GET("/devices", cfg.DeviceHandler.List)

// ===============
// || Device    ||
// ===============
  device := router.Group("/devices/me")
  device.Use(cfg.AuthMiddleware.RequireDevice())
  device.POST("/heartbeat", cfg.DeviceHandler.Heartbeat)
  device.GET("/jobs/next", cfg.DeviceHandler.NextJob)
  device.POST("/jobs/:id/report", cfg.DeviceHandler.Report)
  device.POST("/jobs/:id/complete", cfg.DeviceHandler.Complete)

  return router
}
