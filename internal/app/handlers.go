package app

import (
	"github.com/gin-gonic/gin"

	"github.com/tempero-labs/dispenser-backend/internal/handlers"
	"github.com/tempero-labs/dispenser-backend/internal/middleware"
	"github.com/tempero-labs/dispenser-backend/internal/platform/logger"
	"github.com/tempero-labs/dispenser-backend/internal/server"
	"github.com/tempero-labs/dispenser-backend/internal/sse"
)

type Middleware struct {
	Auth *middleware.AuthMiddleware
}

type Handlers struct {
	Auth      *handlers.AuthHandler
	Recipe    *handlers.RecipeHandler
	Reservoir *handlers.ReservoirHandler
	Jobs      *handlers.JobsHandler
	Device    *handlers.DeviceHandler
	Monitor   *handlers.MonitorHandler
}

func wireHandlers(log *logger.Logger, s Services, hub *sse.Hub) Handlers {
	log.Info("Wiring handlers...")
	return Handlers{
		Auth:      handlers.NewAuthHandler(s.Auth),
		Recipe:    handlers.NewRecipeHandler(s.Recipe, s.Catalog),
		Reservoir: handlers.NewReservoirHandler(s.Reservoir),
		Jobs:      handlers.NewJobsHandler(s.Job),
		Device:    handlers.NewDeviceHandler(s.Device, s.Job, s.Completion),
		Monitor:   handlers.NewMonitorHandler(s.Job, hub),
	}
}

func wireMiddleware(log *logger.Logger, s Services) Middleware {
	log.Info("Wiring middleware...")
	return Middleware{
		Auth: middleware.NewAuthMiddleware(log, s.Auth, s.Device),
	}
}

func wireRouter(cfg Config, h Handlers, mw Middleware) *gin.Engine {
	return server.NewRouter(server.RouterConfig{
		ServiceName:      cfg.ServiceName,
		AllowedOrigins:   cfg.AllowedOrigins,
		AuthHandler:      h.Auth,
		AuthMiddleware:   mw.Auth,
		RecipeHandler:    h.Recipe,
		ReservoirHandler: h.Reservoir,
		JobsHandler:      h.Jobs,
		DeviceHandler:    h.Device,
		MonitorHandler:   h.Monitor,
	})
}
