package app

import (
	"gorm.io/gorm"

	"github.com/tempero-labs/dispenser-backend/internal/platform/logger"
	"github.com/tempero-labs/dispenser-backend/internal/services"
	"github.com/tempero-labs/dispenser-backend/internal/sse"
	"github.com/tempero-labs/dispenser-backend/internal/sse/bus"
)

type Services struct {
	Auth       services.AuthService
	Catalog    services.CatalogService
	Recipe     services.RecipeService
	Reservoir  services.ReservoirService
	Resolver   services.ResolverService
	Notifier   services.JobNotifier
	Job        services.JobService
	Completion services.CompletionService
	Device     services.DeviceService
}

func wireServices(db *gorm.DB, log *logger.Logger, cfg Config, r Repos, hub *sse.Hub, eventBus bus.Bus) Services {
	log.Info("Wiring services...")
	auth := services.NewAuthService(db, log, r.User, r.Device, cfg.JWTSecretKey, cfg.UserTokenTTL)
	catalog := services.NewCatalogService(log, r.Recipe)
	resolver := services.NewResolverService(log)
	notifier := services.NewJobNotifier(log, hub, eventBus)
	return Services{
		Auth:       auth,
		Catalog:    catalog,
		Recipe:     services.NewRecipeService(log, r.Recipe),
		Reservoir:  services.NewReservoirService(log, r.Reservoir, catalog),
		Resolver:   resolver,
		Notifier:   notifier,
		Job:        services.NewJobService(db, log, r.Job, r.Recipe, r.Reservoir, resolver, notifier),
		Completion: services.NewCompletionService(db, log, r.Job, r.Reservoir, notifier),
		Device:     services.NewDeviceService(db, log, r.Device, r.DeviceClaim, auth),
	}
}
