package app

import (
	"gorm.io/gorm"

	"github.com/tempero-labs/dispenser-backend/internal/platform/logger"
	"github.com/tempero-labs/dispenser-backend/internal/repos"
)

type Repos struct {
	User        repos.UserRepo
	Recipe      repos.RecipeRepo
	Reservoir   repos.ReservoirRepo
	Device      repos.DeviceRepo
	DeviceClaim repos.DeviceClaimRepo
	Job         repos.JobRepo
}

func wireRepos(db *gorm.DB, log *logger.Logger) Repos {
	log.Info("Wiring repos...")
	return Repos{
		User:        repos.NewUserRepo(db, log),
		Recipe:      repos.NewRecipeRepo(db, log),
		Reservoir:   repos.NewReservoirRepo(db, log),
		Device:      repos.NewDeviceRepo(db, log),
		DeviceClaim: repos.NewDeviceClaimRepo(db, log),
		Job:         repos.NewJobRepo(db, log),
	}
}
