package db

import (
  "fmt"
  "gorm.io/driver/postgres"
  "gorm.io/gorm"
  "github.com/tempero-labs/dispenser-backend/internal/platform/logger"
  "github.com/tempero-labs/dispenser-backend/internal/types"
  "github.com/tempero-labs/dispenser-backend/internal/utils"
)

type PostgresService struct {
  db  *gorm.DB
  log *logger.Logger
}

func NewPostgresService(log *logger.Logger) (*PostgresService, error) {
  serviceLog := log.With("service", "PostgresService")

  host := utils.GetEnv("POSTGRES_HOST", "localhost", log)
  port := utils.GetEnv("POSTGRES_PORT", "5432", log)
  user := utils.GetEnv("POSTGRES_USER", "postgres", log)
  password := utils.GetEnv("POSTGRES_PASSWORD", "", log)
  name := utils.GetEnv("POSTGRES_NAME", "dispenser", log)

  dsn := fmt.Sprintf("postgres://%s:%s@%s:%s/%s?sslmode=disable", user, password, host, port, name)

  serviceLog.Info("Connecting to Postgres...")
  gdb, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
    DisableForeignKeyConstraintWhenMigrating: true,
  })
  if err != nil {
    serviceLog.Error("Failed to connect to Postgres", "error", err)
    return nil, fmt.Errorf("Failed to connect to Postgres: %w", err)
  }

  return &PostgresService{db: gdb, log: serviceLog}, nil
}

func (s *PostgresService) AutoMigrateAll() error {
  s.log.Info("Auto migrating postgres tables...")
  err := s.db.AutoMigrate(
    &types.User{},
    &types.Recipe{},
    &types.RecipeIngredient{},
    &types.ReservoirConfig{},
    &types.Device{},
    &types.DeviceClaim{},
    &types.Job{},
    &types.JobItem{},
  )
  if err != nil {
    s.log.Error("Auto migration failed for postgres tables", "error", err)
    return err
  }

  // Storage-level backstop for the one-active-job-per-user admission rule.
  // Two concurrent creations racing past the application check cannot both
  // insert; the loser hits a 23505 that the job service maps to Conflict.
  if err := s.db.Exec(`
    CREATE UNIQUE INDEX IF NOT EXISTS uq_jobs_active_per_user
    ON "jobs" ("user_id")
    WHERE status IN ('queued', 'running')
  `).Error; err != nil {
    return fmt.Errorf("Failed to create uq_jobs_active_per_user: %w", err)
  }

  s.log.Info("Configuring foreign key relationships for postgres tables...")
  fks := []struct {
    name string
    sql  string
  }{
    {"fk_recipes_user_id", `ALTER TABLE "recipes" ADD CONSTRAINT "fk_recipes_user_id" FOREIGN KEY ("user_id") REFERENCES "users"("id") ON DELETE CASCADE`},
    {"fk_recipe_ingredients_recipe_id", `ALTER TABLE "recipe_ingredients" ADD CONSTRAINT "fk_recipe_ingredients_recipe_id" FOREIGN KEY ("recipe_id") REFERENCES "recipes"("id") ON DELETE CASCADE`},
    {"fk_reservoir_configs_user_id", `ALTER TABLE "reservoir_configs" ADD CONSTRAINT "fk_reservoir_configs_user_id" FOREIGN KEY ("user_id") REFERENCES "users"("id") ON DELETE CASCADE`},
    {"fk_devices_user_id", `ALTER TABLE "devices" ADD CONSTRAINT "fk_devices_user_id" FOREIGN KEY ("user_id") REFERENCES "users"("id") ON DELETE CASCADE`},
    {"fk_device_claims_user_id", `ALTER TABLE "device_claims" ADD CONSTRAINT "fk_device_claims_user_id" FOREIGN KEY ("user_id") REFERENCES "users"("id") ON DELETE CASCADE`},
    {"fk_jobs_user_id", `ALTER TABLE "jobs" ADD CONSTRAINT "fk_jobs_user_id" FOREIGN KEY ("user_id") REFERENCES "users"("id") ON DELETE CASCADE`},
    {"fk_jobs_recipe_id", `ALTER TABLE "jobs" ADD CONSTRAINT "fk_jobs_recipe_id" FOREIGN KEY ("recipe_id") REFERENCES "recipes"("id") ON DELETE SET NULL`},
    {"fk_job_items_job_id", `ALTER TABLE "job_items" ADD CONSTRAINT "fk_job_items_job_id" FOREIGN KEY ("job_id") REFERENCES "jobs"("id") ON DELETE CASCADE`},
  }
  for _, fk := range fks {
    if err := s.db.Exec(fmt.Sprintf(`
      DO $$ BEGIN
        IF NOT EXISTS (SELECT 1 FROM pg_constraint WHERE conname = '%s') THEN
          %s;
        END IF;
      END $$;
    `, fk.name, fk.sql)).Error; err != nil {
      return fmt.Errorf("Failed to add %s: %w", fk.name, err)
    }
  }
  return nil
}

func (s *PostgresService) DB() *gorm.DB {
  return s.db
}
