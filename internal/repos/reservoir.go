package repos

import (
  "context"
  "time"
  "github.com/google/uuid"
  "gorm.io/gorm"
  "gorm.io/gorm/clause"
  "github.com/tempero-labs/dispenser-backend/internal/platform/logger"
  "github.com/tempero-labs/dispenser-backend/internal/types"
)

type ReservoirRepo interface {
  ListByUser(ctx context.Context, tx *gorm.DB, userID uuid.UUID) ([]*types.ReservoirConfig, error)
  UpsertSlots(ctx context.Context, tx *gorm.DB, configs []*types.ReservoirConfig) error
  // DeductStock subtracts grams from a slot's stock, clamped at zero. Slots
  // with unknown (nil) stock are left untouched. Callers serialize per job.
  DeductStock(ctx context.Context, tx *gorm.DB, userID uuid.UUID, slot int, grams float64) error
}

type reservoirRepo struct {
  db  *gorm.DB
  log *logger.Logger
}

func NewReservoirRepo(db *gorm.DB, baseLog *logger.Logger) ReservoirRepo {
  return &reservoirRepo{db: db, log: baseLog.With("repo", "ReservoirRepo")}
}

func (rr *reservoirRepo) ListByUser(ctx context.Context, tx *gorm.DB, userID uuid.UUID) ([]*types.ReservoirConfig, error) {
  transaction := tx
  if transaction == nil {
    transaction = rr.db
  }
  var results []*types.ReservoirConfig
  if err := transaction.WithContext(ctx).
    Where("user_id = ?", userID).
    Order("slot ASC").
    Find(&results).Error; err != nil {
    return nil, err
  }
  return results, nil
}

func (rr *reservoirRepo) UpsertSlots(ctx context.Context, tx *gorm.DB, configs []*types.ReservoirConfig) error {
  transaction := tx
  if transaction == nil {
    transaction = rr.db
  }
  if len(configs) == 0 {
    return nil
  }
  return transaction.WithContext(ctx).
    Clauses(clause.OnConflict{
      Columns:   []clause.Column{{Name: "user_id"}, {Name: "slot"}},
      DoUpdates: clause.AssignmentColumns([]string{"label", "flow_rate_g_per_sec", "stock_grams", "updated_at"}),
    }).
    Create(&configs).Error
}

func (rr *reservoirRepo) DeductStock(ctx context.Context, tx *gorm.DB, userID uuid.UUID, slot int, grams float64) error {
  transaction := tx
  if transaction == nil {
    transaction = rr.db
  }
  if grams <= 0 {
    return nil
  }
  var cfg types.ReservoirConfig
  err := transaction.WithContext(ctx).
    Where("user_id = ? AND slot = ?", userID, slot).
    Limit(1).
    Find(&cfg).Error
  if err != nil {
    return err
  }
  if cfg.ID == uuid.Nil || cfg.StockGrams == nil {
    return nil
  }
  remaining := *cfg.StockGrams - grams
  if remaining < 0 {
    remaining = 0
  }
  return transaction.WithContext(ctx).
    Model(&types.ReservoirConfig{}).
    Where("id = ?", cfg.ID).
    Updates(map[string]interface{}{
      "stock_grams": remaining,
      "updated_at":  time.Now(),
    }).Error
}
