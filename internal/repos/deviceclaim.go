package repos

import (
  "context"
  "time"
  "github.com/google/uuid"
  "gorm.io/gorm"
  "github.com/tempero-labs/dispenser-backend/internal/platform/logger"
  "github.com/tempero-labs/dispenser-backend/internal/types"
)

type DeviceClaimRepo interface {
  Create(ctx context.Context, tx *gorm.DB, claims []*types.DeviceClaim) ([]*types.DeviceClaim, error)
  CodeInUse(ctx context.Context, tx *gorm.DB, code string) (bool, error)
  // ConsumeCode atomically marks an unused, unexpired claim as used and
  // returns it. Returns nil when the code is unknown, expired or already
  // consumed; the guarded UPDATE makes a second redeem lose the race.
  ConsumeCode(ctx context.Context, tx *gorm.DB, code string) (*types.DeviceClaim, error)
}

type deviceClaimRepo struct {
  db  *gorm.DB
  log *logger.Logger
}

func NewDeviceClaimRepo(db *gorm.DB, baseLog *logger.Logger) DeviceClaimRepo {
  return &deviceClaimRepo{db: db, log: baseLog.With("repo", "DeviceClaimRepo")}
}

func (cr *deviceClaimRepo) Create(ctx context.Context, tx *gorm.DB, claims []*types.DeviceClaim) ([]*types.DeviceClaim, error) {
  transaction := tx
  if transaction == nil {
    transaction = cr.db
  }
  if len(claims) == 0 {
    return []*types.DeviceClaim{}, nil
  }
  if err := transaction.WithContext(ctx).Create(&claims).Error; err != nil {
    return nil, err
  }
  return claims, nil
}

func (cr *deviceClaimRepo) CodeInUse(ctx context.Context, tx *gorm.DB, code string) (bool, error) {
  transaction := tx
  if transaction == nil {
    transaction = cr.db
  }
  var count int64
  if err := transaction.WithContext(ctx).
    Model(&types.DeviceClaim{}).
    Where("code = ?", code).
    Count(&count).Error; err != nil {
    return false, err
  }
  return count > 0, nil
}

func (cr *deviceClaimRepo) ConsumeCode(ctx context.Context, tx *gorm.DB, code string) (*types.DeviceClaim, error) {
  transaction := tx
  if transaction == nil {
    transaction = cr.db
  }
  now := time.Now()
  res := transaction.WithContext(ctx).
    Model(&types.DeviceClaim{}).
    Where("code = ? AND used_at IS NULL AND expires_at > ?", code, now).
    Update("used_at", now)
  if res.Error != nil {
    return nil, res.Error
  }
  if res.RowsAffected == 0 {
    return nil, nil
  }
  var claim types.DeviceClaim
  if err := transaction.WithContext(ctx).
    Where("code = ?", code).
    Limit(1).
    Find(&claim).Error; err != nil {
    return nil, err
  }
  if claim.ID == uuid.Nil {
    return nil, nil
  }
  return &claim, nil
}
