package repos

import (
  "context"
  "time"
  "github.com/google/uuid"
  "gorm.io/datatypes"
  "gorm.io/gorm"
  "github.com/tempero-labs/dispenser-backend/internal/platform/logger"
  "github.com/tempero-labs/dispenser-backend/internal/types"
)

type DeviceRepo interface {
  GetByIDs(ctx context.Context, tx *gorm.DB, ids []uuid.UUID) ([]*types.Device, error)
  GetByHardwareID(ctx context.Context, tx *gorm.DB, hardwareID string) (*types.Device, error)
  Create(ctx context.Context, tx *gorm.DB, devices []*types.Device) ([]*types.Device, error)
  Reassign(ctx context.Context, tx *gorm.DB, deviceID, userID uuid.UUID, fwVersion string) error
  TouchLastSeen(ctx context.Context, tx *gorm.DB, deviceID uuid.UUID, fwVersion string, status datatypes.JSON) error
  ListByUser(ctx context.Context, tx *gorm.DB, userID uuid.UUID) ([]*types.Device, error)
}

type deviceRepo struct {
  db  *gorm.DB
  log *logger.Logger
}

func NewDeviceRepo(db *gorm.DB, baseLog *logger.Logger) DeviceRepo {
  return &deviceRepo{db: db, log: baseLog.With("repo", "DeviceRepo")}
}

func (dr *deviceRepo) GetByIDs(ctx context.Context, tx *gorm.DB, ids []uuid.UUID) ([]*types.Device, error) {
  transaction := tx
  if transaction == nil {
    transaction = dr.db
  }
  var results []*types.Device
  if len(ids) == 0 {
    return results, nil
  }
  if err := transaction.WithContext(ctx).
    Where("id IN ?", ids).
    Find(&results).Error; err != nil {
    return nil, err
  }
  return results, nil
}

func (dr *deviceRepo) GetByHardwareID(ctx context.Context, tx *gorm.DB, hardwareID string) (*types.Device, error) {
  transaction := tx
  if transaction == nil {
    transaction = dr.db
  }
  var device types.Device
  err := transaction.WithContext(ctx).
    Where("hardware_id = ?", hardwareID).
    Limit(1).
    Find(&device).Error
  if err != nil {
    return nil, err
  }
  if device.ID == uuid.Nil {
    return nil, nil
  }
  return &device, nil
}

func (dr *deviceRepo) Create(ctx context.Context, tx *gorm.DB, devices []*types.Device) ([]*types.Device, error) {
  transaction := tx
  if transaction == nil {
    transaction = dr.db
  }
  if len(devices) == 0 {
    return []*types.Device{}, nil
  }
  if err := transaction.WithContext(ctx).Create(&devices).Error; err != nil {
    return nil, err
  }
  return devices, nil
}

func (dr *deviceRepo) Reassign(ctx context.Context, tx *gorm.DB, deviceID, userID uuid.UUID, fwVersion string) error {
  transaction := tx
  if transaction == nil {
    transaction = dr.db
  }
  updates := map[string]interface{}{
    "user_id":    userID,
    "updated_at": time.Now(),
  }
  if fwVersion != "" {
    updates["fw_version"] = fwVersion
  }
  return transaction.WithContext(ctx).
    Model(&types.Device{}).
    Where("id = ?", deviceID).
    Updates(updates).Error
}

func (dr *deviceRepo) TouchLastSeen(ctx context.Context, tx *gorm.DB, deviceID uuid.UUID, fwVersion string, status datatypes.JSON) error {
  transaction := tx
  if transaction == nil {
    transaction = dr.db
  }
  now := time.Now()
  updates := map[string]interface{}{
    "last_seen":  now,
    "updated_at": now,
  }
  if fwVersion != "" {
    updates["fw_version"] = fwVersion
  }
  if status != nil {
    updates["status_json"] = status
  }
  return transaction.WithContext(ctx).
    Model(&types.Device{}).
    Where("id = ?", deviceID).
    Updates(updates).Error
}

func (dr *deviceRepo) ListByUser(ctx context.Context, tx *gorm.DB, userID uuid.UUID) ([]*types.Device, error) {
  transaction := tx
  if transaction == nil {
    transaction = dr.db
  }
  var results []*types.Device
  if err := transaction.WithContext(ctx).
    Where("user_id = ?", userID).
    Order("created_at ASC").
    Find(&results).Error; err != nil {
    return nil, err
  }
  return results, nil
}
