package types

import (
  "time"
  "github.com/google/uuid"
  "gorm.io/datatypes"
)

type Device struct {
  ID              uuid.UUID      `gorm:"type:uuid;primaryKey" json:"id"`
  UserID          uuid.UUID      `gorm:"type:uuid;index;not null" json:"user_id"`
  HardwareID      string         `gorm:"size:64;uniqueIndex;not null;column:hardware_id" json:"hardware_id"`
  Name            string         `gorm:"size:120" json:"name"`
  FirmwareVersion string         `gorm:"size:32;column:fw_version" json:"fw_version"`
  Status          datatypes.JSON `gorm:"column:status_json" json:"status"`
  LastSeen        *time.Time     `gorm:"column:last_seen" json:"last_seen"`
  CreatedAt       time.Time      `gorm:"not null" json:"created_at"`
  UpdatedAt       time.Time      `gorm:"not null" json:"updated_at"`
}

func (Device) TableName() string {
  return "devices"
}

type DeviceClaim struct {
  ID        uuid.UUID  `gorm:"type:uuid;primaryKey" json:"id"`
  UserID    uuid.UUID  `gorm:"type:uuid;index;not null" json:"user_id"`
  Code      string     `gorm:"size:6;uniqueIndex;not null" json:"code"`
  ExpiresAt time.Time  `gorm:"not null" json:"expires_at"`
  UsedAt    *time.Time `json:"used_at"`
  CreatedAt time.Time  `gorm:"not null" json:"created_at"`
}

func (DeviceClaim) TableName() string {
  return "device_claims"
}
