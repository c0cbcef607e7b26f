package types

import (
  "time"
  "github.com/google/uuid"
)

// ReservoirConfig describes one of the four physical slots for a user.
// Nil FlowRate means uncalibrated; nil StockGrams means unknown stock.
type ReservoirConfig struct {
  ID           uuid.UUID  `gorm:"type:uuid;primaryKey" json:"id"`
  UserID       uuid.UUID  `gorm:"type:uuid;not null;uniqueIndex:uq_reservoir_user_slot" json:"user_id"`
  Slot         int        `gorm:"not null;uniqueIndex:uq_reservoir_user_slot" json:"slot"`
  Label        *string    `gorm:"size:80" json:"label"`
  FlowRateGPS  *float64   `gorm:"column:flow_rate_g_per_sec" json:"flow_rate_g_per_sec"`
  StockGrams   *float64   `gorm:"column:stock_grams" json:"stock_grams"`
  UpdatedAt    time.Time  `gorm:"not null" json:"updated_at"`
}

func (ReservoirConfig) TableName() string {
  return "reservoir_configs"
}

const (
  ReservoirSlotMin = 1
  ReservoirSlotMax = 4
)
