package types

import (
  "time"
  "github.com/google/uuid"
)

type User struct {
  ID           uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
  Name         string    `gorm:"size:80;uniqueIndex;not null;column:name" json:"name"`
  PasswordHash string    `gorm:"size:255;not null;column:password_hash" json:"-"`
  CreatedAt    time.Time `gorm:"not null" json:"created_at"`
  UpdatedAt    time.Time `gorm:"not null" json:"updated_at"`
}

func (User) TableName() string {
  return "users"
}
