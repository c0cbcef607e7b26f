package types

import (
  "time"
  "github.com/google/uuid"
)

// Recipe carries its base serving size; job creation scales ingredient
// quantities by requested_servings / portions.
type Recipe struct {
  ID          uuid.UUID          `gorm:"type:uuid;primaryKey" json:"id"`
  UserID      uuid.UUID          `gorm:"type:uuid;index;not null" json:"user_id"`
  Name        string             `gorm:"size:120;not null" json:"name"`
  Portions    int                `gorm:"not null;default:1" json:"portions"`
  Ingredients []RecipeIngredient `gorm:"constraint:OnDelete:CASCADE;foreignKey:RecipeID;references:ID" json:"ingredients"`
  CreatedAt   time.Time          `gorm:"not null" json:"created_at"`
  UpdatedAt   time.Time          `gorm:"not null" json:"updated_at"`
}

func (Recipe) TableName() string {
  return "recipes"
}

type RecipeIngredient struct {
  ID            uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
  RecipeID      uuid.UUID `gorm:"type:uuid;index;not null" json:"recipe_id"`
  Position      int       `gorm:"not null" json:"position"`
  Label         string    `gorm:"size:60;not null" json:"label"`
  QuantityGrams int       `gorm:"not null" json:"quantity_grams"`
}

func (RecipeIngredient) TableName() string {
  return "recipe_ingredients"
}
