package repos

import (
  "context"
  "github.com/google/uuid"
  "gorm.io/gorm"
  "github.com/tempero-labs/dispenser-backend/internal/platform/logger"
  "github.com/tempero-labs/dispenser-backend/internal/types"
)

type RecipeRepo interface {
  Create(ctx context.Context, tx *gorm.DB, recipes []*types.Recipe) ([]*types.Recipe, error)
  GetByID(ctx context.Context, tx *gorm.DB, recipeID uuid.UUID) (*types.Recipe, error)
  ListByUser(ctx context.Context, tx *gorm.DB, userID uuid.UUID) ([]*types.Recipe, error)
  Delete(ctx context.Context, tx *gorm.DB, recipeID uuid.UUID) error
  DistinctLabelsByUser(ctx context.Context, tx *gorm.DB, userID uuid.UUID) ([]string, error)
}

type recipeRepo struct {
  db  *gorm.DB
  log *logger.Logger
}

func NewRecipeRepo(db *gorm.DB, baseLog *logger.Logger) RecipeRepo {
  return &recipeRepo{db: db, log: baseLog.With("repo", "RecipeRepo")}
}

func (rr *recipeRepo) Create(ctx context.Context, tx *gorm.DB, recipes []*types.Recipe) ([]*types.Recipe, error) {
  transaction := tx
  if transaction == nil {
    transaction = rr.db
  }
  if len(recipes) == 0 {
    return []*types.Recipe{}, nil
  }
  if err := transaction.WithContext(ctx).Create(&recipes).Error; err != nil {
    return nil, err
  }
  return recipes, nil
}

func (rr *recipeRepo) GetByID(ctx context.Context, tx *gorm.DB, recipeID uuid.UUID) (*types.Recipe, error) {
  transaction := tx
  if transaction == nil {
    transaction = rr.db
  }
  var recipe types.Recipe
  err := transaction.WithContext(ctx).
    Preload("Ingredients", func(db *gorm.DB) *gorm.DB {
      return db.Order("position ASC")
    }).
    Where("id = ?", recipeID).
    Limit(1).
    Find(&recipe).Error
  if err != nil {
    return nil, err
  }
  if recipe.ID == uuid.Nil {
    return nil, nil
  }
  return &recipe, nil
}

func (rr *recipeRepo) ListByUser(ctx context.Context, tx *gorm.DB, userID uuid.UUID) ([]*types.Recipe, error) {
  transaction := tx
  if transaction == nil {
    transaction = rr.db
  }
  var results []*types.Recipe
  if err := transaction.WithContext(ctx).
    Preload("Ingredients", func(db *gorm.DB) *gorm.DB {
      return db.Order("position ASC")
    }).
    Where("user_id = ?", userID).
    Order("created_at ASC").
    Find(&results).Error; err != nil {
    return nil, err
  }
  return results, nil
}

func (rr *recipeRepo) Delete(ctx context.Context, tx *gorm.DB, recipeID uuid.UUID) error {
  transaction := tx
  if transaction == nil {
    transaction = rr.db
  }
  return transaction.WithContext(ctx).
    Where("id = ?", recipeID).
    Delete(&types.Recipe{}).Error
}

func (rr *recipeRepo) DistinctLabelsByUser(ctx context.Context, tx *gorm.DB, userID uuid.UUID) ([]string, error) {
  transaction := tx
  if transaction == nil {
    transaction = rr.db
  }
  var labels []string
  if err := transaction.WithContext(ctx).
    Model(&types.RecipeIngredient{}).
    Distinct("recipe_ingredients.label").
    Joins("JOIN recipes ON recipes.id = recipe_ingredients.recipe_id").
    Where("recipes.user_id = ?", userID).
    Pluck("recipe_ingredients.label", &labels).Error; err != nil {
    return nil, err
  }
  return labels, nil
}
