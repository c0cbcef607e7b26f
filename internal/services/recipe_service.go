package services

import (
  "context"
  "fmt"
  "strings"
  "github.com/google/uuid"
  "github.com/tempero-labs/dispenser-backend/internal/platform/apierr"
  "github.com/tempero-labs/dispenser-backend/internal/platform/logger"
  "github.com/tempero-labs/dispenser-backend/internal/repos"
  "github.com/tempero-labs/dispenser-backend/internal/types"
)

const (
  recipeMinIngredients = 1
  recipeMaxIngredients = 4
  recipeMaxPortions    = 20
  ingredientMaxGrams   = 500
  ingredientMaxLabel   = 60
)

type RecipeIngredientInput struct {
  Label         string `json:"label"`
  QuantityGrams int    `json:"quantity_grams"`
}

type CreateRecipeInput struct {
  Name        string                  `json:"name"`
  Portions    int                     `json:"portions"`
  Ingredients []RecipeIngredientInput `json:"ingredients"`
}

type RecipeService interface {
  Create(ctx context.Context, userID uuid.UUID, input CreateRecipeInput) (*types.Recipe, error)
  GetForUser(ctx context.Context, userID, recipeID uuid.UUID) (*types.Recipe, error)
  ListForUser(ctx context.Context, userID uuid.UUID) ([]*types.Recipe, error)
  DeleteForUser(ctx context.Context, userID, recipeID uuid.UUID) error
}

type recipeService struct {
  log        *logger.Logger
  recipeRepo repos.RecipeRepo
}

func NewRecipeService(log *logger.Logger, recipeRepo repos.RecipeRepo) RecipeService {
  return &recipeService{
    log:        log.With("service", "RecipeService"),
    recipeRepo: recipeRepo,
  }
}

func (rs *recipeService) Create(ctx context.Context, userID uuid.UUID, input CreateRecipeInput) (*types.Recipe, error) {
  name := strings.TrimSpace(input.Name)
  if name == "" || len(name) > 120 {
    return nil, apierr.InvalidState("recipe_name_invalid", "recipe name must be 1..120 characters")
  }
  if input.Portions < 1 || input.Portions > recipeMaxPortions {
    return nil, apierr.InvalidState("recipe_portions_invalid", "portions must be 1..%d", recipeMaxPortions)
  }
  if len(input.Ingredients) < recipeMinIngredients || len(input.Ingredients) > recipeMaxIngredients {
    return nil, apierr.InvalidState("recipe_ingredients_invalid", "a recipe needs %d..%d ingredients", recipeMinIngredients, recipeMaxIngredients)
  }
  for _, ing := range input.Ingredients {
    label := strings.TrimSpace(ing.Label)
    if label == "" || len(label) > ingredientMaxLabel {
      return nil, apierr.InvalidState("ingredient_label_invalid", "ingredient label must be 1..%d characters", ingredientMaxLabel)
    }
    if ing.QuantityGrams < 1 || ing.QuantityGrams > ingredientMaxGrams {
      return nil, apierr.InvalidState("ingredient_quantity_invalid", "ingredient quantity must be 1..%d grams", ingredientMaxGrams)
    }
  }

  recipe := &types.Recipe{
    ID:       uuid.New(),
    UserID:   userID,
    Name:     name,
    Portions: input.Portions,
  }
  for i, ing := range input.Ingredients {
    recipe.Ingredients = append(recipe.Ingredients, types.RecipeIngredient{
      ID:            uuid.New(),
      RecipeID:      recipe.ID,
      Position:      i + 1,
      Label:         strings.TrimSpace(ing.Label),
      QuantityGrams: ing.QuantityGrams,
    })
  }
  if _, err := rs.recipeRepo.Create(ctx, nil, []*types.Recipe{recipe}); err != nil {
    return nil, fmt.Errorf("Failed to create recipe: %w", err)
  }
  return recipe, nil
}

func (rs *recipeService) GetForUser(ctx context.Context, userID, recipeID uuid.UUID) (*types.Recipe, error) {
  recipe, err := rs.recipeRepo.GetByID(ctx, nil, recipeID)
  if err != nil {
    return nil, fmt.Errorf("Failed to load recipe: %w", err)
  }
  if recipe == nil || recipe.UserID != userID {
    return nil, apierr.NotFound("recipe_not_found", "recipe does not exist or is not owned by this user")
  }
  return recipe, nil
}

func (rs *recipeService) ListForUser(ctx context.Context, userID uuid.UUID) ([]*types.Recipe, error) {
  return rs.recipeRepo.ListByUser(ctx, nil, userID)
}

func (rs *recipeService) DeleteForUser(ctx context.Context, userID, recipeID uuid.UUID) error {
  recipe, err := rs.recipeRepo.GetByID(ctx, nil, recipeID)
  if err != nil {
    return fmt.Errorf("Failed to load recipe: %w", err)
  }
  if recipe == nil || recipe.UserID != userID {
    return apierr.NotFound("recipe_not_found", "recipe does not exist or is not owned by this user")
  }
  return rs.recipeRepo.Delete(ctx, nil, recipeID)
}
