package services

import (
  "context"
  "sort"
  "strings"
  "github.com/google/uuid"
  "github.com/tempero-labs/dispenser-backend/internal/platform/logger"
  "github.com/tempero-labs/dispenser-backend/internal/repos"
)

// defaultSpices seeds every user's catalog; labels from the user's own
// recipes extend it.
var defaultSpices = []string{
  "sal",
  "pimenta",
  "pimenta do reino",
  "oregano",
  "paprica",
  "cominho",
  "alho em po",
  "cebola em po",
}

type CatalogService interface {
  // LabelsForUser returns the labels valid as reservoir labels for a user:
  // the default list plus labels seen in the user's recipes, deduplicated
  // case-insensitively.
  LabelsForUser(ctx context.Context, userID uuid.UUID) ([]string, error)
  IsValidLabel(ctx context.Context, userID uuid.UUID, label string) (bool, error)
}

type catalogService struct {
  log        *logger.Logger
  recipeRepo repos.RecipeRepo
}

func NewCatalogService(log *logger.Logger, recipeRepo repos.RecipeRepo) CatalogService {
  return &catalogService{
    log:        log.With("service", "CatalogService"),
    recipeRepo: recipeRepo,
  }
}

func (cs *catalogService) LabelsForUser(ctx context.Context, userID uuid.UUID) ([]string, error) {
  recipeLabels, err := cs.recipeRepo.DistinctLabelsByUser(ctx, nil, userID)
  if err != nil {
    return nil, err
  }
  seen := make(map[string]bool, len(defaultSpices)+len(recipeLabels))
  out := make([]string, 0, len(defaultSpices)+len(recipeLabels))
  for _, label := range append(append([]string{}, defaultSpices...), recipeLabels...) {
    normalized := strings.ToLower(strings.TrimSpace(label))
    if normalized == "" || seen[normalized] {
      continue
    }
    seen[normalized] = true
    out = append(out, normalized)
  }
  sort.Strings(out)
  return out, nil
}

func (cs *catalogService) IsValidLabel(ctx context.Context, userID uuid.UUID, label string) (bool, error) {
  labels, err := cs.LabelsForUser(ctx, userID)
  if err != nil {
    return false, err
  }
  normalized := strings.ToLower(strings.TrimSpace(label))
  for _, l := range labels {
    if l == normalized {
      return true, nil
    }
  }
  return false, nil
}
