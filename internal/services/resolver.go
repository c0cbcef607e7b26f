package services

import (
  "sort"
  "strings"
  "github.com/tempero-labs/dispenser-backend/internal/platform/apierr"
  "github.com/tempero-labs/dispenser-backend/internal/platform/logger"
  "github.com/tempero-labs/dispenser-backend/internal/types"
)

// ResolvedItem is one ingredient mapped onto a physical reservoir with its
// scaled quantity and computed run time.
type ResolvedItem struct {
  Slot            int     `json:"slot"`
  Label           string  `json:"label"`
  QuantityGrams   float64 `json:"quantity_grams"`
  FlowRateGPS     float64 `json:"flow_rate_g_per_sec"`
  DurationSeconds float64 `json:"duration_seconds"`
}

// Resolution partitions a recipe's ingredients into three disjoint outcomes.
// Any missing or uncalibrated label blocks job creation.
type Resolution struct {
  Items              []ResolvedItem
  MissingLabels      []string
  UncalibratedLabels []string
}

func (r *Resolution) Blocked() bool {
  return len(r.MissingLabels) > 0 || len(r.UncalibratedLabels) > 0
}

type ResolverService interface {
  // Resolve maps ingredients onto the user's reservoir configs and scales
  // quantities by requestedServings/recipePortions. Pure with respect to
  // inventory: stock is never read or written here.
  Resolve(configs []*types.ReservoirConfig, ingredients []types.RecipeIngredient, requestedServings, recipePortions int) (*Resolution, error)
}

type resolverService struct {
  log *logger.Logger
}

func NewResolverService(log *logger.Logger) ResolverService {
  return &resolverService{log: log.With("service", "ResolverService")}
}

func (rs *resolverService) Resolve(configs []*types.ReservoirConfig, ingredients []types.RecipeIngredient, requestedServings, recipePortions int) (*Resolution, error) {
  if recipePortions <= 0 {
    return nil, apierr.InvalidState("recipe_portions_invalid", "recipe has no positive portion count")
  }
  if requestedServings <= 0 {
    return nil, apierr.InvalidState("requested_servings_invalid", "requested servings must be positive")
  }

  scale := float64(requestedServings) / float64(recipePortions)

  res := &Resolution{}
  for _, ing := range ingredients {
    cfg := pickReservoir(configs, ing.Label)
    if cfg == nil {
      res.MissingLabels = append(res.MissingLabels, ing.Label)
      continue
    }
    flow := 0.0
    if cfg.FlowRateGPS != nil && *cfg.FlowRateGPS > 0 {
      flow = *cfg.FlowRateGPS
    }
    if flow == 0 {
      res.UncalibratedLabels = append(res.UncalibratedLabels, ing.Label)
      continue
    }
    quantity := float64(ing.QuantityGrams) * scale
    res.Items = append(res.Items, ResolvedItem{
      Slot:            cfg.Slot,
      Label:           ing.Label,
      QuantityGrams:   quantity,
      FlowRateGPS:     flow,
      DurationSeconds: quantity / flow,
    })
  }
  return res, nil
}

// pickReservoir chooses among the user's configs whose label matches the
// ingredient case-insensitively. Calibrated slots win over uncalibrated ones;
// the lowest slot number breaks ties, keeping resolution deterministic.
func pickReservoir(configs []*types.ReservoirConfig, label string) *types.ReservoirConfig {
  var matches []*types.ReservoirConfig
  for _, cfg := range configs {
    if cfg == nil || cfg.Label == nil {
      continue
    }
    if strings.EqualFold(strings.TrimSpace(*cfg.Label), strings.TrimSpace(label)) {
      matches = append(matches, cfg)
    }
  }
  if len(matches) == 0 {
    return nil
  }
  sort.SliceStable(matches, func(i, j int) bool {
    ci, cj := matches[i], matches[j]
    calibratedI := ci.FlowRateGPS != nil && *ci.FlowRateGPS > 0
    calibratedJ := cj.FlowRateGPS != nil && *cj.FlowRateGPS > 0
    if calibratedI != calibratedJ {
      return calibratedI
    }
    return ci.Slot < cj.Slot
  })
  return matches[0]
}
