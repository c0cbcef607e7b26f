package services

import (
  "context"
  "fmt"
  "strings"
  "time"
  "github.com/google/uuid"
  "github.com/tempero-labs/dispenser-backend/internal/platform/apierr"
  "github.com/tempero-labs/dispenser-backend/internal/platform/logger"
  "github.com/tempero-labs/dispenser-backend/internal/repos"
  "github.com/tempero-labs/dispenser-backend/internal/types"
)

type ReservoirSlotInput struct {
  Slot       int      `json:"slot"`
  Label      *string  `json:"label"`
  FlowRate   *float64 `json:"flow_rate_g_per_sec"`
  StockGrams *float64 `json:"stock_grams"`
}

type ReservoirService interface {
  ListForUser(ctx context.Context, userID uuid.UUID) ([]*types.ReservoirConfig, error)
  // UpdateSlots validates and upserts a batch of slot configs for the user.
  UpdateSlots(ctx context.Context, userID uuid.UUID, inputs []ReservoirSlotInput) ([]*types.ReservoirConfig, error)
}

type reservoirService struct {
  log           *logger.Logger
  reservoirRepo repos.ReservoirRepo
  catalog       CatalogService
}

func NewReservoirService(log *logger.Logger, reservoirRepo repos.ReservoirRepo, catalog CatalogService) ReservoirService {
  return &reservoirService{
    log:           log.With("service", "ReservoirService"),
    reservoirRepo: reservoirRepo,
    catalog:       catalog,
  }
}

func (rs *reservoirService) ListForUser(ctx context.Context, userID uuid.UUID) ([]*types.ReservoirConfig, error) {
  return rs.reservoirRepo.ListByUser(ctx, nil, userID)
}

func (rs *reservoirService) UpdateSlots(ctx context.Context, userID uuid.UUID, inputs []ReservoirSlotInput) ([]*types.ReservoirConfig, error) {
  if len(inputs) == 0 {
    return rs.reservoirRepo.ListByUser(ctx, nil, userID)
  }

  seen := map[int]bool{}
  configs := make([]*types.ReservoirConfig, 0, len(inputs))
  for _, in := range inputs {
    if in.Slot < types.ReservoirSlotMin || in.Slot > types.ReservoirSlotMax {
      return nil, apierr.InvalidState("reservoir_slot_invalid", "slot must be %d..%d", types.ReservoirSlotMin, types.ReservoirSlotMax)
    }
    if seen[in.Slot] {
      return nil, apierr.Conflict("reservoir_slot_duplicate", "slot %d appears more than once in the update", in.Slot).
        WithDetail("slot", in.Slot)
    }
    seen[in.Slot] = true

    var label *string
    if in.Label != nil && strings.TrimSpace(*in.Label) != "" {
      normalized := strings.ToLower(strings.TrimSpace(*in.Label))
      valid, err := rs.catalog.IsValidLabel(ctx, userID, normalized)
      if err != nil {
        return nil, fmt.Errorf("Failed to validate label: %w", err)
      }
      if !valid {
        return nil, apierr.InvalidState("reservoir_label_unknown", "label %q is not in the spice catalog", normalized).
          WithDetail("label", normalized)
      }
      label = &normalized
    }
    if in.FlowRate != nil && *in.FlowRate <= 0 {
      return nil, apierr.InvalidState("reservoir_flow_rate_invalid", "flow rate must be positive or null")
    }
    if in.StockGrams != nil && *in.StockGrams < 0 {
      return nil, apierr.InvalidState("reservoir_stock_invalid", "stock must be non-negative or null")
    }

    configs = append(configs, &types.ReservoirConfig{
      ID:          uuid.New(),
      UserID:      userID,
      Slot:        in.Slot,
      Label:       label,
      FlowRateGPS: in.FlowRate,
      StockGrams:  in.StockGrams,
      UpdatedAt:   time.Now(),
    })
  }

  if err := rs.reservoirRepo.UpsertSlots(ctx, nil, configs); err != nil {
    return nil, fmt.Errorf("Failed to upsert reservoir configs: %w", err)
  }
  return rs.reservoirRepo.ListByUser(ctx, nil, userID)
}
