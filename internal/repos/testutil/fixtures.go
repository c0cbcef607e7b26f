package testutil

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/tempero-labs/dispenser-backend/internal/types"
)

func SeedUser(tb testing.TB, ctx context.Context, db *gorm.DB, name string) *types.User {
	tb.Helper()
	u := &types.User{
		ID:           uuid.New(),
		Name:         name,
		PasswordHash: "pw",
	}
	if err := db.WithContext(ctx).Create(u).Error; err != nil {
		tb.Fatalf("seed user: %v", err)
	}
	return u
}

// IngredientSpec is a label/grams pair used to seed recipe ingredients in a
// fixed order.
type IngredientSpec struct {
	Label string
	Grams int
}

func SeedRecipe(tb testing.TB, ctx context.Context, db *gorm.DB, userID uuid.UUID, portions int, ingredients []IngredientSpec) *types.Recipe {
	tb.Helper()
	r := &types.Recipe{
		ID:       uuid.New(),
		UserID:   userID,
		Name:     "recipe",
		Portions: portions,
	}
	for i, ing := range ingredients {
		r.Ingredients = append(r.Ingredients, types.RecipeIngredient{
			ID:            uuid.New(),
			RecipeID:      r.ID,
			Position:      i + 1,
			Label:         ing.Label,
			QuantityGrams: ing.Grams,
		})
	}
	if err := db.WithContext(ctx).Create(r).Error; err != nil {
		tb.Fatalf("seed recipe: %v", err)
	}
	return r
}

// SeedReservoir configures one slot. Pass nil flow for an uncalibrated slot
// and nil stock for unknown inventory.
func SeedReservoir(tb testing.TB, ctx context.Context, db *gorm.DB, userID uuid.UUID, slot int, label string, flow, stock *float64) *types.ReservoirConfig {
	tb.Helper()
	cfg := &types.ReservoirConfig{
		ID:          uuid.New(),
		UserID:      userID,
		Slot:        slot,
		FlowRateGPS: flow,
		StockGrams:  stock,
	}
	if label != "" {
		cfg.Label = &label
	}
	if err := db.WithContext(ctx).Create(cfg).Error; err != nil {
		tb.Fatalf("seed reservoir: %v", err)
	}
	return cfg
}

func SeedDevice(tb testing.TB, ctx context.Context, db *gorm.DB, userID uuid.UUID, hardwareID string) *types.Device {
	tb.Helper()
	d := &types.Device{
		ID:         uuid.New(),
		UserID:     userID,
		HardwareID: hardwareID,
		Name:       "dispenser",
	}
	if err := db.WithContext(ctx).Create(d).Error; err != nil {
		tb.Fatalf("seed device: %v", err)
	}
	return d
}

func SeedClaim(tb testing.TB, ctx context.Context, db *gorm.DB, userID uuid.UUID, code string, expiresAt time.Time) *types.DeviceClaim {
	tb.Helper()
	c := &types.DeviceClaim{
		ID:        uuid.New(),
		UserID:    userID,
		Code:      code,
		ExpiresAt: expiresAt,
	}
	if err := db.WithContext(ctx).Create(c).Error; err != nil {
		tb.Fatalf("seed claim: %v", err)
	}
	return c
}

func Float(v float64) *float64 { return &v }
