package services

import (
	"context"
	"testing"

	"github.com/google/uuid"

	"github.com/tempero-labs/dispenser-backend/internal/platform/apierr"
	"github.com/tempero-labs/dispenser-backend/internal/repos"
	"github.com/tempero-labs/dispenser-backend/internal/repos/testutil"
	"gorm.io/gorm"
)

func newRecipeFixture(t *testing.T) (RecipeService, *gorm.DB, uuid.UUID) {
	t.Helper()
	db := testutil.DB(t)
	log := testutil.Logger(t)
	user := testutil.SeedUser(t, context.Background(), db, "maria")
	return NewRecipeService(log, repos.NewRecipeRepo(db, log)), db, user.ID
}

func validRecipeInput() CreateRecipeInput {
	return CreateRecipeInput{
		Name:     "Tempero da casa",
		Portions: 2,
		Ingredients: []RecipeIngredientInput{
			{Label: "Sal", QuantityGrams: 10},
			{Label: "Pimenta", QuantityGrams: 5},
		},
	}
}

func TestRecipeCreateAndRead(t *testing.T) {
	svc, _, userID := newRecipeFixture(t)
	ctx := context.Background()

	created, err := svc.Create(ctx, userID, validRecipeInput())
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	got, err := svc.GetForUser(ctx, userID, created.ID)
	if err != nil {
		t.Fatalf("GetForUser: %v", err)
	}
	if got.Portions != 2 || len(got.Ingredients) != 2 {
		t.Fatalf("recipe = %+v, want 2 portions and 2 ingredients", got)
	}
	// Ingredients come back in authoring order.
	if got.Ingredients[0].Label != "Sal" || got.Ingredients[1].Position != 2 {
		t.Fatalf("ingredients = %+v, want ordered by position", got.Ingredients)
	}

	list, err := svc.ListForUser(ctx, userID)
	if err != nil || len(list) != 1 {
		t.Fatalf("ListForUser = %d items, %v, want 1, nil", len(list), err)
	}
}

func TestRecipeCreateValidation(t *testing.T) {
	svc, _, userID := newRecipeFixture(t)
	ctx := context.Background()

	cases := []struct {
		name   string
		mutate func(*CreateRecipeInput)
	}{
		{"empty name", func(in *CreateRecipeInput) { in.Name = "  " }},
		{"zero portions", func(in *CreateRecipeInput) { in.Portions = 0 }},
		{"too many portions", func(in *CreateRecipeInput) { in.Portions = 21 }},
		{"no ingredients", func(in *CreateRecipeInput) { in.Ingredients = nil }},
		{"too many ingredients", func(in *CreateRecipeInput) {
			in.Ingredients = []RecipeIngredientInput{
				{Label: "a", QuantityGrams: 1}, {Label: "b", QuantityGrams: 1},
				{Label: "c", QuantityGrams: 1}, {Label: "d", QuantityGrams: 1},
				{Label: "e", QuantityGrams: 1},
			}
		}},
		{"zero grams", func(in *CreateRecipeInput) { in.Ingredients[0].QuantityGrams = 0 }},
		{"too many grams", func(in *CreateRecipeInput) { in.Ingredients[0].QuantityGrams = 501 }},
		{"blank label", func(in *CreateRecipeInput) { in.Ingredients[0].Label = " " }},
	}
	for _, tc := range cases {
		in := validRecipeInput()
		tc.mutate(&in)
		if _, err := svc.Create(ctx, userID, in); apierr.KindOf(err) != apierr.KindInvalidState {
			t.Fatalf("%s: err = %v, want invalid state", tc.name, err)
		}
	}
}

func TestRecipeOwnershipEnforced(t *testing.T) {
	svc, db, userID := newRecipeFixture(t)
	ctx := context.Background()

	created, err := svc.Create(ctx, userID, validRecipeInput())
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	other := testutil.SeedUser(t, ctx, db, "joao")

	if _, err := svc.GetForUser(ctx, other.ID, created.ID); apierr.KindOf(err) != apierr.KindNotFound {
		t.Fatalf("foreign get err = %v, want not found", err)
	}
	if err := svc.DeleteForUser(ctx, other.ID, created.ID); apierr.KindOf(err) != apierr.KindNotFound {
		t.Fatalf("foreign delete err = %v, want not found", err)
	}

	if err := svc.DeleteForUser(ctx, userID, created.ID); err != nil {
		t.Fatalf("DeleteForUser: %v", err)
	}
	if _, err := svc.GetForUser(ctx, userID, created.ID); apierr.KindOf(err) != apierr.KindNotFound {
		t.Fatalf("deleted get err = %v, want not found", err)
	}
}
