package services

import (
	"context"
	"sort"
	"testing"

	"github.com/tempero-labs/dispenser-backend/internal/repos"
	"github.com/tempero-labs/dispenser-backend/internal/repos/testutil"
)

func TestCatalogMergesDefaultsWithRecipeLabels(t *testing.T) {
	db := testutil.DB(t)
	log := testutil.Logger(t)
	ctx := context.Background()

	catalog := NewCatalogService(log, repos.NewRecipeRepo(db, log))
	user := testutil.SeedUser(t, ctx, db, "maria")

	// "Sal" duplicates a default (different case); "Curry Madras" is new.
	testutil.SeedRecipe(t, ctx, db, user.ID, 1, []testutil.IngredientSpec{
		{Label: "SAL", Grams: 5},
		{Label: "Curry Madras", Grams: 5},
	})

	labels, err := catalog.LabelsForUser(ctx, user.ID)
	if err != nil {
		t.Fatalf("LabelsForUser: %v", err)
	}
	if !sort.StringsAreSorted(labels) {
		t.Fatalf("labels not sorted: %v", labels)
	}
	count := map[string]int{}
	for _, l := range labels {
		count[l]++
	}
	if count["sal"] != 1 {
		t.Fatalf("sal appears %d times, want deduplicated once", count["sal"])
	}
	if count["curry madras"] != 1 {
		t.Fatalf("labels = %v, want recipe label curry madras included", labels)
	}

	for _, candidate := range []string{"curry madras", "  Curry MADRAS "} {
		ok, err := catalog.IsValidLabel(ctx, user.ID, candidate)
		if err != nil || !ok {
			t.Fatalf("IsValidLabel(%q) = %v, %v, want true", candidate, ok, err)
		}
	}
	ok, err := catalog.IsValidLabel(ctx, user.ID, "unobtainium")
	if err != nil || ok {
		t.Fatalf("IsValidLabel(unknown) = %v, %v, want false", ok, err)
	}
}

func TestCatalogIsPerUser(t *testing.T) {
	db := testutil.DB(t)
	log := testutil.Logger(t)
	ctx := context.Background()

	catalog := NewCatalogService(log, repos.NewRecipeRepo(db, log))
	maria := testutil.SeedUser(t, ctx, db, "maria")
	joao := testutil.SeedUser(t, ctx, db, "joao")
	testutil.SeedRecipe(t, ctx, db, maria.ID, 1, []testutil.IngredientSpec{{Label: "Za'atar", Grams: 5}})

	ok, err := catalog.IsValidLabel(ctx, joao.ID, "za'atar")
	if err != nil || ok {
		t.Fatalf("foreign recipe label leaked into catalog: %v, %v", ok, err)
	}
}
