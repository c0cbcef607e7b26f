package services

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/tempero-labs/dispenser-backend/internal/platform/apierr"
	"github.com/tempero-labs/dispenser-backend/internal/repos"
	"github.com/tempero-labs/dispenser-backend/internal/repos/testutil"
)

func newReservoirFixture(t *testing.T) (ReservoirService, *gorm.DB, uuid.UUID) {
	t.Helper()
	db := testutil.DB(t)
	log := testutil.Logger(t)
	catalog := NewCatalogService(log, repos.NewRecipeRepo(db, log))
	svc := NewReservoirService(log, repos.NewReservoirRepo(db, log), catalog)
	user := testutil.SeedUser(t, context.Background(), db, "maria")
	return svc, db, user.ID
}

func str(s string) *string { return &s }

func TestReservoirUpdateUpsertsSlots(t *testing.T) {
	svc, _, userID := newReservoirFixture(t)
	ctx := context.Background()

	if _, err := svc.UpdateSlots(ctx, userID, []ReservoirSlotInput{
		{Slot: 1, Label: str("Sal"), FlowRate: testutil.Float(2.5), StockGrams: testutil.Float(80)},
		{Slot: 2, Label: str("Pimenta")},
	}); err != nil {
		t.Fatalf("UpdateSlots: %v", err)
	}

	listed, err := svc.ListForUser(ctx, userID)
	if err != nil {
		t.Fatalf("ListForUser: %v", err)
	}
	if len(listed) != 2 {
		t.Fatalf("slots = %d, want 2", len(listed))
	}
	if listed[0].Label == nil || *listed[0].Label != "sal" {
		t.Fatalf("slot 1 label = %v, want normalized sal", listed[0].Label)
	}
	if listed[1].FlowRateGPS != nil {
		t.Fatalf("slot 2 flow = %v, want uncalibrated nil", listed[1].FlowRateGPS)
	}

	// Re-sending slot 1 updates in place rather than duplicating.
	if _, err := svc.UpdateSlots(ctx, userID, []ReservoirSlotInput{
		{Slot: 1, Label: str("Oregano"), FlowRate: testutil.Float(3.0)},
	}); err != nil {
		t.Fatalf("second UpdateSlots: %v", err)
	}
	listed, err = svc.ListForUser(ctx, userID)
	if err != nil || len(listed) != 2 {
		t.Fatalf("slots after upsert = %d, %v, want still 2", len(listed), err)
	}
	if *listed[0].Label != "oregano" || *listed[0].FlowRateGPS != 3.0 {
		t.Fatalf("slot 1 = %+v, want relabeled oregano at 3.0 g/s", listed[0])
	}
}

func TestReservoirUpdateRejectsBadInput(t *testing.T) {
	svc, _, userID := newReservoirFixture(t)
	ctx := context.Background()

	if _, err := svc.UpdateSlots(ctx, userID, []ReservoirSlotInput{{Slot: 0}}); apierr.KindOf(err) != apierr.KindInvalidState {
		t.Fatalf("slot 0 err = %v, want invalid state", err)
	}
	if _, err := svc.UpdateSlots(ctx, userID, []ReservoirSlotInput{{Slot: 5}}); apierr.KindOf(err) != apierr.KindInvalidState {
		t.Fatalf("slot 5 err = %v, want invalid state", err)
	}

	_, err := svc.UpdateSlots(ctx, userID, []ReservoirSlotInput{{Slot: 1}, {Slot: 1}})
	ae := apierr.From(err)
	if ae == nil || ae.Code != "reservoir_slot_duplicate" {
		t.Fatalf("duplicate slot err = %v, want reservoir_slot_duplicate", err)
	}

	if _, err := svc.UpdateSlots(ctx, userID, []ReservoirSlotInput{{Slot: 1, Label: str("unobtainium")}}); apierr.KindOf(err) != apierr.KindInvalidState {
		t.Fatalf("unknown label err = %v, want invalid state", err)
	}
	if _, err := svc.UpdateSlots(ctx, userID, []ReservoirSlotInput{{Slot: 1, FlowRate: testutil.Float(-1)}}); apierr.KindOf(err) != apierr.KindInvalidState {
		t.Fatalf("negative flow err = %v, want invalid state", err)
	}
	if _, err := svc.UpdateSlots(ctx, userID, []ReservoirSlotInput{{Slot: 1, StockGrams: testutil.Float(-5)}}); apierr.KindOf(err) != apierr.KindInvalidState {
		t.Fatalf("negative stock err = %v, want invalid state", err)
	}
}
