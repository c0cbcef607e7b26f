package services

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/tempero-labs/dispenser-backend/internal/platform/apierr"
	"github.com/tempero-labs/dispenser-backend/internal/repos"
	"github.com/tempero-labs/dispenser-backend/internal/repos/testutil"
	"github.com/tempero-labs/dispenser-backend/internal/sse"
	"github.com/tempero-labs/dispenser-backend/internal/sse/bus"
	"github.com/tempero-labs/dispenser-backend/internal/types"
)

type completionFixture struct {
	db         *gorm.DB
	jobs       JobService
	completion CompletionService
	user       *types.User
	job        *types.Job
}

func newCompletionFixture(t *testing.T) *completionFixture {
	t.Helper()
	ctx := context.Background()
	db := testutil.DB(t)
	log := testutil.Logger(t)

	jobRepo := repos.NewJobRepo(db, log)
	recipeRepo := repos.NewRecipeRepo(db, log)
	reservoirRepo := repos.NewReservoirRepo(db, log)
	notifier := NewJobNotifier(log, sse.NewHub(log), bus.NewLocalBus())
	jobs := NewJobService(db, log, jobRepo, recipeRepo, reservoirRepo, NewResolverService(log), notifier)
	completion := NewCompletionService(db, log, jobRepo, reservoirRepo, notifier)

	user := testutil.SeedUser(t, ctx, db, "maria")
	testutil.SeedReservoir(t, ctx, db, user.ID, 1, "Pimenta", testutil.Float(2.0), testutil.Float(100))
	testutil.SeedReservoir(t, ctx, db, user.ID, 2, "Sal", testutil.Float(5.0), testutil.Float(100))
	recipe := testutil.SeedRecipe(t, ctx, db, user.ID, 1, []testutil.IngredientSpec{
		{Label: "Pimenta", Grams: 10},
		{Label: "Sal", Grams: 20},
	})
	job, err := jobs.Create(ctx, user.ID, CreateJobInput{RecipeID: recipe.ID, RequestedServings: 1})
	if err != nil {
		t.Fatalf("seed job: %v", err)
	}

	return &completionFixture{db: db, jobs: jobs, completion: completion, user: user, job: job}
}

func (f *completionFixture) stock(t *testing.T, slot int) float64 {
	t.Helper()
	var cfg types.ReservoirConfig
	if err := f.db.Where("user_id = ? AND slot = ?", f.user.ID, slot).First(&cfg).Error; err != nil {
		t.Fatalf("load reservoir %d: %v", slot, err)
	}
	if cfg.StockGrams == nil {
		t.Fatalf("reservoir %d stock became unknown", slot)
	}
	return *cfg.StockGrams
}

func doneEntry(slot int, label string, grams, seconds float64) types.ExecutionLogEntry {
	return types.ExecutionLogEntry{
		ReservoirSlot: slot,
		Label:         label,
		QuantityGrams: grams,
		Seconds:       seconds,
		Status:        string(types.JobItemStatusDone),
	}
}

func failedEntry(slot int, label string, grams float64, reason string) types.ExecutionLogEntry {
	return types.ExecutionLogEntry{
		ReservoirSlot: slot,
		Label:         label,
		QuantityGrams: grams,
		Status:        string(types.JobItemStatusFailed),
		Error:         &reason,
	}
}

func TestCompleteSettlesJobAndDeductsStock(t *testing.T) {
	f := newCompletionFixture(t)
	ctx := context.Background()

	entries := []types.ExecutionLogEntry{
		doneEntry(1, "Pimenta", 10, 5),
		doneEntry(2, "Sal", 20, 4),
	}
	result, err := f.completion.Complete(ctx, f.user.ID, f.job.ID, 0, 0, entries)
	if err != nil {
		t.Fatalf("Complete: %v", err)
	}
	if result.AlreadyCompleted {
		t.Fatal("first completion flagged as duplicate")
	}
	if result.Status != types.JobStatusDone {
		t.Fatalf("status = %s, want done", result.Status)
	}
	// Counts were derived from the entries.
	if result.ItemsCompleted != 2 || result.ItemsFailed != 0 {
		t.Fatalf("counts = %d/%d, want 2/0", result.ItemsCompleted, result.ItemsFailed)
	}
	if !result.StockDeducted {
		t.Fatal("stock not deducted")
	}
	if got := f.stock(t, 1); got != 90 {
		t.Fatalf("slot 1 stock = %v, want 90", got)
	}
	if got := f.stock(t, 2); got != 80 {
		t.Fatalf("slot 2 stock = %v, want 80", got)
	}

	job, err := f.jobs.Lookup(ctx, f.job.ID)
	if err != nil {
		t.Fatalf("Lookup: %v", err)
	}
	if job.FinishedAt == nil || len(job.ExecutionReport) == 0 {
		t.Fatalf("job not finalized: finished_at=%v report=%d bytes", job.FinishedAt, len(job.ExecutionReport))
	}
	for _, item := range job.Items {
		if item.Status != types.JobItemStatusDone {
			t.Fatalf("item %d status = %s, want done", item.Sequence, item.Status)
		}
	}
}

func TestCompleteDuplicateReportMutatesNothing(t *testing.T) {
	f := newCompletionFixture(t)
	ctx := context.Background()

	entries := []types.ExecutionLogEntry{
		doneEntry(1, "Pimenta", 10, 5),
		doneEntry(2, "Sal", 20, 4),
	}
	if _, err := f.completion.Complete(ctx, f.user.ID, f.job.ID, 2, 0, entries); err != nil {
		t.Fatalf("first Complete: %v", err)
	}

	result, err := f.completion.Complete(ctx, f.user.ID, f.job.ID, 2, 0, entries)
	if err != nil {
		t.Fatalf("second Complete: %v", err)
	}
	if !result.AlreadyCompleted {
		t.Fatal("duplicate not acknowledged as already completed")
	}
	if result.Status != types.JobStatusDone || result.ItemsCompleted != 2 {
		t.Fatalf("duplicate ack = %+v, want prior outcome echoed", result)
	}
	if !result.StockDeducted {
		t.Fatal("duplicate ack should report the recorded deduction")
	}
	// Inventory must not move twice.
	if got := f.stock(t, 1); got != 90 {
		t.Fatalf("slot 1 stock = %v after duplicate, want 90", got)
	}
}

func TestCompletePartialFailureDeductsDoneOnly(t *testing.T) {
	f := newCompletionFixture(t)
	ctx := context.Background()

	entries := []types.ExecutionLogEntry{
		doneEntry(1, "Pimenta", 10, 5),
		failedEntry(2, "Sal", 20, "motor stall"),
	}
	result, err := f.completion.Complete(ctx, f.user.ID, f.job.ID, 0, 0, entries)
	if err != nil {
		t.Fatalf("Complete: %v", err)
	}
	if result.Status != types.JobStatusDonePartial {
		t.Fatalf("status = %s, want done_partial", result.Status)
	}
	if result.ItemsCompleted != 1 || result.ItemsFailed != 1 {
		t.Fatalf("counts = %d/%d, want 1/1", result.ItemsCompleted, result.ItemsFailed)
	}
	if got := f.stock(t, 1); got != 90 {
		t.Fatalf("slot 1 stock = %v, want 90", got)
	}
	// The failed dispense must not consume Sal.
	if got := f.stock(t, 2); got != 100 {
		t.Fatalf("slot 2 stock = %v, want untouched 100", got)
	}

	job, err := f.jobs.Lookup(ctx, f.job.ID)
	if err != nil {
		t.Fatalf("Lookup: %v", err)
	}
	sal := job.Items[1]
	if sal.Status != types.JobItemStatusFailed || sal.ErrorMsg == nil || *sal.ErrorMsg != "motor stall" {
		t.Fatalf("failed item = %+v, want failed with motor stall", sal)
	}
}

func TestCompleteClampsStockAtZero(t *testing.T) {
	f := newCompletionFixture(t)
	ctx := context.Background()

	// Drop slot 1 below what the device reports dispensed.
	if err := f.db.Model(&types.ReservoirConfig{}).
		Where("user_id = ? AND slot = ?", f.user.ID, 1).
		Update("stock_grams", 4.0).Error; err != nil {
		t.Fatalf("shrink stock: %v", err)
	}

	entries := []types.ExecutionLogEntry{doneEntry(1, "Pimenta", 10, 5)}
	if _, err := f.completion.Complete(ctx, f.user.ID, f.job.ID, 1, 0, entries); err != nil {
		t.Fatalf("Complete: %v", err)
	}
	if got := f.stock(t, 1); got != 0 {
		t.Fatalf("slot 1 stock = %v, want clamped 0", got)
	}
}

func TestCompleteCanceledJobConflicts(t *testing.T) {
	f := newCompletionFixture(t)
	ctx := context.Background()

	if _, err := f.jobs.CancelForUser(ctx, f.user.ID); err != nil {
		t.Fatalf("CancelForUser: %v", err)
	}
	_, err := f.completion.Complete(ctx, f.user.ID, f.job.ID, 1, 0, []types.ExecutionLogEntry{doneEntry(1, "Pimenta", 10, 5)})
	ae := apierr.From(err)
	if ae == nil || ae.Code != "job_canceled" {
		t.Fatalf("err = %v, want job_canceled conflict", err)
	}
	if got := f.stock(t, 1); got != 100 {
		t.Fatalf("slot 1 stock = %v, want untouched 100", got)
	}
}

func TestCompleteForeignDeviceForbidden(t *testing.T) {
	f := newCompletionFixture(t)
	ctx := context.Background()

	other := testutil.SeedUser(t, ctx, f.db, "joao")
	_, err := f.completion.Complete(ctx, other.ID, f.job.ID, 1, 0, nil)
	if apierr.KindOf(err) != apierr.KindForbidden {
		t.Fatalf("err = %v, want forbidden", err)
	}
}

func TestCompleteUnknownJobNotFound(t *testing.T) {
	f := newCompletionFixture(t)
	_, err := f.completion.Complete(context.Background(), f.user.ID, uuid.New(), 1, 0, nil)
	if apierr.KindOf(err) != apierr.KindNotFound {
		t.Fatalf("err = %v, want not found", err)
	}
}

func TestCompleteRejectsUnknownEntryStatus(t *testing.T) {
	f := newCompletionFixture(t)
	ctx := context.Background()

	entries := []types.ExecutionLogEntry{
		doneEntry(1, "Pimenta", 10, 5),
		{ReservoirSlot: 2, Label: "Sal", QuantityGrams: 20, Status: "exploded"},
	}
	_, err := f.completion.Complete(ctx, f.user.ID, f.job.ID, 0, 0, entries)
	if apierr.KindOf(err) != apierr.KindInvalidState {
		t.Fatalf("kind = %v, want InvalidState", apierr.KindOf(err))
	}
	if apierr.From(err).Code != "invalid_item_status" {
		t.Fatalf("code = %s, want invalid_item_status", apierr.From(err).Code)
	}
	// The report was refused outright: job still open, inventory untouched.
	job, lookupErr := f.jobs.Lookup(ctx, f.job.ID)
	if lookupErr != nil {
		t.Fatalf("Lookup: %v", lookupErr)
	}
	if job.Status != types.JobStatusQueued {
		t.Fatalf("status = %s, want queued", job.Status)
	}
	if got := f.stock(t, 1); got != 100 {
		t.Fatalf("slot 1 stock = %v, want 100", got)
	}
}

func TestCompleteDuplicateEchoesDeductionFailure(t *testing.T) {
	f := newCompletionFixture(t)
	ctx := context.Background()

	// A prior settlement that finalized the job but could not subtract
	// inventory leaves stock_deducted false on the row.
	note := "stock deduction failed: reservoir gone"
	if err := f.db.Model(&types.Job{}).Where("id = ?", f.job.ID).Updates(map[string]interface{}{
		"status":          types.JobStatusDone,
		"items_completed": 2,
		"items_failed":    0,
		"stock_deducted":  false,
		"error_msg":       note,
	}).Error; err != nil {
		t.Fatalf("finalize job: %v", err)
	}

	result, err := f.completion.Complete(ctx, f.user.ID, f.job.ID, 2, 0, []types.ExecutionLogEntry{
		doneEntry(1, "Pimenta", 10, 5),
		doneEntry(2, "Sal", 20, 4),
	})
	if err != nil {
		t.Fatalf("Complete: %v", err)
	}
	if !result.AlreadyCompleted {
		t.Fatal("retry not acknowledged as already completed")
	}
	if result.StockDeducted {
		t.Fatal("ack claims a deduction the settlement never made")
	}
	if got := f.stock(t, 1); got != 100 {
		t.Fatalf("slot 1 stock = %v after retry, want 100", got)
	}
}
