package services

import (
  "context"
  "encoding/json"
  "fmt"
  "time"
  "github.com/google/uuid"
  "gorm.io/datatypes"
  "gorm.io/gorm"
  "github.com/tempero-labs/dispenser-backend/internal/platform/apierr"
  "github.com/tempero-labs/dispenser-backend/internal/platform/logger"
  "github.com/tempero-labs/dispenser-backend/internal/repos"
  "github.com/tempero-labs/dispenser-backend/internal/types"
)

// CompletionResult is acknowledged back to the device. AlreadyCompleted means
// the report was a duplicate and nothing was mutated.
type CompletionResult struct {
  JobID            uuid.UUID       `json:"job_id"`
  Status           types.JobStatus `json:"status"`
  AlreadyCompleted bool            `json:"already_completed"`
  StockDeducted    bool            `json:"stock_deducted"`
  ItemsCompleted   int             `json:"items_completed"`
  ItemsFailed      int             `json:"items_failed"`
}

// CompletionService settles terminal device reports. Inventory is deducted
// exactly once per job: the terminal-status gate under a per-job row lock is
// the sole defense against duplicate delivery from retrying devices.
type CompletionService interface {
  Complete(ctx context.Context, deviceUserID, jobID uuid.UUID, completedCount, failedCount int, entries []types.ExecutionLogEntry) (*CompletionResult, error)
}

type completionService struct {
  db            *gorm.DB
  log           *logger.Logger
  jobRepo       repos.JobRepo
  reservoirRepo repos.ReservoirRepo
  notifier      JobNotifier
}

func NewCompletionService(
  db *gorm.DB,
  log *logger.Logger,
  jobRepo repos.JobRepo,
  reservoirRepo repos.ReservoirRepo,
  notifier JobNotifier,
) CompletionService {
  return &completionService{
    db:            db,
    log:           log.With("service", "CompletionService"),
    jobRepo:       jobRepo,
    reservoirRepo: reservoirRepo,
    notifier:      notifier,
  }
}

func (cs *completionService) Complete(ctx context.Context, deviceUserID, jobID uuid.UUID, completedCount, failedCount int, entries []types.ExecutionLogEntry) (*CompletionResult, error) {
  for _, entry := range entries {
    if !types.JobItemStatus(entry.Status).Valid() {
      return nil, apierr.InvalidState("invalid_item_status", "unknown item status %q", entry.Status)
    }
  }
  result := &CompletionResult{JobID: jobID}

  err := cs.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
    job, err := cs.jobRepo.LockByID(ctx, tx, jobID)
    if err != nil {
      return fmt.Errorf("Failed to lock job: %w", err)
    }
    if job == nil {
      return apierr.NotFound("job_not_found", "job does not exist")
    }
    if job.UserID != deviceUserID {
      return apierr.Forbidden("job_not_owned", "job is not owned by this device's user")
    }
    if job.Status == types.JobStatusCanceled {
      return apierr.Conflict("job_canceled", "a canceled job cannot be completed")
    }
    if job.Status.IsTerminal() {
      // Duplicate delivery: acknowledge prior completion, mutate nothing.
      result.AlreadyCompleted = true
      result.Status = job.Status
      if job.ItemsCompleted != nil {
        result.ItemsCompleted = *job.ItemsCompleted
      }
      if job.ItemsFailed != nil {
        result.ItemsFailed = *job.ItemsFailed
      }
      result.StockDeducted = job.StockDeducted
      return nil
    }

    if completedCount == 0 && failedCount == 0 && len(entries) > 0 {
      for _, entry := range entries {
        if entry.Status == string(types.JobItemStatusDone) {
          completedCount++
        } else {
          failedCount++
        }
      }
    }

    finalStatus := types.JobStatusDone
    if failedCount > 0 {
      finalStatus = types.JobStatusDonePartial
    }

    report, err := json.Marshal(entries)
    if err != nil {
      return fmt.Errorf("Failed to serialize execution report: %w", err)
    }
    now := time.Now()
    updates := map[string]interface{}{
      "status":           finalStatus,
      "finished_at":      now,
      "items_completed":  completedCount,
      "items_failed":     failedCount,
      "stock_deducted":   true,
      "execution_report": datatypes.JSON(report),
    }
    if job.StartedAt == nil {
      updates["started_at"] = now
    }
    if err := cs.jobRepo.UpdateFields(ctx, tx, job.ID, updates); err != nil {
      return fmt.Errorf("Failed to finalize job: %w", err)
    }
    if err := cs.settleItems(ctx, tx, job, entries); err != nil {
      return fmt.Errorf("Failed to settle job items: %w", err)
    }

    // Deduction runs under a savepoint so an unexpected inventory failure
    // cannot leave the job dangling in a non-terminal state.
    result.StockDeducted = true
    tx.SavePoint("stock_deduction")
    if dErr := cs.deductStock(ctx, tx, job.UserID, entries); dErr != nil {
      tx.RollbackTo("stock_deduction")
      result.StockDeducted = false
      note := fmt.Sprintf("stock deduction failed: %v", dErr)
      if len(note) > 255 {
        note = note[:255]
      }
      cs.log.Error("Stock deduction failed; job still finalized", "job_id", job.ID, "error", dErr)
      if err := cs.jobRepo.UpdateFields(ctx, tx, job.ID, map[string]interface{}{
        "error_msg":      note,
        "stock_deducted": false,
      }); err != nil {
        return fmt.Errorf("Failed to annotate deduction failure: %w", err)
      }
    }

    result.Status = finalStatus
    result.ItemsCompleted = completedCount
    result.ItemsFailed = failedCount
    return nil
  })
  if err != nil {
    return nil, err
  }

  if result.AlreadyCompleted {
    cs.log.Info("Duplicate completion report acknowledged", "job_id", jobID)
    return result, nil
  }

  // Broadcasts happen after the commit and never roll reconciliation back.
  for _, entry := range entries {
    cs.notifier.JobLogEntry(ctx, jobID, entry)
  }
  cs.notifier.JobCompleted(ctx, jobID, result)

  cs.log.Info("Job completed",
    "job_id", jobID,
    "status", result.Status,
    "items_completed", result.ItemsCompleted,
    "items_failed", result.ItemsFailed,
    "stock_deducted", result.StockDeducted)
  return result, nil
}

// settleItems copies per-entry outcomes onto the persisted job items. Entries
// are matched by reservoir slot and label without depending on arrival order.
func (cs *completionService) settleItems(ctx context.Context, tx *gorm.DB, job *types.Job, entries []types.ExecutionLogEntry) error {
  consumed := make([]bool, len(job.Items))
  for _, entry := range entries {
    for i, item := range job.Items {
      if consumed[i] || item.ReservoirSlot != entry.ReservoirSlot || item.Label != entry.Label {
        continue
      }
      consumed[i] = true
      updates := map[string]interface{}{"status": types.JobItemStatus(entry.Status)}
      if entry.Error != nil {
        updates["error_msg"] = *entry.Error
      }
      if err := cs.jobRepo.UpdateItemByID(ctx, tx, item.ID, updates); err != nil {
        return err
      }
      break
    }
  }
  return nil
}

// deductStock sums grams per slot over "done" entries only and subtracts them
// from known stock, clamped at zero. Failed entries contribute nothing.
func (cs *completionService) deductStock(ctx context.Context, tx *gorm.DB, userID uuid.UUID, entries []types.ExecutionLogEntry) error {
  sums := map[int]float64{}
  for _, entry := range entries {
    if entry.Status != string(types.JobItemStatusDone) {
      continue
    }
    sums[entry.ReservoirSlot] += entry.QuantityGrams
  }
  for slot, grams := range sums {
    if err := cs.reservoirRepo.DeductStock(ctx, tx, userID, slot, grams); err != nil {
      return err
    }
  }
  return nil
}
