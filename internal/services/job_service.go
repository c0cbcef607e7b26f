package services

import (
  "context"
  "errors"
  "fmt"
  "strings"
  "time"
  "github.com/google/uuid"
  "github.com/jackc/pgx/v5/pgconn"
  "gorm.io/gorm"
  "github.com/tempero-labs/dispenser-backend/internal/platform/apierr"
  "github.com/tempero-labs/dispenser-backend/internal/platform/logger"
  "github.com/tempero-labs/dispenser-backend/internal/repos"
  "github.com/tempero-labs/dispenser-backend/internal/types"
)

// CancelMessage is the fixed operator-cancellation note written on canceled
// jobs.
const CancelMessage = "canceled by user request"

type CreateJobInput struct {
  RecipeID          uuid.UUID
  RequestedServings int
  // Multiplier is the legacy scaling input; RequestedServings wins when both
  // are present.
  Multiplier int
}

type ProgressReport struct {
  Sequence int                 `json:"sequence"`
  Status   types.JobItemStatus `json:"status"`
  ErrorMsg *string             `json:"error_msg"`
}

type StockShortage struct {
  Slot           int     `json:"slot"`
  RequiredGrams  float64 `json:"required_grams"`
  AvailableGrams float64 `json:"available_grams"`
}

type JobService interface {
  Create(ctx context.Context, userID uuid.UUID, input CreateJobInput) (*types.Job, error)
  GetForUser(ctx context.Context, userID, jobID uuid.UUID) (*types.Job, error)
  // Lookup fetches a job without an ownership filter; the monitor endpoint
  // applies its own identity rules before registering observers.
  Lookup(ctx context.Context, jobID uuid.UUID) (*types.Job, error)
  ActiveForUser(ctx context.Context, userID uuid.UUID) (*types.Job, error)
  CancelForUser(ctx context.Context, userID uuid.UUID) (int64, error)
  // NextForDevice hands out the oldest queued job owned by the device's user
  // and stamps started_at on first hand-out. Status stays queued: only
  // explicit device reports flip a job to running, so fully-offline devices
  // that report at the end behave identically.
  NextForDevice(ctx context.Context, deviceUserID uuid.UUID) (*types.Job, error)
  ReportProgress(ctx context.Context, deviceUserID, jobID uuid.UUID, report ProgressReport) (*types.Job, error)
}

type jobService struct {
  db            *gorm.DB
  log           *logger.Logger
  jobRepo       repos.JobRepo
  recipeRepo    repos.RecipeRepo
  reservoirRepo repos.ReservoirRepo
  resolver      ResolverService
  notifier      JobNotifier
}

func NewJobService(
  db *gorm.DB,
  log *logger.Logger,
  jobRepo repos.JobRepo,
  recipeRepo repos.RecipeRepo,
  reservoirRepo repos.ReservoirRepo,
  resolver ResolverService,
  notifier JobNotifier,
) JobService {
  return &jobService{
    db:            db,
    log:           log.With("service", "JobService"),
    jobRepo:       jobRepo,
    recipeRepo:    recipeRepo,
    reservoirRepo: reservoirRepo,
    resolver:      resolver,
    notifier:      notifier,
  }
}

func (js *jobService) Create(ctx context.Context, userID uuid.UUID, input CreateJobInput) (*types.Job, error) {
  servings := input.RequestedServings
  if servings <= 0 {
    servings = input.Multiplier
  }
  if servings <= 0 {
    servings = 1
  }

  var created *types.Job
  err := js.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
    active, err := js.jobRepo.GetActiveByUser(ctx, tx, userID)
    if err != nil {
      return fmt.Errorf("Failed to check active job: %w", err)
    }
    if active != nil {
      return apierr.Conflict("active_job_exists", "an active job already exists for this user").
        WithDetail("active_job_id", active.ID)
    }

    recipe, err := js.recipeRepo.GetByID(ctx, tx, input.RecipeID)
    if err != nil {
      return fmt.Errorf("Failed to load recipe: %w", err)
    }
    if recipe == nil || recipe.UserID != userID {
      return apierr.NotFound("recipe_not_found", "recipe does not exist or is not owned by this user")
    }
    if recipe.Portions <= 0 {
      return apierr.InvalidState("recipe_portions_invalid", "recipe has no positive portion count")
    }

    configs, err := js.reservoirRepo.ListByUser(ctx, tx, userID)
    if err != nil {
      return fmt.Errorf("Failed to load reservoir configs: %w", err)
    }
    resolution, err := js.resolver.Resolve(configs, recipe.Ingredients, servings, recipe.Portions)
    if err != nil {
      return err
    }
    // Missing mappings take priority: calibration gaps are not reported for
    // the same run.
    if len(resolution.MissingLabels) > 0 {
      return apierr.Conflict("missing_reservoir_mapping", "no reservoir configured for: %s", strings.Join(resolution.MissingLabels, ", ")).
        WithDetail("missing_labels", resolution.MissingLabels)
    }
    if len(resolution.UncalibratedLabels) > 0 {
      return apierr.Conflict("missing_calibration", "no usable flow rate for: %s", strings.Join(resolution.UncalibratedLabels, ", ")).
        WithDetail("uncalibrated_labels", resolution.UncalibratedLabels)
    }

    if shortages := stockShortages(configs, resolution.Items); len(shortages) > 0 {
      return apierr.Conflict("insufficient_stock", "insufficient stock in %d reservoir(s)", len(shortages)).
        WithDetail("shortages", shortages)
    }

    job := &types.Job{
      ID:                uuid.New(),
      UserID:            userID,
      RecipeID:          &recipe.ID,
      Status:            types.JobStatusQueued,
      RequestedServings: servings,
      Multiplier:        servings,
    }
    for i, item := range resolution.Items {
      job.Items = append(job.Items, types.JobItem{
        ID:              uuid.New(),
        JobID:           job.ID,
        Sequence:        i + 1,
        ReservoirSlot:   item.Slot,
        Label:           item.Label,
        QuantityGrams:   item.QuantityGrams,
        DurationSeconds: item.DurationSeconds,
        Status:          types.JobItemStatusQueued,
      })
    }
    if _, err := js.jobRepo.Create(ctx, tx, []*types.Job{job}); err != nil {
      if isUniqueViolation(err) {
        // A concurrent creation won the partial unique index race.
        return apierr.Conflict("active_job_exists", "an active job already exists for this user")
      }
      return fmt.Errorf("Failed to persist job: %w", err)
    }
    created = job
    return nil
  })
  if err != nil {
    return nil, err
  }
  js.log.Info("Job created", "job_id", created.ID, "user_id", userID, "items", len(created.Items))
  return created, nil
}

// stockShortages aggregates scaled consumption per slot and compares against
// known stock. Unknown (nil) stock never blocks.
func stockShortages(configs []*types.ReservoirConfig, items []ResolvedItem) []StockShortage {
  required := map[int]float64{}
  for _, item := range items {
    required[item.Slot] += item.QuantityGrams
  }
  var shortages []StockShortage
  for _, cfg := range configs {
    if cfg.StockGrams == nil {
      continue
    }
    need, ok := required[cfg.Slot]
    if !ok {
      continue
    }
    if *cfg.StockGrams < need {
      shortages = append(shortages, StockShortage{
        Slot:           cfg.Slot,
        RequiredGrams:  need,
        AvailableGrams: *cfg.StockGrams,
      })
    }
  }
  return shortages
}

func (js *jobService) GetForUser(ctx context.Context, userID, jobID uuid.UUID) (*types.Job, error) {
  job, err := js.jobRepo.GetByID(ctx, nil, jobID)
  if err != nil {
    return nil, fmt.Errorf("Failed to load job: %w", err)
  }
  if job == nil || job.UserID != userID {
    return nil, apierr.NotFound("job_not_found", "job does not exist or is not owned by this user")
  }
  return job, nil
}

func (js *jobService) Lookup(ctx context.Context, jobID uuid.UUID) (*types.Job, error) {
  job, err := js.jobRepo.GetByID(ctx, nil, jobID)
  if err != nil {
    return nil, fmt.Errorf("Failed to load job: %w", err)
  }
  if job == nil {
    return nil, apierr.NotFound("job_not_found", "job does not exist")
  }
  return job, nil
}

func (js *jobService) ActiveForUser(ctx context.Context, userID uuid.UUID) (*types.Job, error) {
  job, err := js.jobRepo.GetActiveByUser(ctx, nil, userID)
  if err != nil {
    return nil, fmt.Errorf("Failed to load active job: %w", err)
  }
  return job, nil
}

func (js *jobService) CancelForUser(ctx context.Context, userID uuid.UUID) (int64, error) {
  count, err := js.jobRepo.CancelActiveByUser(ctx, nil, userID, CancelMessage)
  if err != nil {
    return 0, fmt.Errorf("Failed to cancel active jobs: %w", err)
  }
  if count > 0 {
    js.log.Info("Jobs canceled", "user_id", userID, "count", count)
  }
  return count, nil
}

func (js *jobService) NextForDevice(ctx context.Context, deviceUserID uuid.UUID) (*types.Job, error) {
  job, err := js.jobRepo.OldestQueuedByUser(ctx, nil, deviceUserID)
  if err != nil {
    return nil, fmt.Errorf("Failed to load next queued job: %w", err)
  }
  if job == nil {
    return nil, nil
  }
  if job.StartedAt == nil {
    now := time.Now()
    // Guarded write: if a cancel lands between the read and this stamp the
    // update matches nothing and the terminal row stays untouched.
    matched, err := js.jobRepo.UpdateActiveFields(ctx, nil, job.ID, map[string]interface{}{"started_at": now})
    if err != nil {
      return nil, fmt.Errorf("Failed to stamp started_at: %w", err)
    }
    if matched == 0 {
      return nil, nil
    }
    job.StartedAt = &now
  }
  return job, nil
}

func (js *jobService) ReportProgress(ctx context.Context, deviceUserID, jobID uuid.UUID, report ProgressReport) (*types.Job, error) {
  if !report.Status.Valid() {
    return nil, apierr.InvalidState("invalid_item_status", "unknown item status %q", report.Status)
  }

  var job *types.Job
  var terminal bool
  err := js.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
    var err error
    // Locked read so a concurrent cancel is either visible here or blocked
    // until this report commits.
    job, err = js.jobRepo.LockByID(ctx, tx, jobID)
    if err != nil {
      return fmt.Errorf("Failed to lock job: %w", err)
    }
    if job == nil {
      return apierr.NotFound("job_not_found", "job does not exist")
    }
    if job.UserID != deviceUserID {
      return apierr.Forbidden("job_not_owned", "job is not owned by this device's user")
    }
    // Incremental reports never touch terminal jobs; the settlement already
    // happened and a late retry must not reopen it.
    if job.Status.IsTerminal() {
      terminal = true
      js.log.Debug("Ignoring progress report for terminal job", "job_id", job.ID, "status", job.Status)
      return nil
    }

    updates := map[string]interface{}{}
    if job.Status == types.JobStatusQueued {
      updates["status"] = types.JobStatusRunning
    }
    if job.StartedAt == nil {
      updates["started_at"] = time.Now()
    }
    if len(updates) > 0 {
      // Status-guarded as a second line of defense on dialects without row
      // locks: a terminalized job matches nothing.
      if _, err := js.jobRepo.UpdateActiveFields(ctx, tx, job.ID, updates); err != nil {
        return fmt.Errorf("Failed to update job progress: %w", err)
      }
    }
    if report.Sequence > 0 {
      itemUpdates := map[string]interface{}{"status": report.Status}
      if report.ErrorMsg != nil {
        itemUpdates["error_msg"] = *report.ErrorMsg
      }
      if err := js.jobRepo.UpdateItemBySequence(ctx, tx, job.ID, report.Sequence, itemUpdates); err != nil {
        return fmt.Errorf("Failed to update job item: %w", err)
      }
    }
    return nil
  })
  if err != nil {
    return nil, err
  }
  if terminal {
    return job, nil
  }

  if report.Sequence > 0 && report.Sequence <= len(job.Items) {
    item := job.Items[report.Sequence-1]
    js.notifier.JobLogEntry(ctx, job.ID, types.ExecutionLogEntry{
      ReservoirSlot: item.ReservoirSlot,
      Label:         item.Label,
      QuantityGrams: item.QuantityGrams,
      Seconds:       item.DurationSeconds,
      Status:        string(report.Status),
      Error:         report.ErrorMsg,
    })
  }

  return js.jobRepo.GetByID(ctx, nil, jobID)
}

func isUniqueViolation(err error) bool {
  var pgErr *pgconn.PgError
  if errors.As(err, &pgErr) {
    return pgErr.Code == "23505"
  }
  // sqlite (tests) reports unique violations by message only.
  return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}
