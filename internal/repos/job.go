package repos

import (
  "context"
  "time"
  "github.com/google/uuid"
  "gorm.io/gorm"
  "gorm.io/gorm/clause"
  "github.com/tempero-labs/dispenser-backend/internal/platform/logger"
  "github.com/tempero-labs/dispenser-backend/internal/types"
)

type JobRepo interface {
  Create(ctx context.Context, tx *gorm.DB, jobs []*types.Job) ([]*types.Job, error)
  GetByID(ctx context.Context, tx *gorm.DB, jobID uuid.UUID) (*types.Job, error)
  GetActiveByUser(ctx context.Context, tx *gorm.DB, userID uuid.UUID) (*types.Job, error)
  OldestQueuedByUser(ctx context.Context, tx *gorm.DB, userID uuid.UUID) (*types.Job, error)
  // LockByID fetches the job under FOR UPDATE so completion processing for a
  // given job id is serialized across connections.
  LockByID(ctx context.Context, tx *gorm.DB, jobID uuid.UUID) (*types.Job, error)
  UpdateFields(ctx context.Context, tx *gorm.DB, jobID uuid.UUID, updates map[string]interface{}) error
  // UpdateActiveFields applies updates only while the job is still queued or
  // running, so a concurrently terminalized job can never be written back to
  // an active state. Returns the number of rows matched.
  UpdateActiveFields(ctx context.Context, tx *gorm.DB, jobID uuid.UUID, updates map[string]interface{}) (int64, error)
  UpdateItemBySequence(ctx context.Context, tx *gorm.DB, jobID uuid.UUID, sequence int, updates map[string]interface{}) error
  UpdateItemByID(ctx context.Context, tx *gorm.DB, itemID uuid.UUID, updates map[string]interface{}) error
  CancelActiveByUser(ctx context.Context, tx *gorm.DB, userID uuid.UUID, errorMsg string) (int64, error)
}

type jobRepo struct {
  db  *gorm.DB
  log *logger.Logger
}

func NewJobRepo(db *gorm.DB, baseLog *logger.Logger) JobRepo {
  return &jobRepo{db: db, log: baseLog.With("repo", "JobRepo")}
}

func (jr *jobRepo) Create(ctx context.Context, tx *gorm.DB, jobs []*types.Job) ([]*types.Job, error) {
  transaction := tx
  if transaction == nil {
    transaction = jr.db
  }
  if len(jobs) == 0 {
    return []*types.Job{}, nil
  }
  if err := transaction.WithContext(ctx).Create(&jobs).Error; err != nil {
    return nil, err
  }
  return jobs, nil
}

func (jr *jobRepo) GetByID(ctx context.Context, tx *gorm.DB, jobID uuid.UUID) (*types.Job, error) {
  transaction := tx
  if transaction == nil {
    transaction = jr.db
  }
  var job types.Job
  err := transaction.WithContext(ctx).
    Preload("Items", func(db *gorm.DB) *gorm.DB {
      return db.Order("sequence ASC")
    }).
    Where("id = ?", jobID).
    Limit(1).
    Find(&job).Error
  if err != nil {
    return nil, err
  }
  if job.ID == uuid.Nil {
    return nil, nil
  }
  return &job, nil
}

func (jr *jobRepo) GetActiveByUser(ctx context.Context, tx *gorm.DB, userID uuid.UUID) (*types.Job, error) {
  transaction := tx
  if transaction == nil {
    transaction = jr.db
  }
  var job types.Job
  err := transaction.WithContext(ctx).
    Preload("Items", func(db *gorm.DB) *gorm.DB {
      return db.Order("sequence ASC")
    }).
    Where("user_id = ? AND status IN ?", userID, []types.JobStatus{types.JobStatusQueued, types.JobStatusRunning}).
    Order("created_at ASC").
    Limit(1).
    Find(&job).Error
  if err != nil {
    return nil, err
  }
  if job.ID == uuid.Nil {
    return nil, nil
  }
  return &job, nil
}

func (jr *jobRepo) OldestQueuedByUser(ctx context.Context, tx *gorm.DB, userID uuid.UUID) (*types.Job, error) {
  transaction := tx
  if transaction == nil {
    transaction = jr.db
  }
  var job types.Job
  err := transaction.WithContext(ctx).
    Preload("Items", func(db *gorm.DB) *gorm.DB {
      return db.Order("sequence ASC")
    }).
    Where("user_id = ? AND status = ?", userID, types.JobStatusQueued).
    Order("created_at ASC").
    Limit(1).
    Find(&job).Error
  if err != nil {
    return nil, err
  }
  if job.ID == uuid.Nil {
    return nil, nil
  }
  return &job, nil
}

func (jr *jobRepo) LockByID(ctx context.Context, tx *gorm.DB, jobID uuid.UUID) (*types.Job, error) {
  transaction := tx
  if transaction == nil {
    transaction = jr.db
  }
  q := transaction.WithContext(ctx)
  // sqlite (tests) has no row locks; its writes are serialized anyway.
  if transaction.Dialector.Name() == "postgres" {
    q = q.Clauses(clause.Locking{Strength: "UPDATE"})
  }
  var job types.Job
  err := q.
    Where("id = ?", jobID).
    Limit(1).
    Find(&job).Error
  if err != nil {
    return nil, err
  }
  if job.ID == uuid.Nil {
    return nil, nil
  }
  var items []types.JobItem
  if err := transaction.WithContext(ctx).
    Where("job_id = ?", jobID).
    Order("sequence ASC").
    Find(&items).Error; err != nil {
    return nil, err
  }
  job.Items = items
  return &job, nil
}

func (jr *jobRepo) UpdateFields(ctx context.Context, tx *gorm.DB, jobID uuid.UUID, updates map[string]interface{}) error {
  transaction := tx
  if transaction == nil {
    transaction = jr.db
  }
  if len(updates) == 0 {
    return nil
  }
  return transaction.WithContext(ctx).
    Model(&types.Job{}).
    Where("id = ?", jobID).
    Updates(updates).Error
}

func (jr *jobRepo) UpdateActiveFields(ctx context.Context, tx *gorm.DB, jobID uuid.UUID, updates map[string]interface{}) (int64, error) {
  transaction := tx
  if transaction == nil {
    transaction = jr.db
  }
  if len(updates) == 0 {
    return 0, nil
  }
  res := transaction.WithContext(ctx).
    Model(&types.Job{}).
    Where("id = ? AND status IN ?", jobID, []types.JobStatus{types.JobStatusQueued, types.JobStatusRunning}).
    Updates(updates)
  if res.Error != nil {
    return 0, res.Error
  }
  return res.RowsAffected, nil
}

func (jr *jobRepo) UpdateItemBySequence(ctx context.Context, tx *gorm.DB, jobID uuid.UUID, sequence int, updates map[string]interface{}) error {
  transaction := tx
  if transaction == nil {
    transaction = jr.db
  }
  if len(updates) == 0 {
    return nil
  }
  return transaction.WithContext(ctx).
    Model(&types.JobItem{}).
    Where("job_id = ? AND sequence = ?", jobID, sequence).
    Updates(updates).Error
}

func (jr *jobRepo) UpdateItemByID(ctx context.Context, tx *gorm.DB, itemID uuid.UUID, updates map[string]interface{}) error {
  transaction := tx
  if transaction == nil {
    transaction = jr.db
  }
  if len(updates) == 0 {
    return nil
  }
  return transaction.WithContext(ctx).
    Model(&types.JobItem{}).
    Where("id = ?", itemID).
    Updates(updates).Error
}

func (jr *jobRepo) CancelActiveByUser(ctx context.Context, tx *gorm.DB, userID uuid.UUID, errorMsg string) (int64, error) {
  transaction := tx
  if transaction == nil {
    transaction = jr.db
  }
  now := time.Now()
  res := transaction.WithContext(ctx).
    Model(&types.Job{}).
    Where("user_id = ? AND status IN ?", userID, []types.JobStatus{types.JobStatusQueued, types.JobStatusRunning}).
    Updates(map[string]interface{}{
      "status":      types.JobStatusCanceled,
      "error_msg":   errorMsg,
      "finished_at": now,
    })
  if res.Error != nil {
    return 0, res.Error
  }
  return res.RowsAffected, nil
}
