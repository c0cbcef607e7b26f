package types

import (
  "time"
  "github.com/google/uuid"
  "gorm.io/datatypes"
)

type JobStatus string

const (
  JobStatusQueued      JobStatus = "queued"
  JobStatusRunning     JobStatus = "running"
  JobStatusDone        JobStatus = "done"
  JobStatusDonePartial JobStatus = "done_partial"
  JobStatusFailed      JobStatus = "failed"
  JobStatusCanceled    JobStatus = "canceled"
)

// IsTerminal reports whether no further mutation of the job is permitted.
func (s JobStatus) IsTerminal() bool {
  switch s {
  case JobStatusDone, JobStatusDonePartial, JobStatusFailed, JobStatusCanceled:
    return true
  }
  return false
}

// IsActive reports whether the job counts against the one-active-job-per-user
// admission limit.
func (s JobStatus) IsActive() bool {
  return s == JobStatusQueued || s == JobStatusRunning
}

type Job struct {
  ID                uuid.UUID      `gorm:"type:uuid;primaryKey" json:"id"`
  UserID            uuid.UUID      `gorm:"type:uuid;index;not null" json:"user_id"`
  RecipeID          *uuid.UUID     `gorm:"type:uuid;index" json:"recipe_id"`
  Status            JobStatus      `gorm:"size:20;index;not null;default:queued" json:"status"`
  // Multiplier is the legacy scaling input; RequestedServings always wins and
  // Multiplier mirrors the effective value for old readers.
  Multiplier        int            `gorm:"not null;default:1" json:"multiplier"`
  RequestedServings int            `gorm:"not null;default:1;column:requested_servings" json:"requested_servings"`
  CreatedAt         time.Time      `gorm:"not null" json:"created_at"`
  StartedAt         *time.Time     `json:"started_at"`
  FinishedAt        *time.Time     `json:"finished_at"`
  ItemsCompleted    *int           `gorm:"column:items_completed" json:"items_completed"`
  ItemsFailed       *int           `gorm:"column:items_failed" json:"items_failed"`
  // StockDeducted records whether settlement managed to subtract inventory,
  // so duplicate completion acks can echo the truthful outcome.
  StockDeducted     bool           `gorm:"not null;default:false;column:stock_deducted" json:"stock_deducted"`
  ExecutionReport   datatypes.JSON `gorm:"column:execution_report" json:"execution_report"`
  ErrorMsg          *string        `gorm:"size:255;column:error_msg" json:"error_msg"`
  Items             []JobItem      `gorm:"constraint:OnDelete:CASCADE;foreignKey:JobID;references:ID" json:"items"`
}

func (Job) TableName() string {
  return "jobs"
}

type JobItemStatus string

const (
  JobItemStatusQueued  JobItemStatus = "queued"
  JobItemStatusRunning JobItemStatus = "running"
  JobItemStatusDone    JobItemStatus = "done"
  JobItemStatusFailed  JobItemStatus = "failed"
)

// Valid reports whether s is one of the item statuses devices may persist.
func (s JobItemStatus) Valid() bool {
  switch s {
  case JobItemStatusQueued, JobItemStatusRunning, JobItemStatusDone, JobItemStatusFailed:
    return true
  }
  return false
}

type JobItem struct {
  ID              uuid.UUID     `gorm:"type:uuid;primaryKey" json:"id"`
  JobID           uuid.UUID     `gorm:"type:uuid;index;not null" json:"job_id"`
  Sequence        int           `gorm:"not null" json:"sequence"`
  ReservoirSlot   int           `gorm:"not null;column:reservoir_slot" json:"reservoir_slot"`
  Label           string        `gorm:"size:60;not null" json:"label"`
  QuantityGrams   float64       `gorm:"not null;column:quantity_grams" json:"quantity_grams"`
  DurationSeconds float64       `gorm:"not null;column:duration_seconds" json:"duration_seconds"`
  Status          JobItemStatus `gorm:"size:20;not null;default:queued" json:"status"`
  ErrorMsg        *string       `gorm:"size:255;column:error_msg" json:"error_msg"`
}

func (JobItem) TableName() string {
  return "job_items"
}

// ExecutionLogEntry is one per-reservoir line of a device execution report.
// Failed entries contribute zero grams to inventory deduction.
type ExecutionLogEntry struct {
  ReservoirSlot int     `json:"reservoir_slot"`
  Label         string  `json:"label"`
  QuantityGrams float64 `json:"quantity_grams"`
  Seconds       float64 `json:"seconds"`
  Status        string  `json:"status"`
  Error         *string `json:"error"`
}
