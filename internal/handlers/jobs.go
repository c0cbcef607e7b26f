package handlers

import (
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/tempero-labs/dispenser-backend/internal/requestdata"
	"github.com/tempero-labs/dispenser-backend/internal/services"
)

type JobsHandler struct {
	jobs services.JobService
}

func NewJobsHandler(jobs services.JobService) *JobsHandler {
	return &JobsHandler{jobs: jobs}
}

type createJobRequest struct {
	RecipeID          uuid.UUID `json:"recipe_id" binding:"required"`
	RequestedServings int       `json:"requested_servings"`
	// Multiplier is accepted for legacy clients; requested_servings wins.
	Multiplier int `json:"multiplier"`
}

// POST /api/jobs
func (h *JobsHandler) Create(c *gin.Context) {
	rd := requestdata.GetRequestData(c.Request.Context())
	var req createJobRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		RespondBadRequest(c, "invalid_body", err)
		return
	}
	job, err := h.jobs.Create(c.Request.Context(), rd.UserID, services.CreateJobInput{
		RecipeID:          req.RecipeID,
		RequestedServings: req.RequestedServings,
		Multiplier:        req.Multiplier,
	})
	if err != nil {
		RespondError(c, err)
		return
	}
	RespondOK(c, gin.H{"job": job})
}

// GET /api/jobs/:id
func (h *JobsHandler) Get(c *gin.Context) {
	rd := requestdata.GetRequestData(c.Request.Context())
	jobID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		RespondBadRequest(c, "invalid_job_id", err)
		return
	}
	job, err := h.jobs.GetForUser(c.Request.Context(), rd.UserID, jobID)
	if err != nil {
		RespondError(c, err)
		return
	}
	RespondOK(c, gin.H{"job": job})
}

// GET /api/jobs/active
func (h *JobsHandler) Active(c *gin.Context) {
	rd := requestdata.GetRequestData(c.Request.Context())
	job, err := h.jobs.ActiveForUser(c.Request.Context(), rd.UserID)
	if err != nil {
		RespondError(c, err)
		return
	}
	RespondOK(c, gin.H{"job": job})
}

// POST /api/jobs/cancel
func (h *JobsHandler) Cancel(c *gin.Context) {
	rd := requestdata.GetRequestData(c.Request.Context())
	count, err := h.jobs.CancelForUser(c.Request.Context(), rd.UserID)
	if err != nil {
		RespondError(c, err)
		return
	}
	RespondOK(c, gin.H{"canceled": count})
}
