package handlers

import (
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/tempero-labs/dispenser-backend/internal/platform/apierr"
	"github.com/tempero-labs/dispenser-backend/internal/requestdata"
	"github.com/tempero-labs/dispenser-backend/internal/services"
	"github.com/tempero-labs/dispenser-backend/internal/sse"
)

// MonitorHandler attaches observers to a job's live execution stream.
type MonitorHandler struct {
	jobs services.JobService
	hub  *sse.Hub
}

func NewMonitorHandler(jobs services.JobService, hub *sse.Hub) *MonitorHandler {
	return &MonitorHandler{jobs: jobs, hub: hub}
}

// GET /jobs/:id/events
//
// With a user token the job must belong to that user; without one the
// connection is anonymous (lightweight monitoring). An unknown job id is
// refused before any observer registration happens.
func (h *MonitorHandler) JobEvents(c *gin.Context) {
	jobID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		RespondBadRequest(c, "invalid_job_id", err)
		return
	}
	job, err := h.jobs.Lookup(c.Request.Context(), jobID)
	if err != nil {
		RespondError(c, err)
		return
	}

	observerUserID := uuid.Nil
	if rd := requestdata.GetRequestData(c.Request.Context()); rd != nil {
		if job.UserID != rd.UserID {
			RespondError(c, apierr.Forbidden("job_not_owned", "job is not owned by this user"))
			return
		}
		observerUserID = rd.UserID
	}

	client := h.hub.NewClient(observerUserID)
	h.hub.AddChannel(client, sse.JobChannel(jobID))
	defer h.hub.CloseClient(client)

	h.hub.ServeHTTP(c.Writer, c.Request, client)
}
