package handlers

import (
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"gorm.io/datatypes"

	"github.com/tempero-labs/dispenser-backend/internal/requestdata"
	"github.com/tempero-labs/dispenser-backend/internal/services"
	"github.com/tempero-labs/dispenser-backend/internal/types"
)

type DeviceHandler struct {
	devices    services.DeviceService
	jobs       services.JobService
	completion services.CompletionService
}

func NewDeviceHandler(devices services.DeviceService, jobs services.JobService, completion services.CompletionService) *DeviceHandler {
	return &DeviceHandler{devices: devices, jobs: jobs, completion: completion}
}

// POST /api/devices/claim-code  (user scope)
func (h *DeviceHandler) IssueClaimCode(c *gin.Context) {
	rd := requestdata.GetRequestData(c.Request.Context())
	claim, err := h.devices.IssueClaimCode(c.Request.Context(), rd.UserID)
	if err != nil {
		RespondError(c, err)
		return
	}
	RespondOK(c, gin.H{
		"code":       claim.Code,
		"expires_at": claim.ExpiresAt,
	})
}

// GET /api/devices  (user scope)
func (h *DeviceHandler) List(c *gin.Context) {
	rd := requestdata.GetRequestData(c.Request.Context())
	views, err := h.devices.ListForUser(c.Request.Context(), rd.UserID)
	if err != nil {
		RespondError(c, err)
		return
	}
	RespondOK(c, gin.H{"devices": views})
}

type claimRequest struct {
	Code       string `json:"code" binding:"required"`
	HardwareID string `json:"hardware_id" binding:"required"`
	FWVersion  string `json:"fw_version"`
}

// POST /devices/claim  (public: the device presents the pairing code)
func (h *DeviceHandler) Claim(c *gin.Context) {
	var req claimRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		RespondBadRequest(c, "invalid_body", err)
		return
	}
	device, token, err := h.devices.RedeemClaim(c.Request.Context(), req.Code, req.HardwareID, req.FWVersion)
	if err != nil {
		RespondError(c, err)
		return
	}
	RespondOK(c, gin.H{
		"device":             device,
		"token":              token,
		"heartbeat_interval": services.HeartbeatInterval.Seconds(),
	})
}

type heartbeatRequest struct {
	FWVersion string         `json:"fw_version"`
	Status    datatypes.JSON `json:"status"`
}

// POST /devices/me/heartbeat  (device scope)
func (h *DeviceHandler) Heartbeat(c *gin.Context) {
	rd := requestdata.GetRequestData(c.Request.Context())
	var req heartbeatRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		RespondBadRequest(c, "invalid_body", err)
		return
	}
	if err := h.devices.Heartbeat(c.Request.Context(), rd.DeviceID, req.FWVersion, req.Status); err != nil {
		RespondError(c, err)
		return
	}
	RespondOK(c, gin.H{
		"ok":                 true,
		"heartbeat_interval": services.HeartbeatInterval.Seconds(),
	})
}

// GET /devices/me/jobs/next  (device scope)
func (h *DeviceHandler) NextJob(c *gin.Context) {
	rd := requestdata.GetRequestData(c.Request.Context())
	job, err := h.jobs.NextForDevice(c.Request.Context(), rd.UserID)
	if err != nil {
		RespondError(c, err)
		return
	}
	RespondOK(c, gin.H{"job": job})
}

// POST /devices/me/jobs/:id/report  (device scope, incremental)
func (h *DeviceHandler) Report(c *gin.Context) {
	rd := requestdata.GetRequestData(c.Request.Context())
	jobID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		RespondBadRequest(c, "invalid_job_id", err)
		return
	}
	var req services.ProgressReport
	if err := c.ShouldBindJSON(&req); err != nil {
		RespondBadRequest(c, "invalid_body", err)
		return
	}
	job, err := h.jobs.ReportProgress(c.Request.Context(), rd.UserID, jobID, req)
	if err != nil {
		RespondError(c, err)
		return
	}
	RespondOK(c, gin.H{"job": job})
}

type completeRequest struct {
	ItemsCompleted int                       `json:"items_completed"`
	ItemsFailed    int                       `json:"items_failed"`
	ExecutionLogs  []types.ExecutionLogEntry `json:"execution_logs"`
}

// POST /devices/me/jobs/:id/complete  (device scope, terminal)
func (h *DeviceHandler) Complete(c *gin.Context) {
	rd := requestdata.GetRequestData(c.Request.Context())
	jobID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		RespondBadRequest(c, "invalid_job_id", err)
		return
	}
	var req completeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		RespondBadRequest(c, "invalid_body", err)
		return
	}
	result, err := h.completion.Complete(c.Request.Context(), rd.UserID, jobID, req.ItemsCompleted, req.ItemsFailed, req.ExecutionLogs)
	if err != nil {
		RespondError(c, err)
		return
	}
	RespondOK(c, gin.H{"result": result})
}
