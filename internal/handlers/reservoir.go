package handlers

import (
	"github.com/gin-gonic/gin"

	"github.com/tempero-labs/dispenser-backend/internal/requestdata"
	"github.com/tempero-labs/dispenser-backend/internal/services"
)

type ReservoirHandler struct {
	reservoirs services.ReservoirService
}

func NewReservoirHandler(reservoirs services.ReservoirService) *ReservoirHandler {
	return &ReservoirHandler{reservoirs: reservoirs}
}

// GET /api/reservoirs
func (h *ReservoirHandler) List(c *gin.Context) {
	rd := requestdata.GetRequestData(c.Request.Context())
	configs, err := h.reservoirs.ListForUser(c.Request.Context(), rd.UserID)
	if err != nil {
		RespondError(c, err)
		return
	}
	RespondOK(c, gin.H{"reservoirs": configs})
}

type reservoirUpdateRequest struct {
	Slots []services.ReservoirSlotInput `json:"slots" binding:"required"`
}

// PUT /api/reservoirs
func (h *ReservoirHandler) Update(c *gin.Context) {
	rd := requestdata.GetRequestData(c.Request.Context())
	var req reservoirUpdateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		RespondBadRequest(c, "invalid_body", err)
		return
	}
	configs, err := h.reservoirs.UpdateSlots(c.Request.Context(), rd.UserID, req.Slots)
	if err != nil {
		RespondError(c, err)
		return
	}
	RespondOK(c, gin.H{"reservoirs": configs})
}
