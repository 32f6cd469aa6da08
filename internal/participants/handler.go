package participants

import (
	"context"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/aura-meet/engagement/internal/engagement"
	"github.com/aura-meet/engagement/pkg/response"
)

// StatusRecorder records a status update for an existing participant,
// clamped to the meeting window.
type StatusRecorder interface {
	RecordStatusByParticipant(ctx context.Context, participantID uuid.UUID, status engagement.Status, at time.Time) error
}

// StatusRequest is the body for POST /users/status, the legacy HTTP
// status path kept for older dashboard builds.
type StatusRequest struct {
	ParticipantID string `json:"participant_id" binding:"required,uuid"`
	Status        string `json:"status" binding:"required"`
}

// Handler handles participant HTTP endpoints.
type Handler struct {
	recorder StatusRecorder
}

// NewHandler creates a participant handler.
func NewHandler(recorder StatusRecorder) *Handler {
	return &Handler{recorder: recorder}
}

// RecordStatus handles POST /users/status.
func (h *Handler) RecordStatus(c *gin.Context) {
	var req StatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request: "+err.Error())
		return
	}
	participantID, err := uuid.Parse(req.ParticipantID)
	if err != nil {
		response.BadRequest(c, "invalid participant_id")
		return
	}
	status := engagement.Status(req.Status)
	if !status.Valid() {
		response.BadRequest(c, "unknown status")
		return
	}
	if err := h.recorder.RecordStatusByParticipant(c.Request.Context(), participantID, status, time.Now()); err != nil {
		response.Internal(c, "failed to record status")
		return
	}
	response.NoContent(c)
}
