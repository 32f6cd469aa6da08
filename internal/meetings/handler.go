package meetings

import (
	"errors"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/aura-meet/engagement/pkg/response"
)

// VisitRequest is the body for POST /visit.
type VisitRequest struct {
	MeetingRoomID *string `json:"meeting_room_id"`
	MSTeams       string  `json:"ms_teams"`
	Fingerprint   string  `json:"fingerprint" binding:"required"`
}

// DurationRequest is the body for PATCH /meetings/:id/duration.
type DurationRequest struct {
	DurationMinutes int `json:"duration_minutes" binding:"required,min=1"`
}

// Handler handles meeting HTTP endpoints.
type Handler struct {
	svc *Service
}

// NewHandler creates a meeting handler.
func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

// Visit handles POST /visit.
func (h *Handler) Visit(c *gin.Context) {
	var req VisitRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request: "+err.Error())
		return
	}

	in := VisitInput{MSTeams: req.MSTeams, Fingerprint: req.Fingerprint}
	if req.MeetingRoomID != nil {
		roomID, err := uuid.Parse(*req.MeetingRoomID)
		if err != nil {
			response.BadRequest(c, "invalid meeting_room_id")
			return
		}
		in.MeetingRoomID = &roomID
	}

	result, err := h.svc.Visit(c.Request.Context(), in)
	if err != nil {
		response.BadRequest(c, err.Error())
		return
	}
	response.OK(c, result)
}

// GetByID handles GET /meetings/:id.
func (h *Handler) GetByID(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid meeting id")
		return
	}
	detail, err := h.svc.GetMeeting(c.Request.Context(), id)
	if errors.Is(err, ErrNotFound) {
		response.NotFound(c, "meeting not found")
		return
	}
	if err != nil {
		response.Internal(c, "failed to load meeting")
		return
	}
	response.OK(c, detail)
}

// Engagement handles GET /meetings/:id/engagement.
func (h *Handler) Engagement(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid meeting id")
		return
	}
	summary, err := h.svc.Snapshot(c.Request.Context(), id)
	if errors.Is(err, ErrNotFound) {
		response.NotFound(c, "meeting not found")
		return
	}
	if err != nil {
		response.Internal(c, "failed to load engagement")
		return
	}
	response.OK(c, summary)
}

// UpdateDuration handles PATCH /meetings/:id/duration.
func (h *Handler) UpdateDuration(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid meeting id")
		return
	}
	var req DurationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request: "+err.Error())
		return
	}
	detail, err := h.svc.UpdateDuration(c.Request.Context(), id, req.DurationMinutes)
	if errors.Is(err, ErrNotFound) {
		response.NotFound(c, "meeting not found")
		return
	}
	if err != nil {
		response.Internal(c, "failed to update duration")
		return
	}
	response.OK(c, detail)
}

// Summary handles GET /meetings/:id/summary.
func (h *Handler) Summary(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid meeting id")
		return
	}
	summary, err := h.svc.repo.GetSummary(c.Request.Context(), id)
	if errors.Is(err, ErrNotFound) {
		response.NotFound(c, "summary not found")
		return
	}
	if err != nil {
		response.Internal(c, "failed to load summary")
		return
	}
	response.OK(c, summary)
}
