package meetingrooms

import (
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/aura-meet/engagement/internal/cities"
	"github.com/aura-meet/engagement/internal/models"
	"github.com/aura-meet/engagement/pkg/response"
)

// CreateRequest is the body for POST /meeting-rooms.
type CreateRequest struct {
	Name   string `json:"name" binding:"required"`
	CityID string `json:"city_id" binding:"required,uuid"`
}

// Page is the paginated list response.
type Page struct {
	Items    []models.MeetingRoom `json:"items"`
	Page     int                  `json:"page"`
	PageSize int                  `json:"page_size"`
	Total    int                  `json:"total"`
}

// Handler handles meeting room HTTP endpoints.
type Handler struct {
	repo *Repository
}

// NewHandler creates a meeting room handler.
func NewHandler(repo *Repository) *Handler {
	return &Handler{repo: repo}
}

// Create handles POST /meeting-rooms.
func (h *Handler) Create(c *gin.Context) {
	var req CreateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request: "+err.Error())
		return
	}
	cityID, err := uuid.Parse(req.CityID)
	if err != nil {
		response.BadRequest(c, "invalid city_id")
		return
	}
	room := &models.MeetingRoom{Name: req.Name, CityID: cityID}
	if err := h.repo.Create(c.Request.Context(), room); err != nil {
		response.Internal(c, "failed to create meeting room")
		return
	}
	response.Created(c, room)
}

// List handles GET /meeting-rooms.
func (h *Handler) List(c *gin.Context) {
	page, pageSize := cities.Pagination(c)
	var cityID *uuid.UUID
	if raw := c.Query("city_id"); raw != "" {
		id, err := uuid.Parse(raw)
		if err != nil {
			response.BadRequest(c, "invalid city_id")
			return
		}
		cityID = &id
	}
	list, total, err := h.repo.List(c.Request.Context(), cityID, pageSize, (page-1)*pageSize)
	if err != nil {
		response.Internal(c, "failed to list meeting rooms")
		return
	}
	if list == nil {
		list = []models.MeetingRoom{}
	}
	response.OK(c, Page{Items: list, Page: page, PageSize: pageSize, Total: total})
}
