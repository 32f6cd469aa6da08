package cities

import (
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/aura-meet/engagement/internal/models"
	"github.com/aura-meet/engagement/pkg/response"
)

// CreateRequest is the body for POST /cities.
type CreateRequest struct {
	Name string `json:"name" binding:"required"`
}

// Page is the paginated list response.
type Page struct {
	Items    []models.City `json:"items"`
	Page     int           `json:"page"`
	PageSize int           `json:"page_size"`
	Total    int           `json:"total"`
}

// Handler handles city HTTP endpoints.
type Handler struct {
	repo *Repository
}

// NewHandler creates a city handler.
func NewHandler(repo *Repository) *Handler {
	return &Handler{repo: repo}
}

// Create handles POST /cities.
func (h *Handler) Create(c *gin.Context) {
	var req CreateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request: "+err.Error())
		return
	}
	city := &models.City{Name: req.Name}
	if err := h.repo.Create(c.Request.Context(), city); err != nil {
		response.Internal(c, "failed to create city")
		return
	}
	response.Created(c, city)
}

// List handles GET /cities.
func (h *Handler) List(c *gin.Context) {
	page, pageSize := Pagination(c)
	list, total, err := h.repo.List(c.Request.Context(), pageSize, (page-1)*pageSize)
	if err != nil {
		response.Internal(c, "failed to list cities")
		return
	}
	if list == nil {
		list = []models.City{}
	}
	response.OK(c, Page{Items: list, Page: page, PageSize: pageSize, Total: total})
}

// Pagination parses page/page_size query params with sane bounds.
func Pagination(c *gin.Context) (page, pageSize int) {
	page, _ = strconv.Atoi(c.DefaultQuery("page", "1"))
	pageSize, _ = strconv.Atoi(c.DefaultQuery("page_size", "50"))
	if page < 1 {
		page = 1
	}
	if pageSize < 1 || pageSize > 200 {
		pageSize = 50
	}
	return page, pageSize
}
