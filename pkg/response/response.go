// Package response implements the JSON envelope every HTTP handler
// returns: {"success": bool, "data": ..., "error": ...}.
package response

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// Body is the response envelope.
type Body struct {
	Success bool   `json:"success"`
	Data    any    `json:"data,omitempty"`
	Error   string `json:"error,omitempty"`
}

// OK sends 200 with data.
func OK(c *gin.Context, data any) {
	c.JSON(http.StatusOK, Body{Success: true, Data: data})
}

// Created sends 201 with data.
func Created(c *gin.Context, data any) {
	c.JSON(http.StatusCreated, Body{Success: true, Data: data})
}

// NoContent sends 204 with an empty body.
func NoContent(c *gin.Context) {
	c.Status(http.StatusNoContent)
}

// BadRequest sends 400 with a message.
func BadRequest(c *gin.Context, msg string) {
	fail(c, http.StatusBadRequest, msg)
}

// Unauthorized sends 401 with a message.
func Unauthorized(c *gin.Context, msg string) {
	fail(c, http.StatusUnauthorized, msg)
}

// NotFound sends 404 with a message.
func NotFound(c *gin.Context, msg string) {
	fail(c, http.StatusNotFound, msg)
}

// Internal sends 500 with a message.
func Internal(c *gin.Context, msg string) {
	fail(c, http.StatusInternalServerError, msg)
}

func fail(c *gin.Context, status int, msg string) {
	c.JSON(status, Body{Success: false, Error: msg})
}
