package utils

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// Success writes the standard envelope with success=true, merging in the
// handler's payload fields.
func Success(c *gin.Context, data gin.H) {
	body := gin.H{"success": true}
	for k, v := range data {
		body[k] = v
	}
	c.JSON(http.StatusOK, body)
}

// Error writes the standard failure envelope: success=false plus a
// human-readable description.
func Error(c *gin.Context, code int, description string) {
	c.JSON(code, gin.H{
		"success":     false,
		"description": description,
	})
}

// ErrorWithData attaches extra structured fields to a failure envelope.
func ErrorWithData(c *gin.Context, code int, description string, data gin.H) {
	body := gin.H{
		"success":     false,
		"description": description,
	}
	for k, v := range data {
		body[k] = v
	}
	c.JSON(code, body)
}
