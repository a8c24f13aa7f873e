package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/Freeeeeet/drivingschool_scheduler/internal/apperr"
)

// Envelope represents the common response contract.
type Envelope struct {
	Data  any            `json:"data,omitempty"`
	Error *apperr.Error  `json:"error,omitempty"`
	Meta  map[string]any `json:"meta,omitempty"`
}

// JSON sends a success response with optional metadata.
func JSON(c *gin.Context, status int, data any, meta ...map[string]any) {
	c.Header("Cache-Control", "no-store")
	envelope := Envelope{Data: data}
	if len(meta) > 0 && meta[0] != nil {
		envelope.Meta = meta[0]
	}
	c.JSON(status, envelope)
}

// Created responds with HTTP 201 Created.
func Created(c *gin.Context, data any) {
	JSON(c, http.StatusCreated, data)
}

// Error sends an error response converting the error to the common structure.
func Error(c *gin.Context, err error) {
	appErr := apperr.FromError(err)
	if appErr.Status >= http.StatusInternalServerError {
		_ = c.Error(err)
	}
	c.Header("Cache-Control", "no-store")
	c.AbortWithStatusJSON(appErr.Status, Envelope{Error: appErr})
}

// badRequest ошибка разбора запроса
func badRequest(c *gin.Context, err error, message string) {
	Error(c, apperr.Wrap(err, apperr.ErrValidation.Code, http.StatusBadRequest, message))
}
