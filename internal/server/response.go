package server

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/jaki95/feedback-importer/internal/domain"
	"github.com/jaki95/feedback-importer/internal/job"
)

func respond(c *gin.Context, status int, data any) {
	c.JSON(status, gin.H{"data": data})
}

func fail(c *gin.Context, status int, code, message string) {
	c.JSON(status, domain.Envelope{Error: &domain.APIError{Code: code, Message: message}})
}

// failErr maps manager errors onto HTTP statuses and error codes
func failErr(c *gin.Context, err error) {
	switch {
	case errors.Is(err, job.ErrNotFound):
		fail(c, http.StatusNotFound, domain.CodeNotFound, err.Error())
	case errors.Is(err, job.ErrInvalidState):
		fail(c, http.StatusConflict, domain.CodeInvalidState, err.Error())
	case errors.Is(err, job.ErrInvalidRequest), errors.Is(err, ErrMissingFile):
		fail(c, http.StatusBadRequest, domain.CodeBadRequest, err.Error())
	default:
		slog.Error("Request failed", "path", c.FullPath(), "error", err)
		fail(c, http.StatusInternalServerError, domain.CodeInternal, "internal error")
	}
}
