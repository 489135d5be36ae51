package http

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"dispatch-center/internal/service"
)

// HandleServiceError maps business errors from the service layer onto HTTP
// status codes. Anything unrecognized is treated as an internal error.
func HandleServiceError(c *gin.Context, err error) {
	if errors.Is(err, service.ErrCallNotFound) || errors.Is(err, service.ErrAssignmentNotFound) {
		ErrorResponse(c, http.StatusNotFound, err.Error())
	} else if errors.Is(err, service.ErrInvalidTransition) || errors.Is(err, service.ErrCallNotActive) {
		ErrorResponse(c, http.StatusConflict, err.Error())
	} else if errors.Is(err, service.ErrAlreadyAssigned) || errors.Is(err, service.ErrAlreadyActive) {
		ErrorResponse(c, http.StatusConflict, err.Error())
	} else if errors.Is(err, service.ErrInvalidQueue) {
		ErrorResponse(c, http.StatusBadRequest, err.Error())
	} else {
		// Log the internal error for debugging
		logrus.WithError(err).Error("Unhandled internal server error")
		ErrorResponse(c, http.StatusInternalServerError, "An unexpected error occurred")
	}
}
