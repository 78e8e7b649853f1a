package handlers

import (
	"errors"

	"github.com/gin-gonic/gin"

	"whatsapp-campaigns/internal/dto"
	"whatsapp-campaigns/internal/repositories"
	"whatsapp-campaigns/internal/services"
	"whatsapp-campaigns/pkg/logger"
	"whatsapp-campaigns/pkg/response"
	"whatsapp-campaigns/pkg/utils"
)

// respondError maps domain errors onto HTTP responses
func respondError(c *gin.Context, log *logger.Logger, err error) {
	var validationErr *dto.ValidationError
	var validationErrs *dto.ValidationErrors

	switch {
	case errors.As(err, &validationErr), errors.As(err, &validationErrs):
		response.BadRequest(c, err.Error())

	case errors.Is(err, services.ErrSessionNotReady),
		errors.Is(err, services.ErrNoValidRecipients),
		errors.Is(err, services.ErrInvalidScheduleTime),
		errors.Is(err, services.ErrMessageRequired),
		errors.Is(err, services.ErrInvalidSessionID),
		errors.Is(err, utils.ErrUnsupportedContactsFile),
		errors.Is(err, utils.ErrInvalidContactsFile):
		response.BadRequest(c, err.Error())

	case errors.Is(err, services.ErrScheduleNotFound),
		errors.Is(err, services.ErrGroupNotFound),
		errors.Is(err, repositories.ErrNotFound):
		response.NotFound(c, err.Error())

	case errors.Is(err, services.ErrManagerStopped),
		errors.Is(err, services.ErrSchedulerStopped),
		errors.Is(err, services.ErrManagerClosed):
		response.ServiceUnavailable(c, err.Error())

	case errors.Is(err, services.ErrInitialization):
		log.Error("Session initialization failed: %v", err)
		response.InternalError(c, "Failed to initialize session")

	default:
		log.Error("Request %s %s failed: %v", c.Request.Method, c.Request.URL.Path, err)
		response.InternalError(c, "")
	}
}
