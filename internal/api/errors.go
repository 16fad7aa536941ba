package api

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/neuroscreen-fusion-server/internal/domain"
	"github.com/neuroscreen-fusion-server/internal/middleware"
)

// statusFor maps an error kind onto an HTTP status and API error code.
func statusFor(err error) (int, string) {
	switch code := domain.ErrorCode(err); code {
	case domain.ErrCodeInvalidInput:
		return http.StatusBadRequest, code
	case domain.ErrCodeConfiguration:
		return http.StatusUnprocessableEntity, code
	case domain.ErrCodeNotFound:
		return http.StatusNotFound, code
	case domain.ErrCodeAnalysisUnavailable:
		return http.StatusServiceUnavailable, code
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return http.StatusGatewayTimeout, "REQUEST_TIMEOUT"
	}
	return http.StatusInternalServerError, domain.ErrCodeInternalServer
}

func (s *Server) respondError(c *gin.Context, err error) {
	status, code := statusFor(err)
	requestID := c.GetString(middleware.CorrelationIDKey)

	message := err.Error()
	if status == http.StatusInternalServerError {
		s.log.WithFields(logrus.Fields{
			"correlation_id": requestID,
			"route":          c.FullPath(),
			"error":          err,
		}).Error("Request failed")
		message = "internal server error"
	}

	var details string
	var invalid *domain.InvalidInputError
	if errors.As(err, &invalid) && invalid.Field != "" {
		details = invalid.Field
		if invalid.Modality != "" {
			details = string(invalid.Modality) + "." + invalid.Field
		}
	}

	_ = c.Error(err)
	c.AbortWithStatusJSON(status, domain.NewAPIError(code, message, details, requestID))
}

func (s *Server) badRequest(c *gin.Context, err error) {
	s.respondError(c, domain.NewInvalidInputError(err.Error()))
}
