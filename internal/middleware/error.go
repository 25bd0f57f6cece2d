package middleware

import (
	"context"
	"errors"

	"github.com/gin-gonic/gin"
	"github.com/neria/manager/internal/pkg/apperrors"
	"github.com/neria/manager/internal/pkg/logger"
)

// ErrorHandler renders the last error pushed with c.Error as an AppError body.
// Handlers that already wrote a response keep it.
func ErrorHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		last := c.Errors.Last()
		if last == nil {
			return
		}
		appErr := toAppError(last)

		log := logger.FromContext(c.Request.Context()).With(
			"route", c.FullPath(),
			"code", appErr.Type,
			"status", appErr.HTTPStatus,
		)
		switch {
		case errors.Is(last.Err, context.Canceled):
			log.Info("client went away", "error", last.Err.Error())
		case appErr.HTTPStatus >= 500:
			log.Error("request failed", "error", appErr.Error())
		default:
			log.Warn(appErr.Message)
		}

		if !c.Writer.Written() {
			c.JSON(appErr.HTTPStatus, appErr)
		}
	}
}

func toAppError(e *gin.Error) *apperrors.AppError {
	var appErr *apperrors.AppError
	switch {
	case errors.As(e.Err, &appErr):
		return appErr
	case e.IsType(gin.ErrorTypeBind):
		return apperrors.BadRequest("Invalid request body", e.Err)
	case errors.Is(e.Err, context.DeadlineExceeded):
		return apperrors.BadGateway("Upstream timed out", e.Err)
	default:
		return apperrors.Internal(e.Err.Error(), e.Err)
	}
}
