package errorset

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/vehicle-signal/vis-server/internal/logger"
)

// ErrorHandler renders any AppError left on the gin context as the wire
// error envelope, and logs it at a severity matching its status.
func ErrorHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if len(c.Errors) == 0 {
			return
		}

		log := logger.HTTP()
		err := c.Errors.Last()

		if appErr, ok := err.Err.(*AppError); ok {
			if appErr.Number >= 500 {
				log.Error().Str("reason", appErr.Reason).Str("details", appErr.Details).Msg(appErr.Message)
			} else {
				log.Warn().Str("reason", appErr.Reason).Msg(appErr.Message)
			}
			c.JSON(appErr.Number, appErr.ToResponse())
			return
		}

		log.Error().Err(err.Err).Msg("unhandled error")
		internal := Internal(err.Err)
		c.JSON(http.StatusInternalServerError, internal.ToResponse())
	}
}

// Recovery recovers from panics in downstream handlers and renders them as
// an internal-error response instead of crashing the process.
func Recovery() gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			if r := recover(); r != nil {
				logger.HTTP().Error().Interface("panic", r).Msg("recovered from panic")
				internal := Internal(nil)
				c.JSON(http.StatusInternalServerError, internal.ToResponse())
				c.Abort()
			}
		}()

		c.Next()
	}
}

// HandleError records err on the gin context and writes its response body.
func HandleError(c *gin.Context, err error) {
	if appErr, ok := err.(*AppError); ok {
		c.Error(appErr)
		c.JSON(appErr.Number, appErr.ToResponse())
		return
	}
	internal := Internal(err)
	c.Error(internal)
	c.JSON(internal.Number, internal.ToResponse())
}

// AbortWithError aborts the request immediately with the given AppError.
func AbortWithError(c *gin.Context, err *AppError) {
	c.Error(err)
	c.AbortWithStatusJSON(err.Number, err.ToResponse())
}
