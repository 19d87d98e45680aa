package handlers

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"
)

func handlePanic(c *gin.Context, logger *zap.Logger, route string) {
	if r := recover(); r != nil {
		logger.Error("panic recovered", zap.String("route", route), zap.Any("panic", r), zap.Stack("stack"))
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "internal server error"})
	}
}

func respondWithError(c *gin.Context, logger *zap.Logger, status int, route string, message string) {
	if status >= http.StatusInternalServerError {
		logger.Error("returning error", zap.String("route", route), zap.Int("status", status), zap.String("message", message))
	} else {
		logger.Info("returning error", zap.String("route", route), zap.Int("status", status), zap.String("message", message))
	}
	c.AbortWithStatusJSON(status, gin.H{"error": message})
}

type fieldDetail struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// respondWithBindError reports a request body that failed to decode or to
// pass its binding tags.
func respondWithBindError(c *gin.Context, logger *zap.Logger, route string, err error) {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		respondWithError(c, logger, http.StatusBadRequest, route, "invalid request body")
		return
	}

	details := make([]fieldDetail, 0, len(verrs))
	for _, fe := range verrs {
		details = append(details, fieldDetail{Field: fe.Namespace(), Message: bindMessage(fe)})
	}
	logger.Info("returning error", zap.String("route", route), zap.Int("status", http.StatusBadRequest), zap.Any("details", details))
	c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": details[0].Message, "details": details})
}

func bindMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return fmt.Sprintf("%s is required", fe.Field())
	case "email":
		return fmt.Sprintf("%s must be a valid email address", fe.Field())
	case "max":
		return fmt.Sprintf("%s must be at most %s", fe.Field(), fe.Param())
	case "min":
		return fmt.Sprintf("%s must be at least %s", fe.Field(), fe.Param())
	}
	return fmt.Sprintf("%s is invalid", fe.Field())
}
