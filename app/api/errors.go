package api

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"

	"github.com/lysyi3m/watchlist/app/watchlist"
)

func statusFor(kind watchlist.Kind) int {
	switch kind {
	case watchlist.KindBadRequest:
		return http.StatusBadRequest
	case watchlist.KindNotFound:
		return http.StatusNotFound
	case watchlist.KindRateLimited:
		return http.StatusTooManyRequests
	case watchlist.KindUpstream:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func respondError(c *gin.Context, err error) {
	var svcErr *watchlist.Error
	if !errors.As(err, &svcErr) {
		slog.Error("Unhandled error", "path", c.Request.URL.Path, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	status := statusFor(svcErr.Kind)
	if status >= http.StatusInternalServerError {
		slog.Error("Request failed", "path", c.Request.URL.Path, "kind", svcErr.Kind, "error", err)
	}
	if svcErr.Kind == watchlist.KindRateLimited {
		c.Header("Retry-After", strconv.Itoa(svcErr.RetryAfter))
	}

	_ = c.Error(err)
	c.JSON(status, gin.H{"error": svcErr.Message})
}

// bindJSON decodes the body into req. On failure it answers 400 and returns
// false. Validation failures name the offending field; anything else gets
// fallback.
func bindJSON(c *gin.Context, req any, fallback string) bool {
	err := c.ShouldBindJSON(req)
	if err == nil {
		return true
	}

	message := fallback
	var validationErrs validator.ValidationErrors
	if errors.As(err, &validationErrs) && len(validationErrs) > 0 {
		message = translateError(validationErrs[0])
	}

	c.JSON(http.StatusBadRequest, gin.H{"error": message})
	return false
}

func translateError(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return fmt.Sprintf("%s is required", fe.Field())
	case "gt":
		return fmt.Sprintf("%s must be greater than %s", fe.Field(), fe.Param())
	case "min":
		return fmt.Sprintf("%s must be at least %s", fe.Field(), fe.Param())
	case "max":
		return fmt.Sprintf("%s must be at most %s", fe.Field(), fe.Param())
	case "oneof":
		return fmt.Sprintf("%s must be one of: %s", fe.Field(), fe.Param())
	default:
		return fmt.Sprintf("%s is invalid", fe.Field())
	}
}
