package http

import (
	"errors"
	"net/http"
	"sort"

	"github.com/gin-gonic/gin"
	validation "github.com/go-ozzo/ozzo-validation"

	"quillpost/internal/auth"
	"quillpost/internal/service"
)

// ValidationDetail is one entry of a 422 response.
type ValidationDetail struct {
	Loc  []string `json:"loc"`
	Msg  string   `json:"msg"`
	Type string   `json:"type"`
}

func (h *Handler) writeError(c *gin.Context, err error) {
	var verrs validation.Errors
	switch {
	case errors.As(err, &verrs):
		c.JSON(http.StatusUnprocessableEntity, gin.H{"detail": validationDetails(verrs)})
	case errors.Is(err, auth.ErrEmptyPassword), errors.Is(err, auth.ErrPasswordTooLong):
		c.JSON(http.StatusUnprocessableEntity, gin.H{"detail": []ValidationDetail{{
			Loc:  []string{"body", "password"},
			Msg:  err.Error(),
			Type: "value_error",
		}}})
	case errors.Is(err, auth.ErrAuthUnavailable):
		h.logger.WithError(err).Warn("authentication unavailable")
		c.JSON(http.StatusServiceUnavailable, gin.H{"detail": "Authentication temporarily unavailable"})
	case errors.Is(err, auth.ErrUnauthenticated):
		c.Header("WWW-Authenticate", "Bearer")
		c.JSON(http.StatusUnauthorized, gin.H{"detail": "Not authenticated"})
	case errors.Is(err, service.ErrInvalidCredentials):
		c.JSON(http.StatusUnauthorized, gin.H{"detail": "Invalid credentials"})
	case errors.Is(err, service.ErrUserAlreadyExists):
		c.JSON(http.StatusBadRequest, gin.H{"detail": "Email already registered"})
	case errors.Is(err, service.ErrSlugExists):
		c.JSON(http.StatusBadRequest, gin.H{"detail": "Slug already exists"})
	case errors.Is(err, service.ErrPostNotFound):
		c.JSON(http.StatusNotFound, gin.H{"detail": "Post does not exist"})
	case errors.Is(err, service.ErrVersionNotFound):
		c.JSON(http.StatusNotFound, gin.H{"detail": "Version does not exist"})
	case errors.Is(err, service.ErrForbidden):
		c.JSON(http.StatusForbidden, gin.H{"detail": "Not enough permissions"})
	default:
		h.logger.WithError(err).WithField("path", c.FullPath()).Error("request failed")
		c.JSON(http.StatusInternalServerError, gin.H{"detail": "Internal server error"})
	}
}

func validationDetails(verrs validation.Errors) []ValidationDetail {
	fields := make([]string, 0, len(verrs))
	for field := range verrs {
		fields = append(fields, field)
	}
	sort.Strings(fields)

	details := make([]ValidationDetail, 0, len(fields))
	for _, field := range fields {
		details = append(details, ValidationDetail{
			Loc:  []string{"body", field},
			Msg:  verrs[field].Error(),
			Type: "value_error",
		})
	}
	return details
}
