package http

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"quillpost/internal/domain"
	"quillpost/internal/service"
)

const principalKey = "principal"

// requireUser rejects the request unless it carries a valid bearer token for an active user.
func (h *Handler) requireUser() gin.HandlerFunc {
	return func(c *gin.Context) {
		user, err := h.auth.AuthenticateRequest(c.Request.Context(), c.GetHeader("Authorization"))
		if err != nil {
			h.writeError(c, err)
			c.Abort()
			return
		}
		c.Set(principalKey, user)
		c.Next()
	}
}

func currentUser(c *gin.Context) *domain.User {
	value, ok := c.Get(principalKey)
	if !ok {
		return nil
	}
	user, _ := value.(*domain.User)
	return user
}

func (h *Handler) register(c *gin.Context) {
	var req service.Credentials
	if !h.bindJSON(c, &req) {
		return
	}

	user, err := h.users.Register(c.Request.Context(), req)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{
		"message": "User registered successfully",
		"user":    userToResponse(user),
	})
}

func (h *Handler) login(c *gin.Context) {
	var req service.Credentials
	if !h.bindJSON(c, &req) {
		return
	}

	session, err := h.users.Login(c.Request.Context(), req)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, TokenResponse{
		AccessToken: session.AccessToken,
		TokenType:   "bearer",
		ExpiresIn:   int64(session.ExpiresIn.Seconds()),
	})
}

func (h *Handler) me(c *gin.Context) {
	c.JSON(http.StatusOK, userToResponse(currentUser(c)))
}
