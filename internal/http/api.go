package http

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"quillpost/internal/auth"
	"quillpost/internal/service"
)

// Handler wires HTTP routes to domain services.
type Handler struct {
	users   service.UserService
	posts   service.PostService
	feed    service.FeedService
	auth    *auth.Authenticator
	origins []string
	logger  logrus.FieldLogger
}

func NewHandler(
	users service.UserService,
	posts service.PostService,
	feed service.FeedService,
	authenticator *auth.Authenticator,
	corsOrigins []string,
	logger logrus.FieldLogger,
) *Handler {
	if logger == nil {
		logger = logrus.New()
	}
	return &Handler{
		users:   users,
		posts:   posts,
		feed:    feed,
		auth:    authenticator,
		origins: corsOrigins,
		logger:  logger,
	}
}

func (h *Handler) RegisterRoutes(router *gin.Engine) {
	router.Use(corsMiddleware(h.origins))

	router.GET("/health", func(ctx *gin.Context) {
		ctx.JSON(http.StatusOK, gin.H{"ok": "ok"})
	})

	authGroup := router.Group("/auth")
	{
		authGroup.POST("/register", h.register)
		authGroup.POST("/login", h.login)
	}

	protected := h.requireUser()

	router.GET("/users/me", protected, h.me)

	router.GET("/posts/", h.listPosts)
	router.POST("/posts/", protected, h.createPost)
	router.GET("/posts/:slug", h.getPost)
	router.PUT("/posts/:slug", protected, h.updatePost)
	router.DELETE("/posts/:slug", protected, h.deletePost)
	router.POST("/posts/:slug/tags", protected, h.addTags)
	router.GET("/posts/:slug/versions", h.listVersions)
	router.POST("/posts/:slug/restore/:version_id", protected, h.restoreVersion)

	router.GET("/tags/", h.listTags)
	router.GET("/rss.xml", h.rss)
}

func corsMiddleware(origins []string) gin.HandlerFunc {
	cfg := cors.DefaultConfig()
	cfg.AllowHeaders = []string{"Origin", "Content-Type", "Accept", "Authorization"}
	cfg.ExposeHeaders = []string{"WWW-Authenticate"}
	if len(origins) == 0 || containsWildcard(origins) {
		cfg.AllowAllOrigins = true
	} else {
		cfg.AllowOrigins = origins
	}
	return cors.New(cfg)
}

func containsWildcard(origins []string) bool {
	for _, origin := range origins {
		if strings.TrimSpace(origin) == "*" {
			return true
		}
	}
	return false
}

func (h *Handler) createPost(c *gin.Context) {
	var req service.PostPayload
	if !h.bindJSON(c, &req) {
		return
	}

	post, err := h.posts.Create(c.Request.Context(), currentUser(c), req)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, postToResponse(*post))
}

func (h *Handler) listPosts(c *gin.Context) {
	posts, err := h.posts.List(c.Request.Context(), c.Query("tag"))
	if err != nil {
		h.writeError(c, err)
		return
	}

	resp := make([]PostResponse, len(posts))
	for i := range posts {
		resp[i] = postToResponse(posts[i])
	}
	c.JSON(http.StatusOK, resp)
}

func (h *Handler) getPost(c *gin.Context) {
	post, err := h.posts.Get(c.Request.Context(), c.Param("slug"))
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, postToResponse(*post))
}

func (h *Handler) updatePost(c *gin.Context) {
	var req service.PostPayload
	if !h.bindJSON(c, &req) {
		return
	}

	post, err := h.posts.Update(c.Request.Context(), currentUser(c), c.Param("slug"), req)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, postToResponse(*post))
}

func (h *Handler) deletePost(c *gin.Context) {
	if err := h.posts.Delete(c.Request.Context(), currentUser(c), c.Param("slug")); err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"detail": "Post deleted successfully"})
}

func (h *Handler) addTags(c *gin.Context) {
	var req service.TagsPayload
	if !h.bindJSON(c, &req) {
		return
	}

	post, err := h.posts.AddTags(c.Request.Context(), currentUser(c), c.Param("slug"), req)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, postToResponse(*post))
}

func (h *Handler) listTags(c *gin.Context) {
	tags, err := h.posts.ListTags(c.Request.Context())
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, tagsToResponse(tags))
}

func (h *Handler) listVersions(c *gin.Context) {
	versions, err := h.posts.ListVersions(c.Request.Context(), c.Param("slug"))
	if err != nil {
		h.writeError(c, err)
		return
	}

	resp := make([]PostVersionResponse, len(versions))
	for i := range versions {
		resp[i] = versionToResponse(versions[i])
	}
	c.JSON(http.StatusOK, resp)
}

func (h *Handler) restoreVersion(c *gin.Context) {
	version, err := strconv.Atoi(c.Param("version_id"))
	if err != nil || version <= 0 {
		c.JSON(http.StatusUnprocessableEntity, gin.H{"detail": []ValidationDetail{{
			Loc:  []string{"path", "version_id"},
			Msg:  "must be a positive integer",
			Type: "type_error.integer",
		}}})
		return
	}

	post, err := h.posts.RestoreVersion(c.Request.Context(), currentUser(c), c.Param("slug"), version)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, postToResponse(*post))
}

func (h *Handler) rss(c *gin.Context) {
	body, err := h.feed.Render(c.Request.Context())
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.Data(http.StatusOK, "application/rss+xml; charset=utf-8", []byte(body))
}

// bindJSON decodes the body and answers 422 when it is not valid JSON.
func (h *Handler) bindJSON(c *gin.Context, dst any) bool {
	if err := c.ShouldBindJSON(dst); err != nil {
		c.JSON(http.StatusUnprocessableEntity, gin.H{"detail": []ValidationDetail{{
			Loc:  []string{"body"},
			Msg:  err.Error(),
			Type: "value_error.jsondecode",
		}}})
		return false
	}
	return true
}
