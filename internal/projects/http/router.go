package http

import "github.com/gin-gonic/gin"

// Register attaches project routes to the given router group.
func (h *Handler) Register(rg *gin.RouterGroup) {
	rg.POST("", h.create)
	rg.GET("", h.list)
	rg.GET("/latest", h.latest)
	rg.GET("/:id", h.get)
	rg.PATCH("/:id", h.update)
}

// RegisterShared attaches the read-only route for projects owned by someone else.
func (h *Handler) RegisterShared(rg *gin.RouterGroup) {
	rg.GET("/:owner_uid/projects/:id", h.getShared)
}
