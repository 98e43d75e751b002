package handler

import (
	"github.com/gin-gonic/gin"

	"pdf-rag/internal/middleware"
)

// NewRouter registers every route on a gin engine without default middleware.
func NewRouter(h *DocumentHandler) *gin.Engine {
	r := gin.New()
	r.Use(middleware.RequestLogger(), gin.Recovery(), middleware.CORS())

	r.GET("/healthz", Health)
	r.POST("/upload", h.Upload)
	r.GET("/ask", h.Ask)
	r.GET("/document", h.Document)
	return r
}
