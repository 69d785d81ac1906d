// Package router provides pdfqa service routing.
package router

import (
	"github.com/gin-gonic/gin"
	"github.com/kart-io/logger"

	"github.com/miankhizer64/Quest-Gen/internal/pdfqa/handler"
)

// Register registers the pdfqa service routes on the gin engine.
func Register(engine *gin.Engine, h *handler.PDFQAHandler) {
	logger.Info("Registering pdfqa routes...")

	v1 := engine.Group("/v1")
	{
		pdf := v1.Group("/pdf")
		{
			// Upload and indexing
			pdf.POST("/upload", h.Upload)

			// Query endpoint
			pdf.POST("/query", h.Query)

			// Document management
			pdf.GET("/documents", h.ListDocuments)
			pdf.DELETE("/documents/:filename", h.DeleteDocument)

			// Cache and collection
			pdf.POST("/cache/clear", h.ClearCache)
			pdf.GET("/collection", h.CollectionInfo)

			// Stats endpoint
			pdf.GET("/stats", h.Stats)
		}
	}

	engine.GET("/metrics", h.Metrics)
	engine.GET("/healthz", h.Healthz)

	logger.Info("HTTP routes registered")
}
