// Package handler provides HTTP handlers for the pdfqa service.
package handler

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/kart-io/logger"

	"github.com/miankhizer64/Quest-Gen/internal/pdfqa/biz"
	"github.com/miankhizer64/Quest-Gen/internal/pdfqa/metrics"
	"github.com/miankhizer64/Quest-Gen/internal/pkg/httputils"
)

// queryTimeout bounds a single query end to end, including retrieval
// and LLM generation.
const queryTimeout = 60 * time.Second

// PDFQAHandler handles pdfqa HTTP requests.
type PDFQAHandler struct {
	service biz.Service
	dataDir string
}

// NewPDFQAHandler creates a new PDFQAHandler. Uploaded files are saved
// under dataDir before indexing.
func NewPDFQAHandler(service biz.Service, dataDir string) *PDFQAHandler {
	return &PDFQAHandler{
		service: service,
		dataDir: dataDir,
	}
}

// UploadResponse is returned after a successful upload.
type UploadResponse struct {
	Filename   string  `json:"filename"`
	Chunks     int     `json:"chunks"`
	Pages      int     `json:"pages"`
	ElapsedSec float64 `json:"elapsed_seconds"`
}

// Upload saves a multipart PDF file and indexes it. A filename that
// already exists in the data dir gets a numeric suffix (name_1.pdf)
// instead of overwriting the previous upload.
func (h *PDFQAHandler) Upload(c *gin.Context) {
	file, err := c.FormFile("file")
	if err != nil {
		httputils.WriteErrorMessage(c, http.StatusBadRequest, "no file provided")
		return
	}

	if !strings.HasSuffix(strings.ToLower(file.Filename), ".pdf") {
		httputils.WriteErrorMessage(c, http.StatusBadRequest, "only PDF files are allowed")
		return
	}

	if err := os.MkdirAll(h.dataDir, 0o755); err != nil {
		httputils.WriteError(c, http.StatusInternalServerError, err)
		return
	}

	filename := h.resolveCollision(filepath.Base(file.Filename))
	path := filepath.Join(h.dataDir, filename)

	if err := c.SaveUploadedFile(file, path); err != nil {
		httputils.WriteError(c, http.StatusInternalServerError, err)
		return
	}

	result, err := h.service.Index(c.Request.Context(), path, filename)
	if err != nil {
		httputils.WriteError(c, http.StatusInternalServerError, err)
		return
	}

	logger.Infow("file uploaded and indexed",
		"filename", filename,
		"chunks", result.Chunks,
		"pages", result.Pages,
	)
	httputils.WriteMessage(c, fmt.Sprintf("File '%s' uploaded and indexed", filename), UploadResponse{
		Filename:   result.Filename,
		Chunks:     result.Chunks,
		Pages:      result.Pages,
		ElapsedSec: result.ElapsedSec,
	})
}

// resolveCollision returns a filename that does not yet exist in the
// data dir, appending _1, _2, ... before the extension as needed.
func (h *PDFQAHandler) resolveCollision(filename string) string {
	path := filepath.Join(h.dataDir, filename)
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return filename
	}

	ext := filepath.Ext(filename)
	name := strings.TrimSuffix(filename, ext)
	for i := 1; ; i++ {
		candidate := fmt.Sprintf("%s_%d%s", name, i, ext)
		if _, err := os.Stat(filepath.Join(h.dataDir, candidate)); os.IsNotExist(err) {
			logger.Infow("file exists, renamed", "original", filename, "renamed", candidate)
			return candidate
		}
	}
}

// QueryRequest represents a query request.
type QueryRequest struct {
	Question    string `json:"question" binding:"required"`
	Document    string `json:"document,omitempty"`
	FormatStyle string `json:"format_style,omitempty"`
	MaxTokens   int    `json:"max_tokens,omitempty"`
}

// Query answers a question against the indexed documents.
func (h *PDFQAHandler) Query(c *gin.Context) {
	var req QueryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httputils.WriteError(c, http.StatusBadRequest, err)
		return
	}

	// 添加 60 秒超时控制
	ctx, cancel := context.WithTimeout(c.Request.Context(), queryTimeout)
	defer cancel()

	result, err := h.service.Query(ctx, &biz.QueryRequest{
		Question:    req.Question,
		Document:    req.Document,
		FormatStyle: req.FormatStyle,
		MaxTokens:   req.MaxTokens,
	})
	if err != nil {
		// 检查是否超时
		if ctx.Err() == context.DeadlineExceeded {
			httputils.WriteErrorMessage(c, http.StatusRequestTimeout,
				"Query timeout: the request took too long to process. Please try again or simplify your question.")
			return
		}
		httputils.WriteError(c, http.StatusInternalServerError, err)
		return
	}

	httputils.WriteSuccess(c, result)
}

// ListDocuments lists the cached documents.
func (h *PDFQAHandler) ListDocuments(c *gin.Context) {
	httputils.WriteSuccess(c, gin.H{
		"documents": h.service.ListDocuments(),
	})
}

// DeleteDocument removes a document's vectors and its cache entry.
func (h *PDFQAHandler) DeleteDocument(c *gin.Context) {
	filename := c.Param("filename")
	if filename == "" {
		httputils.WriteErrorMessage(c, http.StatusBadRequest, "filename is required")
		return
	}

	deleted, err := h.service.DeleteDocument(c.Request.Context(), filename)
	if err != nil {
		httputils.WriteError(c, http.StatusInternalServerError, err)
		return
	}

	httputils.WriteMessage(c, fmt.Sprintf("Document '%s' removed", filename), gin.H{
		"filename":        filename,
		"vectors_removed": deleted,
	})
}

// ClearCache clears the document cache and the query result cache.
func (h *PDFQAHandler) ClearCache(c *gin.Context) {
	result, err := h.service.ClearCaches(c.Request.Context())
	if err != nil {
		httputils.WriteError(c, http.StatusInternalServerError, err)
		return
	}

	httputils.WriteMessage(c, "Caches cleared", result)
}

// CollectionInfo returns collection name, vector count, cached document
// list and the most recent document.
func (h *PDFQAHandler) CollectionInfo(c *gin.Context) {
	stats, err := h.service.Stats(c.Request.Context())
	if err != nil {
		httputils.WriteError(c, http.StatusInternalServerError, err)
		return
	}

	docs := h.service.ListDocuments()
	filenames := make([]string, len(docs))
	for i, doc := range docs {
		filenames[i] = doc.Filename
	}

	httputils.WriteSuccess(c, gin.H{
		"collection_name": stats["collection"],
		"total_vectors":   stats["vector_count"],
		"cached_pdfs":     len(docs),
		"pdf_filenames":   filenames,
		"last_updated":    stats["most_recent_document"],
	})
}

// Stats returns knowledge base statistics.
func (h *PDFQAHandler) Stats(c *gin.Context) {
	stats, err := h.service.Stats(c.Request.Context())
	if err != nil {
		httputils.WriteError(c, http.StatusInternalServerError, err)
		return
	}

	httputils.WriteSuccess(c, stats)
}

// Metrics serves business metrics in Prometheus text format.
func (h *PDFQAHandler) Metrics(c *gin.Context) {
	c.Data(http.StatusOK, "text/plain; version=0.0.4; charset=utf-8",
		[]byte(metrics.Get().Export("pdfqa", "")))
}

// Healthz is a liveness probe.
func (h *PDFQAHandler) Healthz(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}
