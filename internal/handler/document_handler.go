// Package handler contains the HTTP controllers.
package handler

import (
	"context"
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"

	"pdf-rag/internal/helper"
	"pdf-rag/internal/models"
	"pdf-rag/internal/rag"
)

// DocumentService is the retrieval core seen by the HTTP layer.
type DocumentService interface {
	Upload(ctx context.Context, filename string, content io.Reader) (rag.UploadResult, error)
	Ask(ctx context.Context, question string) (models.Answer, error)
	Current() (rag.SessionInfo, bool)
}

// DocumentHandler serves upload and question requests.
type DocumentHandler struct {
	svc            DocumentService
	maxUploadBytes int64
}

func NewDocumentHandler(svc DocumentService, maxUploadBytes int64) *DocumentHandler {
	return &DocumentHandler{svc: svc, maxUploadBytes: maxUploadBytes}
}

// Upload indexes the PDF sent in the multipart field "file".
func (h *DocumentHandler) Upload(c *gin.Context) {
	if h.maxUploadBytes > 0 {
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, h.maxUploadBytes)
	}

	file, header, err := c.Request.FormFile("file")
	if err != nil {
		if isTooLarge(err) {
			c.JSON(http.StatusRequestEntityTooLarge, gin.H{"detail": "File too large"})
			return
		}
		c.JSON(http.StatusBadRequest, gin.H{"detail": "Missing file field"})
		return
	}
	defer file.Close()

	res, err := h.svc.Upload(c.Request.Context(), header.Filename, file)
	if err != nil {
		var invalid *models.InvalidInputError
		var extraction *models.ExtractionError
		switch {
		case errors.As(err, &invalid):
			c.JSON(http.StatusBadRequest, gin.H{"detail": "Only PDF files allowed"})
		case errors.As(err, &extraction):
			c.JSON(http.StatusInternalServerError, gin.H{"detail": "Failed to read PDF"})
		case isTooLarge(err):
			c.JSON(http.StatusRequestEntityTooLarge, gin.H{"detail": "File too large"})
		default:
			log.Error().Err(err).Str("filename", header.Filename).Msg("Upload failed")
			c.JSON(http.StatusInternalServerError, gin.H{"detail": "Failed to index document"})
		}
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message":     models.UploadedMessage,
		"chunks":      res.Chunks,
		"document_id": res.DocumentID,
	})
}

// Ask always answers 200 once a question is given; failures are reported in
// the answer text.
func (h *DocumentHandler) Ask(c *gin.Context) {
	question := strings.TrimSpace(c.Query("question"))
	if question == "" {
		c.JSON(http.StatusBadRequest, gin.H{"detail": "question is required"})
		return
	}

	answer, err := h.svc.Ask(c.Request.Context(), question)
	if err != nil {
		log.Error().Err(err).Msg("Retrieval failed")
		c.JSON(http.StatusOK, gin.H{"answer": "Retrieval Error: " + err.Error()})
		return
	}
	if answer.Failed() {
		log.Warn().Err(answer.Upstream).Msg("Returning upstream failure as answer")
	}

	text := answer.Text()
	resp := gin.H{"answer": text}
	if c.Query("format") == "html" {
		if rendered, err := helper.MarkdownToHTML(text); err == nil {
			resp["html"] = rendered
		} else {
			log.Warn().Err(err).Msg("Failed to render answer")
		}
	}
	c.JSON(http.StatusOK, resp)
}

// Document describes the active document.
func (h *DocumentHandler) Document(c *gin.Context) {
	info, ok := h.svc.Current()
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"detail": "No document uploaded"})
		return
	}
	c.JSON(http.StatusOK, info)
}

func Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func isTooLarge(err error) bool {
	var maxBytes *http.MaxBytesError
	return errors.As(err, &maxBytes)
}
