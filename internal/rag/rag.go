package rag

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"github.com/tmc/langchaingo/embeddings"

	"pdf-rag/internal/config"
	"pdf-rag/internal/embedding"
	"pdf-rag/internal/helper"
	"pdf-rag/internal/index"
	"pdf-rag/internal/models"
	"pdf-rag/internal/parser"
)

// Composer turns retrieved chunks and a question into an answer.
type Composer interface {
	Compose(ctx context.Context, question string, chunks []string) models.Answer
}

// Session is the indexed state of one uploaded document. It is immutable once
// published; a new upload publishes a new Session.
type Session struct {
	ID        string
	Filename  string
	Chunks    []string
	Index     index.Index
	IndexedAt time.Time
}

func (s *Session) empty() bool {
	return s == nil || len(s.Chunks) == 0 || s.Index == nil
}

type SessionInfo struct {
	ID        string    `json:"document_id"`
	Filename  string    `json:"filename"`
	Chunks    int       `json:"chunks"`
	IndexedAt time.Time `json:"indexed_at"`
}

type UploadResult struct {
	DocumentID string
	Chunks     int
}

// RAG holds a single active document and answers questions about it.
type RAG struct {
	extractor parser.Extractor
	embedder  embeddings.Embedder
	newIndex  index.Factory
	composer  Composer
	chunkSize int
	topK      int
	tempDir   string

	mu      sync.RWMutex
	session *Session
}

func NewRAG(extractor parser.Extractor, embedder embeddings.Embedder, newIndex index.Factory, composer Composer, cfg *config.RAGConfig) *RAG {
	return &RAG{
		extractor: extractor,
		embedder:  embedder,
		newIndex:  newIndex,
		composer:  composer,
		chunkSize: cfg.ChunkSize,
		topK:      cfg.TopK,
		tempDir:   cfg.TempDir,
	}
}

// Upload extracts, chunks, embeds and indexes a PDF, then replaces the active
// document. The replacement happens only after the new index is built: if
// extraction, embedding or the index build fails, the previous document stays
// active and keeps answering. A PDF with no text still replaces it.
func (r *RAG) Upload(ctx context.Context, filename string, content io.Reader) (UploadResult, error) {
	if !parser.IsPDF(filename) {
		return UploadResult{}, &models.InvalidInputError{Filename: filename, Reason: "only PDF files allowed"}
	}

	text, err := r.extract(filename, content)
	if err != nil {
		return UploadResult{}, err
	}

	chunks := parser.ChunkText(text, r.chunkSize)
	session := &Session{
		ID:        uuid.NewString(),
		Filename:  filepath.Base(filename),
		Chunks:    chunks,
		IndexedAt: time.Now(),
	}

	if len(chunks) > 0 {
		vectors, err := embedding.EmbedChunks(ctx, r.embedder, chunks)
		if err != nil {
			return UploadResult{}, err
		}
		idx, err := r.newIndex()
		if err != nil {
			return UploadResult{}, fmt.Errorf("failed to create index: %w", err)
		}
		if err := idx.Build(ctx, vectors); err != nil {
			return UploadResult{}, fmt.Errorf("failed to build index: %w", err)
		}
		session.Index = idx
	}

	r.mu.Lock()
	r.session = session
	r.mu.Unlock()

	log.Info().Str("document_id", session.ID).Str("filename", session.Filename).
		Int("chars", len(text)).Int("chunks", len(chunks)).Msg("Indexed document")
	return UploadResult{DocumentID: session.ID, Chunks: len(chunks)}, nil
}

// extract spools the upload to a temp file for the PDF reader. The file is
// removed whether or not extraction succeeds.
func (r *RAG) extract(filename string, content io.Reader) (string, error) {
	if err := helper.CreateFolder(r.tempDir); err != nil {
		return "", err
	}
	f, err := os.CreateTemp(r.tempDir, "upload-*.pdf")
	if err != nil {
		return "", fmt.Errorf("failed to create temp file: %w", err)
	}
	defer func() {
		if err := os.Remove(f.Name()); err != nil && !errors.Is(err, fs.ErrNotExist) {
			log.Warn().Err(err).Str("path", f.Name()).Msg("Failed to remove temp file")
		}
	}()

	if _, err := io.Copy(f, content); err != nil {
		f.Close()
		return "", fmt.Errorf("failed to store upload: %w", err)
	}
	if err := f.Close(); err != nil {
		return "", fmt.Errorf("failed to store upload: %w", err)
	}

	text, err := r.extractor.Extract(f.Name())
	if err != nil {
		log.Error().Err(err).Str("filename", filename).Msg("PDF extraction failed")
		return "", &models.ExtractionError{Filename: filename, Err: err}
	}
	return text, nil
}

// Query returns the chunks nearest to question, nearest first. Without an
// indexed document it returns nothing and does no lookup.
func (r *RAG) Query(ctx context.Context, question string) ([]string, error) {
	return r.retrieve(ctx, r.current(), question)
}

// Ask retrieves context for question and has the composer answer it. Errors
// are returned only for retrieval failures; a failed completion call is
// reported inside the Answer.
func (r *RAG) Ask(ctx context.Context, question string) (models.Answer, error) {
	s := r.current()
	if s.empty() {
		return models.Answer{Question: question, NoDocument: true}, nil
	}

	chunks, err := r.retrieve(ctx, s, question)
	if err != nil {
		return models.Answer{Question: question}, err
	}
	return r.composer.Compose(ctx, question, chunks), nil
}

func (r *RAG) retrieve(ctx context.Context, s *Session, question string) ([]string, error) {
	if s.empty() {
		return nil, nil
	}

	vector, err := embedding.EmbedQuery(ctx, r.embedder, question)
	if err != nil {
		return nil, err
	}
	positions, err := s.Index.Search(ctx, vector, r.topK)
	if err != nil {
		return nil, fmt.Errorf("failed to search index: %w", err)
	}

	chunks := make([]string, 0, len(positions))
	for _, pos := range positions {
		if pos < 0 || pos >= len(s.Chunks) {
			return nil, fmt.Errorf("index returned position %d for %d chunks", pos, len(s.Chunks))
		}
		chunks = append(chunks, s.Chunks[pos])
	}

	log.Debug().Str("document_id", s.ID).Ints("positions", positions).Msg("Retrieved chunks")
	return chunks, nil
}

// Current describes the active document, if any.
func (r *RAG) Current() (SessionInfo, bool) {
	s := r.current()
	if s == nil {
		return SessionInfo{}, false
	}
	return SessionInfo{
		ID:        s.ID,
		Filename:  s.Filename,
		Chunks:    len(s.Chunks),
		IndexedAt: s.IndexedAt,
	}, true
}

func (r *RAG) current() *Session {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.session
}
