package rag

import (
	"context"
	"errors"
	"math"
	"os"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tmc/langchaingo/llms"

	"pdf-rag/internal/config"
	"pdf-rag/internal/index"
	"pdf-rag/internal/llmservice"
	"pdf-rag/internal/models"
)

var vocabulary = []string{"alpha", "bravo", "charlie", "rent", "tenant"}

// keywordEmbedder embeds text as normalised keyword counts over vocabulary.
type keywordEmbedder struct {
	mu      sync.Mutex
	calls   int
	failing bool
}

func (e *keywordEmbedder) embed(text string) []float32 {
	text = strings.ToLower(text)
	v := make([]float32, len(vocabulary))
	var norm float64
	for i, w := range vocabulary {
		v[i] = float32(strings.Count(text, w))
		norm += float64(v[i] * v[i])
	}
	if norm > 0 {
		for i := range v {
			v[i] /= float32(math.Sqrt(norm))
		}
	}
	return v
}

func (e *keywordEmbedder) EmbedDocuments(_ context.Context, texts []string) ([][]float32, error) {
	e.mu.Lock()
	e.calls++
	e.mu.Unlock()
	if e.failing {
		return nil, errors.New("embedding model offline")
	}
	out := make([][]float32, len(texts))
	for i, t := range texts {
		out[i] = e.embed(t)
	}
	return out, nil
}

func (e *keywordEmbedder) EmbedQuery(_ context.Context, text string) ([]float32, error) {
	e.mu.Lock()
	e.calls++
	e.mu.Unlock()
	return e.embed(text), nil
}

// textExtractor returns a fixed text and checks the spooled file exists.
type textExtractor struct {
	text  string
	err   error
	calls int
	paths []string
}

func (x *textExtractor) Extract(path string) (string, error) {
	x.calls++
	x.paths = append(x.paths, path)
	if _, err := os.Stat(path); err != nil {
		return "", err
	}
	if x.err != nil {
		return "", x.err
	}
	return x.text, nil
}

// factModel answers with the context line starting with "FACT:" that
// mentions the last word of the question.
type factModel struct {
	calls  int
	prompt string
}

func (m *factModel) GenerateContent(_ context.Context, messages []llms.MessageContent, _ ...llms.CallOption) (*llms.ContentResponse, error) {
	m.calls++
	m.prompt = messages[0].Parts[0].(llms.TextContent).Text

	_, question, _ := strings.Cut(m.prompt, "### QUESTION ###")
	words := strings.Fields(question)
	keyword := strings.Trim(words[len(words)-1], "?")

	answer := models.NotAvailableAnswer
	for _, line := range strings.Split(m.prompt, "\n") {
		if strings.HasPrefix(line, "FACT:") && strings.Contains(line, keyword) {
			answer = strings.TrimSpace(strings.TrimPrefix(line, "FACT:"))
			break
		}
	}
	return &llms.ContentResponse{Choices: []*llms.ContentChoice{{Content: answer}}}, nil
}

type fixture struct {
	rag       *RAG
	extractor *textExtractor
	embedder  *keywordEmbedder
	model     *factModel
	builds    int
	tempDir   string
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		extractor: &textExtractor{},
		embedder:  &keywordEmbedder{},
		model:     &factModel{},
		tempDir:   t.TempDir(),
	}
	factory := func() (index.Index, error) {
		f.builds++
		return index.NewFlat(), nil
	}
	composer := llmservice.NewComposer(f.model, &config.LLMConfig{Model: "openai/gpt-4o-mini"})
	f.rag = NewRAG(f.extractor, f.embedder, factory, composer, &config.RAGConfig{
		ChunkSize: config.DefaultChunkSize,
		TopK:      config.DefaultTopK,
		TempDir:   f.tempDir,
	})
	return f
}

func (f *fixture) upload(t *testing.T, text string) UploadResult {
	t.Helper()
	f.extractor.text = text
	res, err := f.rag.Upload(context.Background(), "lease.pdf", strings.NewReader("%PDF-1.4 fake"))
	require.NoError(t, err)
	return res
}

func (f *fixture) assertTempDirEmpty(t *testing.T) {
	t.Helper()
	entries, err := os.ReadDir(f.tempDir)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func pad(s string, n int) string {
	return s + strings.Repeat(".", n-len(s))
}

// leaseText is 3000 characters: two full chunks and a 600 character tail.
// Only the second chunk holds the rent.
func leaseText() (string, []string) {
	chunks := []string{
		pad("alpha: parties to the agreement. tenant: Alice.\n", 1200),
		pad("bravo: payment terms.\nFACT: the monthly rent is 900 EUR\n", 1200),
		pad("charlie: termination clauses.\n", 600),
	}
	return strings.Join(chunks, ""), chunks
}

func TestAskWithoutDocument(t *testing.T) {
	f := newFixture(t)

	chunks, err := f.rag.Query(context.Background(), "What is the rent?")
	require.NoError(t, err)
	assert.Empty(t, chunks)

	answer, err := f.rag.Ask(context.Background(), "What is the rent?")
	require.NoError(t, err)
	assert.True(t, answer.NoDocument)
	assert.Equal(t, models.NoDocumentAnswer, answer.Text())

	assert.Zero(t, f.embedder.calls)
	assert.Zero(t, f.builds)
	assert.Zero(t, f.model.calls)

	_, ok := f.rag.Current()
	assert.False(t, ok)
}

func TestUploadAndAsk(t *testing.T) {
	f := newFixture(t)
	text, want := leaseText()
	require.Len(t, text, 3000)

	res := f.upload(t, text)
	assert.Equal(t, 3, res.Chunks)
	assert.NotEmpty(t, res.DocumentID)
	f.assertTempDirEmpty(t)

	info, ok := f.rag.Current()
	require.True(t, ok)
	assert.Equal(t, res.DocumentID, info.ID)
	assert.Equal(t, "lease.pdf", info.Filename)
	assert.Equal(t, 3, info.Chunks)

	ctx := context.Background()
	chunks, err := f.rag.Query(ctx, "What is the rent?")
	require.NoError(t, err)
	require.NotEmpty(t, chunks)
	assert.Equal(t, want[1], chunks[0])
	assert.LessOrEqual(t, len(chunks), config.DefaultTopK)

	answer, err := f.rag.Ask(ctx, "What is the rent?")
	require.NoError(t, err)
	require.False(t, answer.Failed())
	assert.Equal(t, "the monthly rent is 900 EUR", answer.Text())
	assert.Contains(t, f.model.prompt, want[1])
	assert.Equal(t, want[1], answer.Context[0])

	answer, err = f.rag.Ask(ctx, "What is the deposit?")
	require.NoError(t, err)
	assert.Equal(t, models.NotAvailableAnswer, answer.Text())
}

func TestUploadRejectsNonPDF(t *testing.T) {
	f := newFixture(t)
	first := f.upload(t, "alpha alpha")

	_, err := f.rag.Upload(context.Background(), "notes.txt", strings.NewReader("bravo"))

	var invalid *models.InvalidInputError
	require.ErrorAs(t, err, &invalid)
	assert.Equal(t, 1, f.extractor.calls)

	info, ok := f.rag.Current()
	require.True(t, ok)
	assert.Equal(t, first.DocumentID, info.ID)
	f.assertTempDirEmpty(t)
}

func TestUploadExtractionFailure(t *testing.T) {
	f := newFixture(t)
	first := f.upload(t, "alpha alpha")

	f.extractor.err = errors.New("not a PDF file: invalid header")
	_, err := f.rag.Upload(context.Background(), "broken.pdf", strings.NewReader("garbage"))

	var extraction *models.ExtractionError
	require.ErrorAs(t, err, &extraction)
	assert.Equal(t, "broken.pdf", extraction.Filename)

	info, _ := f.rag.Current()
	assert.Equal(t, first.DocumentID, info.ID)

	// the spooled copy existed during extraction and is gone afterwards
	require.Len(t, f.extractor.paths, 2)
	for _, p := range f.extractor.paths {
		_, statErr := os.Stat(p)
		assert.True(t, os.IsNotExist(statErr))
	}
	f.assertTempDirEmpty(t)
}

func TestUploadEmbeddingFailureKeepsPreviousDocument(t *testing.T) {
	f := newFixture(t)
	first := f.upload(t, "alpha alpha")

	f.embedder.failing = true
	f.extractor.text = "bravo bravo"
	_, err := f.rag.Upload(context.Background(), "second.pdf", strings.NewReader("x"))
	require.Error(t, err)

	info, _ := f.rag.Current()
	assert.Equal(t, first.DocumentID, info.ID)
	f.assertTempDirEmpty(t)
}

func TestUploadEmptyTextReplacesDocument(t *testing.T) {
	f := newFixture(t)
	f.upload(t, "alpha alpha")
	builds := f.builds
	embeds := f.embedder.calls

	res := f.upload(t, "")
	assert.Zero(t, res.Chunks)
	assert.Equal(t, builds, f.builds)
	assert.Equal(t, embeds, f.embedder.calls)

	info, ok := f.rag.Current()
	require.True(t, ok)
	assert.Zero(t, info.Chunks)

	answer, err := f.rag.Ask(context.Background(), "What is the rent?")
	require.NoError(t, err)
	assert.True(t, answer.NoDocument)
}

func TestReuploadReplacesChunks(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	f.upload(t, strings.Repeat("alpha ", 400))
	f.upload(t, strings.Repeat("bravo ", 300))

	chunks, err := f.rag.Query(ctx, "alpha")
	require.NoError(t, err)
	require.NotEmpty(t, chunks)
	for _, c := range chunks {
		assert.NotContains(t, c, "alpha")
		assert.Contains(t, c, "bravo")
	}

	info, _ := f.rag.Current()
	assert.Equal(t, 2, info.Chunks)
}

func TestConcurrentQueries(t *testing.T) {
	f := newFixture(t)
	text, _ := leaseText()
	f.upload(t, text)

	ctx := context.Background()
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 10; j++ {
				chunks, err := f.rag.Query(ctx, "rent")
				assert.NoError(t, err)
				assert.NotEmpty(t, chunks)
			}
		}()
	}
	wg.Wait()
}
