package llmservice

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/rs/zerolog/log"
	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/openai"

	"pdf-rag/internal/config"
)

// ChatModel is the part of llms.Model the composer needs.
type ChatModel interface {
	GenerateContent(ctx context.Context, messages []llms.MessageContent, options ...llms.CallOption) (*llms.ContentResponse, error)
}

// Doer performs a HTTP request. *http.Client satisfies it.
type Doer interface {
	Do(req *http.Request) (*http.Response, error)
}

// NewChatModel returns an OpenAI compatible chat client, OpenRouter by default.
// Response bodies are recorded for requests made under withBodyCapture.
func NewChatModel(cfg *config.LLMConfig) (*openai.LLM, error) {
	log.Debug().Str("base_url", cfg.BaseURL).Str("model", cfg.Model).Msg("Creating chat model")
	llm, err := openai.New(
		openai.WithBaseURL(cfg.BaseURL),
		openai.WithToken(strings.TrimPrefix(cfg.Key, "Bearer ")),
		openai.WithModel(cfg.Model),
		openai.WithHTTPClient(&recordingClient{next: http.DefaultClient}),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create chat model: %w", err)
	}
	return llm, nil
}

type captureKey struct{}

// bodyCapture holds the raw body of the last response seen for one call.
type bodyCapture struct {
	status int
	body   []byte
}

func withBodyCapture(ctx context.Context) (context.Context, *bodyCapture) {
	c := &bodyCapture{}
	return context.WithValue(ctx, captureKey{}, c), c
}

func (c *bodyCapture) text() string {
	return strings.TrimSpace(string(c.body))
}

// recordingClient copies response bodies into the request's bodyCapture and
// hands the client an identical, unread body.
type recordingClient struct {
	next Doer
}

func (c *recordingClient) Do(req *http.Request) (*http.Response, error) {
	resp, err := c.next.Do(req)
	if err != nil {
		return resp, err
	}
	capture, ok := req.Context().Value(captureKey{}).(*bodyCapture)
	if !ok {
		return resp, nil
	}

	body, err := io.ReadAll(resp.Body)
	resp.Body.Close()
	if err != nil {
		return nil, fmt.Errorf("failed to read completion response: %w", err)
	}
	capture.status = resp.StatusCode
	capture.body = body
	resp.Body = io.NopCloser(bytes.NewReader(body))
	return resp, nil
}
