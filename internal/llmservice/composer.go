package llmservice

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/rs/zerolog/log"
	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/schema"

	"pdf-rag/internal/config"
	"pdf-rag/internal/models"
)

// Answers are sampled deterministically.
const temperature = 0

var errNoContent = errors.New("completion response has no content")

// Composer asks the chat model to answer a question from retrieved context.
type Composer struct {
	model     ChatModel
	modelName string
}

func NewComposer(model ChatModel, cfg *config.LLMConfig) *Composer {
	return &Composer{
		model:     model,
		modelName: cfg.Model,
	}
}

// BuildPrompt places the context chunks, separated by a blank line, and the
// question into the answering template.
func BuildPrompt(question string, chunks []string) string {
	return fmt.Sprintf(models.PromptTemplate, strings.Join(chunks, models.ContextSeparator), question)
}

// Compose never fails: a broken upstream call is reported in Answer.Upstream,
// carrying the raw response body when one was received.
func (c *Composer) Compose(ctx context.Context, question string, chunks []string) models.Answer {
	answer := models.Answer{Question: question, Context: chunks}

	ctx, capture := withBodyCapture(ctx)
	messages := []llms.MessageContent{
		llms.TextParts(schema.ChatMessageTypeHuman, BuildPrompt(question, chunks)),
	}
	res, err := c.model.GenerateContent(ctx, messages,
		llms.WithModel(c.modelName),
		llms.WithTemperature(temperature),
	)
	if err == nil && (res == nil || len(res.Choices) == 0 || res.Choices[0] == nil || res.Choices[0].Content == "") {
		err = errNoContent
	}
	if err != nil {
		body := capture.text()
		if body == "" {
			body = err.Error()
		}
		log.Error().Err(err).Str("model", c.modelName).Int("status", capture.status).Msg("Completion request failed")
		answer.Upstream = &models.UpstreamError{Body: body, Err: err}
		return answer
	}

	answer.Content = res.Choices[0].Content
	log.Debug().Int("context_chunks", len(chunks)).Int("answer_chars", len(answer.Content)).Msg("Composed answer")
	return answer
}
