package llm

import (
	"context"
	"fmt"
	"strings"

	"github.com/hyperjump/kiritori/internal/config"
	"github.com/hyperjump/kiritori/internal/models"
	"go.uber.org/zap"
)

// NoResultsAnswer is returned when retrieval found nothing to answer from.
const NoResultsAnswer = "I couldn't find any relevant information to answer your question. " +
	"Please try rephrasing your query or check if the documents you're referring to are available."

const unavailablePrefix = "I'm sorry, but I couldn't generate a response at this time. " +
	"The Ollama service might not be available. Error details: "

const defaultSystemPrompt = "You are a helpful assistant that answers questions using only the provided document excerpts. " +
	"If the excerpts do not contain the answer, say so."

// summaryInputLimit bounds how much document text is sent for a summary, in runes.
const summaryInputLimit = 4000

// Composer turns retrieval results into answers and documents into summaries.
type Composer struct {
	completer Completer
	logger    *zap.Logger
	system    string
	maxTokens int
}

// NewComposer creates a Composer. logger may be nil.
func NewComposer(c Completer, cfg config.LLMConfig, logger *zap.Logger) *Composer {
	if logger == nil {
		logger = zap.NewNop()
	}
	system := cfg.SystemPrompt
	if system == "" {
		system = defaultSystemPrompt
	}
	maxTokens := cfg.MaxTokens
	if maxTokens <= 0 {
		maxTokens = 1024
	}
	return &Composer{completer: c, logger: logger, system: system, maxTokens: maxTokens}
}

// FormatContext renders results as labeled blocks separated by blank lines.
func FormatContext(results []*models.RetrievalResult) string {
	blocks := make([]string, len(results))
	for i, r := range results {
		filename := r.Metadata["filename"]
		if filename == "" {
			filename = "unknown"
		}
		blocks[i] = fmt.Sprintf("Document: %s\nContent: %s", filename, r.Content)
	}
	return strings.Join(blocks, "\n\n")
}

func answerPrompt(question, excerpts string) string {
	return "Answer the question based on the following document excerpts.\n\n" +
		excerpts + "\n\nQuestion: " + question + "\n\nAnswer:"
}

// Answer composes an answer to question from resp. It never fails: an empty retrieval gives
// NoResultsAnswer without calling the backend, and a backend failure gives an explicit
// unavailability answer with the sources still attached.
func (c *Composer) Answer(ctx context.Context, question string, resp *models.RetrievalResponse) *models.Answer {
	if resp == nil || len(resp.Results) == 0 {
		outcome := models.OutcomeNoMatch
		if resp != nil && resp.Outcome != "" {
			outcome = resp.Outcome
		}
		return &models.Answer{Answer: NoResultsAnswer, Sources: []*models.RetrievalResult{}, Outcome: outcome}
	}

	prompt := answerPrompt(question, FormatContext(resp.Results))
	text, err := c.completer.Complete(ctx, prompt, c.system, c.maxTokens)
	if err != nil {
		c.logger.Warn("answer generation failed", zap.Int("sources", len(resp.Results)), zap.Error(err))
		return &models.Answer{
			Answer:  unavailablePrefix + err.Error(),
			Sources: resp.Results,
			Outcome: models.OutcomeUnavailable,
		}
	}
	return &models.Answer{Answer: text, Sources: resp.Results, Outcome: resp.Outcome}
}

// Summarize returns a short summary of a document's text.
func (c *Composer) Summarize(ctx context.Context, filename, text string) (string, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return "", fmt.Errorf("summarize %s: empty text", filename)
	}
	if r := []rune(text); len(r) > summaryInputLimit {
		text = string(r[:summaryInputLimit])
	}
	prompt := fmt.Sprintf("Summarize the following document %q in a few sentences.\n\n%s\n\nSummary:", filename, text)
	summary, err := c.completer.Complete(ctx, prompt, c.system, c.maxTokens/4)
	if err != nil {
		return "", fmt.Errorf("summarize %s: %w", filename, err)
	}
	return summary, nil
}
