package llm

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/hyperjump/kiritori/internal/config"
	"github.com/hyperjump/kiritori/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeCompleter struct {
	reply     string
	err       error
	calls     int
	prompt    string
	system    string
	maxTokens int
}

func (f *fakeCompleter) Complete(_ context.Context, prompt, system string, maxTokens int) (string, error) {
	f.calls++
	f.prompt, f.system, f.maxTokens = prompt, system, maxTokens
	return f.reply, f.err
}

func results() []*models.RetrievalResult {
	return []*models.RetrievalResult{
		{Content: "Invoice total is 42.", Metadata: map[string]string{"filename": "a.pdf"}},
		{Content: "Due in 30 days.", Metadata: map[string]string{}},
	}
}

func TestFormatContext(t *testing.T) {
	got := FormatContext(results())
	assert.Equal(t, "Document: a.pdf\nContent: Invoice total is 42.\n\nDocument: unknown\nContent: Due in 30 days.", got)
	assert.Equal(t, "", FormatContext(nil))
}

func TestComposer_AnswerNoResults(t *testing.T) {
	fc := &fakeCompleter{reply: "should not be used"}
	c := NewComposer(fc, config.LLMConfig{}, nil)

	ans := c.Answer(context.Background(), "what?", &models.RetrievalResponse{Outcome: models.OutcomeUnavailable})
	assert.Equal(t, NoResultsAnswer, ans.Answer)
	assert.Equal(t, models.OutcomeUnavailable, ans.Outcome)
	assert.Empty(t, ans.Sources)
	assert.Equal(t, 0, fc.calls)

	ans = c.Answer(context.Background(), "what?", nil)
	assert.Equal(t, models.OutcomeNoMatch, ans.Outcome)
}

func TestComposer_Answer(t *testing.T) {
	fc := &fakeCompleter{reply: "The total is 42."}
	c := NewComposer(fc, config.LLMConfig{MaxTokens: 300, SystemPrompt: "be brief"}, nil)

	ans := c.Answer(context.Background(), "What is the total?", &models.RetrievalResponse{
		Results: results(),
		Outcome: models.OutcomeOK,
	})
	assert.Equal(t, "The total is 42.", ans.Answer)
	assert.Equal(t, models.OutcomeOK, ans.Outcome)
	assert.Len(t, ans.Sources, 2)
	assert.Equal(t, "be brief", fc.system)
	assert.Equal(t, 300, fc.maxTokens)
	assert.Contains(t, fc.prompt, "Document: a.pdf\nContent: Invoice total is 42.")
	assert.Contains(t, fc.prompt, "Question: What is the total?")
}

func TestComposer_AnswerBackendDown(t *testing.T) {
	fc := &fakeCompleter{err: errors.New("connection refused")}
	c := NewComposer(fc, config.LLMConfig{}, nil)

	ans := c.Answer(context.Background(), "q", &models.RetrievalResponse{Results: results(), Outcome: models.OutcomeOK})
	assert.True(t, strings.HasPrefix(ans.Answer, "I'm sorry, but I couldn't generate a response at this time."))
	assert.Contains(t, ans.Answer, "connection refused")
	assert.Equal(t, models.OutcomeUnavailable, ans.Outcome)
	assert.Len(t, ans.Sources, 2)
}

func TestComposer_Summarize(t *testing.T) {
	fc := &fakeCompleter{reply: "A short summary."}
	c := NewComposer(fc, config.LLMConfig{MaxTokens: 400}, nil)

	got, err := c.Summarize(context.Background(), "report.pdf", strings.Repeat("word ", 2000))
	require.NoError(t, err)
	assert.Equal(t, "A short summary.", got)
	assert.Equal(t, 100, fc.maxTokens)
	assert.Contains(t, fc.prompt, `"report.pdf"`)
	assert.Less(t, len(fc.prompt), 4200)

	_, err = c.Summarize(context.Background(), "empty.txt", "  ")
	assert.Error(t, err)

	fc.err = errors.New("down")
	_, err = c.Summarize(context.Background(), "report.pdf", "text")
	assert.ErrorContains(t, err, "down")
}
