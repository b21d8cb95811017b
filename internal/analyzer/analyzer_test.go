package analyzer

import (
	"strings"
	"testing"

	"github.com/hyperjump/kiritori/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const codeLine = "    if (count == 0) { return nil; }"
const proseLine = "The handler validates the request payload before it reaches storage."

func technicalText() string {
	var b strings.Builder
	for i := 0; i < 12; i++ {
		b.WriteString(proseLine + "\n" + codeLine + "\n")
	}
	return b.String()
}

func TestAnalyze_empty(t *testing.T) {
	p := Analyze("")
	assert.Equal(t, TextStats{}, p.Text)
	assert.Equal(t, Distribution{}, p.Paragraphs)
	assert.Equal(t, Distribution{}, p.Sentences)
	assert.Empty(t, p.Sample.Headers)

	rec := Recommend(p)
	assert.Less(t, rec.ChunkOverlap, rec.ChunkSize)
	assert.Equal(t, MinChunkSize, rec.ChunkSize)
}

func TestAnalyze_textStats(t *testing.T) {
	p := Analyze("Alpha beta alpha.\nGamma delta!")
	assert.Equal(t, 5, p.Text.WordCount)
	assert.Equal(t, 4, p.Text.UniqueWords)
	assert.InDelta(t, 0.8, p.Text.LexicalDiversity, 1e-9)
	assert.Equal(t, 2, p.Paragraphs.Count)
	assert.Equal(t, 2, p.Sentences.Count)
	assert.Equal(t, 17, p.Paragraphs.MaxLength)
	assert.Equal(t, 12, p.Paragraphs.MinLength)
	assert.InDelta(t, 14.5, p.Paragraphs.MedianLength, 1e-9)
}

func TestSplitSentences_abbreviations(t *testing.T) {
	got := splitSentences("See e.g. the docs. Mr. Smith agreed. Done")
	assert.Equal(t, []string{"See e.g. the docs.", "Mr. Smith agreed.", "Done"}, got)
}

func TestSplitSentences_singleWhitespace(t *testing.T) {
	got := splitSentences("One.  Two.\nThree")
	assert.Equal(t, []string{"One.", " Two.", "Three"}, got)
}

func TestAnalyze_structure(t *testing.T) {
	text := strings.Join([]string{
		"Introduction",
		"This paragraph is considerably longer than the header that precedes it in the text.",
		"See https://example.com or mail ops@example.com for x=2.5 details.",
		"1. first numbered item",
		"a) lettered item",
		"- bullet item",
		"• another bullet",
		"name  age  city",
		"ann   31   oslo",
		"\tx := y; z()",
	}, "\n")
	p := Analyze(text)
	assert.Equal(t, 1, p.Structure.PotentialHeaders)
	assert.Equal(t, []string{"Introduction"}, p.Sample.Headers)
	assert.Equal(t, 4, p.Structure.ListItems)
	assert.Equal(t, 1, p.Structure.TableRows)
	assert.Equal(t, TableRowConfidence, p.Structure.TableConfidence)
	assert.Equal(t, 1, p.Structure.CodeBlocks)
	assert.True(t, p.Features.HasURLs)
	assert.True(t, p.Features.HasEmails)
	assert.True(t, p.Features.HasMath)
}

func TestAnalyze_samplesCapped(t *testing.T) {
	text := strings.Repeat("- item\n", 9)
	p := Analyze(text)
	assert.Equal(t, 9, p.Structure.ListItems)
	assert.Len(t, p.Sample.ListItems, 5)
}

func TestRecommend_technicalWithManyCodeBlocks(t *testing.T) {
	p := Analyze(technicalText())
	require.Equal(t, 12, p.Structure.CodeBlocks)
	require.Greater(t, p.Sentences.AvgLength, 50.0)
	require.Less(t, p.Sentences.AvgLength, 150.0)

	rec := Recommend(p)
	assert.Equal(t, TypeTechnical, rec.DocumentType)
	assert.Equal(t, models.StrategyParagraph, rec.Strategy)
	assert.Equal(t, 800, rec.ChunkSize)
	assert.Equal(t, 240, rec.ChunkOverlap)
	assert.Equal(t, "Technical document with code blocks - paragraph chunking preserves code structure", rec.Reason)
	assert.InDelta(t, 0.9, rec.Confidence, 1e-9)
}

func TestRecommend_rules(t *testing.T) {
	tests := []struct {
		name         string
		profile      Profile
		wantType     string
		wantStrategy models.ChunkStrategy
		wantSize     int
		wantOverlap  int
	}{
		{
			name:         "general",
			profile:      Profile{Sentences: Distribution{AvgLength: 80}},
			wantType:     TypeGeneral,
			wantStrategy: models.StrategyHybrid,
			wantSize:     1000,
			wantOverlap:  200,
		},
		{
			name:         "technical few code blocks",
			profile:      Profile{Structure: Structure{CodeBlocks: 2}, Sentences: Distribution{AvgLength: 80}},
			wantType:     TypeTechnical,
			wantStrategy: models.StrategyHybrid,
			wantSize:     800,
			wantOverlap:  240,
		},
		{
			name:         "structured with many lists",
			profile:      Profile{Structure: Structure{PotentialHeaders: 6, ListItems: 25}, Sentences: Distribution{AvgLength: 80}},
			wantType:     TypeStructured,
			wantStrategy: models.StrategyParagraph,
			wantSize:     1000,
			wantOverlap:  200,
		},
		{
			name: "structured overrides technical",
			profile: Profile{
				Structure: Structure{PotentialHeaders: 6, ListItems: 12, CodeBlocks: 1},
				Sentences: Distribution{AvgLength: 80},
			},
			wantType:     TypeStructured,
			wantStrategy: models.StrategyHybrid,
			wantSize:     1000,
			wantOverlap:  200,
		},
		{
			name: "narrative long sentences",
			profile: Profile{
				Paragraphs: Distribution{Count: 20, AvgLength: 900},
				Sentences:  Distribution{AvgLength: 160},
			},
			wantType:     TypeNarrative,
			wantStrategy: models.StrategyFixedSize,
			wantSize:     1280,
			wantOverlap:  320,
		},
		{
			name: "narrative very long paragraphs",
			profile: Profile{
				Paragraphs: Distribution{Count: 20, AvgLength: 1100},
				Sentences:  Distribution{AvgLength: 90},
			},
			wantType:     TypeNarrative,
			wantStrategy: models.StrategySentence,
			wantSize:     1200,
			wantOverlap:  300,
		},
		{
			name: "narrative short paragraphs",
			profile: Profile{
				Paragraphs: Distribution{Count: 20, AvgLength: 600},
				Sentences:  Distribution{AvgLength: 90},
			},
			wantType:     TypeNarrative,
			wantStrategy: models.StrategyHybrid,
			wantSize:     1200,
			wantOverlap:  240,
		},
		{
			name:         "short sentences narrow size",
			profile:      Profile{Sentences: Distribution{AvgLength: 30}},
			wantType:     TypeGeneral,
			wantStrategy: models.StrategyHybrid,
			wantSize:     600,
			wantOverlap:  120,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := Recommend(&tt.profile)
			assert.Equal(t, tt.wantType, rec.DocumentType)
			assert.Equal(t, tt.wantStrategy, rec.Strategy)
			assert.Equal(t, tt.wantSize, rec.ChunkSize)
			assert.Equal(t, tt.wantOverlap, rec.ChunkOverlap)
			assert.Less(t, rec.ChunkOverlap, rec.ChunkSize)
			assert.NotEmpty(t, rec.Reason)
		})
	}
}

func TestRecommend_deterministic(t *testing.T) {
	p := Analyze(technicalText())
	assert.Equal(t, Recommend(p), Recommend(p))
}
