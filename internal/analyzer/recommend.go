package analyzer

import "github.com/hyperjump/kiritori/internal/models"

// Document types assigned by Recommend.
const (
	TypeGeneral    = "general"
	TypeTechnical  = "technical"
	TypeStructured = "structured"
	TypeNarrative  = "narrative"
)

// MinChunkSize is the smallest chunk size Recommend returns.
const MinChunkSize = 100

// Recommendation is an advisory chunking configuration derived from a Profile.
type Recommendation struct {
	DocumentType string               `json:"document_type"`
	Confidence   float64              `json:"confidence"`
	Strategy     models.ChunkStrategy `json:"recommended_strategy"`
	Reason       string               `json:"reason"`
	ChunkSize    int                  `json:"recommended_chunk_size"`
	ChunkOverlap int                  `json:"recommended_chunk_overlap"`
}

// Recommend picks a strategy, size and overlap for p. Later type rules take precedence over
// earlier ones. The result depends only on p.
func Recommend(p *Profile) Recommendation {
	st := p.Structure
	para := p.Paragraphs
	sent := p.Sentences

	rec := Recommendation{DocumentType: TypeGeneral, Confidence: 0.5}
	if st.CodeBlocks > 0 || p.Features.HasMath {
		rec.DocumentType = TypeTechnical
		rec.Confidence = min(0.5+float64(st.CodeBlocks)/10, 0.9)
	}
	if st.PotentialHeaders > 5 && st.ListItems > 10 {
		rec.DocumentType = TypeStructured
		rec.Confidence = min(0.5+float64(st.PotentialHeaders)/20, 0.9)
	}
	if st.PotentialHeaders < 3 && para.AvgLength > 500 && para.Count > 10 {
		rec.DocumentType = TypeNarrative
		rec.Confidence = min(0.5+para.AvgLength/1000, 0.9)
	}

	rec.Strategy = models.StrategyHybrid
	rec.Reason = "Balanced approach suitable for most documents"
	rec.ChunkSize = 1000
	switch rec.DocumentType {
	case TypeTechnical:
		rec.ChunkSize = 800
		if st.CodeBlocks > 10 {
			rec.Strategy = models.StrategyParagraph
			rec.Reason = "Technical document with code blocks - paragraph chunking preserves code structure"
		} else {
			rec.Reason = "Technical document with mixed content - hybrid chunking provides balance"
		}
	case TypeStructured:
		if st.ListItems > 20 {
			rec.Strategy = models.StrategyParagraph
			rec.Reason = "Highly structured document - paragraph chunking preserves document structure"
		} else {
			rec.Reason = "Structured document - hybrid chunking balances structure and context"
		}
	case TypeNarrative:
		rec.ChunkSize = 1200
		switch {
		case sent.AvgLength > 100:
			rec.Strategy = models.StrategyFixedSize
			rec.Reason = "Narrative text with long sentences - fixed size chunking provides consistent chunks"
		case para.AvgLength > 1000:
			rec.Strategy = models.StrategySentence
			rec.Reason = "Narrative text with very long paragraphs - sentence chunking prevents oversized chunks"
		default:
			rec.Reason = "Narrative text - hybrid chunking balances context and retrieval precision"
		}
	}

	if sent.AvgLength > 150 {
		rec.ChunkSize = max(rec.ChunkSize, int(sent.AvgLength*8))
	} else if sent.AvgLength < 50 {
		rec.ChunkSize = min(rec.ChunkSize, int(sent.AvgLength*20))
	}
	rec.ChunkSize = max(rec.ChunkSize, MinChunkSize)

	rec.ChunkOverlap = int(float64(rec.ChunkSize) * 0.2)
	if rec.DocumentType == TypeTechnical || st.CodeBlocks > 5 {
		rec.ChunkOverlap = int(float64(rec.ChunkSize) * 0.3)
	} else if rec.DocumentType == TypeNarrative && para.AvgLength > 800 {
		rec.ChunkOverlap = int(float64(rec.ChunkSize) * 0.25)
	}
	return rec
}
