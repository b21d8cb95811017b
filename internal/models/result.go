package models

// RetrievalMethod records which tier produced a result.
type RetrievalMethod string

const (
	MethodSemantic     RetrievalMethod = "semantic"
	MethodKeyword      RetrievalMethod = "keyword"
	MethodEnsemble     RetrievalMethod = "ensemble"
	MethodHybrid       RetrievalMethod = "hybrid"
	MethodBasic        RetrievalMethod = "basic"
	MethodDirectFileID RetrievalMethod = "direct_file_id"
)

// Outcome classifies how a retrieval request ended.
type Outcome string

const (
	// OutcomeOK means the requested tier answered.
	OutcomeOK Outcome = "ok"
	// OutcomeFallback means a fallback tier answered after the primary failed or found nothing.
	OutcomeFallback Outcome = "fallback"
	// OutcomeNoMatch means every tier ran and nothing matched.
	OutcomeNoMatch Outcome = "no_match"
	// OutcomeUnavailable means every tier failed.
	OutcomeUnavailable Outcome = "unavailable"
	// OutcomeInvalid means the request was rejected before any tier ran.
	OutcomeInvalid Outcome = "invalid"
)

// RetrievalResult is a single retrieved chunk.
type RetrievalResult struct {
	Content  string            `json:"content"`
	Metadata map[string]string `json:"metadata"`
	Method   RetrievalMethod   `json:"retrieval_method"`
	Score    float64           `json:"score"`
}

// DedupKey identifies the underlying chunk regardless of tier.
func (r *RetrievalResult) DedupKey() string {
	return r.Metadata["file_id"] + "_" + r.Metadata["chunk_index"]
}

// RetrievalResponse is the response for a retrieval request.
type RetrievalResponse struct {
	Query       string             `json:"query"`
	Strategy    RetrievalStrategy  `json:"strategy"`
	Results     []*RetrievalResult `json:"results"`
	Outcome     Outcome            `json:"outcome"`
	Diagnostics []string           `json:"diagnostics,omitempty"`
	QueryTime   int64              `json:"query_time_ms"`
}

// Answer is a composed natural-language answer with the chunks that grounded it.
type Answer struct {
	Answer  string             `json:"answer"`
	Sources []*RetrievalResult `json:"sources"`
	Outcome Outcome            `json:"outcome"`
}
