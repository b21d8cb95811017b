// Package retrieval finds the chunks relevant to a query through tiered strategies with fallback.
package retrieval

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/hyperjump/kiritori/internal/config"
	"github.com/hyperjump/kiritori/internal/models"
	"github.com/hyperjump/kiritori/internal/vector"
	"go.uber.org/zap"
)

// FullText is the generic retriever the semantic tier falls back to when the direct query is empty.
type FullText interface {
	Retrieve(ctx context.Context, query string, filter vector.Filter, k int) ([]vector.Hit, error)
}

// Engine runs retrieval strategies against a vector store.
type Engine struct {
	store          vector.Store
	fulltext       FullText
	logger         *zap.Logger
	timeout        time.Duration
	defaultTopK    int
	maxTopK        int
	strategy       models.RetrievalStrategy
	semanticWeight float64
	keywordWeight  float64
	keywordOnly    bool
}

// NewEngine creates a retrieval engine. fulltext and logger may be nil; cfg may be nil for defaults.
func NewEngine(store vector.Store, fulltext FullText, cfg *config.RetrievalConfig, logger *zap.Logger) *Engine {
	if logger == nil {
		logger = zap.NewNop()
	}
	e := &Engine{
		store:          store,
		fulltext:       fulltext,
		logger:         logger,
		timeout:        30 * time.Second,
		defaultTopK:    models.DefaultTopK,
		maxTopK:        models.MaxTopK,
		strategy:       models.RetrievalHybrid,
		semanticWeight: 0.5,
		keywordWeight:  0.5,
	}
	if cfg != nil {
		if cfg.Timeout > 0 {
			e.timeout = cfg.Timeout
		}
		if cfg.DefaultTopK > 0 {
			e.defaultTopK = cfg.DefaultTopK
		}
		if cfg.MaxTopK > 0 && cfg.MaxTopK < models.MaxTopK {
			e.maxTopK = cfg.MaxTopK
		}
		if cfg.DefaultStrategy != "" {
			e.strategy = models.RetrievalStrategy(cfg.DefaultStrategy)
		}
		if cfg.SemanticWeight > 0 || cfg.KeywordWeight > 0 {
			e.semanticWeight = cfg.SemanticWeight
			e.keywordWeight = cfg.KeywordWeight
		}
		e.keywordOnly = cfg.HybridKeywordOnly
	}
	return e
}

// run tracks one retrieval call through the fallback chain.
type run struct {
	query    string
	topK     int
	scope    vector.Filter
	fileIDs  []string
	fellBack bool
	attempts int
	failures int
	diags    []string
}

func (r *run) note(format string, args ...interface{}) {
	r.diags = append(r.diags, fmt.Sprintf(format, args...))
}

// failed records a tier failure. ErrNoKeywords is not an index failure.
func (r *run) failed(tier string, err error) {
	r.attempts++
	if !errors.Is(err, ErrNoKeywords) {
		r.failures++
	}
	r.note("%s: %v", tier, err)
}

func (r *run) succeeded() {
	r.attempts++
}

// Retrieve answers req best-first. It never returns an error: failures are reported
// through the response Outcome and Diagnostics. req is not modified.
func (e *Engine) Retrieve(ctx context.Context, req *models.RetrievalRequest) *models.RetrievalResponse {
	start := time.Now()
	q := *req
	if q.Strategy == "" {
		q.Strategy = e.strategy
	}
	if q.TopK <= 0 {
		q.TopK = e.defaultTopK
	}
	resp := &models.RetrievalResponse{
		Query:    q.Query,
		Strategy: q.Strategy,
		Results:  []*models.RetrievalResult{},
	}
	if err := q.Validate(); err != nil {
		resp.Outcome = models.OutcomeInvalid
		resp.Diagnostics = []string{"invalid request: " + err.Error()}
		return resp
	}
	if q.TopK > e.maxTopK {
		q.TopK = e.maxTopK
	}

	r := &run{
		query:   q.Query,
		topK:    q.TopK,
		scope:   BuildFilter(q.FileIDs, q.DateRange),
		fileIDs: q.FileIDs,
	}

	var results []*models.RetrievalResult
	var err error
	switch q.Strategy {
	case models.RetrievalSemantic:
		results, err = e.semantic(ctx, r, r.topK)
	case models.RetrievalKeyword:
		results, err = e.keyword(ctx, r, r.topK)
	case models.RetrievalHybrid:
		results, err = e.hybrid(ctx, r)
	case models.RetrievalEnsemble:
		results, err = e.ensemble(ctx, r)
	case models.RetrievalBasic:
		results, err = e.basic(ctx, r)
	}
	if err != nil && q.Strategy != models.RetrievalBasic {
		r.fellBack = true
		results, err = e.basic(ctx, r)
	}
	if err != nil {
		results = nil
	}

	resp.Results = append(resp.Results, results...)
	resp.Diagnostics = r.diags
	resp.QueryTime = time.Since(start).Milliseconds()
	switch {
	case len(resp.Results) > 0 && r.fellBack:
		resp.Outcome = models.OutcomeFallback
	case len(resp.Results) > 0:
		resp.Outcome = models.OutcomeOK
	case r.attempts > 0 && r.failures == r.attempts:
		resp.Outcome = models.OutcomeUnavailable
		e.logger.Warn("retrieval failed on every tier",
			zap.String("strategy", string(q.Strategy)),
			zap.Strings("diagnostics", r.diags))
	default:
		resp.Outcome = models.OutcomeNoMatch
	}
	e.logger.Debug("retrieval finished",
		zap.String("strategy", string(q.Strategy)),
		zap.String("outcome", string(resp.Outcome)),
		zap.Int("results", len(resp.Results)),
		zap.String("scope", vector.Describe(r.scope)),
		zap.Int64("query_time_ms", resp.QueryTime))
	return resp
}

func (e *Engine) query(ctx context.Context, text string, filter vector.Filter, k int) ([]vector.Hit, error) {
	ctx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()
	return e.store.Query(ctx, text, filter, k)
}

func (e *Engine) get(ctx context.Context, filter vector.Filter, limit int) ([]vector.Hit, error) {
	ctx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()
	return e.store.Get(ctx, filter, limit)
}

func (e *Engine) fullText(ctx context.Context, text string, filter vector.Filter, k int) ([]vector.Hit, error) {
	ctx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()
	return e.fulltext.Retrieve(ctx, text, filter, k)
}

func toResults(hits []vector.Hit, method models.RetrievalMethod) []*models.RetrievalResult {
	out := make([]*models.RetrievalResult, len(hits))
	for i, h := range hits {
		out[i] = &models.RetrievalResult{Content: h.Text, Metadata: h.Metadata, Method: method, Score: h.Score}
	}
	return out
}

func truncate(results []*models.RetrievalResult, k int) []*models.RetrievalResult {
	if len(results) > k {
		return results[:k]
	}
	return results
}
