package retrieval

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/hyperjump/kiritori/internal/models"
	"github.com/hyperjump/kiritori/internal/vector"
	"golang.org/x/sync/errgroup"
)

// semantic runs a nearest-neighbour query. When it fails or finds nothing, the full-text
// retriever is asked for 2k candidates with the same filter and the result is cut back to k.
func (e *Engine) semantic(ctx context.Context, r *run, k int) ([]*models.RetrievalResult, error) {
	hits, qerr := e.query(ctx, r.query, r.scope, k)
	if qerr != nil {
		r.failed("semantic", qerr)
	} else {
		r.succeeded()
		if len(hits) > 0 {
			return toResults(hits, models.MethodSemantic), nil
		}
	}
	if e.fulltext == nil {
		if qerr != nil {
			return nil, qerr
		}
		return []*models.RetrievalResult{}, nil
	}

	hits, err := e.fullText(ctx, r.query, r.scope, k*2)
	if err != nil {
		r.failed("full-text", err)
		if qerr != nil {
			return nil, errors.Join(qerr, err)
		}
		return []*models.RetrievalResult{}, nil
	}
	r.succeeded()
	if len(hits) == 0 && qerr != nil {
		return nil, qerr
	}
	if len(hits) > 0 {
		r.fellBack = true
		if qerr != nil {
			r.note("semantic: direct query failed, answered by full-text retriever")
		} else {
			r.note("semantic: direct query empty, answered by full-text retriever")
		}
	}
	return truncate(toResults(hits, models.MethodSemantic), k), nil
}

// keyword filters chunks whose content preview contains any query keyword.
func (e *Engine) keyword(ctx context.Context, r *run, k int) ([]*models.RetrievalResult, error) {
	kws := ExtractKeywords(r.query)
	if len(kws) == 0 {
		r.failed("keyword", ErrNoKeywords)
		return nil, ErrNoKeywords
	}
	hits, err := e.query(ctx, r.query, keywordFilter(r.scope, kws), k)
	if err != nil {
		r.failed("keyword", err)
		return nil, err
	}
	r.succeeded()
	return toResults(hits, models.MethodKeyword), nil
}

// hybrid re-ranks 2k semantic candidates by keyword coverage.
func (e *Engine) hybrid(ctx context.Context, r *run) ([]*models.RetrievalResult, error) {
	candidates, err := e.semantic(ctx, r, r.topK*2)
	if err != nil {
		return nil, err
	}
	kws := ExtractKeywords(r.query)
	ranked := e.rerank(candidates, kws)
	for _, res := range ranked {
		res.Method = models.MethodHybrid
	}
	return truncate(ranked, r.topK), nil
}

// rerank orders candidates by keyword coverage. In keyword-only mode the score is the match
// count with ties kept in semantic order. Otherwise semantic rank and coverage are blended.
func (e *Engine) rerank(candidates []*models.RetrievalResult, kws []string) []*models.RetrievalResult {
	if len(kws) == 0 || len(candidates) == 0 {
		return candidates
	}
	n := float64(len(candidates))
	for i, c := range candidates {
		matched := countMatches(c.Content, kws)
		if e.keywordOnly {
			c.Score = float64(matched)
			continue
		}
		c.Score = e.semanticWeight*(1-float64(i)/n) + e.keywordWeight*float64(matched)/float64(len(kws))
	}
	sort.SliceStable(candidates, func(i, j int) bool { return candidates[i].Score > candidates[j].Score })
	return candidates
}

const (
	semanticBase = 1.0
	keywordBonus = 0.5
	keywordBase  = 0.5
)

// ensemble runs the semantic and keyword tiers concurrently and merges them by chunk.
func (e *Engine) ensemble(ctx context.Context, r *run) ([]*models.RetrievalResult, error) {
	// Each leg records into its own run; they are merged once both finish.
	semRun := &run{query: r.query, topK: r.topK, scope: r.scope}
	kwRun := &run{query: r.query, topK: r.topK, scope: r.scope}
	var sem, kw []*models.RetrievalResult
	var semErr, kwErr error

	var g errgroup.Group
	g.Go(func() error {
		sem, semErr = e.semantic(ctx, semRun, r.topK)
		return nil
	})
	g.Go(func() error {
		kw, kwErr = e.keyword(ctx, kwRun, r.topK)
		return nil
	})
	_ = g.Wait()

	for _, leg := range []*run{semRun, kwRun} {
		r.attempts += leg.attempts
		r.failures += leg.failures
		r.diags = append(r.diags, leg.diags...)
		r.fellBack = r.fellBack || leg.fellBack
	}
	if semErr != nil && kwErr != nil {
		return nil, fmt.Errorf("ensemble: %w", errors.Join(semErr, kwErr))
	}
	return truncate(merge(sem, kw), r.topK), nil
}

// merge combines semantic and keyword results keyed by DedupKey. A chunk found by both
// scores 1.5 and is tagged ensemble; keyword-only chunks score 0.5.
func merge(sem, kw []*models.RetrievalResult) []*models.RetrievalResult {
	byKey := make(map[string]*models.RetrievalResult, len(sem)+len(kw))
	var out []*models.RetrievalResult
	for _, s := range sem {
		key := s.DedupKey()
		if _, dup := byKey[key]; dup {
			continue
		}
		res := *s
		res.Score = semanticBase
		res.Method = models.MethodSemantic
		byKey[key] = &res
		out = append(out, &res)
	}
	for _, k := range kw {
		key := k.DedupKey()
		if existing, ok := byKey[key]; ok {
			if existing.Method == models.MethodSemantic {
				existing.Score += keywordBonus
				existing.Method = models.MethodEnsemble
			}
			continue
		}
		res := *k
		res.Score = keywordBase
		res.Method = models.MethodKeyword
		byKey[key] = &res
		out = append(out, &res)
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Score > out[j].Score })
	return out
}

// basic is the last resort: a scoped query, then direct per-file fetches when file ids were
// requested and the query failed or found nothing.
func (e *Engine) basic(ctx context.Context, r *run) ([]*models.RetrievalResult, error) {
	hits, err := e.query(ctx, r.query, r.scope, r.topK)
	if err != nil {
		r.failed("basic", err)
	} else {
		r.succeeded()
		if len(hits) > 0 || len(r.fileIDs) == 0 {
			return toResults(hits, models.MethodBasic), nil
		}
	}
	if len(r.fileIDs) == 0 {
		return nil, err
	}

	r.fellBack = true
	var out []*models.RetrievalResult
	var errs []error
	for _, id := range r.fileIDs {
		got, gerr := e.get(ctx, vector.Eq{Key: KeyFileID, Value: id}, r.topK)
		if gerr != nil {
			r.failed("direct "+id, gerr)
			errs = append(errs, gerr)
			continue
		}
		r.succeeded()
		out = append(out, toResults(got, models.MethodDirectFileID)...)
		if len(out) >= r.topK {
			break
		}
	}
	if len(out) == 0 && len(errs) == len(r.fileIDs) {
		return nil, errors.Join(errs...)
	}
	return truncate(out, r.topK), nil
}
