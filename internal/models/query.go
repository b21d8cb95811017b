package models

import (
	"fmt"
	"strings"
)

// RetrievalStrategy names a retrieval tier requested by the caller.
type RetrievalStrategy string

const (
	RetrievalSemantic RetrievalStrategy = "semantic"
	RetrievalKeyword  RetrievalStrategy = "keyword"
	RetrievalHybrid   RetrievalStrategy = "hybrid"
	RetrievalEnsemble RetrievalStrategy = "ensemble"
	RetrievalBasic    RetrievalStrategy = "basic"
)

const (
	DefaultTopK = 10
	MaxTopK     = 100
)

// DateRange bounds results by their ISO "date" metadata. Both ends are inclusive and optional.
type DateRange struct {
	Start string `json:"start,omitempty"`
	End   string `json:"end,omitempty"`
}

// IsZero reports whether neither bound is set.
func (d *DateRange) IsZero() bool {
	return d == nil || (d.Start == "" && d.End == "")
}

// RetrievalRequest is a query plus its scoping.
type RetrievalRequest struct {
	Query     string            `json:"query"`
	FileIDs   []string          `json:"file_ids,omitempty"`
	DateRange *DateRange        `json:"date_range,omitempty"`
	TopK      int               `json:"top_k,omitempty"`
	Strategy  RetrievalStrategy `json:"strategy,omitempty"`
}

// Validate ensures the request has valid fields and sets defaults.
// Blank file ids are dropped, top_k defaults to 10 and is capped at 100, strategy defaults to hybrid.
func (r *RetrievalRequest) Validate() error {
	if strings.TrimSpace(r.Query) == "" {
		return fmt.Errorf("query cannot be empty")
	}
	ids := r.FileIDs[:0:0]
	for _, id := range r.FileIDs {
		if id = strings.TrimSpace(id); id != "" {
			ids = append(ids, id)
		}
	}
	r.FileIDs = ids
	if r.TopK <= 0 {
		r.TopK = DefaultTopK
	}
	if r.TopK > MaxTopK {
		r.TopK = MaxTopK
	}
	switch r.Strategy {
	case "":
		r.Strategy = RetrievalHybrid
	case RetrievalSemantic, RetrievalKeyword, RetrievalHybrid, RetrievalEnsemble, RetrievalBasic:
	default:
		return fmt.Errorf("unknown retrieval strategy %q", r.Strategy)
	}
	return nil
}
