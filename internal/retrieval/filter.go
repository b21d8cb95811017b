package retrieval

import (
	"github.com/hyperjump/kiritori/internal/models"
	"github.com/hyperjump/kiritori/internal/vector"
)

// Metadata keys the retrieval tiers rely on.
const (
	KeyFileID         = "file_id"
	KeyChunkIndex     = "chunk_index"
	KeyDate           = "date"
	KeyContentPreview = "content_preview"
)

// BuildFilter scopes a query to file ids and an inclusive date range. It returns nil when
// neither is set.
func BuildFilter(fileIDs []string, dates *models.DateRange) vector.Filter {
	var parts vector.And
	switch len(fileIDs) {
	case 0:
	case 1:
		parts = append(parts, vector.Eq{Key: KeyFileID, Value: fileIDs[0]})
	default:
		anyOf := make(vector.Or, len(fileIDs))
		for i, id := range fileIDs {
			anyOf[i] = vector.Eq{Key: KeyFileID, Value: id}
		}
		parts = append(parts, anyOf)
	}
	if !dates.IsZero() {
		if dates.Start != "" {
			parts = append(parts, vector.Gte{Key: KeyDate, Value: dates.Start})
		}
		if dates.End != "" {
			parts = append(parts, vector.Lte{Key: KeyDate, Value: dates.End})
		}
	}
	switch len(parts) {
	case 0:
		return nil
	case 1:
		return parts[0]
	}
	return parts
}

// keywordFilter matches chunks whose content preview contains any keyword, within scope.
func keywordFilter(scope vector.Filter, keywords []string) vector.Filter {
	anyOf := make(vector.Or, len(keywords))
	for i, kw := range keywords {
		anyOf[i] = vector.Contains{Key: KeyContentPreview, Substr: kw}
	}
	if scope == nil {
		return anyOf
	}
	return vector.And{scope, anyOf}
}
