package tools

import (
	"errors"
	"sort"
	"strconv"
	"strings"

	"github.com/helixir/scholar-service/internal/domain"
)

// Field strings requested from the Graph API. The compact set trims list
// responses; the default set covers everything the export path needs.
const (
	defaultPaperFields = "paperId,title,abstract,year,citationCount,authors,venue," +
		"publicationTypes,openAccessPdf,fieldsOfStudy,journal,externalIds,publicationDate"

	compactPaperFields = "paperId,title,abstract,year,citationCount,authors,venue,openAccessPdf,fieldsOfStudy"

	defaultAuthorFields = "authorId,name,affiliations,paperCount,citationCount,hIndex,externalIds,homepage,aliases"
)

// nestedPaperFields prefixes every paper field with the wrapper object name,
// as the citations/references endpoints require (e.g. "citingPaper.title").
func nestedPaperFields(prefix string, compact bool) string {
	fields := defaultPaperFields
	if compact {
		fields = compactPaperFields
	}
	return prefix + "." + strings.ReplaceAll(fields, ",", ","+prefix+".")
}

// sortPapersByCitations returns a copy of papers ordered by citation count
// descending; ties keep input order.
func sortPapersByCitations(papers []domain.Paper) []domain.Paper {
	sorted := make([]domain.Paper, len(papers))
	copy(sorted, papers)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].CitationCount > sorted[j].CitationCount
	})
	return sorted
}

// clampLimit bounds a result limit to [1, max], substituting def when the
// caller passed zero or a negative value.
func clampLimit(limit, def, max int) int {
	if limit <= 0 {
		return def
	}
	if limit > max {
		return max
	}
	return limit
}

func itoa(n int) string { return strconv.Itoa(n) }

// wrapNotFound rewrites a not-found error from the API client so it names the
// entity and identifier the caller asked for rather than the request path.
// Other errors pass through unchanged.
func wrapNotFound(err error, entity, id string) error {
	var nf *domain.NotFoundError
	if errors.As(err, &nf) {
		return &domain.NotFoundError{Entity: entity, ID: id}
	}
	return err
}
