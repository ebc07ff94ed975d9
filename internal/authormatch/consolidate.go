package authormatch

import (
	"sort"

	"github.com/helixir/scholar-service/internal/domain"
)

// MatchType classifies the evidence behind a consolidation.
type MatchType string

const (
	// MatchORCID means at least two sources share an identical ORCID.
	MatchORCID MatchType = "orcid"
	// MatchDBLP means at least two sources share an identical DBLP ID.
	MatchDBLP MatchType = "dblp"
	// MatchUserConfirmed means no shared identifier was found and the
	// merge rests on the caller's judgment.
	MatchUserConfirmed MatchType = "user_confirmed"
)

// ConsolidationResult is the outcome of merging author records into one
// canonical profile. IsPreview reflects caller intent only; the computation
// is identical either way and no upstream state is ever mutated.
type ConsolidationResult struct {
	MergedAuthor  domain.Author   `json:"merged_author"`
	SourceAuthors []domain.Author `json:"source_authors"`
	MatchType     MatchType       `json:"match_type"`
	Confidence    *float64        `json:"confidence,omitempty"`
	IsPreview     bool            `json:"is_preview"`
}

// Consolidate merges the given author records into one canonical profile.
// The primary is the record with the highest citation count (ties keep input
// order). Affiliations and aliases are unioned preserving first-seen order;
// every source name except the primary's joins the alias list. Paper and
// citation counts are summed, the h-index is the maximum, and the external
// ID bag comes from the primary or the first non-nil bag in input order.
//
// At least two records are required; fewer return a validation error.
func Consolidate(authors []domain.Author, confirmMerge bool) (ConsolidationResult, error) {
	if len(authors) < 2 {
		return ConsolidationResult{}, &domain.ValidationError{
			Field:   "author_ids",
			Message: "at least two author records are required to consolidate",
		}
	}

	matchType, confidence := classifyMatch(authors)

	sorted := make([]domain.Author, len(authors))
	copy(sorted, authors)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].CitationCount > sorted[j].CitationCount
	})
	primary := sorted[0]

	var affiliations, aliases []string
	seenAffiliation := make(map[string]bool)
	seenAlias := make(map[string]bool)

	for _, author := range authors {
		for _, aff := range author.Affiliations {
			if !seenAffiliation[aff] {
				seenAffiliation[aff] = true
				affiliations = append(affiliations, aff)
			}
		}
		for _, alias := range author.Aliases {
			if !seenAlias[alias] {
				seenAlias[alias] = true
				aliases = append(aliases, alias)
			}
		}
		if author.Name != "" && !seenAlias[author.Name] {
			seenAlias[author.Name] = true
			aliases = append(aliases, author.Name)
		}
	}

	// The primary's own name is not an alias of itself.
	if primary.Name != "" {
		aliases = remove(aliases, primary.Name)
	}

	totalPapers := 0
	totalCitations := 0
	maxHIndex := 0
	for _, author := range authors {
		totalPapers += author.PaperCount
		totalCitations += author.CitationCount
		if author.HIndex > maxHIndex {
			maxHIndex = author.HIndex
		}
	}

	externalIDs := primary.ExternalIDs
	if externalIDs == nil {
		for _, author := range authors {
			if author.ExternalIDs != nil {
				externalIDs = author.ExternalIDs
				break
			}
		}
	}

	merged := domain.Author{
		AuthorID:      primary.AuthorID,
		Name:          primary.Name,
		Affiliations:  affiliations,
		PaperCount:    totalPapers,
		CitationCount: totalCitations,
		HIndex:        maxHIndex,
		Aliases:       aliases,
		Homepage:      primary.Homepage,
		ExternalIDs:   externalIDs,
	}

	return ConsolidationResult{
		MergedAuthor:  merged,
		SourceAuthors: authors,
		MatchType:     matchType,
		Confidence:    confidence,
		IsPreview:     !confirmMerge,
	}, nil
}

// classifyMatch determines the match type and confidence. A shared ORCID
// outranks a shared DBLP; with neither, the merge is user-confirmed and
// confidence is absent.
func classifyMatch(authors []domain.Author) (MatchType, *float64) {
	if sharesIdentifier(authors, domain.Author.ORCID) {
		return MatchORCID, ptr(1.0)
	}
	if sharesIdentifier(authors, domain.Author.DBLP) {
		return MatchDBLP, ptr(0.95)
	}
	return MatchUserConfirmed, nil
}

// sharesIdentifier reports whether at least two authors carry the same
// non-empty identifier under the given accessor.
func sharesIdentifier(authors []domain.Author, id func(domain.Author) string) bool {
	counts := make(map[string]int)
	for _, author := range authors {
		if v := id(author); v != "" {
			counts[v]++
			if counts[v] >= 2 {
				return true
			}
		}
	}
	return false
}

func remove(values []string, target string) []string {
	out := values[:0]
	for _, v := range values {
		if v != target {
			out = append(out, v)
		}
	}
	return out
}

func ptr(f float64) *float64 { return &f }
