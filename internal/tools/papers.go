package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strings"

	"github.com/helixir/scholar-service/internal/domain"
	"github.com/helixir/scholar-service/internal/scholar"
)

// SearchPapersParams are the arguments for SearchPapers.
type SearchPapersParams struct {
	Query          string
	Limit          int
	Year           string
	FieldsOfStudy  []string
	OpenAccessOnly bool
}

// SearchPapers searches for papers matching the query. Results are tracked
// for later export.
func (s *Service) SearchPapers(ctx context.Context, p SearchPapersParams) (result []domain.Paper, err error) {
	defer func() { s.recordOutcome("search_papers", err) }()

	if strings.TrimSpace(p.Query) == "" {
		return nil, &domain.ValidationError{Field: "query", Message: "must not be empty"}
	}

	params := url.Values{
		"query":  {p.Query},
		"fields": {compactPaperFields},
		"limit":  {itoa(clampLimit(p.Limit, 10, 100))},
	}
	if p.Year != "" {
		params.Set("year", p.Year)
	}
	if len(p.FieldsOfStudy) > 0 {
		params.Set("fieldsOfStudy", strings.Join(p.FieldsOfStudy, ","))
	}
	if p.OpenAccessOnly {
		params.Set("openAccessPdf", "")
	}

	raw, err := s.client.GetWithRetry(ctx, scholar.GraphAPI, "/paper/search", params)
	if err != nil {
		return nil, err
	}

	var envelope domain.PaperSearchResult
	if err = json.Unmarshal(raw, &envelope); err != nil {
		return nil, fmt.Errorf("decoding paper search response: %w", err)
	}

	s.tracker.TrackMany(envelope.Data, "search_papers")
	s.metrics.PapersTracked.Set(float64(s.tracker.Count()))
	return envelope.Data, nil
}

// GetPaperDetails fetches full metadata for one paper and tracks it.
func (s *Service) GetPaperDetails(ctx context.Context, paperID string) (result domain.Paper, err error) {
	defer func() { s.recordOutcome("get_paper_details", err) }()

	if paperID == "" {
		return domain.Paper{}, &domain.ValidationError{Field: "paper_id", Message: "must not be empty"}
	}

	params := url.Values{"fields": {defaultPaperFields + ",tldr"}}
	raw, err := s.client.GetWithRetry(ctx, scholar.GraphAPI, "/paper/"+url.PathEscape(paperID), params)
	if err != nil {
		return domain.Paper{}, wrapNotFound(err, "paper", paperID)
	}

	var paper domain.Paper
	if err = json.Unmarshal(raw, &paper); err != nil {
		return domain.Paper{}, fmt.Errorf("decoding paper response: %w", err)
	}

	s.tracker.Track(paper, "get_paper_details")
	s.metrics.PapersTracked.Set(float64(s.tracker.Count()))
	return paper, nil
}

// GetPaperCitations lists papers citing the given paper, most cited first.
func (s *Service) GetPaperCitations(ctx context.Context, paperID string, limit int) (result []domain.Paper, err error) {
	defer func() { s.recordOutcome("get_paper_citations", err) }()

	if paperID == "" {
		return nil, &domain.ValidationError{Field: "paper_id", Message: "must not be empty"}
	}

	params := url.Values{
		"fields": {nestedPaperFields("citingPaper", true)},
		"limit":  {itoa(clampLimit(limit, 10, 1000))},
	}
	raw, err := s.client.GetWithRetry(ctx, scholar.GraphAPI, "/paper/"+url.PathEscape(paperID)+"/citations", params)
	if err != nil {
		return nil, wrapNotFound(err, "paper", paperID)
	}

	var envelope domain.CitationsResult
	if err = json.Unmarshal(raw, &envelope); err != nil {
		return nil, fmt.Errorf("decoding citations response: %w", err)
	}

	papers := make([]domain.Paper, 0, len(envelope.Data))
	for _, c := range envelope.Data {
		papers = append(papers, c.CitingPaper)
	}
	papers = sortPapersByCitations(papers)

	s.tracker.TrackMany(papers, "get_paper_citations")
	s.metrics.PapersTracked.Set(float64(s.tracker.Count()))
	return papers, nil
}

// GetPaperReferences lists papers cited by the given paper, most cited
// first.
func (s *Service) GetPaperReferences(ctx context.Context, paperID string, limit int) (result []domain.Paper, err error) {
	defer func() { s.recordOutcome("get_paper_references", err) }()

	if paperID == "" {
		return nil, &domain.ValidationError{Field: "paper_id", Message: "must not be empty"}
	}

	params := url.Values{
		"fields": {nestedPaperFields("citedPaper", true)},
		"limit":  {itoa(clampLimit(limit, 10, 1000))},
	}
	raw, err := s.client.GetWithRetry(ctx, scholar.GraphAPI, "/paper/"+url.PathEscape(paperID)+"/references", params)
	if err != nil {
		return nil, wrapNotFound(err, "paper", paperID)
	}

	var envelope domain.ReferencesResult
	if err = json.Unmarshal(raw, &envelope); err != nil {
		return nil, fmt.Errorf("decoding references response: %w", err)
	}

	papers := make([]domain.Paper, 0, len(envelope.Data))
	for _, r := range envelope.Data {
		papers = append(papers, r.CitedPaper)
	}
	papers = sortPapersByCitations(papers)

	s.tracker.TrackMany(papers, "get_paper_references")
	s.metrics.PapersTracked.Set(float64(s.tracker.Count()))
	return papers, nil
}

// recommendationRequest is the POST body for the Recommendations API.
type recommendationRequest struct {
	PositivePaperIDs []string `json:"positivePaperIds"`
	NegativePaperIDs []string `json:"negativePaperIds,omitempty"`
}

// GetRecommendations returns papers similar to the positive examples and
// dissimilar from the negative ones.
func (s *Service) GetRecommendations(ctx context.Context, positiveIDs, negativeIDs []string, limit int) (result []domain.Paper, err error) {
	defer func() { s.recordOutcome("get_recommendations", err) }()

	if len(positiveIDs) == 0 {
		return nil, &domain.ValidationError{Field: "positive_paper_ids", Message: "at least one paper ID is required"}
	}

	params := url.Values{
		"fields": {compactPaperFields},
		"limit":  {itoa(clampLimit(limit, 10, 500))},
	}
	body := recommendationRequest{
		PositivePaperIDs: positiveIDs,
		NegativePaperIDs: negativeIDs,
	}

	raw, err := s.client.PostWithRetry(ctx, scholar.RecommendationsAPI, "/papers", body, params)
	if err != nil {
		return nil, err
	}

	var envelope domain.RecommendationsResult
	if err = json.Unmarshal(raw, &envelope); err != nil {
		return nil, fmt.Errorf("decoding recommendations response: %w", err)
	}

	s.tracker.TrackMany(envelope.RecommendedPapers, "get_recommendations")
	s.metrics.PapersTracked.Set(float64(s.tracker.Count()))
	return envelope.RecommendedPapers, nil
}

// GetRelatedPapers returns papers related to a single paper.
func (s *Service) GetRelatedPapers(ctx context.Context, paperID string, limit int) (result []domain.Paper, err error) {
	defer func() { s.recordOutcome("get_related_papers", err) }()

	if paperID == "" {
		return nil, &domain.ValidationError{Field: "paper_id", Message: "must not be empty"}
	}

	params := url.Values{
		"fields": {compactPaperFields},
		"limit":  {itoa(clampLimit(limit, 10, 500))},
	}
	raw, err := s.client.GetWithRetry(ctx, scholar.RecommendationsAPI, "/papers/forpaper/"+url.PathEscape(paperID), params)
	if err != nil {
		return nil, wrapNotFound(err, "paper", paperID)
	}

	var envelope domain.RecommendationsResult
	if err = json.Unmarshal(raw, &envelope); err != nil {
		return nil, fmt.Errorf("decoding related papers response: %w", err)
	}

	s.tracker.TrackMany(envelope.RecommendedPapers, "get_related_papers")
	s.metrics.PapersTracked.Set(float64(s.tracker.Count()))
	return envelope.RecommendedPapers, nil
}
