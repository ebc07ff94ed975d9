package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/helixir/scholar-service/internal/authormatch"
	"github.com/helixir/scholar-service/internal/domain"
	"github.com/helixir/scholar-service/internal/scholar"
)

// findDuplicatesConcurrency bounds the parallel author searches issued by
// FindDuplicateAuthors. The client's rate limiter is the real throttle; this
// just keeps goroutine count proportional to useful work.
const findDuplicatesConcurrency = 4

// SearchAuthors searches for authors by name.
func (s *Service) SearchAuthors(ctx context.Context, query string, limit int) (result []domain.Author, err error) {
	defer func() { s.recordOutcome("search_authors", err) }()

	if strings.TrimSpace(query) == "" {
		return nil, &domain.ValidationError{Field: "query", Message: "must not be empty"}
	}

	params := url.Values{
		"query":  {query},
		"fields": {defaultAuthorFields},
		"limit":  {itoa(clampLimit(limit, 10, 100))},
	}
	raw, err := s.client.GetWithRetry(ctx, scholar.GraphAPI, "/author/search", params)
	if err != nil {
		return nil, err
	}

	var envelope domain.AuthorSearchResult
	if err = json.Unmarshal(raw, &envelope); err != nil {
		return nil, fmt.Errorf("decoding author search response: %w", err)
	}
	return envelope.Data, nil
}

// GetAuthorDetails fetches one author's profile, optionally with a page of
// their publications. Included papers are tracked.
func (s *Service) GetAuthorDetails(ctx context.Context, authorID string, includePapers bool, papersLimit int) (result domain.AuthorWithPapers, err error) {
	defer func() { s.recordOutcome("get_author_details", err) }()

	if authorID == "" {
		return domain.AuthorWithPapers{}, &domain.ValidationError{Field: "author_id", Message: "must not be empty"}
	}

	author, err := s.fetchAuthor(ctx, authorID)
	if err != nil {
		return domain.AuthorWithPapers{}, err
	}

	details := domain.AuthorWithPapers{Author: author}
	if includePapers {
		papers, err := s.fetchAuthorPapers(ctx, authorID, clampLimit(papersLimit, 10, 100))
		if err != nil {
			return domain.AuthorWithPapers{}, err
		}
		details.Papers = papers
		s.tracker.TrackMany(papers, "get_author_details")
		s.metrics.PapersTracked.Set(float64(s.tracker.Count()))
	}
	return details, nil
}

// GetAuthorTopPapers returns the author's most cited papers.
func (s *Service) GetAuthorTopPapers(ctx context.Context, authorID string, limit int) (result []domain.Paper, err error) {
	defer func() { s.recordOutcome("get_author_top_papers", err) }()

	if authorID == "" {
		return nil, &domain.ValidationError{Field: "author_id", Message: "must not be empty"}
	}

	limit = clampLimit(limit, 5, 100)

	// Fetch a wider page than requested so the citation sort sees enough of
	// the author's catalogue to pick a meaningful top slice.
	fetchLimit := limit * 10
	if fetchLimit > 1000 {
		fetchLimit = 1000
	}
	papers, err := s.fetchAuthorPapers(ctx, authorID, fetchLimit)
	if err != nil {
		return nil, err
	}

	papers = sortPapersByCitations(papers)
	if len(papers) > limit {
		papers = papers[:limit]
	}

	s.tracker.TrackMany(papers, "get_author_top_papers")
	s.metrics.PapersTracked.Set(float64(s.tracker.Count()))
	return papers, nil
}

// FindDuplicateAuthors searches each given name and groups the combined
// results by shared external identifier. Individual name searches that fail
// are logged and skipped rather than failing the whole operation; the
// operation errors only when every search fails.
func (s *Service) FindDuplicateAuthors(ctx context.Context, names []string, byORCID, byDBLP bool, perNameLimit int) (result []authormatch.Group, err error) {
	defer func() { s.recordOutcome("find_duplicate_authors", err) }()

	if len(names) == 0 {
		return nil, &domain.ValidationError{Field: "names", Message: "at least one author name is required"}
	}
	if !byORCID && !byDBLP {
		return nil, &domain.ValidationError{Field: "match_by", Message: "at least one identifier scheme must be enabled"}
	}

	perNameLimit = clampLimit(perNameLimit, 20, 100)

	// Per-name result slots keep the combined order deterministic regardless
	// of which search finishes first.
	results := make([][]domain.Author, len(names))
	succeeded := make([]bool, len(names))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(findDuplicatesConcurrency)

	for i, name := range names {
		g.Go(func() error {
			authors, searchErr := s.SearchAuthors(gctx, name, perNameLimit)
			if searchErr != nil {
				s.logger.Warn().Err(searchErr).Str("name", name).
					Msg("author search failed during duplicate detection")
				return nil
			}
			results[i] = authors
			succeeded[i] = true
			return nil
		})
	}
	if err = g.Wait(); err != nil {
		return nil, err
	}

	var combined []domain.Author
	seen := make(map[string]bool)
	anySucceeded := false
	for i, authors := range results {
		if succeeded[i] {
			anySucceeded = true
		}
		for _, author := range authors {
			if author.AuthorID == "" || seen[author.AuthorID] {
				continue
			}
			seen[author.AuthorID] = true
			combined = append(combined, author)
		}
	}
	if !anySucceeded {
		return nil, fmt.Errorf("all author searches failed: %w", domain.ErrConnectivity)
	}

	return authormatch.GroupDuplicates(combined, byORCID, byDBLP), nil
}

// ConsolidateAuthors fetches each author record and merges them into one
// canonical profile. Any author that cannot be found aborts the operation
// with an error naming the missing identifier.
func (s *Service) ConsolidateAuthors(ctx context.Context, authorIDs []string, confirmMerge bool) (result authormatch.ConsolidationResult, err error) {
	defer func() { s.recordOutcome("consolidate_authors", err) }()

	if len(authorIDs) < 2 {
		return authormatch.ConsolidationResult{}, &domain.ValidationError{
			Field:   "author_ids",
			Message: "at least two author IDs are required to consolidate",
		}
	}

	authors := make([]domain.Author, 0, len(authorIDs))
	for _, id := range authorIDs {
		author, fetchErr := s.fetchAuthor(ctx, id)
		if fetchErr != nil {
			err = fetchErr
			return authormatch.ConsolidationResult{}, err
		}
		authors = append(authors, author)
	}

	return authormatch.Consolidate(authors, confirmMerge)
}

// fetchAuthor retrieves a single author record.
func (s *Service) fetchAuthor(ctx context.Context, authorID string) (domain.Author, error) {
	params := url.Values{"fields": {defaultAuthorFields}}
	raw, err := s.client.GetWithRetry(ctx, scholar.GraphAPI, "/author/"+url.PathEscape(authorID), params)
	if err != nil {
		return domain.Author{}, wrapNotFound(err, "author", authorID)
	}

	var author domain.Author
	if err := json.Unmarshal(raw, &author); err != nil {
		return domain.Author{}, fmt.Errorf("decoding author response: %w", err)
	}
	return author, nil
}

// fetchAuthorPapers retrieves a page of the author's publications.
func (s *Service) fetchAuthorPapers(ctx context.Context, authorID string, limit int) ([]domain.Paper, error) {
	params := url.Values{
		"fields": {compactPaperFields},
		"limit":  {itoa(limit)},
	}
	raw, err := s.client.GetWithRetry(ctx, scholar.GraphAPI, "/author/"+url.PathEscape(authorID)+"/papers", params)
	if err != nil {
		return nil, wrapNotFound(err, "author", authorID)
	}

	var envelope domain.AuthorPapersResult
	if err := json.Unmarshal(raw, &envelope); err != nil {
		return nil, fmt.Errorf("decoding author papers response: %w", err)
	}
	return envelope.Data, nil
}
