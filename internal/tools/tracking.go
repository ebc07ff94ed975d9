package tools

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"

	"github.com/helixir/scholar-service/internal/bibtex"
	"github.com/helixir/scholar-service/internal/domain"
	"github.com/helixir/scholar-service/internal/scholar"
)

// ListTrackedPapers returns the papers tracked this session, optionally
// filtered to one source tool. An empty result is not an error.
func (s *Service) ListTrackedPapers(sourceTool string) (result []domain.Paper, err error) {
	defer func() { s.recordOutcome("list_tracked_papers", err) }()

	if sourceTool != "" {
		return s.tracker.GetPapersByTool(sourceTool), nil
	}
	return s.tracker.GetAllPapers(), nil
}

// ClearTrackedPapers empties the tracker and reports how many papers were
// removed.
func (s *Service) ClearTrackedPapers() (removed int, err error) {
	defer func() { s.recordOutcome("clear_tracked_papers", err) }()

	removed = s.tracker.Count()
	s.tracker.Clear()
	s.metrics.PapersTracked.Set(0)
	s.logger.Info().Int("count", removed).Msg("cleared tracked papers")
	return removed, nil
}

// ExportParams are the arguments for ExportBibTeX.
type ExportParams struct {
	PaperIDs        []string
	IncludeAbstract bool
	IncludeURL      bool
	IncludeDOI      bool
	CiteKeyFormat   bibtex.CiteKeyFormat
}

// ExportBibTeX renders papers as a BibTeX document. With explicit paper IDs
// it exports those, fetching any not already tracked; without, it exports
// everything tracked this session. Papers missing their external ID bag are
// re-fetched when the export needs DOIs or URLs, falling back to the tracked
// record if the re-fetch fails.
func (s *Service) ExportBibTeX(ctx context.Context, p ExportParams) (result string, err error) {
	defer func() { s.recordOutcome("export_bibtex", err) }()

	if p.CiteKeyFormat == "" {
		p.CiteKeyFormat = bibtex.KeyAuthorYear
	}
	if !bibtex.ValidKeyFormat(p.CiteKeyFormat) {
		return "", &domain.ValidationError{
			Field:   "cite_key_format",
			Message: fmt.Sprintf("unknown format %q", p.CiteKeyFormat),
		}
	}

	var papers []domain.Paper
	if len(p.PaperIDs) > 0 {
		papers, err = s.papersForExport(ctx, p.PaperIDs)
		if err != nil {
			return "", err
		}
		if len(papers) == 0 {
			return "", &domain.NotFoundError{Entity: "paper", ID: "requested IDs"}
		}
	} else {
		papers = s.tracker.GetAllPapers()
		if len(papers) == 0 {
			return "", &domain.ValidationError{
				Field:   "paper_ids",
				Message: "no papers tracked this session and no IDs were given",
			}
		}
	}

	if p.IncludeDOI || p.IncludeURL {
		papers = s.enrichExternalIDs(ctx, papers)
	}

	cfg := bibtex.ExportConfig{
		Fields: bibtex.FieldConfig{
			IncludeAbstract: p.IncludeAbstract,
			IncludeURL:      p.IncludeURL,
			IncludeDOI:      p.IncludeDOI,
		},
		CiteKeyFormat: p.CiteKeyFormat,
	}

	s.logger.Info().Int("papers", len(papers)).
		Str("cite_key_format", string(p.CiteKeyFormat)).
		Msg("exporting bibtex")
	return bibtex.Export(papers, cfg), nil
}

// papersForExport resolves explicit paper IDs against the tracker, fetching
// from the API when none of the requested IDs are tracked. Fetched papers
// that don't exist upstream are skipped.
func (s *Service) papersForExport(ctx context.Context, ids []string) ([]domain.Paper, error) {
	papers := s.tracker.GetPapersByIDs(ids)
	if len(papers) > 0 {
		return papers, nil
	}

	for _, id := range ids {
		paper, err := s.fetchFullPaper(ctx, id)
		if err != nil {
			var nf *domain.NotFoundError
			if errors.As(err, &nf) {
				continue
			}
			return nil, err
		}
		papers = append(papers, paper)
		s.tracker.Track(paper, "export_bibtex")
	}
	s.metrics.PapersTracked.Set(float64(s.tracker.Count()))
	return papers, nil
}

// enrichExternalIDs re-fetches papers tracked without their external ID bag,
// which compact list responses omit. Failures keep the original record.
func (s *Service) enrichExternalIDs(ctx context.Context, papers []domain.Paper) []domain.Paper {
	enriched := make([]domain.Paper, 0, len(papers))
	for _, paper := range papers {
		if paper.ExternalIDs != nil || paper.PaperID == "" {
			enriched = append(enriched, paper)
			continue
		}
		full, err := s.fetchFullPaper(ctx, paper.PaperID)
		if err != nil {
			s.logger.Warn().Err(err).Str("paper_id", paper.PaperID).
				Msg("could not enrich paper for export")
			enriched = append(enriched, paper)
			continue
		}
		enriched = append(enriched, full)
	}
	return enriched
}

// fetchFullPaper retrieves a paper with the full field set.
func (s *Service) fetchFullPaper(ctx context.Context, paperID string) (domain.Paper, error) {
	params := url.Values{"fields": {defaultPaperFields}}
	raw, err := s.client.GetWithRetry(ctx, scholar.GraphAPI, "/paper/"+url.PathEscape(paperID), params)
	if err != nil {
		return domain.Paper{}, wrapNotFound(err, "paper", paperID)
	}

	var paper domain.Paper
	if err := json.Unmarshal(raw, &paper); err != nil {
		return domain.Paper{}, fmt.Errorf("decoding paper response: %w", err)
	}
	return paper, nil
}
