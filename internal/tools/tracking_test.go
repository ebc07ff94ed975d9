package tools

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/helixir/scholar-service/internal/bibtex"
	"github.com/helixir/scholar-service/internal/domain"
)

func trackSample(svc *Service) {
	svc.Tracker().TrackMany([]domain.Paper{
		{
			PaperID:     "p1",
			Title:       "Attention Is All You Need",
			Year:        2017,
			Authors:     []domain.Author{{Name: "Ashish Vaswani"}},
			ExternalIDs: &domain.PaperExternalIDs{DOI: "10.1/1"},
		},
		{
			PaperID:     "p2",
			Title:       "Deep Residual Learning",
			Year:        2016,
			Authors:     []domain.Author{{Name: "Kaiming He"}},
			ExternalIDs: &domain.PaperExternalIDs{DOI: "10.1/2"},
		},
	}, "search_papers")
}

func TestListTrackedPapers(t *testing.T) {
	svc := newTestService(t, newFakeClient())
	trackSample(svc)
	svc.Tracker().Track(domain.Paper{PaperID: "p3"}, "get_paper_details")

	t.Run("all papers", func(t *testing.T) {
		papers, err := svc.ListTrackedPapers("")
		require.NoError(t, err)
		assert.Len(t, papers, 3)
	})

	t.Run("filtered by source tool", func(t *testing.T) {
		papers, err := svc.ListTrackedPapers("search_papers")
		require.NoError(t, err)
		assert.Len(t, papers, 2)
	})

	t.Run("unknown tool yields empty list", func(t *testing.T) {
		papers, err := svc.ListTrackedPapers("nope")
		require.NoError(t, err)
		assert.Empty(t, papers)
	})
}

func TestClearTrackedPapers(t *testing.T) {
	svc := newTestService(t, newFakeClient())
	trackSample(svc)

	removed, err := svc.ClearTrackedPapers()
	require.NoError(t, err)
	assert.Equal(t, 2, removed)
	assert.Equal(t, 0, svc.Tracker().Count())

	removed, err = svc.ClearTrackedPapers()
	require.NoError(t, err)
	assert.Equal(t, 0, removed)
}

func TestExportBibTeX(t *testing.T) {
	t.Run("exports all tracked papers", func(t *testing.T) {
		client := newFakeClient()
		svc := newTestService(t, client)
		trackSample(svc)

		out, err := svc.ExportBibTeX(context.Background(), ExportParams{IncludeDOI: true})
		require.NoError(t, err)
		assert.Contains(t, out, "@misc{vaswani2017,")
		assert.Contains(t, out, "@misc{he2016,")
		assert.Contains(t, out, "doi = {10.1/1}")
		assert.Zero(t, client.callCount(), "tracked papers with external IDs need no fetches")
	})

	t.Run("explicit IDs export the tracked subset", func(t *testing.T) {
		svc := newTestService(t, newFakeClient())
		trackSample(svc)

		out, err := svc.ExportBibTeX(context.Background(), ExportParams{PaperIDs: []string{"p2"}})
		require.NoError(t, err)
		assert.Contains(t, out, "he2016")
		assert.NotContains(t, out, "vaswani2017")
	})

	t.Run("untracked IDs are fetched and tracked", func(t *testing.T) {
		client := newFakeClient()
		client.respond("/paper/x1", `{"paperId":"x1","title":"Fetched Paper","year":2021,"authors":[{"name":"Ada Lovelace"}]}`)
		svc := newTestService(t, client)

		out, err := svc.ExportBibTeX(context.Background(), ExportParams{PaperIDs: []string{"x1"}})
		require.NoError(t, err)
		assert.Contains(t, out, "lovelace2021")
		assert.Len(t, svc.Tracker().GetPapersByTool("export_bibtex"), 1)
	})

	t.Run("papers without external IDs are re-fetched for DOI export", func(t *testing.T) {
		client := newFakeClient()
		client.respond("/paper/p9", `{"paperId":"p9","title":"Enriched","year":2019,"authors":[{"name":"Grace Hopper"}],"externalIds":{"DOI":"10.9/9"}}`)
		svc := newTestService(t, client)
		svc.Tracker().Track(domain.Paper{PaperID: "p9", Title: "Enriched", Year: 2019,
			Authors: []domain.Author{{Name: "Grace Hopper"}}}, "search_papers")

		out, err := svc.ExportBibTeX(context.Background(), ExportParams{IncludeDOI: true})
		require.NoError(t, err)
		assert.Contains(t, out, "doi = {10.9/9}")
		assert.Equal(t, 1, client.callCount())
	})

	t.Run("enrichment failure keeps the original record", func(t *testing.T) {
		client := newFakeClient()
		client.fail("/paper/p9", &domain.ServerError{StatusCode: 500})
		svc := newTestService(t, client)
		svc.Tracker().Track(domain.Paper{PaperID: "p9", Title: "Sparse", Year: 2019,
			Authors: []domain.Author{{Name: "Grace Hopper"}}}, "search_papers")

		out, err := svc.ExportBibTeX(context.Background(), ExportParams{IncludeDOI: true})
		require.NoError(t, err)
		assert.Contains(t, out, "hopper2019")
		assert.NotContains(t, out, "doi =")
	})

	t.Run("nothing tracked and no IDs is an error", func(t *testing.T) {
		svc := newTestService(t, newFakeClient())
		_, err := svc.ExportBibTeX(context.Background(), ExportParams{})

		var validationErr *domain.ValidationError
		assert.ErrorAs(t, err, &validationErr)
	})

	t.Run("no resolvable IDs is not found", func(t *testing.T) {
		client := newFakeClient()
		client.fail("/paper/", &domain.NotFoundError{Entity: "paper", ID: "gone"})
		svc := newTestService(t, client)

		_, err := svc.ExportBibTeX(context.Background(), ExportParams{PaperIDs: []string{"gone"}})
		var notFound *domain.NotFoundError
		assert.ErrorAs(t, err, &notFound)
	})

	t.Run("unknown cite key format is rejected", func(t *testing.T) {
		svc := newTestService(t, newFakeClient())
		trackSample(svc)

		_, err := svc.ExportBibTeX(context.Background(), ExportParams{CiteKeyFormat: bibtex.CiteKeyFormat("nope")})
		var validationErr *domain.ValidationError
		assert.ErrorAs(t, err, &validationErr)
	})
}
