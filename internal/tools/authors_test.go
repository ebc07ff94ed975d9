package tools

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/helixir/scholar-service/internal/authormatch"
	"github.com/helixir/scholar-service/internal/domain"
)

func TestSearchAuthors(t *testing.T) {
	t.Run("returns matches", func(t *testing.T) {
		client := newFakeClient()
		client.respond("/author/search", `{"total":1,"data":[{"authorId":"a1","name":"John Smith","citationCount":100}]}`)
		svc := newTestService(t, client)

		authors, err := svc.SearchAuthors(context.Background(), "John Smith", 10)
		require.NoError(t, err)
		require.Len(t, authors, 1)
		assert.Equal(t, "a1", authors[0].AuthorID)
	})

	t.Run("rejects blank query", func(t *testing.T) {
		svc := newTestService(t, newFakeClient())
		_, err := svc.SearchAuthors(context.Background(), "  ", 10)

		var validationErr *domain.ValidationError
		assert.ErrorAs(t, err, &validationErr)
	})
}

func TestGetAuthorDetails(t *testing.T) {
	t.Run("profile only", func(t *testing.T) {
		client := newFakeClient()
		client.respond("/author/a1", `{"authorId":"a1","name":"John Smith","hIndex":20}`)
		svc := newTestService(t, client)

		details, err := svc.GetAuthorDetails(context.Background(), "a1", false, 0)
		require.NoError(t, err)
		assert.Equal(t, "John Smith", details.Name)
		assert.Empty(t, details.Papers)
		assert.Equal(t, 1, client.callCount())
	})

	t.Run("with papers tracks them", func(t *testing.T) {
		client := newFakeClient()
		client.respond("/author/a1", `{"authorId":"a1","name":"John Smith"}`)
		client.respond("/author/a1/papers", `{"data":[{"paperId":"p1"},{"paperId":"p2"}]}`)
		svc := newTestService(t, client)

		details, err := svc.GetAuthorDetails(context.Background(), "a1", true, 10)
		require.NoError(t, err)
		assert.Len(t, details.Papers, 2)
		assert.Len(t, svc.Tracker().GetPapersByTool("get_author_details"), 2)
	})
}

func TestGetAuthorTopPapers(t *testing.T) {
	client := newFakeClient()
	client.respond("/author/a1/papers", `{"data":[
		{"paperId":"p1","citationCount":10},
		{"paperId":"p2","citationCount":500},
		{"paperId":"p3","citationCount":50}
	]}`)
	svc := newTestService(t, client)

	papers, err := svc.GetAuthorTopPapers(context.Background(), "a1", 2)
	require.NoError(t, err)
	require.Len(t, papers, 2)
	assert.Equal(t, "p2", papers[0].PaperID)
	assert.Equal(t, "p3", papers[1].PaperID)
}

func TestFindDuplicateAuthors(t *testing.T) {
	t.Run("groups shared identifiers across name searches", func(t *testing.T) {
		client := newFakeClient()
		client.respond("/author/search", `{"data":[
			{"authorId":"a1","name":"J. Smith","citationCount":100,"externalIds":{"ORCID":"0000-0001"}},
			{"authorId":"a2","name":"John Smith","citationCount":500,"externalIds":{"ORCID":"0000-0001"}},
			{"authorId":"a3","name":"Jane Doe","citationCount":10}
		]}`)
		svc := newTestService(t, client)

		groups, err := svc.FindDuplicateAuthors(context.Background(), []string{"John Smith"}, true, true, 20)
		require.NoError(t, err)
		require.Len(t, groups, 1)
		assert.Equal(t, "a2", groups[0].Primary.AuthorID)
		assert.Equal(t, []string{"same_orcid:0000-0001"}, groups[0].MatchReasons)
	})

	t.Run("deduplicates authors returned by multiple searches", func(t *testing.T) {
		client := newFakeClient()
		client.respond("/author/search", `{"data":[
			{"authorId":"a1","name":"J. Smith","externalIds":{"DBLP":["smith:j"]}},
			{"authorId":"a2","name":"John Smith","externalIds":{"DBLP":"smith:j"}}
		]}`)
		svc := newTestService(t, client)

		// Both names hit the same fake response; a1/a2 appear twice but must
		// be grouped once.
		groups, err := svc.FindDuplicateAuthors(context.Background(), []string{"J. Smith", "John Smith"}, true, true, 20)
		require.NoError(t, err)
		require.Len(t, groups, 1)
		assert.Len(t, groups[0].Candidates, 1)
	})

	t.Run("requires a name and a scheme", func(t *testing.T) {
		svc := newTestService(t, newFakeClient())

		_, err := svc.FindDuplicateAuthors(context.Background(), nil, true, true, 0)
		var validationErr *domain.ValidationError
		assert.ErrorAs(t, err, &validationErr)

		_, err = svc.FindDuplicateAuthors(context.Background(), []string{"x"}, false, false, 0)
		assert.ErrorAs(t, err, &validationErr)
	})

	t.Run("fails only when every search fails", func(t *testing.T) {
		client := newFakeClient()
		client.fail("/author/search", &domain.ServerError{StatusCode: 500})
		svc := newTestService(t, client)

		_, err := svc.FindDuplicateAuthors(context.Background(), []string{"a", "b"}, true, true, 0)
		require.Error(t, err)
		assert.ErrorIs(t, err, domain.ErrConnectivity)
	})
}

func TestConsolidateAuthors(t *testing.T) {
	t.Run("fetches records and merges them", func(t *testing.T) {
		client := newFakeClient()
		client.respond("/author/a1", `{"authorId":"a1","name":"John Smith","citationCount":1000,"paperCount":30,"externalIds":{"ORCID":"0000-0001"}}`)
		client.respond("/author/a2", `{"authorId":"a2","name":"J. Smith","citationCount":500,"paperCount":10,"externalIds":{"ORCID":"0000-0001"}}`)
		svc := newTestService(t, client)

		result, err := svc.ConsolidateAuthors(context.Background(), []string{"a1", "a2"}, true)
		require.NoError(t, err)
		assert.Equal(t, authormatch.MatchORCID, result.MatchType)
		assert.Equal(t, "a1", result.MergedAuthor.AuthorID)
		assert.Equal(t, 1500, result.MergedAuthor.CitationCount)
		assert.Equal(t, 40, result.MergedAuthor.PaperCount)
		assert.False(t, result.IsPreview)
	})

	t.Run("missing author aborts with its ID", func(t *testing.T) {
		client := newFakeClient()
		client.respond("/author/a1", `{"authorId":"a1"}`)
		client.fail("/author/gone", &domain.NotFoundError{Entity: "author", ID: "/author/gone"})
		svc := newTestService(t, client)

		_, err := svc.ConsolidateAuthors(context.Background(), []string{"a1", "gone"}, false)
		var notFound *domain.NotFoundError
		require.ErrorAs(t, err, &notFound)
		assert.Equal(t, "gone", notFound.ID)
	})

	t.Run("requires two IDs", func(t *testing.T) {
		svc := newTestService(t, newFakeClient())
		_, err := svc.ConsolidateAuthors(context.Background(), []string{"a1"}, false)

		var validationErr *domain.ValidationError
		assert.ErrorAs(t, err, &validationErr)
	})
}
