package httpserver

import (
	"encoding/json"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/helixir/scholar-service/internal/authormatch"
	"github.com/helixir/scholar-service/internal/bibtex"
	"github.com/helixir/scholar-service/internal/domain"
	"github.com/helixir/scholar-service/internal/tools"
)

// maxRequestBodySize limits request bodies to 1 MB.
const maxRequestBodySize = 1 << 20

// decodeBody reads and unmarshals a JSON request body, then runs struct
// validation. It writes the error response itself and reports success.
func (s *Server) decodeBody(w http.ResponseWriter, r *http.Request, dst interface{}) bool {
	defer r.Body.Close()
	body, err := io.ReadAll(io.LimitReader(r.Body, maxRequestBodySize))
	if err != nil {
		writeError(w, http.StatusBadRequest, "failed to read request body")
		return false
	}
	if err := json.Unmarshal(body, dst); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON request body")
		return false
	}
	if err := s.validate.Struct(dst); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return false
	}
	return true
}

// queryInt parses an integer query parameter, returning 0 when absent or
// malformed so the tool layer applies its default.
func queryInt(r *http.Request, name string) int {
	v := r.URL.Query().Get(name)
	if v == "" {
		return 0
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0
	}
	return n
}

func queryBool(r *http.Request, name string) bool {
	v, _ := strconv.ParseBool(r.URL.Query().Get(name))
	return v
}

// Paper endpoints

type papersResponse struct {
	Papers  []domain.Paper `json:"papers"`
	Count   int            `json:"count"`
	Message string         `json:"message,omitempty"`
}

func paperList(papers []domain.Paper, emptyMessage string) papersResponse {
	resp := papersResponse{Papers: papers, Count: len(papers)}
	if len(papers) == 0 {
		resp.Papers = []domain.Paper{}
		resp.Message = emptyMessage
	}
	return resp
}

// searchPapers handles GET /papers/search.
func (s *Server) searchPapers(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	params := tools.SearchPapersParams{
		Query:          q.Get("query"),
		Limit:          queryInt(r, "limit"),
		Year:           q.Get("year"),
		OpenAccessOnly: queryBool(r, "open_access"),
	}
	if fos := q.Get("fields_of_study"); fos != "" {
		params.FieldsOfStudy = strings.Split(fos, ",")
	}

	papers, err := s.tools.SearchPapers(r.Context(), params)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, paperList(papers,
		"No papers matched the query. Try broader terms or remove filters."))
}

// getPaperDetails handles GET /papers/{paperID}.
func (s *Server) getPaperDetails(w http.ResponseWriter, r *http.Request) {
	paper, err := s.tools.GetPaperDetails(r.Context(), chi.URLParam(r, "paperID"))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, paper)
}

// getPaperCitations handles GET /papers/{paperID}/citations.
func (s *Server) getPaperCitations(w http.ResponseWriter, r *http.Request) {
	papers, err := s.tools.GetPaperCitations(r.Context(), chi.URLParam(r, "paperID"), queryInt(r, "limit"))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, paperList(papers,
		"No citing papers found. The paper may be recent or rarely cited."))
}

// getPaperReferences handles GET /papers/{paperID}/references.
func (s *Server) getPaperReferences(w http.ResponseWriter, r *http.Request) {
	papers, err := s.tools.GetPaperReferences(r.Context(), chi.URLParam(r, "paperID"), queryInt(r, "limit"))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, paperList(papers,
		"No references found for this paper."))
}

// recommendationsRequest is the JSON body for POST /papers/recommendations.
type recommendationsRequest struct {
	PositivePaperIDs []string `json:"positive_paper_ids" validate:"required,min=1"`
	NegativePaperIDs []string `json:"negative_paper_ids,omitempty"`
	Limit            int      `json:"limit,omitempty" validate:"gte=0,lte=500"`
}

// getRecommendations handles POST /papers/recommendations.
func (s *Server) getRecommendations(w http.ResponseWriter, r *http.Request) {
	var req recommendationsRequest
	if !s.decodeBody(w, r, &req) {
		return
	}

	papers, err := s.tools.GetRecommendations(r.Context(), req.PositivePaperIDs, req.NegativePaperIDs, req.Limit)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, paperList(papers,
		"No recommendations found for the given papers."))
}

// getRelatedPapers handles GET /papers/{paperID}/related.
func (s *Server) getRelatedPapers(w http.ResponseWriter, r *http.Request) {
	papers, err := s.tools.GetRelatedPapers(r.Context(), chi.URLParam(r, "paperID"), queryInt(r, "limit"))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, paperList(papers,
		"No related papers found."))
}

// Author endpoints

type authorsResponse struct {
	Authors []domain.Author `json:"authors"`
	Count   int             `json:"count"`
	Message string          `json:"message,omitempty"`
}

// searchAuthors handles GET /authors/search.
func (s *Server) searchAuthors(w http.ResponseWriter, r *http.Request) {
	authors, err := s.tools.SearchAuthors(r.Context(), r.URL.Query().Get("query"), queryInt(r, "limit"))
	if err != nil {
		writeDomainError(w, err)
		return
	}

	resp := authorsResponse{Authors: authors, Count: len(authors)}
	if len(authors) == 0 {
		resp.Authors = []domain.Author{}
		resp.Message = "No authors matched the query. Try alternative name spellings."
	}
	writeJSON(w, http.StatusOK, resp)
}

// getAuthorDetails handles GET /authors/{authorID}.
func (s *Server) getAuthorDetails(w http.ResponseWriter, r *http.Request) {
	details, err := s.tools.GetAuthorDetails(r.Context(),
		chi.URLParam(r, "authorID"),
		queryBool(r, "include_papers"),
		queryInt(r, "papers_limit"))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, details)
}

// getAuthorTopPapers handles GET /authors/{authorID}/top-papers.
func (s *Server) getAuthorTopPapers(w http.ResponseWriter, r *http.Request) {
	papers, err := s.tools.GetAuthorTopPapers(r.Context(), chi.URLParam(r, "authorID"), queryInt(r, "limit"))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, paperList(papers,
		"No papers found for this author."))
}

// duplicateAuthorsRequest is the JSON body for POST /authors/duplicates.
type duplicateAuthorsRequest struct {
	Names        []string `json:"names" validate:"required,min=1,max=20,dive,min=1"`
	MatchByORCID *bool    `json:"match_by_orcid,omitempty"`
	MatchByDBLP  *bool    `json:"match_by_dblp,omitempty"`
	PerNameLimit int      `json:"per_name_limit,omitempty" validate:"gte=0,lte=100"`
}

type duplicateAuthorsResponse struct {
	Groups  []authormatch.Group `json:"groups"`
	Count   int                 `json:"count"`
	Message string              `json:"message,omitempty"`
}

// findDuplicateAuthors handles POST /authors/duplicates. Both identifier
// schemes are enabled unless explicitly turned off.
func (s *Server) findDuplicateAuthors(w http.ResponseWriter, r *http.Request) {
	var req duplicateAuthorsRequest
	if !s.decodeBody(w, r, &req) {
		return
	}

	byORCID := req.MatchByORCID == nil || *req.MatchByORCID
	byDBLP := req.MatchByDBLP == nil || *req.MatchByDBLP

	groups, err := s.tools.FindDuplicateAuthors(r.Context(), req.Names, byORCID, byDBLP, req.PerNameLimit)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	resp := duplicateAuthorsResponse{Groups: groups, Count: len(groups)}
	if len(groups) == 0 {
		resp.Groups = []authormatch.Group{}
		resp.Message = "No duplicate author records found for the given names."
	}
	writeJSON(w, http.StatusOK, resp)
}

// consolidateAuthorsRequest is the JSON body for POST /authors/consolidate.
type consolidateAuthorsRequest struct {
	AuthorIDs    []string `json:"author_ids" validate:"required,min=2,dive,min=1"`
	ConfirmMerge bool     `json:"confirm_merge,omitempty"`
}

// consolidateAuthors handles POST /authors/consolidate.
func (s *Server) consolidateAuthors(w http.ResponseWriter, r *http.Request) {
	var req consolidateAuthorsRequest
	if !s.decodeBody(w, r, &req) {
		return
	}

	result, err := s.tools.ConsolidateAuthors(r.Context(), req.AuthorIDs, req.ConfirmMerge)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

// Tracking endpoints

// listTrackedPapers handles GET /tracked-papers.
func (s *Server) listTrackedPapers(w http.ResponseWriter, r *http.Request) {
	sourceTool := r.URL.Query().Get("source_tool")
	papers, err := s.tools.ListTrackedPapers(sourceTool)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	emptyMessage := "No papers tracked this session. Search or fetch papers first."
	if sourceTool != "" {
		emptyMessage = "No papers tracked from '" + sourceTool + "'."
	}
	writeJSON(w, http.StatusOK, paperList(papers, emptyMessage))
}

// clearTrackedPapers handles DELETE /tracked-papers.
func (s *Server) clearTrackedPapers(w http.ResponseWriter, r *http.Request) {
	removed, err := s.tools.ClearTrackedPapers()
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]int{"cleared": removed})
}

// exportBibTeXRequest is the JSON body for POST /export/bibtex.
type exportBibTeXRequest struct {
	PaperIDs        []string `json:"paper_ids,omitempty" validate:"max=500"`
	IncludeAbstract bool     `json:"include_abstract,omitempty"`
	IncludeURL      *bool    `json:"include_url,omitempty"`
	IncludeDOI      *bool    `json:"include_doi,omitempty"`
	CiteKeyFormat   string   `json:"cite_key_format,omitempty"`
}

type exportBibTeXResponse struct {
	BibTeX string `json:"bibtex"`
}

// exportBibTeX handles POST /export/bibtex. URL and DOI fields default to
// included.
func (s *Server) exportBibTeX(w http.ResponseWriter, r *http.Request) {
	var req exportBibTeXRequest
	if !s.decodeBody(w, r, &req) {
		return
	}

	params := tools.ExportParams{
		PaperIDs:        req.PaperIDs,
		IncludeAbstract: req.IncludeAbstract,
		IncludeURL:      req.IncludeURL == nil || *req.IncludeURL,
		IncludeDOI:      req.IncludeDOI == nil || *req.IncludeDOI,
		CiteKeyFormat:   bibtex.CiteKeyFormat(req.CiteKeyFormat),
	}

	out, err := s.tools.ExportBibTeX(r.Context(), params)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, exportBibTeXResponse{BibTeX: out})
}
