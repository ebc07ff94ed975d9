// Package domain defines the data records exchanged with the Semantic
// Scholar APIs and the error taxonomy shared across the service.
package domain

// PaperExternalIDs holds external identifier schemes attached to a paper.
type PaperExternalIDs struct {
	DOI      string `json:"DOI,omitempty"`
	ArXiv    string `json:"ArXiv,omitempty"`
	PubMed   string `json:"PubMed,omitempty"`
	CorpusID int64  `json:"CorpusId,omitempty"`
}

// OpenAccessPDF describes an open access PDF attached to a paper.
type OpenAccessPDF struct {
	URL    string `json:"url,omitempty"`
	Status string `json:"status,omitempty"`
}

// Journal describes the journal a paper appeared in.
type Journal struct {
	Name   string `json:"name,omitempty"`
	Volume string `json:"volume,omitempty"`
	Pages  string `json:"pages,omitempty"`
}

// TLDR is a machine-generated one-line summary of a paper.
type TLDR struct {
	Model string `json:"model,omitempty"`
	Text  string `json:"text,omitempty"`
}

// Paper is a paper record as returned by the Semantic Scholar Graph API.
type Paper struct {
	PaperID          string            `json:"paperId,omitempty"`
	Title            string            `json:"title,omitempty"`
	Abstract         string            `json:"abstract,omitempty"`
	Year             int               `json:"year,omitempty"`
	PublicationDate  string            `json:"publicationDate,omitempty"`
	Venue            string            `json:"venue,omitempty"`
	Journal          *Journal          `json:"journal,omitempty"`
	CitationCount    int               `json:"citationCount,omitempty"`
	ReferenceCount   int               `json:"referenceCount,omitempty"`
	Authors          []Author          `json:"authors,omitempty"`
	PublicationTypes []string          `json:"publicationTypes,omitempty"`
	OpenAccessPDF    *OpenAccessPDF    `json:"openAccessPdf,omitempty"`
	FieldsOfStudy    []string          `json:"fieldsOfStudy,omitempty"`
	ExternalIDs      *PaperExternalIDs `json:"externalIds,omitempty"`
	TLDR             *TLDR             `json:"tldr,omitempty"`
}

// PaperSearchResult is the search envelope for paper queries.
type PaperSearchResult struct {
	Total  int     `json:"total"`
	Offset int     `json:"offset"`
	Next   int     `json:"next,omitempty"`
	Data   []Paper `json:"data"`
}

// CitingPaper wraps a paper that cites the queried paper.
type CitingPaper struct {
	CitingPaper Paper `json:"citingPaper"`
}

// ReferencePaper wraps a paper cited by the queried paper.
type ReferencePaper struct {
	CitedPaper Paper `json:"citedPaper"`
}

// CitationsResult is the envelope for citation listings.
type CitationsResult struct {
	Offset int           `json:"offset"`
	Next   int           `json:"next,omitempty"`
	Data   []CitingPaper `json:"data"`
}

// ReferencesResult is the envelope for reference listings.
type ReferencesResult struct {
	Offset int              `json:"offset"`
	Next   int              `json:"next,omitempty"`
	Data   []ReferencePaper `json:"data"`
}

// RecommendationsResult is the envelope returned by the Recommendations API.
type RecommendationsResult struct {
	RecommendedPapers []Paper `json:"recommendedPapers"`
}
