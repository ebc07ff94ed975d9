package domain

import (
	"bytes"
	"encoding/json"
)

// FlexString decodes a JSON value that the upstream API serves either as a
// string or as a list of strings. Lists collapse to their first element; an
// empty list or JSON null collapses to the empty string. The DBLP field of
// author external IDs is the known offender.
type FlexString string

// UnmarshalJSON implements json.Unmarshaler.
func (s *FlexString) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		*s = ""
		return nil
	}

	if data[0] == '[' {
		var list []string
		if err := json.Unmarshal(data, &list); err != nil {
			return err
		}
		if len(list) == 0 {
			*s = ""
		} else {
			*s = FlexString(list[0])
		}
		return nil
	}

	var v string
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}
	*s = FlexString(v)
	return nil
}

// MarshalJSON implements json.Marshaler. The normalized form is always a
// plain string.
func (s FlexString) MarshalJSON() ([]byte, error) {
	return json.Marshal(string(s))
}

// String returns the normalized value.
func (s FlexString) String() string { return string(s) }

// AuthorExternalIDs holds external identifier schemes attached to an author
// record. ORCID and DBLP are the join keys used for deduplication.
type AuthorExternalIDs struct {
	ORCID string     `json:"ORCID,omitempty"`
	DBLP  FlexString `json:"DBLP,omitempty"`
}

// Author is an author record as returned by the Semantic Scholar Graph API.
// Authors are immutable once fetched; consolidation combines them into new
// records rather than mutating the sources.
type Author struct {
	AuthorID      string             `json:"authorId,omitempty"`
	Name          string             `json:"name,omitempty"`
	Affiliations  []string           `json:"affiliations,omitempty"`
	PaperCount    int                `json:"paperCount,omitempty"`
	CitationCount int                `json:"citationCount,omitempty"`
	HIndex        int                `json:"hIndex,omitempty"`
	Aliases       []string           `json:"aliases,omitempty"`
	Homepage      string             `json:"homepage,omitempty"`
	ExternalIDs   *AuthorExternalIDs `json:"externalIds,omitempty"`
}

// ORCID returns the author's ORCID, or empty if the record has no external
// ID bag or no ORCID in it.
func (a Author) ORCID() string {
	if a.ExternalIDs == nil {
		return ""
	}
	return a.ExternalIDs.ORCID
}

// DBLP returns the author's normalized DBLP identifier, or empty if absent.
func (a Author) DBLP() string {
	if a.ExternalIDs == nil {
		return ""
	}
	return a.ExternalIDs.DBLP.String()
}

// AuthorWithPapers combines an author record with a page of their
// publications.
type AuthorWithPapers struct {
	Author
	Papers []Paper `json:"papers,omitempty"`
}

// AuthorSearchResult is the search envelope for author queries.
type AuthorSearchResult struct {
	Total  int      `json:"total"`
	Offset int      `json:"offset"`
	Next   int      `json:"next,omitempty"`
	Data   []Author `json:"data"`
}

// AuthorPapersResult is the envelope for an author's paper listing.
type AuthorPapersResult struct {
	Data []Paper `json:"data"`
}
