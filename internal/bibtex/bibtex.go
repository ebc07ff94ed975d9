// Package bibtex renders paper records as BibTeX entries for use in LaTeX
// documents and citation managers.
package bibtex

import (
	"fmt"
	"strings"
	"unicode"

	"github.com/helixir/scholar-service/internal/domain"
)

// CiteKeyFormat selects how citation keys are derived.
type CiteKeyFormat string

const (
	// KeyAuthorYear produces keys like "vaswani2017".
	KeyAuthorYear CiteKeyFormat = "author_year"
	// KeyAuthorYearTitle produces keys like "vaswani2017attention".
	KeyAuthorYearTitle CiteKeyFormat = "author_year_title"
	// KeyPaperID uses the upstream paper identifier verbatim.
	KeyPaperID CiteKeyFormat = "paper_id"
)

// FieldConfig toggles the optional BibTeX fields.
type FieldConfig struct {
	IncludeAbstract bool
	IncludeURL      bool
	IncludeDOI      bool
}

// ExportConfig controls a BibTeX export.
type ExportConfig struct {
	Fields        FieldConfig
	CiteKeyFormat CiteKeyFormat
}

// DefaultExportConfig matches the common case: URL and DOI included,
// abstracts omitted, author-year keys.
func DefaultExportConfig() ExportConfig {
	return ExportConfig{
		Fields:        FieldConfig{IncludeURL: true, IncludeDOI: true},
		CiteKeyFormat: KeyAuthorYear,
	}
}

// ValidKeyFormat reports whether f is a recognized cite key format.
func ValidKeyFormat(f CiteKeyFormat) bool {
	switch f {
	case KeyAuthorYear, KeyAuthorYearTitle, KeyPaperID:
		return true
	}
	return false
}

// Export renders the papers as a BibTeX document. Entries appear in input
// order; colliding citation keys are disambiguated with letter suffixes
// ("vaswani2017", "vaswani2017a", ...).
func Export(papers []domain.Paper, cfg ExportConfig) string {
	if cfg.CiteKeyFormat == "" {
		cfg.CiteKeyFormat = KeyAuthorYear
	}

	used := make(map[string]int)
	var sb strings.Builder
	for i, paper := range papers {
		key := citeKey(paper, cfg.CiteKeyFormat)
		if n := used[key]; n > 0 {
			key = fmt.Sprintf("%s%c", key, 'a'+n-1)
		}
		used[citeKey(paper, cfg.CiteKeyFormat)]++

		if i > 0 {
			sb.WriteString("\n")
		}
		writeEntry(&sb, paper, key, cfg.Fields)
	}
	return sb.String()
}

// writeEntry renders one BibTeX entry.
func writeEntry(sb *strings.Builder, paper domain.Paper, key string, fields FieldConfig) {
	entryType, venueField := classify(paper)

	fmt.Fprintf(sb, "@%s{%s,\n", entryType, key)

	pairs := make([][2]string, 0, 10)
	add := func(name, value string) {
		if value != "" {
			pairs = append(pairs, [2]string{name, escape(value)})
		}
	}

	add("title", paper.Title)
	if len(paper.Authors) > 0 {
		names := make([]string, 0, len(paper.Authors))
		for _, a := range paper.Authors {
			if a.Name != "" {
				names = append(names, a.Name)
			}
		}
		add("author", strings.Join(names, " and "))
	}
	if paper.Year > 0 {
		add("year", fmt.Sprintf("%d", paper.Year))
	}
	if venue := venueName(paper); venue != "" {
		add(venueField, venue)
	}
	if paper.Journal != nil {
		add("volume", paper.Journal.Volume)
		add("pages", paper.Journal.Pages)
	}
	if fields.IncludeDOI && paper.ExternalIDs != nil {
		add("doi", paper.ExternalIDs.DOI)
	}
	if fields.IncludeURL {
		add("url", paperURL(paper))
	}
	if fields.IncludeAbstract {
		add("abstract", paper.Abstract)
	}

	for i, p := range pairs {
		fmt.Fprintf(sb, "  %s = {%s}", p[0], p[1])
		if i < len(pairs)-1 {
			sb.WriteString(",")
		}
		sb.WriteString("\n")
	}
	sb.WriteString("}\n")
}

// classify picks the entry type and the field name its venue goes under.
func classify(paper domain.Paper) (entryType, venueField string) {
	for _, t := range paper.PublicationTypes {
		switch t {
		case "JournalArticle", "Review":
			return "article", "journal"
		case "Conference":
			return "inproceedings", "booktitle"
		case "Book":
			return "book", "publisher"
		}
	}
	if paper.Journal != nil && paper.Journal.Name != "" {
		return "article", "journal"
	}
	return "misc", "howpublished"
}

// venueName prefers the journal name over the venue string.
func venueName(paper domain.Paper) string {
	if paper.Journal != nil && paper.Journal.Name != "" {
		return paper.Journal.Name
	}
	return paper.Venue
}

// paperURL prefers the open access PDF, then the DOI resolver, then the
// Semantic Scholar landing page.
func paperURL(paper domain.Paper) string {
	if paper.OpenAccessPDF != nil && paper.OpenAccessPDF.URL != "" {
		return paper.OpenAccessPDF.URL
	}
	if paper.ExternalIDs != nil && paper.ExternalIDs.DOI != "" {
		return "https://doi.org/" + paper.ExternalIDs.DOI
	}
	if paper.PaperID != "" {
		return "https://www.semanticscholar.org/paper/" + paper.PaperID
	}
	return ""
}

// citeKey derives the citation key for one paper under the given format.
// Papers missing the needed metadata fall back to the paper ID, then to
// "unknown".
func citeKey(paper domain.Paper, format CiteKeyFormat) string {
	if format == KeyPaperID {
		if paper.PaperID != "" {
			return paper.PaperID
		}
		return "unknown"
	}

	surname := firstAuthorSurname(paper)
	if surname == "" || paper.Year == 0 {
		if paper.PaperID != "" {
			return paper.PaperID
		}
		return "unknown"
	}

	key := fmt.Sprintf("%s%d", surname, paper.Year)
	if format == KeyAuthorYearTitle {
		if word := firstTitleWord(paper.Title); word != "" {
			key += word
		}
	}
	return key
}

// firstAuthorSurname lowercases the last token of the first author's name,
// stripped to letters and digits.
func firstAuthorSurname(paper domain.Paper) string {
	if len(paper.Authors) == 0 {
		return ""
	}
	tokens := strings.Fields(paper.Authors[0].Name)
	if len(tokens) == 0 {
		return ""
	}
	return slug(tokens[len(tokens)-1])
}

// titleStopwords are skipped when deriving the title word of a citation key.
var titleStopwords = map[string]bool{
	"a": true, "an": true, "the": true, "on": true, "of": true,
	"for": true, "and": true, "in": true, "to": true, "with": true,
}

// firstTitleWord returns the first significant word of the title, lowercased.
func firstTitleWord(title string) string {
	for _, token := range strings.Fields(title) {
		word := slug(token)
		if word == "" || titleStopwords[word] {
			continue
		}
		return word
	}
	return ""
}

// slug lowercases s and strips everything but letters and digits.
func slug(s string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(s) {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// bibtexEscapes maps characters with special meaning in TeX to escaped forms.
// Braces are dropped rather than escaped, since stray braces in upstream
// titles are markup noise more often than literals.
var bibtexEscapes = strings.NewReplacer(
	"{", "",
	"}", "",
	"\\", "",
	"&", "\\&",
	"%", "\\%",
	"$", "\\$",
	"#", "\\#",
	"_", "\\_",
)

func escape(s string) string {
	return bibtexEscapes.Replace(s)
}
