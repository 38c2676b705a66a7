package pubmed

import (
	"encoding/xml"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// XML structures for PubMed E-utilities responses. Titles and abstract
// segments use flatText because they routinely carry inline markup
// (<i>, <b>, <sub>, <sup> around species names and gene symbols); a
// plain string field would drop the text inside those child elements.

// flatText collects an element's character data at any depth,
// flattening inline markup to plain text.
type flatText string

func (t *flatText) UnmarshalXML(d *xml.Decoder, start xml.StartElement) error {
	var b strings.Builder
	depth := 0
	for {
		tok, err := d.Token()
		if err != nil {
			return err
		}
		switch v := tok.(type) {
		case xml.StartElement:
			depth++
		case xml.CharData:
			b.Write(v)
		case xml.EndElement:
			if depth == 0 {
				*t = flatText(b.String())
				return nil
			}
			depth--
		}
	}
}

type eSearchResult struct {
	XMLName xml.Name `xml:"eSearchResult"`
	Count   string   `xml:"Count"`
	IDList  struct {
		IDs []string `xml:"Id"`
	} `xml:"IdList"`
}

type pubmedArticleSet struct {
	XMLName  xml.Name        `xml:"PubmedArticleSet"`
	Articles []pubmedArticle `xml:"PubmedArticle"`
}

type pubmedArticle struct {
	Citation   medlineCitation `xml:"MedlineCitation"`
	PubmedData pubmedData      `xml:"PubmedData"`
}

type medlineCitation struct {
	PMID            string             `xml:"PMID"`
	Article         xmlArticle         `xml:"Article"`
	MeshHeadingList xmlMeshHeadingList `xml:"MeshHeadingList"`
	KeywordLists    []xmlKeywordList   `xml:"KeywordList"`
}

type xmlArticle struct {
	Journal             xmlJournal     `xml:"Journal"`
	ArticleTitle        flatText       `xml:"ArticleTitle"`
	Abstract            xmlAbstract    `xml:"Abstract"`
	AuthorList          xmlAuthorList  `xml:"AuthorList"`
	ArticleDates        []xmlDate      `xml:"ArticleDate"`
	ELocationIDs        []xmlELocation `xml:"ELocationID"`
	PublicationTypeList xmlPubTypeList `xml:"PublicationTypeList"`
}

type xmlJournal struct {
	JournalIssue    xmlJournalIssue `xml:"JournalIssue"`
	Title           string          `xml:"Title"`
	ISOAbbreviation string          `xml:"ISOAbbreviation"`
}

type xmlJournalIssue struct {
	PubDate xmlDate `xml:"PubDate"`
}

type xmlDate struct {
	Year  string `xml:"Year"`
	Month string `xml:"Month"`
	Day   string `xml:"Day"`
}

type xmlAbstract struct {
	AbstractTexts []xmlAbstractText `xml:"AbstractText"`
}

type xmlAbstractText struct {
	Label string
	Text  string
}

func (at *xmlAbstractText) UnmarshalXML(d *xml.Decoder, start xml.StartElement) error {
	for _, attr := range start.Attr {
		if attr.Name.Local == "Label" {
			at.Label = attr.Value
		}
	}
	var text flatText
	if err := text.UnmarshalXML(d, start); err != nil {
		return err
	}
	at.Text = string(text)
	return nil
}

type xmlAuthorList struct {
	Authors []xmlAuthor `xml:"Author"`
}

type xmlAuthor struct {
	LastName        string               `xml:"LastName"`
	ForeName        string               `xml:"ForeName"`
	Initials        string               `xml:"Initials"`
	AffiliationInfo []xmlAffiliationInfo `xml:"AffiliationInfo"`
}

type xmlAffiliationInfo struct {
	Affiliation string `xml:"Affiliation"`
}

type xmlELocation struct {
	EIdType string `xml:"EIdType,attr"`
	Value   string `xml:",chardata"`
}

type xmlPubTypeList struct {
	Types []string `xml:"PublicationType"`
}

type xmlMeshHeadingList struct {
	MeshHeadings []xmlMeshHeading `xml:"MeshHeading"`
}

type xmlMeshHeading struct {
	Descriptor string `xml:"DescriptorName"`
}

type xmlKeywordList struct {
	Keywords []string `xml:"Keyword"`
}

type pubmedData struct {
	ArticleIDList xmlArticleIDList `xml:"ArticleIdList"`
}

type xmlArticleIDList struct {
	ArticleIDs []xmlArticleID `xml:"ArticleId"`
}

type xmlArticleID struct {
	IDType string `xml:"IdType,attr"`
	Value  string `xml:",chardata"`
}

// articleTypePriority is the fixed priority order for selecting the
// single article type out of the publication-type list. A single
// occurrence of a higher-priority type wins regardless of list order.
var articleTypePriority = []string{
	"Meta-Analysis",
	"Systematic Review",
	"Randomized Controlled Trial",
	"Clinical Trial",
	"Review",
	"Guideline",
	"Practice Guideline",
}

var monthAbbrevs = map[string]time.Month{
	"jan": time.January, "feb": time.February, "mar": time.March,
	"apr": time.April, "may": time.May, "jun": time.June,
	"jul": time.July, "aug": time.August, "sep": time.September,
	"oct": time.October, "nov": time.November, "dec": time.December,
}

// ParseSearchResults extracts the ordered PMID list from an esearch XML
// payload. A malformed document yields an empty list, never an error:
// garbage from the API is treated the same as no results.
func ParseSearchResults(data []byte, log zerolog.Logger) []string {
	var result eSearchResult
	if err := xml.Unmarshal(data, &result); err != nil {
		log.Error().Err(err).Msg("failed to parse search results")
		return nil
	}

	pmids := make([]string, 0, len(result.IDList.IDs))
	for _, id := range result.IDList.IDs {
		if id = strings.TrimSpace(id); id != "" {
			pmids = append(pmids, id)
		}
	}
	return pmids
}

// ParseArticles converts an efetch XML payload into Article records.
// Records missing a PMID or title are dropped; one bad record never
// aborts the rest of the batch. A malformed document yields an empty
// list, never an error.
func ParseArticles(data []byte, log zerolog.Logger) []Article {
	var set pubmedArticleSet
	if err := xml.Unmarshal(data, &set); err != nil {
		log.Error().Err(err).Msg("failed to parse articles XML")
		return nil
	}

	articles := make([]Article, 0, len(set.Articles))
	for _, pa := range set.Articles {
		article, ok := convertArticle(pa)
		if !ok {
			log.Warn().Msg("skipping malformed article record")
			continue
		}
		articles = append(articles, article)
	}
	return articles
}

func convertArticle(pa pubmedArticle) (Article, bool) {
	mc := pa.Citation
	xa := mc.Article

	pmid := strings.TrimSpace(mc.PMID)
	title := strings.TrimSpace(string(xa.ArticleTitle))
	if pmid == "" || title == "" {
		return Article{}, false
	}

	a := Article{
		PMID:          pmid,
		Title:         title,
		Abstract:      buildAbstract(xa.Abstract),
		Journal:       strings.TrimSpace(xa.Journal.Title),
		JournalAbbrev: strings.TrimSpace(xa.Journal.ISOAbbreviation),
		ArticleType:   selectArticleType(xa.PublicationTypeList.Types),
		MeSHTerms:     collectTerms(meshDescriptors(mc.MeshHeadingList)),
		Keywords:      collectTerms(flattenKeywords(mc.KeywordLists)),
	}

	a.PublicationDate, a.Year = resolveDate(xa)
	a.Authors = convertAuthors(xa.AuthorList.Authors)
	a.DOI = resolveDOI(xa.ELocationIDs, pa.PubmedData.ArticleIDList.ArticleIDs)

	return a, true
}

// buildAbstract renders a possibly structured abstract. Labeled parts
// become "Label: text"; parts are joined by blank lines; no abstract
// yields an empty string.
func buildAbstract(abs xmlAbstract) string {
	var parts []string
	for _, at := range abs.AbstractTexts {
		text := strings.TrimSpace(at.Text)
		if text == "" {
			continue
		}
		if at.Label != "" {
			parts = append(parts, at.Label+": "+text)
		} else {
			parts = append(parts, text)
		}
	}
	return strings.Join(parts, "\n\n")
}

// convertAuthors keeps authors in document order, skipping any without
// a last name.
func convertAuthors(raw []xmlAuthor) []Author {
	var authors []Author
	for _, au := range raw {
		last := strings.TrimSpace(au.LastName)
		if last == "" {
			continue
		}
		author := Author{
			LastName:  last,
			FirstName: strings.TrimSpace(au.ForeName),
			Initials:  strings.TrimSpace(au.Initials),
		}
		if len(au.AffiliationInfo) > 0 {
			author.Affiliation = strings.TrimSpace(au.AffiliationInfo[0].Affiliation)
		}
		authors = append(authors, author)
	}
	return authors
}

// resolveDate prefers the electronic publication date (ArticleDate) and
// falls back to the journal issue PubDate when the electronic date is
// absent or lacks a year. A resolved year is kept even when a full
// calendar date cannot be constructed.
func resolveDate(xa xmlArticle) (*time.Time, int) {
	if len(xa.ArticleDates) > 0 {
		if d, year := extractDate(xa.ArticleDates[0]); year != 0 {
			return d, year
		}
	}
	return extractDate(xa.Journal.JournalIssue.PubDate)
}

func extractDate(de xmlDate) (*time.Time, int) {
	year, err := strconv.Atoi(strings.TrimSpace(de.Year))
	if err != nil || year <= 0 {
		return nil, 0
	}

	month := parseMonth(de.Month)

	day := 1
	if v, err := strconv.Atoi(strings.TrimSpace(de.Day)); err == nil && v >= 1 {
		day = v
	}

	d := time.Date(year, month, day, 0, 0, 0, 0, time.UTC)
	if d.Year() != year || d.Month() != month || d.Day() != day {
		// The components do not form a real calendar date (e.g. Feb 30);
		// keep the year only.
		return nil, year
	}
	return &d, year
}

// parseMonth understands a 1-12 numeral or a 3-letter abbreviation,
// case-insensitive. Anything unrecognized defaults to January.
func parseMonth(s string) time.Month {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.January
	}
	if n, err := strconv.Atoi(s); err == nil {
		if n >= 1 && n <= 12 {
			return time.Month(n)
		}
		return time.January
	}
	if len(s) >= 3 {
		if m, ok := monthAbbrevs[strings.ToLower(s[:3])]; ok {
			return m
		}
	}
	return time.January
}

// resolveDOI checks the ELocationID list first, then the article ID
// list; first match wins, absence yields an empty string.
func resolveDOI(elocations []xmlELocation, articleIDs []xmlArticleID) string {
	for _, el := range elocations {
		if el.EIdType == "doi" {
			if v := strings.TrimSpace(el.Value); v != "" {
				return v
			}
		}
	}
	for _, aid := range articleIDs {
		if aid.IDType == "doi" {
			if v := strings.TrimSpace(aid.Value); v != "" {
				return v
			}
		}
	}
	return ""
}

// selectArticleType applies the fixed priority cascade; when none of
// the priority types are listed the first listed type is returned
// verbatim, and an empty list yields an empty string.
func selectArticleType(types []string) string {
	if len(types) == 0 {
		return ""
	}
	listed := make(map[string]bool, len(types))
	var first string
	for _, t := range types {
		t = strings.TrimSpace(t)
		if t == "" {
			continue
		}
		if first == "" {
			first = t
		}
		listed[t] = true
	}
	for _, p := range articleTypePriority {
		if listed[p] {
			return p
		}
	}
	return first
}

func meshDescriptors(list xmlMeshHeadingList) []string {
	terms := make([]string, 0, len(list.MeshHeadings))
	for _, mh := range list.MeshHeadings {
		terms = append(terms, mh.Descriptor)
	}
	return terms
}

func flattenKeywords(lists []xmlKeywordList) []string {
	var kws []string
	for _, kl := range lists {
		kws = append(kws, kl.Keywords...)
	}
	return kws
}

// collectTerms trims, drops empties, and collapses duplicates while
// preserving first-seen order.
func collectTerms(raw []string) []string {
	var terms []string
	seen := make(map[string]bool, len(raw))
	for _, t := range raw {
		t = strings.TrimSpace(t)
		if t == "" || seen[t] {
			continue
		}
		seen[t] = true
		terms = append(terms, t)
	}
	return terms
}
