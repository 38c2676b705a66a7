// Package evidence grades fetched articles, builds citations, and
// checks that narrative text only cites articles that were actually
// retrieved.
package evidence

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/masonhargrove/medlit/internal/pubmed"
)

// Quality is the evidence grade derived from the article types present
// in a result set.
type Quality string

const (
	QualityHigh     Quality = "high"
	QualityModerate Quality = "moderate"
	QualityLow      Quality = "low"
	QualityUnknown  Quality = "unknown"
)

// ParseQuality maps a free-form grade string to a Quality, defaulting
// to unknown.
func ParseQuality(s string) Quality {
	switch Quality(strings.ToLower(strings.TrimSpace(s))) {
	case QualityHigh:
		return QualityHigh
	case QualityModerate:
		return QualityModerate
	case QualityLow:
		return QualityLow
	default:
		return QualityUnknown
	}
}

// Title returns the grade with its first letter capitalized, for
// display.
func (q Quality) Title() string {
	s := string(q)
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}

var (
	highMarkers     = []string{"meta-analysis", "systematic review"}
	moderateMarkers = []string{"randomized", "rct", "clinical trial"}
	lowMarkers      = []string{"cohort", "case-control", "case report", "case series", "review"}
)

// QualityFromArticleType infers the grade implied by a single article
// type string.
func QualityFromArticleType(articleType string) Quality {
	t := strings.ToLower(articleType)
	if t == "" {
		return QualityUnknown
	}
	switch {
	case containsAny(t, highMarkers):
		return QualityHigh
	case containsAny(t, moderateMarkers):
		return QualityModerate
	case containsAny(t, lowMarkers):
		return QualityLow
	default:
		return QualityUnknown
	}
}

// Grade classifies a whole result set. This is a priority cascade, not
// a weighted score: one high-tier article upgrades the set regardless
// of how many low-tier articles accompany it. It is deterministic and
// independent of any LLM output, so it doubles as a consistency check
// against an LLM-provided grade.
func Grade(articles []pubmed.Article) Quality {
	grade := QualityUnknown
	for _, a := range articles {
		switch QualityFromArticleType(a.ArticleType) {
		case QualityHigh:
			return QualityHigh
		case QualityModerate:
			grade = QualityModerate
		case QualityLow:
			if grade != QualityModerate {
				grade = QualityLow
			}
		}
	}
	return grade
}

func containsAny(s string, markers []string) bool {
	for _, m := range markers {
		if strings.Contains(s, m) {
			return true
		}
	}
	return false
}

// Citation is a display-oriented reference to one fetched article. It
// always carries the PMID so narrative text can be cross-checked
// against what was actually retrieved.
type Citation struct {
	PMID    string `json:"pmid"`
	Title   string `json:"title"`
	Authors string `json:"authors,omitempty"`
	Year    int    `json:"year,omitempty"`
	Journal string `json:"journal,omitempty"`
}

// FromArticle builds a Citation from a fetched article.
func FromArticle(a pubmed.Article) Citation {
	return Citation{
		PMID:    a.PMID,
		Title:   a.Title,
		Authors: a.AuthorString(),
		Year:    a.Year,
		Journal: a.Journal,
	}
}

// FromArticles builds one Citation per article, preserving input order
// (relevance order from the transport layer).
func FromArticles(articles []pubmed.Article) []Citation {
	citations := make([]Citation, 0, len(articles))
	for _, a := range articles {
		citations = append(citations, FromArticle(a))
	}
	return citations
}

// URL returns the canonical PubMed URL for the cited article.
func (c Citation) URL() string {
	return fmt.Sprintf(pubmed.ArticleURL, c.PMID)
}

// Markdown renders the citation as a markdown link.
func (c Citation) Markdown() string {
	label := c.Authors
	if c.Year > 0 {
		label += fmt.Sprintf(" (%d)", c.Year)
	}
	return fmt.Sprintf("[%s](%s)", label, c.URL())
}

// Inline renders the citation as an inline bracketed reference.
func (c Citation) Inline() string {
	if c.Year > 0 {
		return fmt.Sprintf("[PMID: %s, %d]", c.PMID, c.Year)
	}
	return fmt.Sprintf("[PMID: %s]", c.PMID)
}

// Evidence is the graded evidence summary for one question.
type Evidence struct {
	Summary              string     `json:"summary"`
	Quality              Quality    `json:"quality"`
	SupportingCitations  []Citation `json:"supporting_citations,omitempty"`
	ConflictingCitations []Citation `json:"conflicting_citations,omitempty"`
	Limitations          []string   `json:"limitations,omitempty"`
	Consensus            string     `json:"consensus,omitempty"`
}

// TotalCitations returns the combined count of supporting and
// conflicting citations.
func (e Evidence) TotalCitations() int {
	return len(e.SupportingCitations) + len(e.ConflictingCitations)
}

// HasConflicts reports whether any conflicting citations exist.
func (e Evidence) HasConflicts() bool {
	return len(e.ConflictingCitations) > 0
}

var pmidRefPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)pmid[:\s]*([0-9]+)`),
	regexp.MustCompile(`pubmed\.ncbi\.nlm\.nih\.gov/([0-9]+)`),
}

// ConsistencyReport is the result of checking narrative text against
// the citation list built from actually-fetched articles.
type ConsistencyReport struct {
	Referenced []string `json:"referenced,omitempty"`
	Unknown    []string `json:"unknown,omitempty"`
}

// Passed reports whether every referenced identifier was actually
// fetched.
func (r ConsistencyReport) Passed() bool {
	return len(r.Unknown) == 0
}

// CheckConsistency extracts every PMID referenced in the narrative and
// flags those absent from the citation list. This is the guard against
// presenting fabricated sources; a violation is a reportable condition,
// not a failure.
func CheckConsistency(narrative string, citations []Citation) ConsistencyReport {
	known := make(map[string]bool, len(citations))
	for _, c := range citations {
		known[c.PMID] = true
	}

	var report ConsistencyReport
	seen := make(map[string]bool)
	for _, pat := range pmidRefPatterns {
		for _, m := range pat.FindAllStringSubmatch(narrative, -1) {
			pmid := m[1]
			if seen[pmid] {
				continue
			}
			seen[pmid] = true
			report.Referenced = append(report.Referenced, pmid)
			if !known[pmid] {
				report.Unknown = append(report.Unknown, pmid)
			}
		}
	}
	return report
}
