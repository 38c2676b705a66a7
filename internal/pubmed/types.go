// Package pubmed executes searches and fetches against PubMed and
// parses the resulting XML into structured article records.
package pubmed

import (
	"fmt"
	"strings"
	"time"
)

// ArticleURL is the canonical PubMed article URL template.
const ArticleURL = "https://pubmed.ncbi.nlm.nih.gov/%s"

// Author is one article author, immutable once parsed. LastName is
// always non-empty; authors without one are skipped during parsing.
type Author struct {
	LastName    string `json:"last_name"`
	FirstName   string `json:"first_name,omitempty"`
	Initials    string `json:"initials,omitempty"`
	Affiliation string `json:"affiliation,omitempty"`
}

// FullName returns "Last, First", or just the last name.
func (a Author) FullName() string {
	if a.FirstName != "" {
		return a.LastName + ", " + a.FirstName
	}
	return a.LastName
}

// CitationName returns "Last INITIALS", or just the last name.
func (a Author) CitationName() string {
	if a.Initials != "" {
		return a.LastName + " " + a.Initials
	}
	return a.LastName
}

// Article is one parsed PubMed record. PMID and Title are always
// non-empty; records missing either are dropped by the parser rather
// than returned partially filled. The PMID is opaque text and never
// interpreted numerically. Authors are in authorship order.
type Article struct {
	PMID            string     `json:"pmid"`
	Title           string     `json:"title"`
	Abstract        string     `json:"abstract,omitempty"`
	Authors         []Author   `json:"authors,omitempty"`
	Journal         string     `json:"journal,omitempty"`
	JournalAbbrev   string     `json:"journal_abbrev,omitempty"`
	PublicationDate *time.Time `json:"publication_date,omitempty"`
	Year            int        `json:"year,omitempty"`
	DOI             string     `json:"doi,omitempty"`
	ArticleType     string     `json:"article_type,omitempty"`
	MeSHTerms       []string   `json:"mesh_terms,omitempty"`
	Keywords        []string   `json:"keywords,omitempty"`
}

// URL returns the canonical PubMed URL for this article.
func (a Article) URL() string {
	return fmt.Sprintf(ArticleURL, a.PMID)
}

// FirstAuthor returns the first author's citation name, or "Unknown".
func (a Article) FirstAuthor() string {
	if len(a.Authors) > 0 {
		return a.Authors[0].CitationName()
	}
	return "Unknown"
}

// AuthorString returns the first author, suffixed with " et al." when
// the article has more than one author.
func (a Article) AuthorString() string {
	s := a.FirstAuthor()
	if len(a.Authors) > 1 {
		s += " et al."
	}
	return s
}

// ContextString formats the article as an evidence block for an LLM
// prompt.
func (a Article) ContextString() string {
	lines := []string{
		"**Title**: " + a.Title,
		"**Authors**: " + a.AuthorString(),
		"**Journal**: " + orNA(a.Journal),
	}
	if a.Year > 0 {
		lines = append(lines, fmt.Sprintf("**Year**: %d", a.Year))
	} else {
		lines = append(lines, "**Year**: N/A")
	}
	lines = append(lines, "**PMID**: "+a.PMID)
	if a.ArticleType != "" {
		lines = append(lines, "**Type**: "+a.ArticleType)
	}
	abstract := a.Abstract
	if abstract == "" {
		abstract = "No abstract available."
	}
	lines = append(lines, "\n**Abstract**:\n"+abstract)

	return strings.Join(lines, "\n")
}

func orNA(s string) string {
	if s == "" {
		return "N/A"
	}
	return s
}
