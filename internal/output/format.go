// Package output renders agent responses and raw retrieval results for
// the terminal.
package output

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/masonhargrove/medlit/internal/pubmed"
	"github.com/masonhargrove/medlit/internal/response"
)

// Config controls which output mode is active.
type Config struct {
	JSON     bool // Structured JSON
	Human    bool // Rich terminal output with color
	Markdown bool // Raw markdown
	Full     bool // Show full abstract (human mode)
}

// FormatResponse writes an answered question in the selected mode.
func FormatResponse(w io.Writer, r *response.AgentResponse, cfg Config) error {
	switch {
	case cfg.JSON:
		return writeJSON(w, r)
	case cfg.Human:
		return formatResponseHuman(w, r)
	case cfg.Markdown:
		_, err := fmt.Fprintln(w, r.Markdown())
		return err
	default:
		_, err := fmt.Fprintln(w, r.Text())
		return err
	}
}

// FormatSearchResult writes the PMIDs returned by a search.
func FormatSearchResult(w io.Writer, query string, pmids []string, cfg Config) error {
	if cfg.JSON {
		return writeJSON(w, struct {
			Query string   `json:"query"`
			PMIDs []string `json:"pmids"`
		}{Query: query, PMIDs: pmids})
	}
	if cfg.Human {
		return formatSearchHuman(w, query, pmids)
	}

	if len(pmids) == 0 {
		fmt.Fprintln(w, "No results found.")
		return nil
	}
	fmt.Fprintf(w, "Found %d results\n", len(pmids))
	if query != "" {
		fmt.Fprintf(w, "Query: %s\n", query)
	}
	fmt.Fprintln(w)
	for i, id := range pmids {
		fmt.Fprintf(w, "  %d. PMID: %s\n", i+1, id)
	}
	return nil
}

// FormatArticles writes fetched article records.
func FormatArticles(w io.Writer, articles []pubmed.Article, cfg Config) error {
	if cfg.JSON {
		return writeJSON(w, articles)
	}
	if cfg.Human {
		return formatArticlesHuman(w, articles, cfg.Full)
	}
	return formatArticlesPlain(w, articles)
}

func formatArticlesPlain(w io.Writer, articles []pubmed.Article) error {
	if len(articles) == 0 {
		fmt.Fprintln(w, "No articles found.")
		return nil
	}

	for i, a := range articles {
		if i > 0 {
			fmt.Fprintf(w, "\n%s\n\n", strings.Repeat("─", 80))
		}

		fmt.Fprintf(w, "PMID: %s\n", a.PMID)
		fmt.Fprintf(w, "Title: %s\n", a.Title)

		if len(a.Authors) > 0 {
			names := make([]string, len(a.Authors))
			for j, au := range a.Authors {
				names[j] = au.FullName()
			}
			fmt.Fprintf(w, "Authors: %s\n", strings.Join(names, ", "))
		}

		citation := a.Journal
		if a.Year > 0 {
			citation += fmt.Sprintf(" (%d)", a.Year)
		}
		fmt.Fprintf(w, "Journal: %s\n", citation)

		if a.DOI != "" {
			fmt.Fprintf(w, "DOI: %s\n", a.DOI)
		}
		if a.ArticleType != "" {
			fmt.Fprintf(w, "Type: %s\n", a.ArticleType)
		}
		if a.Abstract != "" {
			fmt.Fprintln(w)
			fmt.Fprintln(w, "Abstract:")
			fmt.Fprintln(w, a.Abstract)
		}
		if len(a.MeSHTerms) > 0 {
			fmt.Fprintln(w)
			fmt.Fprintln(w, "MeSH Terms:")
			for _, m := range a.MeSHTerms {
				fmt.Fprintf(w, "  %s\n", m)
			}
		}
	}

	return nil
}

func writeJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	enc.SetEscapeHTML(false)
	return enc.Encode(v)
}
