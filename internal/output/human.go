package output

import (
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"

	"github.com/masonhargrove/medlit/internal/evidence"
	"github.com/masonhargrove/medlit/internal/pubmed"
	"github.com/masonhargrove/medlit/internal/response"
)

// --- Styles ---

var (
	cyan       = lipgloss.NewStyle().Foreground(lipgloss.Color("6"))
	bold       = lipgloss.NewStyle().Bold(true)
	dim        = lipgloss.NewStyle().Faint(true)
	green      = lipgloss.NewStyle().Foreground(lipgloss.Color("2"))
	yellow     = lipgloss.NewStyle().Foreground(lipgloss.Color("3"))
	red        = lipgloss.NewStyle().Foreground(lipgloss.Color("1"))
	labelStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("4"))
	boxStyle   = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("6")).
			Padding(0, 1)
)

// truncate cuts a string to maxLen characters, appending "…" if truncated.
func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen-1] + "…"
}

func qualityStyle(q evidence.Quality) lipgloss.Style {
	switch q {
	case evidence.QualityHigh:
		return green
	case evidence.QualityModerate:
		return yellow
	case evidence.QualityLow:
		return red
	default:
		return dim
	}
}

// --- Answer ---

func formatResponseHuman(w io.Writer, r *response.AgentResponse) error {
	switch r.Status {
	case response.StatusNoResults:
		fmt.Fprintln(w, "🔬 No relevant articles found for this query.")
		if r.PubMedQuery != "" {
			fmt.Fprintf(w, "   Query: %s\n", dim.Render(r.PubMedQuery))
		}
		return nil
	case response.StatusError:
		msg := r.ErrorMessage
		if msg == "" {
			msg = "An error occurred."
		}
		fmt.Fprintf(w, "%s %s\n", red.Render("✗"), msg)
		return nil
	}

	header := bold.Render("🔬 " + r.Question)
	fmt.Fprintln(w, boxStyle.Render(header))
	fmt.Fprintln(w)

	if r.Answer != "" {
		fmt.Fprintln(w, wordWrap(r.Answer, 96))
		fmt.Fprintln(w)
	}

	if r.Status == response.StatusPartial && r.ErrorMessage != "" {
		fmt.Fprintf(w, "%s %s\n\n", yellow.Render("⚠"), r.ErrorMessage)
	}

	if r.Evidence != nil {
		style := qualityStyle(r.Evidence.Quality)
		fmt.Fprintf(w, "%s %s\n", labelStyle.Render("Evidence quality:"), style.Render(r.Evidence.Quality.Title()))

		if r.Evidence.Consensus != "" {
			fmt.Fprintf(w, "%s %s\n", labelStyle.Render("Consensus:"), r.Evidence.Consensus)
		}
		if len(r.Evidence.Limitations) > 0 {
			fmt.Fprintf(w, "%s\n", labelStyle.Render("Limitations:"))
			for _, l := range r.Evidence.Limitations {
				fmt.Fprintf(w, "  - %s\n", l)
			}
		}
		fmt.Fprintln(w)
	}

	if len(r.Citations) > 0 {
		fmt.Fprintln(w, labelStyle.Render("Sources:"))

		var rows [][]string
		for i, c := range r.Citations {
			year := ""
			if c.Year > 0 {
				year = fmt.Sprintf("%d", c.Year)
			}
			rows = append(rows, []string{
				fmt.Sprintf("%d", i+1),
				cyan.Render(c.PMID),
				truncate(c.Title, 60),
				year,
			})
		}

		t := table.New().
			Headers("#", "PMID", "Title", "Year").
			Rows(rows...).
			Border(lipgloss.NormalBorder()).
			BorderStyle(lipgloss.NewStyle().Foreground(lipgloss.Color("8"))).
			StyleFunc(func(row, col int) lipgloss.Style {
				if row == table.HeaderRow {
					return lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("4"))
				}
				return lipgloss.NewStyle()
			})

		fmt.Fprintln(w, t.Render())
	}

	fmt.Fprintf(w, "%s\n", dim.Render(fmt.Sprintf("Query: %s · found %d · analyzed %d",
		r.PubMedQuery, r.ArticlesFound, r.ArticlesAnalyzed)))

	if r.Disclaimer != "" {
		fmt.Fprintln(w)
		fmt.Fprintln(w, dim.Render(wordWrap(strings.ReplaceAll(r.Disclaimer, "**", ""), 96)))
	}

	return nil
}

// --- Search ---

func formatSearchHuman(w io.Writer, query string, pmids []string) error {
	if len(pmids) == 0 {
		fmt.Fprintln(w, "🔬 No results found.")
		return nil
	}

	fmt.Fprintln(w, bold.Render(fmt.Sprintf("🔬 Found %d results", len(pmids))))
	if query != "" {
		fmt.Fprintf(w, "   Query: %s\n", dim.Render(query))
	}
	fmt.Fprintln(w)

	var rows [][]string
	for i, id := range pmids {
		rows = append(rows, []string{fmt.Sprintf("%d", i+1), cyan.Render(id)})
	}

	t := table.New().
		Headers("#", "PMID").
		Rows(rows...).
		Border(lipgloss.NormalBorder()).
		BorderStyle(lipgloss.NewStyle().Foreground(lipgloss.Color("8"))).
		StyleFunc(func(row, col int) lipgloss.Style {
			if row == table.HeaderRow {
				return lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("4"))
			}
			return lipgloss.NewStyle()
		})

	fmt.Fprintln(w, t.Render())
	return nil
}

// --- Articles ---

func formatArticlesHuman(w io.Writer, articles []pubmed.Article, full bool) error {
	if len(articles) == 0 {
		fmt.Fprintln(w, "No articles found.")
		return nil
	}

	for i, a := range articles {
		if i > 0 {
			fmt.Fprintln(w)
		}

		titleLine := bold.Render(a.Title)
		meta := cyan.Render("PMID: " + a.PMID)
		if a.Year > 0 {
			meta += dim.Render(" · ") + fmt.Sprintf("%d", a.Year)
		}
		fmt.Fprintln(w, boxStyle.Render(titleLine+"\n"+meta))
		fmt.Fprintln(w)

		if len(a.Authors) > 0 {
			names := make([]string, len(a.Authors))
			for j, au := range a.Authors {
				names[j] = au.FullName()
			}
			fmt.Fprintf(w, "  %s %s\n", labelStyle.Render("Authors:"), strings.Join(names, ", "))
		}

		if a.Journal != "" {
			fmt.Fprintf(w, "  %s %s\n", labelStyle.Render("Journal:"), a.Journal)
		}
		if a.DOI != "" {
			fmt.Fprintf(w, "  %s %s\n", labelStyle.Render("DOI:"), yellow.Render(a.DOI))
		}
		if a.ArticleType != "" {
			fmt.Fprintf(w, "  %s %s\n", labelStyle.Render("Type:"), a.ArticleType)
		}
		if len(a.MeSHTerms) > 0 {
			fmt.Fprintf(w, "  %s %s\n", labelStyle.Render("MeSH:"), strings.Join(a.MeSHTerms, ", "))
		}

		if a.Abstract != "" {
			fmt.Fprintln(w)
			fmt.Fprintf(w, "  %s\n", labelStyle.Render("Abstract:"))
			abstract := a.Abstract
			if !full && len(abstract) > 500 {
				abstract = abstract[:497] + "..."
				fmt.Fprintf(w, "  %s\n", abstract)
				fmt.Fprintf(w, "  %s\n", dim.Render("[use --full for complete abstract]"))
			} else {
				fmt.Fprintf(w, "  %s\n", abstract)
			}
		}
	}

	return nil
}

// wordWrap wraps text at the given width, breaking at spaces.
func wordWrap(text string, width int) string {
	words := strings.Fields(text)
	if len(words) == 0 {
		return ""
	}

	var lines []string
	current := words[0]

	for _, word := range words[1:] {
		if len(current)+1+len(word) > width {
			lines = append(lines, current)
			current = word
		} else {
			current += " " + word
		}
	}
	lines = append(lines, current)
	return strings.Join(lines, "\n")
}
