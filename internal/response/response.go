// Package response defines the structured answer returned to callers
// and its textual renderings.
package response

import (
	"fmt"
	"strings"
	"time"

	"github.com/masonhargrove/medlit/internal/evidence"
)

// Status describes the outcome of answering a question.
type Status string

const (
	StatusSuccess   Status = "success"
	StatusNoResults Status = "no_results"
	StatusError     Status = "error"
	StatusPartial   Status = "partial"
)

// Disclaimer is attached to every response.
const Disclaimer = "**Disclaimer**: This information is synthesized from published medical literature " +
	"and is intended for educational purposes only. It should not be used as a substitute " +
	"for professional medical advice, diagnosis, or treatment. Always consult with a " +
	"qualified healthcare provider for medical decisions."

const (
	noResultsMessage = "No relevant articles found for this query."
	genericError     = "An error occurred."
)

// AgentResponse is the terminal artifact of answering one question. It
// owns all formatting needed for display; optional sections are simply
// omitted when absent.
type AgentResponse struct {
	Question         string              `json:"question"`
	Status           Status              `json:"status"`
	Answer           string              `json:"answer,omitempty"`
	Evidence         *evidence.Evidence  `json:"evidence,omitempty"`
	Citations        []evidence.Citation `json:"citations,omitempty"`
	PubMedQuery      string              `json:"pubmed_query,omitempty"`
	ArticlesFound    int                 `json:"articles_found"`
	ArticlesAnalyzed int                 `json:"articles_analyzed"`
	ErrorMessage     string              `json:"error_message,omitempty"`
	Disclaimer       string              `json:"disclaimer,omitempty"`
	Timestamp        time.Time           `json:"timestamp"`
	TraceID          string              `json:"trace_id,omitempty"`
}

// Fail marks the response as errored with the given message.
func (r *AgentResponse) Fail(message string) {
	r.Status = StatusError
	r.ErrorMessage = message
}

// NoResults marks the response as having found no usable articles.
func (r *AgentResponse) NoResults() {
	r.Status = StatusNoResults
}

// Markdown renders the response for markdown display: answer, evidence
// quality with limitations, numbered sources, query/counts footer, and
// the disclaimer.
func (r *AgentResponse) Markdown() string {
	var parts []string

	switch {
	case r.Answer != "":
		parts = append(parts, "## Answer\n\n"+r.Answer)
	case r.Status == StatusNoResults:
		parts = append(parts, "## Answer\n\n"+noResultsMessage)
	case r.Status == StatusError:
		msg := r.ErrorMessage
		if msg == "" {
			msg = genericError
		}
		parts = append(parts, "## Error\n\n"+msg)
	}

	if r.Evidence != nil {
		parts = append(parts, "\n**Evidence Quality**: "+r.Evidence.Quality.Title())

		if len(r.Evidence.Limitations) > 0 {
			parts = append(parts, "\n**Limitations**:")
			for _, l := range r.Evidence.Limitations {
				parts = append(parts, "- "+l)
			}
		}
	}

	if len(r.Citations) > 0 {
		parts = append(parts, "\n## Sources")
		for i, c := range r.Citations {
			parts = append(parts, fmt.Sprintf("%d. %s", i+1, c.Markdown()))
		}
	}

	parts = append(parts, fmt.Sprintf("\n---\n*Query: `%s`*", r.PubMedQuery))
	parts = append(parts, fmt.Sprintf("*Articles found: %d, analyzed: %d*", r.ArticlesFound, r.ArticlesAnalyzed))

	if r.Disclaimer != "" {
		parts = append(parts, "\n"+r.Disclaimer)
	}

	return strings.Join(parts, "\n")
}

// Text renders the response as plain text: answer block, bare source
// URLs, and the disclaimer.
func (r *AgentResponse) Text() string {
	var parts []string

	switch {
	case r.Answer != "":
		parts = append(parts, "ANSWER:\n"+r.Answer)
	case r.Status == StatusNoResults:
		parts = append(parts, "ANSWER:\n"+noResultsMessage)
	case r.Status == StatusError:
		msg := r.ErrorMessage
		if msg == "" {
			msg = genericError
		}
		parts = append(parts, "ERROR:\n"+msg)
	}

	if len(r.Citations) > 0 {
		parts = append(parts, "\nSOURCES:")
		for _, c := range r.Citations {
			parts = append(parts, "- "+c.URL())
		}
	}

	if r.Disclaimer != "" {
		parts = append(parts, "\n"+r.Disclaimer)
	}

	return strings.Join(parts, "\n")
}
