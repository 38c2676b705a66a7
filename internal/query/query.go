// Package query models a structured PubMed search intent and its
// serialization into an E-utilities query string.
package query

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
)

const (
	// DefaultMaxResults is the default result cap for a search.
	DefaultMaxResults = 8
	// MaxResultsLimit is the largest result cap a query may request.
	MaxResultsLimit = 50
	// DefaultSpecies restricts results to human studies.
	DefaultSpecies = "humans"
	// DefaultLanguage restricts results to English-language articles.
	DefaultLanguage = "english"

	pubmedDateFormat = "2006/01/02"
)

// Filters narrows a PubMed search by date, article type, species, and
// language. Date bounds are transport-level request parameters, not part
// of the query string; the remaining filters become bracketed query
// tokens.
type Filters struct {
	MinDate      *time.Time `json:"min_date,omitempty"`
	MaxDate      *time.Time `json:"max_date,omitempty"`
	ArticleTypes []string   `json:"article_types,omitempty"`
	Species      string     `json:"species"`
	Language     string     `json:"language"`
}

// DefaultFilters returns filters restricted to human, English-language
// studies with no date bounds.
func DefaultFilters() Filters {
	return Filters{
		Species:  DefaultSpecies,
		Language: DefaultLanguage,
	}
}

// Validate fails fast when the date range is inverted, before any
// network call is attempted.
func (f Filters) Validate() error {
	return validation.ValidateStruct(&f,
		validation.Field(&f.MaxDate, validation.By(func(interface{}) error {
			if f.MinDate != nil && f.MaxDate != nil && f.MinDate.After(*f.MaxDate) {
				return errors.New("min_date must not be after max_date")
			}
			return nil
		})),
	)
}

// QueryTokens returns the bracketed field-qualified filter clauses in
// fixed order: species, language, then each article type.
func (f Filters) QueryTokens() []string {
	var tokens []string
	if f.Species != "" {
		tokens = append(tokens, f.Species+"[filter]")
	}
	if f.Language != "" {
		tokens = append(tokens, f.Language+"[la]")
	}
	for _, at := range f.ArticleTypes {
		tokens = append(tokens, at+"[pt]")
	}
	return tokens
}

// DateParams returns the date bounds as esearch request parameters.
// The datetype marker pins the bounds to the publication date.
func (f Filters) DateParams() url.Values {
	params := url.Values{}
	if f.MinDate != nil {
		params.Set("mindate", f.MinDate.Format(pubmedDateFormat))
	}
	if f.MaxDate != nil {
		params.Set("maxdate", f.MaxDate.Format(pubmedDateFormat))
	}
	if f.MinDate != nil || f.MaxDate != nil {
		params.Set("datetype", "pdat")
	}
	return params
}

// SearchQuery is a structured PubMed search intent. It is created per
// request and never mutated after Build is called.
type SearchQuery struct {
	OriginalQuestion string   `json:"original_question"`
	SearchTerms      []string `json:"search_terms,omitempty"`
	MeSHTerms        []string `json:"mesh_terms,omitempty"`
	PubMedQuery      string   `json:"pubmed_query,omitempty"`
	Filters          Filters  `json:"filters"`
	MaxResults       int      `json:"max_results"`
}

// New returns a SearchQuery for the given question with default filters
// and result cap.
func New(question string) SearchQuery {
	return SearchQuery{
		OriginalQuestion: question,
		Filters:          DefaultFilters(),
		MaxResults:       DefaultMaxResults,
	}
}

// Validate checks the result cap bounds and the owned filters.
func (q SearchQuery) Validate() error {
	if err := validation.ValidateStruct(&q,
		validation.Field(&q.MaxResults, validation.Required, validation.Min(1), validation.Max(MaxResultsLimit)),
	); err != nil {
		return err
	}
	if err := q.Filters.Validate(); err != nil {
		return fmt.Errorf("filters: %w", err)
	}
	return nil
}

// Build serializes the query into a single PubMed query string.
//
// The topic clause is chosen by precedence, first match wins: a
// preformatted query is used verbatim; otherwise MeSH terms are OR-ed
// with a [MeSH] marker; otherwise free search terms are AND-ed. Filter
// tokens follow in fixed order, and all clauses are joined with AND.
// Without a topic clause the result is filter-only, or empty when no
// filters are set either; callers treat an empty string as "nothing to
// search".
func (q SearchQuery) Build() string {
	var parts []string

	switch {
	case q.PubMedQuery != "":
		parts = append(parts, "("+q.PubMedQuery+")")
	case len(q.MeSHTerms) > 0:
		terms := make([]string, len(q.MeSHTerms))
		for i, t := range q.MeSHTerms {
			terms[i] = t + "[MeSH]"
		}
		parts = append(parts, "("+strings.Join(terms, " OR ")+")")
	case len(q.SearchTerms) > 0:
		parts = append(parts, "("+strings.Join(q.SearchTerms, " AND ")+")")
	}

	parts = append(parts, q.Filters.QueryTokens()...)

	return strings.Join(parts, " AND ")
}
