package agent

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/masonhargrove/medlit/internal/query"
)

// meshMappings translates common lay phrasing to MeSH vocabulary for
// the deterministic planning fallback.
var meshMappings = map[string]string{
	"heart attack":        "myocardial infarction",
	"high blood pressure": "hypertension",
	"diabetes":            "diabetes mellitus",
	"cancer":              "neoplasms",
	"stroke":              "cerebrovascular accident",
	"blood thinner":       "anticoagulants",
}

// questionPrefixes are interrogative lead-ins stripped before a
// question is used as a search topic.
var questionPrefixes = []string{
	"does ", "do ", "is ", "are ", "can ", "should ", "what is ", "what are ",
}

const plannerPromptTemplate = `You are a medical librarian converting a question into a PubMed search.

Question: %s

Respond with a single JSON object and nothing else:
{"search_terms": ["term", ...], "mesh_terms": ["MeSH heading", ...], "pubmed_query": "optional preformatted PubMed query"}

Prefer MeSH headings when the question maps cleanly onto controlled vocabulary.
Use pubmed_query only for boolean expressions that need explicit field tags.`

// plannedQuery is the structured output requested from the model.
type plannedQuery struct {
	SearchTerms []string `json:"search_terms"`
	MeSHTerms   []string `json:"mesh_terms"`
	PubMedQuery string   `json:"pubmed_query"`
}

// planQuery builds the SearchQuery for a question: LLM-extracted terms
// when the model cooperates, a deterministic fallback otherwise. Either
// way the filters and result cap come from the agent's configuration.
func (a *Agent) planQuery(ctx context.Context, question string) query.SearchQuery {
	q := query.New(question)
	q.MaxResults = a.opts.MaxResults

	if a.opts.YearsBack > 0 {
		now := time.Now().UTC()
		min := now.AddDate(-a.opts.YearsBack, 0, 0)
		q.Filters.MinDate = &min
		q.Filters.MaxDate = &now
	}

	planned, err := a.planWithLLM(ctx, question)
	if err != nil {
		a.log.Debug().Err(err).Msg("query planning fell back to deterministic terms")
		return fallbackPlan(q)
	}

	if planned.empty() {
		return fallbackPlan(q)
	}
	q.SearchTerms = planned.SearchTerms
	q.MeSHTerms = planned.MeSHTerms
	q.PubMedQuery = planned.PubMedQuery
	return q
}

// empty reports whether the plan contributes no topic clause at all.
func (p plannedQuery) empty() bool {
	return len(p.SearchTerms) == 0 && len(p.MeSHTerms) == 0 && strings.TrimSpace(p.PubMedQuery) == ""
}

func (a *Agent) planWithLLM(ctx context.Context, question string) (plannedQuery, error) {
	out, err := a.llm.Complete(ctx, fmt.Sprintf(plannerPromptTemplate, question), 512)
	if err != nil {
		return plannedQuery{}, err
	}

	raw, ok := extractJSON(out)
	if !ok {
		return plannedQuery{}, fmt.Errorf("no JSON object in planner output")
	}

	var planned plannedQuery
	if err := json.Unmarshal(raw, &planned); err != nil {
		return plannedQuery{}, fmt.Errorf("decoding planner output: %w", err)
	}
	return planned, nil
}

// fallbackPlan derives a topic clause from the question itself: mapped
// MeSH terms when a known lay phrase appears, otherwise the cleaned
// question text as a preformatted query.
func fallbackPlan(q query.SearchQuery) query.SearchQuery {
	cleaned := cleanQuestion(q.OriginalQuestion)
	lower := strings.ToLower(cleaned)

	var mesh []string
	for phrase, term := range meshMappings {
		if strings.Contains(lower, phrase) {
			mesh = append(mesh, term)
		}
	}
	// Map iteration order is random; keep the built query stable so
	// cache keys do not churn between runs.
	sort.Strings(mesh)

	q.SearchTerms = nil
	q.PubMedQuery = ""
	if len(mesh) > 0 {
		q.MeSHTerms = mesh
	} else {
		q.MeSHTerms = nil
		q.PubMedQuery = cleaned
	}
	return q
}

// cleanQuestion strips interrogative lead-ins and trailing punctuation
// so the question reads as a search topic.
func cleanQuestion(question string) string {
	q := strings.TrimSpace(question)
	lower := strings.ToLower(q)
	for _, prefix := range questionPrefixes {
		if strings.HasPrefix(lower, prefix) {
			q = q[len(prefix):]
			break
		}
	}
	q = strings.TrimSuffix(strings.TrimSpace(q), "?")
	return strings.Join(strings.Fields(q), " ")
}

// extractJSON returns the outermost JSON object embedded in text, which
// tolerates models that wrap their JSON in prose or code fences.
func extractJSON(text string) ([]byte, bool) {
	start := strings.IndexByte(text, '{')
	end := strings.LastIndexByte(text, '}')
	if start < 0 || end <= start {
		return nil, false
	}
	return []byte(text[start : end+1]), true
}
