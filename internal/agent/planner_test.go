package agent

import (
	"context"
	"fmt"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/masonhargrove/medlit/internal/llm"
	"github.com/masonhargrove/medlit/internal/query"
)

func plannerAgent(completer llm.Completer) *Agent {
	return New(nil, completer, nil, nil, zerolog.Nop(), Options{YearsBack: 5})
}

func TestPlanQueryUsesLLMOutput(t *testing.T) {
	completer := llm.CompleterFunc(func(ctx context.Context, prompt string, maxTokens int) (string, error) {
		return "Here is the plan:\n" + plannerJSON, nil
	})
	a := plannerAgent(completer)

	q := a.planQuery(context.Background(), testQuestion)

	assert.Equal(t, []string{"Aspirin", "Stroke"}, q.MeSHTerms)
	assert.Contains(t, q.Build(), "Aspirin[MeSH] OR Stroke[MeSH]")
	require.NotNil(t, q.Filters.MinDate)
	require.NotNil(t, q.Filters.MaxDate)
	assert.True(t, q.Filters.MinDate.Before(*q.Filters.MaxDate))
}

func TestPlanQueryFallsBackOnLLMError(t *testing.T) {
	completer := llm.CompleterFunc(func(ctx context.Context, prompt string, maxTokens int) (string, error) {
		return "", fmt.Errorf("llm down")
	})
	a := plannerAgent(completer)

	q := a.planQuery(context.Background(), "Does a heart attack raise long-term mortality?")

	// The lay phrase maps to its MeSH heading.
	assert.Equal(t, []string{"myocardial infarction"}, q.MeSHTerms)
	assert.NotEmpty(t, q.Build())
}

func TestPlanQueryFallsBackOnGarbageOutput(t *testing.T) {
	completer := llm.CompleterFunc(func(ctx context.Context, prompt string, maxTokens int) (string, error) {
		return "I cannot produce JSON today, sorry.", nil
	})
	a := plannerAgent(completer)

	q := a.planQuery(context.Background(), "Is metformin effective for weight loss?")

	// No mapped phrase, so the cleaned question becomes the query.
	assert.Empty(t, q.MeSHTerms)
	assert.Equal(t, "metformin effective for weight loss", q.PubMedQuery)
}

func TestPlanQueryFallsBackOnEmptyPlan(t *testing.T) {
	completer := llm.CompleterFunc(func(ctx context.Context, prompt string, maxTokens int) (string, error) {
		return `{"search_terms": [], "mesh_terms": [], "pubmed_query": ""}`, nil
	})
	a := plannerAgent(completer)

	q := a.planQuery(context.Background(), "Does high blood pressure damage kidneys?")

	assert.Equal(t, []string{"hypertension"}, q.MeSHTerms)
}

func TestCleanQuestion(t *testing.T) {
	cases := map[string]string{
		"Does aspirin prevent stroke?":      "aspirin prevent stroke",
		"  Is metformin safe in elderly? ":  "metformin safe in elderly",
		"What are the risks of statins?":    "the risks of statins",
		"aspirin   dosing    in children":   "aspirin dosing in children",
		"Can blood thinners cause bruises?": "blood thinners cause bruises",
	}
	for in, want := range cases {
		assert.Equal(t, want, cleanQuestion(in), "input %q", in)
	}
}

func TestExtractJSON(t *testing.T) {
	raw, ok := extractJSON("```json\n{\"a\": 1}\n```")
	require.True(t, ok)
	assert.JSONEq(t, `{"a": 1}`, string(raw))

	_, ok = extractJSON("no braces here")
	assert.False(t, ok)
}

func TestFallbackPlanMultipleMappings(t *testing.T) {
	q := query.New("Do blood thinners help after a heart attack?")
	planned := fallbackPlan(q)

	assert.ElementsMatch(t, []string{"myocardial infarction", "anticoagulants"}, planned.MeSHTerms)
	assert.Empty(t, planned.PubMedQuery)
}

func TestParseSynthesisLenient(t *testing.T) {
	res := parseSynthesis("Sure! Here you go:\n" + synthesisJSON)
	assert.Contains(t, res.Answer, "[PMID: 111]")
	assert.Equal(t, "high", res.Quality)
	assert.Equal(t, "Broad agreement.", res.Consensus)

	res = parseSynthesis("Just plain prose without structure.")
	assert.Equal(t, "Just plain prose without structure.", res.Answer)
	assert.Empty(t, res.Quality)

	// Valid JSON with an empty answer falls back to the raw text.
	res = parseSynthesis(`{"answer": ""}`)
	assert.Equal(t, `{"answer": ""}`, res.Answer)
}
