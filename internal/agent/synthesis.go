package agent

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/masonhargrove/medlit/internal/pubmed"
)

const synthesisPromptTemplate = `You are a careful medical evidence reviewer. Answer the question using only the articles below. Cite sources inline as [PMID: <pmid>] and do not invent citations.

Question: %s

Articles:
%s

Respond with a single JSON object and nothing else:
{"answer": "narrative answer with inline [PMID: ...] citations", "quality": "high|moderate|low|unknown", "limitations": ["limitation", ...], "consensus": "brief statement of agreement or disagreement across the articles"}`

// synthesisResult is the structured answer requested from the model.
type synthesisResult struct {
	Answer      string   `json:"answer"`
	Quality     string   `json:"quality"`
	Limitations []string `json:"limitations"`
	Consensus   string   `json:"consensus"`
}

// synthesize asks the model for a grounded answer over the fetched
// articles. The raw completion is returned alongside the parsed form so
// callers can fall back to it when the JSON contract is broken.
func (a *Agent) synthesize(ctx context.Context, question string, articles []pubmed.Article) (synthesisResult, error) {
	blocks := make([]string, 0, len(articles))
	for _, art := range articles {
		blocks = append(blocks, art.ContextString())
	}
	prompt := fmt.Sprintf(synthesisPromptTemplate, question, strings.Join(blocks, "\n\n"))

	out, err := a.llm.Complete(ctx, prompt, a.opts.MaxTokens)
	if err != nil {
		return synthesisResult{}, err
	}
	return parseSynthesis(out), nil
}

// parseSynthesis decodes the model's JSON answer, tolerating wrapping
// prose. A completion with no usable JSON becomes the answer verbatim.
func parseSynthesis(text string) synthesisResult {
	raw, ok := extractJSON(text)
	if ok {
		var res synthesisResult
		if err := json.Unmarshal(raw, &res); err == nil && strings.TrimSpace(res.Answer) != "" {
			res.Answer = strings.TrimSpace(res.Answer)
			return res
		}
	}
	return synthesisResult{Answer: strings.TrimSpace(text)}
}
