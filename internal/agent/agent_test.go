package agent

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/masonhargrove/medlit/internal/cache"
	"github.com/masonhargrove/medlit/internal/evidence"
	"github.com/masonhargrove/medlit/internal/llm"
	"github.com/masonhargrove/medlit/internal/ncbi"
	"github.com/masonhargrove/medlit/internal/pubmed"
	"github.com/masonhargrove/medlit/internal/response"
)

const testQuestion = "Does aspirin prevent stroke in adults?"

// plannerJSON is a canned planning completion; synthesisJSON cites the
// two fetched PMIDs inline.
const (
	plannerJSON = `{"search_terms": [], "mesh_terms": ["Aspirin", "Stroke"], "pubmed_query": ""}`

	synthesisJSON = `{"answer": "Aspirin reduces stroke risk [PMID: 111] with consistent findings [PMID: 222].",
 "quality": "high", "limitations": ["Short follow-up in most trials."], "consensus": "Broad agreement."}`
)

// scriptedCompleter answers the planning prompt and the synthesis
// prompt differently, and can be told to fail synthesis.
func scriptedCompleter(failSynthesis bool) llm.Completer {
	return llm.CompleterFunc(func(ctx context.Context, prompt string, maxTokens int) (string, error) {
		if strings.Contains(prompt, "medical librarian") {
			return plannerJSON, nil
		}
		if failSynthesis {
			return "", fmt.Errorf("llm unavailable")
		}
		return synthesisJSON, nil
	})
}

type pubmedFake struct {
	searches    atomic.Int64
	fetches     atomic.Int64
	searchBody  string
	fetchBody   string
	fetchStatus int
}

func (f *pubmedFake) handler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/esearch.fcgi":
			f.searches.Add(1)
			fmt.Fprint(w, f.searchBody)
		case "/efetch.fcgi":
			f.fetches.Add(1)
			if f.fetchStatus != 0 {
				w.WriteHeader(f.fetchStatus)
				return
			}
			fmt.Fprint(w, f.fetchBody)
		default:
			http.NotFound(w, r)
		}
	}
}

func searchBody(pmids ...string) string {
	var b strings.Builder
	b.WriteString("<eSearchResult><IdList>")
	for _, p := range pmids {
		b.WriteString("<Id>" + p + "</Id>")
	}
	b.WriteString("</IdList></eSearchResult>")
	return b.String()
}

func fetchBody(records ...[2]string) string {
	var b strings.Builder
	b.WriteString("<PubmedArticleSet>")
	for _, rec := range records {
		fmt.Fprintf(&b, `<PubmedArticle><MedlineCitation>
  <PMID>%s</PMID>
  <Article>
    <Journal><JournalIssue><PubDate><Year>2023</Year></PubDate></JournalIssue><Title>JAMA</Title></Journal>
    <ArticleTitle>Trial %s</ArticleTitle>
    <AuthorList><Author><LastName>Smith</LastName><Initials>J</Initials></Author></AuthorList>
    <PublicationTypeList><PublicationType>%s</PublicationType></PublicationTypeList>
  </Article>
</MedlineCitation></PubmedArticle>`, rec[0], rec[0], rec[1])
	}
	b.WriteString("</PubmedArticleSet>")
	return b.String()
}

func newTestAgent(t *testing.T, fake *pubmedFake, completer llm.Completer) *Agent {
	t.Helper()
	srv := httptest.NewServer(fake.handler())
	t.Cleanup(srv.Close)

	base := ncbi.NewBaseClient(ncbi.WithBaseURL(srv.URL), ncbi.WithAPIKey("k"))
	client := pubmed.NewClient(base, zerolog.Nop())
	t.Cleanup(client.Close)

	return New(client, completer, cache.NewMemory(0, 0), nil, zerolog.Nop(), Options{})
}

func TestAskSuccess(t *testing.T) {
	fake := &pubmedFake{
		searchBody: searchBody("111", "222", "333"),
		fetchBody: fetchBody(
			[2]string{"111", "Meta-Analysis"},
			[2]string{"222", "Case Reports"},
			[2]string{"333", "Case Reports"},
		),
	}
	a := newTestAgent(t, fake, scriptedCompleter(false))

	resp := a.Ask(context.Background(), testQuestion)

	assert.Equal(t, response.StatusSuccess, resp.Status)
	assert.Equal(t, testQuestion, resp.Question)
	assert.Contains(t, resp.Answer, "[PMID: 111]")
	assert.Equal(t, 3, resp.ArticlesFound)
	assert.Equal(t, 3, resp.ArticlesAnalyzed)
	require.Len(t, resp.Citations, 3)
	assert.Equal(t, "111", resp.Citations[0].PMID)

	require.NotNil(t, resp.Evidence)
	assert.Equal(t, evidence.QualityHigh, resp.Evidence.Quality)
	assert.Equal(t, "Broad agreement.", resp.Evidence.Consensus)
	assert.Equal(t, []string{"Short follow-up in most trials."}, resp.Evidence.Limitations)

	assert.NotEmpty(t, resp.PubMedQuery)
	assert.Contains(t, resp.PubMedQuery, "Aspirin[MeSH]")
	assert.NotEmpty(t, resp.TraceID)
	assert.Equal(t, response.Disclaimer, resp.Disclaimer)
}

func TestAskNoResults(t *testing.T) {
	fake := &pubmedFake{searchBody: searchBody()}
	a := newTestAgent(t, fake, scriptedCompleter(false))

	resp := a.Ask(context.Background(), testQuestion)

	assert.Equal(t, response.StatusNoResults, resp.Status)
	assert.Empty(t, resp.Answer)
	assert.Zero(t, resp.ArticlesFound)
	assert.Equal(t, int64(0), fake.fetches.Load(), "fetch must not run when search finds nothing")
	assert.Equal(t, response.Disclaimer, resp.Disclaimer)
}

func TestAskFetchFailure(t *testing.T) {
	fake := &pubmedFake{
		searchBody:  searchBody("111", "222", "333"),
		fetchStatus: http.StatusBadGateway,
	}
	a := newTestAgent(t, fake, scriptedCompleter(false))

	resp := a.Ask(context.Background(), testQuestion)

	assert.Equal(t, response.StatusError, resp.Status)
	assert.NotEmpty(t, resp.ErrorMessage)
	assert.Equal(t, 3, resp.ArticlesFound)
	assert.Zero(t, resp.ArticlesAnalyzed)
	assert.Empty(t, resp.Citations)
}

func TestAskSynthesisFailureIsPartial(t *testing.T) {
	fake := &pubmedFake{
		searchBody: searchBody("111"),
		fetchBody:  fetchBody([2]string{"111", "Randomized Controlled Trial"}),
	}
	a := newTestAgent(t, fake, scriptedCompleter(true))

	resp := a.Ask(context.Background(), testQuestion)

	assert.Equal(t, response.StatusPartial, resp.Status)
	assert.Empty(t, resp.Answer)
	require.Len(t, resp.Citations, 1)
	require.NotNil(t, resp.Evidence)
	assert.Equal(t, evidence.QualityModerate, resp.Evidence.Quality)
	assert.NotEmpty(t, resp.Evidence.Limitations)
}

func TestAskInvalidQuestion(t *testing.T) {
	fake := &pubmedFake{searchBody: searchBody("111")}
	a := newTestAgent(t, fake, scriptedCompleter(false))

	resp := a.Ask(context.Background(), "short")

	assert.Equal(t, response.StatusError, resp.Status)
	assert.NotEmpty(t, resp.ErrorMessage)
	assert.Equal(t, int64(0), fake.searches.Load(), "invalid questions never reach the network")
}

func TestAskUnknownCitationBecomesLimitation(t *testing.T) {
	completer := llm.CompleterFunc(func(ctx context.Context, prompt string, maxTokens int) (string, error) {
		if strings.Contains(prompt, "medical librarian") {
			return plannerJSON, nil
		}
		return `{"answer": "A fabricated study [PMID: 999] shows benefit.", "quality": "low"}`, nil
	})
	fake := &pubmedFake{
		searchBody: searchBody("111"),
		fetchBody:  fetchBody([2]string{"111", "Review"}),
	}
	a := newTestAgent(t, fake, completer)

	resp := a.Ask(context.Background(), testQuestion)

	assert.Equal(t, response.StatusSuccess, resp.Status)
	require.NotNil(t, resp.Evidence)
	require.NotEmpty(t, resp.Evidence.Limitations)
	assert.Contains(t, resp.Evidence.Limitations[len(resp.Evidence.Limitations)-1], "PMID(s) not present")
}

func TestAskRecoverFromPanic(t *testing.T) {
	completer := llm.CompleterFunc(func(ctx context.Context, prompt string, maxTokens int) (string, error) {
		panic("completer exploded")
	})
	fake := &pubmedFake{searchBody: searchBody("111")}
	a := newTestAgent(t, fake, completer)

	resp := a.Ask(context.Background(), testQuestion)

	assert.Equal(t, response.StatusError, resp.Status)
	assert.Contains(t, resp.ErrorMessage, "internal error")
}

func TestAskUsesRetrievalCache(t *testing.T) {
	fake := &pubmedFake{
		searchBody: searchBody("111"),
		fetchBody:  fetchBody([2]string{"111", "Meta-Analysis"}),
	}
	a := newTestAgent(t, fake, scriptedCompleter(false))

	first := a.Ask(context.Background(), testQuestion)
	second := a.Ask(context.Background(), testQuestion)

	assert.Equal(t, response.StatusSuccess, first.Status)
	assert.Equal(t, response.StatusSuccess, second.Status)
	assert.Equal(t, first.ArticlesFound, second.ArticlesFound)
	assert.Equal(t, int64(1), fake.searches.Load(), "second ask should be served from cache")
	assert.Equal(t, int64(1), fake.fetches.Load())
}

func TestAskRawTextSynthesisFallback(t *testing.T) {
	completer := llm.CompleterFunc(func(ctx context.Context, prompt string, maxTokens int) (string, error) {
		if strings.Contains(prompt, "medical librarian") {
			return plannerJSON, nil
		}
		return "The evidence suggests aspirin helps [PMID: 111].", nil
	})
	fake := &pubmedFake{
		searchBody: searchBody("111"),
		fetchBody:  fetchBody([2]string{"111", "Clinical Trial"}),
	}
	a := newTestAgent(t, fake, completer)

	resp := a.Ask(context.Background(), testQuestion)

	assert.Equal(t, response.StatusSuccess, resp.Status)
	assert.Equal(t, "The evidence suggests aspirin helps [PMID: 111].", resp.Answer)
	require.NotNil(t, resp.Evidence)
	assert.Equal(t, evidence.QualityModerate, resp.Evidence.Quality)
}
