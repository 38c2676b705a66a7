package pubmed

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/masonhargrove/medlit/internal/ncbi"
	"github.com/masonhargrove/medlit/internal/query"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	base := ncbi.NewBaseClient(
		ncbi.WithBaseURL(srv.URL),
		ncbi.WithAPIKey("test-key"),
	)
	return NewClient(base, testLog)
}

func searchXML(pmids ...string) string {
	ids := make([]string, len(pmids))
	for i, p := range pmids {
		ids[i] = "<Id>" + p + "</Id>"
	}
	return fmt.Sprintf(`<eSearchResult><Count>%d</Count><IdList>%s</IdList></eSearchResult>`,
		len(pmids), strings.Join(ids, ""))
}

func TestSearchParams(t *testing.T) {
	var path string
	var params map[string]string
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		path = r.URL.Path
		params = make(map[string]string)
		for k, v := range r.URL.Query() {
			params[k] = v[0]
		}
		fmt.Fprint(w, searchXML("111", "222"))
	})

	min := time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC)
	max := time.Date(2025, 6, 30, 0, 0, 0, 0, time.UTC)

	q := query.New("does aspirin prevent stroke?")
	q.MeSHTerms = []string{"Aspirin", "Stroke"}
	q.MaxResults = 5
	q.Filters.MinDate = &min
	q.Filters.MaxDate = &max

	pmids, err := client.Search(context.Background(), q)
	require.NoError(t, err)
	assert.Equal(t, []string{"111", "222"}, pmids)

	assert.Equal(t, "/esearch.fcgi", path)
	assert.Equal(t, "pubmed", params["db"])
	assert.Equal(t, q.Build(), params["term"])
	assert.Equal(t, "5", params["retmax"])
	assert.Equal(t, "relevance", params["sort"])
	assert.Equal(t, "xml", params["retmode"])
	assert.Equal(t, "2020/01/01", params["mindate"])
	assert.Equal(t, "2025/06/30", params["maxdate"])
	assert.Equal(t, "pdat", params["datetype"])
	assert.Equal(t, "test-key", params["api_key"])
}

func TestSearchEmptyQuerySkipsNetwork(t *testing.T) {
	called := false
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		called = true
	})

	q := query.New("q")
	q.Filters = query.Filters{}

	pmids, err := client.Search(context.Background(), q)
	require.NoError(t, err)
	assert.Empty(t, pmids)
	assert.False(t, called)
}

func TestFetchChunksLargeInputs(t *testing.T) {
	var batches [][]string
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/efetch.fcgi", r.URL.Path)
		ids := strings.Split(r.URL.Query().Get("id"), ",")
		batches = append(batches, ids)

		var body strings.Builder
		body.WriteString("<PubmedArticleSet>")
		for _, id := range ids {
			body.WriteString(articleXML(id, "Title "+id, ""))
		}
		body.WriteString("</PubmedArticleSet>")
		fmt.Fprint(w, body.String())
	})

	pmids := make([]string, 25)
	for i := range pmids {
		pmids[i] = fmt.Sprintf("%d", i+1)
	}

	articles, err := client.Fetch(context.Background(), pmids)
	require.NoError(t, err)
	require.Len(t, articles, 25)

	require.Len(t, batches, 2)
	assert.Len(t, batches[0], FetchBatchSize)
	assert.Len(t, batches[1], 5)

	// Concatenation preserves input order across batches.
	assert.Equal(t, "1", articles[0].PMID)
	assert.Equal(t, "21", articles[20].PMID)
	assert.Equal(t, "25", articles[24].PMID)
}

func TestFetchNoPMIDs(t *testing.T) {
	called := false
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		called = true
	})

	articles, err := client.Fetch(context.Background(), nil)
	require.NoError(t, err)
	assert.Empty(t, articles)
	assert.False(t, called)
}

func TestSearchAndFetchShortCircuits(t *testing.T) {
	var paths []string
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		paths = append(paths, r.URL.Path)
		fmt.Fprint(w, searchXML())
	})

	q := query.New("q")
	q.SearchTerms = []string{"nonexistent condition xyz"}

	articles, err := client.SearchAndFetch(context.Background(), q)
	require.NoError(t, err)
	assert.Empty(t, articles)
	assert.Equal(t, []string{"/esearch.fcgi"}, paths)
}

func TestFetchParams(t *testing.T) {
	var params map[string]string
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		params = make(map[string]string)
		for k, v := range r.URL.Query() {
			params[k] = v[0]
		}
		fmt.Fprint(w, "<PubmedArticleSet>"+articleXML("42", "Some title", "")+"</PubmedArticleSet>")
	})

	articles, err := client.Fetch(context.Background(), []string{"42", "43"})
	require.NoError(t, err)
	require.Len(t, articles, 1)

	assert.Equal(t, "pubmed", params["db"])
	assert.Equal(t, "42,43", params["id"])
	assert.Equal(t, "abstract", params["rettype"])
	assert.Equal(t, "xml", params["retmode"])
}
