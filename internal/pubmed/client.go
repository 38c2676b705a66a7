package pubmed

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"github.com/rs/zerolog"

	"github.com/masonhargrove/medlit/internal/ncbi"
	"github.com/masonhargrove/medlit/internal/query"
)

// FetchBatchSize is the maximum number of PMIDs sent per efetch call.
// Fetch chunks larger inputs internally, so callers may pass any number
// of identifiers.
const FetchBatchSize = 20

// Client executes searches and fetches against PubMed through a shared
// rate-limited base client.
type Client struct {
	base *ncbi.BaseClient
	log  zerolog.Logger
}

// NewClient creates a PubMed client over an existing base client. The
// base client's limiter is shared with any other consumer of it.
func NewClient(base *ncbi.BaseClient, log zerolog.Logger) *Client {
	return &Client{base: base, log: log}
}

// Close releases the underlying connection resources.
func (c *Client) Close() {
	c.base.Close()
}

// Search executes an esearch query and returns PMIDs in the order the
// API ranks them (relevance order). An empty built query means there is
// nothing to search and returns no identifiers without a network call.
func (c *Client) Search(ctx context.Context, q query.SearchQuery) ([]string, error) {
	term := q.Build()
	if term == "" {
		c.log.Warn().Msg("empty search query, skipping search")
		return nil, nil
	}

	params := url.Values{}
	params.Set("db", "pubmed")
	params.Set("term", term)
	params.Set("retmax", strconv.Itoa(q.MaxResults))
	params.Set("sort", "relevance")
	params.Set("usehistory", "n")
	params.Set("retmode", "xml")

	for key, vals := range q.Filters.DateParams() {
		params.Set(key, vals[0])
	}

	c.log.Info().Str("query", term).Int("max_results", q.MaxResults).Msg("searching pubmed")

	body, err := c.base.DoGet(ctx, "esearch.fcgi", params)
	if err != nil {
		return nil, fmt.Errorf("search request failed: %w", err)
	}

	pmids := ParseSearchResults(body, c.log)
	c.log.Info().Str("query", term).Int("results", len(pmids)).Msg("search completed")

	return pmids, nil
}

// Fetch retrieves full article records for the given PMIDs, chunking
// into batches of FetchBatchSize. Results are concatenated in input
// order, though the API may omit records (e.g. withdrawn articles), so
// the output is not guaranteed one-to-one with the input.
func (c *Client) Fetch(ctx context.Context, pmids []string) ([]Article, error) {
	if len(pmids) == 0 {
		return nil, nil
	}

	var articles []Article
	for start := 0; start < len(pmids); start += FetchBatchSize {
		end := start + FetchBatchSize
		if end > len(pmids) {
			end = len(pmids)
		}
		batch, err := c.fetchBatch(ctx, pmids[start:end])
		if err != nil {
			return nil, err
		}
		articles = append(articles, batch...)
	}

	c.log.Info().Int("requested", len(pmids)).Int("received", len(articles)).Msg("articles fetched")
	return articles, nil
}

func (c *Client) fetchBatch(ctx context.Context, pmids []string) ([]Article, error) {
	params := url.Values{}
	params.Set("db", "pubmed")
	params.Set("id", strings.Join(pmids, ","))
	params.Set("rettype", "abstract")
	params.Set("retmode", "xml")

	body, err := c.base.DoGet(ctx, "efetch.fcgi", params)
	if err != nil {
		return nil, fmt.Errorf("fetch request failed: %w", err)
	}

	return ParseArticles(body, c.log), nil
}

// SearchAndFetch composes Search and Fetch, short-circuiting to an
// empty result without a fetch call when the search finds nothing.
func (c *Client) SearchAndFetch(ctx context.Context, q query.SearchQuery) ([]Article, error) {
	pmids, err := c.Search(ctx, q)
	if err != nil {
		return nil, err
	}
	if len(pmids) == 0 {
		return nil, nil
	}
	return c.Fetch(ctx, pmids)
}
