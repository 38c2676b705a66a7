// Package agent wires the PubMed pipeline end to end: question
// validation, query planning, retrieval, evidence grading, and LLM
// synthesis. Ask never returns an error; failures become responses
// with an error status so callers always have something renderable.
package agent

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/masonhargrove/medlit/internal/cache"
	"github.com/masonhargrove/medlit/internal/evidence"
	"github.com/masonhargrove/medlit/internal/llm"
	"github.com/masonhargrove/medlit/internal/observability"
	"github.com/masonhargrove/medlit/internal/pubmed"
	"github.com/masonhargrove/medlit/internal/query"
	"github.com/masonhargrove/medlit/internal/response"
	"github.com/masonhargrove/medlit/internal/validate"
)

const (
	DefaultMaxResults = query.DefaultMaxResults
	DefaultYearsBack  = 5
	DefaultMaxTokens  = 4096
)

// Options tune the retrieval window and synthesis budget.
type Options struct {
	MaxResults int
	YearsBack  int
	MaxTokens  int
}

// Agent answers medical questions from PubMed literature.
type Agent struct {
	pubmed  *pubmed.Client
	llm     llm.Completer
	cache   cache.Cache
	metrics *observability.Tracker
	log     zerolog.Logger
	opts    Options
}

// New builds an Agent. The cache and metrics tracker are optional;
// a nil cache disables retrieval caching.
func New(pm *pubmed.Client, completer llm.Completer, c cache.Cache, metrics *observability.Tracker, log zerolog.Logger, opts Options) *Agent {
	if opts.MaxResults <= 0 {
		opts.MaxResults = DefaultMaxResults
	}
	if opts.YearsBack < 0 {
		opts.YearsBack = 0
	}
	if opts.MaxTokens <= 0 {
		opts.MaxTokens = DefaultMaxTokens
	}
	if metrics == nil {
		metrics = observability.NewTracker()
	}
	return &Agent{
		pubmed:  pm,
		llm:     completer,
		cache:   c,
		metrics: metrics,
		log:     log,
		opts:    opts,
	}
}

// retrieval is the cached unit of PubMed work for one built query.
type retrieval struct {
	Found    int              `json:"found"`
	Articles []pubmed.Article `json:"articles"`
}

// Ask answers a natural-language medical question. The returned
// response is always non-nil and always carries the disclaimer; its
// Status field distinguishes success, no results, partial answers, and
// errors. The return is named so the recover path below still hands
// back the in-progress response.
func (a *Agent) Ask(ctx context.Context, question string) (resp *response.AgentResponse) {
	resp = &response.AgentResponse{
		Question:   question,
		Status:     response.StatusSuccess,
		Disclaimer: response.Disclaimer,
		Timestamp:  time.Now().UTC(),
		TraceID:    uuid.NewString(),
	}
	log := a.log.With().Str("trace_id", resp.TraceID).Logger()

	done := a.metrics.StartQuery()
	defer func() {
		if r := recover(); r != nil {
			log.Error().Interface("panic", r).Msg("recovered during ask")
			resp.Fail(fmt.Sprintf("internal error: %v", r))
		}
		done(string(resp.Status))
	}()

	cleaned, err := validate.Question(question)
	if err != nil {
		resp.Fail(err.Error())
		return resp
	}

	q := a.planQuery(ctx, cleaned)
	if err := q.Validate(); err != nil {
		resp.Fail(err.Error())
		return resp
	}

	built := q.Build()
	resp.PubMedQuery = built
	if built == "" {
		resp.NoResults()
		return resp
	}
	log.Info().Str("query", built).Int("max_results", q.MaxResults).Msg("planned pubmed query")

	ret, ok := a.retrieve(ctx, log, q, built, resp)
	if !ok {
		return resp
	}
	resp.ArticlesFound = ret.Found
	resp.ArticlesAnalyzed = len(ret.Articles)
	if len(ret.Articles) == 0 {
		resp.NoResults()
		return resp
	}

	citations := evidence.FromArticles(ret.Articles)
	grade := evidence.Grade(ret.Articles)
	resp.Citations = citations

	span := a.metrics.ToolSpan("synthesize")
	synth, err := a.synthesize(ctx, cleaned, ret.Articles)
	span()
	if err != nil {
		log.Warn().Err(err).Msg("synthesis failed")
		resp.Evidence = &evidence.Evidence{
			Quality:             grade,
			SupportingCitations: citations,
			Limitations:         []string{"Automated synthesis was unavailable; citations and evidence grade are provided without a narrative answer."},
		}
		resp.Status = response.StatusPartial
		resp.ErrorMessage = err.Error()
		return resp
	}

	limitations := synth.Limitations
	if claimed := evidence.ParseQuality(synth.Quality); claimed != grade {
		log.Debug().
			Str("claimed", string(claimed)).
			Str("graded", string(grade)).
			Msg("model quality claim differs from deterministic grade")
	}

	report := evidence.CheckConsistency(synth.Answer, citations)
	if !report.Passed() {
		log.Warn().Strs("unknown_pmids", report.Unknown).Msg("answer cites articles outside the fetched set")
		limitations = append(limitations, fmt.Sprintf(
			"The answer references %d PMID(s) not present in the retrieved articles.", len(report.Unknown)))
	}

	resp.Answer = synth.Answer
	resp.Evidence = &evidence.Evidence{
		Summary:             synth.Answer,
		Quality:             grade,
		SupportingCitations: citations,
		Limitations:         limitations,
		Consensus:           synth.Consensus,
	}
	return resp
}

// retrieve runs search+fetch for the built query, consulting the cache
// first. On failure it marks the response and returns ok=false.
func (a *Agent) retrieve(ctx context.Context, log zerolog.Logger, q query.SearchQuery, built string, resp *response.AgentResponse) (retrieval, bool) {
	key := a.retrievalKey(q, built)
	if ret, ok := a.cachedRetrieval(ctx, log, key); ok {
		log.Debug().Str("key", key).Msg("retrieval cache hit")
		return ret, true
	}

	span := a.metrics.ToolSpan("search")
	pmids, err := a.pubmed.Search(ctx, q)
	span()
	if err != nil {
		log.Error().Err(err).Msg("pubmed search failed")
		resp.Fail("PubMed search failed: " + err.Error())
		return retrieval{}, false
	}
	if len(pmids) == 0 {
		resp.NoResults()
		return retrieval{}, false
	}

	span = a.metrics.ToolSpan("fetch")
	articles, err := a.pubmed.Fetch(ctx, pmids)
	span()
	if err != nil {
		log.Error().Err(err).Msg("pubmed fetch failed")
		resp.ArticlesFound = len(pmids)
		resp.Fail("PubMed fetch failed: " + err.Error())
		return retrieval{}, false
	}

	ret := retrieval{Found: len(pmids), Articles: articles}
	a.storeRetrieval(ctx, log, key, ret)
	return ret, true
}

func (a *Agent) retrievalKey(q query.SearchQuery, built string) string {
	parts := []string{built, strconv.Itoa(q.MaxResults)}
	if q.Filters.MinDate != nil {
		parts = append(parts, q.Filters.MinDate.Format("2006/01/02"))
	}
	if q.Filters.MaxDate != nil {
		parts = append(parts, q.Filters.MaxDate.Format("2006/01/02"))
	}
	return cache.Key("retrieval", parts...)
}

func (a *Agent) cachedRetrieval(ctx context.Context, log zerolog.Logger, key string) (retrieval, bool) {
	if a.cache == nil {
		return retrieval{}, false
	}
	data, ok, err := a.cache.Get(ctx, key)
	if err != nil {
		log.Warn().Err(err).Msg("retrieval cache read failed")
		return retrieval{}, false
	}
	if !ok {
		return retrieval{}, false
	}
	var ret retrieval
	if err := json.Unmarshal(data, &ret); err != nil {
		log.Warn().Err(err).Msg("discarding undecodable cache entry")
		return retrieval{}, false
	}
	return ret, true
}

func (a *Agent) storeRetrieval(ctx context.Context, log zerolog.Logger, key string, ret retrieval) {
	if a.cache == nil {
		return
	}
	data, err := json.Marshal(ret)
	if err != nil {
		return
	}
	if err := a.cache.Set(ctx, key, data); err != nil {
		log.Warn().Err(err).Msg("retrieval cache write failed")
	}
}
