package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/masonhargrove/medlit/internal/agent"
	"github.com/masonhargrove/medlit/internal/cache"
	"github.com/masonhargrove/medlit/internal/config"
	"github.com/masonhargrove/medlit/internal/llm"
	"github.com/masonhargrove/medlit/internal/observability"
	"github.com/masonhargrove/medlit/internal/output"
)

var askFlagModel string

func init() {
	askCmd.Flags().StringVar(&askFlagModel, "model", "", "LLM model (default from config)")

	rootCmd.AddCommand(askCmd)
}

var askCmd = &cobra.Command{
	Use:   "ask <question>",
	Short: "Answer a medical question from PubMed literature",
	Long: `Answer a natural-language medical question:

1. Plans a PubMed query for the question
2. Searches and fetches the most relevant articles
3. Grades the evidence by study design
4. Synthesizes a cited answer via the LLM

Examples:
  medlit ask "Does metformin reduce cardiovascular mortality in type 2 diabetes?"
  medlit ask --human "Are statins effective for primary prevention in adults over 75?"

Environment variables:
  MEDLIT_ANTHROPIC_API_KEY - API key for the LLM (or ANTHROPIC_API_KEY)
  MEDLIT_NCBI_API_KEY      - NCBI API key (or NCBI_API_KEY), raises the rate limit`,
	Args: cobra.MinimumNArgs(1),
	RunE: runAsk,
}

func runAsk(cmd *cobra.Command, args []string) error {
	question := strings.Join(args, " ")

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if askFlagModel != "" {
		cfg.Model = askFlagModel
	}
	log := newLogger(cfg)

	completer, err := llm.NewAnthropicClient(cfg.AnthropicAPIKey, llm.WithModel(cfg.Model))
	if err != nil {
		return fmt.Errorf("llm setup: %w", err)
	}

	store, closeStore, err := newCache(cfg)
	if err != nil {
		return fmt.Errorf("cache setup: %w", err)
	}
	defer closeStore()

	client := newPubMedClient(cfg, log)
	defer client.Close()

	metrics := observability.NewTracker()
	a := agent.New(client, completer, store, metrics, log, agent.Options{
		MaxResults: cfg.MaxResults,
		YearsBack:  cfg.YearsBack,
		MaxTokens:  cfg.MaxTokens,
	})

	resp := a.Ask(cmd.Context(), question)
	return output.FormatResponse(os.Stdout, resp, outputCfg())
}

func newCache(cfg config.Config) (cache.Cache, func(), error) {
	switch cfg.CacheBackend {
	case config.CacheRedis:
		r, err := cache.NewRedis(cfg.RedisURL, cfg.CacheTTL)
		if err != nil {
			return nil, nil, err
		}
		return r, func() { _ = r.Close() }, nil
	default:
		return cache.NewMemory(cache.DefaultMemorySize, cfg.CacheTTL), func() {}, nil
	}
}
