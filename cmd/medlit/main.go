// Command medlit answers medical questions from PubMed literature and
// exposes the underlying search and fetch primitives.
package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/masonhargrove/medlit/internal/config"
	"github.com/masonhargrove/medlit/internal/ncbi"
	"github.com/masonhargrove/medlit/internal/observability"
	"github.com/masonhargrove/medlit/internal/output"
	"github.com/masonhargrove/medlit/internal/pubmed"
	"github.com/masonhargrove/medlit/internal/query"
)

var (
	flagJSON     bool
	flagHuman    bool
	flagMarkdown bool
	flagFull     bool
	flagLimit    int
	flagYears    int
	flagAPIKey   string
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "medlit",
	Short: "Medical literature question answering over PubMed",
	Long: `medlit answers natural-language medical questions by searching PubMed,
grading the retrieved evidence, and synthesizing a cited answer.
The search and fetch subcommands expose the raw retrieval layer.`,
}

func init() {
	rootCmd.PersistentFlags().BoolVar(&flagJSON, "json", false, "Output as structured JSON")
	rootCmd.PersistentFlags().BoolVarP(&flagHuman, "human", "H", false, "Rich colorful terminal output")
	rootCmd.PersistentFlags().BoolVar(&flagMarkdown, "markdown", false, "Output raw markdown")
	rootCmd.PersistentFlags().BoolVar(&flagFull, "full", false, "Show full abstract (with --human)")
	rootCmd.PersistentFlags().IntVar(&flagLimit, "limit", 0, "Maximum number of results (default from config)")
	rootCmd.PersistentFlags().IntVar(&flagYears, "years", 0, "Publication date window in years (default from config)")
	rootCmd.PersistentFlags().StringVar(&flagAPIKey, "api-key", "", "NCBI API key (or set MEDLIT_NCBI_API_KEY)")

	rootCmd.AddCommand(searchCmd)
	rootCmd.AddCommand(fetchCmd)
}

func outputCfg() output.Config {
	return output.Config{
		JSON:     flagJSON,
		Human:    flagHuman,
		Markdown: flagMarkdown,
		Full:     flagFull,
	}
}

func loadConfig() (config.Config, error) {
	cfg, err := config.Load()
	if err != nil {
		return config.Config{}, err
	}
	if flagAPIKey != "" {
		cfg.NCBIAPIKey = flagAPIKey
	}
	if flagLimit > 0 {
		cfg.MaxResults = flagLimit
	}
	if flagYears > 0 {
		cfg.YearsBack = flagYears
	}
	return cfg, nil
}

func newLogger(cfg config.Config) zerolog.Logger {
	return observability.NewLogger(observability.LoggingConfig{
		Level:  cfg.LogLevel,
		Format: cfg.LogFormat,
		Output: "stderr",
	})
}

func newPubMedClient(cfg config.Config, log zerolog.Logger) *pubmed.Client {
	var opts []ncbi.Option
	if cfg.NCBIAPIKey != "" {
		opts = append(opts, ncbi.WithAPIKey(cfg.NCBIAPIKey))
	}
	opts = append(opts, ncbi.WithLogger(log))
	return pubmed.NewClient(ncbi.NewBaseClient(opts...), log)
}

// searchCmd exposes the raw PubMed search layer.
var searchCmd = &cobra.Command{
	Use:   "search <query>",
	Short: "Search PubMed and list matching PMIDs",
	Long:  `Search PubMed with a preformatted query and list the matching PMIDs in relevance order.`,
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		log := newLogger(cfg)
		client := newPubMedClient(cfg, log)
		defer client.Close()

		q := query.New(strings.Join(args, " "))
		q.PubMedQuery = strings.Join(args, " ")
		q.Filters = query.Filters{}
		q.MaxResults = cfg.MaxResults

		pmids, err := client.Search(cmd.Context(), q)
		if err != nil {
			return fmt.Errorf("search failed: %w", err)
		}
		return output.FormatSearchResult(os.Stdout, q.Build(), pmids, outputCfg())
	},
}

// fetchCmd exposes the raw PubMed fetch layer.
var fetchCmd = &cobra.Command{
	Use:   "fetch <pmid> [pmid...]",
	Short: "Fetch full article details",
	Long:  `Retrieve full article details including abstract, authors, DOI, and MeSH terms for one or more PMIDs.`,
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		log := newLogger(cfg)
		client := newPubMedClient(cfg, log)
		defer client.Close()

		articles, err := client.Fetch(cmd.Context(), args)
		if err != nil {
			return fmt.Errorf("fetch failed: %w", err)
		}
		return output.FormatArticles(os.Stdout, articles, outputCfg())
	},
}
