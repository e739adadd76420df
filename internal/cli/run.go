package cli

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/mzaremba/quotient/internal/corpus"
	"github.com/mzaremba/quotient/internal/model"
	"github.com/mzaremba/quotient/internal/pipeline"
)

var (
	question     string
	llmProvider  string
	llmModel     string
	concurrency  int
	runTimeout   time.Duration
	docTimeout   time.Duration
	outputDir    string
	graphPath    string
	noCache      bool
	sequential   bool
	invalidCodes string
	taxonomyMode string
	speakerMode  string
	entityMode   string
	taxonomySeed string
	speakerSeed  string
	entitySeed   string
)

// runCmd represents the run command
var runCmd = &cobra.Command{
	Use:   "run <corpus-dir>",
	Short: "Run the full four-phase pipeline over a transcript corpus",
	Long: `Run discovers the code taxonomy, speaker schema and entity schema from
the full corpus, applies them to every document with bounded concurrency,
aggregates the results, and persists the quote graph.

A failed document is quarantined and reported; the rest of the corpus
still completes. An empty taxonomy aborts the run before any document
work is dispatched.

Example:
  quotient run ./interviews --question "How do teams adopt AI tools?"
  quotient run ./interviews --concurrency 5 --llm-provider anthropic
  quotient run ./interviews --taxonomy-mode mixed --taxonomy-seed codes.yaml`,
	Args: cobra.ExactArgs(1),
	RunE: runRun,
}

func init() {
	rootCmd.AddCommand(runCmd)

	runCmd.Flags().StringVar(&question, "question", "", "analytic question guiding discovery")
	runCmd.Flags().StringVar(&llmProvider, "llm-provider", "openai", "extraction backend (openai, anthropic, ollama)")
	runCmd.Flags().StringVar(&llmModel, "llm-model", "", "model name (backend default if empty)")
	runCmd.Flags().IntVar(&concurrency, "concurrency", 3, "max concurrent document jobs")
	runCmd.Flags().DurationVar(&runTimeout, "timeout", 60*time.Minute, "overall run timeout")
	runCmd.Flags().DurationVar(&docTimeout, "document-timeout", 5*time.Minute, "per-document timeout")
	runCmd.Flags().StringVar(&outputDir, "out", "./quotient-out", "artifact output directory")
	runCmd.Flags().StringVar(&graphPath, "db", "quotient.db", "graph database path")
	runCmd.Flags().BoolVar(&noCache, "no-cache", false, "disable the extraction response cache")
	runCmd.Flags().BoolVar(&sequential, "sequential-discovery", false, "run discovery phases one at a time")
	runCmd.Flags().StringVar(&invalidCodes, "invalid-codes", "drop", "policy for unknown code ids (drop, fuzzy)")

	runCmd.Flags().StringVar(&taxonomyMode, "taxonomy-mode", "open", "taxonomy discovery mode (open, closed, mixed)")
	runCmd.Flags().StringVar(&speakerMode, "speaker-mode", "open", "speaker schema discovery mode")
	runCmd.Flags().StringVar(&entityMode, "entity-mode", "open", "entity schema discovery mode")
	runCmd.Flags().StringVar(&taxonomySeed, "taxonomy-seed", "", "seed file for closed/mixed taxonomy mode")
	runCmd.Flags().StringVar(&speakerSeed, "speaker-seed", "", "seed file for closed/mixed speaker mode")
	runCmd.Flags().StringVar(&entitySeed, "entity-seed", "", "seed file for closed/mixed entity mode")
}

// buildConfig assembles the runtime configuration from flags and env
func buildConfig() (*model.Config, error) {
	cfg := model.DefaultConfig()

	cfg.LLM.Provider = llmProvider
	cfg.LLM.Model = llmModel
	cfg.Discovery.Question = question
	cfg.Discovery.TaxonomyMode = model.DiscoveryMode(taxonomyMode)
	cfg.Discovery.SpeakerMode = model.DiscoveryMode(speakerMode)
	cfg.Discovery.EntityMode = model.DiscoveryMode(entityMode)
	cfg.Discovery.TaxonomySeed = taxonomySeed
	cfg.Discovery.SpeakerSeed = speakerSeed
	cfg.Discovery.EntitySeed = entitySeed
	cfg.Discovery.Sequential = sequential
	cfg.Apply.Concurrency = concurrency
	cfg.Apply.DocumentTimeout = docTimeout
	cfg.Apply.InvalidCodes = model.InvalidCodePolicy(invalidCodes)
	cfg.Cache.Enabled = !noCache
	cfg.Graph.Path = graphPath
	cfg.Output.Dir = outputDir
	cfg.Output.Verbose = verbose

	switch llmProvider {
	case "openai":
		cfg.LLM.APIKey = os.Getenv("OPENAI_API_KEY")
		if cfg.LLM.APIKey == "" {
			return nil, fmt.Errorf("OPENAI_API_KEY environment variable not set")
		}
	case "anthropic", "claude":
		cfg.LLM.APIKey = os.Getenv("ANTHROPIC_API_KEY")
		if cfg.LLM.APIKey == "" {
			return nil, fmt.Errorf("ANTHROPIC_API_KEY environment variable not set")
		}
	case "ollama":
		if baseURL := os.Getenv("OLLAMA_BASE_URL"); baseURL != "" {
			cfg.LLM.BaseURL = baseURL
		}
	}

	return cfg, nil
}

func runRun(cmd *cobra.Command, args []string) error {
	corpusDir := args[0]
	ctx, cancel := context.WithTimeout(context.Background(), runTimeout)
	defer cancel()

	cfg, err := buildConfig()
	if err != nil {
		return err
	}

	docs, err := corpus.Load(corpusDir)
	if err != nil {
		return err
	}

	if verbose {
		fmt.Fprintf(os.Stderr, "Corpus: %d documents from %s\n", len(docs), corpusDir)
		fmt.Fprintf(os.Stderr, "Backend: %s/%s, concurrency %d\n\n", cfg.LLM.Provider, cfg.LLM.Model, cfg.Apply.Concurrency)
	}

	p, err := pipeline.New(cfg)
	if err != nil {
		return err
	}

	result, err := p.Run(ctx, docs)
	if err != nil {
		return fmt.Errorf("run failed: %w", err)
	}

	printRunSummary(result)
	return nil
}

// printRunSummary renders the corpus-level outcome, including the
// quarantine list so callers can assess data completeness.
func printRunSummary(result *pipeline.RunResult) {
	agg := result.Aggregate

	fmt.Printf("Run %s complete\n", agg.RunID)
	fmt.Printf("  Documents:  %d processed, %d quarantined\n", agg.Documents, len(agg.Failures))
	fmt.Printf("  Codes:      %d discovered\n", len(result.Schemas.Taxonomy.Codes))
	fmt.Printf("  Quotes:     %d extracted\n", agg.TotalQuotes)
	fmt.Printf("  Entities:   %d distinct\n", len(agg.EntityStats))
	fmt.Printf("  Warnings:   %d\n", len(agg.Warnings))

	if len(agg.Failures) > 0 {
		fmt.Println("\nQuarantined documents:")
		for _, f := range agg.Failures {
			fmt.Printf("  - %s: %s\n", f.DocumentID, f.Reason)
		}
	}

	if len(agg.CodeStats) > 0 {
		fmt.Println("\nTop codes:")
		for i, cs := range agg.CodeStats {
			if i >= 10 {
				break
			}
			fmt.Printf("  %-30s %d quotes across %d documents\n", cs.CodeID, cs.QuoteCount, cs.Documents)
		}
	}
}
