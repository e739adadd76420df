package cli

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/mzaremba/quotient/internal/corpus"
	"github.com/mzaremba/quotient/internal/pipeline"
)

// discoverCmd runs Phases 1-3 only, writing the schema artifacts without
// touching any document. Useful for reviewing and seeding a taxonomy
// before committing to a full run.
var discoverCmd = &cobra.Command{
	Use:   "discover <corpus-dir>",
	Short: "Discover schemas from a corpus without applying them",
	Long: `Discover runs the three schema-discovery phases (code taxonomy, speaker
schema, entity schema) over the concatenated corpus and writes the
resulting schemas as JSON artifacts. No per-document extraction happens.

The written taxonomy can be edited and fed back as a seed:
  quotient discover ./interviews --question "How do teams adopt AI tools?"
  quotient run ./interviews --taxonomy-mode mixed --taxonomy-seed quotient-out/taxonomy.json`,
	Args: cobra.ExactArgs(1),
	RunE: runDiscover,
}

func init() {
	rootCmd.AddCommand(discoverCmd)

	discoverCmd.Flags().StringVar(&question, "question", "", "analytic question guiding discovery")
	discoverCmd.Flags().StringVar(&llmProvider, "llm-provider", "openai", "extraction backend (openai, anthropic, ollama)")
	discoverCmd.Flags().StringVar(&llmModel, "llm-model", "", "model name (backend default if empty)")
	discoverCmd.Flags().DurationVar(&runTimeout, "timeout", 20*time.Minute, "overall discovery timeout")
	discoverCmd.Flags().StringVar(&outputDir, "out", "./quotient-out", "artifact output directory")
	discoverCmd.Flags().BoolVar(&noCache, "no-cache", false, "disable the extraction response cache")
	discoverCmd.Flags().BoolVar(&sequential, "sequential-discovery", false, "run discovery phases one at a time")

	discoverCmd.Flags().StringVar(&taxonomyMode, "taxonomy-mode", "open", "taxonomy discovery mode (open, closed, mixed)")
	discoverCmd.Flags().StringVar(&speakerMode, "speaker-mode", "open", "speaker schema discovery mode")
	discoverCmd.Flags().StringVar(&entityMode, "entity-mode", "open", "entity schema discovery mode")
	discoverCmd.Flags().StringVar(&taxonomySeed, "taxonomy-seed", "", "seed file for closed/mixed taxonomy mode")
	discoverCmd.Flags().StringVar(&speakerSeed, "speaker-seed", "", "seed file for closed/mixed speaker mode")
	discoverCmd.Flags().StringVar(&entitySeed, "entity-seed", "", "seed file for closed/mixed entity mode")
}

func runDiscover(cmd *cobra.Command, args []string) error {
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
	}

	p, err := pipeline.New(cfg)
	if err != nil {
		return err
	}

	schemas, err := p.DiscoverSchemas(ctx, docs)
	if err != nil {
		return fmt.Errorf("discovery failed: %w", err)
	}

	if err := p.WriteSchemaArtifacts(schemas); err != nil {
		return err
	}

	fmt.Printf("Discovery complete\n")
	fmt.Printf("  Codes:              %d\n", len(schemas.Taxonomy.Codes))
	fmt.Printf("  Speaker properties: %d\n", len(schemas.Speakers.Properties))
	fmt.Printf("  Entity types:       %d\n", len(schemas.Entities.EntityTypes))
	fmt.Printf("  Relationship types: %d\n", len(schemas.Entities.RelationshipTypes))
	fmt.Printf("\nSchemas written to %s\n", cfg.Output.Dir)
	return nil
}
