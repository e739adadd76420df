package cli

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/mzaremba/quotient/internal/graph"
)

var (
	exportFormat string
	exportCode   string
)

// exportCmd reads the persisted graph back out as a human-readable
// summary. It never touches the extraction backend.
var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export a code summary from the persisted quote graph",
	Long: `Export reads the graph database produced by a run and renders a summary
of code support: per-code quote counts, and with --code the full quote
list for one code.

Example:
  quotient export --db quotient.db
  quotient export --db quotient.db --code methodology:agile --format json`,
	RunE: runExport,
}

func init() {
	rootCmd.AddCommand(exportCmd)

	exportCmd.Flags().StringVar(&graphPath, "db", "quotient.db", "graph database path")
	exportCmd.Flags().StringVar(&exportFormat, "format", "markdown", "output format (markdown, json)")
	exportCmd.Flags().StringVar(&exportCode, "code", "", "export quotes for a single code id")
}

func runExport(cmd *cobra.Command, args []string) error {
	if _, err := os.Stat(graphPath); err != nil {
		return fmt.Errorf("graph database %s not found; run a pipeline first", graphPath)
	}

	store, err := graph.Open(graphPath)
	if err != nil {
		return err
	}
	defer store.Close()

	if exportCode != "" {
		return exportQuotes(store, exportCode)
	}
	return exportSummary(store)
}

func exportSummary(store *graph.Store) error {
	counts, err := store.CodeQuoteCounts()
	if err != nil {
		return err
	}
	mentions, err := store.EntityMentions()
	if err != nil {
		return err
	}

	if exportFormat == "json" {
		return json.NewEncoder(os.Stdout).Encode(map[string]any{
			"codes":    counts,
			"entities": mentions,
		})
	}

	fmt.Println("# Code Support")
	fmt.Println()
	for _, c := range counts {
		fmt.Printf("- **%s** (%s): %d quotes\n", c.Name, c.CodeID, c.Quotes)
	}
	if len(mentions) > 0 {
		fmt.Println()
		fmt.Println("# Entities")
		fmt.Println()
		for _, m := range mentions {
			fmt.Printf("- **%s** [%s]: %d mentions\n", m.Name, m.Type, m.Mentions)
		}
	}
	return nil
}

func exportQuotes(store *graph.Store, codeID string) error {
	quotes, err := store.QuotesForCode(codeID)
	if err != nil {
		return err
	}
	if len(quotes) == 0 {
		return fmt.Errorf("no quotes found for code %s", codeID)
	}

	if exportFormat == "json" {
		return json.NewEncoder(os.Stdout).Encode(quotes)
	}

	fmt.Printf("# Quotes for %s\n\n", codeID)
	for _, q := range quotes {
		speaker := q.Speaker
		if speaker == "" {
			speaker = "unknown"
		}
		fmt.Printf("> %s\n", strings.ReplaceAll(q.Text, "\n", " "))
		fmt.Printf("  -- %s, %s lines %d-%d\n\n", speaker, q.DocumentID, q.LineStart, q.LineEnd)
	}
	return nil
}
