package cli

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"nhp/internal/domain"
)

var (
	queryText   string
	queryAmount string
	queryJSON   bool
)

var queryCmd = &cobra.Command{
	Use:   "query",
	Short: "Show the monograph passages retrieved for an ingredient",
	Long: `Search the knowledge base the way classification does and print the passages
that would ground the decision. No reasoning call is made.

Examples:
  nhp query -q "Vitamin C" --amount "500 mg"
  nhp query -q "Echinacea purpurea" --json`,
	Args: cobra.NoArgs,
	RunE: runQuery,
}

func init() {
	rootCmd.AddCommand(queryCmd)
	queryCmd.Flags().StringVarP(&queryText, "query", "q", "", "ingredient name (required)")
	queryCmd.Flags().StringVar(&queryAmount, "amount", "", "declared amount, e.g. \"500 mg\"")
	queryCmd.Flags().BoolVar(&queryJSON, "json", false, "output as JSON")
	queryCmd.MarkFlagRequired("query")
}

func runQuery(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	rt, err := openRuntime(ctx, GetConfig(), GetRootDir(), true)
	if err != nil {
		return err
	}
	defer rt.Close()

	ing := domain.Ingredient{Name: queryText, DeclaredAmount: queryAmount, Section: domain.SectionMedicinal}
	found, passages, err := rt.classifier.Retrieve(ctx, ing)
	if err != nil {
		return fmt.Errorf("search failed: %w", err)
	}

	if queryJSON {
		for i := range passages {
			passages[i].Chunk.Embedding = nil
		}
		output, err := json.MarshalIndent(struct {
			MonographFound bool                 `json:"monograph_found"`
			Passages       []domain.ScoredChunk `json:"passages"`
		}{found, passages}, "", "  ")
		if err != nil {
			return err
		}
		fmt.Println(string(output))
		return nil
	}

	if !found {
		fmt.Println("No monograph passage passed the similarity threshold.")
		return nil
	}

	fmt.Printf("Found %d passages for: %s\n\n", len(passages), ing.Query())
	for i, p := range passages {
		fmt.Printf("--- [%d] %s #%d (similarity: %.2f) ---\n", i+1, p.Chunk.Source, p.Chunk.SequenceIndex, p.Similarity)
		// Truncate long text for display
		text := p.Chunk.Text
		if len(text) > 500 {
			text = text[:500] + "..."
		}
		fmt.Println(text)
		fmt.Println()
	}
	return nil
}
