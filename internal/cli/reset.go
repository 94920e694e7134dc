package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

var resetCmd = &cobra.Command{
	Use:   "reset",
	Short: "Delete every monograph from the knowledge base",
	Long: `Remove all monographs and clear cached classifications. Use this after changing
the embedding model, then ingest the monographs again.`,
	Args: cobra.NoArgs,
	RunE: runReset,
}

func init() {
	rootCmd.AddCommand(resetCmd)
}

func runReset(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	rt, err := openRuntime(ctx, GetConfig(), GetRootDir(), false)
	if err != nil {
		return err
	}
	defer rt.Close()

	if err := rt.service.ResetKnowledgeBase(ctx); err != nil {
		return err
	}

	status := rt.service.KnowledgeBaseStatus(ctx)
	fmt.Printf("Knowledge base reset (%d documents loaded)\n", status.DocumentsLoaded)
	return nil
}
