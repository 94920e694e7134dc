package cli

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"
)

var statusJSON bool

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show knowledge base status",
	Args:  cobra.NoArgs,
	RunE:  runStatus,
}

func init() {
	statusCmd.Flags().BoolVar(&statusJSON, "json", false, "print status as JSON")
	rootCmd.AddCommand(statusCmd)
}

func runStatus(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	rt, err := openRuntime(ctx, GetConfig(), GetRootDir(), false)
	if err != nil {
		return err
	}
	defer rt.Close()

	status := rt.service.KnowledgeBaseStatus(ctx)
	if statusJSON {
		data, err := json.MarshalIndent(status, "", "  ")
		if err != nil {
			return err
		}
		fmt.Println(string(data))
		return nil
	}

	docs, err := rt.store.Documents(ctx)
	if err != nil {
		return fmt.Errorf("failed to list documents: %w", err)
	}

	fmt.Printf("Knowledge base: %s\n", GetConfig().DBPath(GetRootDir()))
	fmt.Printf("  Ready:     %t\n", status.Ready)
	fmt.Printf("  Documents: %d\n", status.DocumentsLoaded)
	fmt.Printf("  Chunks:    %d\n", rt.store.CountChunks())
	if status.LastError != "" {
		fmt.Printf("  Last error: %s\n", status.LastError)
	}
	if compat, err := rt.store.CheckCompatibility(); err == nil && !compat.Compatible {
		fmt.Printf("  Warning:   %s\n", compat.Reason)
	}
	for _, w := range rt.service.ConfigWarnings() {
		fmt.Printf("  Warning:   %v\n", w)
	}
	if len(docs) > 0 {
		fmt.Println()
		for _, d := range docs {
			fmt.Printf("  %-40s %4d chunks  %s\n", d.Source, d.Chunks, d.IngestedAt.Format("2006-01-02 15:04"))
		}
	}
	return nil
}
