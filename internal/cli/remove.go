package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

var removeCmd = &cobra.Command{
	Use:   "remove <source>...",
	Short: "Remove monographs from the knowledge base",
	Long: `Remove monographs by source name, the file name they were ingested under
(see nhp status).`,
	Args: cobra.MinimumNArgs(1),
	RunE: runRemove,
}

func init() {
	rootCmd.AddCommand(removeCmd)
}

func runRemove(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	rt, err := openRuntime(ctx, GetConfig(), GetRootDir(), false)
	if err != nil {
		return err
	}
	defer rt.Close()

	for _, source := range args {
		if err := rt.service.RemoveMonograph(ctx, source); err != nil {
			return err
		}
		fmt.Printf("Removed %s\n", source)
	}
	return nil
}
