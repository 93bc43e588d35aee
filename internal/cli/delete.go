package cli

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
)

var (
	deleteForce bool
	deleteAll   bool
)

var deleteCmd = &cobra.Command{
	Use:   "delete [document-id]...",
	Short: "Delete documents and their index entries",
	Long: `Delete one or more documents. Their chunks are removed from the vector
index, so they no longer appear in answers. Documents that are still
being indexed cannot be deleted; --all skips them.

Examples:
  docrag delete d8f2c1...
  docrag delete --force d8f2c1... a41b09...
  docrag delete --all`,
	RunE: runDelete,
}

func init() {
	deleteCmd.Flags().BoolVarP(&deleteForce, "force", "f", false, "skip confirmation prompt")
	deleteCmd.Flags().BoolVar(&deleteAll, "all", false, "delete every document in the corpus")
}

func runDelete(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	if !deleteAll && len(args) == 0 {
		return fmt.Errorf("provide document IDs or --all")
	}

	if !deleteForce {
		if deleteAll {
			fmt.Print("Delete ALL documents? [y/N] ")
		} else {
			fmt.Printf("Delete %d document(s)? [y/N] ", len(args))
		}
		reader := bufio.NewReader(os.Stdin)
		answer, _ := reader.ReadString('\n')
		if strings.ToLower(strings.TrimSpace(answer)) != "y" {
			fmt.Println("Aborted.")
			return nil
		}
	}

	if deleteAll {
		deleted, skipped, err := apiClient.DeleteAllDocuments(ctx)
		if err != nil {
			return fmt.Errorf("delete all: %w", err)
		}
		fmt.Printf("Deleted %d document(s)", deleted)
		if skipped > 0 {
			fmt.Printf(", skipped %d still indexing", skipped)
		}
		fmt.Println()
		return nil
	}

	for _, id := range args {
		if err := apiClient.DeleteDocument(ctx, id); err != nil {
			return fmt.Errorf("delete %s: %w", id, err)
		}
		fmt.Printf("Deleted %s\n", id)
	}

	return nil
}
