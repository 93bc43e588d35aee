package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
)

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List uploaded documents",
	Long: `List all documents in the corpus, newest first, with their indexing
status.

Examples:
  docrag list
  docrag list -v`,
	RunE: runList,
}

func runList(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	docs, err := apiClient.Documents(ctx)
	if err != nil {
		return fmt.Errorf("list documents: %w", err)
	}

	if len(docs) == 0 {
		fmt.Println("No documents uploaded.")
		return nil
	}

	fmt.Printf("Documents (%d):\n\n", len(docs))
	for _, doc := range docs {
		statusMark := doc.Status
		if doc.Status == "processing" {
			statusMark = fmt.Sprintf("processing %d%%", doc.Progress)
		}
		fmt.Printf("- %s [%s]\n", doc.OriginalName, statusMark)
		if verbose {
			fmt.Printf("  ID:      %s\n", doc.ID)
			fmt.Printf("  Type:    %s\n", doc.FileType)
			if doc.ChunkCount > 0 {
				fmt.Printf("  Chunks:  %d\n", doc.ChunkCount)
			}
			if doc.ErrorMessage != nil {
				fmt.Printf("  Error:   %s\n", *doc.ErrorMessage)
			}
			fmt.Printf("  Created: %s\n", doc.CreatedAt)
		}
	}

	return nil
}
