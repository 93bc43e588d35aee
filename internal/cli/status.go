package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
)

var statusCmd = &cobra.Command{
	Use:   "status <document-id>",
	Short: "Show the indexing status of a document",
	Args:  cobra.ExactArgs(1),
	RunE:  runStatus,
}

func runStatus(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	doc, err := apiClient.DocumentStatus(ctx, args[0])
	if err != nil {
		return fmt.Errorf("document status: %w", err)
	}

	fmt.Printf("Document: %s\n", doc.OriginalName)
	fmt.Printf("Status:   %s (%d%%)\n", doc.Status, doc.Progress)
	if doc.StatusDetail != "" {
		fmt.Printf("Detail:   %s\n", doc.StatusDetail)
	}
	if doc.ChunkCount > 0 {
		fmt.Printf("Chunks:   %d\n", doc.ChunkCount)
	}
	if doc.ErrorMessage != nil {
		fmt.Printf("Error:    %s\n", *doc.ErrorMessage)
	}

	return nil
}
