package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
)

var modelsCmd = &cobra.Command{
	Use:   "models",
	Short: "List the chat models the server offers",
	RunE:  runModels,
}

func runModels(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	info, err := apiClient.Models(ctx)
	if err != nil {
		return fmt.Errorf("list models: %w", err)
	}

	for _, m := range info.Models {
		if m == info.Default {
			fmt.Printf("- %s (default)\n", m)
		} else {
			fmt.Printf("- %s\n", m)
		}
	}

	return nil
}
