package cli

import (
	"context"
	"fmt"
	"os"

	"github.com/raphaelgruber/docrag/internal/client"
	"github.com/spf13/cobra"
)

var (
	askConversation string
	askDocuments    []string
	askModel        string
	askTopK         int
	askMinScore     float64
	askTemperature  float64
	askAttachFile   string
	askShowSources  bool
)

var askCmd = &cobra.Command{
	Use:   "ask <question>",
	Short: "Ask a question about the document corpus",
	Long: `Ask a question and stream the answer. Retrieval runs against all ready
documents unless --document narrows the scope. Pass --conversation to
continue an earlier exchange with its history.

Examples:
  docrag ask "What were the Q3 revenue drivers?"
  docrag ask "Summarize the contract terms" --document d8f2...
  docrag ask "And compared to Q2?" --conversation c91a...
  docrag ask "Does this match our policy?" --attach policy-draft.md`,
	Args: cobra.ExactArgs(1),
	RunE: runAsk,
}

func init() {
	askCmd.Flags().StringVarP(&askConversation, "conversation", "c", "", "continue an existing conversation")
	askCmd.Flags().StringSliceVarP(&askDocuments, "document", "d", nil, "restrict retrieval to these document IDs")
	askCmd.Flags().StringVarP(&askModel, "model", "m", "", "override the chat model")
	askCmd.Flags().IntVarP(&askTopK, "top-k", "n", 0, "number of passages to retrieve (server default if 0)")
	askCmd.Flags().Float64Var(&askMinScore, "min-score", 0, "minimum similarity score for passages")
	askCmd.Flags().Float64Var(&askTemperature, "temperature", -1, "sampling temperature (server default if negative)")
	askCmd.Flags().StringVar(&askAttachFile, "attach", "", "include a local file as one-off context")
	askCmd.Flags().BoolVar(&askShowSources, "sources", false, "print the retrieved source passages")
}

func runAsk(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	req := client.AskRequest{
		Question:       args[0],
		ConversationID: askConversation,
		DocumentIDs:    askDocuments,
		Model:          askModel,
		TopK:           askTopK,
	}
	if cmd.Flags().Changed("min-score") {
		req.MinScore = &askMinScore
	}
	if askTemperature >= 0 {
		req.Temperature = &askTemperature
	}
	if askAttachFile != "" {
		data, err := os.ReadFile(askAttachFile)
		if err != nil {
			return fmt.Errorf("read attachment: %w", err)
		}
		req.Attachment = string(data)
	}

	var convID string
	err := apiClient.AskStream(ctx, req, client.StreamHandlers{
		OnConversationID: func(id string) error {
			convID = id
			return nil
		},
		OnSources: func(sources []client.Source) error {
			if !askShowSources {
				return nil
			}
			if len(sources) == 0 {
				fmt.Println("(no matching passages, answering from general knowledge)")
				return nil
			}
			fmt.Printf("Sources (%d):\n", len(sources))
			for _, s := range sources {
				if s.Page > 0 {
					fmt.Printf("- %s, page %d (score %.2f)\n", s.Title, s.Page, s.Score)
				} else {
					fmt.Printf("- %s (score %.2f)\n", s.Title, s.Score)
				}
			}
			fmt.Println()
			return nil
		},
		OnToken: func(token string) error {
			fmt.Print(token)
			return nil
		},
	})
	if err != nil {
		return fmt.Errorf("ask: %w", err)
	}

	fmt.Println()
	if verbose && convID != "" {
		fmt.Printf("\nConversation: %s\n", convID)
	}
	return nil
}
