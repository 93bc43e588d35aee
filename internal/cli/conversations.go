package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
)

var conversationsCmd = &cobra.Command{
	Use:     "conversations",
	Aliases: []string{"conv"},
	Short:   "List and manage chat conversations",
	Long: `List conversations, show a transcript, or delete conversations.

Subcommands:
  show    Print a conversation transcript
  delete  Delete a conversation
  clear   Delete all conversations

Examples:
  docrag conversations
  docrag conversations show c91a...
  docrag conversations delete c91a...
  docrag conversations clear`,
	RunE: runListConversations,
}

var conversationsShowCmd = &cobra.Command{
	Use:   "show <conversation-id>",
	Short: "Print a conversation transcript",
	Args:  cobra.ExactArgs(1),
	RunE:  runShowConversation,
}

var conversationsDeleteCmd = &cobra.Command{
	Use:   "delete <conversation-id>",
	Short: "Delete a conversation",
	Args:  cobra.ExactArgs(1),
	RunE:  runDeleteConversation,
}

var conversationsClearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Delete all conversations",
	RunE:  runClearConversations,
}

func init() {
	conversationsCmd.AddCommand(conversationsShowCmd)
	conversationsCmd.AddCommand(conversationsDeleteCmd)
	conversationsCmd.AddCommand(conversationsClearCmd)
}

func runListConversations(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	convs, err := apiClient.Conversations(ctx)
	if err != nil {
		return fmt.Errorf("list conversations: %w", err)
	}

	if len(convs) == 0 {
		fmt.Println("No conversations.")
		return nil
	}

	fmt.Printf("Conversations (%d):\n\n", len(convs))
	for _, conv := range convs {
		fmt.Printf("- %s\n", conv.Title)
		if verbose {
			fmt.Printf("  ID:      %s\n", conv.ID)
			fmt.Printf("  Updated: %s\n", conv.UpdatedAt)
		}
	}

	return nil
}

func runShowConversation(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	detail, err := apiClient.Conversation(ctx, args[0])
	if err != nil {
		return fmt.Errorf("get conversation: %w", err)
	}

	fmt.Printf("%s\n\n", detail.Title)
	for _, msg := range detail.Messages {
		switch msg.Role {
		case "user":
			fmt.Printf("> %s\n\n", msg.Content)
		default:
			fmt.Printf("%s\n\n", msg.Content)
		}
	}

	return nil
}

func runDeleteConversation(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	if err := apiClient.DeleteConversation(ctx, args[0]); err != nil {
		return fmt.Errorf("delete conversation: %w", err)
	}
	fmt.Printf("Deleted %s\n", args[0])
	return nil
}

func runClearConversations(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	if err := apiClient.DeleteAllConversations(ctx); err != nil {
		return fmt.Errorf("clear conversations: %w", err)
	}
	fmt.Println("All conversations deleted.")
	return nil
}
