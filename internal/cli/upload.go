package cli

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/raphaelgruber/docrag/internal/client"
	"github.com/spf13/cobra"
	"golang.org/x/term"
)

var uploadNoWait bool

var uploadCmd = &cobra.Command{
	Use:   "upload <file>...",
	Short: "Upload documents for indexing",
	Long: `Upload one or more documents to the corpus. Indexing happens in the
background on the server; by default the command follows progress until
the document is ready.

Examples:
  docrag upload report.pdf
  docrag upload notes.md slides.pptx
  docrag upload --no-wait big-archive.pdf`,
	Args: cobra.MinimumNArgs(1),
	RunE: runUpload,
}

func init() {
	uploadCmd.Flags().BoolVar(&uploadNoWait, "no-wait", false, "return immediately instead of following indexing progress")
}

func runUpload(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	for _, path := range args {
		doc, err := apiClient.Upload(ctx, path)
		if err != nil {
			var apiErr *client.APIError
			if errors.As(err, &apiErr) {
				return fmt.Errorf("upload %s: %s", path, apiErr.Message)
			}
			return fmt.Errorf("upload %s: %w", path, err)
		}

		fmt.Printf("Uploaded %s (id %s)\n", doc.OriginalName, doc.ID)

		if uploadNoWait {
			continue
		}

		if term.IsTerminal(int(os.Stdout.Fd())) {
			if err := RunIndexProgress(apiClient, doc); err != nil {
				return fmt.Errorf("index %s: %w", path, err)
			}
		} else {
			if err := waitForDocument(ctx, doc.ID); err != nil {
				return fmt.Errorf("index %s: %w", path, err)
			}
		}
	}

	return nil
}

// waitForDocument polls until the document reaches a terminal status. Used
// when stdout is not a terminal, e.g. in scripts.
func waitForDocument(ctx context.Context, id string) error {
	lastDetail := ""
	for {
		doc, err := apiClient.DocumentStatus(ctx, id)
		if err != nil {
			return err
		}

		if doc.StatusDetail != lastDetail {
			fmt.Printf("%s (%d%%)\n", doc.StatusDetail, doc.Progress)
			lastDetail = doc.StatusDetail
		}

		switch doc.Status {
		case "ready":
			fmt.Printf("Ready: %d chunks indexed\n", doc.ChunkCount)
			return nil
		case "error":
			if doc.ErrorMessage != nil {
				return fmt.Errorf("%s", *doc.ErrorMessage)
			}
			return fmt.Errorf("indexing failed")
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(pollInterval):
		}
	}
}
