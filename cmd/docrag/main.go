// Package main is the docrag command-line client.
package main

import (
	"fmt"
	"os"

	"github.com/raphaelgruber/docrag/internal/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
