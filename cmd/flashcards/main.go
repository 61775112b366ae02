// Package main provides the flashcards command line tool.
package main

import (
	"fmt"
	"os"

	"github.com/Raumain/flashcards/cmd/flashcards/commands"
)

func main() {
	if err := commands.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
