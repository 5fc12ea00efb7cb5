package main

import (
	"fmt"
	"os"

	"github.com/ppiankov/quizlint/internal/cli"
	"github.com/ppiankov/quizlint/internal/corpus"
)

func main() {
	if err := cli.Execute(); err != nil {
		if corpus.IsInputError(err) {
			fmt.Fprintf(os.Stderr, "Input error: %v\n", err)
		} else {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		}
		os.Exit(1)
	}
}
