package main

import (
	"errors"
	"fmt"
	"os"

	rerrors "reflexion/internal/errors"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(reportError(err))
	}
}

// reportError prints err with suggested fixes for its code and returns the exit code:
// 2 for a violation gate, 1 for everything else.
func reportError(err error) int {
	if errors.Is(err, errViolations) {
		fmt.Fprintln(os.Stderr, err.Error())
		return 2
	}
	code := rerrors.CodeOf(err)
	fmt.Fprintf(os.Stderr, "Error: %v\n", err)
	for _, fix := range rerrors.GetSuggestedFixes(code) {
		if fix.Description != "" {
			fmt.Fprintf(os.Stderr, "  hint: %s\n", fix.Description)
		}
	}
	return 1
}
