// Package main is the entry point for the steward CLI.
package main

import (
	"errors"
	"fmt"
	"os"

	"steward/pkg/protocol"
	"steward/pkg/validate"
)

func main() {
	cmd := newRootCmd()
	if err := cmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "steward: %v\n", err)
		os.Exit(exitCode(err))
	}
}

// exitCode maps an error to the CLI contract: 2 for a correctly refused
// request (policy block or validation rejection), 1 for everything else.
func exitCode(err error) int {
	var verr *validate.Error
	if protocol.Blocked(err) || errors.As(err, &verr) {
		return protocol.ExitBlocked
	}
	return protocol.ExitError
}
