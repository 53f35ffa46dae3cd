// Package main is the entry point for the scribectl CLI.
// The CLI is the terminal tool for talking to a running scribeq server.
package main

import (
	"os"

	"scribeq/cmd/cli/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
