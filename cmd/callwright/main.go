// Package main is the entry point for the callwright CLI.
package main

import (
	"fmt"
	"os"

	"github.com/callwright/callwright/internal/cli"
)

// version is set at build time.
var version = "dev"

func main() {
	root := cli.NewRootCmd(version)
	if err := root.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
