// Package main is the entry point for the leasescout CLI.
package main

import (
	"os"

	"github.com/leasescout/leasescout/cmd/leasescout/commands"
)

func main() {
	if err := commands.Execute(); err != nil {
		os.Exit(1)
	}
}
