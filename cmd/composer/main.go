// Package main is the entrypoint for the composer CLI.
package main

import (
	"os"

	"github.com/leapstack-labs/querycomposer/internal/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		os.Exit(1)
	}
}
