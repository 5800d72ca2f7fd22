// Package main is the vaultgraph command.
package main

import (
	"os"

	"github.com/leapstack-labs/vaultgraph/internal/cli"
)

func main() {
	os.Exit(cli.ExitCode(cli.Execute()))
}
