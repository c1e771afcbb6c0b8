// Package main is the sensorreplay command: it replays historical sensor
// readings from a datastore into a live register image.
package main

import (
	"fmt"
	"os"

	"github.com/roach88/sensorreplay/internal/cli"
)

func main() {
	if err := cli.NewRootCommand().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(cli.GetExitCode(err))
	}
}
