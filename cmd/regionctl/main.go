// Package main provides the regionctl CLI.
//
// Usage:
//
//	regionctl [flags] <command> [args]
//
// Commands:
//
//	build   - Build region profiles from labeled embeddings and persist them
//	select  - Select the nearest region for queries read from a file
//	inspect - Describe the persisted profile set
//	mirror  - Copy objects between blob stores
//
// Configuration:
//
//	regionctl reads the same settings as the query service: defaults, an
//	optional YAML file (--config or REGIONSEL_CONFIG), .env and REGIONSEL_*
//	environment variables.
package main

import (
	"fmt"
	"os"

	"github.com/okian/regionsel/cmd/regionctl/commands"
)

func main() {
	if err := commands.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
