// Package main implements the go-code-structure CLI (gcs).
// It structures control flow graphs into loops, branches, joins and gotos.
package main

import (
	"os"

	"github.com/l3aro/go-code-structure/cmd/gcs/commands"
)

var version = "dev"

func main() {
	commands.RootCmd.Flags().BoolP("version", "v", false, "Print version information")
	commands.RootCmd.SetVersionTemplate(`gcs version {{.Version}}
`)
	commands.RootCmd.Version = version

	if err := commands.Execute(); err != nil {
		os.Exit(1)
	}
}
