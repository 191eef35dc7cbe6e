// Package commands provides the CLI commands for the go-code-structure tool.
package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/l3aro/go-code-structure/internal/config"
	"github.com/l3aro/go-code-structure/internal/log"
)

// settings and logger are set up before any subcommand runs.
var settings = config.DefaultConfig()

var logger log.Logger = log.Nop()

// RootCmd represents the base command when called without any subcommands
var RootCmd = &cobra.Command{
	Use:   "gcs",
	Short: "go-code-structure - Control flow structuring for decompiled graphs",
	Long: `go-code-structure classifies every edge of a control flow graph as structured,
loop back edge, goto or branch exit, and inserts join nodes where branches reconverge.

Commands:
  structure   Structure a graph description (YAML or JSON)
  cfg         Build and structure the CFG of a Go function
  batch       Structure every graph and Go file under a directory
  init        Create a configuration file interactively

Use "gcs [command] --help" for more information about a command.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		return setup(cmd)
	},
}

// Execute adds all child commands to the root command and sets flags appropriately
func Execute() error {
	return RootCmd.Execute()
}

// setup loads configuration, applies persistent flags and builds the logger.
func setup(cmd *cobra.Command) error {
	if path, _ := cmd.Flags().GetString("config"); path != "" {
		cfg, err := config.LoadFromFile(path)
		if err != nil {
			return fmt.Errorf("loading config: %w", err)
		}
		settings = cfg
	} else {
		cfg, err := config.Load()
		if err != nil {
			return fmt.Errorf("loading config: %w", err)
		}
		settings = cfg
	}

	if cmd.Flags().Changed("verbose") {
		settings.Verbose, _ = cmd.Flags().GetBool("verbose")
	}
	if cmd.Flags().Changed("log-json") {
		settings.LogJSON, _ = cmd.Flags().GetBool("log-json")
	}

	logger = log.New(log.LoggerConfig{
		Level:      settings.Level(),
		JSONOutput: settings.LogJSON,
		Stderr:     cmd.ErrOrStderr(),
	})
	return nil
}

func init() {
	RootCmd.PersistentFlags().String("config", "", "Config file path (default: ~/.gcs and ./.gcs)")
	RootCmd.PersistentFlags().BoolP("verbose", "V", false, "Verbose logging")
	RootCmd.PersistentFlags().Bool("log-json", false, "Log as JSON lines")

	RootCmd.AddCommand(structureCmd)
	RootCmd.AddCommand(cfgCmd)
	RootCmd.AddCommand(batchCmd)
	RootCmd.AddCommand(initCmd)
}
