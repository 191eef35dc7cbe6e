package commands

import (
	"fmt"
	"os"
	"strconv"

	"github.com/charmbracelet/huh"
	"github.com/spf13/cobra"

	"github.com/l3aro/go-code-structure/internal/config"
)

// initCmd represents the init command
var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Initialize gcs configuration interactively",
	Long: `Guides you through setting up gcs configuration step by step and
saves it globally (~/.gcs/config.yaml) or for the project (./.gcs/config.yaml).`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runInit()
	},
}

func runInit() error {
	cfg := config.DefaultConfig()

	format := string(cfg.ReportFormat)
	cacheSize := strconv.Itoa(cfg.CacheSize)
	maxNodes := strconv.Itoa(cfg.MaxNodes)
	var scope string

	form := huh.NewForm(
		huh.NewGroup(
			huh.NewConfirm().
				Title("Merge composites").
				Description("Collapse straight-line chains into single nodes before structuring?").
				Affirmative("Yes").
				Negative("No").
				Value(&cfg.MergeComposites),
			huh.NewSelect[string]().
				Title("Report format").
				Options(
					huh.NewOption("Text", string(config.FormatText)),
					huh.NewOption("JSON", string(config.FormatJSON)),
				).
				Value(&format),
		),
		huh.NewGroup(
			huh.NewSelect[string]().
				Title("Log level").
				Options(
					huh.NewOption("Debug", "debug"),
					huh.NewOption("Info", "info"),
					huh.NewOption("Warn", "warn"),
					huh.NewOption("Error", "error"),
				).
				Value(&cfg.LogLevel),
			huh.NewConfirm().
				Title("Log as JSON lines?").
				Value(&cfg.LogJSON),
		),
		huh.NewGroup(
			huh.NewInput().
				Title("Cache directory").
				Placeholder(cfg.CacheDir).
				Value(&cfg.CacheDir),
			huh.NewInput().
				Title("Cache size (reports kept)").
				Placeholder(cacheSize).
				Validate(positiveInt).
				Value(&cacheSize),
			huh.NewInput().
				Title("Maximum graph size in nodes (0 for no limit)").
				Placeholder(maxNodes).
				Validate(nonNegativeInt).
				Value(&maxNodes),
		),
		huh.NewGroup(
			huh.NewSelect[string]().
				Title("Save Configuration").
				Description("Where to save the configuration file?").
				Options(
					huh.NewOption("Global (~/.gcs/config.yaml)", "global"),
					huh.NewOption("Project (./.gcs/config.yaml)", "project"),
				).
				Value(&scope),
		),
	)
	if err := form.Run(); err != nil {
		return fmt.Errorf("interactive prompt failed: %w", err)
	}

	cfg.ReportFormat = config.ReportFormat(format)
	cfg.CacheSize, _ = strconv.Atoi(cacheSize)
	cfg.MaxNodes, _ = strconv.Atoi(maxNodes)

	configPath := config.ProjectConfigFilePath()
	if scope == "global" {
		configPath = config.GlobalConfigFilePath()
	}

	if _, err := os.Stat(configPath); err == nil {
		var overwrite bool
		confirm := huh.NewForm(
			huh.NewGroup(
				huh.NewConfirm().
					Title("Config file exists").
					Description(fmt.Sprintf("Overwrite existing config at %s?", configPath)).
					Affirmative("Overwrite").
					Negative("Cancel").
					Value(&overwrite),
			),
		)
		if err := confirm.Run(); err != nil {
			return fmt.Errorf("interactive prompt failed: %w", err)
		}
		if !overwrite {
			fmt.Println("Cancelled.")
			return nil
		}
	}

	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("config validation failed: %w", err)
	}
	if err := cfg.Save(configPath); err != nil {
		return fmt.Errorf("saving config: %w", err)
	}

	fmt.Println("\n=== Configuration ===")
	fmt.Printf("Merge composites: %v\n", cfg.MergeComposites)
	fmt.Printf("Report format: %s\n", cfg.ReportFormat)
	fmt.Printf("Log level: %s\n", cfg.LogLevel)
	fmt.Printf("Cache: %s (%d reports)\n", cfg.CacheDir, cfg.CacheSize)
	if cfg.MaxNodes > 0 {
		fmt.Printf("Max nodes: %d\n", cfg.MaxNodes)
	}
	fmt.Printf("Configuration saved to: %s\n", configPath)
	return nil
}

func positiveInt(s string) error {
	n, err := strconv.Atoi(s)
	if err != nil || n <= 0 {
		return fmt.Errorf("enter a positive number")
	}
	return nil
}

func nonNegativeInt(s string) error {
	n, err := strconv.Atoi(s)
	if err != nil || n < 0 {
		return fmt.Errorf("enter zero or a positive number")
	}
	return nil
}
