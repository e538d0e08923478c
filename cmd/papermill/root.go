package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/papermill/papermill/internal/config"
	"github.com/papermill/papermill/internal/home"
	"github.com/papermill/papermill/internal/providers"
	"github.com/papermill/papermill/version"
)

var (
	cfgFile string
	homeDir string
	verbose bool
)

var rootCmd = &cobra.Command{
	Use:   "papermill",
	Short: "Academic paper processing pipeline: OCR, translation, blog, slides",
	Long: `Papermill turns an academic PDF into readable artifacts using LLM providers:

  - OCR the PDF to markdown with extracted figures
  - Translate and polish the text page by page
  - Plan blog sections and write the post with triaged figures
  - Generate a slide deck

Every stage checkpoints its artifact after each unit of work, so an
interrupted run resumes where it stopped.`,
	Version:       version.GitRelease,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(
		&cfgFile, "config", "", "config file (default: ./config.yaml or ~/.papermill/config.yaml)",
	)
	rootCmd.PersistentFlags().StringVar(
		&homeDir, "home", "", "papermill home directory (default: ~/.papermill)",
	)
	rootCmd.PersistentFlags().BoolVarP(
		&verbose, "verbose", "v", false, "debug logging",
	)

	rootCmd.PersistentPreRun = func(cmd *cobra.Command, args []string) {
		level := slog.LevelInfo
		if verbose {
			level = slog.LevelDebug
		}
		slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})))
	}

	rootCmd.AddCommand(processCmd)
	rootCmd.AddCommand(usageCmd)
	rootCmd.AddCommand(configCmd)
	rootCmd.AddCommand(promptsCmd)
	rootCmd.AddCommand(versionCmd)
}

// papermillHome resolves the workspace directory from the --home flag.
func papermillHome() (*home.Dir, error) {
	return home.New(homeDir)
}

// loadConfig builds the config manager, honoring --config and the home
// directory's config file.
func loadConfig(h *home.Dir) (*config.Manager, error) {
	path := cfgFile
	if path == "" && h.ConfigExists() {
		path = h.ConfigPath()
	}
	return config.NewManager(path)
}

// buildRegistry instantiates providers from config and wires hot reload so a
// config edit mid-run swaps clients without restarting.
func buildRegistry(manager *config.Manager) *providers.Registry {
	registry := providers.NewRegistryFromConfig(manager.Get().ToProviderRegistryConfig())
	manager.OnChange(func(cfg *config.Config) {
		registry.Reload(cfg.ToProviderRegistryConfig())
	})
	manager.WatchConfig()
	return registry
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("papermill %s\n", version.GitRelease)
		fmt.Printf("  Go:     %s\n", version.GoInfo)
		fmt.Printf("  Commit: %s\n", version.GitCommit)
		fmt.Printf("  Date:   %s\n", version.GitCommitDate)
	},
}
