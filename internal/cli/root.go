package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/ppiankov/pmguard/internal/config"
)

// skipConfig marks commands that run before a config file exists.
const skipConfig = "skip-config"

var (
	configPath       string
	logLevelOverride string

	// Loaded by PersistentPreRunE for every command not marked skipConfig.
	loadedConfig *config.Config
	loadedHash   string
)

var rootCmd = &cobra.Command{
	Use:   "pmguard",
	Short: "Action governance for autonomous PM agents",
	Long: "Decides whether a PM agent may act: boundary catalog, autonomy levels,\n" +
		"confidence gate, and a daily budget with a degradation ladder.",
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if cmd.Annotations[skipConfig] == "true" {
			return nil
		}
		cfg, hash, err := config.LoadWithHash(configPath)
		if err != nil {
			return err
		}
		if err := configureLogger(cfg, logLevelOverride); err != nil {
			return err
		}
		loadedConfig, loadedHash = cfg, hash
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "path to config.yaml (default: ~/.pmguard/config.yaml)")
	rootCmd.PersistentFlags().StringVar(&logLevelOverride, "log-level", "", "override log level (debug|info|warn|error)")
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
