package cmd

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/MeKo-Tech/spreadmap/internal/config"
	"github.com/MeKo-Tech/spreadmap/internal/version"
)

var (
	// Global configuration loader.
	configLoader *config.Loader
	// Global configuration.
	globalConfig *config.Config
	// Configuration file path.
	cfgFile string
)

// rootCmd represents the base command when called without any subcommands.
var rootCmd = &cobra.Command{
	Use:   "spreadmap",
	Short: "Map catalogue tiles to PDF spread regions and extract PLUs",
	Long: `spreadmap detects advertisement regions on catalogue PDF spreads, lets an
operator order them, exports the ordered regions and fills tile PLU slots
from the PDF text under each region.

Typical flow:
  spreadmap detect Weekly-P01.pdf --overlay p01.png
  spreadmap order auto Weekly-P01
  spreadmap export
  spreadmap extract project.json`,
	Version:      version.String(),
	SilenceUsage: true,
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// GetRootCommand returns the root command for testing purposes.
func GetRootCommand() *cobra.Command {
	return rootCmd
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "",
		"config file (default is search in ., $HOME, $XDG_CONFIG_HOME/spreadmap, /etc/spreadmap)")
	rootCmd.PersistentFlags().BoolP("verbose", "v", false, "verbose output (equivalent to --log-level=debug)")
	rootCmd.PersistentFlags().String("log-level", "info", "log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().String("state-db", "", "SQLite file holding detection state")
	rootCmd.PersistentFlags().String("assets-dir", "", "directory holding uploaded PDFs")

	_ = viper.BindPFlag("verbose", rootCmd.PersistentFlags().Lookup("verbose"))
	_ = viper.BindPFlag("log_level", rootCmd.PersistentFlags().Lookup("log-level"))
	_ = viper.BindPFlag("storage.state_db", rootCmd.PersistentFlags().Lookup("state-db"))
	_ = viper.BindPFlag("storage.assets_dir", rootCmd.PersistentFlags().Lookup("assets-dir"))

	rootCmd.PersistentPreRun = func(cmd *cobra.Command, args []string) {
		if globalConfig == nil {
			initConfig()
		}

		var logLevel slog.Level
		if globalConfig.Verbose {
			logLevel = slog.LevelDebug
		} else {
			switch globalConfig.LogLevel {
			case "debug":
				logLevel = slog.LevelDebug
			case "warn":
				logLevel = slog.LevelWarn
			case "error":
				logLevel = slog.LevelError
			default:
				logLevel = slog.LevelInfo
			}
		}

		logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{
			Level: logLevel,
		}))
		slog.SetDefault(logger)
	}
}

// initConfig reads in config file and ENV variables if set.
func initConfig() {
	configLoader = config.NewLoader()

	var err error
	globalConfig, err = configLoader.LoadWithFile(cfgFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading configuration: %v\n", err)
		os.Exit(1)
	}
}

// GetConfig returns the configuration with bound flags applied.
func GetConfig() *config.Config {
	if globalConfig == nil {
		initConfig()
	}

	// Flags are bound after the first load, so unmarshal again.
	var cfg config.Config
	if err := configLoader.GetViper().Unmarshal(&cfg); err != nil {
		fmt.Fprintf(os.Stderr, "Error unmarshaling updated configuration: %v\n", err)
		return globalConfig
	}
	return &cfg
}
