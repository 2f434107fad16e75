package command

// root.go defines the root command for the taskhub CLI and loads its configuration.

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

const defaultAPIURL = "http://localhost:8080"

var (
	apiURL  string // Global flag for API server URL
	cfgFile string // config file path
	verbose bool

	settings = viper.New()
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "taskhub",
	Short: "taskhub - task notifications from the command line",
	Long: `taskhub lets you follow the comment notifications of your tasks:
- list unread notifications, restored from a local cache and merged with the server
- watch the live channel and see new notifications as they arrive
- mark notifications read or dismiss them locally
- comment on a task

Use "taskhub [command] --help" to see all available commands.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		return loadConfig(cmd)
	},
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	// Global persistent flags = available to all subcommands
	rootCmd.PersistentFlags().StringVar(&apiURL, "api", defaultAPIURL, "API server URL")
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default $HOME/.taskhub/config.yaml)")
	rootCmd.PersistentFlags().String("cache", "", "local notification cache (default $HOME/.taskhub/cache.db)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "log transport events to stderr")

	settings.BindPFlag("api_url", rootCmd.PersistentFlags().Lookup("api"))
	settings.BindPFlag("cache_path", rootCmd.PersistentFlags().Lookup("cache"))

	rootCmd.AddCommand(authCmd)
	rootCmd.AddCommand(notificationsCmd)
	rootCmd.AddCommand(commentCmd)
}

// DefaultConfigPath returns ~/.taskhub/config.yaml.
func DefaultConfigPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".", "config.yaml")
	}
	return filepath.Join(home, ".taskhub", "config.yaml")
}

// loadConfig layers flags over TASKHUB_* env vars over the YAML file over defaults.
// A missing config file is not an error.
func loadConfig(cmd *cobra.Command) error {
	path := cfgFile
	if path == "" {
		path = DefaultConfigPath()
	}
	settings.SetConfigFile(path)
	settings.SetConfigType("yaml")
	settings.SetDefault("api_url", defaultAPIURL)
	settings.SetEnvPrefix("taskhub")
	settings.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	settings.AutomaticEnv()

	if err := settings.ReadInConfig(); err != nil {
		if _, ok := err.(*os.PathError); !ok {
			if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
				return fmt.Errorf("reading config %s: %w", path, err)
			}
		}
	}

	apiURL = settings.GetString("api_url")
	return nil
}

// cliLogger is quiet unless --verbose is set.
func cliLogger() *slog.Logger {
	level := slog.LevelError
	if verbose {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
}
