package cli

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/ppiankov/rulinstat/internal/logging"
	"github.com/ppiankov/rulinstat/internal/model"
)

// Version is set at build time
var Version = "v0.1.0"

var (
	cfgFile   string
	verbose   bool
	logLevel  string
	logFormat string

	// Loaded before every command runs
	cfg    *model.Config
	logger *slog.Logger
)

// flagBindings maps a command's flags to viper keys
var flagBindings = map[*cobra.Command]map[string]string{}

// rootCmd represents the base command
var rootCmd = &cobra.Command{
	Use:   "rulinstat",
	Short: "Rulinstat - place and character frequency analysis for 儒林外史",
	Long: `Rulinstat counts how often known place names and character names appear
in each chapter of a classical Chinese novel (default: 儒林外史).

It splits the text into chapters, counts literal occurrences of every
spelling variant in a fixed dictionary, and exports frequency tables,
co-occurrence tables, charts and a map. A read-only dashboard serves
the results.

Counts are literal string matches. Co-occurrence means both names appear
in the same chapter, not in the same scene.`,
	SilenceErrors:     true,
	SilenceUsage:      true,
	PersistentPreRunE: setup,
}

// Execute runs the root command
func Execute() error {
	return rootCmd.Execute()
}

// versionCmd represents the version command
var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Long:  `Display the version number of Rulinstat.`,
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("rulinstat %s\n", Version)
	},
}

func init() {
	cobra.OnInitialize(initConfig)

	// Global flags
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default: $HOME/.rulinstat/config.yaml)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().StringVar(&logFormat, "log-format", "", "log format (console, json)")

	// Bind flags to viper
	_ = viper.BindPFlag("output.verbose", rootCmd.PersistentFlags().Lookup("verbose"))
	_ = viper.BindPFlag("log.level", rootCmd.PersistentFlags().Lookup("log-level"))
	_ = viper.BindPFlag("log.format", rootCmd.PersistentFlags().Lookup("log-format"))

	// Add subcommands
	rootCmd.AddCommand(versionCmd)
}

// initConfig reads in .env, the config file and ENV variables
func initConfig() {
	// .env never overrides variables already set
	_ = godotenv.Load()

	if cfgFile != "" {
		// Use config file from the flag
		viper.SetConfigFile(cfgFile)
	} else {
		home, err := os.UserHomeDir()
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error finding home directory: %v\n", err)
			return
		}

		// Search for config in home directory
		viper.AddConfigPath(filepath.Join(home, ".rulinstat"))
		viper.SetConfigType("yaml")
		viper.SetConfigName("config")
	}

	if err := setDefaults(model.DefaultConfig()); err != nil {
		fmt.Fprintf(os.Stderr, "Error setting defaults: %v\n", err)
	}
	// Keys omitted from the YAML defaults still resolve from the environment
	for _, key := range []string{"llm.api_key", "llm.base_url", "http.http_proxy", "http.https_proxy"} {
		viper.SetDefault(key, "")
	}

	// Read in environment variables that match RULINSTAT_* (output.dir -> RULINSTAT_OUTPUT_DIR)
	viper.SetEnvPrefix("RULINSTAT")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	// If a config file is found, read it in
	if err := viper.ReadInConfig(); err == nil && verbose {
		fmt.Fprintf(os.Stderr, "Using config file: %s\n", viper.ConfigFileUsed())
	}
}

// setDefaults registers every field of defaults as a viper default so that
// AutomaticEnv can resolve nested keys.
func setDefaults(defaults *model.Config) error {
	data, err := yaml.Marshal(defaults)
	if err != nil {
		return err
	}

	var tree map[string]any
	if err := yaml.Unmarshal(data, &tree); err != nil {
		return err
	}

	var walk func(prefix string, node map[string]any)
	walk = func(prefix string, node map[string]any) {
		for k, v := range node {
			key := k
			if prefix != "" {
				key = prefix + "." + k
			}
			if child, ok := v.(map[string]any); ok {
				walk(key, child)
				continue
			}
			viper.SetDefault(key, v)
		}
	}
	walk("", tree)
	return nil
}

// bindFlag binds a command flag to a viper key when that command runs
func bindFlag(cmd *cobra.Command, flag, key string) {
	if flagBindings[cmd] == nil {
		flagBindings[cmd] = make(map[string]string)
	}
	flagBindings[cmd][flag] = key
}

// setup binds the running command's flags, loads the configuration and creates the logger
func setup(cmd *cobra.Command, args []string) error {
	for flag, key := range flagBindings[cmd] {
		if err := viper.BindPFlag(key, cmd.Flags().Lookup(flag)); err != nil {
			return fmt.Errorf("bind flag %s: %w", flag, err)
		}
	}

	loaded, err := loadConfig()
	if err != nil {
		return err
	}
	cfg = loaded

	l, err := logging.New(os.Stderr, logging.Options{Level: cfg.Log.Level, Format: cfg.Log.Format})
	if err != nil {
		return err
	}
	if cfg.Output.Verbose && cfg.Log.Level == "info" {
		l, _ = logging.New(os.Stderr, logging.Options{Level: "debug", Format: cfg.Log.Format})
	}
	logger = l
	slog.SetDefault(logger)

	return nil
}

// loadConfig resolves the configuration hierarchy into a Config
func loadConfig() (*model.Config, error) {
	c := model.DefaultConfig()
	if err := viper.Unmarshal(c); err != nil {
		return nil, fmt.Errorf("parse configuration: %w", err)
	}
	return c, nil
}
