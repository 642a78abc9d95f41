package main

import (
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/spf13/cobra"
	"golang.org/x/text/language"

	"github.com/eclipse-openj9/openj9-omr-sub008/config"
	"github.com/eclipse-openj9/openj9-omr-sub008/internal/logger"
)

var (
	// Global flags
	verbose    bool
	quiet      bool
	jsonOut    bool
	configPath string
	locale     string

	// cfg is the effective configuration, loaded before every command.
	cfg config.Config
)

var rootCmd = &cobra.Command{
	Use:   "omrmemctl",
	Short: "Exercise and inspect the port library memory allocators",
	Long: `omrmemctl runs allocation workloads against the sub-4GB tagged allocator,
prints per-category accounting and allocator statistics, and checks whether
the host can reserve memory below the 4GB line.`,
	Version:           "0.1.0",
	SilenceUsage:      true,
	PersistentPreRunE: loadConfig,
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable verbose output and debug logging to stderr")
	rootCmd.PersistentFlags().
		BoolVarP(&quiet, "quiet", "q", false, "Suppress all output except errors")
	rootCmd.PersistentFlags().BoolVar(&jsonOut, "json", false, "Output in JSON format")
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "TOML configuration file")
	rootCmd.PersistentFlags().StringVar(&locale, "locale", "en", "Locale for number formatting in reports")
}

func execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// loadConfig reads the configuration and sets up logging.
func loadConfig(_ *cobra.Command, _ []string) error {
	c, err := config.Load(configPath)
	if err != nil {
		return err
	}
	cfg = c

	opts, err := cfg.Log.LoggerOptions(nil)
	if err != nil {
		return err
	}
	if verbose {
		opts = logger.Options{Enabled: true, Writer: os.Stderr, Level: slog.LevelDebug}
	}
	return logger.Init(opts)
}

// reportTag returns the language used to format numbers.
func reportTag() language.Tag {
	tag, err := language.Parse(locale)
	if err != nil {
		return language.English
	}
	return tag
}

// printInfo prints an info message if not in quiet mode
func printInfo(w io.Writer, format string, args ...any) {
	if !quiet {
		fmt.Fprintf(w, format, args...)
	}
}

// printVerbose prints a verbose message if verbose mode is enabled
func printVerbose(w io.Writer, format string, args ...any) {
	if verbose && !quiet {
		fmt.Fprintf(w, format, args...)
	}
}

// printJSON outputs data as JSON
func printJSON(w io.Writer, v any) error {
	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	return encoder.Encode(v)
}
