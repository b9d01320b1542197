package main

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

var (
	// Version information set at build time.
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

var (
	cfgFile    string
	logLevel   string
	summaryOut string
	log        *logrus.Logger
)

const usageLine = "Usage: indexseed <source_data_directory> <index_directory> <prefix>"

// errUsage reports a wrong number of positional arguments.
var errUsage = errors.New("expected exactly 3 arguments")

func main() {
	log = logrus.New()
	log.SetOutput(os.Stdout)
	log.SetFormatter(&logrus.TextFormatter{
		FullTimestamp: true,
	})

	if err := rootCmd.Execute(); err != nil {
		if errors.Is(err, errUsage) {
			fmt.Println(usageLine)
			os.Exit(1)
		}

		log.WithError(err).Fatal("Failed to prepare index")
	}
}

var rootCmd = &cobra.Command{
	Use:   "indexseed <source_data_directory> <index_directory> <prefix>",
	Short: "Seed a completed index into storage and the job registry",
	Long: `Indexseed uploads a pre-built dataset and its index artifacts into two new
storage containers, then registers both containers and a completed indexing
job in the document database so the job tracking service reports them.

Requires STORAGE_ACCOUNT_BLOB_URL and COSMOS_URI_ENDPOINT for the default
Azure backends.`,
	Version:       fmt.Sprintf("%s (commit: %s, built: %s)", version, commit, date),
	Args:          exactArgs(3),
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		level, err := logrus.ParseLevel(logLevel)
		if err != nil {
			return fmt.Errorf("invalid log level %q: %w", logLevel, err)
		}

		log.SetLevel(level)

		return nil
	},
	RunE: runPrepare,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file path")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "info",
		"log level ("+strings.Join(logLevels(), ", ")+")")
	rootCmd.Flags().StringVar(&summaryOut, "summary-out", "",
		"write a YAML summary of the run to this path")
}

// exactArgs is cobra.ExactArgs with a sentinel error so main can print usage.
func exactArgs(n int) cobra.PositionalArgs {
	return func(cmd *cobra.Command, args []string) error {
		if len(args) != n {
			return fmt.Errorf("%w, received %d", errUsage, len(args))
		}

		return nil
	}
}

func logLevels() []string {
	levels := make([]string, 0, len(logrus.AllLevels))
	for _, level := range logrus.AllLevels {
		levels = append(levels, level.String())
	}

	return levels
}
