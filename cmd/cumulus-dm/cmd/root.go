package cmd

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/foolean/cumulus-dm/internal/logger"
	"github.com/foolean/cumulus-dm/internal/version"
)

var (
	// logLevel is the minimum level for console logging.
	logLevel string

	// rootCmd represents the base command for the packaging toolchain.
	rootCmd = &cobra.Command{
		Use:   "cumulus-dm",
		Short: "Build and install cumulus-dm packages",
		Long:  "cumulus-dm is a manifest-driven packaging toolchain: build produces a checksummed release archive from the package manifest, install places its files under a prefix, and verify, info and uninstall operate on the installed record.",
		PersistentPreRun: func(_ *cobra.Command, _ []string) {
			if lvl, ok := logger.ParseLogLevel(logLevel); ok {
				logger.SetLevel(lvl)
			}
		},
	}
)

// Execute runs the cumulus-dm CLI and exits with non-zero status on error.
func Execute() {
	version.AttachCobraVersionCommand(rootCmd)

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

//nolint:gochecknoinits // Required by Cobra CLI framework architecture.
func init() {
	// Setup command flags with consistent naming and descriptions.
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "info", "minimum log level (debug|info|warn|error)")
}
