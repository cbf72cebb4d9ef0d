package cmd

import (
	"context"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/foolean/cumulus-dm/internal/service/checker"
	"github.com/foolean/cumulus-dm/internal/service/installer"
)

var (
	// verifyPrefix is the install prefix to verify against.
	verifyPrefix string

	// verifyCmd re-hashes installed files against the installed record.
	verifyCmd = &cobra.Command{
		Use:   "verify",
		Short: "Verify installed files against the installed record",
		Args:  cobra.NoArgs,
		RunE: func(_ *cobra.Command, _ []string) error {
			// Setup graceful shutdown handling.
			ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
			defer stop()

			options := &checker.Options{
				Prefix: verifyPrefix,
			}

			return checker.Run(ctx, options)
		},
	}
)

//nolint:gochecknoinits // Required by Cobra CLI framework architecture.
func init() {
	verifyCmd.Flags().StringVarP(&verifyPrefix, "prefix", "p", installer.DefaultPrefix, "install prefix")
	rootCmd.AddCommand(verifyCmd)
}
