package cmd

import (
	"context"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/foolean/cumulus-dm/internal/service/installer"
)

var (
	// installPrefix is the install prefix relative destinations resolve against.
	installPrefix string

	// installCmd places a built package under the install prefix.
	installCmd = &cobra.Command{
		Use:   "install <package>",
		Short: "Install a package archive under the prefix",
		Args:  cobra.ExactArgs(1),
		RunE: func(_ *cobra.Command, args []string) error {
			// Setup graceful shutdown handling.
			ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
			defer stop()

			options := &installer.Options{
				PackagePath: args[0],
				Prefix:      installPrefix,
			}

			return installer.Run(ctx, options)
		},
	}
)

//nolint:gochecknoinits // Required by Cobra CLI framework architecture.
func init() {
	installCmd.Flags().StringVarP(&installPrefix, "prefix", "p", installer.DefaultPrefix, "install prefix")
	rootCmd.AddCommand(installCmd)
}
