package cmd

import (
	"context"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/foolean/cumulus-dm/internal/service/installer"
)

var (
	// uninstallPrefix is the install prefix the package was installed under.
	uninstallPrefix string

	// uninstallCmd removes every file named by the installed record.
	uninstallCmd = &cobra.Command{
		Use:   "uninstall",
		Short: "Remove an installed package",
		Args:  cobra.NoArgs,
		RunE: func(_ *cobra.Command, _ []string) error {
			// Setup graceful shutdown handling.
			ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
			defer stop()

			options := &installer.UninstallOptions{
				Prefix: uninstallPrefix,
			}

			return installer.Uninstall(ctx, options)
		},
	}
)

//nolint:gochecknoinits // Required by Cobra CLI framework architecture.
func init() {
	uninstallCmd.Flags().StringVarP(&uninstallPrefix, "prefix", "p", installer.DefaultPrefix, "install prefix")
	rootCmd.AddCommand(uninstallCmd)
}
