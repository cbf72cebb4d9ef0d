package cmd

import (
	"context"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/foolean/cumulus-dm/internal/manifest"
	"github.com/foolean/cumulus-dm/internal/service/builder"
)

var (
	// buildOutputDir is where the package archive is written.
	buildOutputDir string

	// buildCmd packages the manifest's declared files into an archive.
	buildCmd = &cobra.Command{
		Use:   "build [manifest]",
		Short: "Build a package archive from the manifest",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(_ *cobra.Command, args []string) error {
			// Setup graceful shutdown handling.
			ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
			defer stop()

			manifestPath := manifest.DefaultManifestFilename
			if len(args) > 0 {
				manifestPath = args[0]
			}

			options := &builder.Options{
				ManifestPath: manifestPath,
				OutputDir:    buildOutputDir,
			}

			return builder.Run(ctx, options)
		},
	}
)

//nolint:gochecknoinits // Required by Cobra CLI framework architecture.
func init() {
	buildCmd.Flags().StringVarP(&buildOutputDir, "output", "o", ".", "directory the package archive is written to")
	rootCmd.AddCommand(buildCmd)
}
