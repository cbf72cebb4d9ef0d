package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/foolean/cumulus-dm/internal/repository/record"
	"github.com/foolean/cumulus-dm/internal/service/installer"
)

var (
	// infoPrefix is the install prefix whose record is inspected.
	infoPrefix string

	// infoCmd prints the metadata recorded at install time.
	infoCmd = &cobra.Command{
		Use:   "info",
		Short: "Print metadata of the installed package",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			repo := record.NewFileRepository(record.DefaultPath(infoPrefix))

			rec, err := repo.Load(cmd.Context())
			if err != nil {
				return fmt.Errorf("load installed record: %w", err)
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "name: %s\n", rec.Name)
			fmt.Fprintf(out, "version: %s\n", rec.Version)

			if rec.Description != "" {
				fmt.Fprintf(out, "description: %s\n", rec.Description)
			}

			if rec.Author != "" {
				fmt.Fprintf(out, "author: %s <%s>\n", rec.Author, rec.AuthorEmail)
			}

			if rec.URL != "" {
				fmt.Fprintf(out, "url: %s\n", rec.URL)
			}

			if rec.License != "" {
				fmt.Fprintf(out, "license: %s\n", rec.License)
			}

			fmt.Fprintf(out, "files: %d\n", len(rec.Files))
			fmt.Fprintf(out, "installed_at: %s\n", rec.InstalledAt.Format("2006-01-02 15:04:05 MST"))

			if rec.InstalledBy != nil {
				fmt.Fprintf(out, "installed_by: %s@%s\n", rec.InstalledBy.Username, rec.InstalledBy.Hostname)
			}

			return nil
		},
	}
)

//nolint:gochecknoinits // Required by Cobra CLI framework architecture.
func init() {
	infoCmd.Flags().StringVarP(&infoPrefix, "prefix", "p", installer.DefaultPrefix, "install prefix")
	rootCmd.AddCommand(infoCmd)
}
