package main

import (
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/goliatone/go-docsync/cmd/docsync/internal/bootstrap"
	"github.com/goliatone/go-docsync/internal/gitsync"
	"github.com/goliatone/go-docsync/internal/migrations"
	"github.com/goliatone/go-docsync/internal/repoconfig"
)

var testConnectionCmd = &cobra.Command{
	Use:   "test-connection",
	Short: "Check that the repository and branch are reachable",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		url, _ := cmd.Flags().GetString("url")
		branch, _ := cmd.Flags().GetString("branch")
		token, _ := cmd.Flags().GetString("token")

		app, err := newApp(cmd)
		if err != nil {
			return err
		}
		defer app.Close()

		ok := app.Sync.TestConnection(cmd.Context(), gitsync.ConnectionParams{
			URL:    strings.TrimSpace(url),
			Branch: strings.TrimSpace(branch),
			Token:  strings.TrimSpace(token),
		})
		if !ok {
			return errors.New("connection failed")
		}
		fmt.Fprintln(cmd.OutOrStdout(), "Connection successful")
		return nil
	},
}

var runsCmd = &cobra.Command{
	Use:   "runs",
	Short: "List recent sync runs",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		limit, _ := cmd.Flags().GetInt("limit")

		app, err := newApp(cmd)
		if err != nil {
			return err
		}
		defer app.Close()

		runs, err := app.Sync.LatestRuns(cmd.Context(), limit)
		if err != nil {
			return err
		}
		return renderRuns(cmd.OutOrStdout(), runs)
	},
}

var configureCmd = &cobra.Command{
	Use:   "configure",
	Short: "Update the stored repository configuration",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		app, err := newApp(cmd)
		if err != nil {
			return err
		}
		defer app.Close()

		cfg, err := app.RepoConfig.Get(cmd.Context())
		if err != nil {
			return err
		}

		flags := cmd.Flags()
		if flags.Changed("url") {
			cfg.RepositoryURL, _ = flags.GetString("url")
		}
		if flags.Changed("branch") {
			cfg.Branch, _ = flags.GetString("branch")
		}
		if flags.Changed("token") {
			cfg.AccessToken, _ = flags.GetString("token")
		}
		if flags.Changed("frequency") {
			cfg.SyncFrequency, _ = flags.GetInt("frequency")
		}
		if flags.Changed("mode") {
			mode, _ := flags.GetString("mode")
			cfg.ContentMode = repoconfig.ContentMode(strings.ToLower(strings.TrimSpace(mode)))
		}
		if err := cfg.Validate(); err != nil {
			return fmt.Errorf("invalid repository configuration: %w", err)
		}

		saved, err := app.RepoConfig.Save(cmd.Context(), cfg)
		if err != nil {
			return err
		}
		renderRepositoryConfig(cmd, saved)
		return nil
	},
}

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Apply pending database migrations",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		app, err := newMigrationApp(cmd)
		if err != nil {
			return err
		}
		defer app.Close()

		if err := migrations.MigrateUp(app.DB.DB, app.Dialect); err != nil {
			return err
		}
		report, err := migrations.Status(app.DB.DB, app.Dialect)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Schema at version %d (%s)\n", report.Version, app.Dialect)
		return nil
	},
}

var migrateStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show the applied and latest schema versions",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		app, err := newMigrationApp(cmd)
		if err != nil {
			return err
		}
		defer app.Close()

		report, err := migrations.Status(app.DB.DB, app.Dialect)
		if err != nil {
			return err
		}
		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "Applied: %d\nLatest:  %d\nDirty:   %t\n", report.Version, report.Latest, report.Dirty)
		if report.Pending() {
			fmt.Fprintln(out, "Run `docsync migrate` to apply pending migrations.")
		}
		return nil
	},
}

func newMigrationApp(cmd *cobra.Command) (*bootstrap.App, error) {
	return appBuilder(cmd.Context(), bootstrap.Options{
		ConfigPath:     configPath,
		LogOutput:      cmd.ErrOrStderr(),
		SkipMigrations: true,
	})
}

func renderRepositoryConfig(cmd *cobra.Command, cfg *repoconfig.RepositoryConfig) {
	out := cmd.OutOrStdout()
	token := "not set"
	if strings.TrimSpace(cfg.AccessToken) != "" {
		token = "set"
	}
	fmt.Fprintln(out, "Repository configuration saved")
	fmt.Fprintf(out, "  %-11s %s\n", "Mode:", cfg.ContentMode)
	fmt.Fprintf(out, "  %-11s %s\n", "Repository:", cfg.RepositoryURL)
	fmt.Fprintf(out, "  %-11s %s\n", "Branch:", cfg.BranchOrDefault())
	fmt.Fprintf(out, "  %-11s %d minutes\n", "Frequency:", cfg.SyncFrequency)
	fmt.Fprintf(out, "  %-11s %s\n", "Token:", token)
}

func parseRunID(value string) (uuid.UUID, error) {
	id, err := uuid.Parse(strings.TrimSpace(value))
	if err != nil {
		return uuid.Nil, fmt.Errorf("invalid run id %q: %w", value, err)
	}
	return id, nil
}
