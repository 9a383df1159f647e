package main

import (
	"fmt"

	"github.com/spf13/cobra"

	docsynccmd "github.com/goliatone/go-docsync/internal/commands/docsync"
	"github.com/goliatone/go-docsync/internal/gitsync"
	"github.com/goliatone/go-docsync/internal/localdocs"
)

var syncCmd = &cobra.Command{
	Use:   "sync",
	Short: "Sync documentation from the configured git repository",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		force, _ := cmd.Flags().GetBool("force")
		out := cmd.OutOrStdout()

		var run *gitsync.SyncRun
		app, err := newApp(cmd, docsynccmd.WithSyncObserver(func(r *gitsync.SyncRun, _ error) {
			run = r
		}))
		if err != nil {
			return err
		}
		defer app.Close()

		if force {
			fmt.Fprintln(out, "Starting full git sync...")
		} else {
			fmt.Fprintln(out, "Starting differential git sync...")
		}

		err = app.Commands.Sync.Execute(cmd.Context(), docsynccmd.SyncRepositoryCommand{
			Force:   force,
			Trigger: docsynccmd.TriggerManual,
		})
		if err != nil {
			return fmt.Errorf("sync failed: %w", err)
		}
		if run == nil {
			return fmt.Errorf("sync failed: no run recorded")
		}
		renderSyncSummary(out, run)
		return nil
	},
}

var rollbackCmd = &cobra.Command{
	Use:   "rollback <run-id>",
	Short: "Delete git pages created after a successful sync run",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := parseRunID(args[0])
		if err != nil {
			return err
		}

		var deleted int
		var target *gitsync.SyncRun
		app, err := newApp(cmd, docsynccmd.WithRollbackObserver(func(run *gitsync.SyncRun, n int) {
			target, deleted = run, n
		}))
		if err != nil {
			return err
		}
		defer app.Close()

		if err := app.Commands.Rollback.Execute(cmd.Context(), docsynccmd.RollbackSyncCommand{RunID: id}); err != nil {
			return fmt.Errorf("rollback failed: %w", err)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Rolled back to %s, deleted %d pages\n", target.ShortHash(), deleted)
		return nil
	},
}

var cleanupCmd = &cobra.Command{
	Use:   "cleanup",
	Short: "Delete old sync run records",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		keep, _ := cmd.Flags().GetInt("keep")

		app, err := newApp(cmd)
		if err != nil {
			return err
		}
		defer app.Close()

		if keep <= 0 {
			keep = app.Config.Sync.RetainRuns
		}
		deleted, err := app.Sync.PurgeRuns(cmd.Context(), keep)
		if err != nil {
			return fmt.Errorf("cleanup failed: %w", err)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Cleaned up %d old git sync records.\n", deleted)
		return nil
	},
}

var importLocalCmd = &cobra.Command{
	Use:   "import-local <dir>",
	Short: "Import a local docs folder as cms pages",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		var stats localdocs.Stats
		app, err := newApp(cmd, docsynccmd.WithImportObserver(func(s localdocs.Stats) {
			stats = s
		}))
		if err != nil {
			return err
		}
		defer app.Close()

		if err := app.Commands.Import.Execute(cmd.Context(), docsynccmd.ImportLocalDocsCommand{Directory: args[0]}); err != nil {
			return fmt.Errorf("import failed: %w", err)
		}
		renderImportStats(cmd.OutOrStdout(), stats)
		return nil
	},
}
