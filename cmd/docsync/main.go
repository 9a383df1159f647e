package main

import (
	"context"
	"os"

	"github.com/spf13/cobra"

	"github.com/goliatone/go-docsync/cmd/docsync/internal/bootstrap"
	docsynccmd "github.com/goliatone/go-docsync/internal/commands/docsync"
)

var configPath string

// appBuilder is swapped in tests.
var appBuilder = func(ctx context.Context, opts bootstrap.Options, cmdOpts ...docsynccmd.Option) (*bootstrap.App, error) {
	return bootstrap.Build(ctx, opts, cmdOpts...)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// newApp builds the runtime for a command. The caller must Close it.
func newApp(cmd *cobra.Command, cmdOpts ...docsynccmd.Option) (*bootstrap.App, error) {
	return appBuilder(cmd.Context(), bootstrap.Options{
		ConfigPath: configPath,
		LogOutput:  cmd.ErrOrStderr(),
	}, cmdOpts...)
}

var rootCmd = &cobra.Command{
	Use:          "docsync",
	Short:        "Keep documentation pages in sync with a git repository",
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "Path to a docsync TOML config file")

	rootCmd.AddCommand(syncCmd)
	syncCmd.Flags().Bool("force", false, "Force a full re-sync instead of a differential one")

	rootCmd.AddCommand(rollbackCmd)

	rootCmd.AddCommand(testConnectionCmd)
	testConnectionCmd.Flags().String("url", "", "Repository URL, defaults to the stored one")
	testConnectionCmd.Flags().String("branch", "", "Branch, defaults to the stored one")
	testConnectionCmd.Flags().String("token", "", "Access token, defaults to the stored one")

	rootCmd.AddCommand(cleanupCmd)
	cleanupCmd.Flags().IntP("keep", "k", 0, "Number of most recent sync runs to keep (defaults to sync.retain_runs)")

	rootCmd.AddCommand(importLocalCmd)

	rootCmd.AddCommand(migrateCmd)
	migrateCmd.AddCommand(migrateStatusCmd)

	rootCmd.AddCommand(runsCmd)
	runsCmd.Flags().IntP("limit", "n", 20, "Maximum number of sync runs to show")

	rootCmd.AddCommand(configureCmd)
	configureCmd.Flags().String("url", "", "Repository URL (https://github.com/<owner>/<repo>)")
	configureCmd.Flags().String("branch", "", "Branch to track")
	configureCmd.Flags().String("token", "", "Access token for private repositories")
	configureCmd.Flags().Int("frequency", 0, "Scheduled sync frequency in minutes")
	configureCmd.Flags().String("mode", "", "Content mode: git or cms")

	rootCmd.AddCommand(serveCmd)
}
