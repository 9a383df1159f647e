package main

import (
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/olekukonko/tablewriter"

	"github.com/goliatone/go-docsync/internal/gitsync"
	"github.com/goliatone/go-docsync/internal/localdocs"
)

// renderSyncSummary prints the attribute block shown after a successful sync.
func renderSyncSummary(w io.Writer, run *gitsync.SyncRun) {
	syncType := run.SyncTypeName()
	fmt.Fprintf(w, "Sync completed successfully (type: %s)\n", syncType)
	rows := [][2]string{
		{"Commit", run.ShortHash()},
		{"Author", deref(run.CommitAuthor)},
		{"Message", firstLine(deref(run.CommitMessage))},
		{"Files Changed", strconv.Itoa(run.FilesChanged)},
		{"Sync Type", syncType},
	}
	for _, row := range rows {
		fmt.Fprintf(w, "  %-14s %s\n", row[0]+":", row[1])
	}
}

// renderImportStats prints the counts of a local import and any errors.
func renderImportStats(w io.Writer, stats localdocs.Stats) {
	fmt.Fprintf(w, "Imported %d navigation, %d groups, %d documents\n", stats.Navigation, stats.Groups, stats.Documents)
	for _, msg := range stats.Errors {
		fmt.Fprintf(w, "  error: %s\n", msg)
	}
}

// renderRuns prints sync runs newest first as a table.
func renderRuns(w io.Writer, runs []*gitsync.SyncRun) error {
	if len(runs) == 0 {
		fmt.Fprintln(w, "No sync runs recorded.")
		return nil
	}
	table := tablewriter.NewTable(w)
	table.Header("ID", "Commit", "Status", "Type", "Files", "Author", "Created")
	for _, run := range runs {
		if err := table.Append(
			run.ID.String(),
			run.ShortHash(),
			string(run.Status),
			run.SyncTypeName(),
			strconv.Itoa(run.FilesChanged),
			deref(run.CommitAuthor),
			run.CreatedAt.UTC().Format(time.RFC3339),
		); err != nil {
			return err
		}
	}
	return table.Render()
}

func deref(value *string) string {
	if value == nil {
		return ""
	}
	return *value
}

func firstLine(value string) string {
	line, _, _ := strings.Cut(strings.TrimSpace(value), "\n")
	return line
}
