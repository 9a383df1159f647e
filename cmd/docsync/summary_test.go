package main

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/sebdah/goldie/v2"

	"github.com/goliatone/go-docsync/internal/gitsync"
	"github.com/goliatone/go-docsync/internal/localdocs"
)

func newGoldie(t *testing.T) *goldie.Goldie {
	t.Helper()
	return goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
}

func strPtr(value string) *string { return &value }

func TestRenderSyncSummary(t *testing.T) {
	run := &gitsync.SyncRun{
		CommitHash:    "9fceb02d0ae598e95dc970b74767f19372d61af8",
		CommitAuthor:  strPtr("Ada Lovelace"),
		CommitMessage: strPtr("Update install guide\n\nMention the new flags."),
		Status:        gitsync.RunSuccess,
		FilesChanged:  3,
		Details:       &gitsync.SyncDetails{SyncType: gitsync.SyncDifferential, ProcessedFiles: 2, DeletedFiles: 1},
	}

	var buf bytes.Buffer
	renderSyncSummary(&buf, run)
	newGoldie(t).Assert(t, "sync_summary", buf.Bytes())
}

func TestRenderSyncSummaryWithoutDetails(t *testing.T) {
	run := &gitsync.SyncRun{CommitHash: "abc123", Status: gitsync.RunSuccess}

	var buf bytes.Buffer
	renderSyncSummary(&buf, run)
	newGoldie(t).Assert(t, "sync_summary_unknown", buf.Bytes())
}

func TestRenderImportStats(t *testing.T) {
	stats := localdocs.Stats{
		Navigation: 2,
		Groups:     1,
		Documents:  5,
		Errors:     []string{"guide/broken.md: front-matter is not valid YAML"},
	}

	var buf bytes.Buffer
	renderImportStats(&buf, stats)
	newGoldie(t).Assert(t, "import_stats", buf.Bytes())
}

func TestRenderRunsListsEveryRun(t *testing.T) {
	created := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	runs := []*gitsync.SyncRun{
		{
			ID:           uuid.New(),
			CommitHash:   "1111111aaaaaaa",
			Status:       gitsync.RunSuccess,
			FilesChanged: 4,
			Details:      &gitsync.SyncDetails{SyncType: gitsync.SyncFull},
			CreatedAt:    created,
		},
		{
			ID:           uuid.New(),
			CommitHash:   "2222222bbbbbbb",
			Status:       gitsync.RunFailed,
			CommitAuthor: strPtr("Grace Hopper"),
			CreatedAt:    created.Add(time.Hour),
		},
	}

	var buf bytes.Buffer
	if err := renderRuns(&buf, runs); err != nil {
		t.Fatalf("renderRuns returned error: %v", err)
	}
	out := buf.String()
	for _, want := range []string{"1111111", "2222222", "success", "failed", "full", "unknown", "Grace Hopper", "2024-03-01T12:00:00Z"} {
		if !strings.Contains(out, want) {
			t.Fatalf("expected %q in table output:\n%s", want, out)
		}
	}
}

func TestRenderRunsEmpty(t *testing.T) {
	var buf bytes.Buffer
	if err := renderRuns(&buf, nil); err != nil {
		t.Fatalf("renderRuns returned error: %v", err)
	}
	if buf.String() != "No sync runs recorded.\n" {
		t.Fatalf("unexpected output %q", buf.String())
	}
}
