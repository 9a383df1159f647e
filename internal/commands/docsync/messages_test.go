package docsynccmd

import (
	"testing"

	"github.com/google/uuid"
)

func TestMessageValidation(t *testing.T) {
	cases := []struct {
		name    string
		msg     interface{ Validate() error }
		wantErr bool
	}{
		{name: "sync default trigger", msg: SyncRepositoryCommand{}},
		{name: "sync webhook trigger", msg: SyncRepositoryCommand{Trigger: TriggerWebhook}},
		{name: "sync unknown trigger", msg: SyncRepositoryCommand{Trigger: "cron"}, wantErr: true},
		{name: "rollback with run", msg: RollbackSyncCommand{RunID: uuid.New()}},
		{name: "rollback without run", msg: RollbackSyncCommand{}, wantErr: true},
		{name: "cleanup default", msg: CleanupRunsCommand{}},
		{name: "cleanup negative", msg: CleanupRunsCommand{Keep: -1}, wantErr: true},
		{name: "import directory", msg: ImportLocalDocsCommand{Directory: "docs"}},
		{name: "import blank directory", msg: ImportLocalDocsCommand{Directory: "  "}, wantErr: true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := tc.msg.Validate()
			if tc.wantErr && err == nil {
				t.Fatal("expected validation error")
			}
			if !tc.wantErr && err != nil {
				t.Fatalf("unexpected validation error: %v", err)
			}
		})
	}
}

func TestMessageTypes(t *testing.T) {
	if got := (SyncRepositoryCommand{}).Type(); got != "docsync.repository.sync" {
		t.Fatalf("unexpected sync type %q", got)
	}
	if got := (RollbackSyncCommand{}).Type(); got != "docsync.repository.rollback" {
		t.Fatalf("unexpected rollback type %q", got)
	}
	if got := (CleanupRunsCommand{}).Type(); got != "docsync.runs.cleanup" {
		t.Fatalf("unexpected cleanup type %q", got)
	}
}
