package webhook_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/goliatone/go-docsync/internal/repoconfig"
	"github.com/goliatone/go-docsync/internal/scheduler"
	"github.com/goliatone/go-docsync/internal/webhook"
)

func gitConfig() *repoconfig.RepositoryConfig {
	cfg := repoconfig.Default()
	cfg.ContentMode = repoconfig.ContentModeGit
	cfg.RepositoryURL = "https://github.com/acme/handbook"
	cfg.Branch = "main"
	return cfg
}

func newHandler(cfg *repoconfig.RepositoryConfig) (*webhook.Handler, *scheduler.Memory) {
	now := time.Date(2024, 4, 2, 10, 0, 0, 0, time.UTC)
	sched := scheduler.NewInMemory(scheduler.WithClock(func() time.Time { return now }))
	h := webhook.NewHandler(sched, repoconfig.NewMemoryStore(cfg), webhook.WithClock(func() time.Time { return now }))
	return h, sched
}

func post(t *testing.T, h http.Handler, event, body string) (int, webhook.Response) {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/webhook/github", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	if event != "" {
		req.Header.Set("X-GitHub-Event", event)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	var resp webhook.Response
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response %q: %v", rec.Body.String(), err)
	}
	return rec.Code, resp
}

func TestPushToConfiguredBranchQueuesSync(t *testing.T) {
	h, sched := newHandler(gitConfig())

	code, resp := post(t, h, "push", `{"ref":"refs/heads/main","after":"9f2c1e7b","head_commit":{"id":"9f2c1e7b","message":"Add guide"}}`)
	if code != http.StatusAccepted {
		t.Fatalf("expected 202, got %d (%s)", code, resp.Message)
	}
	if resp.JobID == "" {
		t.Fatal("expected job id in response")
	}

	job, err := sched.GetByKey(context.Background(), scheduler.SyncJobKey)
	if err != nil {
		t.Fatalf("get job: %v", err)
	}
	if job.Type != scheduler.JobTypeSync || job.Payload["trigger"] != "webhook" {
		t.Fatalf("unexpected job %+v", job)
	}
}

func TestRepeatedPushesCollapseIntoOneJob(t *testing.T) {
	h, sched := newHandler(gitConfig())
	for i := 0; i < 3; i++ {
		if code, _ := post(t, h, "push", `{"ref":"refs/heads/main","after":"abc"}`); code != http.StatusAccepted {
			t.Fatalf("expected 202, got %d", code)
		}
	}
	if sched.Pending() != 1 {
		t.Fatalf("expected one pending job, got %d", sched.Pending())
	}
}

func TestIgnoredRequests(t *testing.T) {
	cmsMode := repoconfig.Default()
	cases := []struct {
		name    string
		cfg     *repoconfig.RepositoryConfig
		event   string
		body    string
		code    int
		message string
	}{
		{name: "cms mode", cfg: cmsMode, event: "push", body: `{}`, code: http.StatusOK, message: "Git mode not enabled"},
		{name: "ping", cfg: gitConfig(), event: "ping", body: `{}`, code: http.StatusOK, message: "pong"},
		{name: "pull request", cfg: gitConfig(), event: "pull_request", body: `{"action":"opened"}`, code: http.StatusOK, message: "Event ignored"},
		{name: "other branch", cfg: gitConfig(), event: "push", body: `{"ref":"refs/heads/develop"}`, code: http.StatusOK, message: "Push to different branch ignored"},
		{name: "tag push", cfg: gitConfig(), event: "push", body: `{"ref":"refs/tags/main"}`, code: http.StatusOK, message: "Push to different branch ignored"},
		{name: "branch deleted", cfg: gitConfig(), event: "push", body: `{"ref":"refs/heads/main","deleted":true}`, code: http.StatusOK, message: "Branch deletion ignored"},
		{name: "malformed", cfg: gitConfig(), event: "push", body: `{"ref":`, code: http.StatusBadRequest, message: "Invalid payload"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			h, sched := newHandler(tc.cfg)
			code, resp := post(t, h, tc.event, tc.body)
			if code != tc.code || resp.Message != tc.message {
				t.Fatalf("expected %d %q, got %d %q", tc.code, tc.message, code, resp.Message)
			}
			if sched.Pending() != 0 {
				t.Fatalf("expected nothing queued, got %d", sched.Pending())
			}
		})
	}
}

func TestRejectsNonPost(t *testing.T) {
	h, _ := newHandler(gitConfig())
	req := httptest.NewRequest(http.MethodGet, "/webhook/github", nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if rec.Code != http.StatusMethodNotAllowed {
		t.Fatalf("expected 405, got %d", rec.Code)
	}
}

func TestDefaultBranchApplies(t *testing.T) {
	cfg := gitConfig()
	cfg.Branch = ""
	h, sched := newHandler(cfg)
	if code, _ := post(t, h, "push", `{"ref":"refs/heads/main","after":"abc"}`); code != http.StatusAccepted {
		t.Fatalf("expected 202 for the default branch, got %d", code)
	}
	if _, err := sched.GetByKey(context.Background(), scheduler.SyncJobKey); err != nil {
		t.Fatalf("expected queued job: %v", err)
	}
}
