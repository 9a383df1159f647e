package github_test

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"gopkg.in/dnaeon/go-vcr.v3/recorder"

	"github.com/goliatone/go-docsync/internal/github"
	"github.com/goliatone/go-docsync/pkg/interfaces"
	"github.com/goliatone/go-docsync/pkg/testsupport"
)

const repoURL = "https://github.com/acme/handbook"

type apiStub struct {
	t        *testing.T
	requests []*http.Request
}

func (s *apiStub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.requests = append(s.requests, r)
	fixture := ""
	switch {
	case r.URL.Path == "/repos/acme/handbook/commits/main":
		fixture = "commit.json"
	case r.URL.Path == "/repos/acme/handbook/git/trees/main" && r.URL.Query().Get("recursive") == "1":
		fixture = "tree.json"
	case r.URL.Path == "/repos/acme/handbook/contents/docs/guides/start.md" && r.URL.Query().Get("ref") == "main":
		fixture = "content.json"
	case r.URL.Path == "/repos/acme/handbook/compare/c1...c2":
		fixture = "compare.json"
	case r.URL.Path == "/repos/acme/handbook/branches/main":
		fixture = "branch.json"
	case r.URL.Path == "/repos/acme/empty/commits/main":
		w.WriteHeader(http.StatusConflict)
		_, _ = w.Write([]byte(`{"message":"Git Repository is empty."}`))
		return
	default:
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte(`{"message":"Not Found"}`))
		return
	}
	w.Header().Set("Content-Type", "application/json")
	_, _ = w.Write(testsupport.MustLoadFixture(s.t, filepath.Join("testdata", fixture)))
}

func newTestClient(t *testing.T, repo string, opts ...github.Option) (*github.Client, *apiStub) {
	t.Helper()
	stub := &apiStub{t: t}
	server := httptest.NewServer(stub)
	t.Cleanup(server.Close)

	base := []github.Option{github.WithBaseURL(server.URL), github.WithToken("secret-token")}
	client, err := github.New(repo, append(base, opts...)...)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return client, stub
}

func TestRepositoryFromURL(t *testing.T) {
	cases := []struct {
		input string
		want  string
	}{
		{input: "https://github.com/acme/handbook", want: "acme/handbook"},
		{input: "https://github.com/acme/handbook.git", want: "acme/handbook"},
		{input: "http://github.com/acme/handbook/", want: "acme/handbook"},
		{input: "  https://github.com/acme/handbook  ", want: "acme/handbook"},
		{input: "https://github.com/acme/handbook/tree/main", want: "acme/handbook"},
	}
	for _, tc := range cases {
		got, err := github.RepositoryFromURL(tc.input)
		if err != nil {
			t.Fatalf("RepositoryFromURL(%q): %v", tc.input, err)
		}
		if got != tc.want {
			t.Fatalf("RepositoryFromURL(%q) = %q, want %q", tc.input, got, tc.want)
		}
	}

	for _, input := range []string{"", "https://gitlab.com/acme/handbook", "https://github.com/acme"} {
		if _, err := github.RepositoryFromURL(input); err == nil {
			t.Fatalf("expected error for %q", input)
		}
	}
}

func TestLatestCommit(t *testing.T) {
	client, stub := newTestClient(t, repoURL)

	commit, err := client.LatestCommit(context.Background())
	if err != nil {
		t.Fatalf("LatestCommit: %v", err)
	}
	if commit.Hash != "9f2c1e7b4a6d8c0e1f3a5b7c9d0e2f4a6b8c0d1e" || commit.Author != "Dana Reyes" {
		t.Fatalf("unexpected commit %+v", commit)
	}
	if !commit.Date.Equal(time.Date(2024, 4, 2, 10, 15, 0, 0, time.UTC)) {
		t.Fatalf("unexpected commit date %s", commit.Date)
	}

	req := stub.requests[0]
	if got := req.Header.Get("Authorization"); got != "Bearer secret-token" {
		t.Fatalf("expected bearer token, got %q", got)
	}
	if got := req.Header.Get("Accept"); got != "application/vnd.github+json" {
		t.Fatalf("unexpected accept header %q", got)
	}
}

func TestLatestCommitEmptyRepository(t *testing.T) {
	client, _ := newTestClient(t, "https://github.com/acme/empty")

	commit, err := client.LatestCommit(context.Background())
	if err != nil {
		t.Fatalf("LatestCommit: %v", err)
	}
	if commit != nil {
		t.Fatalf("expected nil commit for an empty repository, got %+v", commit)
	}
}

func TestDirectoryTreeFiltersBlobsUnderRoot(t *testing.T) {
	client, _ := newTestClient(t, repoURL)

	entries, err := client.DirectoryTree(context.Background(), "docs")
	if err != nil {
		t.Fatalf("DirectoryTree: %v", err)
	}
	want := []string{"docs/docs-config.json", "docs/intro.md", "docs/guides/_meta.json", "docs/guides/start.md"}
	if len(entries) != len(want) {
		t.Fatalf("expected %d entries, got %+v", len(want), entries)
	}
	for i, entry := range entries {
		if entry.Path != want[i] {
			t.Fatalf("entry %d = %q, want %q", i, entry.Path, want[i])
		}
	}
}

func TestFileContentDecodesBase64(t *testing.T) {
	client, _ := newTestClient(t, repoURL)
	ctx := context.Background()

	content, found, err := client.FileContent(ctx, "docs/guides/start.md")
	if err != nil || !found {
		t.Fatalf("FileContent: found=%v err=%v", found, err)
	}
	if !strings.HasPrefix(content, "---\ntitle: Start Here") || !strings.Contains(content, "Run the installer.") {
		t.Fatalf("unexpected content %q", content)
	}

	_, found, err = client.FileContent(ctx, "docs/missing.md")
	if err != nil || found {
		t.Fatalf("expected missing file to report not found, got found=%v err=%v", found, err)
	}
}

func TestChangedFiles(t *testing.T) {
	client, _ := newTestClient(t, repoURL)

	files, err := client.ChangedFiles(context.Background(), "c1", "c2")
	if err != nil {
		t.Fatalf("ChangedFiles: %v", err)
	}
	if len(files) != 3 {
		t.Fatalf("expected 3 files, got %d", len(files))
	}
	renamed := files[1]
	if renamed.Status != interfaces.ChangeRenamed || renamed.PreviousFilename != "docs/guides/setup.md" {
		t.Fatalf("unexpected rename entry %+v", renamed)
	}
	if files[2].Status != interfaces.ChangeRemoved {
		t.Fatalf("expected removed status, got %q", files[2].Status)
	}
}

func TestChangedFilesFollowsPagination(t *testing.T) {
	var pages []string
	var server *httptest.Server
	server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/repos/acme/handbook/compare/c1...c2" {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		page := r.URL.Query().Get("page")
		pages = append(pages, page)
		w.Header().Set("Content-Type", "application/json")
		switch page {
		case "1":
			w.Header().Set("Link", "<"+server.URL+"/repos/acme/handbook/compare/c1...c2?page=2&per_page=100>; rel=\"next\", <"+server.URL+"/repos/acme/handbook/compare/c1...c2?page=2&per_page=100>; rel=\"last\"")
			_, _ = w.Write([]byte(`{"files":[{"filename":"docs/a.md","status":"modified"}]}`))
		case "2":
			w.Header().Set("Link", "<"+server.URL+"/repos/acme/handbook/compare/c1...c2?page=1&per_page=100>; rel=\"prev\"")
			_, _ = w.Write([]byte(`{"files":[{"filename":"docs/b.md","status":"added"}]}`))
		default:
			w.WriteHeader(http.StatusBadRequest)
		}
	}))
	t.Cleanup(server.Close)

	client, err := github.New(repoURL, github.WithBaseURL(server.URL))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	files, err := client.ChangedFiles(context.Background(), "c1", "c2")
	if err != nil {
		t.Fatalf("ChangedFiles: %v", err)
	}
	if len(pages) != 2 {
		t.Fatalf("expected two page requests, got %v", pages)
	}
	if len(files) != 2 || files[0].Filename != "docs/a.md" || files[1].Filename != "docs/b.md" {
		t.Fatalf("expected files from both pages, got %+v", files)
	}
}

func TestDirectoryTreeRejectsTruncatedListing(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"sha":"t1","truncated":true,"tree":[{"path":"docs/intro.md","type":"blob"}]}`))
	}))
	t.Cleanup(server.Close)

	client, err := github.New(repoURL, github.WithBaseURL(server.URL))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	entries, err := client.DirectoryTree(context.Background(), "docs")
	if !errors.Is(err, github.ErrTreeTruncated) {
		t.Fatalf("expected ErrTreeTruncated, got %v", err)
	}
	if entries != nil {
		t.Fatalf("expected no partial listing, got %+v", entries)
	}
}

func TestChangedFilesSurfacesAPIErrors(t *testing.T) {
	client, _ := newTestClient(t, repoURL)

	_, err := client.ChangedFiles(context.Background(), "c1", "unknown")
	if !github.IsNotFound(err) {
		t.Fatalf("expected not found api error, got %v", err)
	}
}

func TestTestConnection(t *testing.T) {
	client, _ := newTestClient(t, repoURL)
	if !client.TestConnection(context.Background()) {
		t.Fatalf("expected main branch to be reachable")
	}

	other, _ := newTestClient(t, repoURL, github.WithBranch("release"))
	if other.TestConnection(context.Background()) {
		t.Fatalf("expected unknown branch to be unreachable")
	}
}

func TestRecorderReplaysWithoutCredentials(t *testing.T) {
	stub := &apiStub{t: t}
	server := httptest.NewServer(stub)
	cassette := filepath.Join(t.TempDir(), "github")

	rec, err := github.NewRecorder(cassette, recorder.ModeRecordOnly, nil)
	if err != nil {
		t.Fatalf("NewRecorder: %v", err)
	}
	client, err := github.New(repoURL,
		github.WithBaseURL(server.URL),
		github.WithToken("secret-token"),
		github.WithRecorder(rec),
	)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if !client.TestConnection(context.Background()) {
		t.Fatalf("expected recorded connection to succeed")
	}
	if err := rec.Stop(); err != nil {
		t.Fatalf("Stop: %v", err)
	}
	server.Close()

	raw, err := os.ReadFile(cassette + ".yaml")
	if err != nil {
		t.Fatalf("read cassette: %v", err)
	}
	if strings.Contains(string(raw), "secret-token") {
		t.Fatalf("expected authorization header to be stripped from the cassette")
	}

	replay, err := github.NewRecorder(cassette, recorder.ModeReplayOnly, nil)
	if err != nil {
		t.Fatalf("NewRecorder (replay): %v", err)
	}
	defer replay.Stop()
	replayed, err := github.New(repoURL,
		github.WithBaseURL(server.URL),
		github.WithRecorder(replay),
	)
	if err != nil {
		t.Fatalf("New (replay): %v", err)
	}
	if !replayed.TestConnection(context.Background()) {
		t.Fatalf("expected replayed connection to succeed with the server stopped")
	}
}
