// Package webhook turns GitHub push notifications into queued sync jobs.
package webhook

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/goliatone/go-docsync/internal/logging"
	"github.com/goliatone/go-docsync/internal/repoconfig"
	"github.com/goliatone/go-docsync/internal/scheduler"
	"github.com/goliatone/go-docsync/pkg/interfaces"
)

// DefaultMaxBodyBytes bounds accepted payloads. Push payloads list at most
// twenty commits, well below it.
const DefaultMaxBodyBytes int64 = 5 << 20

const (
	headerEvent    = "X-GitHub-Event"
	headerDelivery = "X-GitHub-Delivery"
	branchRefs     = "refs/heads/"
	deletedSHA     = "0000000000000000000000000000000000000000"
)

// Response is the JSON body written for every handled request.
type Response struct {
	Message string `json:"message"`
	JobID   string `json:"job_id,omitempty"`
}

type pushEvent struct {
	Ref     string `json:"ref"`
	After   string `json:"after"`
	Deleted bool   `json:"deleted"`
	Pusher  struct {
		Name string `json:"name"`
	} `json:"pusher"`
	HeadCommit *struct {
		ID      string `json:"id"`
		Message string `json:"message"`
	} `json:"head_commit"`
}

// Handler accepts push events for the configured branch and enqueues a
// sync job under scheduler.SyncJobKey.
type Handler struct {
	scheduler interfaces.Scheduler
	config    repoconfig.Store
	logger    interfaces.Logger
	now       func() time.Time
	maxBytes  int64
}

// Option configures a Handler.
type Option func(*Handler)

// WithLogger sets the handler logger.
func WithLogger(logger interfaces.Logger) Option {
	return func(h *Handler) {
		if logger != nil {
			h.logger = logger
		}
	}
}

// WithClock overrides the clock used for job run times.
func WithClock(now func() time.Time) Option {
	return func(h *Handler) {
		if now != nil {
			h.now = now
		}
	}
}

// WithMaxBodyBytes overrides DefaultMaxBodyBytes.
func WithMaxBodyBytes(n int64) Option {
	return func(h *Handler) {
		if n > 0 {
			h.maxBytes = n
		}
	}
}

// NewHandler builds a push webhook handler.
func NewHandler(sched interfaces.Scheduler, config repoconfig.Store, opts ...Option) *Handler {
	h := &Handler{
		scheduler: sched,
		config:    config,
		logger:    logging.NoOp(),
		now:       time.Now,
		maxBytes:  DefaultMaxBodyBytes,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(h)
		}
	}
	return h
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.Header().Set("Allow", http.MethodPost)
		writeJSON(w, http.StatusMethodNotAllowed, Response{Message: "Method not allowed"})
		return
	}
	ctx := r.Context()
	event := strings.TrimSpace(r.Header.Get(headerEvent))
	logger := logging.WithFields(h.logger, map[string]any{
		"event":    event,
		"delivery": r.Header.Get(headerDelivery),
	})

	cfg, err := h.config.Get(ctx)
	if err != nil {
		logger.Error("webhook.config.failed", "error", err)
		writeJSON(w, http.StatusInternalServerError, Response{Message: "Configuration unavailable"})
		return
	}
	if !cfg.IsGitMode() {
		writeJSON(w, http.StatusOK, Response{Message: "Git mode not enabled"})
		return
	}

	switch event {
	case "ping":
		writeJSON(w, http.StatusOK, Response{Message: "pong"})
		return
	case "push":
	default:
		logger.Debug("webhook.event.ignored")
		writeJSON(w, http.StatusOK, Response{Message: "Event ignored"})
		return
	}

	var push pushEvent
	if err := decodeJSON(http.MaxBytesReader(w, r.Body, h.maxBytes), &push); err != nil {
		logger.Warn("webhook.payload.invalid", "error", err)
		writeJSON(w, http.StatusBadRequest, Response{Message: "Invalid payload"})
		return
	}

	branch := strings.TrimPrefix(push.Ref, branchRefs)
	if !strings.HasPrefix(push.Ref, branchRefs) || branch != cfg.BranchOrDefault() {
		logger.Debug("webhook.push.other_branch", "ref", push.Ref)
		writeJSON(w, http.StatusOK, Response{Message: "Push to different branch ignored"})
		return
	}
	if push.Deleted || push.After == deletedSHA {
		writeJSON(w, http.StatusOK, Response{Message: "Branch deletion ignored"})
		return
	}

	job, err := h.enqueue(ctx)
	if err != nil {
		logger.Error("webhook.enqueue.failed", "error", err)
		writeJSON(w, http.StatusInternalServerError, Response{Message: "Could not queue sync"})
		return
	}

	fields := map[string]any{"job_id": job.ID, "branch": branch}
	if push.HeadCommit != nil {
		fields["commit"] = push.HeadCommit.ID
	}
	logging.WithFields(logger, fields).Info("webhook.sync.queued")
	writeJSON(w, http.StatusAccepted, Response{Message: "Sync queued", JobID: job.ID})
}

func (h *Handler) enqueue(ctx context.Context) (*interfaces.Job, error) {
	if h.scheduler == nil {
		return nil, errors.New("webhook: scheduler is nil")
	}
	return h.scheduler.Enqueue(ctx, scheduler.SyncJob("webhook", false, h.now()))
}

func decodeJSON(body io.Reader, target any) error {
	if body == nil {
		return io.EOF
	}
	return json.NewDecoder(body).Decode(target)
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if payload == nil {
		return
	}
	_ = json.NewEncoder(w).Encode(payload)
}
