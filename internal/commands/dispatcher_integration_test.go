package commands

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/goliatone/go-command/dispatcher"
	"github.com/goliatone/go-command/runner"
)

type dispatchedSync struct {
	Trigger string
}

func (dispatchedSync) Type() string { return "docsync.test.dispatched_sync" }

func (dispatchedSync) Validate() error { return nil }

type dispatchedCleanup struct{}

func (dispatchedCleanup) Type() string { return "docsync.test.dispatched_cleanup" }

func (dispatchedCleanup) Validate() error { return nil }

func TestDispatcherRetriesUntilSuccess(t *testing.T) {
	var attempts int
	handler := NewHandler(func(ctx context.Context, _ dispatchedSync) error {
		attempts++
		if attempts == 1 {
			return errors.New("rate limited")
		}
		return nil
	}, WithTimeout[dispatchedSync](time.Second))

	sub := dispatcher.SubscribeCommand(handler, runner.WithMaxRetries(1))
	t.Cleanup(sub.Unsubscribe)

	if err := dispatcher.Dispatch(context.Background(), dispatchedSync{Trigger: "webhook"}); err != nil {
		t.Fatalf("dispatch: expected success after retry, got %v", err)
	}
	if attempts != 2 {
		t.Fatalf("expected 2 attempts, got %d", attempts)
	}
}

func TestDispatcherRetryExhaustionPropagatesError(t *testing.T) {
	var attempts int
	handler := NewHandler(func(ctx context.Context, _ dispatchedCleanup) error {
		attempts++
		return errors.New("database locked")
	}, WithTimeout[dispatchedCleanup](time.Second))

	sub := dispatcher.SubscribeCommand(handler, runner.WithMaxRetries(2))
	t.Cleanup(sub.Unsubscribe)

	if err := dispatcher.Dispatch(context.Background(), dispatchedCleanup{}); err == nil {
		t.Fatal("expected dispatcher to return error after exhausting retries")
	}
	if attempts != 3 {
		t.Fatalf("expected 3 attempts, got %d", attempts)
	}
}
