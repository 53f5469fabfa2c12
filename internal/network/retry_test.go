package network

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/hyperledger/iroha-go/internal/model"
)

func TestRetryingSucceedsWithoutRetryOnFirstAttempt(t *testing.T) {
	var calls int32
	send := func(ctx context.Context, peer model.Peer, votes []model.VoteMessage) error {
		atomic.AddInt32(&calls, 1)
		return nil
	}
	s := Retrying(send, nil)
	s.Send(model.Peer{PubKey: "p0"}, []model.VoteMessage{{}})

	waitUntil(t, func() bool { return atomic.LoadInt32(&calls) == 1 })
}

func TestRetryingStopsOnNonRetryableError(t *testing.T) {
	var calls int32
	send := func(ctx context.Context, peer model.Peer, votes []model.VoteMessage) error {
		atomic.AddInt32(&calls, 1)
		return status.Error(codes.PermissionDenied, "denied")
	}
	s := Retrying(send, nil)
	s.Send(model.Peer{PubKey: "p0"}, []model.VoteMessage{{}})

	time.Sleep(50 * time.Millisecond)
	if got := atomic.LoadInt32(&calls); got != 1 {
		t.Fatalf("expected exactly one attempt for a non-retryable error, got %d", got)
	}
}

func TestRetryingRetriesPlainError(t *testing.T) {
	var calls int32
	send := func(ctx context.Context, peer model.Peer, votes []model.VoteMessage) error {
		n := atomic.AddInt32(&calls, 1)
		if n < 2 {
			return errors.New("transient")
		}
		return nil
	}
	backoffPolicy.initial = time.Millisecond
	backoffPolicy.max = 5 * time.Millisecond
	defer func() {
		backoffPolicy.initial = 5 * time.Second
		backoffPolicy.max = 120 * time.Second
	}()

	s := Retrying(send, nil)
	s.Send(model.Peer{PubKey: "p0"}, []model.VoteMessage{{}})

	waitUntil(t, func() bool { return atomic.LoadInt32(&calls) == 2 })
}

func waitUntil(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(time.Millisecond)
	}
	t.Fatal("condition not met before deadline")
}
