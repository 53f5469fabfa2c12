package network

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/hyperledger/iroha-go/internal/model"
)

// SendFunc is the underlying transport call a Retrying sender retries.
type SendFunc func(ctx context.Context, peer model.Peer, votes []model.VoteMessage) error

// backoffPolicy is spec.md §6's retry schedule: 5 attempts, starting at
// 5s, growing by a factor of 1.6, capped at 120s.
var backoffPolicy = struct {
	initial    time.Duration
	factor     float64
	max        time.Duration
	maxAttempt int
}{initial: 5 * time.Second, factor: 1.6, max: 120 * time.Second, maxAttempt: 5}

// retryableCodes are the gRPC status codes this policy retries on.
var retryableCodes = map[codes.Code]bool{
	codes.Unknown:         true,
	codes.DeadlineExceeded: true,
	codes.Aborted:         true,
	codes.Internal:        true,
}

// Retrying wraps send with exponential backoff and returns a Sender whose
// Send fires the retried call in its own goroutine (Sender.Send itself
// never blocks or returns an error — transport failures are logged and
// dropped, matching the fire-and-forget voting step in internal/yac).
func Retrying(send SendFunc, log *logrus.Logger) Sender {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &retryingSender{send: send, log: log}
}

type retryingSender struct {
	send SendFunc
	log  *logrus.Logger
}

func (r *retryingSender) Send(peer model.Peer, votes []model.VoteMessage) {
	go r.sendWithRetry(peer, votes)
}

func (r *retryingSender) sendWithRetry(peer model.Peer, votes []model.VoteMessage) {
	delay := backoffPolicy.initial
	var lastErr error
	for attempt := 1; attempt <= backoffPolicy.maxAttempt; attempt++ {
		ctx, cancel := context.WithTimeout(context.Background(), backoffPolicy.max)
		err := r.send(ctx, peer, votes)
		cancel()
		if err == nil {
			return
		}
		lastErr = err
		if !isRetryable(err) {
			break
		}
		if attempt == backoffPolicy.maxAttempt {
			break
		}
		time.Sleep(delay)
		delay = time.Duration(float64(delay) * backoffPolicy.factor)
		if delay > backoffPolicy.max {
			delay = backoffPolicy.max
		}
	}
	r.log.WithFields(logrus.Fields{
		"peer":  peer.Address,
		"votes": len(votes),
	}).WithError(lastErr).Warn("vote send exhausted retries")
}

func isRetryable(err error) bool {
	st, ok := status.FromError(err)
	if !ok {
		return true // non-gRPC error: treat as transient, matches Unknown
	}
	return retryableCodes[st.Code()]
}
