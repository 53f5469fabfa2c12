package eventbus

import (
	"sync"
	"testing"
	"time"

	"github.com/hyperledger/iroha-go/internal/dispatch"
)

func TestPublishDeliversToSubscriber(t *testing.T) {
	lane := dispatch.NewLane("test", 4)
	defer lane.Stop()

	b := New()
	received := make(chan any, 1)
	b.Subscribe(TopicOnCommit, lane, func(event any) { received <- event })

	b.Publish(TopicOnCommit, 42)

	select {
	case ev := <-received:
		if ev.(int) != 42 {
			t.Fatalf("unexpected event: %v", ev)
		}
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for event")
	}
}

func TestUnsubscribeStopsDelivery(t *testing.T) {
	lane := dispatch.NewLane("test", 4)
	defer lane.Stop()

	b := New()
	var mu sync.Mutex
	count := 0
	token := b.Subscribe(TopicOnCommit, lane, func(event any) {
		mu.Lock()
		count++
		mu.Unlock()
	})
	b.Unsubscribe(TopicOnCommit, token)
	b.Publish(TopicOnCommit, "x")

	lane.Post(func() {}) // fence: wait for anything queued before this to run
	time.Sleep(20 * time.Millisecond)

	mu.Lock()
	defer mu.Unlock()
	if count != 0 {
		t.Fatalf("expected no delivery after unsubscribe, got %d", count)
	}
}

func TestMultipleSubscribersAllReceive(t *testing.T) {
	lane := dispatch.NewLane("test", 4)
	defer lane.Stop()

	b := New()
	var wg sync.WaitGroup
	wg.Add(3)
	for i := 0; i < 3; i++ {
		b.Subscribe(TopicOnCommit, lane, func(event any) { wg.Done() })
	}
	b.Publish(TopicOnCommit, "hi")

	done := make(chan struct{})
	go func() { wg.Wait(); close(done) }()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("not all subscribers received the event")
	}
}
