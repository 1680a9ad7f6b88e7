package watch

import (
	"sync"
	"sync/atomic"
	"testing"

	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func TestPublishReachesOnlyItsKey(t *testing.T) {
	b := NewBroker[string]()
	var a, other int
	cancelA := b.Subscribe("alice", func() { a++ })
	defer cancelA()
	cancelB := b.Subscribe("bob", func() { other++ })
	defer cancelB()

	if n := b.Publish("alice"); n != 1 {
		t.Fatalf("expected one delivery, got %d", n)
	}
	if a != 1 || other != 0 {
		t.Fatalf("unexpected deliveries a=%d other=%d", a, other)
	}
}

func TestCancelStopsDelivery(t *testing.T) {
	b := NewBroker[string]()
	calls := 0
	cancel := b.Subscribe("k", func() { calls++ })
	b.Publish("k")
	cancel()
	cancel()
	b.Publish("k")
	if calls != 1 {
		t.Fatalf("expected 1 call, got %d", calls)
	}
	if b.Len("k") != 0 {
		t.Fatalf("subscription not removed")
	}
}

func TestCallbackMaySubscribe(t *testing.T) {
	b := NewBroker[int]()
	var inner func()
	cancel := b.Subscribe(1, func() {
		if inner == nil {
			inner = b.Subscribe(1, func() {})
		}
	})
	defer cancel()
	b.Publish(1)
	if inner == nil || b.Len(1) != 2 {
		t.Fatalf("nested subscribe failed")
	}
	inner()
}

func TestNoDeliveryAfterCancelReturns(t *testing.T) {
	b := NewBroker[string]()
	var canceled atomic.Bool
	var late atomic.Int32
	cancel := b.Subscribe("k", func() {
		if canceled.Load() {
			late.Add(1)
		}
	})

	var wg sync.WaitGroup
	stop := make(chan struct{})
	wg.Add(1)
	go func() {
		defer wg.Done()
		for {
			select {
			case <-stop:
				return
			default:
				b.Publish("k")
			}
		}
	}()

	cancel()
	canceled.Store(true)
	for i := 0; i < 100; i++ {
		b.Publish("k")
	}
	close(stop)
	wg.Wait()

	if late.Load() != 0 {
		t.Fatalf("%d callbacks ran after cancel returned", late.Load())
	}
}
