// Package watch implements keyed change notification with cancellable
// subscriptions.
package watch

import "sync"

// Broker fans out notifications to the callbacks subscribed to a key.
// Callbacks run synchronously on the publishing goroutine, never while the
// broker's lock is held, so a callback may publish or subscribe again.
type Broker[K comparable] struct {
	mu     sync.Mutex
	nextID uint64
	subs   map[K]map[uint64]*subscription
}

type subscription struct {
	// mu serializes delivery with cancel: once cancel returns, fn is never
	// entered again. Calling cancel from inside fn deadlocks.
	mu       sync.Mutex
	fn       func()
	canceled bool
}

func NewBroker[K comparable]() *Broker[K] {
	return &Broker[K]{subs: make(map[K]map[uint64]*subscription)}
}

// Subscribe registers fn for key. The returned cancel is idempotent.
func (b *Broker[K]) Subscribe(key K, fn func()) (cancel func()) {
	s := &subscription{fn: fn}

	b.mu.Lock()
	b.nextID++
	id := b.nextID
	if b.subs[key] == nil {
		b.subs[key] = make(map[uint64]*subscription)
	}
	b.subs[key][id] = s
	b.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			b.mu.Lock()
			if m := b.subs[key]; m != nil {
				delete(m, id)
				if len(m) == 0 {
					delete(b.subs, key)
				}
			}
			b.mu.Unlock()

			s.mu.Lock()
			s.canceled = true
			s.mu.Unlock()
		})
	}
}

// Publish invokes every callback currently subscribed to key and returns how
// many ran.
func (b *Broker[K]) Publish(key K) int {
	b.mu.Lock()
	targets := make([]*subscription, 0, len(b.subs[key]))
	for _, s := range b.subs[key] {
		targets = append(targets, s)
	}
	b.mu.Unlock()

	delivered := 0
	for _, s := range targets {
		s.mu.Lock()
		if !s.canceled {
			s.fn()
			delivered++
		}
		s.mu.Unlock()
	}
	return delivered
}

// Len reports the number of live subscriptions for key.
func (b *Broker[K]) Len(key K) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.subs[key])
}
