package api

import (
	"sync"

	"github.com/cardvox/cardvox/internal/session"
)

// subscriberBuffer sizes each subscriber's channel. A subscriber that cannot
// keep up loses events rather than stalling the feed.
const subscriberBuffer = 16

// broadcaster fans the controller's single event channel out to any number of
// SSE subscribers.
type broadcaster struct {
	mu   sync.Mutex
	subs map[chan session.Event]struct{}
	done chan struct{}
}

func newBroadcaster(src <-chan session.Event) *broadcaster {
	b := &broadcaster{
		subs: make(map[chan session.Event]struct{}),
		done: make(chan struct{}),
	}
	go b.forward(src)
	return b
}

func (b *broadcaster) forward(src <-chan session.Event) {
	for {
		select {
		case <-b.done:
			return
		case ev, open := <-src:
			if !open {
				b.close()
				return
			}
			b.mu.Lock()
			for sub := range b.subs {
				select {
				case sub <- ev:
				default:
					// Slow subscriber; drop.
				}
			}
			b.mu.Unlock()
		}
	}
}

// subscribe registers a new subscriber. The returned cancel func must be
// called when the subscriber is done; the channel is closed afterwards.
func (b *broadcaster) subscribe() (<-chan session.Event, func()) {
	ch := make(chan session.Event, subscriberBuffer)

	b.mu.Lock()
	defer b.mu.Unlock()
	select {
	case <-b.done:
		close(ch)
		return ch, func() {}
	default:
	}
	b.subs[ch] = struct{}{}

	cancel := func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		if _, ok := b.subs[ch]; ok {
			delete(b.subs, ch)
			close(ch)
		}
	}
	return ch, cancel
}

// close shuts the broadcaster down and closes every subscriber channel.
// Idempotent.
func (b *broadcaster) close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	select {
	case <-b.done:
		return
	default:
	}
	close(b.done)
	for sub := range b.subs {
		delete(b.subs, sub)
		close(sub)
	}
}
