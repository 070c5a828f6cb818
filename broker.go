package main

import (
	"sync"
)

const subscriberBuffer = 16

// Broker fans history events out to subscribers. Publish never blocks; a
// subscriber that falls behind misses events.
type Broker struct {
	mu      sync.RWMutex
	clients map[chan IdentifiedEvent]struct{}
	dropped func()
}

func NewBroker() *Broker {
	return &Broker{clients: make(map[chan IdentifiedEvent]struct{})}
}

// OnDrop registers fn to be called for every event dropped for a slow
// subscriber. It must be set before the broker is shared.
func (b *Broker) OnDrop(fn func()) {
	b.dropped = fn
}

func (b *Broker) Subscribe() (ch chan IdentifiedEvent, unsubscribe func()) {
	ch = make(chan IdentifiedEvent, subscriberBuffer)
	b.mu.Lock()
	b.clients[ch] = struct{}{}
	b.mu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			b.mu.Lock()
			delete(b.clients, ch)
			b.mu.Unlock()
			close(ch)
		})
	}
}

func (b *Broker) Subscribers() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.clients)
}

func (b *Broker) Publish(msg IdentifiedEvent) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	for ch := range b.clients {
		select {
		case ch <- msg:
		default:
			if b.dropped != nil {
				b.dropped()
			}
		}
	}
}
