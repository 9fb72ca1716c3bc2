package tasks

import "sync"

type subscriber struct {
	ch chan Snapshot
}

// Broker fans snapshots out to subscribers. Each subscriber holds at most
// one undelivered snapshot; a newer one replaces it, because a full
// snapshot makes every earlier one irrelevant.
//
// Callers must publish in order. Backends do that by computing and
// publishing under one lock.
type Broker struct {
	mu     sync.Mutex
	subs   map[*subscriber]struct{}
	closed bool
}

// NewBroker creates a new broker.
func NewBroker() *Broker {
	return &Broker{subs: make(map[*subscriber]struct{})}
}

// Subscribe registers a subscriber and queues initial as its first snapshot.
func (b *Broker) Subscribe(initial Snapshot) *Subscription {
	sub := &subscriber{ch: make(chan Snapshot, 1)}
	sub.ch <- initial

	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		close(sub.ch)
		return NewSubscription(sub.ch, nil)
	}
	b.subs[sub] = struct{}{}
	b.mu.Unlock()

	return NewSubscription(sub.ch, func() { b.remove(sub) })
}

// Publish delivers snap to every subscriber, replacing anything it has not
// read yet.
func (b *Broker) Publish(snap Snapshot) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for sub := range b.subs {
		offer(sub.ch, snap)
	}
}

func offer(ch chan Snapshot, snap Snapshot) {
	select {
	case ch <- snap:
		return
	default:
	}
	// Drop the stale one. We are the only sender, so the slot is free after.
	select {
	case <-ch:
	default:
	}
	select {
	case ch <- snap:
	default:
	}
}

// Len returns the number of live subscribers
func (b *Broker) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.subs)
}

// Close ends every subscription
func (b *Broker) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return
	}
	b.closed = true
	for sub := range b.subs {
		delete(b.subs, sub)
		close(sub.ch)
	}
}

func (b *Broker) remove(sub *subscriber) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if _, ok := b.subs[sub]; !ok {
		return
	}
	delete(b.subs, sub)
	close(sub.ch)
}
