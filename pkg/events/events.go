// Package events fans tick-completion notifications out to listeners
// off the simulation worker's hot path, per spec.md §4.7 step 4: tick
// listeners must never share their execution stack with the tick
// worker, and a slow or failing listener must never back-pressure it.
package events

import (
	"sync"
	"time"
)

// EventType represents the type of event.
type EventType string

const (
	// EventTickComplete fires once a container finishes a tick, after
	// systems have run and before the next tick's command drain.
	EventTickComplete EventType = "tick.complete"
)

// TickEvent is the payload delivered to tick listeners.
type TickEvent struct {
	ID          string
	Type        EventType
	Timestamp   time.Time
	ContainerID string
	MatchID     string
	Tick        uint64
	// SnapshotRef optionally carries a reference to a snapshot emitted
	// for this tick (e.g. a sink key), nil when no snapshot was taken.
	SnapshotRef any
}

// Subscriber is a channel that receives tick events.
type Subscriber chan *TickEvent

// Broker manages tick listener subscriptions and off-hot-path delivery.
type Broker struct {
	subscribers map[Subscriber]bool
	mu          sync.RWMutex
	eventCh     chan *TickEvent
	stopCh      chan struct{}
	subBufSize  int
}

// NewBroker creates a new event broker. subscriberBufferSize bounds how many
// undelivered events a single slow subscriber may queue before Publish
// starts dropping events for it; a value <= 0 falls back to 50.
func NewBroker(subscriberBufferSize int) *Broker {
	if subscriberBufferSize <= 0 {
		subscriberBufferSize = 50
	}
	return &Broker{
		subscribers: make(map[Subscriber]bool),
		eventCh:     make(chan *TickEvent, 100),
		stopCh:      make(chan struct{}),
		subBufSize:  subscriberBufferSize,
	}
}

// Start begins the broker's event distribution loop.
func (b *Broker) Start() {
	go b.run()
}

// Stop stops the broker.
func (b *Broker) Stop() {
	close(b.stopCh)
}

// Subscribe creates a new subscription and returns a channel.
func (b *Broker) Subscribe() Subscriber {
	b.mu.Lock()
	defer b.mu.Unlock()

	sub := make(Subscriber, b.subBufSize)
	b.subscribers[sub] = true
	return sub
}

// Unsubscribe removes a subscription.
func (b *Broker) Unsubscribe(sub Subscriber) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if _, ok := b.subscribers[sub]; !ok {
		return
	}
	delete(b.subscribers, sub)
	close(sub)
}

// Publish publishes a tick event to all subscribers. It never blocks
// the simulation worker: the broker's own ingress channel is buffered,
// and delivery to a slow subscriber is dropped rather than awaited.
func (b *Broker) Publish(event *TickEvent) {
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}

	select {
	case b.eventCh <- event:
	case <-b.stopCh:
	default:
		// Broker ingress full: drop rather than stall the caller.
	}
}

func (b *Broker) run() {
	for {
		select {
		case event := <-b.eventCh:
			b.broadcast(event)
		case <-b.stopCh:
			return
		}
	}
}

func (b *Broker) broadcast(event *TickEvent) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	for sub := range b.subscribers {
		select {
		case sub <- event:
		default:
			// Subscriber buffer full, skip.
		}
	}
}

// SubscriberCount returns the number of active subscribers.
func (b *Broker) SubscriberCount() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subscribers)
}
