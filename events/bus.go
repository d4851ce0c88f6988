// Package events provides the in-process event channel the feed listens on
// and a client that bridges the content server's event stream into it.
package events

import (
	"sync"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"
)

// ItemCreated is published with the ids of newly authored items as payload
const ItemCreated = "item.created"

// Event is a message on the bus. Handlers must ignore types they don't know.
type Event struct {
	Type    string   `json:"type"`
	Payload []string `json:"payload"`
}

// Handler receives every event published while it is subscribed
type Handler func(Event)

// Subscription identifies a registered handler
type Subscription struct {
	key string
	bus *Bus
}

// Unsubscribe removes the handler from the bus. Safe to call more than once.
func (s Subscription) Unsubscribe() {
	if s.bus != nil {
		s.bus.Unsubscribe(s)
	}
}

// Bus is a publish/subscribe registry. It is meant to be constructed once per
// process (or per test) and passed to the components that need it.
type Bus struct {
	sync.RWMutex
	handlers map[string]Handler
	order    []string
}

func NewBus() *Bus {
	return &Bus{
		handlers: make(map[string]Handler),
	}
}

// Subscribe registers a handler and returns the subscription used to remove it
func (b *Bus) Subscribe(handler Handler) Subscription {
	b.Lock()
	defer b.Unlock()

	key := uuid.New().String()
	b.handlers[key] = handler
	b.order = append(b.order, key)

	log.WithFields(log.Fields{
		"key":   key,
		"count": len(b.handlers),
	}).Debug("Adding subscriber to bus")

	return Subscription{key: key, bus: b}
}

func (b *Bus) Unsubscribe(sub Subscription) {
	b.Lock()
	defer b.Unlock()

	if _, ok := b.handlers[sub.key]; !ok {
		return
	}
	delete(b.handlers, sub.key)
	for i, key := range b.order {
		if key == sub.key {
			b.order = append(b.order[:i], b.order[i+1:]...)
			break
		}
	}

	log.WithFields(log.Fields{
		"key":   sub.key,
		"count": len(b.handlers),
	}).Debug("Removed subscriber from bus")
}

// Publish delivers the event to every current subscriber in subscription order.
// Handlers run on the publishing goroutine after the registry lock is released,
// so a handler may unsubscribe itself.
func (b *Bus) Publish(evt Event) {
	b.RLock()
	handlers := make([]Handler, 0, len(b.order))
	for _, key := range b.order {
		handlers = append(handlers, b.handlers[key])
	}
	b.RUnlock()

	for _, handler := range handlers {
		handler(evt)
	}
}

// Len returns the number of active subscriptions
func (b *Bus) Len() int {
	b.RLock()
	defer b.RUnlock()
	return len(b.handlers)
}
