package server

import (
	"sync"

	"scrollfeed/events"

	log "github.com/sirupsen/logrus"
)

// Broadcaster fans events out to connected event stream clients
type Broadcaster struct {
	sync.RWMutex
	clients map[string]chan events.Event
}

func NewBroadcaster() *Broadcaster {
	return &Broadcaster{
		clients: make(map[string]chan events.Event),
	}
}

// Broadcast hands evt to every client. Clients with a full channel miss it.
func (b *Broadcaster) Broadcast(evt events.Event) {
	b.RLock()
	defer b.RUnlock()

	for key, client := range b.clients {
		select {
		case client <- evt: // Non-blocking send
		default:
			log.WithFields(log.Fields{
				"key":  key,
				"type": evt.Type,
			}).Warn("Client channel full, skipping event")
		}
	}
}

func (b *Broadcaster) AddClient(key string, client chan events.Event) {
	b.Lock()
	defer b.Unlock()
	b.clients[key] = client
	sseClients.Set(float64(len(b.clients)))

	log.WithFields(log.Fields{
		"key":   key,
		"count": len(b.clients),
	}).Info("Adding client to broadcaster")
}

// RemoveClient closes and forgets the client channel. Unknown keys are ignored.
func (b *Broadcaster) RemoveClient(key string) {
	b.Lock()
	defer b.Unlock()

	client, ok := b.clients[key]
	if !ok {
		return
	}
	close(client)
	delete(b.clients, key)
	sseClients.Set(float64(len(b.clients)))

	log.WithFields(log.Fields{
		"key":   key,
		"count": len(b.clients),
	}).Info("Removed client from broadcaster")
}

func (b *Broadcaster) Len() int {
	b.RLock()
	defer b.RUnlock()
	return len(b.clients)
}

// Shutdown closes every client channel, ending their streams
func (b *Broadcaster) Shutdown() {
	log.Info("Shutting down broadcaster")
	b.Lock()
	defer b.Unlock()
	for key, client := range b.clients {
		close(client)
		delete(b.clients, key)
	}
	sseClients.Set(0)
}
