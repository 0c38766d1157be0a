package sse

import (
	"encoding/json"
	"sync"
	"time"

	"mailcleaner/internal/logger"
)

// Event is the JSON document written to every subscriber.
type Event struct {
	Type string      `json:"type"`
	Data interface{} `json:"data"`
	Time int64       `json:"time"`
}

// Broker fans server-sent events out to every connected client.
type Broker struct {
	clients    map[chan []byte]bool
	clientsMux sync.RWMutex
	closed     bool
	logger     *logger.Logger
}

func NewBroker(logger *logger.Logger) *Broker {
	return &Broker{
		clients: make(map[chan []byte]bool),
		logger:  logger,
	}
}

// AddClient registers a new connection. The returned channel is closed by
// RemoveClient or Close.
func (b *Broker) AddClient() chan []byte {
	b.clientsMux.Lock()
	defer b.clientsMux.Unlock()

	channel := make(chan []byte, 16)
	if b.closed {
		close(channel)
		return channel
	}
	b.clients[channel] = true
	b.logger.Debug("Added SSE client, total clients:", len(b.clients))
	return channel
}

func (b *Broker) RemoveClient(channel chan []byte) {
	b.clientsMux.Lock()
	defer b.clientsMux.Unlock()

	if _, ok := b.clients[channel]; ok {
		delete(b.clients, channel)
		close(channel)
		b.logger.Debug("Removed SSE client, remaining clients:", len(b.clients))
	}
}

// Broadcast sends an event to every client. A client whose buffer is full
// misses the event rather than stalling the sender.
func (b *Broker) Broadcast(eventType string, data interface{}) {
	payload, err := json.Marshal(Event{Type: eventType, Data: data, Time: time.Now().Unix()})
	if err != nil {
		b.logger.Error("Failed to marshal broadcast event:", err)
		return
	}

	b.clientsMux.RLock()
	defer b.clientsMux.RUnlock()

	for channel := range b.clients {
		select {
		case channel <- payload:
		default:
			b.logger.Warn("SSE client is not keeping up, dropping", eventType, "event")
		}
	}
}

func (b *Broker) ClientCount() int {
	b.clientsMux.RLock()
	defer b.clientsMux.RUnlock()
	return len(b.clients)
}

// Close disconnects every client.
func (b *Broker) Close() {
	b.clientsMux.Lock()
	defer b.clientsMux.Unlock()

	b.closed = true
	for channel := range b.clients {
		close(channel)
		delete(b.clients, channel)
	}
}
