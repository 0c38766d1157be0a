package sse

import (
	"encoding/json"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mailcleaner/internal/logger"
)

func TestBrokerBroadcast(t *testing.T) {
	b := NewBroker(logger.NewWithWriter(io.Discard))
	one := b.AddClient()
	two := b.AddClient()
	assert.Equal(t, 2, b.ClientCount())

	b.Broadcast("sync_progress", map[string]int{"fetched": 3})

	for _, ch := range []chan []byte{one, two} {
		var ev struct {
			Type string         `json:"type"`
			Data map[string]int `json:"data"`
		}
		require.NoError(t, json.Unmarshal(<-ch, &ev))
		assert.Equal(t, "sync_progress", ev.Type)
		assert.Equal(t, 3, ev.Data["fetched"])
	}

	b.RemoveClient(one)
	_, open := <-one
	assert.False(t, open)
	assert.Equal(t, 1, b.ClientCount())

	// Removing twice is harmless
	b.RemoveClient(one)
}

func TestBrokerDropsForSlowClients(t *testing.T) {
	b := NewBroker(logger.NewWithWriter(io.Discard))
	ch := b.AddClient()

	for i := 0; i < cap(ch)+5; i++ {
		b.Broadcast("tick", i)
	}
	assert.Len(t, ch, cap(ch))
}

func TestBrokerClose(t *testing.T) {
	b := NewBroker(logger.NewWithWriter(io.Discard))
	ch := b.AddClient()
	b.Close()

	_, open := <-ch
	assert.False(t, open)
	assert.Equal(t, 0, b.ClientCount())

	late := b.AddClient()
	_, open = <-late
	assert.False(t, open)
}
