package server

import (
	"testing"

	"scrollfeed/events"

	"github.com/stretchr/testify/assert"
)

func TestParsePage(t *testing.T) {
	tests := []struct {
		raw  string
		page int
		ok   bool
	}{
		{raw: "", page: 1, ok: true},
		{raw: "1", page: 1, ok: true},
		{raw: "42", page: 42, ok: true},
		{raw: "0", ok: false},
		{raw: "-3", ok: false},
		{raw: "two", ok: false},
	}

	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			page, ok := parsePage(tt.raw)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.page, page)
		})
	}
}

func TestSafeParseLimit(t *testing.T) {
	assert.Equal(t, 20, safeParseLimit(""))
	assert.Equal(t, 5, safeParseLimit("5"))
	assert.Equal(t, 100, safeParseLimit("100"))
	assert.Equal(t, 20, safeParseLimit("101"))
	assert.Equal(t, 20, safeParseLimit("0"))
}

func TestParseIDs(t *testing.T) {
	assert.Equal(t, []string{"a", "b", "c"}, parseIDs(" a,b,,a , c"))
	assert.Empty(t, parseIDs(""))
}

func TestBroadcasterSkipsFullClients(t *testing.T) {
	bc := NewBroadcaster()
	full := make(chan events.Event)
	open := make(chan events.Event, 1)
	bc.AddClient("full", full)
	bc.AddClient("open", open)

	evt := events.Event{Type: events.ItemCreated, Payload: []string{"x"}}
	bc.Broadcast(evt)

	assert.Equal(t, evt, <-open)
	assert.Equal(t, 2, bc.Len())

	bc.RemoveClient("full")
	bc.RemoveClient("full")
	_, ok := <-full
	assert.False(t, ok)

	bc.Shutdown()
	_, ok = <-open
	assert.False(t, ok)
	assert.Zero(t, bc.Len())
}
