package events

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/cenkalti/backoff/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStreamReadPublishesEvents(t *testing.T) {
	bus := NewBus()
	var received []Event
	bus.Subscribe(func(evt Event) { received = append(received, evt) })

	body := strings.Join([]string{
		"event: init",
		"data: client-key",
		"",
		"event: ping",
		"data: ",
		"",
		": a comment",
		"event: item.created",
		`data: {"type":"item.created","payload":["a","b"]}`,
		"",
		"event: item.created",
		"data: not json",
		"",
	}, "\n")

	inits := 0
	s := NewStream(StreamConfig{Hosts: []string{"http://unused"}}, bus)
	err := s.read(strings.NewReader(body), func() { inits++ })

	assert.EqualError(t, err, "stream closed by server")
	assert.Equal(t, 1, inits)
	assert.Equal(t, []Event{{Type: ItemCreated, Payload: []string{"a", "b"}}}, received)
}

func TestStreamRunAgainstServer(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/events", r.URL.Path)
		w.Header().Set("Content-Type", "text/event-stream")
		fmt.Fprint(w, "event: init\ndata: key\n\n")
		fmt.Fprint(w, "event: item.created\ndata: {\"type\":\"item.created\",\"payload\":[\"x\"]}\n\n")
	}))
	defer srv.Close()

	bus := NewBus()
	var received []Event
	bus.Subscribe(func(evt Event) { received = append(received, evt) })

	s := NewStream(StreamConfig{
		Hosts:   []string{srv.URL},
		Backoff: &backoff.StopBackOff{},
	}, bus)

	err := s.Run(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "event stream gave up")
	assert.Equal(t, []Event{{Type: ItemCreated, Payload: []string{"x"}}}, received)
}

func TestStreamRunStopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	s := NewStream(StreamConfig{Hosts: []string{"http://127.0.0.1:1"}}, NewBus())
	assert.ErrorIs(t, s.Run(ctx), context.Canceled)
}

func TestStreamRunRequiresHosts(t *testing.T) {
	s := NewStream(StreamConfig{}, NewBus())
	assert.Error(t, s.Run(context.Background()))
}
