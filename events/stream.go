package events

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	log "github.com/sirupsen/logrus"
)

var (
	streamConnectionAttempts = promauto.NewCounter(prometheus.CounterOpts{
		Name: "scrollfeed_event_stream_connection_attempts_total",
		Help: "The total number of connection attempts to the event stream",
	})

	streamConnectionErrors = promauto.NewCounter(prometheus.CounterOpts{
		Name: "scrollfeed_event_stream_connection_errors_total",
		Help: "The total number of event stream connection errors encountered",
	})

	streamEventsReceived = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "scrollfeed_event_stream_events_total",
		Help: "Events received from the event stream by SSE event name",
	}, []string{"event"})

	streamHostSwitches = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "scrollfeed_event_stream_host_switches_total",
		Help: "Number of times the stream switched to a different host",
	}, []string{"from_host", "to_host"})
)

// StreamConfig holds configuration for the event stream connection
type StreamConfig struct {
	// Hosts is a list of content servers to try in order,
	// e.g. ["http://localhost:3000"]
	Hosts     []string
	UserAgent string
	Client    *http.Client

	// Backoff overrides the reconnect policy. Mostly useful in tests.
	Backoff backoff.BackOff
}

// Stream subscribes to the content server's server-sent events and
// republishes them on a local Bus
type Stream struct {
	config StreamConfig
	bus    *Bus
}

func NewStream(config StreamConfig, bus *Bus) *Stream {
	if config.Client == nil {
		// No overall timeout, the stream is long lived
		config.Client = &http.Client{}
	}
	if config.Backoff == nil {
		b := backoff.NewExponentialBackOff()
		b.InitialInterval = 100 * time.Millisecond
		b.MaxInterval = 30 * time.Second
		b.Multiplier = 1.5
		b.MaxElapsedTime = 0 // Never stop retrying
		config.Backoff = b
	}
	return &Stream{config: config, bus: bus}
}

// Run keeps the stream connected until ctx is cancelled
func (s *Stream) Run(ctx context.Context) error {
	if len(s.config.Hosts) == 0 {
		return fmt.Errorf("no hosts provided in config")
	}

	log.WithFields(log.Fields{
		"hosts": s.config.Hosts,
	}).Info("Subscribing to event stream")

	currentHostIdx := 0
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		currentHost := s.config.Hosts[currentHostIdx]
		streamConnectionAttempts.Inc()

		err := s.consume(ctx, currentHost)
		if ctx.Err() != nil {
			return ctx.Err()
		}

		streamConnectionErrors.Inc()
		log.WithFields(log.Fields{
			"host":  currentHost,
			"error": err,
		}).Warn("Event stream disconnected")

		nextHostIdx := (currentHostIdx + 1) % len(s.config.Hosts)
		if nextHostIdx != currentHostIdx {
			streamHostSwitches.WithLabelValues(currentHost, s.config.Hosts[nextHostIdx]).Inc()
			log.Infof("Switching from host %s to %s", currentHost, s.config.Hosts[nextHostIdx])
			currentHostIdx = nextHostIdx
		}

		wait := s.config.Backoff.NextBackOff()
		if wait == backoff.Stop {
			return fmt.Errorf("event stream gave up: %w", err)
		}

		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}
}

// consume holds one connection open and returns when it ends
func (s *Stream) consume(ctx context.Context, host string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, strings.TrimSuffix(host, "/")+"/api/events", nil)
	if err != nil {
		return fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Accept", "text/event-stream")
	req.Header.Set("Cache-Control", "no-cache")
	if s.config.UserAgent != "" {
		req.Header.Set("User-Agent", s.config.UserAgent)
	}

	resp, err := s.config.Client.Do(req)
	if err != nil {
		return fmt.Errorf("failed to connect: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("unexpected status %d", resp.StatusCode)
	}

	return s.read(resp.Body, func() { s.config.Backoff.Reset() })
}

// read parses an SSE body, publishing recognised frames. onInit is called
// once the server has acknowledged the subscription.
func (s *Stream) read(body io.Reader, onInit func()) error {
	scanner := bufio.NewScanner(body)
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)

	var name string
	var data strings.Builder
	for scanner.Scan() {
		line := scanner.Text()

		switch {
		case line == "":
			if name != "" || data.Len() > 0 {
				s.dispatch(name, data.String(), onInit)
			}
			name = ""
			data.Reset()
		case strings.HasPrefix(line, ":"):
			// Comment line
		case strings.HasPrefix(line, "event:"):
			name = strings.TrimSpace(strings.TrimPrefix(line, "event:"))
		case strings.HasPrefix(line, "data:"):
			if data.Len() > 0 {
				data.WriteByte('\n')
			}
			data.WriteString(strings.TrimPrefix(strings.TrimPrefix(line, "data:"), " "))
		}
	}

	if err := scanner.Err(); err != nil {
		return err
	}
	return errors.New("stream closed by server")
}

func (s *Stream) dispatch(name, data string, onInit func()) {
	streamEventsReceived.WithLabelValues(name).Inc()

	switch name {
	case "init":
		log.WithFields(log.Fields{"key": data}).Info("Event stream connected")
		if onInit != nil {
			onInit()
		}
	case "ping":
		log.Debug("Received ping from server")
	default:
		var evt Event
		if err := json.Unmarshal([]byte(data), &evt); err != nil {
			log.WithFields(log.Fields{
				"event": name,
				"error": err,
			}).Warn("Skipping malformed event")
			return
		}
		s.bus.Publish(evt)
	}
}
