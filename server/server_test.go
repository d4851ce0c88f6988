package server_test

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"scrollfeed/events"
	"scrollfeed/gateway"
	"scrollfeed/models"
	"scrollfeed/moderation"
	"scrollfeed/server"
	"scrollfeed/store"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type harness struct {
	app   *fiber.App
	store *store.Store
	bc    *server.Broadcaster
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	path := filepath.Join(t.TempDir(), "feed.db")
	require.NoError(t, store.Migrate(path))

	s, err := store.Open(path)
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })

	bc := server.NewBroadcaster()
	app := server.Server(&server.ServerConfig{
		Hostname:     "localhost",
		Store:        s,
		Broadcaster:  bc,
		PingInterval: 50 * time.Millisecond,
	})

	return &harness{app: app, store: s, bc: bc}
}

// seed creates n items, item-00 being the oldest
func (h *harness) seed(t *testing.T, n int) {
	t.Helper()
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	for i := 0; i < n; i++ {
		_, err := h.store.Create(context.Background(), models.Item{
			ID:        fmt.Sprintf("item-%02d", i),
			Title:     fmt.Sprintf("Item %d", i),
			CreatedAt: base.Add(time.Duration(i) * time.Minute),
		})
		require.NoError(t, err)
	}
}

func (h *harness) do(t *testing.T, req *http.Request, out interface{}) int {
	t.Helper()
	resp, err := h.app.Test(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	if out != nil {
		require.NoError(t, json.NewDecoder(resp.Body).Decode(out))
	}
	return resp.StatusCode
}

func postItem(body string) *http.Request {
	req := httptest.NewRequest(http.MethodPost, "/api/items", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	return req
}

func TestGetItems(t *testing.T) {
	h := newHarness(t)
	h.seed(t, 25)

	tests := []struct {
		name   string
		target string
		count  int
		first  string
		page   int
	}{
		{name: "first page by default", target: "/api/items", count: 20, first: "item-24", page: 1},
		{name: "second page is short", target: "/api/items?page=2", count: 5, first: "item-04", page: 2},
		{name: "past the end", target: "/api/items?page=3", count: 0, page: 3},
		{name: "custom limit", target: "/api/items?page=2&limit=10", count: 10, first: "item-14", page: 2},
		{name: "limit too large falls back", target: "/api/items?limit=1000", count: 20, first: "item-24", page: 1},
		{name: "limit not a number falls back", target: "/api/items?limit=many", count: 20, first: "item-24", page: 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var out models.ItemsResponse
			status := h.do(t, httptest.NewRequest(http.MethodGet, tt.target, nil), &out)

			assert.Equal(t, fiber.StatusOK, status)
			assert.Equal(t, tt.page, out.Page)
			assert.Len(t, out.Items, tt.count)
			if tt.count > 0 {
				assert.Equal(t, tt.first, out.Items[0].ID)
			}
		})
	}
}

func TestGetItemsRejectsInvalidPage(t *testing.T) {
	h := newHarness(t)

	for _, page := range []string{"0", "-1", "abc"} {
		t.Run(page, func(t *testing.T) {
			var out models.ErrorResponse
			status := h.do(t, httptest.NewRequest(http.MethodGet, "/api/items?page="+page, nil), &out)

			assert.Equal(t, fiber.StatusBadRequest, status)
			assert.Equal(t, "Invalid page", out.Message)
		})
	}
}

func TestGetItemsByID(t *testing.T) {
	h := newHarness(t)
	h.seed(t, 5)

	var out models.ItemsResponse
	status := h.do(t, httptest.NewRequest(http.MethodGet, "/api/items/by-id?ids=item-03,unknown,item-01,item-03", nil), &out)

	assert.Equal(t, fiber.StatusOK, status)
	require.Len(t, out.Items, 2)
	assert.Equal(t, "item-03", out.Items[0].ID)
	assert.Equal(t, "item-01", out.Items[1].ID)

	var empty models.ItemsResponse
	status = h.do(t, httptest.NewRequest(http.MethodGet, "/api/items/by-id?ids=", nil), &empty)
	assert.Equal(t, fiber.StatusOK, status)
	assert.NotNil(t, empty.Items)
	assert.Empty(t, empty.Items)
}

func TestCreateItemBroadcasts(t *testing.T) {
	h := newHarness(t)

	client := make(chan events.Event, 1)
	h.bc.AddClient("test", client)
	defer h.bc.RemoveClient("test")

	var item models.Item
	status := h.do(t, postItem(`{"title":"Shipping today","body":"The new feed is out for everyone","author":"ada","language":"en"}`), &item)

	require.Equal(t, fiber.StatusCreated, status)
	assert.NotEmpty(t, item.ID)
	assert.Equal(t, "ada", item.Author)
	assert.Equal(t, "en", item.Language)
	assert.False(t, item.CreatedAt.IsZero())

	select {
	case evt := <-client:
		assert.Equal(t, events.Event{Type: events.ItemCreated, Payload: []string{item.ID}}, evt)
	case <-time.After(time.Second):
		t.Fatal("no event broadcast")
	}

	stored, err := h.store.ByIDs(context.Background(), []string{item.ID})
	require.NoError(t, err)
	assert.Len(t, stored, 1)
}

func TestCreateItemDefaultsAuthor(t *testing.T) {
	h := newHarness(t)

	var item models.Item
	status := h.do(t, postItem(`{"title":"Hello there","body":"A quiet afternoon by the lake"}`), &item)

	require.Equal(t, fiber.StatusCreated, status)
	assert.Equal(t, "anonymous", item.Author)
}

func TestCreateItemRejected(t *testing.T) {
	tests := []struct {
		name    string
		body    string
		status  int
		message string
	}{
		{
			name:    "invalid json",
			body:    `{"title":`,
			status:  fiber.StatusBadRequest,
			message: "Invalid body",
		},
		{
			name:    "missing title",
			body:    `{"body":"Something worth reading"}`,
			status:  fiber.StatusBadRequest,
			message: "Title and body are required",
		},
		{
			name:    "spam",
			body:    `{"title":"Hey","body":"Please follow me everyone"}`,
			status:  fiber.StatusUnprocessableEntity,
			message: moderation.ErrSpam.Error(),
		},
		{
			name:    "repetitive",
			body:    `{"title":"ha","body":"ha ha ha ha"}`,
			status:  fiber.StatusUnprocessableEntity,
			message: moderation.ErrRepetitive.Error(),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(t)

			var out models.ErrorResponse
			status := h.do(t, postItem(tt.body), &out)

			assert.Equal(t, tt.status, status)
			assert.Equal(t, tt.message, out.Message)

			count, err := h.store.Count(context.Background())
			require.NoError(t, err)
			assert.Zero(t, count)
		})
	}
}

func TestMetricsEndpoint(t *testing.T) {
	h := newHarness(t)

	resp, err := h.app.Test(httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.NoError(t, err)
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)
	assert.Contains(t, string(body), "scrollfeed_server_items_created_total")
}

// listen serves the app on a random local port
func listen(t *testing.T, app *fiber.App) string {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	go app.Listener(ln)
	t.Cleanup(func() { app.ShutdownWithTimeout(2 * time.Second) })

	return "http://" + ln.Addr().String()
}

func TestGatewayAgainstServer(t *testing.T) {
	h := newHarness(t)
	h.seed(t, 25)
	url := listen(t, h.app)

	client := gateway.NewClient(gateway.ClientConfig{BaseURL: url})

	first, err := client.FetchPage(context.Background(), 1)
	require.NoError(t, err)
	assert.Len(t, first, 20)

	second, err := client.FetchPage(context.Background(), 2)
	require.NoError(t, err)
	assert.Len(t, second, 5)

	byID, err := client.FetchByIDs(context.Background(), []string{"item-07", "item-02"})
	require.NoError(t, err)
	require.Len(t, byID, 2)
	assert.Equal(t, "item-07", byID[0].ID)
	assert.Equal(t, "item-02", byID[1].ID)
}

func TestEventStreamDeliversCreatedItems(t *testing.T) {
	h := newHarness(t)
	url := listen(t, h.app)

	bus := events.NewBus()
	received := make(chan events.Event, 10)
	bus.Subscribe(func(evt events.Event) { received <- evt })

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	stream := events.NewStream(events.StreamConfig{Hosts: []string{url}}, bus)
	go func() { done <- stream.Run(ctx) }()

	require.Eventually(t, func() bool { return h.bc.Len() == 1 }, 2*time.Second, 10*time.Millisecond)

	resp, err := http.Post(url+"/api/items", "application/json",
		strings.NewReader(`{"title":"Fresh news","body":"Something happened downtown today"}`))
	require.NoError(t, err)
	var item models.Item
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&item))
	resp.Body.Close()

	select {
	case evt := <-received:
		assert.Equal(t, events.Event{Type: events.ItemCreated, Payload: []string{item.ID}}, evt)
	case <-time.After(2 * time.Second):
		t.Fatal("event did not arrive")
	}

	cancel()
	assert.ErrorIs(t, <-done, context.Canceled)
}
