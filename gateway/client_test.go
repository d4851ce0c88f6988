package gateway_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"scrollfeed/gateway"
	"scrollfeed/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestServer(t *testing.T, handler http.HandlerFunc) *gateway.Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return gateway.NewClient(gateway.ClientConfig{BaseURL: srv.URL + "/"})
}

func TestFetchPage(t *testing.T) {
	client := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/items", r.URL.Path)
		assert.Equal(t, "2", r.URL.Query().Get("page"))
		assert.Equal(t, "20", r.URL.Query().Get("limit"))
		json.NewEncoder(w).Encode(models.ItemsResponse{
			Items: []models.Item{{ID: "a"}, {ID: "b"}},
			Page:  2,
		})
	})

	items, err := client.FetchPage(context.Background(), 2)
	require.NoError(t, err)
	assert.Equal(t, []models.Item{{ID: "a"}, {ID: "b"}}, items)
}

func TestFetchByIDs(t *testing.T) {
	client := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/items/by-id", r.URL.Path)
		assert.Equal(t, "x,y", r.URL.Query().Get("ids"))
		w.Write([]byte(`{"items":[{"id":"y"},{"id":"x"}]}`))
	})

	items, err := client.FetchByIDs(context.Background(), []string{"x", "y"})
	require.NoError(t, err)
	assert.Equal(t, []models.Item{{ID: "y"}, {ID: "x"}}, items)
}

func TestFetchByIDsEmptySkipsRequest(t *testing.T) {
	client := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		t.Error("no request expected")
	})

	items, err := client.FetchByIDs(context.Background(), nil)
	require.NoError(t, err)
	assert.Empty(t, items)
}

func TestFetchErrors(t *testing.T) {
	tests := []struct {
		name     string
		handler  http.HandlerFunc
		expected string
	}{
		{
			name: "server message",
			handler: func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusBadRequest)
				w.Write([]byte(`{"message":"invalid page"}`))
			},
			expected: "fetch page: invalid page",
		},
		{
			name: "bare status",
			handler: func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusBadGateway)
			},
			expected: "fetch page: unexpected status 502",
		},
		{
			name: "malformed body",
			handler: func(w http.ResponseWriter, r *http.Request) {
				w.Write([]byte(`{"items":`))
			},
			expected: "fetch page: decode response",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client := newTestServer(t, tt.handler)

			_, err := client.FetchPage(context.Background(), 1)
			require.Error(t, err)

			var fetchErr *gateway.FetchError
			require.True(t, errors.As(err, &fetchErr))
			assert.Contains(t, fetchErr.Error(), tt.expected)
		})
	}
}

func TestFetchCancelled(t *testing.T) {
	client := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"items":[]}`))
	})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := client.FetchPage(ctx, 1)
	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestCreateItem(t *testing.T) {
	client := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/api/items", r.URL.Path)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))

		var req models.CreateItemRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "Hello", req.Title)

		w.WriteHeader(http.StatusCreated)
		json.NewEncoder(w).Encode(models.Item{ID: "new", Title: req.Title})
	})

	item, err := client.CreateItem(context.Background(), models.CreateItemRequest{Title: "Hello", Body: "World"})
	require.NoError(t, err)
	assert.Equal(t, models.Item{ID: "new", Title: "Hello"}, item)
}

func TestCreateItemRejected(t *testing.T) {
	client := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnprocessableEntity)
		w.Write([]byte(`{"message":"text looks like spam"}`))
	})

	_, err := client.CreateItem(context.Background(), models.CreateItemRequest{Title: "x"})
	assert.EqualError(t, err, "create item: text looks like spam")
}
