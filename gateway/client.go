package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"scrollfeed/models"

	log "github.com/sirupsen/logrus"
	"golang.org/x/time/rate"
)

// ClientConfig configures the HTTP gateway
type ClientConfig struct {
	// BaseURL of the content server, e.g. http://localhost:3000
	BaseURL string
	// RequestsPerSecond caps outgoing requests. Zero means unlimited.
	RequestsPerSecond float64
	Timeout           time.Duration
	UserAgent         string
	// PageSize is the limit sent with page requests. Defaults to models.PageSize.
	PageSize int
}

// Client talks to the content server's item endpoints
type Client struct {
	baseURL   string
	userAgent string
	pageSize  int
	client    *http.Client
	limiter   *rate.Limiter
}

var _ Gateway = (*Client)(nil)

func NewClient(config ClientConfig) *Client {
	if config.Timeout <= 0 {
		config.Timeout = 30 * time.Second
	}

	if config.PageSize <= 0 {
		config.PageSize = models.PageSize
	}

	limiter := rate.NewLimiter(rate.Inf, 1)
	if config.RequestsPerSecond > 0 {
		limiter = rate.NewLimiter(rate.Limit(config.RequestsPerSecond), 1)
	}

	return &Client{
		baseURL:   strings.TrimSuffix(config.BaseURL, "/"),
		userAgent: config.UserAgent,
		pageSize:  config.PageSize,
		client:    &http.Client{Timeout: config.Timeout},
		limiter:   limiter,
	}
}

func (c *Client) FetchPage(ctx context.Context, page int) ([]models.Item, error) {
	q := url.Values{}
	q.Set("page", strconv.Itoa(page))
	q.Set("limit", strconv.Itoa(c.pageSize))

	return c.get(ctx, "fetch page", "/api/items?"+q.Encode())
}

func (c *Client) FetchByIDs(ctx context.Context, ids []string) ([]models.Item, error) {
	if len(ids) == 0 {
		return []models.Item{}, nil
	}

	q := url.Values{}
	q.Set("ids", strings.Join(ids, ","))

	return c.get(ctx, "fetch by ids", "/api/items/by-id?"+q.Encode())
}

// CreateItem authors a new item on the content server. It is not part of
// Gateway since the feed itself never writes.
func (c *Client) CreateItem(ctx context.Context, item models.CreateItemRequest) (models.Item, error) {
	body, err := json.Marshal(item)
	if err != nil {
		return models.Item{}, fetchError("create item", err)
	}

	var out models.Item
	if err := c.do(ctx, "create item", http.MethodPost, "/api/items", bytes.NewReader(body), &out); err != nil {
		return models.Item{}, err
	}
	return out, nil
}

func (c *Client) get(ctx context.Context, op string, path string) ([]models.Item, error) {
	var out models.ItemsResponse
	if err := c.do(ctx, op, http.MethodGet, path, nil, &out); err != nil {
		return nil, err
	}
	if out.Items == nil {
		out.Items = []models.Item{}
	}
	return out.Items, nil
}

// do sends one request and decodes a successful JSON response into out.
// Every failure is returned as a *FetchError.
func (c *Client) do(ctx context.Context, op string, method string, path string, payload io.Reader, out interface{}) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return fetchError(op, fmt.Errorf("rate limiter: %w", err))
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, payload)
	if err != nil {
		return fetchError(op, err)
	}
	req.Header.Set("Accept", "application/json")
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.userAgent != "" {
		req.Header.Set("User-Agent", c.userAgent)
	}

	start := time.Now()
	resp, err := c.client.Do(req)
	if err != nil {
		return fetchError(op, err)
	}
	defer resp.Body.Close()

	log.WithFields(log.Fields{
		"op":      op,
		"method":  method,
		"path":    path,
		"status":  resp.StatusCode,
		"latency": time.Since(start),
	}).Debug("Gateway request")

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fetchError(op, fmt.Errorf("read body: %w", err))
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		var apiErr models.ErrorResponse
		if json.Unmarshal(body, &apiErr) == nil && apiErr.Message != "" {
			return &FetchError{Op: op, Message: apiErr.Message}
		}
		return &FetchError{Op: op, Message: fmt.Sprintf("unexpected status %d", resp.StatusCode)}
	}

	if err := json.Unmarshal(body, out); err != nil {
		return fetchError(op, fmt.Errorf("decode response: %w", err))
	}
	return nil
}
