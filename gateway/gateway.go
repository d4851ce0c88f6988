// Package gateway fetches feed items from the content server
package gateway

import (
	"context"
	"fmt"

	"scrollfeed/models"
)

// Gateway is the remote source of feed items. Implementations must not retry;
// the feed decides when to ask again.
type Gateway interface {
	// FetchPage returns page n (starting at 1). Fewer than models.PageSize
	// items means there is nothing after it.
	FetchPage(ctx context.Context, page int) ([]models.Item, error)
	// FetchByIDs returns the items with the given ids
	FetchByIDs(ctx context.Context, ids []string) ([]models.Item, error)
}

// FetchError is returned for every failed gateway call
type FetchError struct {
	Op      string
	Message string
	Err     error
}

func (e *FetchError) Error() string {
	if e.Op == "" {
		return e.Message
	}
	return fmt.Sprintf("%s: %s", e.Op, e.Message)
}

func (e *FetchError) Unwrap() error {
	return e.Err
}

func fetchError(op string, err error) *FetchError {
	return &FetchError{Op: op, Message: err.Error(), Err: err}
}
