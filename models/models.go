package models

import "time"

// PageSize is the number of items the content server returns per page
const PageSize = 20

// MaxLimit is the largest page the content server will serve
const MaxLimit = 100

// Item is a single feed entry. ID is stable and used as the rendering key.
type Item struct {
	ID        string    `json:"id"`
	Title     string    `json:"title"`
	Body      string    `json:"body"`
	Author    string    `json:"author"`
	Language  string    `json:"language,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
}

// ItemsResponse is the body returned by the page and by-id endpoints
type ItemsResponse struct {
	Items []Item `json:"items"`
	Page  int    `json:"page,omitempty"`
}

// CreateItemRequest is the body accepted when authoring a new item
type CreateItemRequest struct {
	Title    string `json:"title"`
	Body     string `json:"body"`
	Author   string `json:"author"`
	Language string `json:"language,omitempty"`
}

// ErrorResponse is returned by the server on failed requests
type ErrorResponse struct {
	Message string `json:"message"`
}
