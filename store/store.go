// Package store persists feed items in SQLite
package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"scrollfeed/models"

	"github.com/google/uuid"
	sqlbuilder "github.com/huandu/go-sqlbuilder"
	"github.com/samber/lo"
	log "github.com/sirupsen/logrus"
)

// MaxLimit caps the page size a caller may request
const MaxLimit = models.MaxLimit

// Store reads and writes items. Migrations must have been applied.
type Store struct {
	db *sql.DB
}

func Open(database string) (*Store, error) {
	db, err := connection(database)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	return &Store{db: db}, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

var itemColumns = []string{"id", "title", "body", "author", "language", "created_at"}

// Page returns items newest first. Pages start at 1.
func (s *Store) Page(ctx context.Context, page int, limit int) ([]models.Item, error) {
	if page < 1 {
		return nil, fmt.Errorf("invalid page %d", page)
	}
	if limit < 1 || limit > MaxLimit {
		return nil, fmt.Errorf("invalid limit %d", limit)
	}

	sb := sqlbuilder.SQLite.NewSelectBuilder()
	sb.Select(itemColumns...).From("items")
	sb.OrderBy("created_at DESC", "id DESC")
	sb.Limit(limit)
	sb.Offset((page - 1) * limit)

	query, args := sb.Build()
	return s.query(ctx, query, args...)
}

// ByIDs returns the items with the given ids in the order the ids were
// given. Unknown ids are skipped.
func (s *Store) ByIDs(ctx context.Context, ids []string) ([]models.Item, error) {
	ids = lo.Uniq(ids)
	if len(ids) == 0 {
		return []models.Item{}, nil
	}

	sb := sqlbuilder.SQLite.NewSelectBuilder()
	sb.Select(itemColumns...).From("items")
	sb.Where(sb.In("id", lo.ToAnySlice(ids)...))

	query, args := sb.Build()
	items, err := s.query(ctx, query, args...)
	if err != nil {
		return nil, err
	}

	byID := lo.KeyBy(items, func(item models.Item) string { return item.ID })
	return lo.FilterMap(ids, func(id string, _ int) (models.Item, bool) {
		item, ok := byID[id]
		return item, ok
	}), nil
}

// Create stores a new item, filling in the id and creation time when they
// are missing, and returns what was stored
func (s *Store) Create(ctx context.Context, item models.Item) (models.Item, error) {
	if item.ID == "" {
		item.ID = uuid.New().String()
	}
	if item.CreatedAt.IsZero() {
		item.CreatedAt = time.Now().UTC()
	}

	log.WithFields(log.Fields{
		"id":     item.ID,
		"author": item.Author,
	}).Info("Creating item")

	ib := sqlbuilder.SQLite.NewInsertBuilder()
	ib.InsertInto("items").Cols(itemColumns...).Values(
		item.ID,
		item.Title,
		item.Body,
		item.Author,
		item.Language,
		item.CreatedAt.UnixMilli(),
	)

	query, args := ib.Build()
	if _, err := s.db.ExecContext(ctx, query, args...); err != nil {
		return models.Item{}, fmt.Errorf("insert error: %w", err)
	}

	// Millisecond precision is what comes back on read
	item.CreatedAt = time.UnixMilli(item.CreatedAt.UnixMilli()).UTC()
	return item, nil
}

func (s *Store) Count(ctx context.Context) (int64, error) {
	sb := sqlbuilder.SQLite.NewSelectBuilder()
	sb.Select("count(*)").From("items")

	query, args := sb.Build()
	var count int64
	if err := s.db.QueryRowContext(ctx, query, args...).Scan(&count); err != nil {
		return 0, fmt.Errorf("count error: %w", err)
	}
	return count, nil
}

func (s *Store) query(ctx context.Context, query string, args ...interface{}) ([]models.Item, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query error: %w", err)
	}
	defer rows.Close()

	items := []models.Item{}
	for rows.Next() {
		var item models.Item
		var createdAt int64
		if err := rows.Scan(&item.ID, &item.Title, &item.Body, &item.Author, &item.Language, &createdAt); err != nil {
			return nil, fmt.Errorf("scan error: %w", err)
		}
		item.CreatedAt = time.UnixMilli(createdAt).UTC()
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("query error: %w", err)
	}

	return items, nil
}
