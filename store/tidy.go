package store

import (
	"context"
	"fmt"
	"time"

	sqlbuilder "github.com/huandu/go-sqlbuilder"
	log "github.com/sirupsen/logrus"
)

// Tidy removes items created before the cutoff and returns how many went
func (s *Store) Tidy(ctx context.Context, olderThan time.Duration) (int64, error) {
	cutoff := time.Now().Add(-olderThan).UnixMilli()

	del := sqlbuilder.SQLite.NewDeleteBuilder()
	del.DeleteFrom("items").Where(del.LessThan("created_at", cutoff))
	query, args := del.Build()

	log.WithFields(log.Fields{
		"sql":  query,
		"args": args,
	}).Info("Tidying database")

	res, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, fmt.Errorf("delete error: %w", err)
	}
	return res.RowsAffected()
}
