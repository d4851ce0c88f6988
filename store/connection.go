package store

import (
	"database/sql"
	"fmt"
	"net/url"
	"time"

	log "github.com/sirupsen/logrus"
	_ "modernc.org/sqlite"
)

// pragmas are applied by the driver to every new connection, so they survive
// the pool recycling connections
var pragmas = []string{
	"foreign_keys(1)",
	"journal_mode(WAL)",
	"busy_timeout(5000)",
	"synchronous(NORMAL)",
	"cache_size(-32000)", // 32MB
	"temp_store(MEMORY)",
}

func dsn(database string) string {
	q := url.Values{}
	for _, p := range pragmas {
		q.Add("_pragma", p)
	}
	return database + "?" + q.Encode()
}

func connection(database string) (*sql.DB, error) {
	db, err := sql.Open("sqlite", dsn(database))
	if err != nil {
		return nil, err
	}

	// SQLite has a single writer
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(time.Hour)
	db.SetConnMaxIdleTime(time.Hour)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect: %w", err)
	}

	log.WithFields(log.Fields{
		"database": database,
	}).Debug("Opened database")

	return db, nil
}
