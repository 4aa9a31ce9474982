package engine

import (
	"database/sql"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"

	"github.com/raj2399/Task-Evallo/pkg/schema"

	_ "modernc.org/sqlite"
)

const createLogsTable = `CREATE TABLE IF NOT EXISTS logs (
	id     INTEGER PRIMARY KEY AUTOINCREMENT,
	record TEXT NOT NULL
)`

// SQLiteStore keeps one JSON-encoded record per row. Arrival order is row id order.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore opens (or creates) the database at path and makes sure the table exists.
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	if path == "" {
		return nil, errors.New("sqlite store: empty path")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, persistErr("create data dir", err)
	}

	db, err := sql.Open("sqlite", path+"?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)")
	if err != nil {
		return nil, persistErr("open "+path, err)
	}
	// A single connection serializes writers.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(createLogsTable); err != nil {
		db.Close()
		return nil, persistErr("create table", err)
	}
	return &SQLiteStore{db: db}, nil
}

func (s *SQLiteStore) Append(rec schema.LogRecord) error {
	bytes, err := json.Marshal(rec)
	if err != nil {
		return persistErr("encode", err)
	}
	if _, err := s.db.Exec(`INSERT INTO logs (record) VALUES (?)`, string(bytes)); err != nil {
		return persistErr("insert", err)
	}
	return nil
}

func (s *SQLiteStore) ReadAll() ([]schema.LogRecord, error) {
	rows, err := s.db.Query(`SELECT record FROM logs ORDER BY id`)
	if err != nil {
		return nil, persistErr("select", err)
	}
	defer rows.Close()

	recs := []schema.LogRecord{}
	for rows.Next() {
		var raw string
		if err := rows.Scan(&raw); err != nil {
			return nil, persistErr("scan", err)
		}
		rec, err := schema.Decode([]byte(raw))
		if err != nil {
			return nil, persistErr("decode row", err)
		}
		recs = append(recs, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, persistErr("iterate", err)
	}
	return recs, nil
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
