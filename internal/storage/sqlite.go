package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"github.com/maltedev/tramite-watcher/internal/models"
)

// SQLiteStore keeps one row per tracking id.
type SQLiteStore struct {
	db  *sql.DB
	key string
}

func NewSQLiteStore(dbPath, key string) (*SQLiteStore, error) {
	if dir := filepath.Dir(dbPath); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("%w: create database directory: %w", models.ErrPersistence, err)
		}
	}

	db, err := sql.Open("sqlite", dbPath+"?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)")
	if err != nil {
		return nil, fmt.Errorf("%w: open database: %w", models.ErrPersistence, err)
	}
	db.SetMaxOpenConns(1)

	store := &SQLiteStore{db: db, key: key}
	if err := store.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("%w: initialize schema: %w", models.ErrPersistence, err)
	}

	return store, nil
}

func (s *SQLiteStore) initSchema() error {
	_, err := s.db.Exec(`
	CREATE TABLE IF NOT EXISTS tramite_state (
		tracking_id TEXT PRIMARY KEY,
		status_text TEXT NOT NULL,
		updated_at INTEGER NOT NULL
	);`)
	return err
}

func (s *SQLiteStore) Load(ctx context.Context) (string, bool, error) {
	var status string
	err := s.db.QueryRowContext(ctx,
		`SELECT status_text FROM tramite_state WHERE tracking_id = ?`, s.key).Scan(&status)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("%w: load state: %w", models.ErrPersistence, err)
	}

	status = strings.TrimSpace(status)
	return status, status != "", nil
}

func (s *SQLiteStore) Save(ctx context.Context, status string) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO tramite_state (tracking_id, status_text, updated_at)
		VALUES (?, ?, ?)
		ON CONFLICT(tracking_id) DO UPDATE SET
			status_text = excluded.status_text,
			updated_at = excluded.updated_at`,
		s.key, strings.TrimSpace(status), time.Now().Unix())
	if err != nil {
		return fmt.Errorf("%w: save state: %w", models.ErrPersistence, err)
	}
	return nil
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
