package database

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/maltedev/tramite-watcher/internal/models"
)

// Querier is the subset of DB used by StateStore (for testing)
type Querier interface {
	Exec(ctx context.Context, sql string, args ...interface{}) (pgconn.CommandTag, error)
	QueryRow(ctx context.Context, sql string, args ...interface{}) pgx.Row
}

const (
	createStateTable = `
		CREATE TABLE IF NOT EXISTS tramite_state (
			tracking_id TEXT PRIMARY KEY,
			status_text TEXT NOT NULL,
			updated_at  TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)`

	selectState = `
		SELECT status_text
		FROM tramite_state
		WHERE tracking_id = $1`

	upsertState = `
		INSERT INTO tramite_state (tracking_id, status_text, updated_at)
		VALUES ($1, $2, NOW())
		ON CONFLICT (tracking_id) DO UPDATE
		SET status_text = EXCLUDED.status_text,
		    updated_at  = EXCLUDED.updated_at`
)

// StateStore keeps the last observed status of one trámite in PostgreSQL.
type StateStore struct {
	db         Querier
	trackingID string
}

func NewStateStore(db Querier, trackingID string) *StateStore {
	return &StateStore{db: db, trackingID: trackingID}
}

// EnsureSchema creates the state table when it does not exist yet.
func (s *StateStore) EnsureSchema(ctx context.Context) error {
	if _, err := s.db.Exec(ctx, createStateTable); err != nil {
		return fmt.Errorf("%w: create state table: %w", models.ErrPersistence, err)
	}
	return nil
}

func (s *StateStore) Load(ctx context.Context) (string, bool, error) {
	var status string
	err := s.db.QueryRow(ctx, selectState, s.trackingID).Scan(&status)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return "", false, nil
		}
		return "", false, fmt.Errorf("%w: load state: %w", models.ErrPersistence, err)
	}

	status = strings.TrimSpace(status)
	if status == "" {
		return "", false, nil
	}
	return status, true, nil
}

// Save upserts the status in a single statement.
func (s *StateStore) Save(ctx context.Context, status string) error {
	if _, err := s.db.Exec(ctx, upsertState, s.trackingID, strings.TrimSpace(status)); err != nil {
		return fmt.Errorf("%w: save state: %w", models.ErrPersistence, err)
	}
	return nil
}
