// Package sqlite stores usage records as JSON documents in SQLite.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/verdant-ai/verdant/pkg/models"
	"github.com/verdant-ai/verdant/pkg/sqlitedb"
)

const createTable = `
CREATE TABLE IF NOT EXISTS usage_records (
	user_id TEXT PRIMARY KEY,
	record TEXT NOT NULL,
	updated_at INTEGER NOT NULL
)`

// Store persists one UsageRecord per user.
type Store struct {
	db *sql.DB
}

// New opens the store at dbPath and runs auto-migration.
func New(dbPath string) (*Store, error) {
	db, err := sqlitedb.Open(dbPath, createTable)
	if err != nil {
		return nil, fmt.Errorf("open usage db: %w", err)
	}
	return &Store{db: db}, nil
}

// Load returns the record for userID. The bool is false when none exists.
func (s *Store) Load(ctx context.Context, userID string) (*models.UsageRecord, bool, error) {
	var data string
	err := s.db.QueryRowContext(ctx,
		`SELECT record FROM usage_records WHERE user_id = ?`, userID,
	).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("load usage record: %w", err)
	}

	var rec models.UsageRecord
	if err := json.Unmarshal([]byte(data), &rec); err != nil {
		return nil, false, fmt.Errorf("decode usage record %s: %w", userID, err)
	}
	return &rec, true, nil
}

// Save writes rec, replacing any previous version.
func (s *Store) Save(ctx context.Context, rec *models.UsageRecord) error {
	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("encode usage record: %w", err)
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO usage_records (user_id, record, updated_at) VALUES (?, ?, ?)
		 ON CONFLICT(user_id) DO UPDATE SET record = excluded.record, updated_at = excluded.updated_at`,
		rec.UserID, string(data), rec.UpdatedAt.UnixNano(),
	)
	if err != nil {
		return fmt.Errorf("save usage record: %w", err)
	}
	return nil
}

// List returns every stored record ordered by user.
func (s *Store) List(ctx context.Context) ([]models.UsageRecord, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT user_id, record FROM usage_records ORDER BY user_id`)
	if err != nil {
		return nil, fmt.Errorf("list usage records: %w", err)
	}
	defer rows.Close()

	var recs []models.UsageRecord
	for rows.Next() {
		var userID, data string
		if err := rows.Scan(&userID, &data); err != nil {
			return nil, fmt.Errorf("scan usage record: %w", err)
		}
		var rec models.UsageRecord
		if err := json.Unmarshal([]byte(data), &rec); err != nil {
			return nil, fmt.Errorf("decode usage record %s: %w", userID, err)
		}
		recs = append(recs, rec)
	}
	return recs, rows.Err()
}

// Close releases the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}
