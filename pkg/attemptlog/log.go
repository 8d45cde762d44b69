// Package attemptlog persists provider attempts for later diagnosis.
package attemptlog

import (
	"context"
	"database/sql"
	"fmt"
	"sync"
	"time"

	"github.com/verdant-ai/verdant/pkg/logger"
	"github.com/verdant-ai/verdant/pkg/models"
	"github.com/verdant-ai/verdant/pkg/sqlitedb"
)

var schema = []string{`
CREATE TABLE IF NOT EXISTS provider_attempts (
	id             INTEGER PRIMARY KEY AUTOINCREMENT,
	request_id     TEXT NOT NULL,
	fingerprint    TEXT NOT NULL,
	feature        TEXT NOT NULL,
	endpoint_index INTEGER NOT NULL,
	endpoint_name  TEXT NOT NULL,
	attempt_number INTEGER NOT NULL,
	started_at     INTEGER NOT NULL,
	timeout_ms     INTEGER NOT NULL,
	latency_ms     INTEGER NOT NULL,
	outcome        TEXT NOT NULL,
	status_code    INTEGER,
	error          TEXT
)`,
	`CREATE INDEX IF NOT EXISTS idx_attempts_request ON provider_attempts(request_id)`,
	`CREATE INDEX IF NOT EXISTS idx_attempts_started ON provider_attempts(started_at)`,
	`CREATE INDEX IF NOT EXISTS idx_attempts_outcome ON provider_attempts(outcome)`,
}

// Log writes and queries provider attempts in SQLite.
type Log struct {
	db            *sql.DB
	retentionDays int
	now           func() time.Time
	done          chan struct{}
	wg            sync.WaitGroup
}

// Option configures a Log.
type Option func(*Log)

// WithClock overrides the time source used for retention.
func WithClock(now func() time.Time) Option {
	return func(l *Log) { l.now = now }
}

// New opens the attempt log and starts the retention loop. A non-positive
// retentionDays keeps attempts forever.
func New(dbPath string, retentionDays int, opts ...Option) (*Log, error) {
	db, err := sqlitedb.Open(dbPath, schema...)
	if err != nil {
		return nil, fmt.Errorf("open attempt log: %w", err)
	}

	l := &Log{
		db:            db,
		retentionDays: retentionDays,
		now:           time.Now,
		done:          make(chan struct{}),
	}
	for _, opt := range opts {
		opt(l)
	}

	l.wg.Add(1)
	go l.retentionLoop()
	return l, nil
}

// Record inserts an attempt. A nil Log records nothing.
func (l *Log) Record(ctx context.Context, a models.ProviderAttempt) error {
	if l == nil || l.db == nil {
		return nil
	}
	_, err := l.db.ExecContext(ctx,
		`INSERT INTO provider_attempts
		(request_id, fingerprint, feature, endpoint_index, endpoint_name, attempt_number,
		 started_at, timeout_ms, latency_ms, outcome, status_code, error)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		a.RequestID, a.Fingerprint, string(a.Feature), a.EndpointIndex, a.EndpointName, a.AttemptNumber,
		a.StartedAt.UnixNano(), a.TimeoutMs, a.LatencyMs, string(a.Outcome), a.StatusCode, a.Error,
	)
	if err != nil {
		return fmt.Errorf("record attempt: %w", err)
	}
	return nil
}

// Query returns attempts matching opts, newest first.
func (l *Log) Query(ctx context.Context, opts models.AttemptQueryOpts) ([]models.ProviderAttempt, error) {
	q := `SELECT request_id, fingerprint, feature, endpoint_index, endpoint_name, attempt_number,
		started_at, timeout_ms, latency_ms, outcome, status_code, error
		FROM provider_attempts WHERE 1=1`
	var args []any

	if opts.RequestID != "" {
		q += " AND request_id = ?"
		args = append(args, opts.RequestID)
	}
	if opts.Endpoint != "" {
		q += " AND endpoint_name = ?"
		args = append(args, opts.Endpoint)
	}
	if opts.Outcome != "" {
		q += " AND outcome = ?"
		args = append(args, string(opts.Outcome))
	}
	if !opts.Since.IsZero() {
		q += " AND started_at >= ?"
		args = append(args, opts.Since.UnixNano())
	}

	q += " ORDER BY started_at DESC, id DESC"

	limit := opts.Limit
	if limit <= 0 {
		limit = 100
	}
	q += " LIMIT ?"
	args = append(args, limit)

	rows, err := l.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("query attempts: %w", err)
	}
	defer rows.Close()

	var attempts []models.ProviderAttempt
	for rows.Next() {
		var a models.ProviderAttempt
		var feature, outcome string
		var startedAt int64
		var status sql.NullInt64
		var errText sql.NullString
		if err := rows.Scan(
			&a.RequestID, &a.Fingerprint, &feature, &a.EndpointIndex, &a.EndpointName, &a.AttemptNumber,
			&startedAt, &a.TimeoutMs, &a.LatencyMs, &outcome, &status, &errText,
		); err != nil {
			return nil, fmt.Errorf("scan attempt row: %w", err)
		}
		a.Feature = models.Feature(feature)
		a.Outcome = models.Outcome(outcome)
		a.StartedAt = time.Unix(0, startedAt).UTC()
		a.StatusCode = int(status.Int64)
		a.Error = errText.String
		attempts = append(attempts, a)
	}
	return attempts, rows.Err()
}

// Stats returns attempt counts grouped by outcome and UTC day.
func (l *Log) Stats(ctx context.Context) ([]models.AttemptStat, error) {
	rows, err := l.db.QueryContext(ctx,
		`SELECT outcome, date(started_at / 1000000000, 'unixepoch') AS day, count(*) AS cnt
		 FROM provider_attempts GROUP BY outcome, day ORDER BY day DESC, outcome`)
	if err != nil {
		return nil, fmt.Errorf("attempt stats: %w", err)
	}
	defer rows.Close()

	var stats []models.AttemptStat
	for rows.Next() {
		var s models.AttemptStat
		var outcome string
		var day sql.NullString
		if err := rows.Scan(&outcome, &day, &s.Count); err != nil {
			return nil, fmt.Errorf("scan attempt stat: %w", err)
		}
		s.Outcome = models.Outcome(outcome)
		s.Day = day.String
		stats = append(stats, s)
	}
	return stats, rows.Err()
}

// Cleanup deletes attempts older than the retention period.
func (l *Log) Cleanup(ctx context.Context) (int64, error) {
	if l.retentionDays <= 0 {
		return 0, nil
	}
	cutoff := l.now().AddDate(0, 0, -l.retentionDays)
	res, err := l.db.ExecContext(ctx,
		`DELETE FROM provider_attempts WHERE started_at < ?`, cutoff.UnixNano())
	if err != nil {
		return 0, fmt.Errorf("attempt cleanup: %w", err)
	}
	return res.RowsAffected()
}

// Close stops the retention goroutine and closes the database.
func (l *Log) Close() error {
	close(l.done)
	l.wg.Wait()
	return l.db.Close()
}

func (l *Log) retentionLoop() {
	defer l.wg.Done()
	ticker := time.NewTicker(time.Hour)
	defer ticker.Stop()
	for {
		select {
		case <-l.done:
			return
		case <-ticker.C:
			if n, err := l.Cleanup(context.Background()); err != nil {
				logger.WithError(err).Warn("attempt log cleanup failed")
			} else if n > 0 {
				logger.WithField("removed", n).Debug("pruned provider attempts")
			}
		}
	}
}
