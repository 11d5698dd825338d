// Package emaillogs records ticket email deliveries and serves them to the dashboard.
package emaillogs

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/aura-checkin/backend/internal/models"
)

// ErrNotFound is returned when a log entry does not exist.
var ErrNotFound = errors.New("email log not found")

// DefaultListLimit caps List when no limit is given.
const DefaultListLimit = 100

// Store persists email logs. Entries are append-only; only deletion is supported.
type Store interface {
	Append(ctx context.Context, entry *models.EmailLog) error
	List(ctx context.Context, status string, limit int) ([]models.EmailLog, error)
	Delete(ctx context.Context, id uuid.UUID) error
	DeleteAll(ctx context.Context) (int64, error)
}

func normalize(entry *models.EmailLog, now time.Time) {
	if entry.ID == uuid.Nil {
		entry.ID = uuid.New()
	}
	if entry.SentAt.IsZero() {
		entry.SentAt = now
	}
	entry.SentAt = entry.SentAt.UTC()
}

func clampLimit(limit int) int {
	if limit <= 0 || limit > 1000 {
		return DefaultListLimit
	}
	return limit
}

// PostgresRepository handles email_logs persistence in PostgreSQL.
type PostgresRepository struct {
	pool *pgxpool.Pool
}

var _ Store = (*PostgresRepository)(nil)

// NewPostgresRepository creates an email logs repository.
func NewPostgresRepository(pool *pgxpool.Pool) *PostgresRepository {
	return &PostgresRepository{pool: pool}
}

// Append inserts an entry.
func (r *PostgresRepository) Append(ctx context.Context, entry *models.EmailLog) error {
	normalize(entry, time.Now())
	const q = `INSERT INTO email_logs (id, participant_unique_id, email, status, error_message, sent_at)
		VALUES ($1, $2, $3, $4, NULLIF($5, ''), $6)`
	if _, err := r.pool.Exec(ctx, q, entry.ID, entry.ParticipantUniqueID, entry.RecipientEmail, entry.Status, entry.ErrorMessage, entry.SentAt); err != nil {
		return fmt.Errorf("insert email log: %w", err)
	}
	return nil
}

// List returns entries newest first, optionally filtered by status.
func (r *PostgresRepository) List(ctx context.Context, status string, limit int) ([]models.EmailLog, error) {
	const q = `SELECT id, participant_unique_id, email, status, COALESCE(error_message, ''), sent_at
		FROM email_logs
		WHERE ($1 = '' OR status = $1)
		ORDER BY sent_at DESC
		LIMIT $2`
	rows, err := r.pool.Query(ctx, q, status, clampLimit(limit))
	if err != nil {
		return nil, fmt.Errorf("list email logs: %w", err)
	}
	defer rows.Close()
	var list []models.EmailLog
	for rows.Next() {
		var el models.EmailLog
		if err := rows.Scan(&el.ID, &el.ParticipantUniqueID, &el.RecipientEmail, &el.Status, &el.ErrorMessage, &el.SentAt); err != nil {
			return nil, err
		}
		list = append(list, el)
	}
	return list, rows.Err()
}

// Delete removes one entry.
func (r *PostgresRepository) Delete(ctx context.Context, id uuid.UUID) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM email_logs WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete email log: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// DeleteAll removes every entry.
func (r *PostgresRepository) DeleteAll(ctx context.Context) (int64, error) {
	tag, err := r.pool.Exec(ctx, `DELETE FROM email_logs`)
	if err != nil {
		return 0, fmt.Errorf("delete email logs: %w", err)
	}
	return tag.RowsAffected(), nil
}

// SQLiteRepository handles email_logs persistence in SQLite. sent_at is unix milliseconds.
type SQLiteRepository struct {
	db *sql.DB
}

var _ Store = (*SQLiteRepository)(nil)

// NewSQLiteRepository creates an email logs repository over an opened SQLite handle.
func NewSQLiteRepository(db *sql.DB) *SQLiteRepository {
	return &SQLiteRepository{db: db}
}

// Append inserts an entry.
func (r *SQLiteRepository) Append(ctx context.Context, entry *models.EmailLog) error {
	normalize(entry, time.Now())
	var errMsg sql.NullString
	if entry.ErrorMessage != "" {
		errMsg = sql.NullString{String: entry.ErrorMessage, Valid: true}
	}
	_, err := r.db.ExecContext(ctx, `INSERT INTO email_logs (id, participant_unique_id, email, status, error_message, sent_at)
		VALUES (?, ?, ?, ?, ?, ?)`,
		entry.ID.String(), entry.ParticipantUniqueID, entry.RecipientEmail, entry.Status, errMsg, entry.SentAt.UnixMilli())
	if err != nil {
		return fmt.Errorf("insert email log: %w", err)
	}
	return nil
}

// List returns entries newest first, optionally filtered by status.
func (r *SQLiteRepository) List(ctx context.Context, status string, limit int) ([]models.EmailLog, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT id, participant_unique_id, email, status, COALESCE(error_message, ''), sent_at
		FROM email_logs
		WHERE (? = '' OR status = ?)
		ORDER BY sent_at DESC
		LIMIT ?`, status, status, clampLimit(limit))
	if err != nil {
		return nil, fmt.Errorf("list email logs: %w", err)
	}
	defer rows.Close()
	var list []models.EmailLog
	for rows.Next() {
		var (
			el     models.EmailLog
			id     string
			sentAt int64
		)
		if err := rows.Scan(&id, &el.ParticipantUniqueID, &el.RecipientEmail, &el.Status, &el.ErrorMessage, &sentAt); err != nil {
			return nil, err
		}
		if el.ID, err = uuid.Parse(id); err != nil {
			return nil, fmt.Errorf("parse email log id %q: %w", id, err)
		}
		el.SentAt = time.UnixMilli(sentAt).UTC()
		list = append(list, el)
	}
	return list, rows.Err()
}

// Delete removes one entry.
func (r *SQLiteRepository) Delete(ctx context.Context, id uuid.UUID) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM email_logs WHERE id = ?`, id.String())
	if err != nil {
		return fmt.Errorf("delete email log: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// DeleteAll removes every entry.
func (r *SQLiteRepository) DeleteAll(ctx context.Context) (int64, error) {
	res, err := r.db.ExecContext(ctx, `DELETE FROM email_logs`)
	if err != nil {
		return 0, fmt.Errorf("delete email logs: %w", err)
	}
	return res.RowsAffected()
}
