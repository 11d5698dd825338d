package participants

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	msqlite "modernc.org/sqlite"
	sqlite3lib "modernc.org/sqlite/lib"

	"github.com/aura-checkin/backend/internal/models"
	"github.com/aura-checkin/backend/internal/ticket"
)

// SQLiteRepository handles participant persistence in a single-node SQLite file.
// Timestamps are stored as unix milliseconds.
type SQLiteRepository struct {
	db  *sql.DB
	now func() time.Time
}

var _ Store = (*SQLiteRepository)(nil)

// NewSQLiteRepository creates a participants repository over an opened SQLite handle.
func NewSQLiteRepository(db *sql.DB) *SQLiteRepository {
	return &SQLiteRepository{db: db, now: time.Now}
}

func toMillis(t time.Time) int64 {
	return t.UTC().UnixMilli()
}

func fromMillis(v int64) time.Time {
	return time.UnixMilli(v).UTC()
}

func nullableMillis(t *time.Time) sql.NullInt64 {
	if t == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: toMillis(*t), Valid: true}
}

func timePtr(v sql.NullInt64) *time.Time {
	if !v.Valid {
		return nil
	}
	t := fromMillis(v.Int64)
	return &t
}

func scanSQLiteParticipant(row rowScanner) (*models.Participant, error) {
	var (
		p                               models.Participant
		id                              string
		present                         int64
		token                           sql.NullString
		issuedAt, registered, checkedIn sql.NullInt64
		created, updated                int64
	)
	if err := row.Scan(&id, &p.UniqueID, &p.Name, &p.Email, &present, &token, &issuedAt,
		&registered, &checkedIn, &created, &updated); err != nil {
		return nil, err
	}
	parsed, err := uuid.Parse(id)
	if err != nil {
		return nil, fmt.Errorf("parse participant id %q: %w", id, err)
	}
	p.ID = parsed
	p.Present = present != 0
	if token.Valid {
		tok := token.String
		p.Token = &tok
	}
	p.TokenIssuedAt = timePtr(issuedAt)
	p.RegisteredAt = timePtr(registered)
	p.CheckedInAt = timePtr(checkedIn)
	p.CreatedAt = fromMillis(created)
	p.UpdatedAt = fromMillis(updated)
	return &p, nil
}

// GetByIdentity returns the participant with the given unique id.
func (r *SQLiteRepository) GetByIdentity(ctx context.Context, identity string) (*models.Participant, error) {
	p, err := scanSQLiteParticipant(r.db.QueryRowContext(ctx, `SELECT `+participantColumns+` FROM participants WHERE unique_id = ?`, identity))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ticket.ErrParticipantNotFound
		}
		return nil, fmt.Errorf("get participant: %w", err)
	}
	return p, nil
}

// SetToken replaces the outstanding ticket token of a participant that has not checked in.
func (r *SQLiteRepository) SetToken(ctx context.Context, identity, token string) error {
	now := toMillis(r.now())
	res, err := r.db.ExecContext(ctx, `UPDATE participants SET qr_token = ?, token_issued_at = ?, updated_at = ?
		WHERE unique_id = ? AND present = 0`, token, now, now, identity)
	if err != nil {
		if isSQLiteBusy(err) {
			return ticket.ErrWriteConflict
		}
		return fmt.Errorf("set token: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 1 {
		return nil
	}
	p, err := r.GetByIdentity(ctx, identity)
	if err != nil {
		return err
	}
	if p.Present {
		return ticket.ErrAlreadyCheckedIn
	}
	return fmt.Errorf("set token: no row updated for %s", identity)
}

// ConditionalMarkAttended checks the participant in only while it is absent and holds expectedToken.
func (r *SQLiteRepository) ConditionalMarkAttended(ctx context.Context, identity, expectedToken string) (ticket.MarkResult, error) {
	now := toMillis(r.now())
	res, err := r.db.ExecContext(ctx, `UPDATE participants
		SET present = 1, qr_token = NULL, checked_in_at = ?, updated_at = ?
		WHERE unique_id = ? AND present = 0 AND qr_token = ?`, now, now, identity, expectedToken)
	if err != nil {
		if isSQLiteBusy(err) {
			return 0, ticket.ErrWriteConflict
		}
		return 0, fmt.Errorf("mark attended: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 1 {
		return ticket.MarkSucceeded, nil
	}
	p, err := r.GetByIdentity(ctx, identity)
	if err != nil {
		return 0, err
	}
	if p.Present {
		return ticket.MarkAlreadyAttended, nil
	}
	return ticket.MarkTokenMismatch, nil
}

// List returns participants ordered by unique id, filtered by attendance.
func (r *SQLiteRepository) List(ctx context.Context, attendance string) ([]models.Participant, error) {
	q := `SELECT ` + participantColumns + ` FROM participants`
	switch attendance {
	case models.AttendanceAttended:
		q += ` WHERE present = 1`
	case models.AttendanceNotAttended:
		q += ` WHERE present = 0`
	}
	q += ` ORDER BY unique_id`
	return r.query(ctx, q)
}

// FindByIdentities returns the participants whose unique ids are listed; unknown ids are skipped.
func (r *SQLiteRepository) FindByIdentities(ctx context.Context, identities []string) ([]models.Participant, error) {
	if len(identities) == 0 {
		return nil, nil
	}
	placeholders := strings.TrimSuffix(strings.Repeat("?,", len(identities)), ",")
	args := make([]any, len(identities))
	for i, id := range identities {
		args[i] = id
	}
	return r.query(ctx, `SELECT `+participantColumns+` FROM participants WHERE unique_id IN (`+placeholders+`) ORDER BY unique_id`, args...)
}

func (r *SQLiteRepository) query(ctx context.Context, q string, args ...any) ([]models.Participant, error) {
	rows, err := r.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("query participants: %w", err)
	}
	defer rows.Close()
	var list []models.Participant
	for rows.Next() {
		p, err := scanSQLiteParticipant(rows)
		if err != nil {
			return nil, fmt.Errorf("scan participant: %w", err)
		}
		list = append(list, *p)
	}
	return list, rows.Err()
}

// Identities returns every unique id in use.
func (r *SQLiteRepository) Identities(ctx context.Context) (map[string]struct{}, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT unique_id FROM participants`)
	if err != nil {
		return nil, fmt.Errorf("list identities: %w", err)
	}
	defer rows.Close()
	ids := make(map[string]struct{})
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids[id] = struct{}{}
	}
	return ids, rows.Err()
}

// Create inserts a participant. ID and timestamps are filled in.
func (r *SQLiteRepository) Create(ctx context.Context, p *models.Participant) error {
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	now := r.now().UTC()
	_, err := r.db.ExecContext(ctx, `INSERT INTO participants (id, unique_id, name, email, present, registered_at, created_at, updated_at)
		VALUES (?, ?, ?, ?, 0, ?, ?, ?)`,
		p.ID.String(), p.UniqueID, p.Name, p.Email, nullableMillis(p.RegisteredAt), toMillis(now), toMillis(now))
	if err != nil {
		if isSQLiteUniqueViolation(err) {
			return ErrDuplicateIdentity
		}
		return fmt.Errorf("insert participant: %w", err)
	}
	p.CreatedAt = fromMillis(toMillis(now))
	p.UpdatedAt = p.CreatedAt
	return nil
}

// CreateBatch inserts participants in one transaction.
func (r *SQLiteRepository) CreateBatch(ctx context.Context, ps []models.Participant) (int, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	stmt, err := tx.PrepareContext(ctx, `INSERT INTO participants (id, unique_id, name, email, present, registered_at, created_at, updated_at)
		VALUES (?, ?, ?, ?, 0, ?, ?, ?)`)
	if err != nil {
		return 0, fmt.Errorf("prepare insert: %w", err)
	}
	defer stmt.Close()

	now := toMillis(r.now())
	for i := range ps {
		if ps[i].ID == uuid.Nil {
			ps[i].ID = uuid.New()
		}
		if _, err := stmt.ExecContext(ctx, ps[i].ID.String(), ps[i].UniqueID, ps[i].Name, ps[i].Email,
			nullableMillis(ps[i].RegisteredAt), now, now); err != nil {
			if isSQLiteUniqueViolation(err) {
				return 0, ErrDuplicateIdentity
			}
			return 0, fmt.Errorf("insert participant %s: %w", ps[i].UniqueID, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit: %w", err)
	}
	return len(ps), nil
}

// Update changes name and/or email.
func (r *SQLiteRepository) Update(ctx context.Context, identity string, upd Update) (*models.Participant, error) {
	res, err := r.db.ExecContext(ctx, `UPDATE participants SET name = COALESCE(?, name), email = COALESCE(?, email), updated_at = ?
		WHERE unique_id = ?`, upd.Name, upd.Email, toMillis(r.now()), identity)
	if err != nil {
		return nil, fmt.Errorf("update participant: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return nil, ticket.ErrParticipantNotFound
	}
	return r.GetByIdentity(ctx, identity)
}

// Delete removes one participant.
func (r *SQLiteRepository) Delete(ctx context.Context, identity string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM participants WHERE unique_id = ?`, identity)
	if err != nil {
		return fmt.Errorf("delete participant: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ticket.ErrParticipantNotFound
	}
	return nil
}

// DeleteAll removes every participant and returns how many were deleted.
func (r *SQLiteRepository) DeleteAll(ctx context.Context) (int64, error) {
	res, err := r.db.ExecContext(ctx, `DELETE FROM participants`)
	if err != nil {
		return 0, fmt.Errorf("delete participants: %w", err)
	}
	return res.RowsAffected()
}

// Ping checks database connectivity.
func (r *SQLiteRepository) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

func sqliteCode(err error) (int, bool) {
	var sqliteErr *msqlite.Error
	if !errors.As(err, &sqliteErr) {
		return 0, false
	}
	return sqliteErr.Code(), true
}

func isSQLiteUniqueViolation(err error) bool {
	code, ok := sqliteCode(err)
	return ok && (code == sqlite3lib.SQLITE_CONSTRAINT_UNIQUE || code == sqlite3lib.SQLITE_CONSTRAINT_PRIMARYKEY)
}

func isSQLiteBusy(err error) bool {
	code, ok := sqliteCode(err)
	if !ok {
		return false
	}
	primary := code & 0xff
	return primary == sqlite3lib.SQLITE_BUSY || primary == sqlite3lib.SQLITE_LOCKED
}
