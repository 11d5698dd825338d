package participants

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/aura-checkin/backend/internal/models"
	"github.com/aura-checkin/backend/internal/ticket"
)

const participantColumns = `id, unique_id, name, email, present, qr_token, token_issued_at, registered_at, checked_in_at, created_at, updated_at`

// PostgresRepository handles participant persistence in PostgreSQL.
type PostgresRepository struct {
	pool *pgxpool.Pool
}

var _ Store = (*PostgresRepository)(nil)

// NewPostgresRepository creates a participants repository.
func NewPostgresRepository(pool *pgxpool.Pool) *PostgresRepository {
	return &PostgresRepository{pool: pool}
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanParticipant(row rowScanner) (*models.Participant, error) {
	var p models.Participant
	if err := row.Scan(&p.ID, &p.UniqueID, &p.Name, &p.Email, &p.Present, &p.Token, &p.TokenIssuedAt,
		&p.RegisteredAt, &p.CheckedInAt, &p.CreatedAt, &p.UpdatedAt); err != nil {
		return nil, err
	}
	return &p, nil
}

// GetByIdentity returns the participant with the given unique id.
func (r *PostgresRepository) GetByIdentity(ctx context.Context, identity string) (*models.Participant, error) {
	p, err := scanParticipant(r.pool.QueryRow(ctx, `SELECT `+participantColumns+` FROM participants WHERE unique_id = $1`, identity))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ticket.ErrParticipantNotFound
		}
		return nil, fmt.Errorf("get participant: %w", err)
	}
	return p, nil
}

// SetToken replaces the outstanding ticket token of a participant that has not checked in.
func (r *PostgresRepository) SetToken(ctx context.Context, identity, token string) error {
	const q = `UPDATE participants SET qr_token = $2, token_issued_at = NOW(), updated_at = NOW()
		WHERE unique_id = $1 AND present = FALSE`
	tag, err := r.pool.Exec(ctx, q, identity, token)
	if err != nil {
		return fmt.Errorf("set token: %w", err)
	}
	if tag.RowsAffected() == 1 {
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
// The row lock taken by UPDATE makes a second concurrent caller re-evaluate the WHERE clause and
// miss.
func (r *PostgresRepository) ConditionalMarkAttended(ctx context.Context, identity, expectedToken string) (ticket.MarkResult, error) {
	const q = `UPDATE participants
		SET present = TRUE, qr_token = NULL, checked_in_at = NOW(), updated_at = NOW()
		WHERE unique_id = $1 AND present = FALSE AND qr_token = $2`
	tag, err := r.pool.Exec(ctx, q, identity, expectedToken)
	if err != nil {
		if isRetryablePgError(err) {
			return 0, ticket.ErrWriteConflict
		}
		return 0, fmt.Errorf("mark attended: %w", err)
	}
	if tag.RowsAffected() == 1 {
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

// List returns participants ordered by unique id, filtered by attendance (see models.Attendance*).
func (r *PostgresRepository) List(ctx context.Context, attendance string) ([]models.Participant, error) {
	q := `SELECT ` + participantColumns + ` FROM participants`
	switch attendance {
	case models.AttendanceAttended:
		q += ` WHERE present = TRUE`
	case models.AttendanceNotAttended:
		q += ` WHERE present = FALSE`
	}
	q += ` ORDER BY unique_id`
	rows, err := r.pool.Query(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("list participants: %w", err)
	}
	return collect(rows)
}

// FindByIdentities returns the participants whose unique ids are listed; unknown ids are skipped.
func (r *PostgresRepository) FindByIdentities(ctx context.Context, identities []string) ([]models.Participant, error) {
	if len(identities) == 0 {
		return nil, nil
	}
	rows, err := r.pool.Query(ctx, `SELECT `+participantColumns+` FROM participants WHERE unique_id = ANY($1) ORDER BY unique_id`, identities)
	if err != nil {
		return nil, fmt.Errorf("find participants: %w", err)
	}
	return collect(rows)
}

func collect(rows pgx.Rows) ([]models.Participant, error) {
	defer rows.Close()
	var list []models.Participant
	for rows.Next() {
		p, err := scanParticipant(rows)
		if err != nil {
			return nil, fmt.Errorf("scan participant: %w", err)
		}
		list = append(list, *p)
	}
	return list, rows.Err()
}

// Identities returns every unique id in use.
func (r *PostgresRepository) Identities(ctx context.Context) (map[string]struct{}, error) {
	rows, err := r.pool.Query(ctx, `SELECT unique_id FROM participants`)
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
func (r *PostgresRepository) Create(ctx context.Context, p *models.Participant) error {
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	const q = `INSERT INTO participants (id, unique_id, name, email, present, registered_at)
		VALUES ($1, $2, $3, $4, FALSE, $5)
		RETURNING created_at, updated_at`
	err := r.pool.QueryRow(ctx, q, p.ID, p.UniqueID, p.Name, p.Email, p.RegisteredAt).Scan(&p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrDuplicateIdentity
		}
		return fmt.Errorf("insert participant: %w", err)
	}
	return nil
}

// CreateBatch inserts participants with COPY; either all rows land or none do.
func (r *PostgresRepository) CreateBatch(ctx context.Context, ps []models.Participant) (int, error) {
	now := time.Now().UTC()
	rows := make([][]any, 0, len(ps))
	for i := range ps {
		if ps[i].ID == uuid.Nil {
			ps[i].ID = uuid.New()
		}
		rows = append(rows, []any{ps[i].ID, ps[i].UniqueID, ps[i].Name, ps[i].Email, false, ps[i].RegisteredAt, now, now})
	}
	n, err := r.pool.CopyFrom(ctx,
		pgx.Identifier{"participants"},
		[]string{"id", "unique_id", "name", "email", "present", "registered_at", "created_at", "updated_at"},
		pgx.CopyFromRows(rows),
	)
	if err != nil {
		if isUniqueViolation(err) {
			return 0, ErrDuplicateIdentity
		}
		return 0, fmt.Errorf("copy participants: %w", err)
	}
	return int(n), nil
}

// Update changes name and/or email.
func (r *PostgresRepository) Update(ctx context.Context, identity string, upd Update) (*models.Participant, error) {
	q := `UPDATE participants SET name = COALESCE($2, name), email = COALESCE($3, email), updated_at = NOW()
		WHERE unique_id = $1 RETURNING ` + participantColumns
	p, err := scanParticipant(r.pool.QueryRow(ctx, q, identity, upd.Name, upd.Email))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ticket.ErrParticipantNotFound
		}
		return nil, fmt.Errorf("update participant: %w", err)
	}
	return p, nil
}

// Delete removes one participant.
func (r *PostgresRepository) Delete(ctx context.Context, identity string) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM participants WHERE unique_id = $1`, identity)
	if err != nil {
		return fmt.Errorf("delete participant: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ticket.ErrParticipantNotFound
	}
	return nil
}

// DeleteAll removes every participant and returns how many were deleted.
func (r *PostgresRepository) DeleteAll(ctx context.Context) (int64, error) {
	tag, err := r.pool.Exec(ctx, `DELETE FROM participants`)
	if err != nil {
		return 0, fmt.Errorf("delete participants: %w", err)
	}
	return tag.RowsAffected(), nil
}

// Ping checks database connectivity.
func (r *PostgresRepository) Ping(ctx context.Context) error {
	return r.pool.Ping(ctx)
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}

// isRetryablePgError matches serialization_failure and deadlock_detected.
func isRetryablePgError(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && (pgErr.Code == "40001" || pgErr.Code == "40P01")
}
