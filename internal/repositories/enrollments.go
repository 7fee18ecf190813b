package repositories

import (
	"context"
	"errors"

	"github.com/jackc/pgconn"
	"github.com/jackc/pgx/v4"

	"github.com/novatrust/bio-gateway/internal/core/domain"
	"github.com/novatrust/bio-gateway/internal/core/ports"
	"github.com/novatrust/bio-gateway/internal/db"
)

const foreignKeyViolationErrorCode = "23503"

// ErrEnrollmentNotFound is returned when an enrollment record is not found
var ErrEnrollmentNotFound = errors.New("enrollment not found")

// EnrollmentsRepository is a repository for user enrollment records
type EnrollmentsRepository struct {
	conn db.Storage
}

// NewEnrollments creates a new EnrollmentsRepository
func NewEnrollments(conn db.Storage) ports.EnrollmentsRepository {
	return &EnrollmentsRepository{conn: conn}
}

// Save stores an enrollment record
func (r *EnrollmentsRepository) Save(ctx context.Context, record *domain.EnrollmentRecord) error {
	sql := `INSERT INTO enrollments (user_id, operation_id, status, created_at, modified_at)
			VALUES($1, $2, $3, $4, $5) ON CONFLICT (user_id, operation_id) DO
			UPDATE SET status=$3, modified_at=$5`

	_, err := r.conn.Pgx.Exec(ctx, sql,
		record.UserID,
		record.OperationID,
		record.Status,
		record.CreatedAt,
		record.ModifiedAt,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == foreignKeyViolationErrorCode {
			return ErrOperationNotFound
		}
		return err
	}
	return nil
}

// GetByUserID returns all enrollment records for a user
func (r *EnrollmentsRepository) GetByUserID(ctx context.Context, userID string) ([]*domain.EnrollmentRecord, error) {
	sql := `SELECT user_id, operation_id, status, created_at, modified_at
			FROM enrollments
			WHERE user_id = $1`

	rows, err := r.conn.Pgx.Query(ctx, sql, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var records []*domain.EnrollmentRecord
	for rows.Next() {
		var record domain.EnrollmentRecord
		if err := rows.Scan(&record.UserID, &record.OperationID, &record.Status, &record.CreatedAt, &record.ModifiedAt); err != nil {
			return nil, err
		}
		records = append(records, &record)
	}
	return records, nil
}

// GetActive returns the active enrollment for a user, if any
func (r *EnrollmentsRepository) GetActive(ctx context.Context, userID string) (*domain.EnrollmentRecord, error) {
	sql := `SELECT user_id, operation_id, status, created_at, modified_at
			FROM enrollments
			WHERE user_id = $1 AND status = $2
			ORDER BY modified_at DESC LIMIT 1`

	var record domain.EnrollmentRecord
	err := r.conn.Pgx.QueryRow(ctx, sql, userID, domain.EnrollmentActive).Scan(
		&record.UserID,
		&record.OperationID,
		&record.Status,
		&record.CreatedAt,
		&record.ModifiedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrEnrollmentNotFound
		}
		return nil, err
	}
	return &record, nil
}
