package repositories

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v4"

	"github.com/novatrust/bio-gateway/internal/core/domain"
	"github.com/novatrust/bio-gateway/internal/core/ports"
	"github.com/novatrust/bio-gateway/internal/db"
)

// ErrOperationNotFound is returned when an operation is not found
var ErrOperationNotFound = errors.New("operation not found")

// OperationsRepository is a repository for biometric operations
type OperationsRepository struct {
	conn db.Storage
}

// NewOperations creates a new OperationsRepository
func NewOperations(conn db.Storage) ports.OperationsRepository {
	return &OperationsRepository{conn: conn}
}

// Save stores an operation, updating it when the provider operation id
// already exists. Rows that already reached a terminal state are never
// overwritten, so a stale non-terminal write from a lagging process cannot
// roll the state machine back.
func (r *OperationsRepository) Save(ctx context.Context, op *domain.Operation) error {
	sql := `INSERT INTO operations (id, operation_id, user_id, kind, state, remote_state, result_code, requires_review, failure_reasons, created_at, expires_at, completed_at, modified_at)
			VALUES($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13) ON CONFLICT (operation_id) DO
			UPDATE SET state=$5, remote_state=$6, result_code=$7, requires_review=$8, failure_reasons=$9, completed_at=$12, modified_at=$13
			WHERE operations.state NOT IN ($14, $15, $16)`

	_, err := r.conn.Pgx.Exec(ctx, sql,
		op.ID,
		op.OperationID,
		op.UserID,
		op.Kind,
		op.State,
		op.RemoteState,
		op.ResultCode,
		op.RequiresReview,
		op.FailureReasons,
		op.CreatedAt,
		op.ExpiresAt,
		op.CompletedAt,
		op.ModifiedAt,
		domain.StateCompleted,
		domain.StateFailed,
		domain.StateExpired,
	)
	return err
}

// SaveTerminal persists a terminal transition with a compare and set on the
// stored state. The in-process lock in the operations service does not reach
// a second daemon polling the same operation, this guard does.
func (r *OperationsRepository) SaveTerminal(ctx context.Context, op *domain.Operation) (bool, error) {
	sql := `UPDATE operations
			SET state=$2, remote_state=$3, result_code=$4, requires_review=$5, failure_reasons=$6, completed_at=$7, modified_at=$8
			WHERE operation_id = $1 AND state NOT IN ($9, $10, $11)`

	tag, err := r.conn.Pgx.Exec(ctx, sql,
		op.OperationID,
		op.State,
		op.RemoteState,
		op.ResultCode,
		op.RequiresReview,
		op.FailureReasons,
		op.CompletedAt,
		op.ModifiedAt,
		domain.StateCompleted,
		domain.StateFailed,
		domain.StateExpired,
	)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

// GetByOperationID returns an operation by its provider operation id
func (r *OperationsRepository) GetByOperationID(ctx context.Context, operationID string) (*domain.Operation, error) {
	sql := `SELECT id, operation_id, user_id, kind, state, remote_state, result_code, requires_review, failure_reasons, created_at, expires_at, completed_at, modified_at
			FROM operations
			WHERE operation_id = $1`

	var op domain.Operation
	err := r.conn.Pgx.QueryRow(ctx, sql, operationID).Scan(
		&op.ID,
		&op.OperationID,
		&op.UserID,
		&op.Kind,
		&op.State,
		&op.RemoteState,
		&op.ResultCode,
		&op.RequiresReview,
		&op.FailureReasons,
		&op.CreatedAt,
		&op.ExpiresAt,
		&op.CompletedAt,
		&op.ModifiedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrOperationNotFound
		}
		return nil, err
	}
	return &op, nil
}

// GetPending returns all operations that have not reached a terminal state
func (r *OperationsRepository) GetPending(ctx context.Context) ([]*domain.Operation, error) {
	sql := `SELECT id, operation_id, user_id, kind, state, remote_state, result_code, requires_review, failure_reasons, created_at, expires_at, completed_at, modified_at
			FROM operations
			WHERE state IN ($1, $2)`

	rows, err := r.conn.Pgx.Query(ctx, sql, domain.StateCreated, domain.StatePending)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ops []*domain.Operation
	for rows.Next() {
		var op domain.Operation
		err = rows.Scan(
			&op.ID,
			&op.OperationID,
			&op.UserID,
			&op.Kind,
			&op.State,
			&op.RemoteState,
			&op.ResultCode,
			&op.RequiresReview,
			&op.FailureReasons,
			&op.CreatedAt,
			&op.ExpiresAt,
			&op.CompletedAt,
			&op.ModifiedAt,
		)
		if err != nil {
			return nil, err
		}
		ops = append(ops, &op)
	}
	return ops, nil
}
