package ports

import (
	"context"

	"github.com/novatrust/bio-gateway/internal/core/domain"
)

// OperationsRepository is a repository for biometric operations
type OperationsRepository interface {
	Save(ctx context.Context, op *domain.Operation) error
	// SaveTerminal persists a terminal transition only when the stored
	// operation is not terminal yet. Returns false when another writer,
	// possibly in another process, settled the operation first.
	SaveTerminal(ctx context.Context, op *domain.Operation) (bool, error)
	GetByOperationID(ctx context.Context, operationID string) (*domain.Operation, error)
	GetPending(ctx context.Context) ([]*domain.Operation, error)
}
