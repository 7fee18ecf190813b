package ports

import (
	"context"
	"time"

	"github.com/novatrust/bio-gateway/internal/core/domain"
)

// CreatedOperation is the provider answer to an operation creation request
type CreatedOperation struct {
	OperationID string
	Secret      string
	ExpiresAt   time.Time
}

// StatusOutcome is the provider answer to a status query. NotYetQueryable is
// a first class outcome, not an error: the provider lags behind operation
// creation and answers 404 until the operation is registered.
type StatusOutcome struct {
	NotYetQueryable bool
	Terminal        bool
	RemoteState     string
	ResultCode      int
	CompletedAt     *time.Time
}

// VerificationGateway talks to the remote biometric provider
type VerificationGateway interface {
	CreateOperation(ctx context.Context, kind domain.OperationKind, subjectRef string) (*CreatedOperation, error)
	QueryStatus(ctx context.Context, operationID string) (*StatusOutcome, error)
	FetchResult(ctx context.Context, operationID string) (*domain.ProofResult, error)
}
