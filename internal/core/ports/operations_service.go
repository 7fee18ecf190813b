package ports

import (
	"context"

	"github.com/novatrust/bio-gateway/internal/core/domain"
	"github.com/novatrust/bio-gateway/internal/core/event"
)

// Outcome is the caller-visible result of a status query. It is richer than
// the raw state so a manual review never looks like a plain pending to the
// caller.
type Outcome string

// Caller-visible outcomes
const (
	OutcomePending      Outcome = "pending"
	OutcomeManualReview Outcome = "manual_review"
	OutcomeCompleted    Outcome = "completed"
	OutcomeFailed       Outcome = "failed"
	OutcomeExpired      Outcome = "expired"
)

// OperationStatus is the answer to a status query on one operation
type OperationStatus struct {
	Operation   *domain.Operation
	Outcome     Outcome
	Reasons     []string
	Credentials *domain.Credentials
}

// StartedOperation couples the stored operation with the capture session the
// client needs to run the provider flow
type StartedOperation struct {
	Operation *domain.Operation
	Session   *domain.CaptureSession
}

// OperationsService exposes the enrollment/authentication lifecycle
type OperationsService interface {
	StartEnrollment(ctx context.Context, userID, subjectRef string) (*StartedOperation, error)
	StartAuthentication(ctx context.Context, userID, subjectRef string) (*StartedOperation, error)
	Get(ctx context.Context, operationID string) (*OperationStatus, error)
	SubmitCaptureEvent(ctx context.Context, ev *event.CaptureSurface) error
}

// TransitionApplier is the single write path for operation state. The
// completion detector proposes transitions through it; all state invariants
// are enforced behind these calls.
type TransitionApplier interface {
	// ApplyResult applies a terminal proof result. Idempotent: an already
	// terminal operation is returned unchanged.
	ApplyResult(ctx context.Context, operationID string, result *domain.ProofResult) (*domain.Operation, error)
	// MarkQueryable records the first remote sighting of an operation,
	// moving Created to Pending.
	MarkQueryable(ctx context.Context, operationID, remoteState string) (*domain.Operation, error)
	// Expire declares an operation expired after budget exhaustion.
	Expire(ctx context.Context, operationID string) (*domain.Operation, error)
}
