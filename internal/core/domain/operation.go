package domain

import (
	"errors"
	"time"

	"github.com/google/uuid"
)

// OperationKind distinguishes enrollment from authentication attempts
type OperationKind string

// Operation kinds
const (
	KindEnrollment     OperationKind = "enrollment"
	KindAuthentication OperationKind = "authentication"
)

// OperationState is the local, authoritative lifecycle state of an operation
type OperationState string

// Operation states. Completed, Failed and Expired are terminal.
const (
	StateCreated   OperationState = "created"
	StatePending   OperationState = "pending"
	StateCompleted OperationState = "completed"
	StateFailed    OperationState = "failed"
	StateExpired   OperationState = "expired"
)

// Provider result codes observed in terminal payloads
const (
	ResultCodeSuccess = 1
	ResultCodeFailure = 2
)

// RemoteStateNotYetQueryable marks an operation the provider does not know
// about yet. The provider takes from seconds to minutes to register a freshly
// created operation, so this is a normal pre-pending condition, not an error.
const RemoteStateNotYetQueryable = "NOT_YET_QUERYABLE"

// ErrInvalidTransition is returned when a state change would move backwards
// or leave a terminal state
var ErrInvalidTransition = errors.New("invalid operation state transition")

var stateRank = map[OperationState]int{
	StateCreated:   0,
	StatePending:   1,
	StateCompleted: 2,
	StateFailed:    2,
	StateExpired:   2,
}

// Operation is one provider-tracked enrollment or authentication attempt.
// State only moves forward and is written exclusively by the operation
// service.
type Operation struct {
	ID             uuid.UUID
	OperationID    string
	UserID         string
	Kind           OperationKind
	State          OperationState
	RemoteState    string
	ResultCode     int
	RequiresReview bool
	FailureReasons []string
	CreatedAt      time.Time
	ExpiresAt      time.Time
	CompletedAt    *time.Time
	ModifiedAt     time.Time
}

// NewOperation returns an operation in Created state
func NewOperation(operationID, userID string, kind OperationKind, expiresAt time.Time) *Operation {
	now := time.Now()
	return &Operation{
		ID:          uuid.New(),
		OperationID: operationID,
		UserID:      userID,
		Kind:        kind,
		State:       StateCreated,
		CreatedAt:   now,
		ExpiresAt:   expiresAt,
		ModifiedAt:  now,
	}
}

// IsTerminal tells whether no further transition can occur
func (o *Operation) IsTerminal() bool {
	return o.State == StateCompleted || o.State == StateFailed || o.State == StateExpired
}

// CanTransitionTo tells whether moving to next would keep the state monotonic
func (o *Operation) CanTransitionTo(next OperationState) bool {
	if o.IsTerminal() {
		return false
	}
	cur, ok := stateRank[o.State]
	if !ok {
		return false
	}
	nxt, ok := stateRank[next]
	if !ok {
		return false
	}
	return nxt > cur || (next == StatePending && o.State == StateCreated)
}

// TransitionTo applies a forward transition. Moving to the current state is a
// no-op. Anything that would revisit an earlier state or leave a terminal
// state returns ErrInvalidTransition.
func (o *Operation) TransitionTo(next OperationState) error {
	if o.State == next {
		return nil
	}
	if !o.CanTransitionTo(next) {
		return ErrInvalidTransition
	}
	o.State = next
	o.ModifiedAt = time.Now()
	return nil
}

// CaptureSession is the short lived secret the capture surface needs to run
// the provider flow for one operation. Cached with a TTL, never persisted.
type CaptureSession struct {
	OperationID string    `json:"operationId"`
	Secret      string    `json:"secret"`
	ExpiresAt   time.Time `json:"expiresAt"`
}
