package services

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/novatrust/bio-gateway/internal/cache"
	"github.com/novatrust/bio-gateway/internal/core/domain"
	"github.com/novatrust/bio-gateway/internal/core/event"
	"github.com/novatrust/bio-gateway/internal/core/ports"
	"github.com/novatrust/bio-gateway/internal/log"
	"github.com/novatrust/bio-gateway/internal/pubsub"
)

const (
	captureSessionKeyPrefix = "capture_session:"
	credentialsKeyPrefix    = "credentials:"
)

// Operations owns the lifecycle of biometric operations. It is the only
// writer of operation state: the detector and the validator propose, this
// service decides. Signals racing for the same operation id are serialized
// on a per-operation lock in process and on a compare and set terminal
// write across processes.
type Operations struct {
	operationsRepo  ports.OperationsRepository
	enrollmentsRepo ports.EnrollmentsRepository
	gateway         ports.VerificationGateway
	validator       ports.ProofValidator
	issuer          ports.CredentialIssuer
	publisher       pubsub.Publisher
	cache           cache.Cache
	detector        ports.CompletionDetector
	operationTTL    time.Duration
	credentialsTTL  time.Duration

	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

// NewOperations returns the operations service
func NewOperations(
	operationsRepo ports.OperationsRepository,
	enrollmentsRepo ports.EnrollmentsRepository,
	gateway ports.VerificationGateway,
	validator ports.ProofValidator,
	issuer ports.CredentialIssuer,
	publisher pubsub.Publisher,
	c cache.Cache,
	operationTTL time.Duration,
	credentialsTTL time.Duration,
) *Operations {
	return &Operations{
		operationsRepo:  operationsRepo,
		enrollmentsRepo: enrollmentsRepo,
		gateway:         gateway,
		validator:       validator,
		issuer:          issuer,
		publisher:       publisher,
		cache:           c,
		operationTTL:    operationTTL,
		credentialsTTL:  credentialsTTL,
		locks:           make(map[string]*sync.Mutex),
	}
}

// SetDetector wires the completion detector. The detector needs this service
// as its transition applier, so the two are connected after construction.
func (s *Operations) SetDetector(d ports.CompletionDetector) {
	s.detector = d
}

// StartEnrollment creates a new enrollment operation with the provider
func (s *Operations) StartEnrollment(ctx context.Context, userID, subjectRef string) (*ports.StartedOperation, error) {
	return s.start(ctx, domain.KindEnrollment, userID, subjectRef)
}

// StartAuthentication creates a new authentication operation with the provider
func (s *Operations) StartAuthentication(ctx context.Context, userID, subjectRef string) (*ports.StartedOperation, error) {
	return s.start(ctx, domain.KindAuthentication, userID, subjectRef)
}

func (s *Operations) start(ctx context.Context, kind domain.OperationKind, userID, subjectRef string) (*ports.StartedOperation, error) {
	created, err := s.gateway.CreateOperation(ctx, kind, subjectRef)
	if err != nil {
		return nil, err
	}

	expiresAt := created.ExpiresAt
	if expiresAt.IsZero() {
		expiresAt = time.Now().Add(s.operationTTL)
	}

	op := domain.NewOperation(created.OperationID, userID, kind, expiresAt)
	if err := s.operationsRepo.Save(ctx, op); err != nil {
		return nil, fmt.Errorf("saving operation: %w", err)
	}

	if kind == domain.KindEnrollment {
		now := time.Now()
		record := &domain.EnrollmentRecord{
			UserID:      userID,
			OperationID: op.OperationID,
			Status:      domain.EnrollmentStarted,
			CreatedAt:   now,
			ModifiedAt:  now,
		}
		if err := s.enrollmentsRepo.Save(ctx, record); err != nil {
			return nil, fmt.Errorf("saving enrollment record: %w", err)
		}
	}

	session := &domain.CaptureSession{
		OperationID: op.OperationID,
		Secret:      created.Secret,
		ExpiresAt:   expiresAt,
	}
	if err := s.cache.Set(ctx, captureSessionKeyPrefix+op.OperationID, session, time.Until(expiresAt)); err != nil {
		log.Warn(ctx, "caching capture session", "err", err, "operationID", op.OperationID)
	}

	if s.detector != nil {
		s.detector.Watch(ctx, op)
	}

	log.Info(ctx, "operation started", "operationID", op.OperationID, "kind", kind, "userID", userID)
	return &ports.StartedOperation{Operation: op, Session: session}, nil
}

// Get returns the caller-visible status of an operation. Manual review is a
// distinct outcome so the caller does not keep polling a pending state
// forever.
func (s *Operations) Get(ctx context.Context, operationID string) (*ports.OperationStatus, error) {
	op, err := s.operationsRepo.GetByOperationID(ctx, operationID)
	if err != nil {
		return nil, err
	}

	status := &ports.OperationStatus{Operation: op}
	switch {
	case op.State == domain.StateCompleted:
		status.Outcome = ports.OutcomeCompleted
		if op.Kind == domain.KindAuthentication {
			var creds domain.Credentials
			if found := s.cache.Get(ctx, credentialsKeyPrefix+operationID, &creds); found {
				status.Credentials = &creds
			}
		}
	case op.State == domain.StateFailed:
		status.Outcome = ports.OutcomeFailed
		status.Reasons = op.FailureReasons
	case op.State == domain.StateExpired:
		status.Outcome = ports.OutcomeExpired
		status.Reasons = op.FailureReasons
	case op.RequiresReview:
		status.Outcome = ports.OutcomeManualReview
		status.Reasons = op.FailureReasons
	default:
		status.Outcome = ports.OutcomePending
	}
	return status, nil
}

// SubmitCaptureEvent forwards a capture surface notification to the detector
// through pubsub. Fire and forget from the caller's point of view.
func (s *Operations) SubmitCaptureEvent(ctx context.Context, ev *event.CaptureSurface) error {
	return s.publisher.Publish(ctx, event.CaptureSurfaceEvent, ev)
}

// ApplyResult applies a terminal proof result to an operation. This is where
// the completion predicate and the validator verdict turn into a state
// transition, exactly once per operation.
func (s *Operations) ApplyResult(ctx context.Context, operationID string, result *domain.ProofResult) (*domain.Operation, error) {
	unlock := s.lock(operationID)
	defer unlock()

	op, err := s.operationsRepo.GetByOperationID(ctx, operationID)
	if err != nil {
		return nil, err
	}
	if op.IsTerminal() {
		return op, nil
	}

	op.ResultCode = result.ResultCode

	if result.ResultCode != domain.ResultCodeSuccess {
		return s.fail(ctx, op, []string{domain.ReasonProviderRejected})
	}

	// A success result code with a null completedAt is a provider anomaly:
	// a freshly created operation can transiently report a success-shaped
	// state before any user action occurred. It is still pending.
	if result.CompletedAt == nil {
		log.Warn(ctx, "success result code with null completedAt, keeping operation pending", "operationID", operationID)
		if err := op.TransitionTo(domain.StatePending); err != nil {
			return nil, err
		}
		if err := s.operationsRepo.Save(ctx, op); err != nil {
			return nil, err
		}
		return op, nil
	}

	verdict := s.validator.Classify(result)
	switch verdict.Classification {
	case domain.ClassificationAccept:
		return s.complete(ctx, op, result)
	case domain.ClassificationReject:
		return s.fail(ctx, op, verdict.Reasons)
	default:
		return s.markForReview(ctx, op, verdict.Reasons)
	}
}

// MarkQueryable records the first remote sighting of an operation
func (s *Operations) MarkQueryable(ctx context.Context, operationID, remoteState string) (*domain.Operation, error) {
	unlock := s.lock(operationID)
	defer unlock()

	op, err := s.operationsRepo.GetByOperationID(ctx, operationID)
	if err != nil {
		return nil, err
	}
	if op.IsTerminal() {
		return op, nil
	}

	op.RemoteState = remoteState
	if err := op.TransitionTo(domain.StatePending); err != nil {
		return nil, err
	}
	if err := s.operationsRepo.Save(ctx, op); err != nil {
		return nil, err
	}
	return op, nil
}

// Expire declares an operation expired after its polling budget ran out.
// Idempotent like every other transition.
func (s *Operations) Expire(ctx context.Context, operationID string) (*domain.Operation, error) {
	unlock := s.lock(operationID)
	defer unlock()

	op, err := s.operationsRepo.GetByOperationID(ctx, operationID)
	if err != nil {
		return nil, err
	}
	if op.IsTerminal() {
		return op, nil
	}

	op.FailureReasons = []string{domain.ReasonOperationExpired}
	if err := op.TransitionTo(domain.StateExpired); err != nil {
		return nil, err
	}
	won, stored, err := s.persistTerminal(ctx, op)
	if err != nil {
		return nil, err
	}
	if !won {
		return stored, nil
	}
	if err := s.updateEnrollment(ctx, op, domain.EnrollmentExpired); err != nil {
		return nil, err
	}

	s.publishFailed(ctx, op)
	log.Info(ctx, "operation expired", "operationID", operationID)
	return op, nil
}

func (s *Operations) complete(ctx context.Context, op *domain.Operation, result *domain.ProofResult) (*domain.Operation, error) {
	op.CompletedAt = result.CompletedAt
	if err := op.TransitionTo(domain.StateCompleted); err != nil {
		return nil, err
	}

	// The terminal write is a compare and set on the stored state: the
	// per-operation lock does not reach a second daemon polling the same
	// operation. Credentials are issued only by the first writer, and only
	// after the transition is durable, so a save failure cannot leave an
	// issued credential behind a still-pending operation.
	won, stored, err := s.persistTerminal(ctx, op)
	if err != nil {
		return nil, err
	}
	if !won {
		return stored, nil
	}

	if op.Kind == domain.KindAuthentication {
		creds, err := s.issuer.Issue(ctx, op.UserID)
		if err != nil {
			return nil, fmt.Errorf("issuing credentials: %w", err)
		}
		if err := s.cache.Set(ctx, credentialsKeyPrefix+op.OperationID, creds, s.credentialsTTL); err != nil {
			return nil, fmt.Errorf("caching credentials: %w", err)
		}
	}

	if err := s.updateEnrollment(ctx, op, domain.EnrollmentActive); err != nil {
		return nil, err
	}

	if err := s.publisher.Publish(ctx, event.OperationCompletedEvent, &event.OperationCompleted{
		OperationID: op.OperationID,
		UserID:      op.UserID,
		Kind:        string(op.Kind),
	}); err != nil {
		log.Error(ctx, "publishing operation completed event", "err", err, "operationID", op.OperationID)
	}

	log.Info(ctx, "operation completed", "operationID", op.OperationID, "kind", op.Kind)
	return op, nil
}

func (s *Operations) fail(ctx context.Context, op *domain.Operation, reasons []string) (*domain.Operation, error) {
	op.FailureReasons = reasons
	if err := op.TransitionTo(domain.StateFailed); err != nil {
		return nil, err
	}
	won, stored, err := s.persistTerminal(ctx, op)
	if err != nil {
		return nil, err
	}
	if !won {
		return stored, nil
	}
	if err := s.updateEnrollment(ctx, op, domain.EnrollmentFailed); err != nil {
		return nil, err
	}

	s.publishFailed(ctx, op)
	log.Info(ctx, "operation failed", "operationID", op.OperationID, "reasons", reasons)
	return op, nil
}

func (s *Operations) markForReview(ctx context.Context, op *domain.Operation, reasons []string) (*domain.Operation, error) {
	op.RequiresReview = true
	op.FailureReasons = reasons
	if err := op.TransitionTo(domain.StatePending); err != nil {
		return nil, err
	}
	if err := s.operationsRepo.Save(ctx, op); err != nil {
		return nil, err
	}

	log.Info(ctx, "operation requires manual review", "operationID", op.OperationID, "reasons", reasons)
	return op, nil
}

// persistTerminal races the terminal write against any other process. The
// loser reloads and returns the stored terminal operation so late signals
// settle as no-ops.
func (s *Operations) persistTerminal(ctx context.Context, op *domain.Operation) (bool, *domain.Operation, error) {
	won, err := s.operationsRepo.SaveTerminal(ctx, op)
	if err != nil {
		return false, nil, err
	}
	if won {
		return true, op, nil
	}
	stored, err := s.operationsRepo.GetByOperationID(ctx, op.OperationID)
	if err != nil {
		return false, nil, err
	}
	return false, stored, nil
}

func (s *Operations) updateEnrollment(ctx context.Context, op *domain.Operation, status domain.EnrollmentStatus) error {
	if op.Kind != domain.KindEnrollment {
		return nil
	}
	now := time.Now()
	return s.enrollmentsRepo.Save(ctx, &domain.EnrollmentRecord{
		UserID:      op.UserID,
		OperationID: op.OperationID,
		Status:      status,
		CreatedAt:   op.CreatedAt,
		ModifiedAt:  now,
	})
}

func (s *Operations) publishFailed(ctx context.Context, op *domain.Operation) {
	if err := s.publisher.Publish(ctx, event.OperationFailedEvent, &event.OperationFailed{
		OperationID: op.OperationID,
		UserID:      op.UserID,
		Kind:        string(op.Kind),
		State:       string(op.State),
		Reasons:     op.FailureReasons,
	}); err != nil {
		log.Error(ctx, "publishing operation failed event", "err", err, "operationID", op.OperationID)
	}
}

// lock serializes signal processing per operation id. Different operations
// never contend.
func (s *Operations) lock(operationID string) func() {
	s.mu.Lock()
	l, ok := s.locks[operationID]
	if !ok {
		l = &sync.Mutex{}
		s.locks[operationID] = l
	}
	s.mu.Unlock()

	l.Lock()
	return l.Unlock
}
